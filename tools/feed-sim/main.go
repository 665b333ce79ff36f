package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kbrhealth/carebook/libs/kafkax"
)

// feed-sim pushes synthetic feed records onto the dashboard topics so the
// aggregator can be exercised without running the producing services.
func main() {
	var (
		brokers  = flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma-separated kafka brokers")
		feed     = flag.String("feed", getenv("FEED", "payments"), "feed to publish: appointments|payments|doctors|users")
		count    = flag.Int("count", 5, "number of synthetic records")
		override = flag.Float64("override", 0, "publish a {\"total\": N} override record instead of synthetic rows")
	)
	flag.Parse()

	topic, ok := topicFor(*feed)
	if !ok {
		fatal(fmt.Sprintf("unknown feed: %s", *feed))
	}

	w := &kafka.Writer{
		Addr:     kafka.TCP(kafkax.SplitBrokers(*brokers)...),
		Topic:    topic,
		Balancer: &kafka.Hash{},
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var msgs []kafka.Message
	if *override > 0 {
		msg, err := buildMessage(topic, map[string]any{"total": *override})
		if err != nil {
			fatal(err.Error())
		}
		msgs = append(msgs, msg)
	} else {
		for i := 0; i < *count; i++ {
			msg, err := buildMessage(topic, syntheticRecord(*feed, i))
			if err != nil {
				fatal(err.Error())
			}
			msgs = append(msgs, msg)
		}
	}

	if err := w.WriteMessages(ctx, msgs...); err != nil {
		fatal(err.Error())
	}
	fmt.Printf("published %d message(s) to %s\n", len(msgs), topic)
}

func topicFor(feed string) (string, bool) {
	switch feed {
	case "appointments":
		return "records.appointments.v1", true
	case "payments":
		return "records.payments.v1", true
	case "doctors":
		return "records.doctors.v1", true
	case "users":
		return "records.users.v1", true
	}
	return "", false
}

func buildMessage(topic string, record map[string]any) (kafka.Message, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return kafka.Message{}, err
	}
	eventID := fmt.Sprintf("sim_%d", time.Now().UnixNano())
	key := eventID
	if id, ok := record["id"].(string); ok {
		key = id
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(topic)},
		},
	}, nil
}

func syntheticRecord(feed string, i int) map[string]any {
	now := time.Now().UTC()
	id := fmt.Sprintf("%s-sim-%d-%d", feed, now.UnixNano(), i)
	switch feed {
	case "appointments":
		return map[string]any{
			"id":            id,
			"patientName":   fmt.Sprintf("Sim Patient %d", i+1),
			"doctorName":    "Dr. Sim",
			"serviceName":   "General",
			"date":          now.Format("2006-01-02"),
			"time":          "10:00 AM",
			"status":        "confirmed",
			"paymentStatus": pick(i, "pending", "completed"),
			"createdAt":     now.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
		}
	case "payments":
		return map[string]any{
			"id":        id,
			"amount":    float64(500 + i*100),
			"currency":  "inr",
			"status":    "succeeded",
			"createdAt": now.Format(time.RFC3339),
		}
	case "doctors":
		return map[string]any{
			"id":         id,
			"name":       fmt.Sprintf("Dr. Sim %d", i+1),
			"department": "General",
		}
	case "users":
		return map[string]any{
			"id":    id,
			"name":  fmt.Sprintf("Sim User %d", i+1),
			"email": fmt.Sprintf("sim%d@example.com", i+1),
		}
	}
	return map[string]any{"id": id}
}

func pick(i int, options ...string) string {
	return options[i%len(options)]
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
