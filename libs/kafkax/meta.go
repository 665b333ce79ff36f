package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// EventMeta is the metadata envelope carried on every CareBook Kafka
// message. Feed consumers use EventID for inbox dedup.
type EventMeta struct {
	EventID   string
	EventType string
}

// ExtractEventMeta reads the envelope headers, falling back to the message
// key and topic for producers that don't set them.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{EventID: string(msg.Key), EventType: msg.Topic}
	for _, h := range msg.Headers {
		if len(h.Value) == 0 {
			continue
		}
		switch h.Key {
		case "event_id":
			meta.EventID = string(h.Value)
		case "event_type":
			meta.EventType = string(h.Value)
		}
	}
	return meta
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
