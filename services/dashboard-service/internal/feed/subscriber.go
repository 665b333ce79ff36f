// Package feed subscribes to the record topics and drives the aggregator.
// One Subscriber owns one topic; each accepted message is deduplicated
// against the inbox, folded into the feed's accumulated state, and handed
// to the aggregator as the feed's full record array.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbrhealth/carebook/libs/kafkax"
	"github.com/kbrhealth/carebook/services/dashboard-service/internal/aggregator"
	"github.com/kbrhealth/carebook/services/dashboard-service/internal/inbox"
	"github.com/kbrhealth/carebook/services/dashboard-service/internal/metrics"
)

// Topics carrying the four dashboard feeds.
const (
	TopicAppointments = "records.appointments.v1"
	TopicPayments     = "records.payments.v1"
	TopicDoctors      = "records.doctors.v1"
	TopicUsers        = "records.users.v1"
)

// FeedForTopic maps a record topic to its logical feed name.
func FeedForTopic(topic string) (string, bool) {
	switch topic {
	case TopicAppointments:
		return aggregator.FeedAppointments, true
	case TopicPayments:
		return aggregator.FeedPayments, true
	case TopicDoctors:
		return aggregator.FeedDoctors, true
	case TopicUsers:
		return aggregator.FeedUsers, true
	}
	return "", false
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

type Subscriber struct {
	reader   *kafka.Reader
	logger   *slog.Logger
	inbox    *inbox.Repository
	repo     *Repository
	state    *State
	agg      *aggregator.Aggregator
	metrics  *metrics.FeedMetrics
	feedName string

	// Offsets already folded in, per partition. The consumer group
	// guarantees ordered delivery, but a rebalance can replay a window;
	// skipping stale offsets keeps each feed's published state monotonic.
	seen map[int]int64
}

func NewSubscriber(logger *slog.Logger, inboxRepo *inbox.Repository, repo *Repository, agg *aggregator.Aggregator, m *metrics.FeedMetrics, cfg Config) *Subscriber {
	feedName, ok := FeedForTopic(cfg.Topic)
	if !ok {
		feedName = cfg.Topic
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Subscriber{
		reader:   reader,
		logger:   logger,
		inbox:    inboxRepo,
		repo:     repo,
		state:    NewState(),
		agg:      agg,
		metrics:  m,
		feedName: feedName,
		seen:     map[int]int64{},
	}
}

// SeedFromStore loads the persisted records and publishes them as the
// feed's initial state. Called once before Run.
func (s *Subscriber) SeedFromStore(ctx context.Context) error {
	records, err := s.repo.LoadFeed(ctx, s.feedName)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	s.agg.OnFeedUpdate(s.feedName, s.state.Seed(records))
	return nil
}

func (s *Subscriber) Run(ctx context.Context) {
	defer s.reader.Close()

	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("kafka read error", "err", err, "feed", s.feedName)
			s.metrics.ObserveFeedError(s.feedName)
			s.agg.OnFeedError(s.feedName, err)
			time.Sleep(1 * time.Second)
			continue
		}

		if last, ok := s.seen[msg.Partition]; ok && msg.Offset <= last {
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		ok, err := s.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			s.logger.Error("inbox record failed", "err", err, "feed", s.feedName)
			span.RecordError(err)
			span.End()
			continue
		}
		if !ok {
			s.logger.Info("duplicate feed event ignored", "event_id", meta.EventID, "feed", s.feedName)
			s.metrics.ObserveDuplicate(s.feedName)
			s.seen[msg.Partition] = msg.Offset
			span.End()
			continue
		}

		var rec aggregator.Record
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			s.logger.Error("malformed feed record dropped", "err", err, "feed", s.feedName)
			s.seen[msg.Partition] = msg.Offset
			span.End()
			continue
		}

		if err := s.repo.UpsertRecord(ctxSpan, s.feedName, rec.String("id", meta.EventID), rec); err != nil {
			s.logger.Error("feed record persist failed", "err", err, "feed", s.feedName)
			span.RecordError(err)
			span.End()
			continue
		}

		s.agg.OnFeedUpdate(s.feedName, s.state.Upsert(rec))
		s.metrics.ObserveFeedUpdate(s.feedName)
		s.seen[msg.Partition] = msg.Offset
		span.End()
	}
}
