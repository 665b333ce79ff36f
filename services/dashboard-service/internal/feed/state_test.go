package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbrhealth/carebook/services/dashboard-service/internal/aggregator"
)

func TestUpsertKeepsFirstSeenOrder(t *testing.T) {
	s := NewState()
	s.Upsert(aggregator.Record{"id": "a", "v": float64(1)})
	s.Upsert(aggregator.Record{"id": "b", "v": float64(1)})
	records := s.Upsert(aggregator.Record{"id": "a", "v": float64(2)})

	require.Len(t, records, 2, "redelivered id replaces in place")
	assert.Equal(t, "a", records[0].String("id", ""))
	assert.Equal(t, 2.0, records[0].Number("v", 0))
	assert.Equal(t, "b", records[1].String("id", ""))
}

func TestSeedReplacesState(t *testing.T) {
	s := NewState()
	s.Upsert(aggregator.Record{"id": "stale"})
	records := s.Seed([]aggregator.Record{{"id": "x"}, {"id": "y"}})

	require.Len(t, records, 2)
	assert.Equal(t, "x", records[0].String("id", ""))
}

func TestRecordsWithoutIDAccumulate(t *testing.T) {
	s := NewState()
	s.Upsert(aggregator.Record{"v": float64(1)})
	records := s.Upsert(aggregator.Record{"v": float64(2)})
	assert.Len(t, records, 2)
}

func TestFeedForTopic(t *testing.T) {
	for topic, feed := range map[string]string{
		TopicAppointments: aggregator.FeedAppointments,
		TopicPayments:     aggregator.FeedPayments,
		TopicDoctors:      aggregator.FeedDoctors,
		TopicUsers:        aggregator.FeedUsers,
	} {
		got, ok := FeedForTopic(topic)
		require.True(t, ok, topic)
		assert.Equal(t, feed, got)
	}
	_, ok := FeedForTopic("records.unknown.v1")
	assert.False(t, ok)
}
