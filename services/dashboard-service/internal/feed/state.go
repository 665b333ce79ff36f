package feed

import (
	"strconv"
	"sync"

	"github.com/kbrhealth/carebook/services/dashboard-service/internal/aggregator"
)

// State accumulates one feed's records across deliveries. Kafka carries one
// record per message while the aggregator consumes whole-feed arrays, so
// the subscriber upserts each record here and hands the rebuilt array down.
// Records are keyed by their "id" field; a redelivered id replaces the
// earlier version in place, keeping first-seen order.
type State struct {
	mu    sync.Mutex
	order []string
	byID  map[string]aggregator.Record
}

func NewState() *State {
	return &State{byID: map[string]aggregator.Record{}}
}

// Seed replaces the state wholesale, used for the initial load.
func (s *State) Seed(records []aggregator.Record) []aggregator.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.byID = map[string]aggregator.Record{}
	for _, r := range records {
		s.upsertLocked(r)
	}
	return s.snapshotLocked()
}

// Upsert merges one record and returns the rebuilt array.
func (s *State) Upsert(r aggregator.Record) []aggregator.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(r)
	return s.snapshotLocked()
}

func (s *State) upsertLocked(r aggregator.Record) {
	id := r.String("id", "")
	if id == "" {
		// Records without an id cannot be deduplicated; append under a
		// positional key.
		id = "_anon_" + strconv.Itoa(len(s.order))
	}
	if _, ok := s.byID[id]; !ok {
		s.order = append(s.order, id)
	}
	s.byID[id] = r
}

func (s *State) snapshotLocked() []aggregator.Record {
	out := make([]aggregator.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
