package feed

import (
	"context"
	"encoding/json"

	"github.com/kbrhealth/carebook/libs/db"
	"github.com/kbrhealth/carebook/services/dashboard-service/internal/aggregator"
)

// Repository keeps the dashboard's own copy of every accepted feed record,
// so a restart rebuilds feed state without replaying the topics.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) UpsertRecord(ctx context.Context, feedName, recordID string, record aggregator.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO feed_records (feed, record_id, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (feed, record_id)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
	`, feedName, recordID, payload)
	return err
}

// LoadFeed returns the stored records in first-seen order.
func (r *Repository) LoadFeed(ctx context.Context, feedName string) ([]aggregator.Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT payload
		FROM feed_records
		WHERE feed = $1
		ORDER BY id
	`, feedName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []aggregator.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec aggregator.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
