package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"meritledger/pkg/platform/events"
	"meritledger/pkg/platform/tx"
)

// Store is the Postgres outbox. Appends share the caller's transaction when
// one is present in ctx, so events commit or roll back with the state change.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event events.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	query := `
		INSERT INTO outbox (id, event_type, category, aggregate_id, payload, request_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Querier(ctx, s.db).ExecContext(ctx, query,
		event.ID,
		string(event.Type),
		string(event.Type.Category()),
		event.AggregateID,
		[]byte(event.Payload),
		event.RequestID,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, afterSeq uint64, limit int) ([]events.Event, error) {
	query := `
		SELECT seq, id, event_type, aggregate_id, payload, request_id, occurred_at
		FROM outbox
		WHERE seq > $1
		ORDER BY seq
		LIMIT $2
	`
	return s.query(ctx, query, int64(afterSeq), limitOrAll(limit))
}

func (s *Store) Pending(ctx context.Context, limit int) ([]events.Event, error) {
	query := `
		SELECT seq, id, event_type, aggregate_id, payload, request_id, occurred_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
	`
	return s.query(ctx, query, limitOrAll(limit))
}

func (s *Store) MarkPublished(ctx context.Context, seqs []uint64) error {
	if len(seqs) == 0 {
		return nil
	}
	ids := make([]int64, len(seqs))
	for i, seq := range seqs {
		ids[i] = int64(seq)
	}
	query := `UPDATE outbox SET published_at = NOW() WHERE seq = ANY($1)`
	if _, err := tx.Querier(ctx, s.db).ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]events.Event, error) {
	rows, err := tx.Querier(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	out := []events.Event{}
	for rows.Next() {
		var (
			ev        events.Event
			seq       int64
			typ       string
			payload   []byte
			requestID sql.NullString
		)
		if err := rows.Scan(&seq, &ev.ID, &typ, &ev.AggregateID, &payload, &requestID, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		ev.Seq = uint64(seq)
		ev.Type = events.Type(typ)
		ev.Payload = payload
		ev.RequestID = requestID.String
		ev.OccurredAt = ev.OccurredAt.UTC()
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return out, nil
}

func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
