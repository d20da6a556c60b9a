// Package events defines the envelope for state-change notifications consumed by
// external indexers and UI pollers.
//
// Services append envelopes inside the same transaction as the state change they
// describe, so a rolled-back operation never leaves an event behind (transactional
// outbox). A relay later drains pending envelopes to external sinks.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"meritledger/pkg/requestcontext"
)

// Type names a state transition.
type Type string

const (
	TypeCertificateIssued  Type = "certificate_issued"
	TypeCertificateRevoked Type = "certificate_revoked"

	TypeScholarshipCreated Type = "scholarship_created"
	TypeScholarshipClaimed Type = "scholarship_claimed"
	TypeScholarshipClosed  Type = "scholarship_closed"

	TypeRoleGranted      Type = "role_granted"
	TypeRoleRevoked      Type = "role_revoked"
	TypeRoleAdminChanged Type = "role_admin_changed"
)

// Category groups event types by the component that owns them. Sinks use it to
// route (e.g. the UI only polls escrow events).
type Category string

const (
	CategoryRegistry Category = "registry"
	CategoryEscrow   Category = "escrow"
	CategoryAccess   Category = "access"
)

var typeCategories = map[Type]Category{
	TypeCertificateIssued:  CategoryRegistry,
	TypeCertificateRevoked: CategoryRegistry,
	TypeScholarshipCreated: CategoryEscrow,
	TypeScholarshipClaimed: CategoryEscrow,
	TypeScholarshipClosed:  CategoryEscrow,
	TypeRoleGranted:        CategoryAccess,
	TypeRoleRevoked:        CategoryAccess,
	TypeRoleAdminChanged:   CategoryAccess,
}

// Category returns the owning category. Unknown types default to CategoryRegistry.
func (t Type) Category() Category {
	if c, ok := typeCategories[t]; ok {
		return c
	}
	return CategoryRegistry
}

// Event is the transport-agnostic envelope. Seq is assigned by the store on
// append and is strictly increasing in commit order.
type Event struct {
	Seq         uint64          `json:"seq"`
	ID          uuid.UUID       `json:"id"`
	Type        Type            `json:"type"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	RequestID   string          `json:"request_id,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// New builds an envelope for payload, stamping time and request id from ctx.
func New(ctx context.Context, typ Type, aggregateID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Event{
		ID:          uuid.New(),
		Type:        typ,
		AggregateID: aggregateID,
		OccurredAt:  requestcontext.Now(ctx).UTC(),
		RequestID:   requestcontext.RequestID(ctx),
		Payload:     raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Appender is the write side services depend on.
type Appender interface {
	Append(ctx context.Context, event Event) error
}

// Store is the outbox: an append-only log with a published marker.
type Store interface {
	Appender
	List(ctx context.Context, afterSeq uint64, limit int) ([]Event, error)
	Pending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, seqs []uint64) error
}

// Publisher delivers a batch of envelopes to an external sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, batch []Event) error
}

// Emit builds an envelope and appends it. Call it inside the transaction that
// performs the state change.
func Emit(ctx context.Context, appender Appender, typ Type, aggregateID string, payload any) error {
	if appender == nil {
		return nil
	}
	ev, err := New(ctx, typ, aggregateID, payload)
	if err != nil {
		return err
	}
	if err := appender.Append(ctx, ev); err != nil {
		return fmt.Errorf("append %s event: %w", typ, err)
	}
	return nil
}
