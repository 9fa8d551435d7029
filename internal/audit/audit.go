// Package audit records reconciliation outcomes in the event log.
package audit

import (
	"context"

	"go.uber.org/zap"

	"cmdb-api/internal/models"
	"cmdb-api/internal/store"
)

// Event is one outcome reported by the reconciliation engine.
type Event struct {
	Kind         models.EventKind
	Name         string
	AssetID      int64
	QuarantineID int64
	ActorID      int64
	Detail       string
}

// Sink consumes outcome events. A sink failure never changes the outcome of
// the operation that produced the event.
type Sink interface {
	RecordEvent(ctx context.Context, e Event) error
}

// StoreSink appends events to the event log in their own transaction.
type StoreSink struct {
	store  store.Store
	logger *zap.Logger
}

func NewStoreSink(s store.Store, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{store: s, logger: logger.Named("audit")}
}

func (s *StoreSink) RecordEvent(ctx context.Context, e Event) error {
	row := e.row()
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.AppendEvent(ctx, row)
	})
	if err != nil {
		s.logger.Error("record event failed",
			zap.String("kind", string(e.Kind)),
			zap.String("name", e.Name),
			zap.Error(err),
		)
		return err
	}
	s.logger.Debug("event recorded",
		zap.Int64("event_id", row.ID),
		zap.String("kind", string(e.Kind)),
		zap.String("name", e.Name),
	)
	return nil
}

func (e Event) row() *models.EventLog {
	return &models.EventLog{
		Kind:         e.Kind,
		Name:         e.Name,
		AssetID:      optional(e.AssetID),
		QuarantineID: optional(e.QuarantineID),
		ActorID:      optional(e.ActorID),
		Detail:       e.Detail,
	}
}

func optional(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// Nop discards events.
type Nop struct{}

func (Nop) RecordEvent(context.Context, Event) error { return nil }
