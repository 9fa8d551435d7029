// Package reconcile stages agent reports in the quarantine zone and
// reconciles approved or updated reports against the asset records.
package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cmdb-api/internal/apperr"
	"cmdb-api/internal/audit"
	"cmdb-api/internal/models"
	"cmdb-api/internal/store"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Engine is the reconciliation core. It is safe for concurrent use; work on
// one serial number is serialized.
type Engine struct {
	store   store.Store
	sink    audit.Sink
	logger  *zap.Logger
	metrics *Metrics
	locks   *keyedMutex
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSink replaces the default sink, which writes to the engine's store.
func WithSink(s audit.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		logger:  zap.NewNop(),
		metrics: NewMetrics(nil),
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("reconcile")
	if e.sink == nil {
		e.sink = audit.NewStoreSink(s, e.logger)
	}
	return e
}

// IngestAction says what IngestReport did with a report.
type IngestAction string

const (
	ActionStaged  IngestAction = "staged"
	ActionUpdated IngestAction = "updated"
)

type IngestResult struct {
	Action       IngestAction `json:"action"`
	SerialNumber string       `json:"serial_number"`
	QuarantineID int64        `json:"quarantine_id,omitempty"`
	AssetID      int64        `json:"asset_id,omitempty"`
}

// StageReport upserts payload into the quarantine zone by serial number.
// serial overrides the serial carried in the payload when non-empty.
func (e *Engine) StageReport(ctx context.Context, serial string, payload []byte) (*models.QuarantineRecord, error) {
	r, err := models.ParseReport(payload)
	if err != nil {
		return nil, err
	}
	if serial == "" {
		serial = r.Serial()
	}
	if serial == "" {
		return nil, apperr.ValidationField("serial_number", "missing serial number")
	}

	unlock := e.locks.Lock(serial)
	defer unlock()

	rec := quarantineRecord(serial, payload, r)
	err = e.lockedTx(serial)(ctx, func(tx store.Tx) error {
		return tx.UpsertQuarantine(ctx, rec)
	})
	if err != nil {
		e.logger.Error("stage report failed", zap.String("serial_number", serial), zap.Error(err))
		return nil, err
	}
	e.staged(rec)
	return rec, nil
}

// IngestReport updates the approved asset with the report's serial number,
// or stages the report when no such asset exists yet. The lookup and the
// staging write happen under the serial's lock, so a concurrent approval
// cannot leave a quarantine record behind for an approved serial.
func (e *Engine) IngestReport(ctx context.Context, payload []byte) (*IngestResult, error) {
	r, err := models.ParseReport(payload)
	if err != nil {
		return nil, err
	}
	serial := r.Serial()
	if serial == "" {
		return nil, apperr.ValidationField("serial_number", "missing serial number")
	}

	unlock := e.locks.Lock(serial)
	defer unlock()

	var asset *models.Asset
	rec := quarantineRecord(serial, payload, r)
	err = e.lockedTx(serial)(ctx, func(tx store.Tx) error {
		a, err := tx.GetAssetBySerial(ctx, serial)
		switch {
		case err == nil:
			asset = a
			return nil
		case !apperr.IsNotFound(err):
			return err
		}
		return tx.UpsertQuarantine(ctx, rec)
	})
	if err != nil {
		e.logger.Error("ingest report failed", zap.String("serial_number", serial), zap.Error(err))
		return nil, err
	}

	if asset != nil {
		if _, err := e.applyReport(ctx, asset, payload); err != nil {
			return nil, err
		}
		return &IngestResult{Action: ActionUpdated, SerialNumber: serial, AssetID: asset.ID}, nil
	}
	e.staged(rec)
	return &IngestResult{Action: ActionStaged, SerialNumber: serial, QuarantineID: rec.ID}, nil
}

func quarantineRecord(serial string, payload []byte, r *models.Report) *models.QuarantineRecord {
	return &models.QuarantineRecord{
		SerialNumber:      serial,
		Payload:           append([]byte(nil), payload...),
		QuarantineSummary: r.Summary(),
	}
}

func (e *Engine) staged(rec *models.QuarantineRecord) {
	e.metrics.staged.Inc()
	e.logger.Info("report staged",
		zap.String("serial_number", rec.SerialNumber),
		zap.Int64("quarantine_id", rec.ID),
		zap.String("asset_type", rec.AssetType),
	)
}

// ListPendingApprovals pages through the quarantine zone, newest first.
func (e *Engine) ListPendingApprovals(ctx context.Context, limit, offset int) ([]models.QuarantineListItem, int, error) {
	limit, offset = clampPage(limit, offset)
	var (
		recs  []models.QuarantineRecord
		total int
	)
	err := e.store.ReadTx(ctx, func(tx store.Tx) error {
		var err error
		recs, total, err = tx.ListQuarantine(ctx, limit, offset)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	items := make([]models.QuarantineListItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, rec.ListItem())
	}
	return items, total, nil
}

// GetAsset loads an asset with its manufacturer, detail and components.
func (e *Engine) GetAsset(ctx context.Context, id int64) (*models.AssetGraph, error) {
	g := &models.AssetGraph{}
	err := e.store.ReadTx(ctx, func(tx store.Tx) error {
		a, err := tx.GetAsset(ctx, id)
		if err != nil {
			return err
		}
		g.Asset = *a
		if a.ManufacturerID != nil {
			if g.Manufacturer, err = tx.GetManufacturer(ctx, *a.ManufacturerID); err != nil {
				return err
			}
		}
		if g.Detail, err = tx.GetDetail(ctx, id, a.AssetType); err != nil && !apperr.IsNotFound(err) {
			return err
		}
		if g.CPU, err = tx.GetCPU(ctx, id); err != nil && !apperr.IsNotFound(err) {
			return err
		}
		if g.RAM, err = tx.ListRAM(ctx, id); err != nil {
			return err
		}
		if g.Disks, err = tx.ListDisks(ctx, id); err != nil {
			return err
		}
		g.NICs, err = tx.ListNICs(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListEvents pages through the event log, newest first.
func (e *Engine) ListEvents(ctx context.Context, f models.EventFilter) ([]models.EventLog, int, error) {
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	var (
		events []models.EventLog
		total  int
	)
	err := e.store.ReadTx(ctx, func(tx store.Tx) error {
		var err error
		events, total, err = tx.ListEvents(ctx, f)
		return err
	})
	return events, total, err
}

func (e *Engine) ListManufacturers(ctx context.Context) ([]models.Manufacturer, error) {
	var out []models.Manufacturer
	err := e.store.ReadTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListManufacturers(ctx)
		return err
	})
	return out, err
}

// lockedTx runs fn in a transaction holding the database lock for serial.
// Callers hold the in-process lock for the same serial. Staging, approval
// and update all write through it.
func (e *Engine) lockedTx(serial string) txRunner {
	return func(ctx context.Context, fn func(store.Tx) error) error {
		return e.store.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.LockAsset(ctx, serial); err != nil {
				return err
			}
			return fn(tx)
		})
	}
}

func (e *Engine) record(ctx context.Context, ev audit.Event) {
	// the sink logs its own failures
	_ = e.sink.RecordEvent(ctx, ev)
}

func (e *Engine) recordChanges(cs []changes) {
	for _, c := range cs {
		e.metrics.record(c)
	}
}

func changeFields(cs []changes) []zap.Field {
	fields := make([]zap.Field, 0, len(cs))
	for _, c := range cs {
		if c.empty() {
			continue
		}
		fields = append(fields, zap.String(c.kind, fmt.Sprintf("+%d ~%d -%d", c.created, c.updated, c.deleted)))
	}
	return fields
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
