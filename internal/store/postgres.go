package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"cmdb-api/internal/apperr"
	"cmdb-api/internal/models"
)

const uniqueViolation = "23505"

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Postgres implements Store over database/sql with the pgx driver.
type Postgres struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgres(db *sql.DB, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{db: db, logger: logger.Named("store")}
}

func (p *Postgres) WithTx(ctx context.Context, fn func(Tx) error) error {
	return p.run(ctx, nil, fn)
}

func (p *Postgres) ReadTx(ctx context.Context, fn func(Tx) error) error {
	return p.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

func (p *Postgres) run(ctx context.Context, opts *sql.TxOptions, fn func(Tx) error) error {
	tx, err := p.db.BeginTx(ctx, opts)
	if err != nil {
		return apperr.Storage("begin tx", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&pgTx{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			p.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Storage("commit tx", err)
	}
	return nil
}

type pgTx struct {
	q querier
}

// wrap maps driver errors into the apperr taxonomy.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		msg := pgErr.Detail
		if msg == "" {
			msg = pgErr.Message
		}
		return apperr.Conflict("%s: %s", op, msg)
	}
	return apperr.Storage(op, err)
}

// wrapGet is wrap plus sql.ErrNoRows to NotFound.
func wrapGet(op, resource string, key any, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(resource, key)
	}
	return wrap(op, err)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func derefString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func int64Arg(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func (t *pgTx) LockAsset(ctx context.Context, serial string) error {
	_, err := t.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, serial)
	return wrap("lock asset", err)
}

// Quarantine

const quarantineColumns = `id, serial_number, payload, asset_type, manufacturer, model, ram_size,
	cpu_model, cpu_count, cpu_core_count, os_type, os_distribution, os_release, created_at, updated_at`

func scanQuarantine(s scanner, extra ...any) (*models.QuarantineRecord, error) {
	var (
		q                                     models.QuarantineRecord
		payload                               []byte
		assetType, manufacturer, model        sql.NullString
		cpuModel, osType, osDistro, osRelease sql.NullString
	)
	dest := []any{&q.ID, &q.SerialNumber, &payload, &assetType, &manufacturer, &model, &q.RAMSize,
		&cpuModel, &q.CPUCount, &q.CPUCoreCount, &osType, &osDistro, &osRelease, &q.CreatedAt, &q.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	q.Payload = payload
	q.AssetType = assetType.String
	q.Manufacturer = manufacturer.String
	q.Model = model.String
	q.CPUModel = cpuModel.String
	q.OSType = osType.String
	q.OSDistribution = osDistro.String
	q.OSRelease = osRelease.String
	return &q, nil
}

func (t *pgTx) UpsertQuarantine(ctx context.Context, rec *models.QuarantineRecord) error {
	s := rec.QuarantineSummary
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO quarantine_records (serial_number, payload, asset_type, manufacturer, model, ram_size,
			cpu_model, cpu_count, cpu_core_count, os_type, os_distribution, os_release)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (serial_number) DO UPDATE SET
			payload = EXCLUDED.payload,
			asset_type = EXCLUDED.asset_type,
			manufacturer = EXCLUDED.manufacturer,
			model = EXCLUDED.model,
			ram_size = EXCLUDED.ram_size,
			cpu_model = EXCLUDED.cpu_model,
			cpu_count = EXCLUDED.cpu_count,
			cpu_core_count = EXCLUDED.cpu_core_count,
			os_type = EXCLUDED.os_type,
			os_distribution = EXCLUDED.os_distribution,
			os_release = EXCLUDED.os_release,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		rec.SerialNumber, string(rec.Payload), nullIfEmpty(s.AssetType), nullIfEmpty(s.Manufacturer),
		nullIfEmpty(s.Model), s.RAMSize, nullIfEmpty(s.CPUModel), s.CPUCount, s.CPUCoreCount,
		nullIfEmpty(s.OSType), nullIfEmpty(s.OSDistribution), nullIfEmpty(s.OSRelease),
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	return wrap("upsert quarantine", err)
}

func (t *pgTx) GetQuarantine(ctx context.Context, id int64) (*models.QuarantineRecord, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+quarantineColumns+` FROM quarantine_records WHERE id = $1`, id)
	q, err := scanQuarantine(row)
	if err != nil {
		return nil, wrapGet("get quarantine", "quarantine record", id, err)
	}
	return q, nil
}

func (t *pgTx) GetQuarantineBySerial(ctx context.Context, serial string) (*models.QuarantineRecord, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+quarantineColumns+` FROM quarantine_records WHERE serial_number = $1`, serial)
	q, err := scanQuarantine(row)
	if err != nil {
		return nil, wrapGet("get quarantine", "quarantine record", serial, err)
	}
	return q, nil
}

func (t *pgTx) ListQuarantine(ctx context.Context, limit, offset int) ([]models.QuarantineRecord, int, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT `+quarantineColumns+`, COUNT(*) OVER() AS total_count
		FROM quarantine_records
		ORDER BY updated_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, wrap("list quarantine", err)
	}
	defer rows.Close()

	out := []models.QuarantineRecord{}
	var total int
	for rows.Next() {
		q, err := scanQuarantine(rows, &total)
		if err != nil {
			return nil, 0, wrap("scan quarantine", err)
		}
		out = append(out, *q)
	}
	return out, total, wrap("list quarantine", rows.Err())
}

func (t *pgTx) DeleteQuarantine(ctx context.Context, id int64) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM quarantine_records WHERE id = $1`, id)
	if err != nil {
		return wrap("delete quarantine", err)
	}
	return requireAffected(res, "quarantine record", id)
}

func requireAffected(res sql.Result, resource string, key any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Storage("rows affected", err)
	}
	if n == 0 {
		return apperr.NotFound(resource, key)
	}
	return nil
}

// Assets

const assetColumns = `id, asset_type, name, serial_number, status, manufacturer_id, manage_ip, approved_by, created_at, updated_at`

func scanAsset(s scanner) (*models.Asset, error) {
	var (
		a            models.Asset
		manufacturer sql.NullInt64
		manageIP     sql.NullString
		approvedBy   sql.NullInt64
	)
	if err := s.Scan(&a.ID, &a.AssetType, &a.Name, &a.SerialNumber, &a.Status,
		&manufacturer, &manageIP, &approvedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ManufacturerID = int64Ptr(manufacturer)
	a.ManageIP = stringPtr(manageIP)
	a.ApprovedBy = int64Ptr(approvedBy)
	return &a, nil
}

func (t *pgTx) CreateAsset(ctx context.Context, a *models.Asset) error {
	if a.Status == "" {
		a.Status = models.StatusOnline
	}
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO assets (asset_type, name, serial_number, status, manufacturer_id, manage_ip, approved_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		a.AssetType, a.Name, a.SerialNumber, a.Status, int64Arg(a.ManufacturerID), derefString(a.ManageIP), int64Arg(a.ApprovedBy),
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return wrap("create asset", err)
}

func (t *pgTx) UpdateAsset(ctx context.Context, a *models.Asset) error {
	err := t.q.QueryRowContext(ctx, `
		UPDATE assets
		SET status = $2, manufacturer_id = $3, manage_ip = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Status, int64Arg(a.ManufacturerID), derefString(a.ManageIP),
	).Scan(&a.UpdatedAt)
	return wrapGet("update asset", "asset", a.ID, err)
}

func (t *pgTx) GetAsset(ctx context.Context, id int64) (*models.Asset, error) {
	a, err := scanAsset(t.q.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id))
	if err != nil {
		return nil, wrapGet("get asset", "asset", id, err)
	}
	return a, nil
}

func (t *pgTx) GetAssetBySerial(ctx context.Context, serial string) (*models.Asset, error) {
	a, err := scanAsset(t.q.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE serial_number = $1`, serial))
	if err != nil {
		return nil, wrapGet("get asset", "asset", serial, err)
	}
	return a, nil
}

// ownedTables are deleted before the asset row itself.
var ownedTables = []string{
	"rams", "disks", "nics", "cpus",
	"servers", "network_devices", "storage_devices", "security_devices", "software",
}

func (t *pgTx) DeleteAsset(ctx context.Context, id int64) error {
	for _, table := range ownedTables {
		if _, err := t.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE asset_id = $1`, id); err != nil {
			return wrap("delete "+table, err)
		}
	}
	res, err := t.q.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return wrap("delete asset", err)
	}
	return requireAffected(res, "asset", id)
}

// Manufacturers

func (t *pgTx) GetOrCreateManufacturer(ctx context.Context, name string) (*models.Manufacturer, error) {
	var m models.Manufacturer
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO manufacturers (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, created_at`, name,
	).Scan(&m.ID, &m.Name, &m.CreatedAt)
	if err != nil {
		return nil, wrap("get or create manufacturer", err)
	}
	return &m, nil
}

func (t *pgTx) GetManufacturer(ctx context.Context, id int64) (*models.Manufacturer, error) {
	var m models.Manufacturer
	err := t.q.QueryRowContext(ctx, `SELECT id, name, created_at FROM manufacturers WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.CreatedAt)
	if err != nil {
		return nil, wrapGet("get manufacturer", "manufacturer", id, err)
	}
	return &m, nil
}

func (t *pgTx) ListManufacturers(ctx context.Context) ([]models.Manufacturer, error) {
	rows, err := t.q.QueryContext(ctx, `SELECT id, name, created_at FROM manufacturers ORDER BY name ASC`)
	if err != nil {
		return nil, wrap("list manufacturers", err)
	}
	defer rows.Close()

	out := []models.Manufacturer{}
	for rows.Next() {
		var m models.Manufacturer
		if err := rows.Scan(&m.ID, &m.Name, &m.CreatedAt); err != nil {
			return nil, wrap("scan manufacturer", err)
		}
		out = append(out, m)
	}
	return out, wrap("list manufacturers", rows.Err())
}

// Events

func (t *pgTx) AppendEvent(ctx context.Context, e *models.EventLog) error {
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO event_logs (kind, name, asset_id, quarantine_id, actor_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		e.Kind, e.Name, int64Arg(e.AssetID), int64Arg(e.QuarantineID), int64Arg(e.ActorID), e.Detail,
	).Scan(&e.ID, &e.CreatedAt)
	return wrap("append event", err)
}

func (t *pgTx) ListEvents(ctx context.Context, f models.EventFilter) ([]models.EventLog, int, error) {
	where := ""
	args := []any{}
	if f.AssetID > 0 {
		args = append(args, f.AssetID)
		where += fmt.Sprintf(" AND asset_id = $%d", len(args))
	}
	if f.QuarantineID > 0 {
		args = append(args, f.QuarantineID)
		where += fmt.Sprintf(" AND quarantine_id = $%d", len(args))
	}
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT id, kind, name, asset_id, quarantine_id, actor_id, detail, created_at, COUNT(*) OVER() AS total_count
		FROM event_logs
		WHERE TRUE%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, wrap("list events", err)
	}
	defer rows.Close()

	out := []models.EventLog{}
	var total int
	for rows.Next() {
		var (
			e                     models.EventLog
			assetID, qID, actorID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Name, &assetID, &qID, &actorID, &e.Detail, &e.CreatedAt, &total); err != nil {
			return nil, 0, wrap("scan event", err)
		}
		e.AssetID = int64Ptr(assetID)
		e.QuarantineID = int64Ptr(qID)
		e.ActorID = int64Ptr(actorID)
		out = append(out, e)
	}
	return out, total, wrap("list events", rows.Err())
}
