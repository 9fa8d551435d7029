// Package store persists assets, their components, the quarantine zone and
// the event log. Every read and write happens inside a transaction obtained
// from a Store.
package store

import (
	"context"

	"cmdb-api/internal/models"
)

// Store hands out transactions. fn's error rolls the transaction back and is
// returned unchanged; a nil error commits.
type Store interface {
	WithTx(ctx context.Context, fn func(Tx) error) error
	ReadTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the full set of operations available inside one transaction.
type Tx interface {
	// LockAsset serializes work on one serial number until the transaction ends.
	LockAsset(ctx context.Context, serial string) error

	QuarantineRepo
	AssetRepo
	ComponentRepo
	EventRepo
}

type QuarantineRepo interface {
	// UpsertQuarantine inserts rec or overwrites the record with the same
	// serial number. rec.ID and timestamps are filled in.
	UpsertQuarantine(ctx context.Context, rec *models.QuarantineRecord) error
	GetQuarantine(ctx context.Context, id int64) (*models.QuarantineRecord, error)
	GetQuarantineBySerial(ctx context.Context, serial string) (*models.QuarantineRecord, error)
	ListQuarantine(ctx context.Context, limit, offset int) ([]models.QuarantineRecord, int, error)
	DeleteQuarantine(ctx context.Context, id int64) error
}

type AssetRepo interface {
	CreateAsset(ctx context.Context, a *models.Asset) error
	UpdateAsset(ctx context.Context, a *models.Asset) error
	GetAsset(ctx context.Context, id int64) (*models.Asset, error)
	GetAssetBySerial(ctx context.Context, serial string) (*models.Asset, error)
	// DeleteAsset removes the asset and every row it owns.
	DeleteAsset(ctx context.Context, id int64) error

	GetOrCreateManufacturer(ctx context.Context, name string) (*models.Manufacturer, error)
	GetManufacturer(ctx context.Context, id int64) (*models.Manufacturer, error)
	ListManufacturers(ctx context.Context) ([]models.Manufacturer, error)

	SaveDetail(ctx context.Context, assetID int64, d models.Detail) error
	GetDetail(ctx context.Context, assetID int64, t models.AssetType) (models.Detail, error)
}

type ComponentRepo interface {
	SaveCPU(ctx context.Context, cpu models.CPU) error
	GetCPU(ctx context.Context, assetID int64) (*models.CPU, error)

	ListRAM(ctx context.Context, assetID int64) ([]models.RAM, error)
	UpsertRAM(ctx context.Context, r models.RAM) error
	DeleteRAM(ctx context.Context, assetID int64, slots []string) error

	ListDisks(ctx context.Context, assetID int64) ([]models.Disk, error)
	UpsertDisk(ctx context.Context, d models.Disk) error
	DeleteDisks(ctx context.Context, assetID int64, serials []string) error

	ListNICs(ctx context.Context, assetID int64) ([]models.NIC, error)
	UpsertNIC(ctx context.Context, n models.NIC) error
	DeleteNICs(ctx context.Context, assetID int64, keys []models.NICKey) error
}

type EventRepo interface {
	AppendEvent(ctx context.Context, e *models.EventLog) error
	ListEvents(ctx context.Context, f models.EventFilter) ([]models.EventLog, int, error)
}
