package reconcile

import (
	"context"

	"cmdb-api/internal/apperr"
	"cmdb-api/internal/models"
	"cmdb-api/internal/store"
)

// handler reconciles reports of one asset type.
type handler interface {
	// create builds the asset's detail and components inside tx.
	create(ctx context.Context, tx store.Tx, a *models.Asset, r *models.Report) ([]changes, error)
	// update applies r to an existing asset, one transaction per step.
	// Steps committed before a failure stay applied.
	update(ctx context.Context, run txRunner, a *models.Asset, r *models.Report) ([]changes, error)
}

// txRunner runs fn in a fresh transaction holding the asset lock.
type txRunner func(ctx context.Context, fn func(store.Tx) error) error

type step func(ctx context.Context, tx store.Tx, assetID int64, r *models.Report) (changes, error)

// variant is a handler built from a detail constructor and an ordered set of
// component steps.
type variant struct {
	detail func(r *models.Report, assetID int64) models.Detail
	steps  []step
}

var handlers = map[models.AssetType]handler{
	models.AssetTypeServer: variant{
		detail: serverDetail,
		steps:  []step{cpuStep, ramStep, diskStep, nicStep},
	},
	models.AssetTypeNetworkDevice: variant{
		detail: networkDetail,
		steps:  []step{nicStep},
	},
	models.AssetTypeStorageDevice: variant{
		detail: storageDetail,
		steps:  []step{diskStep, nicStep},
	},
	models.AssetTypeSecurityDevice: variant{
		detail: securityDetail,
		steps:  []step{nicStep},
	},
	models.AssetTypeSoftware: variant{
		detail: softwareDetail,
	},
}

// handlerFor resolves the handler for a declared asset type.
func handlerFor(assetType string) (models.AssetType, handler, error) {
	t, ok := models.ParseAssetType(assetType)
	if !ok {
		return t, nil, apperr.ValidationField("asset_type", "unsupported asset type")
	}
	h, ok := handlers[t]
	if !ok {
		return t, nil, apperr.ValidationField("asset_type", "unsupported asset type")
	}
	return t, h, nil
}

func (v variant) create(ctx context.Context, tx store.Tx, a *models.Asset, r *models.Report) ([]changes, error) {
	if err := tx.SaveDetail(ctx, a.ID, v.detail(r, a.ID)); err != nil {
		return nil, err
	}
	var out []changes
	for _, s := range v.steps {
		c, err := s(ctx, tx, a.ID, r)
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (v variant) update(ctx context.Context, run txRunner, a *models.Asset, r *models.Report) ([]changes, error) {
	err := run(ctx, func(tx store.Tx) error {
		return tx.SaveDetail(ctx, a.ID, v.detail(r, a.ID))
	})
	if err != nil {
		return nil, err
	}
	var out []changes
	for _, s := range v.steps {
		var c changes
		err := run(ctx, func(tx store.Tx) error {
			var err error
			c, err = s(ctx, tx, a.ID, r)
			return err
		})
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

func cpuStep(ctx context.Context, tx store.Tx, assetID int64, r *models.Report) (changes, error) {
	c := changes{kind: kindCPU}
	_, err := tx.GetCPU(ctx, assetID)
	switch {
	case err == nil:
		c.updated = 1
	case apperr.IsNotFound(err):
		c.created = 1
	default:
		return c, err
	}
	if err := tx.SaveCPU(ctx, r.CPU(assetID)); err != nil {
		return changes{kind: kindCPU}, err
	}
	return c, nil
}

func ramStep(ctx context.Context, tx store.Tx, assetID int64, r *models.Report) (changes, error) {
	return syncRAM(ctx, tx, assetID, r.RAM)
}

func diskStep(ctx context.Context, tx store.Tx, assetID int64, r *models.Report) (changes, error) {
	return syncDisks(ctx, tx, assetID, r.Disks)
}

func nicStep(ctx context.Context, tx store.Tx, assetID int64, r *models.Report) (changes, error) {
	return syncNICs(ctx, tx, assetID, r.NICs)
}

func serverDetail(r *models.Report, assetID int64) models.Detail {
	return models.Server{
		AssetID:        assetID,
		SubAssetType:   r.SubAssetType,
		CreatedBy:      "auto",
		Model:          r.Model,
		RaidType:       r.RaidType,
		OSType:         r.OSType,
		OSDistribution: r.OSDistribution,
		OSRelease:      r.OSRelease,
	}
}

func networkDetail(r *models.Report, assetID int64) models.Detail {
	return models.NetworkDevice{
		AssetID:      assetID,
		SubAssetType: r.SubAssetType,
		Model:        r.Model,
		VlanIP:       r.VlanIP,
		IntranetIP:   r.IntranetIP,
		Firmware:     r.Firmware,
		PortNum:      r.PortNum,
		DeviceDetail: r.DeviceDetail,
	}
}

func storageDetail(r *models.Report, assetID int64) models.Detail {
	return models.StorageDevice{AssetID: assetID, SubAssetType: r.SubAssetType, Model: r.Model}
}

func securityDetail(r *models.Report, assetID int64) models.Detail {
	return models.SecurityDevice{AssetID: assetID, SubAssetType: r.SubAssetType, Model: r.Model}
}

func softwareDetail(r *models.Report, assetID int64) models.Detail {
	return models.Software{
		AssetID:      assetID,
		SubAssetType: r.SubAssetType,
		LicenseNum:   r.LicenseNum,
		Version:      r.Version,
	}
}
