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

// SubmitUpdateReport reconciles an approved asset against a fresh report.
// Each step commits on its own: a failing step leaves the earlier ones in
// place, records update_failed and returns false.
func (e *Engine) SubmitUpdateReport(ctx context.Context, assetID int64, payload []byte) (bool, error) {
	var asset *models.Asset
	err := e.store.ReadTx(ctx, func(tx store.Tx) error {
		var err error
		asset, err = tx.GetAsset(ctx, assetID)
		return err
	})
	if err != nil {
		return false, err
	}

	unlock := e.locks.Lock(asset.SerialNumber)
	defer unlock()
	return e.applyReport(ctx, asset, payload)
}

// applyReport runs the update path. Callers hold the in-process lock for
// asset's serial number.
func (e *Engine) applyReport(ctx context.Context, asset *models.Asset, payload []byte) (bool, error) {
	r, err := models.ParseReport(payload)
	reportType := string(asset.AssetType)
	if err == nil && r.AssetType != "" {
		reportType = r.AssetType
	}
	log := e.logger.With(
		zap.Int64("asset_id", asset.ID),
		zap.String("serial_number", asset.SerialNumber),
		zap.String("asset_type", reportType),
	)

	var cs []changes
	if err == nil {
		cs, err = e.update(ctx, asset, r)
	}
	e.recordChanges(cs)
	e.metrics.update(typeLabel(reportType), err)

	if err != nil {
		log.Warn("update failed", append(changeFields(cs), zap.Error(err))...)
		e.record(ctx, audit.Event{
			Kind:    models.EventUpdateFailed,
			Name:    fmt.Sprintf("%s <%s>: Update failed", reportType, asset.SerialNumber),
			AssetID: asset.ID,
			Detail:  "Update failed!\n" + err.Error(),
		})
		return false, err
	}

	log.Info("asset updated", changeFields(cs)...)
	e.record(ctx, audit.Event{
		Kind:    models.EventUpdate,
		Name:    fmt.Sprintf("%s <%s>: Data updated", reportType, asset.SerialNumber),
		AssetID: asset.ID,
		Detail:  "Update success!",
	})
	return true, nil
}

func (e *Engine) update(ctx context.Context, asset *models.Asset, r *models.Report) ([]changes, error) {
	assetType, h, err := handlerFor(r.AssetType)
	if r.AssetType == "" {
		assetType, h, err = handlerFor(string(asset.AssetType))
	}
	if err != nil {
		return nil, err
	}
	if assetType != asset.AssetType {
		return nil, apperr.ValidationField("asset_type",
			fmt.Sprintf("report type %s does not match asset type %s", assetType, asset.AssetType))
	}
	if serial := r.Serial(); serial != "" && serial != asset.SerialNumber {
		return nil, apperr.ValidationField("serial_number",
			fmt.Sprintf("report serial %s does not match asset serial %s", serial, asset.SerialNumber))
	}
	if err := r.Check(); err != nil {
		return nil, err
	}

	run := e.lockedTx(asset.SerialNumber)

	// manufacturer: get-or-create by name, cleared when absent
	var manufacturerID *int64
	if r.Manufacturer != "" {
		err := run(ctx, func(tx store.Tx) error {
			m, err := tx.GetOrCreateManufacturer(ctx, r.Manufacturer)
			if err != nil {
				return err
			}
			manufacturerID = &m.ID
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	cs, err := h.update(ctx, run, asset, r)
	if err != nil {
		return cs, err
	}

	asset.ManufacturerID = manufacturerID
	asset.ManageIP = stringPtr(r.ManageIP)
	err = run(ctx, func(tx store.Tx) error {
		return tx.UpdateAsset(ctx, asset)
	})
	return cs, err
}
