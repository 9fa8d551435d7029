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

// ApprovalResult is the outcome of approving one quarantine record.
type ApprovalResult struct {
	QuarantineID int64  `json:"quarantine_id"`
	AssetID      int64  `json:"asset_id,omitempty"`
	Error        string `json:"error,omitempty"`
	Err          error  `json:"-"`
}

// Approve promotes a quarantine record to an asset. The asset graph is
// created in one transaction; on failure nothing of it remains, the record
// stays in quarantine and an approve_failed event is recorded.
func (e *Engine) Approve(ctx context.Context, quarantineID, approver int64) (*models.Asset, error) {
	var stale *models.QuarantineRecord
	err := e.store.ReadTx(ctx, func(tx store.Tx) error {
		var err error
		stale, err = tx.GetQuarantine(ctx, quarantineID)
		return err
	})
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(stale.SerialNumber)
	defer unlock()

	rec, asset, cs, gone, err := e.create(ctx, stale, approver)
	log := e.logger.With(
		zap.Int64("quarantine_id", rec.ID),
		zap.String("serial_number", rec.SerialNumber),
		zap.String("asset_type", rec.AssetType),
	)
	if gone {
		// approved by a concurrent request after we read it
		log.Info("quarantine record already approved")
		return nil, err
	}
	e.metrics.approval(typeLabel(rec.AssetType), err)
	if err != nil {
		log.Warn("approve failed", zap.Error(err))
		e.record(ctx, audit.Event{
			Kind:         models.EventApproveFailed,
			Name:         fmt.Sprintf("%s <%s>: Approve failed", rec.AssetType, rec.SerialNumber),
			QuarantineID: rec.ID,
			ActorID:      approver,
			Detail:       "Approve failed!\n" + err.Error(),
		})
		return nil, err
	}

	e.recordChanges(cs)
	log.Info("asset approved", append(changeFields(cs), zap.Int64("asset_id", asset.ID))...)
	e.record(ctx, audit.Event{
		Kind:    models.EventUpline,
		Name:    fmt.Sprintf("%s <%s>: Upline", asset.Name, asset.SerialNumber),
		AssetID: asset.ID,
		ActorID: approver,
		Detail:  "Asset online success!",
	})
	return asset, nil
}

// ApproveMany approves each record independently.
func (e *Engine) ApproveMany(ctx context.Context, ids []int64, approver int64) []ApprovalResult {
	results := make([]ApprovalResult, 0, len(ids))
	for _, id := range ids {
		res := ApprovalResult{QuarantineID: id}
		a, err := e.Approve(ctx, id, approver)
		if err != nil {
			res.Err = err
			res.Error = err.Error()
		} else {
			res.AssetID = a.ID
		}
		results = append(results, res)
	}
	return results
}

// create runs the creation path for the record stale was read from. The
// record is read again under the serial's lock and the asset is built from
// that copy, which create returns as rec. gone reports that the record no
// longer exists.
func (e *Engine) create(ctx context.Context, stale *models.QuarantineRecord, approver int64) (rec *models.QuarantineRecord, asset *models.Asset, cs []changes, gone bool, err error) {
	rec = stale
	err = e.lockedTx(stale.SerialNumber)(ctx, func(tx store.Tx) error {
		cur, err := tx.GetQuarantine(ctx, stale.ID)
		if err != nil {
			gone = apperr.IsNotFound(err)
			return err
		}
		rec = cur

		assetType, h, err := handlerFor(cur.AssetType)
		if err != nil {
			return err
		}
		r, err := models.ParseReport(cur.Payload)
		if err != nil {
			return err
		}
		if err := r.Check(); err != nil {
			return err
		}

		a := &models.Asset{
			AssetType:    assetType,
			Name:         fmt.Sprintf("%s: %s", assetType, cur.SerialNumber),
			SerialNumber: cur.SerialNumber,
			Status:       models.StatusOnline,
			ManageIP:     stringPtr(r.ManageIP),
			ApprovedBy:   int64Ptr(approver),
		}
		if err := tx.CreateAsset(ctx, a); err != nil {
			return err
		}

		if cs, err = e.build(ctx, tx, h, a, r); err != nil {
			// cascade path; the rollback below discards the rest
			if derr := tx.DeleteAsset(ctx, a.ID); derr != nil {
				e.logger.Debug("cascade delete after failed create", zap.Int64("asset_id", a.ID), zap.Error(derr))
			}
			return err
		}

		if err := tx.DeleteQuarantine(ctx, cur.ID); err != nil {
			return err
		}
		asset = a
		return nil
	})
	if err != nil {
		return rec, nil, nil, gone, err
	}
	return rec, asset, cs, false, nil
}

// build attaches the manufacturer, detail and components to a new asset.
func (e *Engine) build(ctx context.Context, tx store.Tx, h handler, a *models.Asset, r *models.Report) ([]changes, error) {
	if r.Manufacturer != "" {
		m, err := tx.GetOrCreateManufacturer(ctx, r.Manufacturer)
		if err != nil {
			return nil, err
		}
		a.ManufacturerID = &m.ID
		if err := tx.UpdateAsset(ctx, a); err != nil {
			return nil, err
		}
	}
	return h.create(ctx, tx, a, r)
}

// typeLabel bounds the asset_type metric label to known types.
func typeLabel(s string) string {
	if t, ok := models.ParseAssetType(s); ok {
		return string(t)
	}
	return "unknown"
}

func int64Ptr(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
