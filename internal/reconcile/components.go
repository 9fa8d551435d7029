package reconcile

import (
	"context"

	"cmdb-api/internal/models"
	"cmdb-api/internal/store"
)

const (
	kindRAM  = "ram"
	kindDisk = "disk"
	kindNIC  = "nic"
	kindCPU  = "cpu"
)

// changes tallies one component kind's mutations for logging and metrics.
type changes struct {
	kind    string
	created int
	updated int
	deleted int
}

func (c changes) empty() bool {
	return c.created == 0 && c.updated == 0 && c.deleted == 0
}

// syncRAM makes the asset's RAM set-equal to entries, keyed by slot.
func syncRAM(ctx context.Context, tx store.Tx, assetID int64, entries []models.RAMEntry) (changes, error) {
	c := changes{kind: kindRAM}
	incoming := make([]models.RAM, 0, len(entries))
	for _, e := range entries {
		if err := e.Check(); err != nil {
			return c, err
		}
		incoming = append(incoming, e.RAM(assetID))
	}

	existing, err := tx.ListRAM(ctx, assetID)
	if err != nil {
		return c, err
	}
	plan := planSet(existing, incoming, func(r models.RAM) string { return r.Slot })
	if err := tx.DeleteRAM(ctx, assetID, plan.Delete); err != nil {
		return c, err
	}
	for _, r := range plan.Upsert {
		if err := tx.UpsertRAM(ctx, r); err != nil {
			return c, err
		}
	}
	c.created, c.updated, c.deleted = plan.Created, plan.Updated, len(plan.Delete)
	return c, nil
}

// syncDisks makes the asset's disks set-equal to entries, keyed by serial.
func syncDisks(ctx context.Context, tx store.Tx, assetID int64, entries []models.DiskEntry) (changes, error) {
	c := changes{kind: kindDisk}
	incoming := make([]models.Disk, 0, len(entries))
	for _, e := range entries {
		if err := e.Check(); err != nil {
			return c, err
		}
		incoming = append(incoming, e.Disk(assetID))
	}

	existing, err := tx.ListDisks(ctx, assetID)
	if err != nil {
		return c, err
	}
	plan := planSet(existing, incoming, func(d models.Disk) string { return d.SerialNumber })
	if err := tx.DeleteDisks(ctx, assetID, plan.Delete); err != nil {
		return c, err
	}
	for _, d := range plan.Upsert {
		if err := tx.UpsertDisk(ctx, d); err != nil {
			return c, err
		}
	}
	c.created, c.updated, c.deleted = plan.Created, plan.Updated, len(plan.Delete)
	return c, nil
}

// syncNICs makes the asset's NICs set-equal to entries, keyed by model and MAC.
func syncNICs(ctx context.Context, tx store.Tx, assetID int64, entries []models.NICEntry) (changes, error) {
	c := changes{kind: kindNIC}
	incoming := make([]models.NIC, 0, len(entries))
	for _, e := range entries {
		if err := e.Check(); err != nil {
			return c, err
		}
		incoming = append(incoming, e.NIC(assetID))
	}

	existing, err := tx.ListNICs(ctx, assetID)
	if err != nil {
		return c, err
	}
	plan := planSet(existing, incoming, models.NIC.Key)
	if err := tx.DeleteNICs(ctx, assetID, plan.Delete); err != nil {
		return c, err
	}
	for _, n := range plan.Upsert {
		if err := tx.UpsertNIC(ctx, n); err != nil {
			return c, err
		}
	}
	c.created, c.updated, c.deleted = plan.Created, plan.Updated, len(plan.Delete)
	return c, nil
}
