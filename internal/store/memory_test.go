package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmdb-api/internal/apperr"
	"cmdb-api/internal/models"
)

func TestMemory_UpsertQuarantineBySerial(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var firstID int64
	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		rec := &models.QuarantineRecord{SerialNumber: "X1", QuarantineSummary: models.QuarantineSummary{Model: "R620"}}
		err := tx.UpsertQuarantine(ctx, rec)
		firstID = rec.ID
		return err
	}))
	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		return tx.UpsertQuarantine(ctx, &models.QuarantineRecord{SerialNumber: "X1", QuarantineSummary: models.QuarantineSummary{Model: "R730"}})
	}))

	require.NoError(t, m.ReadTx(ctx, func(tx Tx) error {
		list, total, err := tx.ListQuarantine(ctx, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, list, 1)
		assert.Equal(t, firstID, list[0].ID)
		assert.Equal(t, "R730", list[0].Model)
		return nil
	}))
}

func TestMemory_RollbackDiscardsWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(tx Tx) error {
		if err := tx.CreateAsset(ctx, &models.Asset{AssetType: models.AssetTypeServer, Name: "server: X1", SerialNumber: "X1"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, m.ReadTx(ctx, func(tx Tx) error {
		_, err := tx.GetAssetBySerial(ctx, "X1")
		assert.True(t, apperr.IsNotFound(err))
		return nil
	}))
}

func TestMemory_ReadTxRejectsWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.ReadTx(ctx, func(tx Tx) error {
		return tx.AppendEvent(ctx, &models.EventLog{Kind: models.EventUpdate})
	})
	assert.True(t, apperr.IsStorage(err))
}

func TestMemory_DuplicateSerialConflicts(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	create := func(name, serial string) error {
		return m.WithTx(ctx, func(tx Tx) error {
			return tx.CreateAsset(ctx, &models.Asset{AssetType: models.AssetTypeServer, Name: name, SerialNumber: serial})
		})
	}
	require.NoError(t, create("server: X1", "X1"))
	assert.True(t, apperr.IsConflict(create("other", "X1")))
	assert.True(t, apperr.IsConflict(create("server: X1", "X2")))
}

func TestMemory_DeleteAssetCascades(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var assetID int64
	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		a := &models.Asset{AssetType: models.AssetTypeServer, Name: "server: X1", SerialNumber: "X1"}
		if err := tx.CreateAsset(ctx, a); err != nil {
			return err
		}
		assetID = a.ID
		require.NoError(t, tx.SaveDetail(ctx, a.ID, models.Server{Model: "R620"}))
		require.NoError(t, tx.SaveCPU(ctx, models.CPU{AssetID: a.ID, CPUModel: "Xeon"}))
		require.NoError(t, tx.UpsertRAM(ctx, models.RAM{AssetID: a.ID, Slot: "A1"}))
		require.NoError(t, tx.UpsertDisk(ctx, models.Disk{AssetID: a.ID, SerialNumber: "D1"}))
		require.NoError(t, tx.UpsertNIC(ctx, models.NIC{AssetID: a.ID, Model: "e1000", MAC: "AA:BB"}))
		return nil
	}))

	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		return tx.DeleteAsset(ctx, assetID)
	}))

	require.NoError(t, m.ReadTx(ctx, func(tx Tx) error {
		_, err := tx.GetDetail(ctx, assetID, models.AssetTypeServer)
		assert.True(t, apperr.IsNotFound(err))
		_, err = tx.GetCPU(ctx, assetID)
		assert.True(t, apperr.IsNotFound(err))
		rams, _ := tx.ListRAM(ctx, assetID)
		disks, _ := tx.ListDisks(ctx, assetID)
		nics, _ := tx.ListNICs(ctx, assetID)
		assert.Empty(t, rams)
		assert.Empty(t, disks)
		assert.Empty(t, nics)
		return nil
	}))
}

func TestMemory_ComponentUpsertByKey(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.UpsertNIC(ctx, models.NIC{AssetID: 1, Model: "e1000", MAC: "AA", IPAddress: "10.0.0.1"}))
		require.NoError(t, tx.UpsertNIC(ctx, models.NIC{AssetID: 1, Model: "e1000", MAC: "AA", IPAddress: "10.0.0.2"}))
		require.NoError(t, tx.UpsertNIC(ctx, models.NIC{AssetID: 1, Model: "bnx2", MAC: "AA"}))
		return tx.DeleteNICs(ctx, 1, []models.NICKey{{Model: "bnx2", MAC: "AA"}})
	}))

	require.NoError(t, m.ReadTx(ctx, func(tx Tx) error {
		nics, err := tx.ListNICs(ctx, 1)
		require.NoError(t, err)
		require.Len(t, nics, 1)
		assert.Equal(t, "10.0.0.2", nics[0].IPAddress)
		return nil
	}))
}

func TestMemory_ListEventsFilters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	one, two := int64(1), int64(2)

	require.NoError(t, m.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.AppendEvent(ctx, &models.EventLog{Kind: models.EventUpline, AssetID: &one}))
		require.NoError(t, tx.AppendEvent(ctx, &models.EventLog{Kind: models.EventUpdate, AssetID: &one}))
		return tx.AppendEvent(ctx, &models.EventLog{Kind: models.EventApproveFailed, QuarantineID: &two})
	}))

	require.NoError(t, m.ReadTx(ctx, func(tx Tx) error {
		events, total, err := tx.ListEvents(ctx, models.EventFilter{AssetID: 1, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, events, 1)
		assert.Equal(t, models.EventUpdate, events[0].Kind)

		events, total, err = tx.ListEvents(ctx, models.EventFilter{QuarantineID: 2, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, models.EventApproveFailed, events[0].Kind)
		return nil
	}))
}
