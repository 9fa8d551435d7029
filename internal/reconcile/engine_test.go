package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmdb-api/internal/apperr"
	"cmdb-api/internal/audit"
	"cmdb-api/internal/models"
	"cmdb-api/internal/store"
)

const x1Report = `{
	"sn": "X1",
	"asset_type": "server",
	"manufacturer": "Dell",
	"model": "R620",
	"cpu_model": "Xeon",
	"cpu_count": 2,
	"cpu_core_count": 8,
	"os_type": "linux",
	"ram": [{"slot": "A1", "capacity": 16}],
	"physical_disk_driver": [{"sn": "D1", "capacity": 500, "interface_type": "SSD"}],
	"nic": [{"model": "e1000", "mac": "AA:BB", "ip_address": "10.0.0.1"}]
}`

const approver = int64(7)

func newTestEngine(t *testing.T) (*Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return New(mem), mem
}

func stage(t *testing.T, e *Engine, payload string) *models.QuarantineRecord {
	t.Helper()
	rec, err := e.StageReport(context.Background(), "", []byte(payload))
	require.NoError(t, err)
	return rec
}

func approveX1(t *testing.T, e *Engine) *models.Asset {
	t.Helper()
	rec := stage(t, e, x1Report)
	a, err := e.Approve(context.Background(), rec.ID, approver)
	require.NoError(t, err)
	return a
}

func events(t *testing.T, e *Engine, f models.EventFilter) []models.EventLog {
	t.Helper()
	list, _, err := e.ListEvents(context.Background(), f)
	require.NoError(t, err)
	return list
}

func TestStageReportUpsertsBySerial(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first := stage(t, e, `{"sn":"S1","asset_type":"server","model":"R620"}`)
	second := stage(t, e, `{"sn":"S1","asset_type":"server","model":"R730","ram":[{"slot":"A","capacity":8},{"slot":"B","capacity":8}]}`)
	assert.Equal(t, first.ID, second.ID)

	items, total, err := e.ListPendingApprovals(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "R730", items[0].Model)
	assert.Equal(t, 16, items[0].RAMSize)
}

func TestStageReportRequiresSerial(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.StageReport(context.Background(), "", []byte(`{"asset_type":"server"}`))
	assert.True(t, apperr.IsValidation(err))

	_, err = e.StageReport(context.Background(), "", []byte(`{not json`))
	assert.True(t, apperr.IsValidation(err))
}

func TestApproveCreatesAssetGraph(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	a := approveX1(t, e)
	assert.Equal(t, "server: X1", a.Name)
	assert.Equal(t, models.StatusOnline, a.Status)
	require.NotNil(t, a.ApprovedBy)
	assert.Equal(t, approver, *a.ApprovedBy)

	g, err := e.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, g.Manufacturer)
	assert.Equal(t, "Dell", g.Manufacturer.Name)

	srv, ok := g.Detail.(models.Server)
	require.True(t, ok)
	assert.Equal(t, "R620", srv.Model)
	assert.Equal(t, "auto", srv.CreatedBy)
	assert.Equal(t, "linux", srv.OSType)

	require.NotNil(t, g.CPU)
	assert.Equal(t, "Xeon", g.CPU.CPUModel)
	assert.Equal(t, 2, g.CPU.CPUCount)

	require.Len(t, g.RAM, 1)
	assert.Equal(t, "A1", g.RAM[0].Slot)
	assert.Equal(t, 16, g.RAM[0].Capacity)

	require.Len(t, g.Disks, 1)
	assert.Equal(t, "D1", g.Disks[0].SerialNumber)
	assert.Equal(t, models.InterfaceSSD, g.Disks[0].InterfaceType)
	assert.Equal(t, 500.0, g.Disks[0].Capacity)

	require.Len(t, g.NICs, 1)
	assert.Equal(t, models.NICKey{Model: "e1000", MAC: "AA:BB"}, g.NICs[0].Key())
	assert.Equal(t, "10.0.0.1", g.NICs[0].IPAddress)

	_, total, err := e.ListPendingApprovals(ctx, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)

	evs := events(t, e, models.EventFilter{AssetID: a.ID})
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventUpline, evs[0].Kind)
	assert.Equal(t, "server: X1 <X1>: Upline", evs[0].Name)
	assert.Equal(t, "Asset online success!", evs[0].Detail)
}

func TestApproveIsAtomic(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()

	rec := stage(t, e, `{
		"sn": "X2", "asset_type": "server", "manufacturer": "HP", "cpu_model": "Xeon",
		"ram": [{"slot": "A1", "capacity": 16}, {"slot": "", "capacity": 16}]
	}`)

	_, err := e.Approve(ctx, rec.ID, approver)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "unknown RAM slot")

	require.NoError(t, mem.ReadTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetAssetBySerial(ctx, "X2")
		assert.True(t, apperr.IsNotFound(err))
		ms, err := tx.ListManufacturers(ctx)
		require.NoError(t, err)
		assert.Empty(t, ms)
		_, err = tx.GetQuarantine(ctx, rec.ID)
		assert.NoError(t, err, "record stays for re-approval")
		return nil
	}))

	evs := events(t, e, models.EventFilter{QuarantineID: rec.ID})
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventApproveFailed, evs[0].Kind)
	assert.Equal(t, "server <X2>: Approve failed", evs[0].Name)
	assert.Equal(t, "Approve failed!\nunknown RAM slot", evs[0].Detail)
	require.NotNil(t, evs[0].ActorID)
	assert.Equal(t, approver, *evs[0].ActorID)
}

func TestApproveComponentValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"disk without serial", `{"sn":"V1","asset_type":"server","physical_disk_driver":[{"capacity":1}]}`, "unknown disk serial"},
		{"nic without mac", `{"sn":"V1","asset_type":"server","nic":[{"model":"e1000"}]}`, "mac"},
		{"nic without model", `{"sn":"V1","asset_type":"server","nic":[{"mac":"AA"}]}`, "model"},
		{"bad nic ip", `{"sn":"V1","asset_type":"server","nic":[{"model":"e1000","mac":"AA","ip_address":"nope"}]}`, "ip_address"},
		{"negative ram capacity", `{"sn":"V1","asset_type":"server","ram":[{"slot":"A","capacity":-1}]}`, "capacity"},
		{"bad manage ip", `{"sn":"V1","asset_type":"server","manage_ip":"300.1.1.1"}`, "manage_ip"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine(t)
			rec := stage(t, e, tt.payload)
			_, err := e.Approve(context.Background(), rec.ID, approver)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApproveUnsupportedType(t *testing.T) {
	e, _ := newTestEngine(t)
	rec := stage(t, e, `{"sn":"U1","asset_type":"toaster"}`)

	_, err := e.Approve(context.Background(), rec.ID, approver)
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "unsupported asset type")

	evs := events(t, e, models.EventFilter{QuarantineID: rec.ID})
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventApproveFailed, evs[0].Kind)
}

func TestApproveMissingRecord(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Approve(context.Background(), 404, approver)
	assert.True(t, apperr.IsNotFound(err))
	assert.Empty(t, events(t, e, models.EventFilter{}))
}

func TestApproveDuplicateSerialConflicts(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	approveX1(t, e)

	rec := stage(t, e, x1Report)
	_, err := e.Approve(ctx, rec.ID, approver)
	assert.True(t, apperr.IsConflict(err))
}

func TestApproveVariants(t *testing.T) {
	tests := []struct {
		payload string
		check   func(t *testing.T, g *models.AssetGraph)
	}{
		{
			payload: `{"sn":"N1","asset_type":"networkdevice","model":"C9300","port_num":48,"nic":[{"model":"x","mac":"01"}],"ram":[{"slot":"A"}]}`,
			check: func(t *testing.T, g *models.AssetGraph) {
				assert.Equal(t, models.AssetTypeNetworkDevice, g.Asset.AssetType)
				d, ok := g.Detail.(models.NetworkDevice)
				require.True(t, ok)
				assert.Equal(t, 48, d.PortNum)
				assert.Len(t, g.NICs, 1)
				assert.Empty(t, g.RAM, "network devices carry no RAM")
				assert.Nil(t, g.CPU)
			},
		},
		{
			payload: `{"sn":"S1","asset_type":"storage_device","model":"FAS","physical_disk_driver":[{"sn":"D9"}]}`,
			check: func(t *testing.T, g *models.AssetGraph) {
				_, ok := g.Detail.(models.StorageDevice)
				require.True(t, ok)
				assert.Len(t, g.Disks, 1)
			},
		},
		{
			payload: `{"sn":"F1","asset_type":"security_device","model":"ASA"}`,
			check: func(t *testing.T, g *models.AssetGraph) {
				d, ok := g.Detail.(models.SecurityDevice)
				require.True(t, ok)
				assert.Equal(t, "ASA", d.Model)
			},
		},
		{
			payload: `{"sn":"W1","asset_type":"software","version":"2.1","license_num":10}`,
			check: func(t *testing.T, g *models.AssetGraph) {
				d, ok := g.Detail.(models.Software)
				require.True(t, ok)
				assert.Equal(t, "2.1", d.Version)
				assert.Equal(t, 10, d.LicenseNum)
			},
		},
	}
	for _, tt := range tests {
		e, _ := newTestEngine(t)
		rec := stage(t, e, tt.payload)
		a, err := e.Approve(context.Background(), rec.ID, approver)
		require.NoError(t, err)
		g, err := e.GetAsset(context.Background(), a.ID)
		require.NoError(t, err)
		tt.check(t, g)
	}
}

func TestApproveMany(t *testing.T) {
	e, _ := newTestEngine(t)
	good := stage(t, e, x1Report)
	bad := stage(t, e, `{"sn":"B1","asset_type":"server","ram":[{"slot":""}]}`)

	results := e.ApproveMany(context.Background(), []int64{bad.ID, good.ID, 999}, approver)
	require.Len(t, results, 3)

	assert.Error(t, results[0].Err)
	assert.Contains(t, results[0].Error, "unknown RAM slot")
	assert.NoError(t, results[1].Err)
	assert.NotZero(t, results[1].AssetID)
	assert.True(t, apperr.IsNotFound(results[2].Err))
}

func TestSubmitUpdateReconcilesRAM(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	rec := stage(t, e, `{"sn":"R1","asset_type":"server","ram":[
		{"slot":"A","model":"old","capacity":8},
		{"slot":"B","model":"old","capacity":8},
		{"slot":"C","model":"old","capacity":8}]}`)
	a, err := e.Approve(ctx, rec.ID, approver)
	require.NoError(t, err)

	ok, err := e.SubmitUpdateReport(ctx, a.ID, []byte(`{"sn":"R1","asset_type":"server","ram":[
		{"slot":"B","model":"new","capacity":16},
		{"slot":"C","model":"new","capacity":16},
		{"slot":"D","model":"new","capacity":32}]}`))
	require.NoError(t, err)
	assert.True(t, ok)

	g, err := e.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, g.RAM, 3)
	slots := map[string]models.RAM{}
	for _, r := range g.RAM {
		slots[r.Slot] = r
	}
	assert.NotContains(t, slots, "A")
	assert.Equal(t, "new", slots["B"].Model)
	assert.Equal(t, 16, slots["C"].Capacity)
	assert.Equal(t, 32, slots["D"].Capacity)

	evs := events(t, e, models.EventFilter{AssetID: a.ID})
	require.NotEmpty(t, evs)
	assert.Equal(t, models.EventUpdate, evs[0].Kind)
	assert.Equal(t, "server <R1>: Data updated", evs[0].Name)
	assert.Equal(t, "Update success!", evs[0].Detail)
}

func TestSubmitUpdateOverwritesScalars(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	a := approveX1(t, e)

	ok, err := e.SubmitUpdateReport(ctx, a.ID, []byte(`{"sn":"X1","asset_type":"server","cpu_model":"Epyc"}`))
	require.NoError(t, err)
	require.True(t, ok)

	g, err := e.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, g.Manufacturer, "absent manufacturer clears the reference")
	srv := g.Detail.(models.Server)
	assert.Empty(t, srv.Model)
	assert.Empty(t, srv.OSType)
	assert.Equal(t, "Epyc", g.CPU.CPUModel)
	assert.Zero(t, g.CPU.CPUCount)
	assert.Empty(t, g.RAM)
	assert.Empty(t, g.Disks)
	assert.Empty(t, g.NICs)

	ms, err := e.ListManufacturers(ctx)
	require.NoError(t, err)
	assert.Len(t, ms, 1, "manufacturers are never deleted")
}

func TestNormalizationOnUpdate(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	a := approveX1(t, e)

	ok, err := e.SubmitUpdateReport(ctx, a.ID, []byte(`{"sn":"X1","asset_type":"server",
		"physical_disk_driver":[{"sn":"D1","interface_type":"FOO"}],
		"nic":[{"model":"e1000","mac":"AA:BB","net_mask":["255.255.255.0","255.255.0.0"]}]}`))
	require.NoError(t, err)
	require.True(t, ok)

	g, err := e.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, g.Disks, 1)
	assert.Equal(t, models.InterfaceUnknown, g.Disks[0].InterfaceType)
	require.Len(t, g.NICs, 1)
	assert.Equal(t, "255.255.255.0", g.NICs[0].NetMask)
	assert.Empty(t, g.NICs[0].IPAddress)
}

// A failing step leaves earlier steps applied.
func TestSubmitUpdatePartialApply(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	a := approveX1(t, e)

	ok, err := e.SubmitUpdateReport(ctx, a.ID, []byte(`{"sn":"X1","asset_type":"server","manufacturer":"Lenovo",
		"ram":[{"slot":"B2","capacity":64}],
		"nic":[{"model":"e1000"}]}`))
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, apperr.IsValidation(err))

	g, err := e.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, g.RAM, 1)
	assert.Equal(t, "B2", g.RAM[0].Slot, "RAM step committed")
	assert.Empty(t, g.Disks, "disk step committed")
	require.Len(t, g.NICs, 1)
	assert.Equal(t, "10.0.0.1", g.NICs[0].IPAddress, "NIC step rolled back")
	require.NotNil(t, g.Manufacturer)
	assert.Equal(t, "Dell", g.Manufacturer.Name, "asset root not persisted")

	evs := events(t, e, models.EventFilter{AssetID: a.ID})
	require.NotEmpty(t, evs)
	assert.Equal(t, models.EventUpdateFailed, evs[0].Kind)
	assert.Equal(t, "server <X1>: Update failed", evs[0].Name)
	assert.Equal(t, "Update failed!\nmac: missing NIC mac address", evs[0].Detail)
}

func TestSubmitUpdateRejectsMismatches(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	a := approveX1(t, e)

	ok, err := e.SubmitUpdateReport(ctx, a.ID, []byte(`{"sn":"X1","asset_type":"software"}`))
	assert.False(t, ok)
	assert.True(t, apperr.IsValidation(err))

	ok, err = e.SubmitUpdateReport(ctx, a.ID, []byte(`{"sn":"OTHER","asset_type":"server"}`))
	assert.False(t, ok)
	assert.True(t, apperr.IsValidation(err))

	ok, err = e.SubmitUpdateReport(ctx, a.ID, []byte(`{"sn":"X1","asset_type":"toaster"}`))
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "unsupported asset type")

	_, err = e.SubmitUpdateReport(ctx, 404, []byte(`{}`))
	assert.True(t, apperr.IsNotFound(err))
}

func TestIngestReportDispatch(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := e.IngestReport(ctx, []byte(x1Report))
	require.NoError(t, err)
	assert.Equal(t, ActionStaged, res.Action)
	assert.NotZero(t, res.QuarantineID)

	a, err := e.Approve(ctx, res.QuarantineID, approver)
	require.NoError(t, err)

	res, err = e.IngestReport(ctx, []byte(`{"serial_number":"X1","asset_type":"server","ram":[{"slot":"A1","capacity":32}]}`))
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, res.Action)
	assert.Equal(t, a.ID, res.AssetID)

	g, err := e.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, g.RAM, 1)
	assert.Equal(t, 32, g.RAM[0].Capacity)

	_, total, err := e.ListPendingApprovals(ctx, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestConcurrentUpdatesSameAsset(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	a := approveX1(t, e)

	reports := []string{
		`{"sn":"X1","asset_type":"server","ram":[{"slot":"A"},{"slot":"B"}]}`,
		`{"sn":"X1","asset_type":"server","ram":[{"slot":"C"},{"slot":"D"}]}`,
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(payload string) {
			defer wg.Done()
			_, err := e.SubmitUpdateReport(ctx, a.ID, []byte(payload))
			assert.NoError(t, err)
		}(reports[i%2])
	}
	wg.Wait()

	g, err := e.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, g.RAM, 2)
	pair := g.RAM[0].Slot + g.RAM[1].Slot
	assert.Contains(t, []string{"AB", "CD"}, pair)
	assert.Zero(t, e.locks.size())
}

type failingSink struct{ calls int }

func (s *failingSink) RecordEvent(context.Context, audit.Event) error {
	s.calls++
	return errors.New("sink down")
}

func TestSinkFailureDoesNotFailApproval(t *testing.T) {
	sink := &failingSink{}
	e := New(store.NewMemory(), WithSink(sink))

	a := approveX1(t, e)
	assert.NotZero(t, a.ID)
	assert.Equal(t, 1, sink.calls)
}

func TestEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	e := New(store.NewMemory(), WithMetrics(m))
	ctx := context.Background()

	a := approveX1(t, e)
	bad := stage(t, e, `{"sn":"B1","asset_type":"server","ram":[{"slot":""}]}`)
	_, err := e.Approve(ctx, bad.ID, approver)
	require.Error(t, err)

	_, err = e.SubmitUpdateReport(ctx, a.ID, []byte(`{"sn":"X1","asset_type":"server","ram":[{"slot":"A2"}]}`))
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.staged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.approvals.WithLabelValues("server", outcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.approvals.WithLabelValues("server", outcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.updates.WithLabelValues("server", outcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.changes.WithLabelValues(kindRAM, "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.changes.WithLabelValues(kindRAM, "deleted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.changes.WithLabelValues(kindDisk, "deleted")))
}

func TestListPaging(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	for _, sn := range []string{"P1", "P2", "P3"} {
		stage(t, e, `{"sn":"`+sn+`","asset_type":"server"}`)
	}

	items, total, err := e.ListPendingApprovals(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, items, 1)

	limit, offset := clampPage(1000, -3)
	assert.Equal(t, MaxPageSize, limit)
	assert.Zero(t, offset)
}

// restagingStore overwrites the quarantine record for the serial in payload
// right before the next write transaction, as a concurrent agent report would.
type restagingStore struct {
	*store.Memory
	payload []byte
}

func (s *restagingStore) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	if payload := s.payload; payload != nil {
		s.payload = nil
		r, err := models.ParseReport(payload)
		if err != nil {
			return err
		}
		err = s.Memory.WithTx(ctx, func(tx store.Tx) error {
			return tx.UpsertQuarantine(ctx, quarantineRecord(r.Serial(), payload, r))
		})
		if err != nil {
			return err
		}
	}
	return s.Memory.WithTx(ctx, fn)
}

func TestApproveUsesLatestStagedReport(t *testing.T) {
	s := &restagingStore{Memory: store.NewMemory()}
	e := New(s)
	ctx := context.Background()

	rec := stage(t, e, `{"sn":"R1","asset_type":"server","model":"OLD"}`)
	s.payload = []byte(`{"sn":"R1","asset_type":"server","model":"NEW","ram":[{"slot":"A1","capacity":8}]}`)

	a, err := e.Approve(ctx, rec.ID, approver)
	require.NoError(t, err)

	g, err := e.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	srv, ok := g.Detail.(models.Server)
	require.True(t, ok)
	assert.Equal(t, "NEW", srv.Model)
	require.Len(t, g.RAM, 1)
	assert.Equal(t, "A1", g.RAM[0].Slot)

	_, total, err := e.ListPendingApprovals(ctx, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestApproveFailureReportsLatestRecord(t *testing.T) {
	s := &restagingStore{Memory: store.NewMemory()}
	e := New(s)
	ctx := context.Background()

	rec := stage(t, e, `{"sn":"R2","asset_type":"server"}`)
	s.payload = []byte(`{"sn":"R2","asset_type":"toaster"}`)

	_, err := e.Approve(ctx, rec.ID, approver)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported asset type")

	evs := events(t, e, models.EventFilter{QuarantineID: rec.ID})
	require.Len(t, evs, 1)
	assert.Equal(t, "toaster <R2>: Approve failed", evs[0].Name)
}

func TestIngestRacingApproveLeavesNoQuarantine(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		e, mem := newTestEngine(t)
		rec := stage(t, e, x1Report)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := e.Approve(ctx, rec.ID, approver)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := e.IngestReport(ctx, []byte(x1Report))
			assert.NoError(t, err)
		}()
		wg.Wait()

		require.NoError(t, mem.ReadTx(ctx, func(tx store.Tx) error {
			_, err := tx.GetAssetBySerial(ctx, "X1")
			require.NoError(t, err)
			_, err = tx.GetQuarantineBySerial(ctx, "X1")
			assert.True(t, apperr.IsNotFound(err), "round %d left a quarantine record", i)
			return nil
		}))
	}
}

func TestNormalizationOnApprove(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	rec := stage(t, e, `{"sn":"F1","asset_type":"server",
		"physical_disk_driver":[{"sn":"D9","interface_type":"FOO"}],
		"nic":[{"model":"e1000","mac":"AA:CC","net_mask":["255.255.255.0","255.255.0.0"]}]}`)
	a, err := e.Approve(ctx, rec.ID, approver)
	require.NoError(t, err)

	g, err := e.GetAsset(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, g.Disks, 1)
	assert.Equal(t, models.InterfaceUnknown, g.Disks[0].InterfaceType)
	require.Len(t, g.NICs, 1)
	assert.Equal(t, "255.255.255.0", g.NICs[0].NetMask)
}

func TestTypeLabel(t *testing.T) {
	assert.Equal(t, "server", typeLabel("server"))
	assert.Equal(t, "network_device", typeLabel("networkdevice"))
	assert.Equal(t, "unknown", typeLabel("toaster"))
	assert.Equal(t, "unknown", typeLabel(""))
}
