package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"cmdb-api/internal/apperr"
	"cmdb-api/internal/models"
)

// Memory is an in-process Store. Transactions are serialized and work on a
// copy of the state that replaces the original only on commit.
type Memory struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{state: newMemState(), now: time.Now}
}

type memState struct {
	nextID        int64
	quarantine    map[int64]models.QuarantineRecord
	assets        map[int64]models.Asset
	manufacturers map[int64]models.Manufacturer
	details       map[int64]models.Detail
	cpus          map[int64]models.CPU
	rams          map[int64]models.RAM
	disks         map[int64]models.Disk
	nics          map[int64]models.NIC
	events        []models.EventLog
}

func newMemState() *memState {
	return &memState{
		quarantine:    map[int64]models.QuarantineRecord{},
		assets:        map[int64]models.Asset{},
		manufacturers: map[int64]models.Manufacturer{},
		details:       map[int64]models.Detail{},
		cpus:          map[int64]models.CPU{},
		rams:          map[int64]models.RAM{},
		disks:         map[int64]models.Disk{},
		nics:          map[int64]models.NIC{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	return &memState{
		nextID:        s.nextID,
		quarantine:    cloneMap(s.quarantine),
		assets:        cloneMap(s.assets),
		manufacturers: cloneMap(s.manufacturers),
		details:       cloneMap(s.details),
		cpus:          cloneMap(s.cpus),
		rams:          cloneMap(s.rams),
		disks:         cloneMap(s.disks),
		nics:          cloneMap(s.nics),
		events:        append([]models.EventLog(nil), s.events...),
	}
}

func (m *Memory) WithTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return apperr.Storage("begin tx", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memTx{s: work, now: m.now}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *Memory) ReadTx(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return apperr.Storage("begin tx", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&memTx{s: m.state, now: m.now, readOnly: true})
}

type memTx struct {
	s        *memState
	now      func() time.Time
	readOnly bool
}

func (t *memTx) id() int64 {
	t.s.nextID++
	return t.s.nextID
}

func (t *memTx) writable(op string) error {
	if t.readOnly {
		return apperr.Storage(op, errReadOnly)
	}
	return nil
}

var errReadOnly = errors.New("read-only transaction")

func (t *memTx) LockAsset(context.Context, string) error {
	return nil
}

// Quarantine

func (t *memTx) UpsertQuarantine(_ context.Context, rec *models.QuarantineRecord) error {
	if err := t.writable("upsert quarantine"); err != nil {
		return err
	}
	now := t.now()
	for id, existing := range t.s.quarantine {
		if existing.SerialNumber == rec.SerialNumber {
			rec.ID = id
			rec.CreatedAt = existing.CreatedAt
			rec.UpdatedAt = now
			t.s.quarantine[id] = *rec
			return nil
		}
	}
	rec.ID = t.id()
	rec.CreatedAt, rec.UpdatedAt = now, now
	t.s.quarantine[rec.ID] = *rec
	return nil
}

func (t *memTx) GetQuarantine(_ context.Context, id int64) (*models.QuarantineRecord, error) {
	q, ok := t.s.quarantine[id]
	if !ok {
		return nil, apperr.NotFound("quarantine record", id)
	}
	return &q, nil
}

func (t *memTx) GetQuarantineBySerial(_ context.Context, serial string) (*models.QuarantineRecord, error) {
	for _, q := range t.s.quarantine {
		if q.SerialNumber == serial {
			return &q, nil
		}
	}
	return nil, apperr.NotFound("quarantine record", serial)
}

func (t *memTx) ListQuarantine(_ context.Context, limit, offset int) ([]models.QuarantineRecord, int, error) {
	all := make([]models.QuarantineRecord, 0, len(t.s.quarantine))
	for _, q := range t.s.quarantine {
		all = append(all, q)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return page(all, limit, offset), len(all), nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}

func (t *memTx) DeleteQuarantine(_ context.Context, id int64) error {
	if err := t.writable("delete quarantine"); err != nil {
		return err
	}
	if _, ok := t.s.quarantine[id]; !ok {
		return apperr.NotFound("quarantine record", id)
	}
	delete(t.s.quarantine, id)
	for i, e := range t.s.events {
		if e.QuarantineID != nil && *e.QuarantineID == id {
			t.s.events[i].QuarantineID = nil
		}
	}
	return nil
}

// Assets

func (t *memTx) CreateAsset(_ context.Context, a *models.Asset) error {
	if err := t.writable("create asset"); err != nil {
		return err
	}
	for _, existing := range t.s.assets {
		if existing.SerialNumber == a.SerialNumber {
			return apperr.Conflict("create asset: serial number %s already exists", a.SerialNumber)
		}
		if existing.Name == a.Name {
			return apperr.Conflict("create asset: name %s already exists", a.Name)
		}
	}
	if a.Status == "" {
		a.Status = models.StatusOnline
	}
	a.ID = t.id()
	a.CreatedAt = t.now()
	a.UpdatedAt = a.CreatedAt
	t.s.assets[a.ID] = *a
	return nil
}

func (t *memTx) UpdateAsset(_ context.Context, a *models.Asset) error {
	if err := t.writable("update asset"); err != nil {
		return err
	}
	existing, ok := t.s.assets[a.ID]
	if !ok {
		return apperr.NotFound("asset", a.ID)
	}
	existing.Status = a.Status
	existing.ManufacturerID = a.ManufacturerID
	existing.ManageIP = a.ManageIP
	existing.UpdatedAt = t.now()
	a.UpdatedAt = existing.UpdatedAt
	t.s.assets[a.ID] = existing
	return nil
}

func (t *memTx) GetAsset(_ context.Context, id int64) (*models.Asset, error) {
	a, ok := t.s.assets[id]
	if !ok {
		return nil, apperr.NotFound("asset", id)
	}
	return &a, nil
}

func (t *memTx) GetAssetBySerial(_ context.Context, serial string) (*models.Asset, error) {
	for _, a := range t.s.assets {
		if a.SerialNumber == serial {
			return &a, nil
		}
	}
	return nil, apperr.NotFound("asset", serial)
}

func (t *memTx) DeleteAsset(_ context.Context, id int64) error {
	if err := t.writable("delete asset"); err != nil {
		return err
	}
	if _, ok := t.s.assets[id]; !ok {
		return apperr.NotFound("asset", id)
	}
	deleteOwned(t.s.rams, func(r models.RAM) bool { return r.AssetID == id })
	deleteOwned(t.s.disks, func(d models.Disk) bool { return d.AssetID == id })
	deleteOwned(t.s.nics, func(n models.NIC) bool { return n.AssetID == id })
	delete(t.s.cpus, id)
	delete(t.s.details, id)
	delete(t.s.assets, id)
	for i, e := range t.s.events {
		if e.AssetID != nil && *e.AssetID == id {
			t.s.events[i].AssetID = nil
		}
	}
	return nil
}

func deleteOwned[V any](m map[int64]V, owned func(V) bool) {
	for k, v := range m {
		if owned(v) {
			delete(m, k)
		}
	}
}

// Manufacturers

func (t *memTx) GetOrCreateManufacturer(_ context.Context, name string) (*models.Manufacturer, error) {
	for _, m := range t.s.manufacturers {
		if m.Name == name {
			return &m, nil
		}
	}
	if err := t.writable("create manufacturer"); err != nil {
		return nil, err
	}
	m := models.Manufacturer{ID: t.id(), Name: name, CreatedAt: t.now()}
	t.s.manufacturers[m.ID] = m
	return &m, nil
}

func (t *memTx) GetManufacturer(_ context.Context, id int64) (*models.Manufacturer, error) {
	m, ok := t.s.manufacturers[id]
	if !ok {
		return nil, apperr.NotFound("manufacturer", id)
	}
	return &m, nil
}

func (t *memTx) ListManufacturers(context.Context) ([]models.Manufacturer, error) {
	out := make([]models.Manufacturer, 0, len(t.s.manufacturers))
	for _, m := range t.s.manufacturers {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Details

func (t *memTx) SaveDetail(_ context.Context, assetID int64, d models.Detail) error {
	if err := t.writable("save detail"); err != nil {
		return err
	}
	switch v := d.(type) {
	case models.Server:
		v.AssetID = assetID
		if v.CreatedBy == "" {
			v.CreatedBy = "auto"
		}
		if prev, ok := t.s.details[assetID].(models.Server); ok {
			v.CreatedBy = prev.CreatedBy
		}
		d = v
	case models.NetworkDevice:
		v.AssetID = assetID
		d = v
	case models.StorageDevice:
		v.AssetID = assetID
		d = v
	case models.SecurityDevice:
		v.AssetID = assetID
		d = v
	case models.Software:
		v.AssetID = assetID
		d = v
	default:
		return apperr.Validation("unsupported detail record")
	}
	t.s.details[assetID] = d
	return nil
}

func (t *memTx) GetDetail(_ context.Context, assetID int64, kind models.AssetType) (models.Detail, error) {
	d, ok := t.s.details[assetID]
	if !ok || d.DetailType() != kind {
		return nil, apperr.NotFound("detail record", assetID)
	}
	return d, nil
}

// CPU

func (t *memTx) SaveCPU(_ context.Context, cpu models.CPU) error {
	if err := t.writable("save cpu"); err != nil {
		return err
	}
	t.s.cpus[cpu.AssetID] = cpu
	return nil
}

func (t *memTx) GetCPU(_ context.Context, assetID int64) (*models.CPU, error) {
	c, ok := t.s.cpus[assetID]
	if !ok {
		return nil, apperr.NotFound("cpu", assetID)
	}
	return &c, nil
}

// RAM

func (t *memTx) ListRAM(_ context.Context, assetID int64) ([]models.RAM, error) {
	out := []models.RAM{}
	for _, r := range t.s.rams {
		if r.AssetID == assetID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (t *memTx) UpsertRAM(_ context.Context, r models.RAM) error {
	if err := t.writable("upsert ram"); err != nil {
		return err
	}
	for id, existing := range t.s.rams {
		if existing.AssetID == r.AssetID && existing.Slot == r.Slot {
			r.ID = id
			t.s.rams[id] = r
			return nil
		}
	}
	r.ID = t.id()
	t.s.rams[r.ID] = r
	return nil
}

func (t *memTx) DeleteRAM(_ context.Context, assetID int64, slots []string) error {
	if err := t.writable("delete ram"); err != nil {
		return err
	}
	set := toSet(slots)
	deleteOwned(t.s.rams, func(r models.RAM) bool {
		_, ok := set[r.Slot]
		return r.AssetID == assetID && ok
	})
	return nil
}

func toSet[K comparable](keys []K) map[K]struct{} {
	set := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Disks

func (t *memTx) ListDisks(_ context.Context, assetID int64) ([]models.Disk, error) {
	out := []models.Disk{}
	for _, d := range t.s.disks {
		if d.AssetID == assetID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out, nil
}

func (t *memTx) UpsertDisk(_ context.Context, d models.Disk) error {
	if err := t.writable("upsert disk"); err != nil {
		return err
	}
	d.InterfaceType = models.NormalizeInterfaceType(string(d.InterfaceType))
	for id, existing := range t.s.disks {
		if existing.AssetID == d.AssetID && existing.SerialNumber == d.SerialNumber {
			d.ID = id
			t.s.disks[id] = d
			return nil
		}
	}
	d.ID = t.id()
	t.s.disks[d.ID] = d
	return nil
}

func (t *memTx) DeleteDisks(_ context.Context, assetID int64, serials []string) error {
	if err := t.writable("delete disks"); err != nil {
		return err
	}
	set := toSet(serials)
	deleteOwned(t.s.disks, func(d models.Disk) bool {
		_, ok := set[d.SerialNumber]
		return d.AssetID == assetID && ok
	})
	return nil
}

// NICs

func (t *memTx) ListNICs(_ context.Context, assetID int64) ([]models.NIC, error) {
	out := []models.NIC{}
	for _, n := range t.s.nics {
		if n.AssetID == assetID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Model != out[j].Model {
			return out[i].Model < out[j].Model
		}
		return out[i].MAC < out[j].MAC
	})
	return out, nil
}

func (t *memTx) UpsertNIC(_ context.Context, n models.NIC) error {
	if err := t.writable("upsert nic"); err != nil {
		return err
	}
	for id, existing := range t.s.nics {
		if existing.AssetID == n.AssetID && existing.Key() == n.Key() {
			n.ID = id
			t.s.nics[id] = n
			return nil
		}
	}
	n.ID = t.id()
	t.s.nics[n.ID] = n
	return nil
}

func (t *memTx) DeleteNICs(_ context.Context, assetID int64, keys []models.NICKey) error {
	if err := t.writable("delete nics"); err != nil {
		return err
	}
	set := toSet(keys)
	deleteOwned(t.s.nics, func(n models.NIC) bool {
		_, ok := set[n.Key()]
		return n.AssetID == assetID && ok
	})
	return nil
}

// Events

func (t *memTx) AppendEvent(_ context.Context, e *models.EventLog) error {
	if err := t.writable("append event"); err != nil {
		return err
	}
	e.ID = t.id()
	e.CreatedAt = t.now()
	t.s.events = append(t.s.events, *e)
	return nil
}

func (t *memTx) ListEvents(_ context.Context, f models.EventFilter) ([]models.EventLog, int, error) {
	matched := []models.EventLog{}
	for i := len(t.s.events) - 1; i >= 0; i-- {
		e := t.s.events[i]
		if f.AssetID > 0 && (e.AssetID == nil || *e.AssetID != f.AssetID) {
			continue
		}
		if f.QuarantineID > 0 && (e.QuarantineID == nil || *e.QuarantineID != f.QuarantineID) {
			continue
		}
		matched = append(matched, e)
	}
	return page(matched, f.Limit, f.Offset), len(matched), nil
}
