package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"cmdb-api/internal/apperr"
	"cmdb-api/internal/models"
)

// Details

func (t *pgTx) SaveDetail(ctx context.Context, assetID int64, d models.Detail) error {
	var err error
	switch d := d.(type) {
	case models.Server:
		createdBy := d.CreatedBy
		if createdBy == "" {
			createdBy = "auto"
		}
		_, err = t.q.ExecContext(ctx, `
			INSERT INTO servers (asset_id, sub_asset_type, created_by, model, raid_type, os_type, os_distribution, os_release)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (asset_id) DO UPDATE SET
				sub_asset_type = EXCLUDED.sub_asset_type,
				model = EXCLUDED.model,
				raid_type = EXCLUDED.raid_type,
				os_type = EXCLUDED.os_type,
				os_distribution = EXCLUDED.os_distribution,
				os_release = EXCLUDED.os_release`,
			assetID, nullIfEmpty(d.SubAssetType), createdBy, nullIfEmpty(d.Model), nullIfEmpty(d.RaidType),
			nullIfEmpty(d.OSType), nullIfEmpty(d.OSDistribution), nullIfEmpty(d.OSRelease))
	case models.NetworkDevice:
		_, err = t.q.ExecContext(ctx, `
			INSERT INTO network_devices (asset_id, sub_asset_type, model, vlan_ip, intranet_ip, firmware, port_num, device_detail)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (asset_id) DO UPDATE SET
				sub_asset_type = EXCLUDED.sub_asset_type,
				model = EXCLUDED.model,
				vlan_ip = EXCLUDED.vlan_ip,
				intranet_ip = EXCLUDED.intranet_ip,
				firmware = EXCLUDED.firmware,
				port_num = EXCLUDED.port_num,
				device_detail = EXCLUDED.device_detail`,
			assetID, nullIfEmpty(d.SubAssetType), nullIfEmpty(d.Model), nullIfEmpty(d.VlanIP), nullIfEmpty(d.IntranetIP),
			nullIfEmpty(d.Firmware), d.PortNum, nullIfEmpty(d.DeviceDetail))
	case models.StorageDevice:
		err = t.saveModelDetail(ctx, "storage_devices", assetID, d.SubAssetType, d.Model)
	case models.SecurityDevice:
		err = t.saveModelDetail(ctx, "security_devices", assetID, d.SubAssetType, d.Model)
	case models.Software:
		_, err = t.q.ExecContext(ctx, `
			INSERT INTO software (asset_id, sub_asset_type, license_num, version)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (asset_id) DO UPDATE SET
				sub_asset_type = EXCLUDED.sub_asset_type,
				license_num = EXCLUDED.license_num,
				version = EXCLUDED.version`,
			assetID, nullIfEmpty(d.SubAssetType), d.LicenseNum, nullIfEmpty(d.Version))
	default:
		return apperr.Validation(fmt.Sprintf("unsupported detail record %T", d))
	}
	return wrap("save detail", err)
}

func (t *pgTx) saveModelDetail(ctx context.Context, table string, assetID int64, subType, model string) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO `+table+` (asset_id, sub_asset_type, model)
		VALUES ($1, $2, $3)
		ON CONFLICT (asset_id) DO UPDATE SET
			sub_asset_type = EXCLUDED.sub_asset_type,
			model = EXCLUDED.model`,
		assetID, nullIfEmpty(subType), nullIfEmpty(model))
	return err
}

func (t *pgTx) GetDetail(ctx context.Context, assetID int64, kind models.AssetType) (models.Detail, error) {
	var (
		d   models.Detail
		err error
	)
	switch kind {
	case models.AssetTypeServer:
		var s models.Server
		var sub, mdl, raid, osType, osDistro, osRelease sql.NullString
		err = t.q.QueryRowContext(ctx, `
			SELECT asset_id, sub_asset_type, created_by, model, raid_type, os_type, os_distribution, os_release
			FROM servers WHERE asset_id = $1`, assetID).
			Scan(&s.AssetID, &sub, &s.CreatedBy, &mdl, &raid, &osType, &osDistro, &osRelease)
		s.SubAssetType, s.Model, s.RaidType = sub.String, mdl.String, raid.String
		s.OSType, s.OSDistribution, s.OSRelease = osType.String, osDistro.String, osRelease.String
		d = s
	case models.AssetTypeNetworkDevice:
		var n models.NetworkDevice
		var sub, mdl, vlan, intranet, firmware, detail sql.NullString
		err = t.q.QueryRowContext(ctx, `
			SELECT asset_id, sub_asset_type, model, vlan_ip, intranet_ip, firmware, port_num, device_detail
			FROM network_devices WHERE asset_id = $1`, assetID).
			Scan(&n.AssetID, &sub, &mdl, &vlan, &intranet, &firmware, &n.PortNum, &detail)
		n.SubAssetType, n.Model, n.VlanIP, n.IntranetIP = sub.String, mdl.String, vlan.String, intranet.String
		n.Firmware, n.DeviceDetail = firmware.String, detail.String
		d = n
	case models.AssetTypeStorageDevice:
		var s models.StorageDevice
		s.AssetID, s.SubAssetType, s.Model, err = t.getModelDetail(ctx, "storage_devices", assetID)
		d = s
	case models.AssetTypeSecurityDevice:
		var s models.SecurityDevice
		s.AssetID, s.SubAssetType, s.Model, err = t.getModelDetail(ctx, "security_devices", assetID)
		d = s
	case models.AssetTypeSoftware:
		var s models.Software
		var sub, version sql.NullString
		err = t.q.QueryRowContext(ctx, `
			SELECT asset_id, sub_asset_type, license_num, version FROM software WHERE asset_id = $1`, assetID).
			Scan(&s.AssetID, &sub, &s.LicenseNum, &version)
		s.SubAssetType, s.Version = sub.String, version.String
		d = s
	default:
		return nil, apperr.Validation("unsupported asset type")
	}
	if err != nil {
		return nil, wrapGet("get detail", "detail record", assetID, err)
	}
	return d, nil
}

func (t *pgTx) getModelDetail(ctx context.Context, table string, assetID int64) (int64, string, string, error) {
	var (
		id       int64
		sub, mdl sql.NullString
	)
	err := t.q.QueryRowContext(ctx, `SELECT asset_id, sub_asset_type, model FROM `+table+` WHERE asset_id = $1`, assetID).
		Scan(&id, &sub, &mdl)
	return id, sub.String, mdl.String, err
}

// CPU

func (t *pgTx) SaveCPU(ctx context.Context, cpu models.CPU) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO cpus (asset_id, cpu_model, cpu_count, cpu_core_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset_id) DO UPDATE SET
			cpu_model = EXCLUDED.cpu_model,
			cpu_count = EXCLUDED.cpu_count,
			cpu_core_count = EXCLUDED.cpu_core_count`,
		cpu.AssetID, nullIfEmpty(cpu.CPUModel), cpu.CPUCount, cpu.CPUCoreCount)
	return wrap("save cpu", err)
}

func (t *pgTx) GetCPU(ctx context.Context, assetID int64) (*models.CPU, error) {
	var (
		c     models.CPU
		model sql.NullString
	)
	err := t.q.QueryRowContext(ctx, `SELECT asset_id, cpu_model, cpu_count, cpu_core_count FROM cpus WHERE asset_id = $1`, assetID).
		Scan(&c.AssetID, &model, &c.CPUCount, &c.CPUCoreCount)
	if err != nil {
		return nil, wrapGet("get cpu", "cpu", assetID, err)
	}
	c.CPUModel = model.String
	return &c, nil
}

// RAM

func (t *pgTx) ListRAM(ctx context.Context, assetID int64) ([]models.RAM, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, asset_id, slot, sn, model, manufacturer, capacity
		FROM rams WHERE asset_id = $1 ORDER BY slot ASC`, assetID)
	if err != nil {
		return nil, wrap("list ram", err)
	}
	defer rows.Close()

	out := []models.RAM{}
	for rows.Next() {
		var (
			r                      models.RAM
			sn, model, manufacture sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.AssetID, &r.Slot, &sn, &model, &manufacture, &r.Capacity); err != nil {
			return nil, wrap("scan ram", err)
		}
		r.SerialNumber, r.Model, r.Manufacturer = sn.String, model.String, manufacture.String
		out = append(out, r)
	}
	return out, wrap("list ram", rows.Err())
}

func (t *pgTx) UpsertRAM(ctx context.Context, r models.RAM) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO rams (asset_id, slot, sn, model, manufacturer, capacity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (asset_id, slot) DO UPDATE SET
			sn = EXCLUDED.sn,
			model = EXCLUDED.model,
			manufacturer = EXCLUDED.manufacturer,
			capacity = EXCLUDED.capacity`,
		r.AssetID, r.Slot, nullIfEmpty(r.SerialNumber), nullIfEmpty(r.Model), nullIfEmpty(r.Manufacturer), r.Capacity)
	return wrap("upsert ram", err)
}

func (t *pgTx) DeleteRAM(ctx context.Context, assetID int64, slots []string) error {
	if len(slots) == 0 {
		return nil
	}
	_, err := t.q.ExecContext(ctx, `DELETE FROM rams WHERE asset_id = $1 AND slot = ANY($2)`, assetID, pq.Array(slots))
	return wrap("delete ram", err)
}

// Disks

func (t *pgTx) ListDisks(ctx context.Context, assetID int64) ([]models.Disk, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, asset_id, sn, slot, model, manufacturer, capacity, interface_type
		FROM disks WHERE asset_id = $1 ORDER BY sn ASC`, assetID)
	if err != nil {
		return nil, wrap("list disks", err)
	}
	defer rows.Close()

	out := []models.Disk{}
	for rows.Next() {
		var (
			d                        models.Disk
			slot, model, manufacture sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.AssetID, &d.SerialNumber, &slot, &model, &manufacture, &d.Capacity, &d.InterfaceType); err != nil {
			return nil, wrap("scan disk", err)
		}
		d.Slot, d.Model, d.Manufacturer = slot.String, model.String, manufacture.String
		out = append(out, d)
	}
	return out, wrap("list disks", rows.Err())
}

func (t *pgTx) UpsertDisk(ctx context.Context, d models.Disk) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO disks (asset_id, sn, slot, model, manufacturer, capacity, interface_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (asset_id, sn) DO UPDATE SET
			slot = EXCLUDED.slot,
			model = EXCLUDED.model,
			manufacturer = EXCLUDED.manufacturer,
			capacity = EXCLUDED.capacity,
			interface_type = EXCLUDED.interface_type`,
		d.AssetID, d.SerialNumber, nullIfEmpty(d.Slot), nullIfEmpty(d.Model), nullIfEmpty(d.Manufacturer),
		d.Capacity, models.NormalizeInterfaceType(string(d.InterfaceType)))
	return wrap("upsert disk", err)
}

func (t *pgTx) DeleteDisks(ctx context.Context, assetID int64, serials []string) error {
	if len(serials) == 0 {
		return nil
	}
	_, err := t.q.ExecContext(ctx, `DELETE FROM disks WHERE asset_id = $1 AND sn = ANY($2)`, assetID, pq.Array(serials))
	return wrap("delete disks", err)
}

// NICs

func (t *pgTx) ListNICs(ctx context.Context, assetID int64) ([]models.NIC, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT id, asset_id, name, model, mac, ip_address, net_mask, bonding
		FROM nics WHERE asset_id = $1 ORDER BY model ASC, mac ASC`, assetID)
	if err != nil {
		return nil, wrap("list nics", err)
	}
	defer rows.Close()

	out := []models.NIC{}
	for rows.Next() {
		var (
			n                       models.NIC
			name, ip, mask, bonding sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.AssetID, &name, &n.Model, &n.MAC, &ip, &mask, &bonding); err != nil {
			return nil, wrap("scan nic", err)
		}
		n.Name, n.IPAddress, n.NetMask, n.Bonding = name.String, ip.String, mask.String, bonding.String
		out = append(out, n)
	}
	return out, wrap("list nics", rows.Err())
}

func (t *pgTx) UpsertNIC(ctx context.Context, n models.NIC) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO nics (asset_id, name, model, mac, ip_address, net_mask, bonding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (asset_id, model, mac) DO UPDATE SET
			name = EXCLUDED.name,
			ip_address = EXCLUDED.ip_address,
			net_mask = EXCLUDED.net_mask,
			bonding = EXCLUDED.bonding`,
		n.AssetID, nullIfEmpty(n.Name), n.Model, n.MAC, nullIfEmpty(n.IPAddress), nullIfEmpty(n.NetMask), nullIfEmpty(n.Bonding))
	return wrap("upsert nic", err)
}

func (t *pgTx) DeleteNICs(ctx context.Context, assetID int64, keys []models.NICKey) error {
	if len(keys) == 0 {
		return nil
	}
	nicModels := make([]string, len(keys))
	macs := make([]string, len(keys))
	for i, k := range keys {
		nicModels[i], macs[i] = k.Model, k.MAC
	}
	_, err := t.q.ExecContext(ctx, `
		DELETE FROM nics
		WHERE asset_id = $1 AND (model, mac) IN (SELECT * FROM unnest($2::text[], $3::text[]))`,
		assetID, pq.Array(nicModels), pq.Array(macs))
	return wrap("delete nics", err)
}
