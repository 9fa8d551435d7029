package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"cmdb-api/internal/apperr"
)

// Report is the inventory document an agent submits for one asset.
type Report struct {
	SerialNumber string `json:"serial_number,omitempty"`
	SN           string `json:"sn,omitempty"`
	AssetType    string `json:"asset_type"`
	SubAssetType string `json:"sub_asset_type,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	ManageIP     string `json:"manage_ip,omitempty" validate:"omitempty,ip"`

	CPUModel     string `json:"cpu_model,omitempty"`
	CPUCount     int    `json:"cpu_count,omitempty" validate:"gte=0"`
	CPUCoreCount int    `json:"cpu_core_count,omitempty" validate:"gte=0"`
	RAMSize      int    `json:"ram_size,omitempty" validate:"gte=0"`

	OSType         string `json:"os_type,omitempty"`
	OSDistribution string `json:"os_distribution,omitempty"`
	OSRelease      string `json:"os_release,omitempty"`
	RaidType       string `json:"raid_type,omitempty"`

	VlanIP       string `json:"vlan_ip,omitempty"`
	IntranetIP   string `json:"intranet_ip,omitempty"`
	Firmware     string `json:"firmware,omitempty"`
	PortNum      int    `json:"port_num,omitempty"`
	DeviceDetail string `json:"device_detail,omitempty"`

	LicenseNum int    `json:"license_num,omitempty"`
	Version    string `json:"version,omitempty"`

	RAM   []RAMEntry  `json:"ram,omitempty"`
	Disks []DiskEntry `json:"physical_disk_driver,omitempty"`
	NICs  []NICEntry  `json:"nic,omitempty"`
}

type RAMEntry struct {
	Slot         string `json:"slot"`
	SN           string `json:"sn,omitempty"`
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Capacity     int    `json:"capacity,omitempty" validate:"gte=0"`
}

type DiskEntry struct {
	SN            string  `json:"sn"`
	Slot          string  `json:"slot,omitempty"`
	Model         string  `json:"model,omitempty"`
	Manufacturer  string  `json:"manufacturer,omitempty"`
	Capacity      float64 `json:"capacity,omitempty" validate:"gte=0"`
	InterfaceType string  `json:"interface_type,omitempty"`
}

type NICEntry struct {
	Name      string  `json:"name,omitempty"`
	Model     string  `json:"model"`
	MAC       string  `json:"mac"`
	IPAddress string  `json:"ip_address,omitempty" validate:"omitempty,ip"`
	NetMask   NetMask `json:"net_mask,omitempty"`
	Bonding   string  `json:"bonding,omitempty"`
}

// NetMask accepts either a single mask or a list of masks.
type NetMask []string

func (m *NetMask) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one == "" {
			*m = nil
		} else {
			*m = NetMask{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("net_mask: %w", err)
	}
	*m = many
	return nil
}

// First returns the first mask; later masks are not stored.
func (m NetMask) First() string {
	if len(m) == 0 {
		return ""
	}
	return m[0]
}

// ParseReport decodes a raw report document.
func ParseReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, apperr.Validation("malformed report: " + err.Error())
	}
	return &r, nil
}

// Serial returns serial_number, falling back to the legacy sn field.
func (r *Report) Serial() string {
	if sn := strings.TrimSpace(r.SerialNumber); sn != "" {
		return sn
	}
	return strings.TrimSpace(r.SN)
}

// Check validates the scalar fields stored on the asset root.
func (r *Report) Check() error {
	return checkFields(r)
}

// Summary builds the quarantine listing projection. ram_size falls back to
// the sum of RAM entry capacities.
func (r *Report) Summary() QuarantineSummary {
	ramSize := r.RAMSize
	if ramSize == 0 {
		for _, e := range r.RAM {
			ramSize += e.Capacity
		}
	}
	assetType := r.AssetType
	if t, ok := ParseAssetType(r.AssetType); ok {
		assetType = string(t)
	}
	return QuarantineSummary{
		AssetType:      assetType,
		Manufacturer:   r.Manufacturer,
		Model:          r.Model,
		RAMSize:        ramSize,
		CPUModel:       r.CPUModel,
		CPUCount:       r.CPUCount,
		CPUCoreCount:   r.CPUCoreCount,
		OSType:         r.OSType,
		OSDistribution: r.OSDistribution,
		OSRelease:      r.OSRelease,
	}
}

func (r *Report) CPU(assetID int64) CPU {
	return CPU{
		AssetID:      assetID,
		CPUModel:     r.CPUModel,
		CPUCount:     r.CPUCount,
		CPUCoreCount: r.CPUCoreCount,
	}
}

// Check requires a slot and sane field values.
func (e RAMEntry) Check() error {
	if strings.TrimSpace(e.Slot) == "" {
		return apperr.Validation("unknown RAM slot")
	}
	return checkFields(e)
}

func (e RAMEntry) RAM(assetID int64) RAM {
	return RAM{
		AssetID:      assetID,
		Slot:         e.Slot,
		SerialNumber: e.SN,
		Model:        e.Model,
		Manufacturer: e.Manufacturer,
		Capacity:     e.Capacity,
	}
}

// Check requires a serial number and sane field values.
func (e DiskEntry) Check() error {
	if strings.TrimSpace(e.SN) == "" {
		return apperr.Validation("unknown disk serial")
	}
	return checkFields(e)
}

func (e DiskEntry) Disk(assetID int64) Disk {
	return Disk{
		AssetID:       assetID,
		SerialNumber:  e.SN,
		Slot:          e.Slot,
		Model:         e.Model,
		Manufacturer:  e.Manufacturer,
		Capacity:      e.Capacity,
		InterfaceType: NormalizeInterfaceType(e.InterfaceType),
	}
}

// Check requires a MAC address and a model.
func (e NICEntry) Check() error {
	if strings.TrimSpace(e.MAC) == "" {
		return apperr.ValidationField("mac", "missing NIC mac address")
	}
	if strings.TrimSpace(e.Model) == "" {
		return apperr.ValidationField("model", "unknown NIC model")
	}
	return checkFields(e)
}

func (e NICEntry) NIC(assetID int64) NIC {
	return NIC{
		AssetID:   assetID,
		Name:      e.Name,
		Model:     e.Model,
		MAC:       e.MAC,
		IPAddress: e.IPAddress,
		NetMask:   e.NetMask.First(),
		Bonding:   e.Bonding,
	}
}
