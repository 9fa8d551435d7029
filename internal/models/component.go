package models

// CPU is owned one-to-one by an asset.
type CPU struct {
	AssetID      int64  `json:"asset_id"`
	CPUModel     string `json:"cpu_model,omitempty"`
	CPUCount     int    `json:"cpu_count"`
	CPUCoreCount int    `json:"cpu_core_count"`
}

// RAM is identified within an asset by Slot.
type RAM struct {
	ID           int64  `json:"id"`
	AssetID      int64  `json:"asset_id"`
	Slot         string `json:"slot"`
	SerialNumber string `json:"sn,omitempty"`
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Capacity     int    `json:"capacity"`
}

// InterfaceType is the bus a disk is attached through.
type InterfaceType string

const (
	InterfaceSATA    InterfaceType = "SATA"
	InterfaceSAS     InterfaceType = "SAS"
	InterfaceSCSI    InterfaceType = "SCSI"
	InterfaceSSD     InterfaceType = "SSD"
	InterfaceUnknown InterfaceType = "unknown"
)

// NormalizeInterfaceType maps any value outside the known set to unknown.
func NormalizeInterfaceType(s string) InterfaceType {
	switch t := InterfaceType(s); t {
	case InterfaceSATA, InterfaceSAS, InterfaceSCSI, InterfaceSSD, InterfaceUnknown:
		return t
	}
	return InterfaceUnknown
}

// Disk is identified within an asset by SerialNumber.
type Disk struct {
	ID            int64         `json:"id"`
	AssetID       int64         `json:"asset_id"`
	SerialNumber  string        `json:"sn"`
	Slot          string        `json:"slot,omitempty"`
	Model         string        `json:"model,omitempty"`
	Manufacturer  string        `json:"manufacturer,omitempty"`
	Capacity      float64       `json:"capacity"`
	InterfaceType InterfaceType `json:"interface_type"`
}

// NIC is identified within an asset by model and MAC address.
type NIC struct {
	ID        int64  `json:"id"`
	AssetID   int64  `json:"asset_id"`
	Name      string `json:"name,omitempty"`
	Model     string `json:"model"`
	MAC       string `json:"mac"`
	IPAddress string `json:"ip_address,omitempty"`
	NetMask   string `json:"net_mask,omitempty"`
	Bonding   string `json:"bonding,omitempty"`
}

// NICKey is the identity of a NIC within one asset.
type NICKey struct {
	Model string
	MAC   string
}

func (n NIC) Key() NICKey {
	return NICKey{Model: n.Model, MAC: n.MAC}
}
