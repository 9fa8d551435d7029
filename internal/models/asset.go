package models

import (
	"strings"
	"time"
)

// AssetType selects the detail record and component set of an asset.
type AssetType string

const (
	AssetTypeServer         AssetType = "server"
	AssetTypeNetworkDevice  AssetType = "network_device"
	AssetTypeStorageDevice  AssetType = "storage_device"
	AssetTypeSecurityDevice AssetType = "security_device"
	AssetTypeSoftware       AssetType = "software"
)

// AssetTypes lists the accepted asset types in display order.
var AssetTypes = []AssetType{
	AssetTypeServer,
	AssetTypeNetworkDevice,
	AssetTypeStorageDevice,
	AssetTypeSecurityDevice,
	AssetTypeSoftware,
}

var legacyAssetTypes = map[string]AssetType{
	"networkdevice":  AssetTypeNetworkDevice,
	"storagedevice":  AssetTypeStorageDevice,
	"securitydevice": AssetTypeSecurityDevice,
}

// ParseAssetType normalizes s and reports whether it names a known type.
// Legacy spellings without the underscore are accepted.
func ParseAssetType(s string) (AssetType, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if t, ok := legacyAssetTypes[v]; ok {
		return t, true
	}
	for _, t := range AssetTypes {
		if string(t) == v {
			return t, true
		}
	}
	return AssetType(v), false
}

// AssetStatus is the operational state of an asset.
type AssetStatus string

const (
	StatusOnline     AssetStatus = "online"
	StatusOffline    AssetStatus = "offline"
	StatusUnknown    AssetStatus = "unknown"
	StatusOutOfOrder AssetStatus = "out_of_order"
	StatusBackup     AssetStatus = "backup"
)

// Asset is the authoritative root record of an approved piece of inventory.
type Asset struct {
	ID             int64       `json:"id"`
	AssetType      AssetType   `json:"asset_type"`
	Name           string      `json:"name"`
	SerialNumber   string      `json:"serial_number"`
	Status         AssetStatus `json:"status"`
	ManufacturerID *int64      `json:"manufacturer_id,omitempty"`
	ManageIP       *string     `json:"manage_ip,omitempty"`
	ApprovedBy     *int64      `json:"approved_by,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Manufacturer is the global manufacturer lookup, unique by name.
type Manufacturer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// AssetGraph is an asset with everything it owns.
type AssetGraph struct {
	Asset        Asset         `json:"asset"`
	Manufacturer *Manufacturer `json:"manufacturer,omitempty"`
	Detail       Detail        `json:"detail,omitempty"`
	CPU          *CPU          `json:"cpu,omitempty"`
	RAM          []RAM         `json:"ram"`
	Disks        []Disk        `json:"disks"`
	NICs         []NIC         `json:"nics"`
}
