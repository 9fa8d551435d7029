package models

// Detail is the type-specific record owned one-to-one by an asset.
type Detail interface {
	DetailType() AssetType
}

type Server struct {
	AssetID        int64  `json:"asset_id"`
	SubAssetType   string `json:"sub_asset_type,omitempty"`
	CreatedBy      string `json:"created_by"`
	Model          string `json:"model,omitempty"`
	RaidType       string `json:"raid_type,omitempty"`
	OSType         string `json:"os_type,omitempty"`
	OSDistribution string `json:"os_distribution,omitempty"`
	OSRelease      string `json:"os_release,omitempty"`
}

func (Server) DetailType() AssetType { return AssetTypeServer }

type NetworkDevice struct {
	AssetID      int64  `json:"asset_id"`
	SubAssetType string `json:"sub_asset_type,omitempty"`
	Model        string `json:"model,omitempty"`
	VlanIP       string `json:"vlan_ip,omitempty"`
	IntranetIP   string `json:"intranet_ip,omitempty"`
	Firmware     string `json:"firmware,omitempty"`
	PortNum      int    `json:"port_num,omitempty"`
	DeviceDetail string `json:"device_detail,omitempty"`
}

func (NetworkDevice) DetailType() AssetType { return AssetTypeNetworkDevice }

type StorageDevice struct {
	AssetID      int64  `json:"asset_id"`
	SubAssetType string `json:"sub_asset_type,omitempty"`
	Model        string `json:"model,omitempty"`
}

func (StorageDevice) DetailType() AssetType { return AssetTypeStorageDevice }

type SecurityDevice struct {
	AssetID      int64  `json:"asset_id"`
	SubAssetType string `json:"sub_asset_type,omitempty"`
	Model        string `json:"model,omitempty"`
}

func (SecurityDevice) DetailType() AssetType { return AssetTypeSecurityDevice }

type Software struct {
	AssetID      int64  `json:"asset_id"`
	SubAssetType string `json:"sub_asset_type,omitempty"`
	LicenseNum   int    `json:"license_num,omitempty"`
	Version      string `json:"version,omitempty"`
}

func (Software) DetailType() AssetType { return AssetTypeSoftware }
