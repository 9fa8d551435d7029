package models

import (
	"encoding/json"
	"time"
)

// QuarantineSummary is the listing projection of a staged report.
type QuarantineSummary struct {
	AssetType      string `json:"asset_type,omitempty"`
	Manufacturer   string `json:"manufacturer,omitempty"`
	Model          string `json:"model,omitempty"`
	RAMSize        int    `json:"ram_size"`
	CPUModel       string `json:"cpu_model,omitempty"`
	CPUCount       int    `json:"cpu_count"`
	CPUCoreCount   int    `json:"cpu_core_count"`
	OSType         string `json:"os_type,omitempty"`
	OSDistribution string `json:"os_distribution,omitempty"`
	OSRelease      string `json:"os_release,omitempty"`
}

// QuarantineRecord is an unapproved report staged by serial number.
type QuarantineRecord struct {
	ID           int64           `json:"id"`
	SerialNumber string          `json:"serial_number"`
	Payload      json.RawMessage `json:"payload"`
	QuarantineSummary
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuarantineListItem is what approval listings return; the raw payload is omitted.
type QuarantineListItem struct {
	ID           int64  `json:"id"`
	SerialNumber string `json:"serial_number"`
	QuarantineSummary
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (q QuarantineRecord) ListItem() QuarantineListItem {
	return QuarantineListItem{
		ID:                q.ID,
		SerialNumber:      q.SerialNumber,
		QuarantineSummary: q.QuarantineSummary,
		CreatedAt:         q.CreatedAt,
		UpdatedAt:         q.UpdatedAt,
	}
}
