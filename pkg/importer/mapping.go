package importer

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sheet roles understood by the importer.
const (
	SheetAssets = "assets"
	SheetRAM    = "ram"
	SheetDisks  = "disks"
	SheetNICs   = "nics"
)

// parentField links a component row to the asset row it belongs to.
const parentField = "asset_serial"

// MappingConfig represents the YAML mapping configuration
type MappingConfig struct {
	Version int                    `yaml:"version"`
	Sheets  map[string]SheetConfig `yaml:"sheets"`
}

// SheetConfig describes one sheet role: the sheet names it may appear
// under and the columns it carries, keyed by report field.
type SheetConfig struct {
	Names   []string                `yaml:"names"`
	Columns map[string]ColumnConfig `yaml:"columns"`
}

type ColumnConfig struct {
	Type    string   `yaml:"type"`
	Aliases []string `yaml:"aliases"`
}

func text(aliases ...string) ColumnConfig { return ColumnConfig{Type: "text", Aliases: aliases} }
func number(aliases ...string) ColumnConfig { return ColumnConfig{Type: "int", Aliases: aliases} }

// DefaultMapping is used when no mapping file is configured or the
// configured file does not exist.
func DefaultMapping() *MappingConfig {
	parent := text("Asset Serial", "Asset SN", "Server Serial")
	return &MappingConfig{
		Version: 1,
		Sheets: map[string]SheetConfig{
			SheetAssets: {
				Names: []string{"Assets", "Inventory"},
				Columns: map[string]ColumnConfig{
					"serial_number":   text("Serial", "Serial Number", "S/N", "SN"),
					"asset_type":      text("Type", "Asset Type"),
					"sub_asset_type":  text("Subtype", "Sub Type"),
					"manufacturer":    text("Vendor", "Manufacturer", "Make"),
					"model":           text("Model"),
					"manage_ip":       {Type: "ip", Aliases: []string{"Mgmt IP", "Management IP", "IP Address"}},
					"cpu_model":       text("CPU Model", "CPU"),
					"cpu_count":       number("CPU Count", "Sockets"),
					"cpu_core_count":  number("CPU Cores", "Cores"),
					"ram_size":        number("RAM", "RAM Size", "Memory"),
					"os_type":         text("OS", "OS Type"),
					"os_distribution": text("OS Distribution", "Distribution"),
					"os_release":      text("OS Release", "Release"),
					"raid_type":       text("RAID", "RAID Type"),
					"vlan_ip":         {Type: "ip", Aliases: []string{"VLAN IP"}},
					"intranet_ip":     {Type: "ip", Aliases: []string{"Intranet IP"}},
					"firmware":        text("Firmware"),
					"port_num":        number("Ports", "Port Count"),
					"device_detail":   text("Detail", "Device Detail", "Notes"),
					"license_num":     number("Licenses", "License Count"),
					"version":         text("Version"),
				},
			},
			SheetRAM: {
				Names: []string{"RAM", "Memory"},
				Columns: map[string]ColumnConfig{
					parentField:    parent,
					"slot":         text("Slot"),
					"sn":           text("Module SN", "Module Serial"),
					"model":        text("Model"),
					"manufacturer": text("Vendor", "Manufacturer"),
					"capacity":     number("Capacity", "Size"),
				},
			},
			SheetDisks: {
				Names: []string{"Disks", "Physical Disks"},
				Columns: map[string]ColumnConfig{
					parentField:      parent,
					"sn":             text("Disk SN", "Disk Serial"),
					"slot":           text("Slot"),
					"model":          text("Model"),
					"manufacturer":   text("Vendor", "Manufacturer"),
					"capacity":       {Type: "float", Aliases: []string{"Capacity", "Size"}},
					"interface_type": text("Interface", "Interface Type"),
				},
			},
			SheetNICs: {
				Names: []string{"NICs", "Network Interfaces"},
				Columns: map[string]ColumnConfig{
					parentField:  parent,
					"name":       text("Name", "Interface"),
					"model":      text("Model"),
					"mac":        text("MAC", "MAC Address"),
					"ip_address": {Type: "ip", Aliases: []string{"IP", "IP Address"}},
					"net_mask":   text("Netmask", "Net Mask"),
					"bonding":    text("Bonding", "Bond"),
				},
			},
		},
	}
}

// LoadMapping reads a mapping file. Sheet roles the file does not mention
// keep their defaults.
func LoadMapping(path string) (*MappingConfig, error) {
	mapping := DefaultMapping()
	if path == "" {
		return mapping, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return mapping, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mapping %s: %w", path, err)
	}

	var file MappingConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse mapping %s: %w", path, err)
	}
	for role, sheet := range file.Sheets {
		if _, ok := mapping.Sheets[role]; !ok {
			return nil, fmt.Errorf("mapping %s: unknown sheet role %q", path, role)
		}
		mapping.Sheets[role] = sheet
	}
	if file.Version != 0 {
		mapping.Version = file.Version
	}
	return mapping, nil
}

// matches reports whether a workbook sheet name belongs to this role.
func (s SheetConfig) matches(name string) bool {
	for _, n := range s.Names {
		if strings.EqualFold(strings.TrimSpace(n), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// resolve maps a header cell to a report field. The field name itself is
// always accepted, with spaces standing in for underscores.
func (s SheetConfig) resolve(header string) (string, bool) {
	norm := normalizeHeader(header)
	if norm == "" {
		return "", false
	}
	for field, col := range s.Columns {
		if normalizeHeader(field) == norm {
			return field, true
		}
		for _, alias := range col.Aliases {
			if normalizeHeader(alias) == norm {
				return field, true
			}
		}
	}
	return "", false
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), " ")
}

func parseValue(value, valueType string) (interface{}, error) {
	switch strings.ToLower(valueType) {
	case "", "text", "string":
		return value, nil
	case "int":
		// Numeric cells may come back as "4096.0".
		if f, err := strconv.ParseFloat(value, 64); err == nil && f == float64(int64(f)) {
			return int64(f), nil
		}
		return nil, fmt.Errorf("invalid integer: %s", value)
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number: %s", value)
		}
		return f, nil
	case "ip":
		if net.ParseIP(value) == nil {
			return nil, fmt.Errorf("invalid IP address: %s", value)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unknown column type %q", valueType)
	}
}
