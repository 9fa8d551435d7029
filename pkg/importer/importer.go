package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/tealeg/xlsx/v3"

	"cmdb-api/internal/models"
)

// Stager receives one report document per asset row.
type Stager interface {
	StageReport(ctx context.Context, serial string, payload []byte) (*models.QuarantineRecord, error)
}

// Options defines the configuration for workbook import operations
type Options struct {
	MappingPath string // default mapping when empty or missing
	DryRun      bool
	MaxErrors   int // default 50
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	BatchID uuid.UUID  `json:"batch_id"`
	Staged  int        `json:"staged"`
	Skipped int        `json:"skipped"`
	Errors  int        `json:"errors"`
	Samples []RowError `json:"error_samples,omitempty"`
	DryRun  bool       `json:"dry_run"`
}

var (
	ErrNoAssetSheet   = errors.New("workbook has no assets sheet")
	ErrTooManyErrors  = errors.New("too many errors, stopping import")
	errMissingSerial  = errors.New("missing serial number")
	errMissingParent  = errors.New("missing asset serial")
	errDuplicateAsset = errors.New("serial number appears more than once")
)

type row struct {
	sheet  string
	num    int // 1-based, as shown in a spreadsheet
	fields map[string]interface{}
}

// importRun carries the state of one ImportWorkbook call.
type importRun struct {
	opts    Options
	summary ImportSummary
}

func (run *importRun) fail(sheet string, rowNum int, err error) error {
	run.summary.Errors++
	if len(run.summary.Samples) < run.opts.MaxErrors {
		run.summary.Samples = append(run.summary.Samples, RowError{Sheet: sheet, Row: rowNum, Message: err.Error()})
	}
	if run.summary.Errors > run.opts.MaxErrors {
		return fmt.Errorf("%w (%d)", ErrTooManyErrors, run.summary.Errors)
	}
	return nil
}

// ImportWorkbook reads an inventory workbook and stages one report per
// asset row. Component sheets are joined to their asset by serial number.
func ImportWorkbook(ctx context.Context, stager Stager, r io.Reader, opts Options) (ImportSummary, error) {
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = 50
	}
	run := &importRun{
		opts:    opts,
		summary: ImportSummary{BatchID: uuid.New(), DryRun: opts.DryRun},
	}

	mapping, err := LoadMapping(opts.MappingPath)
	if err != nil {
		return run.summary, fmt.Errorf("failed to load mapping config: %w", err)
	}

	// xlsx needs the whole file in memory
	data, err := io.ReadAll(r)
	if err != nil {
		return run.summary, fmt.Errorf("failed to read workbook: %w", err)
	}
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return run.summary, fmt.Errorf("failed to open workbook: %w", err)
	}

	sheets := make(map[string]*xlsx.Sheet)
	for _, sheet := range xlFile.Sheets {
		for role, cfg := range mapping.Sheets {
			if _, taken := sheets[role]; !taken && cfg.matches(sheet.Name) {
				sheets[role] = sheet
			}
		}
	}
	if sheets[SheetAssets] == nil {
		return run.summary, ErrNoAssetSheet
	}

	children := map[string]map[string][]map[string]interface{}{}
	for _, role := range []string{SheetRAM, SheetDisks, SheetNICs} {
		sheet := sheets[role]
		if sheet == nil {
			continue
		}
		rows, err := run.readSheet(sheet, mapping.Sheets[role])
		if err != nil {
			return run.summary, err
		}
		byAsset := map[string][]map[string]interface{}{}
		for _, rw := range rows {
			serial, _ := rw.fields[parentField].(string)
			if serial == "" {
				if err := run.fail(rw.sheet, rw.num, errMissingParent); err != nil {
					return run.summary, err
				}
				continue
			}
			delete(rw.fields, parentField)
			byAsset[serial] = append(byAsset[serial], rw.fields)
		}
		children[role] = byAsset
	}

	assets, err := run.readSheet(sheets[SheetAssets], mapping.Sheets[SheetAssets])
	if err != nil {
		return run.summary, err
	}

	seen := make(map[string]bool)
	for _, rw := range assets {
		if err := ctx.Err(); err != nil {
			return run.summary, err
		}

		serial, _ := rw.fields["serial_number"].(string)
		switch {
		case serial == "":
			err = errMissingSerial
		case seen[serial]:
			err = fmt.Errorf("%w: %s", errDuplicateAsset, serial)
		default:
			seen[serial] = true
			err = run.stage(ctx, stager, serial, rw.fields, children)
		}
		if err != nil {
			if err := run.fail(rw.sheet, rw.num, err); err != nil {
				return run.summary, err
			}
			continue
		}
		run.summary.Staged++
	}

	// component rows whose asset never appeared
	for _, role := range []string{SheetRAM, SheetDisks, SheetNICs} {
		for serial := range children[role] {
			if seen[serial] {
				continue
			}
			err := fmt.Errorf("no asset row for serial %s", serial)
			if err := run.fail(sheets[role].Name, 0, err); err != nil {
				return run.summary, err
			}
		}
	}

	return run.summary, nil
}

// stage builds the report document for one asset row and hands it to
// the stager unless this is a dry run.
func (run *importRun) stage(ctx context.Context, stager Stager, serial string, fields map[string]interface{}, children map[string]map[string][]map[string]interface{}) error {
	if ram := children[SheetRAM][serial]; len(ram) > 0 {
		fields["ram"] = ram
	}
	if disks := children[SheetDisks][serial]; len(disks) > 0 {
		fields["physical_disk_driver"] = disks
	}
	if nics := children[SheetNICs][serial]; len(nics) > 0 {
		fields["nic"] = nics
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	report, err := models.ParseReport(payload)
	if err != nil {
		return err
	}
	if err := report.Check(); err != nil {
		return err
	}

	if run.opts.DryRun {
		return nil
	}
	_, err = stager.StageReport(ctx, serial, payload)
	return err
}

// readSheet maps the header row to report fields and returns every
// non-empty data row. Unknown columns are ignored.
func (run *importRun) readSheet(sheet *xlsx.Sheet, cfg SheetConfig) ([]row, error) {
	var (
		columns []string
		rows    []row
		rowIdx  int
		abort   error
	)

	err := sheet.ForEachRow(func(r *xlsx.Row) error {
		defer func() { rowIdx++ }()

		var cells []string
		if err := r.ForEachCell(func(c *xlsx.Cell) error {
			cells = append(cells, strings.TrimSpace(c.String()))
			return nil
		}); err != nil {
			return err
		}

		if rowIdx == 0 {
			columns = make([]string, len(cells))
			for i, h := range cells {
				if field, ok := cfg.resolve(h); ok {
					columns[i] = field
				}
			}
			return nil
		}

		fields := make(map[string]interface{})
		var cellErr error
		for i, value := range cells {
			if i >= len(columns) || columns[i] == "" || value == "" {
				continue
			}
			field := columns[i]
			parsed, err := parseValue(value, cfg.Columns[field].Type)
			if err != nil && cellErr == nil {
				cellErr = fmt.Errorf("%s: %w", field, err)
			}
			fields[field] = parsed
		}
		if cellErr != nil {
			abort = run.fail(sheet.Name, rowIdx+1, cellErr)
			return abort
		}
		if len(fields) == 0 {
			run.summary.Skipped++
			return nil
		}
		rows = append(rows, row{sheet: sheet.Name, num: rowIdx + 1, fields: fields})
		return nil
	})
	if abort != nil {
		return nil, abort
	}
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet.Name, err)
	}
	return rows, nil
}
