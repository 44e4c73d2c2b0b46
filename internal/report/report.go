// Package report renders an inventory as an Excel workbook.
package report

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

// TableStyle is applied to every sheet that has data rows.
const TableStyle = "TableStyleMedium18"

const maxColumnWidth = 45

var (
	unsafeTableChars = regexp.MustCompile(`[^A-Za-z0-9_]`)
	tableNameStart   = regexp.MustCompile(`^[A-Za-z_]`)
)

// sheetData is one worksheet ready to be written.
type sheetData struct {
	name string
	rows [][]any
}

// Build writes the workbook for inv to path.
func Build(inv *resource.Inventory, path string) error {
	sheets := buildSheets(inv)

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				return fmt.Errorf("rename sheet %s: %w", s.name, err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s); err != nil {
			return fmt.Errorf("write sheet %s: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func buildSheets(inv *resource.Inventory) []sheetData {
	snap := inv.Snapshot
	if snap == nil {
		snap = &resource.Snapshot{Global: resource.NewGlobalRecord()}
	}

	var sheets []sheetData
	summaryHeader := make([]any, 0, len(regionSheets)+len(globalSheets)+1)
	summaryRow := make([]any, 0, cap(summaryHeader))

	for _, layout := range regionSheets {
		rows := [][]any{layout.headers()}
		for _, item := range snap.Items {
			for _, r := range item.Resources[layout.category] {
				rows = append(rows, layout.row(item.Region, r))
			}
		}
		sheets = append(sheets, sheetData{name: layout.name, rows: rows})
		summaryHeader = append(summaryHeader, layout.name)
		summaryRow = append(summaryRow, len(rows)-1)
	}

	for _, layout := range globalSheets {
		rows := [][]any{layout.headers()}
		for _, r := range snap.Global.Resources[layout.category] {
			rows = append(rows, layout.row("", r))
		}
		sheets = append(sheets, sheetData{name: layout.name, rows: rows})
		summaryHeader = append(summaryHeader, layout.name)
		summaryRow = append(summaryRow, len(rows)-1)
	}

	errRows := errorRows(snap)
	sheets = append(sheets, sheetData{name: "Errors", rows: errRows})
	summaryHeader = append(summaryHeader, "Errors")
	summaryRow = append(summaryRow, len(errRows)-1)

	sheets = append(sheets,
		sheetData{name: "Run_Info", rows: runInfoRows(inv.RunInfo, snap.Global.AccountAliases)},
		sheetData{name: "Summary", rows: [][]any{summaryHeader, summaryRow}},
	)
	return sheets
}

// errorRows lists every failure in the snapshot, global first then by region.
func errorRows(snap *resource.Snapshot) [][]any {
	rows := [][]any{{"Scope", "Category", "Code", "Message"}}

	if snap.Global.Failure != nil {
		rows = append(rows, []any{"global", "global", snap.Global.Failure.Code, snap.Global.Failure.Message})
	}
	for _, c := range resource.GlobalCategories {
		if e := snap.Global.Errors[c]; e != nil {
			rows = append(rows, []any{"global", string(c), e.Code, e.Message})
		}
	}

	for _, item := range snap.Items {
		if item.Failure != nil {
			rows = append(rows, []any{item.Region, "region", item.Failure.Code, item.Failure.Message})
		}
		for _, c := range resource.RegionCategories {
			if e := item.Errors[c]; e != nil {
				rows = append(rows, []any{item.Region, string(c), e.Code, e.Message})
			}
		}
		for _, e := range item.DescribeErrors {
			rows = append(rows, []any{item.Region, string(resource.DynamoDBTables) + ":" + e.Name, e.Code, e.Message})
		}
	}
	return rows
}

func runInfoRows(info resource.RunInfo, aliases []string) [][]any {
	return [][]any{
		{"timestamp_utc", "regions", "account_name", "account_id_env", "sts_account", "sts_arn", "account_aliases"},
		{
			info.TimestampUTC,
			joinOrEmpty(info.Regions),
			info.AccountName,
			info.AccountIDEnv,
			info.STSIdentity.Account,
			info.STSIdentity.Arn,
			joinOrEmpty(aliases),
		},
	}
}

func writeSheet(f *excelize.File, s sheetData) error {
	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if len(s.rows) < 2 || len(s.rows[0]) == 0 {
		return setWidths(f, s)
	}

	last, err := excelize.CoordinatesToCellName(len(s.rows[0]), len(s.rows))
	if err != nil {
		return err
	}
	stripes := true
	if err := f.AddTable(s.name, &excelize.Table{
		Range:          "A1:" + last,
		Name:           SafeTableName(s.name + "_Table"),
		StyleName:      TableStyle,
		ShowRowStripes: &stripes,
	}); err != nil {
		return fmt.Errorf("add table: %w", err)
	}
	return setWidths(f, s)
}

// setWidths sizes each column to its longest value, capped at maxColumnWidth.
func setWidths(f *excelize.File, s sheetData) error {
	if len(s.rows) == 0 {
		return nil
	}
	for c := range s.rows[0] {
		longest := 0
		for _, row := range s.rows {
			if c >= len(row) {
				continue
			}
			if n := utf8.RuneCountInString(fmt.Sprint(row[c])); n > longest {
				longest = n
			}
		}
		name, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(s.name, name, name, float64(min(longest+2, maxColumnWidth))); err != nil {
			return err
		}
	}
	return nil
}

// SafeTableName converts name into a valid Excel table name.
func SafeTableName(name string) string {
	if name == "" {
		name = "Sheet"
	}
	n := unsafeTableChars.ReplaceAllString(name, "_")
	if !tableNameStart.MatchString(n) {
		n = "_" + n
	}
	if len(n) > 250 {
		n = n[:250]
	}
	return n
}
