package emitter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/KiaraAya/aws-audit-tool/internal/report"
	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

// ReportFile is the workbook name written by ExcelEmitter.
const ReportFile = "audit_report.xlsx"

// ExcelEmitter renders the inventory as a workbook.
type ExcelEmitter struct {
	path string
}

// NewExcelEmitter creates an emitter writing the workbook to path.
func NewExcelEmitter(path string) *ExcelEmitter {
	return &ExcelEmitter{path: path}
}

// Emit builds the workbook.
func (e *ExcelEmitter) Emit(_ context.Context, inv *resource.Inventory) error {
	if err := report.Build(inv, e.path); err != nil {
		return fmt.Errorf("build excel report: %w", err)
	}
	log.Info().Str("path", e.path).Msg("excel report written")
	return nil
}

// Close is a no-op for the Excel emitter.
func (e *ExcelEmitter) Close() error {
	return nil
}
