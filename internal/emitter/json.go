package emitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// File names written by JSONEmitter.
const (
	InventoryFile = "inventory.json"
	SummaryFile   = "findings_summary.json"
)

// FindingsSummary is the short per-run digest written next to the inventory.
type FindingsSummary struct {
	RunInfo      resource.RunInfo `json:"run_info"`
	GlobalCounts map[string]int   `json:"global_counts"`
	RegionCounts map[string]int   `json:"region_counts"`
	Errors       int              `json:"errors"`
}

// Summarize builds the findings summary of inv.
func Summarize(inv *resource.Inventory) FindingsSummary {
	s := FindingsSummary{
		RunInfo:      inv.RunInfo,
		GlobalCounts: map[string]int{string(resource.S3Buckets): 0, string(resource.IAMUsers): 0},
		RegionCounts: map[string]int{},
	}
	if inv.Snapshot == nil {
		return s
	}
	s.GlobalCounts[string(resource.S3Buckets)] = len(inv.Global.Resources[resource.S3Buckets])
	s.GlobalCounts[string(resource.IAMUsers)] = len(inv.Global.Resources[resource.IAMUsers])
	for c, n := range inv.Counts() {
		s.RegionCounts[string(c)] = n
	}
	s.Errors = inv.ErrorCount()
	return s
}

// JSONEmitter writes the inventory and its summary as indented JSON files.
type JSONEmitter struct {
	dir string
}

// NewJSONEmitter creates an emitter writing into dir.
func NewJSONEmitter(dir string) *JSONEmitter {
	return &JSONEmitter{dir: dir}
}

// Emit writes inventory.json and findings_summary.json.
func (e *JSONEmitter) Emit(_ context.Context, inv *resource.Inventory) error {
	if err := WriteJSON(filepath.Join(e.dir, InventoryFile), inv); err != nil {
		return err
	}
	if err := WriteJSON(filepath.Join(e.dir, SummaryFile), Summarize(inv)); err != nil {
		return err
	}
	log.Info().Str("dir", e.dir).Msg("json outputs written")
	return nil
}

// Close is a no-op for the JSON emitter.
func (e *JSONEmitter) Close() error {
	return nil
}

// WriteJSON writes v to path as indented JSON.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
