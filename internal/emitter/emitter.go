// Package emitter writes a completed inventory to its outputs: JSON files,
// the Excel workbook and Prometheus gauges.
package emitter

import (
	"context"
	"errors"
	"fmt"

	"github.com/KiaraAya/aws-audit-tool/pkg/resource"
)

// Emitter publishes one inventory per run.
type Emitter interface {
	Emit(ctx context.Context, inv *resource.Inventory) error
	Close() error
}

// MultiEmitter runs emitters in order.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates a fan-out over emitters.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

// Add appends an emitter.
func (m *MultiEmitter) Add(e Emitter) {
	m.emitters = append(m.emitters, e)
}

// Emit stops at the first failing emitter; later outputs are not written.
func (m *MultiEmitter) Emit(ctx context.Context, inv *resource.Inventory) error {
	for i, e := range m.emitters {
		if err := e.Emit(ctx, inv); err != nil {
			return fmt.Errorf("emitter %d (%T): %w", i, e, err)
		}
	}
	return nil
}

// Close closes every emitter and joins their errors.
func (m *MultiEmitter) Close() error {
	var errs []error
	for _, e := range m.emitters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
