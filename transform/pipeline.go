package transform

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type entry struct {
	stage Stage
	name  string
}

// Pipeline is the ordered list of registered stages.
type Pipeline struct {
	virtualizer Virtualizer
	logger      *zap.Logger
	stages      []entry
	mu          sync.RWMutex
	trace       bool
}

// NewPipeline creates an empty pipeline logging to logger (nil for none).
func NewPipeline(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{logger: logger}
}

// SetTrace enables per-stage debug logging.
func (p *Pipeline) SetTrace(on bool) {
	p.mu.Lock()
	p.trace = on
	p.mu.Unlock()
}

// Register appends a plugin's stage. The first virtualizing plugin becomes
// the active Virtualizer. Stages are never reordered or deduplicated.
func (p *Pipeline) Register(pl Plugin) error {
	if pl.stage == nil {
		return fmt.Errorf("transformer %q has no stage", pl.name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stages = append(p.stages, entry{name: pl.name, stage: pl.stage})
	if pl.kind == KindVirtualizingTransformer && p.virtualizer == nil {
		p.virtualizer = pl.virtualizer
		p.logger.Debug("name virtualizer installed", zap.String("transformer", pl.name))
	}
	return nil
}

// Stages returns the registered stage names in registration order.
func (p *Pipeline) Stages() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.stages))
	for i, e := range p.stages {
		names[i] = e.name
	}
	return names
}

// Len returns the number of registered stages.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.stages)
}

// Virtualizer returns the active virtualizer, or the identity mapping.
func (p *Pipeline) Virtualizer() Virtualizer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.virtualizer == nil {
		return identity{}
	}
	return p.virtualizer
}

// Apply runs every stage in order over code. A nil result from one stage is
// passed on to the next; no stage is skipped.
func (p *Pipeline) Apply(name, transformedName string, code []byte) []byte {
	p.mu.RLock()
	stages := p.stages
	trace := p.trace
	p.mu.RUnlock()

	if trace {
		p.logger.Debug("beginning transform",
			zap.String("name", name),
			zap.String("transformed", transformedName),
			zap.Int("length", len(code)))
	}

	for _, e := range stages {
		if trace {
			p.logger.Debug("before transformer",
				zap.String("name", name),
				zap.String("transformer", e.name),
				zap.Int("length", len(code)))
		}
		code = e.stage.Transform(name, transformedName, code)
		if trace {
			p.logger.Debug("after transformer",
				zap.String("name", name),
				zap.String("transformer", e.name),
				zap.Int("length", len(code)),
				zap.Bool("absent", code == nil))
		}
	}
	return code
}
