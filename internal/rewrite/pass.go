package rewrite

import (
	"github.com/tliron/commonlog"

	"relic/internal/ir"
)

var log = commonlog.GetLogger("relic.rewrite")

// Pass is a single module transformation. Apply mutates the module in place
// and reports whether anything changed.
type Pass interface {
	Name() string
	Apply(m *ir.Module) bool
	Description() string
}

// Pipeline runs passes in a fixed order. There is no branching on
// intermediate results; the per-pass change reports only feed the aggregate
// changed/unchanged answer.
type Pipeline struct {
	passes []Pass
}

// AddPass appends a pass to the pipeline.
func (p *Pipeline) AddPass(pass Pass) {
	p.passes = append(p.passes, pass)
}

// Run executes every pass over the module and reports whether any of them
// changed it.
func (p *Pipeline) Run(m *ir.Module) bool {
	log.Debugf("running %d rewriting passes on %s", len(p.passes), m.Name)

	changed := false
	for _, pass := range p.passes {
		log.Debugf("%s: %s", pass.Name(), pass.Description())
		if pass.Apply(m) {
			log.Debugf("%s changed the module", pass.Name())
			changed = true
		}
	}
	return changed
}
