package rewrite

import (
	"fmt"

	"relic/internal/ir"
)

// FormatVersion selects which legacy format a module is being prepared for.
type FormatVersion int

const (
	// V50 is the oldest supported format. It predates fneg and gets the
	// sparse in-place rewrite driven by the type inference engine.
	V50 FormatVersion = iota
	// V70 gets the full marker treatment: every pointer definition and use
	// is wrapped in a no-op cast.
	V70
)

func (v FormatVersion) String() string {
	switch v {
	case V50:
		return "5.0"
	case V70:
		return "7.0"
	}
	return fmt.Sprintf("FormatVersion(%d)", int(v))
}

// ParseFormatVersion maps a version argument to a FormatVersion.
func ParseFormatVersion(s string) (FormatVersion, error) {
	switch s {
	case "5.0":
		return V50, nil
	case "7.0":
		return V70, nil
	}
	return 0, fmt.Errorf("unsupported format version %q (supported: 5.0, 7.0)", s)
}

// Rewriter prepares modules for one legacy format version. Each call to Run
// executes the version's fixed pipeline over one module and reports whether
// the module was modified.
type Rewriter struct {
	version  FormatVersion
	pipeline *Pipeline
}

// NewRewriter builds the pipeline for a format version.
func NewRewriter(version FormatVersion) *Rewriter {
	pipeline := &Pipeline{}
	switch version {
	case V50:
		pipeline.AddPass(&RemoveFreeze{})
		pipeline.AddPass(&DemoteConstExprs{})
		pipeline.AddPass(&RetypePointers{})
	case V70:
		pipeline.AddPass(&RemoveFreeze{})
		pipeline.AddPass(&ReplaceFNeg{})
		pipeline.AddPass(&DemoteConstExprs{})
		pipeline.AddPass(&InsertMarkers{})
	default:
		panic(fmt.Sprintf("rewrite: unknown format version %d", version))
	}
	return &Rewriter{version: version, pipeline: pipeline}
}

// Version returns the target format version.
func (r *Rewriter) Version() FormatVersion { return r.version }

// Run executes the pipeline over a module.
func (r *Rewriter) Run(m *ir.Module) bool {
	log.Infof("preparing %s for format %s", m.Name, r.version)
	return r.pipeline.Run(m)
}
