// Package probe defines the compile-time probe registry and the child
// process lifecycle the Tests Manager drives. Individual probe
// implementations (ICMP, DNS, TLS, SQL, HTTP, etc.) are deliberately out
// of scope per spec.md §1 — only the registry and child-process
// interface are specified. The registry is a fixed, compile-time table
// rather than any form of dynamic/plugin loading, per spec.md §9's
// explicit recommendation and the resulting Non-goal.
package probe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// Probe is one monitoring check a Run can execute. Run receives the
// Test's opaque test_params blob (already JSON-decoded) and must return
// a terminal status plus an opaque result payload, or an error if the
// probe itself could not execute (mapped to ResultStatusError by the
// child process entrypoint).
type Probe interface {
	Run(ctx context.Context, params json.RawMessage) (models.ResultStatus, string, error)
}

// ProbeFunc adapts a plain function to the Probe interface.
type ProbeFunc func(ctx context.Context, params json.RawMessage) (models.ResultStatus, string, error)

// Run calls f.
func (f ProbeFunc) Run(ctx context.Context, params json.RawMessage) (models.ResultStatus, string, error) {
	return f(ctx, params)
}

// registry is the compile-time probe table, keyed by Test.Name -- the
// original resolves the same way (TestsManager.load_module imports
// "tests."+test.name).
var registry = map[string]Probe{}

// Register adds a probe under name. Intended to be called from package
// init() in files that ship a concrete probe implementation.
func Register(name string, p Probe) {
	registry[name] = p
}

// Lookup returns the probe registered under name, or an error if none
// exists -- the Go analogue of the original's ImportError handling in
// load_module.
func Lookup(name string) (Probe, error) {
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("probe: no probe registered under name %q", name)
	}
	return p, nil
}
