package runtime

import (
	"context"

	"github.com/tetratelabs/wazero"
)

// Profiling is a guest module ready to run.
type Profiling struct {
	compiled wazero.CompiledModule

	// Bytes is the module binary. It is never modified.
	Bytes []byte

	// IsAOT marks a module that needs no further precompilation.
	IsAOT bool
}

// Precompiled reports whether p carries a compiled module.
func (p Profiling) Precompiled() bool { return p.compiled != nil }

// Precompile returns p unchanged when it is already AOT. Otherwise it
// compiles the bytes (at most once per distinct module) and returns a
// Profiling that runs the compiled form.
func (r *Runtime) Precompile(ctx context.Context, p Profiling) (Profiling, error) {
	if p.IsAOT {
		return p, nil
	}
	c, err := r.compile(ctx, p.Bytes)
	if err != nil {
		return p, err
	}
	return Profiling{Bytes: p.Bytes, IsAOT: true, compiled: c}, nil
}
