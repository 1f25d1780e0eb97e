package sandbox

import (
	"context"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/miampf/schnuffel/contract"
	"github.com/miampf/schnuffel/hosterr"
)

// Module is a compiled module. It satisfies contract.Module.
type Module struct {
	runtime *Runtime
	cm      wazero.CompiledModule
}

func (m *Module) ExportedFunctions() map[string]api.FunctionDefinition {
	return m.cm.ExportedFunctions()
}

func (m *Module) ExportedMemories() map[string]api.MemoryDefinition {
	return m.cm.ExportedMemories()
}

func (m *Module) ImportedFunctions() []api.FunctionDefinition {
	return m.cm.ImportedFunctions()
}

// Verify checks the module against the plugin contract, accepting WASI imports
// only when the runtime grants them.
func (m *Module) Verify() error {
	var opts []contract.VerifyOption
	if m.runtime.WASI() {
		opts = append(opts, contract.AllowWASI())
	}
	return contract.Verify(m, opts...)
}

// Instantiate creates a fresh instance with its own memory. The instance runs
// the module's _initialize function, if exported, and nothing else.
func (m *Module) Instantiate(ctx context.Context, opts ...InstanceOption) (*Instance, error) {
	var cfg instanceConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	id := uuid.NewString()
	mc := wazero.NewModuleConfig().
		WithName(id).
		WithStartFunctions("_initialize")

	mod, err := m.runtime.rt.InstantiateModule(ctx, m.cm, mc)
	if err != nil {
		return nil, hosterr.New("sandbox.Instantiate", hosterr.KindInstantiation, "",
			"instantiate module").WithCause(err)
	}

	inst := &Instance{
		id:      id,
		mod:     mod,
		mem:     mod.Memory(),
		alloc:   mod.ExportedFunction(contract.ExportAlloc),
		dealloc: mod.ExportedFunction(contract.ExportDealloc),
		budget:  cfg.budget,
		logger:  m.runtime.logger,
	}
	if inst.mem == nil || inst.alloc == nil {
		_ = mod.Close(ctx)
		return nil, hosterr.New("sandbox.Instantiate", hosterr.KindInstantiation, hosterr.CodeContractMismatch,
			"module lacks memory or alloc")
	}
	return inst, nil
}

// Close releases the compiled code. Instances already created keep running.
func (m *Module) Close(ctx context.Context) error {
	return m.cm.Close(ctx)
}
