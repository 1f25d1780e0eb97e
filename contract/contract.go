package contract

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero/api"

	"github.com/miampf/schnuffel/hosterr"
)

// Entry point names exported by every plugin module.
const (
	DefaultConfig = "default_config"
	ExecOnNode    = "exec_on_node"
	ExecOnGraph   = "exec_on_graph"
)

// ABI exports used by the host to move bytes across the boundary.
const (
	ExportMemory  = "memory"
	ExportAlloc   = "alloc"
	ExportDealloc = "dealloc"
)

// Host capabilities a module may import.
const (
	HostModule = "schnuffel"
	HostLog    = "log"
	WASIModule = "wasi_snapshot_preview1"
)

// Signature is the core WebAssembly type of an export.
type Signature struct {
	Params  []api.ValueType
	Results []api.ValueType
}

func (s Signature) String() string {
	names := func(ts []api.ValueType) string {
		out := make([]string, len(ts))
		for i, t := range ts {
			out[i] = api.ValueTypeName(t)
		}
		return strings.Join(out, ",")
	}
	return fmt.Sprintf("(%s)->(%s)", names(s.Params), names(s.Results))
}

func (s Signature) matches(def api.FunctionDefinition) bool {
	return slices.Equal(s.Params, def.ParamTypes()) && slices.Equal(s.Results, def.ResultTypes())
}

var (
	// EntrySignature is shared by all three entry points: (ptr, len) of the
	// request in, ptr<<32|len of the response out.
	EntrySignature = Signature{
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI64},
	}
	AllocSignature = Signature{
		Params:  []api.ValueType{api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	}
	DeallocSignature = Signature{
		Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
	}
	LogSignature = Signature{
		Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
	}
)

// EntryPoints lists the required entry points in the order they are checked.
var EntryPoints = []string{DefaultConfig, ExecOnNode, ExecOnGraph}

// Module is the static view of a compiled module needed for verification.
// wazero.CompiledModule satisfies it.
type Module interface {
	ExportedFunctions() map[string]api.FunctionDefinition
	ExportedMemories() map[string]api.MemoryDefinition
	ImportedFunctions() []api.FunctionDefinition
}

// VerifyOption adjusts Verify.
type VerifyOption func(*verifyConfig)

type verifyConfig struct {
	allowWASI bool
}

// AllowWASI permits imports from wasi_snapshot_preview1.
func AllowWASI() VerifyOption {
	return func(c *verifyConfig) {
		c.allowWASI = true
	}
}

// Verify checks that m exports every entry point and ABI function with the
// expected signature and imports nothing the host does not grant. All problems
// are reported in one CONTRACT_MISMATCH error.
func Verify(m Module, opts ...VerifyOption) error {
	var cfg verifyConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var problems []string
	exports := m.ExportedFunctions()

	check := func(name string, want Signature, required bool) {
		def, ok := exports[name]
		if !ok {
			if required {
				problems = append(problems, fmt.Sprintf("missing export %s", name))
			}
			return
		}
		if !want.matches(def) {
			got := Signature{Params: def.ParamTypes(), Results: def.ResultTypes()}
			problems = append(problems, fmt.Sprintf("export %s has signature %s, want %s", name, got, want))
		}
	}

	for _, name := range EntryPoints {
		check(name, EntrySignature, true)
	}
	check(ExportAlloc, AllocSignature, true)
	check(ExportDealloc, DeallocSignature, false)

	if _, ok := m.ExportedMemories()[ExportMemory]; !ok {
		problems = append(problems, "missing export memory")
	}

	for _, def := range m.ImportedFunctions() {
		module, name, _ := def.Import()
		switch {
		case module == HostModule && name == HostLog:
			if !LogSignature.matches(def) {
				got := Signature{Params: def.ParamTypes(), Results: def.ResultTypes()}
				problems = append(problems, fmt.Sprintf("import %s.%s has signature %s, want %s", module, name, got, LogSignature))
			}
		case module == WASIModule && cfg.allowWASI:
		default:
			problems = append(problems, fmt.Sprintf("import %s.%s is not provided by the host", module, name))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return hosterr.New("contract.Verify", hosterr.KindLoad, hosterr.CodeContractMismatch,
		strings.Join(problems, "; ")).
		WithDetails(map[string]any{"problems": problems})
}
