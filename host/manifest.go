package host

import (
	"github.com/miampf/schnuffel/manifest"
	"github.com/miampf/schnuffel/sandbox"
	"github.com/miampf/schnuffel/source"
)

// Manifest records what a host was loaded from.
type Manifest struct {
	// Name is the display name.
	Name string

	// Source is the module source as given.
	Source string

	// Digest is the hex SHA-256 of the loaded module bytes.
	Digest string

	// Pin is the digest the bytes were required to match, if any.
	Pin string
}

// FromManifest builds an Unloaded host from a plugin.yaml manifest. The
// manifest's pin, budget, sandbox and fetch settings and its configuration
// overrides become options; opts are applied after them and win.
func FromManifest(m *manifest.Manifest, opts ...Option) (*Unloaded, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var derived []Option
	if m.Name != "" {
		derived = append(derived, WithName(m.Name))
	}
	if m.SHA256 != "" {
		derived = append(derived, WithSHA256(m.SHA256))
	}
	if d := m.GetBudget(); d > 0 {
		derived = append(derived, WithExecutionBudget(d))
	}
	if len(m.Config) > 0 {
		derived = append(derived, WithConfigOverrides(m.Config))
	}
	if sb := m.Sandbox; sb != nil {
		var sopts []sandbox.Option
		if sb.MemoryLimitPages > 0 {
			sopts = append(sopts, sandbox.WithMemoryLimitPages(sb.MemoryLimitPages))
		}
		if sb.WASI {
			sopts = append(sopts, sandbox.WithWASI())
		}
		if sb.Interpreter {
			sopts = append(sopts, sandbox.WithInterpreter())
		}
		derived = append(derived, WithSandboxOptions(sopts...))
	}
	if f := m.Fetch; f != nil {
		var fopts []source.FetchOption
		if d := f.GetTimeout(); d > 0 {
			fopts = append(fopts, source.WithTimeout(d))
		}
		if f.MaxBytes > 0 {
			fopts = append(fopts, source.WithMaxBytes(f.MaxBytes))
		}
		derived = append(derived, WithFetchOptions(fopts...))
	}

	return New(m.ResolvedSource(), append(derived, opts...)...)
}
