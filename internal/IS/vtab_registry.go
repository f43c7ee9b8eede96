package IS

import (
	"sort"
	"strings"

	DS "github.com/cyw0ng95/pivotvtab/internal/DS"
)

// Registry maps virtual table module names to modules. It is built once,
// when the host starts, and is read-only afterwards, so lookups need no
// locking.
type Registry struct {
	modules map[string]DS.VTabModule
	names   []string
}

// NewRegistry builds a registry from the given modules. Module names are
// matched case-insensitively, as SQLite does.
func NewRegistry(modules map[string]DS.VTabModule) *Registry {
	r := &Registry{modules: make(map[string]DS.VTabModule, len(modules))}
	for name, mod := range modules {
		key := strings.ToLower(name)
		if _, dup := r.modules[key]; !dup {
			r.names = append(r.names, key)
		}
		r.modules[key] = mod
	}
	sort.Strings(r.names)
	return r
}

// GetVTabModule returns the virtual table module registered under name.
func (r *Registry) GetVTabModule(name string) (DS.VTabModule, bool) {
	if r == nil {
		return nil, false
	}
	mod, ok := r.modules[strings.ToLower(name)]
	return mod, ok
}

// ListVTabModules returns the names of all registered modules in sorted order.
func (r *Registry) ListVTabModules() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
