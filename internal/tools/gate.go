package tools

import (
	"fmt"

	"github.com/RobertBecaria/MARGOCRM/internal/core"
	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

// Capability names a partition of the registry.
type Capability string

const (
	Privileged Capability = "privileged"
	Restricted Capability = "restricted"
)

// CapabilityFor maps a role to its capability set.
func CapabilityFor(role store.Role) Capability {
	if role.Privileged() {
		return Privileged
	}
	return Restricted
}

// Catalog is the immutable set of tools one capability may see and invoke.
type Catalog struct {
	capability Capability
	allowed    map[Name]*Tool
	defs       []core.ToolDefinition
}

// Capability returns the catalog's capability set.
func (c *Catalog) Capability() Capability { return c.capability }

// Definitions returns the tool definitions advertised to the model.
func (c *Catalog) Definitions() []core.ToolDefinition {
	out := make([]core.ToolDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Allows reports whether name may be dispatched under this catalog.
func (c *Catalog) Allows(name string) bool {
	_, ok := c.allowed[Name(name)]
	return ok
}

// Names returns the catalog's tool names in advertised order.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.defs))
	for _, d := range c.defs {
		out = append(out, d.Function.Name)
	}
	return out
}

// Gate scopes the registry to a caller: it picks the visible catalog and
// rewrites self-scoped arguments of restricted callers to the caller's id.
type Gate struct {
	privileged *Catalog
	restricted *Catalog
}

// NewGate builds both catalogs from the registry.
func NewGate(r *Registry) *Gate {
	return &Gate{
		privileged: buildCatalog(r, Privileged),
		restricted: buildCatalog(r, Restricted),
	}
}

func buildCatalog(r *Registry, c Capability) *Catalog {
	want := AccessPrivileged
	if c == Restricted {
		want = AccessRestricted
	}
	cat := &Catalog{capability: c, allowed: map[Name]*Tool{}}
	for _, t := range r.Tools() {
		if t.Access&want == 0 {
			continue
		}
		cat.allowed[t.Name] = t
		cat.defs = append(cat.defs, t.Definition(c == Restricted))
	}
	return cat
}

// SelectTools returns the catalog for role.
func (g *Gate) SelectTools(role store.Role) *Catalog {
	if CapabilityFor(role) == Privileged {
		return g.privileged
	}
	return g.restricted
}

// EnforceOverrides returns the arguments a call may run with. Privileged
// callers' arguments pass through. For restricted callers, arguments the
// restricted schema does not declare are dropped and every pinned argument is
// set to callerID, whatever the model supplied. args is never modified.
func (g *Gate) EnforceOverrides(role store.Role, name string, args map[string]any, callerID int64) map[string]any {
	out := make(map[string]any, len(args))
	if CapabilityFor(role) == Privileged {
		for k, v := range args {
			out[k] = v
		}
		return out
	}
	t, ok := g.restricted.allowed[Name(name)]
	if !ok {
		// Not dispatchable for this caller; the loop refuses it.
		return out
	}
	for _, p := range t.Params {
		if t.pinned(p.Name) {
			out[p.Name] = callerID
			continue
		}
		if v, present := args[p.Name]; present {
			out[p.Name] = v
		}
	}
	return out
}

// RefusalResult is the tool result recorded when a caller's catalog does not
// contain the requested tool.
func RefusalResult(name string, role store.Role) map[string]any {
	return core.ErrorResult(fmt.Sprintf("Tool %s is not available for role %s", name, role))
}
