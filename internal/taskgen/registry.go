package taskgen

import (
	"sort"
	"sync"
)

// Generator produces the test tasks for one role.
type Generator interface {
	// GenerateTasks returns the ordered task list for ctx. The count and
	// competency labels depend only on ctx.
	GenerateTasks(ctx Context) ([]Task, error)

	// EvaluationHint tells evaluators what good output looks like for a
	// competency.
	EvaluationHint(competency string) string
}

// Registry maps role identifiers to generators.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
	fallback   Generator
}

// NewRegistry creates an empty registry whose unknown roles use the generic
// generator.
func NewRegistry() *Registry {
	return &Registry{
		generators: map[string]Generator{},
		fallback:   Generic{},
	}
}

// DefaultRegistry returns a registry with every built-in role.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(RoleSecretary, Secretary{})
	r.Register(RoleCritic, Critic{})
	r.Register(RoleAnalyst, Analyst{})
	r.Register(RolePromptEngineer, PromptEngineer{})
	return r
}

// Register binds g to role, replacing any previous binding.
func (r *Registry) Register(role string, g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[role] = g
}

// For returns the generator for role or the generic fallback.
func (r *Registry) For(role string) Generator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.generators[role]; ok {
		return g
	}
	return r.fallback
}

// Has reports whether role has a dedicated generator.
func (r *Registry) Has(role string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.generators[role]
	return ok
}

// Roles lists registered roles in sorted order.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roles := make([]string, 0, len(r.generators))
	for role := range r.generators {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Generate resolves ctx.Role and runs its generator.
func (r *Registry) Generate(ctx Context) ([]Task, error) {
	return r.For(ctx.Role).GenerateTasks(ctx)
}

func hintFrom(hints map[string]string, competency string) string {
	if h, ok := hints[competency]; ok {
		return h
	}
	return genericHints[competency]
}
