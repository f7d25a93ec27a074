package rbac

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/toolroom-erp/toolroom/internal/shared"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

type policyFile struct {
	Actions  map[string][]string `yaml:"actions"`
	Counters map[string][]string `yaml:"counters"`
}

// Policy answers which role may trigger which action and see which counters.
type Policy struct {
	actions  map[Action]map[Role]struct{}
	counters map[Role]map[Counter]struct{}
}

// ParsePolicy builds a Policy from its YAML form.
func ParsePolicy(data []byte) (*Policy, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("rbac: parse policy: %w", err)
	}
	p := &Policy{
		actions:  make(map[Action]map[Role]struct{}, len(file.Actions)),
		counters: make(map[Role]map[Counter]struct{}, len(file.Counters)),
	}
	for action, roles := range file.Actions {
		set := make(map[Role]struct{}, len(roles))
		for _, raw := range roles {
			role, ok := ParseRole(raw)
			if !ok {
				return nil, fmt.Errorf("rbac: action %s: unknown role %q", action, raw)
			}
			set[role] = struct{}{}
		}
		p.actions[Action(action)] = set
	}
	for raw, counters := range file.Counters {
		role, ok := ParseRole(raw)
		if !ok {
			return nil, fmt.Errorf("rbac: counters: unknown role %q", raw)
		}
		set := make(map[Counter]struct{}, len(counters))
		for _, c := range counters {
			set[Counter(c)] = struct{}{}
		}
		p.counters[role] = set
	}
	return p, nil
}

var (
	defaultOnce   sync.Once
	defaultPolicy *Policy
)

// DefaultPolicy returns the embedded role policy.
func DefaultPolicy() *Policy {
	defaultOnce.Do(func() {
		p, err := ParsePolicy(defaultPolicyYAML)
		if err != nil {
			panic(err)
		}
		defaultPolicy = p
	})
	return defaultPolicy
}

// Allowed reports whether role may trigger action.
func (p *Policy) Allowed(role Role, action Action) bool {
	if p == nil {
		return false
	}
	_, ok := p.actions[action][role]
	return ok
}

// Authorize returns a Forbidden error unless the actor's role may trigger action.
func (p *Policy) Authorize(actor Actor, action Action) error {
	if actor.Role == "" {
		return shared.Forbidden("%s requires an acting role", action)
	}
	if !p.Allowed(actor.Role, action) {
		return shared.Forbidden("role %s may not %s", actor.Role, action)
	}
	return nil
}

// CanSee reports whether role may see the given dashboard counter.
func (p *Policy) CanSee(role Role, counter Counter) bool {
	if p == nil {
		return false
	}
	_, ok := p.counters[role][counter]
	return ok
}

// RolesFor lists the roles allowed to trigger action.
func (p *Policy) RolesFor(action Action) []Role {
	var roles []Role
	for _, r := range Roles() {
		if p.Allowed(r, action) {
			roles = append(roles, r)
		}
	}
	return roles
}

// ActionsFor lists the actions role may trigger, sorted.
func (p *Policy) ActionsFor(role Role) []Action {
	var out []Action
	if p == nil {
		return out
	}
	for action, roles := range p.actions {
		if _, ok := roles[role]; ok {
			out = append(out, action)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CountersFor lists the dashboard counters role may see, sorted.
func (p *Policy) CountersFor(role Role) []Counter {
	var out []Counter
	if p == nil {
		return out
	}
	for c := range p.counters[role] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
