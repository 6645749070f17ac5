// Package task holds the rules evaluated against every open issue and pull request.
package task

import (
	"errors"
	"fmt"
	"sync"

	"github.com/naka-gawa/github-taskmail/internal/domain"
)

// ErrInvalidRuleKind is returned when a rule is registered under an unknown kind.
var ErrInvalidRuleKind = errors.New("invalid rule kind")

// CheckFunc inspects an item and returns a violation message, or "" when the item is fine.
type CheckFunc func(item domain.Item) (string, error)

// Rule is a named check, optionally attributed to a fixed assignee instead of the item's.
type Rule struct {
	Name     string
	Assignee string
	Check    CheckFunc
}

// Registry holds the ordered rules for each kind.
// It is filled at startup and only read once runs begin.
type Registry struct {
	mu    sync.RWMutex
	rules map[domain.Kind][]Rule
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[domain.Kind][]Rule)}
}

// Register appends rule to the list for kind. kind must be exactly "issue" or "pull-request".
func (r *Registry) Register(kind string, rule Rule) error {
	k := domain.Kind(kind)
	if k != domain.KindIssue && k != domain.KindPullRequest {
		return fmt.Errorf("%w: %q (can either be %q or %q)", ErrInvalidRuleKind, kind, domain.KindIssue, domain.KindPullRequest)
	}
	if rule.Check == nil {
		return fmt.Errorf("rule %q has no check function", rule.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[k] = append(r.rules[k], rule)
	return nil
}

// Rules returns the rules registered for kind, in registration order.
func (r *Registry) Rules(kind domain.Kind) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Rule(nil), r.rules[kind]...)
}

// Len returns the total number of registered rules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules[domain.KindIssue]) + len(r.rules[domain.KindPullRequest])
}
