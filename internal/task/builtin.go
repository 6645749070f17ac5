package task

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/naka-gawa/github-taskmail/internal/config"
	"github.com/naka-gawa/github-taskmail/internal/domain"
)

// builder creates the check of a built-in rule from its declaration.
type builder func(tc config.TaskConfig, now func() time.Time) (CheckFunc, error)

var builtins = map[string]builder{
	"require-label":    requireLabel,
	"forbid-label":     forbidLabel,
	"stale":            stale,
	"title-pattern":    titlePattern,
	"require-assignee": requireAssignee,
}

// BuiltinNames returns the names of the built-in rules, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterConfigured builds each declared task and registers it, stopping at the first error.
func (r *Registry) RegisterConfigured(tasks []config.TaskConfig, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	for i, tc := range tasks {
		build, ok := builtins[tc.Rule]
		if !ok {
			return fmt.Errorf("task #%d: unknown rule %q", i+1, tc.Rule)
		}
		check, err := build(tc, now)
		if err != nil {
			return fmt.Errorf("task #%d (%s): %w", i+1, tc.Rule, err)
		}
		if err := r.Register(tc.Kind, Rule{Name: tc.Rule, Assignee: tc.Assignee, Check: check}); err != nil {
			return fmt.Errorf("task #%d (%s): %w", i+1, tc.Rule, err)
		}
	}
	return nil
}

func messageOr(tc config.TaskConfig, fallback string) string {
	if tc.Message != "" {
		return tc.Message
	}
	return fallback
}

func labelsOf(item domain.Item) []string {
	if l, ok := item.(domain.Labeled); ok {
		return l.Labels()
	}
	return nil
}

func hasAnyLabel(have, want []string) bool {
	for _, w := range want {
		if slices.ContainsFunc(have, func(h string) bool { return strings.EqualFold(h, w) }) {
			return true
		}
	}
	return false
}

// requireLabel flags items with none of the listed labels, or with no label at all if none are listed.
func requireLabel(tc config.TaskConfig, _ func() time.Time) (CheckFunc, error) {
	msg := messageOr(tc, "missing label")
	return func(item domain.Item) (string, error) {
		have := labelsOf(item)
		if len(tc.Labels) == 0 {
			if len(have) == 0 {
				return msg, nil
			}
			return "", nil
		}
		if !hasAnyLabel(have, tc.Labels) {
			return msg, nil
		}
		return "", nil
	}, nil
}

func forbidLabel(tc config.TaskConfig, _ func() time.Time) (CheckFunc, error) {
	if len(tc.Labels) == 0 {
		return nil, fmt.Errorf("labels must not be empty")
	}
	msg := messageOr(tc, "carries label "+strings.Join(tc.Labels, ", "))
	return func(item domain.Item) (string, error) {
		if hasAnyLabel(labelsOf(item), tc.Labels) {
			return msg, nil
		}
		return "", nil
	}, nil
}

// stale flags items not updated for more than tc.Days days.
func stale(tc config.TaskConfig, now func() time.Time) (CheckFunc, error) {
	if tc.Days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", tc.Days)
	}
	limit := time.Duration(tc.Days) * 24 * time.Hour
	return func(item domain.Item) (string, error) {
		d, ok := item.(domain.Dated)
		if !ok || d.UpdatedAt().IsZero() {
			return "", nil
		}
		idle := now().Sub(d.UpdatedAt())
		if idle <= limit {
			return "", nil
		}
		if tc.Message != "" {
			return tc.Message, nil
		}
		return fmt.Sprintf("no activity for %d days", int(idle.Hours()/24)), nil
	}, nil
}

func titlePattern(tc config.TaskConfig, _ func() time.Time) (CheckFunc, error) {
	re, err := regexp.Compile(tc.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	msg := messageOr(tc, fmt.Sprintf("title does not match %q", tc.Pattern))
	return func(item domain.Item) (string, error) {
		t, ok := item.(domain.Titled)
		if !ok {
			return "", nil
		}
		if re.MatchString(t.Title()) {
			return "", nil
		}
		return msg, nil
	}, nil
}

// requireAssignee flags unassigned items. Without an assignee override the
// violation has no recipient and is dropped, so one is required.
func requireAssignee(tc config.TaskConfig, _ func() time.Time) (CheckFunc, error) {
	if tc.Assignee == "" {
		return nil, fmt.Errorf("assignee override is required")
	}
	msg := messageOr(tc, "nobody is assigned")
	return func(item domain.Item) (string, error) {
		if item.Assignee() == "" {
			return msg, nil
		}
		return "", nil
	}, nil
}
