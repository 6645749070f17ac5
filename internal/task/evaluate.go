package task

import (
	"fmt"

	"github.com/naka-gawa/github-taskmail/internal/domain"
)

// EvaluationError wraps an error returned by a rule.
type EvaluationError struct {
	Rule string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("rule %q: %v", e.Rule, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Evaluate runs every rule registered for the item's kind, in order, and returns the
// violations that have both a message and someone to report them to.
// A rule error or panic stops the evaluation and is returned as an *EvaluationError.
func (r *Registry) Evaluate(item domain.Item) ([]domain.Violation, error) {
	var violations []domain.Violation
	for _, rule := range r.Rules(item.Kind()) {
		message, err := check(rule, item)
		if err != nil {
			return nil, &EvaluationError{Rule: rule.Name, Err: err}
		}
		if message == "" {
			continue
		}
		assignee := rule.Assignee
		if assignee == "" {
			assignee = item.Assignee()
		}
		if assignee == "" {
			// Nobody to report to.
			continue
		}
		violations = append(violations, domain.Violation{
			Rule:     rule.Name,
			Message:  message,
			Assignee: assignee,
		})
	}
	return violations, nil
}

func check(rule Rule, item domain.Item) (message string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule panicked: %v", r)
		}
	}()
	return rule.Check(item)
}
