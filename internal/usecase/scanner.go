// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"log"

	"github.com/naka-gawa/github-taskmail/internal/domain"
	"github.com/naka-gawa/github-taskmail/internal/gateway"
	"github.com/naka-gawa/github-taskmail/internal/task"
)

// Scanner evaluates the open items of one repository.
type Scanner struct {
	fetcher  gateway.Fetcher
	registry *task.Registry
	logger   *log.Logger
}

// NewScanner creates a new Scanner instance.
func NewScanner(fetcher gateway.Fetcher, registry *task.Registry, logger *log.Logger) *Scanner {
	return &Scanner{
		fetcher:  fetcher,
		registry: registry,
		logger:   logger,
	}
}

// ScanRepository fetches every open item of repo and returns those with at least one violation,
// in fetch order. It fails with a *FetchError or a *RuleEvaluationError.
func (s *Scanner) ScanRepository(ctx context.Context, repo string) ([]domain.Flagged, error) {
	records, err := s.fetcher.SearchOpenItems(ctx, repo)
	if err != nil {
		return nil, &FetchError{Repository: repo, Err: err}
	}

	var flagged []domain.Flagged
	for _, rec := range records {
		kind := task.Classify(rec)
		violations, err := s.registry.Evaluate(rec.View(kind))
		if err != nil {
			ruleErr := &RuleEvaluationError{Repository: repo, ItemID: rec.ID, Err: err}
			var evalErr *task.EvaluationError
			if errors.As(err, &evalErr) {
				ruleErr.Rule = evalErr.Rule
				ruleErr.Err = evalErr.Err
			}
			return nil, ruleErr
		}
		if len(violations) == 0 {
			continue
		}
		flagged = append(flagged, domain.Flagged{Record: rec, Kind: kind, Violations: violations})
	}
	s.logger.Printf("Scanned %s: %d of %d items flagged.", repo, len(flagged), len(records))
	return flagged, nil
}
