package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-taskmail/internal/domain"
	"github.com/naka-gawa/github-taskmail/internal/gateway"
)

// Orchestrator is the use case for one audit run.
// It fans the scanner out over the repositories, merges the results and hands them to the reporter.
type Orchestrator struct {
	fetcher     gateway.Fetcher
	scanner     *Scanner
	reporter    *Reporter
	concurrency int
	logger      *log.Logger
}

// NewOrchestrator creates a new Orchestrator instance. concurrency <= 0 means no limit.
func NewOrchestrator(fetcher gateway.Fetcher, scanner *Scanner, reporter *Reporter, concurrency int, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher:     fetcher,
		scanner:     scanner,
		reporter:    reporter,
		concurrency: concurrency,
		logger:      logger,
	}
}

type scanResult struct {
	flagged []domain.Flagged
	err     error
}

// Run scans every repository and reports the merged bundle once.
// Only a failed authentication returns an error; every other failure is listed in the summary.
func (o *Orchestrator) Run(ctx context.Context, repositories []string) (*domain.RunSummary, error) {
	runID := uuid.NewString()
	o.logger.Printf("Usecase: Starting run %s over %d repositories...", runID, len(repositories))

	login, err := o.fetcher.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	o.logger.Printf("Usecase: Authenticated as %s.", login)

	results := o.scanAll(ctx, repositories)

	summary := &domain.RunSummary{
		RunID:        runID,
		Repositories: len(repositories),
	}
	var succeeded [][]domain.Flagged
	for i, res := range results {
		if res.err != nil {
			o.logger.Printf("Usecase: Repository %s failed: %v", repositories[i], res.err)
			summary.Failures = append(summary.Failures, domain.RepoFailure{
				Repository: repositories[i],
				Err:        res.err,
				Cause:      res.err.Error(),
			})
			continue
		}
		succeeded = append(succeeded, res.flagged)
	}

	summary.Bundle = Merge(succeeded...)
	summary.Assignees = make(map[string]int, len(summary.Bundle))
	for assignee, entries := range summary.Bundle {
		summary.Assignees[assignee] = len(entries)
	}
	o.logger.Printf("Usecase: %d repositories scanned, %d failed, %d assignees to notify.",
		len(repositories)-len(summary.Failures), len(summary.Failures), len(summary.Bundle))

	summary.Report = o.reporter.Report(ctx, summary.Bundle)
	o.logger.Println("Usecase: Run complete.")
	return summary, nil
}

// scanAll runs one scan per repository and waits for all of them.
// Each task stores its own outcome, so one failure never cancels its siblings.
func (o *Orchestrator) scanAll(ctx context.Context, repositories []string) []scanResult {
	results := make([]scanResult, len(repositories))
	var eg errgroup.Group
	if o.concurrency > 0 {
		eg.SetLimit(o.concurrency)
	}
	for i, repo := range repositories {
		eg.Go(func() error {
			flagged, err := o.scanner.ScanRepository(ctx, repo)
			results[i] = scanResult{flagged: flagged, err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// Merge builds the report bundle: every violation is filed under its assignee, and the
// messages of one item for one assignee are grouped in a single entry.
func Merge(scans ...[]domain.Flagged) domain.Bundle {
	bundle := make(domain.Bundle)
	type key struct {
		assignee string
		record   *domain.Record
	}
	index := make(map[key]int)
	for _, flagged := range scans {
		for _, f := range flagged {
			for _, v := range f.Violations {
				if v.Assignee == "" || v.Message == "" {
					continue
				}
				k := key{assignee: v.Assignee, record: f.Record}
				if i, ok := index[k]; ok {
					bundle[v.Assignee][i].Messages = append(bundle[v.Assignee][i].Messages, v.Message)
					continue
				}
				index[k] = len(bundle[v.Assignee])
				bundle[v.Assignee] = append(bundle[v.Assignee], domain.Entry{
					Record:   f.Record,
					Kind:     f.Kind,
					Messages: []string{v.Message},
				})
			}
		}
	}
	return bundle
}
