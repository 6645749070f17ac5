package usecase

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-taskmail/internal/domain"
)

// ContactLookup resolves the public email address of a login.
type ContactLookup interface {
	LookupEmail(ctx context.Context, login string) (string, error)
}

// Contacts holds the configured address overrides.
type Contacts interface {
	ContactFor(login string) (string, bool)
}

// Deliverer renders and sends one report, returning a confirmation token.
type Deliverer interface {
	Deliver(ctx context.Context, to string, payload domain.Payload) (string, error)
}

// Reporter sends every assignee of a bundle their report.
type Reporter struct {
	lookup      ContactLookup
	contacts    Contacts
	deliverer   Deliverer
	concurrency int
	now         func() time.Time
	logger      *log.Logger
}

// NewReporter creates a new Reporter instance. contacts may be nil when no override is configured.
func NewReporter(lookup ContactLookup, contacts Contacts, deliverer Deliverer, concurrency int, logger *log.Logger) *Reporter {
	return &Reporter{
		lookup:      lookup,
		contacts:    contacts,
		deliverer:   deliverer,
		concurrency: concurrency,
		now:         time.Now,
		logger:      logger,
	}
}

type delivery struct {
	assignee string
	address  string
	outcome  domain.Outcome
	receipt  string
	err      error
}

// Report processes each assignee independently and concurrently; no failure stops the others.
func (r *Reporter) Report(ctx context.Context, bundle domain.Bundle) domain.ReportSummary {
	assignees := make([]string, 0, len(bundle))
	for assignee := range bundle {
		assignees = append(assignees, assignee)
	}
	sort.Strings(assignees)

	deliveries := make([]delivery, len(assignees))
	var eg errgroup.Group
	if r.concurrency > 0 {
		eg.SetLimit(r.concurrency)
	}
	for i, assignee := range assignees {
		eg.Go(func() error {
			deliveries[i] = r.reportTo(ctx, assignee, bundle[assignee])
			return nil
		})
	}
	_ = eg.Wait()

	summary := domain.ReportSummary{
		Outcomes: make(map[string]domain.Outcome, len(deliveries)),
		Receipts: make(map[string]string),
	}
	for _, d := range deliveries {
		summary.Outcomes[d.assignee] = d.outcome
		switch d.outcome {
		case domain.OutcomeSent:
			summary.Sent++
			summary.Receipts[d.assignee] = d.receipt
		case domain.OutcomeNoContact:
			summary.Skipped++
			summary.NoContact = append(summary.NoContact, d.assignee)
		case domain.OutcomeDeliveryFailed:
			summary.Failures = append(summary.Failures, domain.DeliveryFailure{
				Assignee: d.assignee,
				Address:  d.address,
				Err:      d.err,
				Cause:    d.err.Error(),
			})
		}
	}
	return summary
}

func (r *Reporter) reportTo(ctx context.Context, assignee string, entries []domain.Entry) delivery {
	address, err := r.resolve(ctx, assignee)
	if err != nil {
		r.logger.Printf("Won't report to %s: %v", assignee, err)
		return delivery{assignee: assignee, outcome: domain.OutcomeNoContact, err: err}
	}

	receipt, err := r.deliverer.Deliver(ctx, address, r.payload(assignee, entries))
	if err != nil {
		derr := &DeliveryError{Assignee: assignee, Address: address, Err: err}
		r.logger.Printf("Report to %s failed: %v", assignee, derr)
		return delivery{assignee: assignee, address: address, outcome: domain.OutcomeDeliveryFailed, err: derr}
	}
	r.logger.Printf("Report sent to %s <%s>: %s", assignee, address, receipt)
	return delivery{assignee: assignee, address: address, outcome: domain.OutcomeSent, receipt: receipt}
}

// resolve prefers the configured override and falls back to the profile lookup.
func (r *Reporter) resolve(ctx context.Context, assignee string) (string, error) {
	if r.contacts != nil {
		if email, ok := r.contacts.ContactFor(assignee); ok {
			return email, nil
		}
	}
	email, err := r.lookup.LookupEmail(ctx, assignee)
	if err != nil {
		return "", &contactError{err: err}
	}
	if email == "" {
		return "", ErrNoContact
	}
	return email, nil
}

type contactError struct{ err error }

func (e *contactError) Error() string { return ErrNoContact.Error() + ": " + e.err.Error() }

func (e *contactError) Unwrap() []error { return []error{ErrNoContact, e.err} }

func (r *Reporter) payload(assignee string, entries []domain.Entry) domain.Payload {
	p := domain.Payload{Assignee: assignee, Entries: entries}
	now := r.now()
	ages := make(stats.Float64Data, 0, len(entries))
	for _, e := range entries {
		if e.Record == nil || e.Record.CreatedAt.IsZero() {
			continue
		}
		ages = append(ages, now.Sub(e.Record.CreatedAt).Hours()/24)
	}
	if median, err := stats.Median(ages); err == nil {
		p.MedianAgeDays, _ = stats.Round(median, 1)
	}
	if oldest, err := stats.Max(ages); err == nil {
		p.OldestAgeDays, _ = stats.Round(oldest, 1)
	}
	return p
}
