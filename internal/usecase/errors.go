package usecase

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication aborts a run before any repository is scanned.
	ErrAuthentication = errors.New("cannot authenticate to GitHub")
	// ErrNoContact marks an assignee whose address could not be resolved.
	ErrNoContact = errors.New("no contact address")
)

// FetchError is returned when the open items of a repository could not be fetched.
type FetchError struct {
	Repository string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Repository, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RuleEvaluationError is returned when a rule failed on an item, aborting the repository scan.
type RuleEvaluationError struct {
	Repository string
	ItemID     int64
	Rule       string
	Err        error
}

func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("evaluating rule %q on item %d of %s: %v", e.Rule, e.ItemID, e.Repository, e.Err)
}

func (e *RuleEvaluationError) Unwrap() error { return e.Err }

// DeliveryError is returned when a report could not be handed to the transport.
type DeliveryError struct {
	Assignee string
	Address  string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering report of %s to %s: %v", e.Assignee, e.Address, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
