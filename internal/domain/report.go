package domain

// Violation is a non-empty rule message attributed to the person who must act on it.
type Violation struct {
	Rule     string `json:"rule"`
	Message  string `json:"message"`
	Assignee string `json:"assignee"`
}

// Flagged pairs an item with the violations found for it during a repository scan.
type Flagged struct {
	Record     *Record     `json:"record"`
	Kind       Kind        `json:"kind"`
	Violations []Violation `json:"violations"`
}

// Entry is one item in an assignee's report, with the messages attributed to that assignee.
type Entry struct {
	Record   *Record  `json:"record"`
	Kind     Kind     `json:"kind"`
	Messages []string `json:"messages"`
}

// Bundle maps an assignee login to the items flagged for them.
type Bundle map[string][]Entry

// Payload is what the delivery collaborator renders for one assignee.
type Payload struct {
	Assignee      string  `json:"assignee"`
	Entries       []Entry `json:"entries"`
	MedianAgeDays float64 `json:"median_age_days"`
	OldestAgeDays float64 `json:"oldest_age_days"`
}

// Outcome is the terminal delivery state of one assignee's report.
type Outcome string

const (
	OutcomeSent           Outcome = "sent"
	OutcomeNoContact      Outcome = "no-contact"
	OutcomeDeliveryFailed Outcome = "delivery-failed"
)

// RepoFailure records a repository whose scan did not complete.
type RepoFailure struct {
	Repository string `json:"repository"`
	Err        error  `json:"-"`
	Cause      string `json:"cause"`
}

// DeliveryFailure records a report that could not be delivered.
type DeliveryFailure struct {
	Assignee string `json:"assignee"`
	Address  string `json:"address"`
	Err      error  `json:"-"`
	Cause    string `json:"cause"`
}

// ReportSummary is the outcome of one Reporter pass over a Bundle.
type ReportSummary struct {
	Sent      int                `json:"sent"`
	Skipped   int                `json:"skipped"`
	NoContact []string           `json:"no_contact,omitempty"`
	Failures  []DeliveryFailure  `json:"failures,omitempty"`
	Outcomes  map[string]Outcome `json:"outcomes"`
	Receipts  map[string]string  `json:"receipts,omitempty"`
}

// RunSummary is the structured result of a whole run.
type RunSummary struct {
	RunID        string         `json:"run_id"`
	Repositories int            `json:"repositories"`
	Bundle       Bundle         `json:"-"`
	Assignees    map[string]int `json:"assignees"`
	Failures     []RepoFailure  `json:"repository_failures,omitempty"`
	Report       ReportSummary  `json:"report"`
}

// HasFailures reports whether any repository or delivery failed.
func (s *RunSummary) HasFailures() bool {
	return len(s.Failures) > 0 || len(s.Report.Failures) > 0
}
