// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// Kind tells issues and pull requests apart.
type Kind string

const (
	KindIssue       Kind = "issue"
	KindPullRequest Kind = "pull-request"
)

// Item is the read-only view of an open issue or pull request that rules evaluate.
// Richer data is exposed through optional capability interfaces (Titled, Labeled, Dated, ...)
// which rules detect with a type assertion.
type Item interface {
	ID() int64
	Kind() Kind
	Assignee() string
	// Meta returns a free-form field of the source payload.
	Meta(key string) (any, bool)
}

type Titled interface{ Title() string }

type Labeled interface{ Labels() []string }

// Locatable exposes where an item lives.
type Locatable interface {
	Repository() string
	Number() int
	URL() string
}

// Dated exposes the item timestamps.
type Dated interface {
	CreatedAt() time.Time
	UpdatedAt() time.Time
}

// PullRequestRef is the marker a search result carries when it is a pull request.
type PullRequestRef struct {
	URL string `json:"url"`
}

// Record is an item as fetched from the code-hosting API.
// It is never mutated after the gateway has built it.
type Record struct {
	ID          int64           `json:"id"`
	Number      int             `json:"number"`
	Repository  string          `json:"repository"`
	Title       string          `json:"title"`
	URL         string          `json:"url"`
	Author      string          `json:"author"`
	Assignee    string          `json:"assignee,omitempty"`
	Labels      []string        `json:"labels,omitempty"`
	Comments    int             `json:"comments"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	PullRequest *PullRequestRef `json:"pull_request,omitempty"`
	Fields      map[string]any  `json:"-"`
}

// View returns the Item view of r under the given kind.
func (r *Record) View(kind Kind) Item {
	return &recordView{rec: r, kind: kind}
}

type recordView struct {
	rec  *Record
	kind Kind
}

func (v *recordView) ID() int64            { return v.rec.ID }
func (v *recordView) Kind() Kind           { return v.kind }
func (v *recordView) Assignee() string     { return v.rec.Assignee }
func (v *recordView) Title() string        { return v.rec.Title }
func (v *recordView) Labels() []string     { return append([]string(nil), v.rec.Labels...) }
func (v *recordView) CreatedAt() time.Time { return v.rec.CreatedAt }
func (v *recordView) UpdatedAt() time.Time { return v.rec.UpdatedAt }
func (v *recordView) Repository() string   { return v.rec.Repository }
func (v *recordView) Number() int          { return v.rec.Number }
func (v *recordView) URL() string          { return v.rec.URL }

func (v *recordView) Meta(key string) (any, bool) {
	switch key {
	case "author":
		return v.rec.Author, true
	case "comments":
		return v.rec.Comments, true
	}
	val, ok := v.rec.Fields[key]
	return val, ok
}
