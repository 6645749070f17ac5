package task

import "github.com/naka-gawa/github-taskmail/internal/domain"

// Classify returns KindPullRequest when the record carries a pull request marker.
func Classify(rec *domain.Record) domain.Kind {
	if rec.PullRequest != nil {
		return domain.KindPullRequest
	}
	return domain.KindIssue
}
