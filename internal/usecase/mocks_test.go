package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/naka-gawa/github-taskmail/internal/domain"
)

// mockFetcher is a mock implementation of the gateway.Fetcher interface.
// It allows us to simulate the behavior of the GitHub gateway without making real API calls.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Authenticate(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockFetcher) SearchOpenItems(ctx context.Context, repo string) ([]*domain.Record, error) {
	args := m.Called(ctx, repo)
	// We need to handle the case where the returned slice is nil (e.g., when an error occurs).
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Record), args.Error(1)
}

func (m *mockFetcher) LookupEmail(ctx context.Context, login string) (string, error) {
	args := m.Called(ctx, login)
	return args.String(0), args.Error(1)
}

// mockDeliverer records every delivery request.
type mockDeliverer struct {
	mock.Mock
}

func (m *mockDeliverer) Deliver(ctx context.Context, to string, payload domain.Payload) (string, error) {
	args := m.Called(ctx, to, payload)
	return args.String(0), args.Error(1)
}

// contacts is a fixed set of address overrides.
type contacts map[string]string

func (c contacts) ContactFor(login string) (string, bool) {
	email, ok := c[login]
	return email, ok && email != ""
}
