// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package store

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/assetdesk/assetdesk/internal/access"
	"github.com/assetdesk/assetdesk/pkg/errutil"
)

// Default retry configuration values.
const (
	defaultRetryAttempts = 3
	defaultRetryBase     = 50 * time.Millisecond
	defaultRetryCap      = time.Second
)

// RetryStore retries transient LoadOverride failures of the wrapped store
// with exponential backoff. Saves and deletes are passed through once: the
// editing UI owns their retry policy.
type RetryStore struct {
	next     access.OverrideStore
	attempts uint64
	base     time.Duration
	maxDelay time.Duration
}

// RetryOption configures a RetryStore.
type RetryOption func(*RetryStore)

// WithRetryAttempts sets how many retries follow the first failed load.
func WithRetryAttempts(n uint64) RetryOption {
	return func(s *RetryStore) {
		s.attempts = n
	}
}

// WithRetryBackoff sets the initial and maximum delay between retries.
func WithRetryBackoff(base, maxDelay time.Duration) RetryOption {
	return func(s *RetryStore) {
		if base > 0 {
			s.base = base
		}
		if maxDelay > 0 {
			s.maxDelay = maxDelay
		}
	}
}

// NewRetryStore wraps next with load retries.
func NewRetryStore(next access.OverrideStore, opts ...RetryOption) *RetryStore {
	s := &RetryStore{
		next:     next,
		attempts: defaultRetryAttempts,
		base:     defaultRetryBase,
		maxDelay: defaultRetryCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// permanent reports whether err cannot be fixed by retrying.
func permanent(err error) bool {
	switch errutil.Code(err) {
	case CodeInvalidUserID, CodeNotMigrated, "INVALID_OVERRIDE":
		return true
	default:
		return false
	}
}

// LoadOverride implements access.OverrideStore.
func (s *RetryStore) LoadOverride(ctx context.Context, userID string) (access.Override, bool, error) {
	var (
		override access.Override
		found    bool
	)
	backoff := retry.NewExponential(s.base)
	backoff = retry.WithCappedDuration(s.maxDelay, backoff)
	backoff = retry.WithMaxRetries(s.attempts, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		o, ok, err := s.next.LoadOverride(ctx, userID)
		if err != nil {
			if permanent(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		override, found = o, ok
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return override, found, nil
}

// SaveOverride implements access.OverrideStore.
func (s *RetryStore) SaveOverride(ctx context.Context, userID string, override access.Override) error {
	return s.next.SaveOverride(ctx, userID, override)
}

// DeleteOverride implements access.OverrideStore.
func (s *RetryStore) DeleteOverride(ctx context.Context, userID string) error {
	return s.next.DeleteOverride(ctx, userID)
}
