package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
)

// RemotePolicy bounds every outbound call with a timeout. Reads are retried
// with exponential backoff; writes run exactly once so a timeout can never
// produce a duplicate row or folder.
type RemotePolicy struct {
	Timeout      time.Duration
	ReadAttempts int
	BaseBackoff  time.Duration
}

// DefaultRemotePolicy returns the policy used when nothing is configured
func DefaultRemotePolicy() RemotePolicy {
	return RemotePolicy{
		Timeout:      15 * time.Second,
		ReadAttempts: 3,
		BaseBackoff:  500 * time.Millisecond,
	}
}

// Read runs an idempotent call, retrying transient failures
func (p RemotePolicy) Read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.ReadAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = p.call(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if port.IsPermanent(lastErr) || ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			backoff := p.BaseBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", op, ctx.Err())
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

// Write runs a non-idempotent call once
func (p RemotePolicy) Write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if err := p.call(ctx, fn); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p RemotePolicy) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(callCtx)
}
