package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/novaconsult/nova-backend/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = 100 * time.Millisecond
)

// RetryPolicy retries statements that failed on lock contention with
// exponential backoff: BaseDelay, 2*BaseDelay, 4*BaseDelay, ...
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds a policy. Negative retry counts and non-positive
// delays fall back to the defaults.
func NewRetryPolicy(maxRetries int, baseDelay time.Duration) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: baseDelay, sleep: sleepContext}
}

// Delay returns the wait before retry number attempt (zero based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<attempt)
}

// Do runs fn until it succeeds, fails with a non-lock error or exhausts
// MaxRetries retries. Storage failures come back as StorageQueryError;
// data integrity and validation errors pass through untouched.
func (p RetryPolicy) Do(ctx context.Context, log logrus.FieldLogger, op string, fn func() error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, models.ErrDataIntegrity) || errors.Is(err, models.ErrValidation) {
			return err
		}
		if !IsLockError(err) || attempt >= p.MaxRetries {
			return models.StorageQueryError(op, err)
		}

		delay := p.Delay(attempt)
		log.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt + 1,
			"delay":   delay,
		}).Warn("Database locked, retrying")

		if err := sleep(ctx, delay); err != nil {
			return models.StorageQueryError(op, err)
		}
	}
}

// IsLockError reports whether err is a transient lock-contention failure.
func IsLockError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return true
		}
		return false
	}

	return err != nil && strings.Contains(strings.ToLower(err.Error()), "database is locked")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
