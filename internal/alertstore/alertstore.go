// Package alertstore persists Alert documents to the active collection,
// routed by monitor id, and copies/deletes them for the history alias.
// Writes are at-least-once: a caller that retries a crashed run may
// duplicate an alert. Deduplication is deliberately not this package's job.
package alertstore

import (
	"context"
	"sync"
	"time"

	"alertengine/internal/errors"
	"alertengine/internal/models"
	"alertengine/internal/recovery"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Store persists alerts to the active and history collections.
type Store struct {
	db          *gorm.DB
	retryConfig recovery.RetryConfig

	mu    sync.Mutex
	ready bool
}

func New(db *gorm.DB) *Store {
	return &Store{
		db: db,
		retryConfig: recovery.RetryConfig{
			MaxAttempts:   5,
			InitialDelay:  100 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			BackoffFactor: 2.0,
			Jitter:        true,
			RetryCondition: func(err error) bool {
				return errors.IsKind(err, errors.KindTransient)
			},
			Logger: logrus.StandardLogger(),
		},
	}
}

// EnsureCollections idempotently ensures the active and history tables
// exist before any run writes to them. A successful call latches the
// store ready; CollectionsReady reports that latch to the sweeper.
func (s *Store) EnsureCollections(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.Alert{}, &models.AlertHistory{}); err != nil {
		return errors.WrapKind(err, errors.KindFatal, "ensuring alert collections exist")
	}
	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()
	return nil
}

// CollectionsReady reports whether both alert collections have been
// successfully initialized in this process.
func (s *Store) CollectionsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// SaveAlerts issues a single bulk write with refresh-immediate semantics
// (a single transaction). A Transient failure rolls the transaction back
// and the whole batch is retried under the store's backoff policy; once the
// attempts are exhausted the error is returned as Fatal. Any other failure
// aborts the batch at once, carrying the failing insert's cause.
func (s *Store) SaveAlerts(ctx context.Context, alerts []models.Alert, monitor models.Monitor) error {
	if len(alerts) == 0 {
		return nil
	}
	for i := range alerts {
		alerts[i].RoutingKey = monitor.ID
	}

	err := recovery.Retry(ctx, s.retryConfig, func(ctx context.Context) error {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(alerts, 100).Error
		})
		if err == nil {
			return nil
		}
		if isTransientStoreError(err) {
			return errors.WrapKind(err, errors.KindTransient, "alert bulk write throttled")
		}
		return errors.WrapKind(err, errors.KindFatal, "alert bulk write failed")
	})
	if errors.IsKind(err, errors.KindTransient) {
		return errors.WrapKind(err, errors.KindFatal, "alert bulk write retries exhausted")
	}
	return err
}

// isTransientStoreError decides which failures get the 429-style backoff
// treatment against a relational backend. It delegates to
// recovery.IsRetryable, which matches the error message against patterns
// such as "connection refused", "timeout" and "too many requests";
// messages outside that list (a serialization failure, for one) are not
// retried.
func isTransientStoreError(err error) bool {
	return recovery.IsRetryable(err)
}

// ListActive loads up to maxDocs alerts from the active collection, the
// sweeper's match-all-with-versions scan.
func (s *Store) ListActive(ctx context.Context, maxDocs int) ([]models.Alert, error) {
	var rows []models.Alert
	if err := s.db.WithContext(ctx).Limit(maxDocs).Find(&rows).Error; err != nil {
		return nil, errors.WrapKind(err, errors.KindFatal, "listing active alerts")
	}
	return rows, nil
}

// CopyToHistory bulk-copies the given alerts into the history alias,
// preserving id and enforcing external-gte versioning: a
// history row is only overwritten by a copy whose version is >= its own.
// Copies that fail are returned so the caller can skip deleting them from
// the active collection; firstErr carries the first failure's cause as the
// caller's retry hint.
func (s *Store) CopyToHistory(ctx context.Context, alerts []models.Alert) (copied, failed []models.Alert, firstErr error) {
	const upsert = `
INSERT INTO alerts_history (
	id, monitor_id, monitor_name, monitor_version, trigger_id, trigger_name,
	query, query_results, triggered_time, expiration_time, severity,
	error_message, execution_id, routing_key, version, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	query_results = EXCLUDED.query_results,
	expiration_time = EXCLUDED.expiration_time,
	error_message = EXCLUDED.error_message,
	version = EXCLUDED.version
WHERE EXCLUDED.version >= alerts_history.version`

	for _, a := range alerts {
		err := s.db.WithContext(ctx).Exec(upsert,
			a.ID, a.MonitorID, a.MonitorName, a.MonitorVersion, a.TriggerID, a.TriggerName,
			a.Query, a.QueryResults, a.TriggeredTime, a.ExpirationTime, a.Severity,
			a.ErrorMessage, a.ExecutionID, a.RoutingKey, a.Version, a.CreatedAt,
		).Error
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failed = append(failed, a)
			continue
		}
		copied = append(copied, a)
	}
	return copied, failed, firstErr
}

// DeleteActive bulk-deletes the given alerts from the active collection
// using external-gte versioning: a row is only deleted if its stored
// version has not advanced past the version the caller observed.
func (s *Store) DeleteActive(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	for _, a := range alerts {
		err := s.db.WithContext(ctx).
			Where("id = ? AND version <= ?", a.ID, a.Version).
			Delete(&models.Alert{}).Error
		if err != nil {
			return errors.WrapKind(err, errors.KindFatal, "deleting expired active alert "+a.ID)
		}
	}
	return nil
}
