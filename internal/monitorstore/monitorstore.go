// Package monitorstore is the scheduled-jobs collection: the store of
// Monitor documents keyed by id, with monitor-id routing and a
// schema-version latch standing in for the search cluster's mapping
// upgrade.
package monitorstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	apperrors "alertengine/internal/errors"
	"alertengine/internal/models"

	"gorm.io/gorm"
)

const currentSchemaVersion = 1

// Store persists Monitor documents.
type Store struct {
	db *gorm.DB

	mu              sync.Mutex
	mappingUpgraded bool
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// EnsureMapping idempotently applies the schema-version upgrade. It is a
// process-wide latch: once upgraded in this process, subsequent calls are
// no-ops.
func (s *Store) EnsureMapping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mappingUpgraded {
		return nil
	}
	if err := s.db.WithContext(ctx).AutoMigrate(&models.Monitor{}); err != nil {
		return apperrors.WrapKind(err, apperrors.KindFatal, "upgrading monitor collection mapping")
	}
	s.mappingUpgraded = true
	return nil
}

// MappingReady reports whether EnsureMapping has succeeded in this
// process.
func (s *Store) MappingReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mappingUpgraded
}

// Get fetches the current version of a monitor by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Monitor, error) {
	var row models.Monitor
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Order("version DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewKind(apperrors.KindNotFound, "monitor not found: "+id)
	}
	if err != nil {
		return nil, apperrors.WrapKind(err, apperrors.KindFatal, "loading monitor")
	}
	if err := unmarshalMonitor(&row); err != nil {
		return nil, err
	}
	return &row, nil
}

// List loads up to maxDocs monitor documents, the same bound the sweeper
// applies to its scheduled-jobs scan.
func (s *Store) List(ctx context.Context, maxDocs int) ([]models.Monitor, error) {
	var rows []models.Monitor
	err := s.db.WithContext(ctx).Limit(maxDocs).Find(&rows).Error
	if err != nil {
		return nil, apperrors.WrapKind(err, apperrors.KindFatal, "listing monitors")
	}
	for i := range rows {
		if err := unmarshalMonitor(&rows[i]); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// Index creates or replaces a monitor document, routed by its own id. This
// is the create/update RPC path, the only one allowed to rewrite a whole
// document; the Monitor Runner never calls this directly (see
// UpdateLastFiredTimes).
func (s *Store) Index(ctx context.Context, monitor *models.Monitor) error {
	if err := monitor.Validate(); err != nil {
		return err
	}
	if err := marshalMonitor(monitor); err != nil {
		return err
	}
	monitor.SchemaVersion = currentSchemaVersion
	if err := s.db.WithContext(ctx).Save(monitor).Error; err != nil {
		return apperrors.WrapKind(err, apperrors.KindFatal, "indexing monitor")
	}
	return nil
}

// UpdateLastFiredTimes persists each trigger's lastFiredTime via a targeted
// partial update against the triggers jsonb column, never a full Save.
// Trigger and action ids are never re-marshaled from a zero-value struct
// because the only thing rewritten is the triggers column of an
// already-loaded row.
func (s *Store) UpdateLastFiredTimes(ctx context.Context, monitor *models.Monitor) error {
	triggersJSON, err := marshalTriggers(monitor.Triggers)
	if err != nil {
		return apperrors.WrapKind(err, apperrors.KindFatal, "marshaling triggers for partial update")
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Monitor{}).
		Where("id = ? AND version = ?", monitor.ID, monitor.Version).
		Updates(map[string]interface{}{
			"triggers":   triggersJSON,
			"updated_at": now,
		})
	if result.Error != nil {
		return apperrors.WrapKind(result.Error, apperrors.KindFatal, "persisting trigger lastFiredTime")
	}
	if result.RowsAffected == 0 {
		return apperrors.NewKind(apperrors.KindNotFound, "monitor not found for lastFiredTime update: "+monitor.ID)
	}
	return nil
}

// wrapKey is the single field name every *JSON column wraps its payload
// under, so marshal/unmarshal are symmetric without per-field key maps.
const wrapKey = "data"

func marshalMonitor(m *models.Monitor) error {
	owner, err := toJSONB(m.Owner)
	if err != nil {
		return apperrors.WrapKind(err, apperrors.KindFatal, "marshaling monitor owner")
	}
	schedule, err := toJSONB(m.Schedule)
	if err != nil {
		return apperrors.WrapKind(err, apperrors.KindFatal, "marshaling monitor schedule")
	}
	triggers, err := marshalTriggers(m.Triggers)
	if err != nil {
		return apperrors.WrapKind(err, apperrors.KindFatal, "marshaling monitor triggers")
	}
	m.OwnerJSON = owner
	m.ScheduleJSON = schedule
	m.TriggersJSON = triggers
	return nil
}

func marshalTriggers(triggers []models.Trigger) (models.JSONB, error) {
	return toJSONB(triggers)
}

func unmarshalMonitor(m *models.Monitor) error {
	if err := fromJSONB(m.OwnerJSON, &m.Owner); err != nil {
		return apperrors.WrapKind(err, apperrors.KindFatal, "unmarshaling monitor owner")
	}
	if err := fromJSONB(m.ScheduleJSON, &m.Schedule); err != nil {
		return apperrors.WrapKind(err, apperrors.KindFatal, "unmarshaling monitor schedule")
	}
	if err := fromJSONB(m.TriggersJSON, &m.Triggers); err != nil {
		return apperrors.WrapKind(err, apperrors.KindFatal, "unmarshaling monitor triggers")
	}
	return nil
}

func toJSONB(v interface{}) (models.JSONB, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return models.JSONB{wrapKey: json.RawMessage(encoded)}, nil
}

func fromJSONB(j models.JSONB, out interface{}) error {
	raw, ok := j[wrapKey]
	if !ok {
		return nil
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, out)
}
