package migration

import (
	"fmt"
	"time"

	"alertengine/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migrator handles database migrations
type Migrator struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewMigrator creates a new database migrator
func NewMigrator(db *gorm.DB, logger *logrus.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// Migrate runs all database migrations
func (m *Migrator) Migrate() error {
	m.logger.Info("Starting database migrations")

	err := m.db.AutoMigrate(
		&models.Monitor{},
		&models.Alert{},
		&models.AlertHistory{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}

	if err := m.createIndexes(); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	if err := m.runCustomMigrations(); err != nil {
		return fmt.Errorf("failed to run custom migrations: %w", err)
	}

	m.logger.Info("Database migrations completed successfully")
	return nil
}

// createIndexes creates additional database indexes for performance
func (m *Migrator) createIndexes() error {
	m.logger.Info("Creating database indexes")

	indexes := []string{
		// === MONITORS TABLE === //
		// Latest-version lookup per monitor id is the hot path for every run.
		"CREATE INDEX IF NOT EXISTS idx_monitors_id_version ON monitors(id, version DESC)",
		"CREATE INDEX IF NOT EXISTS idx_monitors_enabled ON monitors(enabled) WHERE enabled = true",
		"CREATE INDEX IF NOT EXISTS idx_monitors_triggers_gin ON monitors USING GIN(triggers)",

		// === ACTIVE ALERTS TABLE === //
		"CREATE INDEX IF NOT EXISTS idx_alerts_active_expiration ON alerts_active(expiration_time)",
		"CREATE INDEX IF NOT EXISTS idx_alerts_active_monitor_trigger ON alerts_active(monitor_id, trigger_id)",
		"CREATE INDEX IF NOT EXISTS idx_alerts_active_routing ON alerts_active(routing_key)",
		"CREATE INDEX IF NOT EXISTS idx_alerts_active_triggered ON alerts_active(triggered_time DESC)",
		"CREATE INDEX IF NOT EXISTS idx_alerts_active_results_gin ON alerts_active USING GIN(query_results)",

		// === ALERT HISTORY TABLE === //
		"CREATE INDEX IF NOT EXISTS idx_alerts_history_monitor_triggered ON alerts_history(monitor_id, triggered_time DESC)",
		"CREATE INDEX IF NOT EXISTS idx_alerts_history_routing ON alerts_history(routing_key)",
		"CREATE INDEX IF NOT EXISTS idx_alerts_history_expiration ON alerts_history(expiration_time)",
	}

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.logger.WithError(err).WithField("sql", indexSQL).Error("Failed to create index")
			return err
		}
	}

	m.logger.Info("Database indexes created successfully")
	return nil
}

// runCustomMigrations runs custom migration scripts
func (m *Migrator) runCustomMigrations() error {
	m.logger.Info("Running custom migrations")

	if err := m.createMigrationTable(); err != nil {
		return err
	}

	migrations := []Migration{
		{
			ID:          "001_active_alerts_view",
			Description: "Add a view over alerts_active for dashboard queries",
			Up:          m.migration001Up,
		},
		{
			ID:          "002_history_rollover_support",
			Description: "Ensure alerts_history carries the columns the sweeper's archive upsert expects",
			Up:          m.migration002Up,
		},
	}

	for _, migration := range migrations {
		if err := m.runMigration(migration); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", migration.ID, err)
		}
	}

	m.logger.Info("Custom migrations completed")
	return nil
}

// Migration represents a database migration
type Migration struct {
	ID          string
	Description string
	Up          func() error
}

// MigrationRecord tracks applied migrations
type MigrationRecord struct {
	ID          string    `gorm:"primaryKey"`
	Description string
	AppliedAt   time.Time `gorm:"autoCreateTime"`
}

// createMigrationTable creates the migration tracking table
func (m *Migrator) createMigrationTable() error {
	return m.db.AutoMigrate(&MigrationRecord{})
}

// runMigration runs a single migration if it hasn't been applied yet
func (m *Migrator) runMigration(migration Migration) error {
	var record MigrationRecord
	err := m.db.Where("id = ?", migration.ID).First(&record).Error
	if err == nil {
		m.logger.WithField("migration_id", migration.ID).Debug("Migration already applied, skipping")
		return nil
	}

	if err != gorm.ErrRecordNotFound {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"migration_id": migration.ID,
		"description":  migration.Description,
	}).Info("Running migration")

	if err := migration.Up(); err != nil {
		return err
	}

	record = MigrationRecord{
		ID:          migration.ID,
		Description: migration.Description,
	}

	if err := m.db.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	m.logger.WithField("migration_id", migration.ID).Info("Migration completed successfully")
	return nil
}

func (m *Migrator) migration001Up() error {
	view := `CREATE OR REPLACE VIEW active_alerts_by_monitor AS
		 SELECT monitor_id, monitor_name, trigger_id, trigger_name, severity,
		        triggered_time, expiration_time, routing_key
		 FROM alerts_active
		 ORDER BY triggered_time DESC`
	return m.db.Exec(view).Error
}

func (m *Migrator) migration002Up() error {
	// alerts_history is created by AutoMigrate from the embedded Alert struct,
	// which already carries every column the sweeper's archive upsert
	// references; this migration is a no-op placeholder for a future column
	// addition (e.g. an archived_at timestamp distinct from created_at).
	return nil
}

// DropAll drops all tables (use with caution!)
func (m *Migrator) DropAll() error {
	m.logger.Warn("Dropping all database tables")

	tables := []interface{}{
		&models.AlertHistory{},
		&models.Alert{},
		&models.Monitor{},
		&MigrationRecord{},
	}

	for _, table := range tables {
		if err := m.db.Migrator().DropTable(table); err != nil {
			m.logger.WithError(err).Error("Failed to drop table")
			return err
		}
	}

	m.logger.Info("All tables dropped")
	return nil
}
