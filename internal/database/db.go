package database

import (
	"fmt"
	"time"

	"requisiciones/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens the pool, migrates the schema and applies the patches
// AutoMigrate cannot express.
func NewConnection(dsn string, debug bool) (*gorm.DB, error) {
	level := logger.Silent
	if debug {
		level = logger.Warn
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(
		&model.User{},
		&model.Requisition{},
		&model.Payment{},
		&model.AuditEvent{},
		&model.SupportDocument{},
		&model.CommitteeNumber{},
		&model.SequenceCounter{},
	); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	if err := applySchemaPatches(db); err != nil {
		return nil, fmt.Errorf("schema patches: %w", err)
	}
	return db, nil
}

// applySchemaPatches runs idempotent DDL. The trace table is append-only, so
// UPDATE and DELETE on it are refused by a trigger.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"audit events append-only function", `
CREATE OR REPLACE FUNCTION auditoria_append_only() RETURNS trigger AS $$
BEGIN
  RAISE EXCEPTION 'auditoria_eventos is append-only';
END;
$$ LANGUAGE plpgsql`},
		{"audit events append-only trigger", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_auditoria_append_only') THEN
    CREATE TRIGGER trg_auditoria_append_only
      BEFORE UPDATE OR DELETE ON auditoria_eventos
      FOR EACH ROW EXECUTE FUNCTION auditoria_append_only();
  END IF;
END $$`},
		{"requisition display number unique", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_requisiciones_numero
  ON requisiciones (numero) WHERE numero <> ''`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
