package repository

import (
	"context"
	"errors"
	"fmt"

	"requisiciones/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceStore owns the monotonically increasing display-number counters.
type SequenceStore interface {
	Increment(ctx context.Context, key string) (int64, error)
	Peek(ctx context.Context, key string) (int64, error)
	Set(ctx context.Context, key string, value int64) error
}

// CommitteeStore maps calendar days (YYYY-MM-DD) to committee numbers. A
// number belongs to at most one day; Save returns ErrConflict when either the
// day or the number is already taken.
type CommitteeStore interface {
	Find(ctx context.Context, dateKey string) (string, bool, error)
	FindByNumero(ctx context.Context, numero string) (dateKey string, found bool, err error)
	CountByYear(ctx context.Context, year int) (int64, error)
	NumerosWithPrefix(ctx context.Context, prefix string) ([]string, error)
	Save(ctx context.Context, dateKey, numero string) error
	Clear(ctx context.Context) error
}

type sequenceStore struct {
	db *gorm.DB
}

// NewSequenceStore keeps counters in the sequence_counters table.
func NewSequenceStore(db *gorm.DB) SequenceStore {
	return &sequenceStore{db: db}
}

func (s *sequenceStore) Increment(ctx context.Context, key string) (int64, error) {
	var value int64
	err := GetDB(ctx, s.db).Raw(`
		INSERT INTO sequence_counters (key, value, updated_at) VALUES (?, 1, NOW())
		ON CONFLICT (key) DO UPDATE SET value = sequence_counters.value + 1, updated_at = NOW()
		RETURNING value
	`, key).Scan(&value).Error
	return value, err
}

func (s *sequenceStore) Peek(ctx context.Context, key string) (int64, error) {
	var counter model.SequenceCounter
	err := GetDB(ctx, s.db).First(&counter, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

func (s *sequenceStore) Set(ctx context.Context, key string, value int64) error {
	return GetDB(ctx, s.db).Exec(`
		INSERT INTO sequence_counters (key, value, updated_at) VALUES (?, ?, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value).Error
}

type committeeStore struct {
	db *gorm.DB
}

func NewCommitteeStore(db *gorm.DB) CommitteeStore {
	return &committeeStore{db: db}
}

func (s *committeeStore) Find(ctx context.Context, dateKey string) (string, bool, error) {
	var row model.CommitteeNumber
	err := GetDB(ctx, s.db).First(&row, "date_key = ?", dateKey).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Numero, true, nil
}

func (s *committeeStore) FindByNumero(ctx context.Context, numero string) (string, bool, error) {
	var row model.CommitteeNumber
	err := GetDB(ctx, s.db).First(&row, "numero = ?", numero).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.DateKey, true, nil
}

func (s *committeeStore) NumerosWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var numeros []string
	err := GetDB(ctx, s.db).Model(&model.CommitteeNumber{}).
		Where("numero LIKE ?", prefix+"%").
		Pluck("numero", &numeros).Error
	return numeros, err
}

func (s *committeeStore) CountByYear(ctx context.Context, year int) (int64, error) {
	var count int64
	prefix := yearPrefix(year)
	err := GetDB(ctx, s.db).Model(&model.CommitteeNumber{}).
		Where("date_key LIKE ?", prefix+"%").
		Count(&count).Error
	return count, err
}

func (s *committeeStore) Save(ctx context.Context, dateKey, numero string) error {
	row := model.CommitteeNumber{DateKey: dateKey, Numero: numero}
	// DO NOTHING covers both the day key and the numero index, and keeps an
	// enclosing transaction usable after losing the race.
	result := GetDB(ctx, s.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *committeeStore) Clear(ctx context.Context) error {
	return GetDB(ctx, s.db).Where("1 = 1").Delete(&model.CommitteeNumber{}).Error
}

func yearPrefix(year int) string {
	return fmt.Sprintf("%04d-", year)
}
