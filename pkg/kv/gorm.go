package kv

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// EntryModel is the GORM row backing one key.
type EntryModel struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (EntryModel) TableName() string { return "kv_entries" }

// GormStorage implements Storage using GORM + Postgres.
type GormStorage struct {
	db    *gorm.DB
	quota int64
}

// NewGormStorage opens the DB and migrates the entry table.
func NewGormStorage(dsn string, quota int64) (*GormStorage, error) {
	if dsn == "" {
		return nil, errors.New("kv database URL is required")
	}
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return NewGormStorageFromDB(db, quota)
}

// NewGormStorageFromDB wraps an existing connection.
func NewGormStorageFromDB(db *gorm.DB, quota int64) (*GormStorage, error) {
	if err := db.AutoMigrate(&EntryModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStorage{db: db, quota: quota}, nil
}

func (s *GormStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var row EntryModel
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *GormStorage) Set(ctx context.Context, key, value string) error {
	if s.quota > 0 {
		if err := checkQuota(key, value, s.quota); err != nil {
			return err
		}
	}
	row := EntryModel{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStorage) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&EntryModel{}).Error
}
