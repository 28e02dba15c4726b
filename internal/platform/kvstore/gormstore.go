package kvstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/haven-backend/internal/platform/logger"
)

type kvRecord struct {
	Collection string         `gorm:"column:collection;primaryKey;size:64"`
	Key        string         `gorm:"column:record_key;primaryKey;size:255"`
	Value      datatypes.JSON `gorm:"column:value;not null"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;not null;index"`
}

func (kvRecord) TableName() string { return "kv_record" }

// GormStore persists records in a single kv_record table. Works with the
// postgres (jsonb) and sqlite (text) gorm drivers.
type GormStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGormStore(db *gorm.DB, log *logger.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&kvRecord{}); err != nil {
		return nil, MapError("kvstore.migrate", err)
	}
	return &GormStore{db: db, log: log.With("repo", "GormStore")}, nil
}

func (s *GormStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	var rec kvRecord
	err := s.db.WithContext(ctx).
		Where("collection = ? AND record_key = ?", collection, key).
		Take(&rec).Error
	if err != nil {
		return nil, MapError("kvstore.get", err)
	}
	return []byte(rec.Value), nil
}

func (s *GormStore) Put(ctx context.Context, collection, key string, value []byte) error {
	rec := kvRecord{
		Collection: collection,
		Key:        key,
		Value:      datatypes.JSON(value),
		UpdatedAt:  time.Now().UTC(),
	}
	upsert := func() error {
		return s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "record_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rec).Error
	}
	err := MapError("kvstore.put", upsert())
	if err != nil && isRetryable(err) && ctx.Err() == nil {
		s.log.Warn("kvstore put retry", "collection", collection, "error", err)
		err = MapError("kvstore.put", upsert())
	}
	return err
}

func (s *GormStore) Delete(ctx context.Context, collection, key string) error {
	err := s.db.WithContext(ctx).
		Where("collection = ? AND record_key = ?", collection, key).
		Delete(&kvRecord{}).Error
	return MapError("kvstore.delete", err)
}

func (s *GormStore) Scan(ctx context.Context, collection, prefix string, limit int) ([]Record, error) {
	q := s.db.WithContext(ctx).Where("collection = ?", collection)
	if prefix != "" {
		q = q.Where("record_key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")
	}
	q = q.Order("record_key")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []kvRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, MapError("kvstore.scan", err)
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, Record{Collection: r.Collection, Key: r.Key, Value: []byte(r.Value), UpdatedAt: r.UpdatedAt})
	}
	return out, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}
