package repository

import (
	"context"
	"errors"

	"github.com/mealmitra/mealmitra-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDBNotReady = errors.New("database not ready")

// GormBlobStore keeps snapshots in the state_blobs table. The connection can
// be injected after construction so the server starts before the database is
// reachable.
type GormBlobStore interface {
	BlobStore
	SetDB(db *gorm.DB)
}

type gormBlobStore struct {
	db *gorm.DB
}

func NewGormBlobStore(db *gorm.DB) GormBlobStore {
	return &gormBlobStore{db: db}
}

func (s *gormBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, ErrDBNotReady
	}
	var b model.Blob
	err := s.db.WithContext(ctx).Where("blob_key = ?", key).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b.Value, true, nil
}

func (s *gormBlobStore) Put(ctx context.Context, key string, value []byte) error {
	if s.db == nil {
		return ErrDBNotReady
	}
	b := model.Blob{Key: key, Value: value}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blob_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&b).Error
}

func (s *gormBlobStore) SetDB(db *gorm.DB) {
	s.db = db
}

func (s *gormBlobStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
