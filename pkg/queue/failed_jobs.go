package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/foodie/pkg/logger"
)

// FailedJobRecord is a job that used up its attempts. Envelope is the
// dispatched message as it was popped, so a retry replays it unchanged.
type FailedJobRecord struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	JobID    string    `gorm:"size:36;not null;index"`
	JobType  string    `gorm:"size:255;not null;index"`
	Envelope string    `gorm:"type:text;not null"`
	Error    string    `gorm:"type:text"`
	Attempts int       `gorm:"not null;default:0"`
	FailedAt time.Time `gorm:"not null;index"`
}

func (FailedJobRecord) TableName() string { return "foodie_failed_jobs" }

var ErrNoFailedStore = errors.New("queue: failed jobs are not persisted, call UseDB")

var (
	storeMu sync.RWMutex
	store   *gorm.DB
)

// UseDB persists exhausted jobs to the foodie_failed_jobs table.
func UseDB(db *gorm.DB) {
	storeMu.Lock()
	store = db
	storeMu.Unlock()
}

func failedStore() *gorm.DB {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return store
}

// file stores a job that used up its attempts. Without a store it is only
// logged.
func (m *Manager) file(ctx context.Context, msg message, raw []byte, lastErr error, attempts int) {
	db := failedStore()
	if db == nil {
		return
	}
	rec := FailedJobRecord{
		JobID:    msg.ID,
		JobType:  msg.Type,
		Envelope: string(raw),
		Attempts: attempts,
		FailedAt: time.Now(),
	}
	if lastErr != nil {
		rec.Error = lastErr.Error()
	}
	// ctx may already be cancelled by shutdown.
	if err := db.WithContext(context.WithoutCancel(ctx)).Create(&rec).Error; err != nil {
		logger.WithCtx(ctx).Error("queue: failed job not stored", "error", err)
	}
}

// ListFailed returns the most recent persisted failures first.
func ListFailed(ctx context.Context, limit int) ([]FailedJobRecord, error) {
	db := failedStore()
	if db == nil {
		return nil, ErrNoFailedStore
	}
	var out []FailedJobRecord
	err := db.WithContext(ctx).Order("failed_at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// RetryFailed pushes the stored envelope back onto the queue and removes
// the record. The job keeps its original id.
func RetryFailed(ctx context.Context, id uint) error {
	db := failedStore()
	if db == nil {
		return ErrNoFailedStore
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec FailedJobRecord
		if err := tx.First(&rec, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("queue: failed job %d not found", id)
			}
			return err
		}
		if err := std.current().Push(ctx, []byte(rec.Envelope)); err != nil {
			return err
		}
		return tx.Delete(&rec).Error
	})
}

// FlushFailed deletes persisted failures older than age and reports how
// many went.
func FlushFailed(ctx context.Context, age time.Duration) (int64, error) {
	db := failedStore()
	if db == nil {
		return 0, ErrNoFailedStore
	}
	res := db.WithContext(ctx).Where("failed_at < ?", time.Now().Add(-age)).Delete(&FailedJobRecord{})
	return res.RowsAffected, res.Error
}
