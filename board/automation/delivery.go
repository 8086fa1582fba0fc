// ABOUTME: DeliveryLog records every webhook attempt in SQLite through gorm.
// ABOUTME: Records are queryable per workspace, newest first, for the deliveries API.
package automation

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Delivery is one webhook attempt. Status is zero when no response arrived.
type Delivery struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	WorkspaceID  string    `gorm:"index:idx_deliveries_workspace_created,priority:1" json:"workspaceId"`
	BoardID      string    `json:"boardId"`
	AutomationID string    `json:"automationId"`
	CardID       string    `json:"cardId"`
	Trigger      string    `json:"trigger"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	Status       int       `json:"status"`
	Error        string    `json:"error,omitempty"`
	DurationMS   int64     `json:"durationMs"`
	CreatedAt    time.Time `gorm:"index:idx_deliveries_workspace_created,priority:2" json:"createdAt"`
}

// Succeeded reports whether the webhook answered with a 2xx status.
func (d Delivery) Succeeded() bool {
	return d.Error == "" && d.Status >= 200 && d.Status < 300
}

// Recorder stores delivery attempts.
type Recorder interface {
	Record(ctx context.Context, d Delivery) error
}

// DeliveryLog is a gorm-backed Recorder.
type DeliveryLog struct {
	db *gorm.DB
}

// OpenDeliveryLog opens (creating if needed) the SQLite database at path and
// migrates the deliveries table.
func OpenDeliveryLog(path string) (*DeliveryLog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open delivery log: %w", err)
	}
	if err := db.AutoMigrate(&Delivery{}); err != nil {
		return nil, fmt.Errorf("migrate delivery log: %w", err)
	}
	return &DeliveryLog{db: db}, nil
}

// Record inserts one attempt.
func (l *DeliveryLog) Record(ctx context.Context, d Delivery) error {
	if err := l.db.WithContext(ctx).Create(&d).Error; err != nil {
		return fmt.Errorf("record delivery %s: %w", d.ID, err)
	}
	return nil
}

// List returns up to limit deliveries of a workspace, newest first.
func (l *DeliveryLog) List(ctx context.Context, workspaceID string, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Delivery
	err := l.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (l *DeliveryLog) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
