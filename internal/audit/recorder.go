package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Entry 审计日志记录
type Entry struct {
	ID         string         `json:"id" gorm:"primaryKey;type:uuid"`
	ActorID    string         `json:"actorId" gorm:"type:uuid;index"`
	Action     string         `json:"action" gorm:"size:64;not null;index"`
	TargetType string         `json:"targetType" gorm:"size:32;not null;index"`
	TargetID   string         `json:"targetId" gorm:"type:uuid;index"`
	Detail     map[string]any `json:"detail,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt  time.Time      `json:"createdAt" gorm:"not null;autoCreateTime;index"`
}

// TableName 指定表名
func (Entry) TableName() string { return "audit_logs" }

// Recorder 将状态变更写入审计日志。写入失败只记日志，不影响业务结果。
type Recorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRecorder 创建审计记录器
func NewRecorder(db *gorm.DB, logger *zap.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// Record appends an audit entry. Safe to call on a nil recorder.
func (r *Recorder) Record(ctx context.Context, actorID, action, targetType, targetID string, detail map[string]any) {
	if r == nil || r.db == nil {
		return
	}
	entry := &Entry{
		ID:         uuid.New().String(),
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil && r.logger != nil {
		r.logger.Warn("写入审计日志失败",
			zap.String("action", action),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
	}
}
