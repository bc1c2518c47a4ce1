package permit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ehs-backend/internal/metrics"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestExtensionParams 延期申请入参
type RequestExtensionParams struct {
	PermitID    string
	NewEnd      time.Time
	Reason      string
	RequestedBy string
}

// RequestExtension 申请延期。只有作业窗口已生效或即将生效的许可证
// （APPROVED / ACTIVE）可以申请；申请时快照当前结束时间。
// 同一许可证允许多个 PENDING 申请并存。
func (s *Service) RequestExtension(ctx context.Context, params RequestExtensionParams) (*Extension, error) {
	if strings.TrimSpace(params.Reason) == "" {
		return nil, &ValidationError{Field: "reason", Message: "extension reason is required"}
	}
	if params.RequestedBy == "" {
		return nil, &ValidationError{Field: "requested_by", Message: "requester is required"}
	}
	if params.NewEnd.IsZero() {
		return nil, &ValidationError{Field: "new_end", Message: "new end time is required"}
	}

	var out *Extension
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPermit(ctx, tx, params.PermitID)
		if err != nil {
			return err
		}
		if p.Status != StatusApproved && p.Status != StatusActive {
			return &InvalidStateError{Entity: "permit", ID: p.ID, Status: string(p.Status), Operation: "request extension for"}
		}
		if !params.NewEnd.After(p.EndDatetime) {
			return &ValidationError{Field: "new_end", Message: "new end must be after the current end"}
		}

		ext := &Extension{
			ID:          uuid.New().String(),
			PermitID:    p.ID,
			OriginalEnd: p.EndDatetime,
			NewEnd:      params.NewEnd,
			Reason:      params.Reason,
			Status:      ExtensionPending,
			RequestedBy: params.RequestedBy,
		}
		if err := tx.Create(ext).Error; err != nil {
			return fmt.Errorf("创建延期申请失败: %w", err)
		}
		out = ext
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, params.RequestedBy, "extension.request", "permit_extension", out.ID, map[string]any{
		"permit_id": out.PermitID,
		"new_end":   out.NewEnd,
	})
	return out, nil
}

// ApproveExtension 批准延期：PENDING → APPROVED，并在同一事务内把
// 所属许可证的结束时间改为 NewEnd。许可证自身状态不受影响；
// 其他 PENDING 申请保持原样。
func (s *Service) ApproveExtension(ctx context.Context, extensionID, approverID string) (*Extension, error) {
	if approverID == "" {
		return nil, &ValidationError{Field: "approver_id", Message: "approver is required"}
	}

	var out *Extension
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ext, err := s.loadExtension(ctx, tx, extensionID)
		if err != nil {
			return err
		}
		if ext.Status != ExtensionPending {
			return &InvalidStateError{Entity: "extension", ID: extensionID, Status: string(ext.Status), Operation: "approve"}
		}

		now := time.Now().UTC()
		res := tx.Model(&Extension{}).
			Where("id = ? AND status = ?", extensionID, ExtensionPending).
			Updates(map[string]any{
				"status":      ExtensionApproved,
				"approved_by": approverID,
				"approved_at": now,
				"updated_at":  now,
			})
		if res.Error != nil {
			return fmt.Errorf("批准延期失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			refreshed, err := s.loadExtension(ctx, tx, extensionID)
			if err != nil {
				return err
			}
			return &InvalidStateError{Entity: "extension", ID: extensionID, Status: string(refreshed.Status), Operation: "approve"}
		}

		if err := tx.Model(&WorkPermit{}).
			Where("id = ?", ext.PermitID).
			Updates(map[string]any{"end_datetime": ext.NewEnd, "updated_at": now}).Error; err != nil {
			return fmt.Errorf("更新许可证结束时间失败: %w", err)
		}

		ext.Status = ExtensionApproved
		ext.ApprovedBy = approverID
		ext.ApprovedAt = &now
		ext.UpdatedAt = now
		out = ext
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ExtensionDecisionsTotal.WithLabelValues("approved").Inc()

	s.publish(Event{Kind: EventExtensionApproved, PermitID: out.PermitID, Actor: approverID, OccurredAt: *out.ApprovedAt})
	s.audit.Record(ctx, approverID, "extension.approve", "permit_extension", out.ID, map[string]any{
		"permit_id": out.PermitID,
		"new_end":   out.NewEnd,
	})
	return out, nil
}

// RejectExtension 驳回延期：PENDING → REJECTED，不改动许可证
func (s *Service) RejectExtension(ctx context.Context, extensionID, reason, approverID string) (*Extension, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Field: "reason", Message: "rejection reason is required"}
	}

	var out *Extension
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ext, err := s.loadExtension(ctx, tx, extensionID)
		if err != nil {
			return err
		}
		if ext.Status != ExtensionPending {
			return &InvalidStateError{Entity: "extension", ID: extensionID, Status: string(ext.Status), Operation: "reject"}
		}

		now := time.Now().UTC()
		res := tx.Model(&Extension{}).
			Where("id = ? AND status = ?", extensionID, ExtensionPending).
			Updates(map[string]any{
				"status":           ExtensionRejected,
				"rejection_reason": reason,
				"approved_by":      approverID,
				"approved_at":      now,
				"updated_at":       now,
			})
		if res.Error != nil {
			return fmt.Errorf("驳回延期失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			refreshed, err := s.loadExtension(ctx, tx, extensionID)
			if err != nil {
				return err
			}
			return &InvalidStateError{Entity: "extension", ID: extensionID, Status: string(refreshed.Status), Operation: "reject"}
		}

		ext.Status = ExtensionRejected
		ext.RejectionReason = reason
		ext.ApprovedBy = approverID
		ext.ApprovedAt = &now
		ext.UpdatedAt = now
		out = ext
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ExtensionDecisionsTotal.WithLabelValues("rejected").Inc()

	s.audit.Record(ctx, approverID, "extension.reject", "permit_extension", out.ID, map[string]any{
		"permit_id": out.PermitID,
		"reason":    reason,
	})
	return out, nil
}

// GetExtension 查询延期申请
func (s *Service) GetExtension(ctx context.Context, extensionID string) (*Extension, error) {
	return s.loadExtension(ctx, s.db, extensionID)
}

// ListExtensions 查询某许可证的全部延期申请
func (s *Service) ListExtensions(ctx context.Context, permitID string) ([]*Extension, error) {
	var exts []*Extension
	err := s.db.WithContext(ctx).
		Where("permit_id = ?", permitID).
		Order("created_at ASC").
		Find(&exts).Error
	if err != nil {
		return nil, fmt.Errorf("查询延期申请失败: %w", err)
	}
	return exts, nil
}

func (s *Service) loadExtension(ctx context.Context, tx *gorm.DB, extensionID string) (*Extension, error) {
	var ext Extension
	if err := tx.WithContext(ctx).First(&ext, "id = ?", extensionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ext, nil
}
