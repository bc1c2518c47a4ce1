package permit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ehs-backend/internal/common"
	"ehs-backend/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateStopWorkParams 停工令入参
type CreateStopWorkParams struct {
	PermitID    *string // 可为空：区域级安全事件不挂接许可证
	Reason      string
	Severity    StopWorkSeverity
	Description string
	Location    string
}

// ResolveStopWorkParams 停工令解决入参
type ResolveStopWorkParams struct {
	ResolutionNotes   string
	CorrectiveActions []string
	LessonsLearned    string
}

// CreateStopWork 创建停工令。若其挂接的许可证当前为 ACTIVE，则在同一
// 事务内强制将其转为 SUSPENDED（安全联锁）；许可证处于其他状态时只创建
// 停工令，不触碰许可证。
func (s *Service) CreateStopWork(ctx context.Context, params CreateStopWorkParams, reporterID string) (*StopWorkAuthority, error) {
	if strings.TrimSpace(params.Reason) == "" {
		return nil, &ValidationError{Field: "reason", Message: "reason is required"}
	}
	if !params.Severity.Valid() {
		return nil, &ValidationError{Field: "severity", Message: fmt.Sprintf("unknown severity %q", params.Severity)}
	}
	if strings.TrimSpace(params.Description) == "" {
		return nil, &ValidationError{Field: "description", Message: "description is required"}
	}
	if reporterID == "" {
		return nil, &ValidationError{Field: "reported_by", Message: "reporter is required"}
	}

	now := time.Now().UTC()
	swa := &StopWorkAuthority{
		ID:          uuid.New().String(),
		PermitID:    params.PermitID,
		Reason:      params.Reason,
		Severity:    params.Severity,
		Description: params.Description,
		Location:    params.Location,
		Status:      StopWorkOpen,
		ReportedBy:  reporterID,
		ReportedAt:  now,
	}

	var suspended *WorkPermit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := s.codes.NextCode(ctx, tx, "SWA", now.Year())
		if err != nil {
			return err
		}
		swa.Code = code

		if params.PermitID != nil {
			p, err := s.loadPermit(ctx, tx, *params.PermitID)
			if err != nil {
				return err
			}
			// 转换表中只有 ACTIVE 可进入 SUSPENDED
			if p.Status.CanTransition(StatusSuspended) {
				res := tx.Model(&WorkPermit{}).
					Where("id = ? AND status = ?", p.ID, StatusActive).
					Updates(map[string]any{"status": StatusSuspended, "updated_at": now})
				if res.Error != nil {
					return fmt.Errorf("挂起许可证失败: %w", res.Error)
				}
				if res.RowsAffected == 0 {
					return s.staleError(ctx, tx, p.ID, "suspend")
				}
				p.Status = StatusSuspended
				suspended = p
			}
		}

		if err := tx.Create(swa).Error; err != nil {
			return fmt.Errorf("创建停工令失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.StopWorkEventsTotal.WithLabelValues("raised", string(swa.Severity)).Inc()
	metrics.StopWorkOpenGauge.Inc()
	s.publish(Event{Kind: EventStopWorkRaised, StopWorkID: swa.ID, Actor: reporterID, OccurredAt: now})
	if suspended != nil {
		s.publish(Event{
			Kind:       EventSuspended,
			PermitID:   suspended.ID,
			PermitCode: suspended.Code,
			Status:     StatusSuspended,
			StopWorkID: swa.ID,
			Actor:      reporterID,
			OccurredAt: now,
		})
		s.logger.Warn("停工令已强制挂起许可证",
			zap.String("stop_work_id", swa.ID),
			zap.String("permit_id", suspended.ID),
			zap.String("severity", string(swa.Severity)),
		)
	}
	s.audit.Record(ctx, reporterID, "stopwork.create", "stop_work_authority", swa.ID, map[string]any{
		"code":     swa.Code,
		"severity": string(swa.Severity),
	})
	return swa, nil
}

// StartInvestigation 开始调查：OPEN → INVESTIGATING
func (s *Service) StartInvestigation(ctx context.Context, swaID, actorID string) (*StopWorkAuthority, error) {
	var out *StopWorkAuthority
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		swa, err := s.loadStopWork(ctx, tx, swaID)
		if err != nil {
			return err
		}
		if swa.Status != StopWorkOpen {
			return &InvalidStateError{Entity: "stop-work", ID: swaID, Status: string(swa.Status), Operation: "investigate"}
		}

		now := time.Now().UTC()
		res := tx.Model(&StopWorkAuthority{}).
			Where("id = ? AND status = ?", swaID, StopWorkOpen).
			Updates(map[string]any{"status": StopWorkInvestigating, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("开始调查失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return s.staleStopWorkError(ctx, tx, swaID, "investigate")
		}
		swa.Status = StopWorkInvestigating
		out = swa
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, "stopwork.investigate", "stop_work_authority", out.ID, nil)
	return out, nil
}

// ResolveStopWork 解决停工令：OPEN / INVESTIGATING → RESOLVED，记录
// 处置说明、纠正措施与经验教训。此步不触碰许可证。
func (s *Service) ResolveStopWork(ctx context.Context, swaID string, params ResolveStopWorkParams, resolverID string) (*StopWorkAuthority, error) {
	if strings.TrimSpace(params.ResolutionNotes) == "" {
		return nil, &ValidationError{Field: "resolution_notes", Message: "resolution notes are required"}
	}
	if resolverID == "" {
		return nil, &ValidationError{Field: "resolved_by", Message: "resolver is required"}
	}

	var out *StopWorkAuthority
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		swa, err := s.loadStopWork(ctx, tx, swaID)
		if err != nil {
			return err
		}
		if !swa.Status.Resolvable() {
			return &InvalidStateError{Entity: "stop-work", ID: swaID, Status: string(swa.Status), Operation: "resolve"}
		}

		now := time.Now().UTC()
		res := tx.Model(&StopWorkAuthority{}).
			Where("id = ? AND status IN ?", swaID, []StopWorkStatus{StopWorkOpen, StopWorkInvestigating}).
			Updates(map[string]any{
				"status":             StopWorkResolved,
				"resolved_by":        resolverID,
				"resolved_at":        now,
				"resolution_notes":   params.ResolutionNotes,
				"corrective_actions": datatypes.NewJSONSlice(params.CorrectiveActions),
				"lessons_learned":    params.LessonsLearned,
				"updated_at":         now,
			})
		if res.Error != nil {
			return fmt.Errorf("解决停工令失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return s.staleStopWorkError(ctx, tx, swaID, "resolve")
		}

		refreshed, err := s.loadStopWork(ctx, tx, swaID)
		if err != nil {
			return err
		}
		out = refreshed
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.StopWorkEventsTotal.WithLabelValues("resolved", string(out.Severity)).Inc()
	s.publish(Event{Kind: EventStopWorkResolved, StopWorkID: out.ID, Actor: resolverID, OccurredAt: *out.ResolvedAt})
	s.audit.Record(ctx, resolverID, "stopwork.resolve", "stop_work_authority", out.ID, map[string]any{
		"resolution_notes": params.ResolutionNotes,
	})
	return out, nil
}

// ResumeWork 复工：RESOLVED → CLOSED。若挂接的许可证当前为 SUSPENDED，
// 在同一事务内恢复为 ACTIVE；许可证处于其他状态（如挂起期间被取消）
// 则不触碰。解决前不允许复工。
func (s *Service) ResumeWork(ctx context.Context, swaID, resumerID string) (*StopWorkAuthority, error) {
	if resumerID == "" {
		return nil, &ValidationError{Field: "work_resumed_by", Message: "resumer is required"}
	}

	var out *StopWorkAuthority
	var resumed *WorkPermit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		swa, err := s.loadStopWork(ctx, tx, swaID)
		if err != nil {
			return err
		}
		if swa.Status != StopWorkResolved {
			return &InvalidStateError{Entity: "stop-work", ID: swaID, Status: string(swa.Status), Operation: "resume work on"}
		}

		now := time.Now().UTC()
		res := tx.Model(&StopWorkAuthority{}).
			Where("id = ? AND status = ?", swaID, StopWorkResolved).
			Updates(map[string]any{
				"status":          StopWorkClosed,
				"work_resumed_by": resumerID,
				"work_resumed_at": now,
				"updated_at":      now,
			})
		if res.Error != nil {
			return fmt.Errorf("关闭停工令失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return s.staleStopWorkError(ctx, tx, swaID, "resume work on")
		}

		if swa.PermitID != nil {
			p, err := s.loadPermit(ctx, tx, *swa.PermitID)
			if err != nil {
				return err
			}
			if p.Status == StatusSuspended && p.Status.CanTransition(StatusActive) {
				resPermit := tx.Model(&WorkPermit{}).
					Where("id = ? AND status = ?", p.ID, StatusSuspended).
					Updates(map[string]any{"status": StatusActive, "updated_at": now})
				if resPermit.Error != nil {
					return fmt.Errorf("恢复许可证失败: %w", resPermit.Error)
				}
				if resPermit.RowsAffected == 0 {
					return s.staleError(ctx, tx, p.ID, "resume")
				}
				p.Status = StatusActive
				resumed = p
			}
		}

		swa.Status = StopWorkClosed
		swa.WorkResumedBy = resumerID
		swa.WorkResumedAt = &now
		out = swa
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.StopWorkEventsTotal.WithLabelValues("closed", string(out.Severity)).Inc()
	metrics.StopWorkOpenGauge.Dec()
	s.publish(Event{Kind: EventStopWorkClosed, StopWorkID: out.ID, Actor: resumerID, OccurredAt: *out.WorkResumedAt})
	if resumed != nil {
		s.publish(Event{
			Kind:       EventResumed,
			PermitID:   resumed.ID,
			PermitCode: resumed.Code,
			Status:     StatusActive,
			StopWorkID: out.ID,
			Actor:      resumerID,
			OccurredAt: *out.WorkResumedAt,
		})
		s.logger.Info("停工令关闭，许可证已恢复作业",
			zap.String("stop_work_id", out.ID),
			zap.String("permit_id", resumed.ID),
		)
	}
	s.audit.Record(ctx, resumerID, "stopwork.resume", "stop_work_authority", out.ID, nil)
	return out, nil
}

// GetStopWork 查询停工令
func (s *Service) GetStopWork(ctx context.Context, swaID string) (*StopWorkAuthority, error) {
	return s.loadStopWork(ctx, s.db, swaID)
}

// ListStopWorkParams 停工令列表查询入参
type ListStopWorkParams struct {
	common.PaginationRequest
	Status   string
	Severity string
	PermitID string
}

// ListStopWork 分页查询停工令
func (s *Service) ListStopWork(ctx context.Context, params ListStopWorkParams) ([]*StopWorkAuthority, int64, error) {
	query := s.db.WithContext(ctx).Model(&StopWorkAuthority{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Severity != "" {
		query = query.Where("severity = ?", params.Severity)
	}
	if params.PermitID != "" {
		query = query.Where("permit_id = ?", params.PermitID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*StopWorkAuthority
	err := query.
		Order("reported_at DESC").
		Offset(params.GetOffset()).
		Limit(params.GetPageSize()).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *Service) loadStopWork(ctx context.Context, tx *gorm.DB, swaID string) (*StopWorkAuthority, error) {
	var swa StopWorkAuthority
	if err := tx.WithContext(ctx).First(&swa, "id = ?", swaID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &swa, nil
}

func (s *Service) staleStopWorkError(ctx context.Context, tx *gorm.DB, swaID, operation string) error {
	current, err := s.loadStopWork(ctx, tx, swaID)
	if err != nil {
		return err
	}
	return &InvalidStateError{Entity: "stop-work", ID: swaID, Status: string(current.Status), Operation: operation}
}
