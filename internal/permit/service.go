package permit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ehs-backend/internal/audit"
	"ehs-backend/internal/common"
	"ehs-backend/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service 许可证生命周期服务。所有状态转换都在单个数据库事务内完成：
// 先校验守卫条件，再以带状态条件的 UPDATE 应用转换，RowsAffected 为零
// 即判定并发竞争失败，保证同一许可证上的并发操作可串行化。
type Service struct {
	db        *gorm.DB
	codes     CodeGenerator
	bus       *EventBus
	audit     *audit.Recorder
	templates ChecklistTemplates
	logger    *zap.Logger
}

// ServiceOption 自定义配置
type ServiceOption func(*Service)

// WithEventBus 注入事件总线
func WithEventBus(bus *EventBus) ServiceOption {
	return func(s *Service) { s.bus = bus }
}

// WithAuditRecorder 注入审计记录器
func WithAuditRecorder(rec *audit.Recorder) ServiceOption {
	return func(s *Service) { s.audit = rec }
}

// WithCodeGenerator 注入编号生成器
func WithCodeGenerator(gen CodeGenerator) ServiceOption {
	return func(s *Service) { s.codes = gen }
}

// WithChecklistTemplates 注入检查清单模板
func WithChecklistTemplates(t ChecklistTemplates) ServiceOption {
	return func(s *Service) { s.templates = t }
}

// WithServiceLogger 注入自定义日志器
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService 创建许可证生命周期服务
func NewService(db *gorm.DB, opts ...ServiceOption) *Service {
	svc := &Service{
		db:        db,
		codes:     NewSequenceCodeGenerator(),
		templates: defaultChecklistTemplates(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreatePermitParams 创建许可证入参
type CreatePermitParams struct {
	Type          PermitType
	Title         string
	Description   string
	Location      string
	StartDatetime time.Time
	EndDatetime   time.Time
	RequestedBy   string
}

// UpdatePermitParams 更新许可证入参，nil 字段保持不变
type UpdatePermitParams struct {
	Title         *string
	Description   *string
	Location      *string
	StartDatetime *time.Time
	EndDatetime   *time.Time
}

// ListPermitsParams 许可证列表查询入参
type ListPermitsParams struct {
	common.PaginationRequest
	Status  string
	Type    string
	Keyword string
}

// CreatePermit 创建处于 DRAFT 状态的许可证，并按类型模板同时创建
// 作业前 / 作业后两份检查清单。
func (s *Service) CreatePermit(ctx context.Context, params CreatePermitParams) (*WorkPermit, error) {
	if !params.Type.Valid() {
		return nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unknown permit type %q", params.Type)}
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, &ValidationError{Field: "title", Message: "title is required"}
	}
	if params.RequestedBy == "" {
		return nil, &ValidationError{Field: "requested_by", Message: "requester is required"}
	}
	if params.StartDatetime.IsZero() || params.EndDatetime.IsZero() {
		return nil, &ValidationError{Field: "start_datetime", Message: "work window is required"}
	}
	if !params.EndDatetime.After(params.StartDatetime) {
		return nil, &ValidationError{Field: "end_datetime", Message: "end must be after start"}
	}

	now := time.Now().UTC()
	p := &WorkPermit{
		ID:            uuid.New().String(),
		Type:          params.Type,
		Title:         params.Title,
		Description:   params.Description,
		Location:      params.Location,
		StartDatetime: params.StartDatetime,
		EndDatetime:   params.EndDatetime,
		Status:        StatusDraft,
		RequestedBy:   params.RequestedBy,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		code, err := s.codes.NextCode(ctx, tx, "PTW", now.Year())
		if err != nil {
			return err
		}
		p.Code = code

		p.Checklists = []Checklist{
			{
				ID:       uuid.New().String(),
				PermitID: p.ID,
				Type:     ChecklistPreWork,
				Items:    s.templates.ItemsFor(params.Type, ChecklistPreWork),
			},
			{
				ID:       uuid.New().String(),
				PermitID: p.ID,
				Type:     ChecklistPostWork,
				Items:    s.templates.ItemsFor(params.Type, ChecklistPostWork),
			},
		}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("创建许可证失败: %w", err)
		}
		return nil
	})
	metrics.RecordTransition("create", err)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, params.RequestedBy, "permit.create", "work_permit", p.ID, map[string]any{"code": p.Code, "type": string(p.Type)})
	s.logger.Info("许可证已创建",
		zap.String("permit_id", p.ID),
		zap.String("code", p.Code),
		zap.String("type", string(p.Type)),
	)
	return p, nil
}

// GetPermit 查询许可证，附带检查清单与延期记录
func (s *Service) GetPermit(ctx context.Context, permitID string) (*WorkPermit, error) {
	var p WorkPermit
	err := s.db.WithContext(ctx).
		Preload("Checklists").
		Preload("Extensions").
		First(&p, "id = ?", permitID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListPermits 分页查询许可证
func (s *Service) ListPermits(ctx context.Context, params ListPermitsParams) ([]*WorkPermit, int64, error) {
	query := s.db.WithContext(ctx).Model(&WorkPermit{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Type != "" {
		query = query.Where("type = ?", params.Type)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("title LIKE ? OR code LIKE ? OR location LIKE ?", kw, kw, kw)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var permits []*WorkPermit
	err := query.
		Order("created_at DESC").
		Offset(params.GetOffset()).
		Limit(params.GetPageSize()).
		Find(&permits).Error
	if err != nil {
		return nil, 0, err
	}
	return permits, total, nil
}

// UpdatePermit 更新许可证可编辑字段，仅限 DRAFT / PENDING 状态
func (s *Service) UpdatePermit(ctx context.Context, permitID string, params UpdatePermitParams) (*WorkPermit, error) {
	var out *WorkPermit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPermit(ctx, tx, permitID)
		if err != nil {
			return err
		}
		if p.Status != StatusDraft && p.Status != StatusPending {
			return &InvalidStateError{Entity: "permit", ID: permitID, Status: string(p.Status), Operation: "update"}
		}

		if params.Title != nil {
			if strings.TrimSpace(*params.Title) == "" {
				return &ValidationError{Field: "title", Message: "title is required"}
			}
			p.Title = *params.Title
		}
		if params.Description != nil {
			p.Description = *params.Description
		}
		if params.Location != nil {
			p.Location = *params.Location
		}
		if params.StartDatetime != nil {
			p.StartDatetime = *params.StartDatetime
		}
		if params.EndDatetime != nil {
			p.EndDatetime = *params.EndDatetime
		}
		if !p.EndDatetime.After(p.StartDatetime) {
			return &ValidationError{Field: "end_datetime", Message: "end must be after start"}
		}

		if err := tx.Save(p).Error; err != nil {
			return fmt.Errorf("更新许可证失败: %w", err)
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeletePermit 删除许可证，仅限 DRAFT 状态；级联删除其检查清单与延期记录
func (s *Service) DeletePermit(ctx context.Context, permitID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPermit(ctx, tx, permitID)
		if err != nil {
			return err
		}
		if p.Status != StatusDraft {
			return &InvalidStateError{Entity: "permit", ID: permitID, Status: string(p.Status), Operation: "delete"}
		}

		if err := tx.Where("permit_id = ?", permitID).Delete(&Checklist{}).Error; err != nil {
			return fmt.Errorf("删除检查清单失败: %w", err)
		}
		if err := tx.Where("permit_id = ?", permitID).Delete(&Extension{}).Error; err != nil {
			return fmt.Errorf("删除延期记录失败: %w", err)
		}
		// 状态条件守卫并发删除
		res := tx.Where("id = ? AND status = ?", permitID, StatusDraft).Delete(&WorkPermit{})
		if res.Error != nil {
			return fmt.Errorf("删除许可证失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return s.staleError(ctx, tx, permitID, "delete")
		}
		return nil
	})
}

// Submit 提交审批：DRAFT → PENDING
func (s *Service) Submit(ctx context.Context, permitID, actorID string) (*WorkPermit, error) {
	p, err := s.transition(ctx, permitID, "submit", StatusDraft, StatusPending, map[string]any{
		"status":     StatusPending,
		"updated_at": time.Now().UTC(),
	})
	metrics.RecordTransition("submit", err)
	if err != nil {
		return nil, err
	}
	s.publish(Event{Kind: EventSubmitted, PermitID: p.ID, PermitCode: p.Code, Status: p.Status, Actor: actorID, OccurredAt: time.Now().UTC()})
	s.audit.Record(ctx, actorID, "permit.submit", "work_permit", p.ID, nil)
	return p, nil
}

// Approve 审批通过：PENDING → APPROVED
func (s *Service) Approve(ctx context.Context, permitID, approverID string) (*WorkPermit, error) {
	if approverID == "" {
		return nil, &ValidationError{Field: "approver_id", Message: "approver is required"}
	}
	now := time.Now().UTC()
	p, err := s.transition(ctx, permitID, "approve", StatusPending, StatusApproved, map[string]any{
		"status":      StatusApproved,
		"approved_by": approverID,
		"approved_at": now,
		"updated_at":  now,
	})
	metrics.RecordTransition("approve", err)
	if err != nil {
		return nil, err
	}
	s.publish(Event{Kind: EventApproved, PermitID: p.ID, PermitCode: p.Code, Status: p.Status, Actor: approverID, OccurredAt: now})
	s.audit.Record(ctx, approverID, "permit.approve", "work_permit", p.ID, nil)
	return p, nil
}

// Reject 审批驳回：PENDING → DRAFT，记录驳回原因；不触碰审批人字段
func (s *Service) Reject(ctx context.Context, permitID, reason, actorID string) (*WorkPermit, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Field: "reason", Message: "rejection reason is required"}
	}
	now := time.Now().UTC()
	p, err := s.transition(ctx, permitID, "reject", StatusPending, StatusDraft, map[string]any{
		"status":           StatusDraft,
		"rejection_reason": reason,
		"updated_at":       now,
	})
	metrics.RecordTransition("reject", err)
	if err != nil {
		return nil, err
	}
	s.publish(Event{Kind: EventRejected, PermitID: p.ID, PermitCode: p.Code, Status: p.Status, Actor: actorID, OccurredAt: now})
	s.audit.Record(ctx, actorID, "permit.reject", "work_permit", p.ID, map[string]any{"reason": reason})
	return p, nil
}

// Activate 开工：APPROVED → ACTIVE。作业前检查清单必须全部通过，
// 清单不存在视为无需把关。
func (s *Service) Activate(ctx context.Context, permitID, actorID string) (*WorkPermit, error) {
	var out *WorkPermit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPermit(ctx, tx, permitID)
		if err != nil {
			return err
		}
		if err := guardTransition(p, StatusApproved, StatusActive, "activate"); err != nil {
			return err
		}
		if err := s.checkGate(ctx, tx, permitID, ChecklistPreWork); err != nil {
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&WorkPermit{}).
			Where("id = ? AND status = ?", permitID, StatusApproved).
			Updates(map[string]any{"status": StatusActive, "updated_at": now})
		if res.Error != nil {
			return fmt.Errorf("开工失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return s.staleError(ctx, tx, permitID, "activate")
		}
		p.Status = StatusActive
		p.UpdatedAt = now
		out = p
		return nil
	})
	metrics.RecordTransition("activate", err)
	if err != nil {
		return nil, err
	}
	s.publish(Event{Kind: EventActivated, PermitID: out.ID, PermitCode: out.Code, Status: out.Status, Actor: actorID, OccurredAt: out.UpdatedAt})
	s.audit.Record(ctx, actorID, "permit.activate", "work_permit", out.ID, nil)
	return out, nil
}

// Close 关闭许可证：ACTIVE → CLOSED。作业后检查清单必须全部通过。
func (s *Service) Close(ctx context.Context, permitID, closerID, notes string) (*WorkPermit, error) {
	if closerID == "" {
		return nil, &ValidationError{Field: "closer_id", Message: "closer is required"}
	}
	var out *WorkPermit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPermit(ctx, tx, permitID)
		if err != nil {
			return err
		}
		if err := guardTransition(p, StatusActive, StatusClosed, "close"); err != nil {
			return err
		}
		if err := s.checkGate(ctx, tx, permitID, ChecklistPostWork); err != nil {
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&WorkPermit{}).
			Where("id = ? AND status = ?", permitID, StatusActive).
			Updates(map[string]any{
				"status":        StatusClosed,
				"closed_by":     closerID,
				"closed_at":     now,
				"closure_notes": notes,
				"updated_at":    now,
			})
		if res.Error != nil {
			return fmt.Errorf("关闭许可证失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return s.staleError(ctx, tx, permitID, "close")
		}
		p.Status = StatusClosed
		p.ClosedBy = closerID
		p.ClosedAt = &now
		p.ClosureNotes = notes
		p.UpdatedAt = now
		out = p
		return nil
	})
	metrics.RecordTransition("close", err)
	if err != nil {
		return nil, err
	}
	s.publish(Event{Kind: EventClosed, PermitID: out.ID, PermitCode: out.Code, Status: out.Status, Actor: closerID, OccurredAt: out.UpdatedAt})
	s.audit.Record(ctx, closerID, "permit.close", "work_permit", out.ID, map[string]any{"notes": notes})
	return out, nil
}

// Cancel 取消许可证：任何非终态 → CANCELLED
func (s *Service) Cancel(ctx context.Context, permitID, reason, actorID string) (*WorkPermit, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Field: "reason", Message: "cancellation reason is required"}
	}
	var out *WorkPermit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPermit(ctx, tx, permitID)
		if err != nil {
			return err
		}
		// 转换表中每个非终态都允许进入 CANCELLED
		if !p.Status.CanTransition(StatusCancelled) {
			return &InvalidStateError{Entity: "permit", ID: permitID, Status: string(p.Status), Operation: "cancel"}
		}

		now := time.Now().UTC()
		res := tx.Model(&WorkPermit{}).
			Where("id = ? AND status NOT IN ?", permitID, []PermitStatus{StatusClosed, StatusCancelled}).
			Updates(map[string]any{
				"status":        StatusCancelled,
				"closed_by":     actorID,
				"closed_at":     now,
				"closure_notes": reason,
				"updated_at":    now,
			})
		if res.Error != nil {
			return fmt.Errorf("取消许可证失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return s.staleError(ctx, tx, permitID, "cancel")
		}
		p.Status = StatusCancelled
		p.ClosedBy = actorID
		p.ClosedAt = &now
		p.ClosureNotes = reason
		p.UpdatedAt = now
		out = p
		return nil
	})
	metrics.RecordTransition("cancel", err)
	if err != nil {
		return nil, err
	}
	s.publish(Event{Kind: EventCancelled, PermitID: out.ID, PermitCode: out.Code, Status: out.Status, Actor: actorID, OccurredAt: out.UpdatedAt})
	s.audit.Record(ctx, actorID, "permit.cancel", "work_permit", out.ID, map[string]any{"reason": reason})
	return out, nil
}

// guardTransition 状态守卫：当前状态必须等于 from，且 from → to 在转换表中合法
func guardTransition(p *WorkPermit, from, to PermitStatus, operation string) error {
	if p.Status != from || !from.CanTransition(to) {
		return &InvalidStateError{Entity: "permit", ID: p.ID, Status: string(p.Status), Operation: operation}
	}
	return nil
}

// transition 执行一次无额外守卫的单状态转换
func (s *Service) transition(ctx context.Context, permitID, operation string, from, to PermitStatus, updates map[string]any) (*WorkPermit, error) {
	var out *WorkPermit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPermit(ctx, tx, permitID)
		if err != nil {
			return err
		}
		if err := guardTransition(p, from, to, operation); err != nil {
			return err
		}

		res := tx.Model(&WorkPermit{}).
			Where("id = ? AND status = ?", permitID, from).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("%s 失败: %w", operation, res.Error)
		}
		if res.RowsAffected == 0 {
			return s.staleError(ctx, tx, permitID, operation)
		}

		refreshed, err := s.loadPermit(ctx, tx, permitID)
		if err != nil {
			return err
		}
		out = refreshed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// checkGate 校验检查清单守卫；清单不存在视为满足
func (s *Service) checkGate(ctx context.Context, tx *gorm.DB, permitID string, ctype ChecklistType) error {
	var cl Checklist
	err := tx.WithContext(ctx).
		Where("permit_id = ? AND type = ?", permitID, ctype).
		First(&cl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !cl.AllPassed {
		return &PreconditionError{PermitID: permitID, ChecklistType: ctype, Unchecked: cl.Items.Unchecked()}
	}
	return nil
}

// loadPermit 读取许可证（不含关联），不存在时返回 ErrNotFound
func (s *Service) loadPermit(ctx context.Context, tx *gorm.DB, permitID string) (*WorkPermit, error) {
	var p WorkPermit
	if err := tx.WithContext(ctx).First(&p, "id = ?", permitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// staleError 守卫更新竞争失败后重读并给出确定性的错误
func (s *Service) staleError(ctx context.Context, tx *gorm.DB, permitID, operation string) error {
	current, err := s.loadPermit(ctx, tx, permitID)
	if err != nil {
		return err
	}
	return &InvalidStateError{Entity: "permit", ID: permitID, Status: string(current.Status), Operation: operation}
}

func (s *Service) publish(evt Event) {
	if s.bus != nil {
		s.bus.Publish(evt)
	}
}
