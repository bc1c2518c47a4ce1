package permit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// UpdateChecklist 更新检查清单的勾选状态。条目集合与顺序在创建时固定，
// 这里只翻转 checked 标志并重新计算 AllPassed：结果为真时记录完成人
// 与完成时间，结果为假时清空两者。
func (s *Service) UpdateChecklist(ctx context.Context, checklistID string, checks map[string]bool, actorID string) (*Checklist, error) {
	if actorID == "" {
		return nil, &ValidationError{Field: "actor_id", Message: "actor is required"}
	}

	var out *Checklist
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cl Checklist
		if err := tx.First(&cl, "id = ?", checklistID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		for id := range checks {
			if !cl.Items.hasItem(id) {
				return &ValidationError{Field: "items", Message: fmt.Sprintf("unknown checklist item %q", id)}
			}
		}

		for i, item := range cl.Items {
			if checked, ok := checks[item.ID]; ok {
				cl.Items[i].Checked = checked
			}
		}

		// AllPassed 始终由条目重新推导
		cl.AllPassed = cl.Items.AllChecked()
		if cl.AllPassed {
			now := time.Now().UTC()
			cl.CompletedBy = actorID
			cl.CompletedAt = &now
		} else {
			cl.CompletedBy = ""
			cl.CompletedAt = nil
		}

		if err := tx.Save(&cl).Error; err != nil {
			return fmt.Errorf("更新检查清单失败: %w", err)
		}
		out = &cl
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actorID, "checklist.update", "permit_checklist", out.ID, map[string]any{
		"permit_id":  out.PermitID,
		"type":       string(out.Type),
		"all_passed": out.AllPassed,
	})
	return out, nil
}

// GetChecklist 查询检查清单
func (s *Service) GetChecklist(ctx context.Context, checklistID string) (*Checklist, error) {
	var cl Checklist
	if err := s.db.WithContext(ctx).First(&cl, "id = ?", checklistID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cl, nil
}

// IsSatisfied 只读查询某许可证指定类型清单是否满足。清单不存在时
// 视为满足（没有需要把关的内容）。
func (s *Service) IsSatisfied(ctx context.Context, permitID string, ctype ChecklistType) (bool, error) {
	var cl Checklist
	err := s.db.WithContext(ctx).
		Where("permit_id = ? AND type = ?", permitID, ctype).
		First(&cl).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return true, nil
		}
		return false, err
	}
	return cl.AllPassed, nil
}

func (items ChecklistItems) hasItem(id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}
