package permit

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CodeGenerator issues human-readable record codes, unique per prefix+year
// and monotonically increasing.
type CodeGenerator interface {
	NextCode(ctx context.Context, tx *gorm.DB, prefix string, year int) (string, error)
}

// sequenceCodeGenerator 基于数据库序列表的默认实现，
// 生成形如 PTW-2026-0007 的编号。
type sequenceCodeGenerator struct{}

// NewSequenceCodeGenerator 创建默认编号生成器
func NewSequenceCodeGenerator() CodeGenerator {
	return &sequenceCodeGenerator{}
}

// NextCode increments the per-prefix yearly sequence inside the caller's
// transaction so that code assignment commits or rolls back with the record
// it names.
func (g *sequenceCodeGenerator) NextCode(ctx context.Context, tx *gorm.DB, prefix string, year int) (string, error) {
	seq := PermitCodeSequence{Prefix: prefix, Year: year, LastSeq: 1}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "prefix"}, {Name: "year"}},
			DoUpdates: clause.Assignments(map[string]any{"last_seq": gorm.Expr("permit_code_sequences.last_seq + 1")}),
		}).
		Create(&seq).Error
	if err != nil {
		return "", fmt.Errorf("分配编号失败: %w", err)
	}

	// 回读冲突更新后的实际序号
	var current PermitCodeSequence
	if err := tx.WithContext(ctx).
		Where("prefix = ? AND year = ?", prefix, year).
		First(&current).Error; err != nil {
		return "", fmt.Errorf("读取编号序列失败: %w", err)
	}

	return fmt.Sprintf("%s-%d-%04d", prefix, year, current.LastSeq), nil
}
