package permit

import (
	"time"

	"gorm.io/datatypes"
)

// WorkPermit 工作许可证（PTW）聚合根
type WorkPermit struct {
	ID   string     `json:"id" gorm:"primaryKey;type:uuid"`
	Code string     `json:"code" gorm:"size:32;not null;uniqueIndex"` // 人类可读编号，分配后不可变
	Type PermitType `json:"type" gorm:"size:32;not null;index"`

	Title       string `json:"title" gorm:"size:255;not null"`
	Description string `json:"description" gorm:"type:text"`
	Location    string `json:"location" gorm:"size:255"`

	// 作业时间窗口；EndDatetime 可被已批准的延期修改
	StartDatetime time.Time `json:"startDatetime" gorm:"not null"`
	EndDatetime   time.Time `json:"endDatetime" gorm:"not null"`

	Status PermitStatus `json:"status" gorm:"size:20;not null;default:DRAFT;index"`

	// 审计字段
	RequestedBy     string     `json:"requestedBy" gorm:"type:uuid;not null"`
	ApprovedBy      string     `json:"approvedBy,omitempty" gorm:"type:uuid"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectionReason string     `json:"rejectionReason,omitempty" gorm:"type:text"`
	ClosedBy        string     `json:"closedBy,omitempty" gorm:"type:uuid"`
	ClosedAt        *time.Time `json:"closedAt,omitempty"`
	ClosureNotes    string     `json:"closureNotes,omitempty" gorm:"type:text"`

	Checklists []Checklist `json:"checklists,omitempty" gorm:"foreignKey:PermitID;constraint:OnDelete:CASCADE"`
	Extensions []Extension `json:"extensions,omitempty" gorm:"foreignKey:PermitID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (WorkPermit) TableName() string { return "work_permits" }

// Checklist 某许可证的一份检查清单（作业前 / 作业后各一份）
type Checklist struct {
	ID       string        `json:"id" gorm:"primaryKey;type:uuid"`
	PermitID string        `json:"permitId" gorm:"type:uuid;not null;index:idx_checklist_permit_type,unique"`
	Type     ChecklistType `json:"type" gorm:"size:16;not null;index:idx_checklist_permit_type,unique"`

	// 条目顺序与集合在创建时固定；更新只翻转 checked 标志
	Items ChecklistItems `json:"items" gorm:"type:jsonb;serializer:json"`

	// AllPassed 始终由 Items 重新计算得出，绝不独立赋值
	AllPassed   bool       `json:"allPassed" gorm:"not null;default:false"`
	CompletedBy string     `json:"completedBy,omitempty" gorm:"type:uuid"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (Checklist) TableName() string { return "permit_checklists" }

// ChecklistItem 检查清单条目
type ChecklistItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Checked     bool   `json:"checked"`
}

// ChecklistItems 有序条目集合
type ChecklistItems []ChecklistItem

// AllChecked reports whether every item is checked. An empty list gates nothing.
func (items ChecklistItems) AllChecked() bool {
	for _, it := range items {
		if !it.Checked {
			return false
		}
	}
	return true
}

// Unchecked returns the IDs of items that are not yet checked.
func (items ChecklistItems) Unchecked() []string {
	var ids []string
	for _, it := range items {
		if !it.Checked {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// Extension 许可证延期申请
type Extension struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	PermitID string `json:"permitId" gorm:"type:uuid;not null;index"`

	OriginalEnd time.Time `json:"originalEnd" gorm:"not null"` // 申请时许可证的结束时间快照
	NewEnd      time.Time `json:"newEnd" gorm:"not null"`
	Reason      string    `json:"reason" gorm:"type:text;not null"`

	Status          ExtensionStatus `json:"status" gorm:"size:16;not null;default:PENDING;index"`
	RequestedBy     string          `json:"requestedBy" gorm:"type:uuid;not null"`
	ApprovedBy      string          `json:"approvedBy,omitempty" gorm:"type:uuid"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (Extension) TableName() string { return "permit_extensions" }

// StopWorkAuthority 停工令（SWA）。PermitID 可为空：安全事件可独立于
// 任何许可证发起（如区域级停工）。
type StopWorkAuthority struct {
	ID       string  `json:"id" gorm:"primaryKey;type:uuid"`
	Code     string  `json:"code" gorm:"size:32;not null;uniqueIndex"`
	PermitID *string `json:"permitId,omitempty" gorm:"type:uuid;index"`

	Reason      string           `json:"reason" gorm:"size:64;not null"` // 事件类别
	Severity    StopWorkSeverity `json:"severity" gorm:"size:16;not null"`
	Description string           `json:"description" gorm:"type:text;not null"`
	Location    string           `json:"location" gorm:"size:255"`

	Status StopWorkStatus `json:"status" gorm:"size:16;not null;default:OPEN;index"`

	ReportedBy string    `json:"reportedBy" gorm:"type:uuid;not null"`
	ReportedAt time.Time `json:"reportedAt" gorm:"not null"`

	// RESOLVED 时填写
	ResolvedBy        string                     `json:"resolvedBy,omitempty" gorm:"type:uuid"`
	ResolvedAt        *time.Time                 `json:"resolvedAt,omitempty"`
	ResolutionNotes   string                     `json:"resolutionNotes,omitempty" gorm:"type:text"`
	CorrectiveActions datatypes.JSONSlice[string] `json:"correctiveActions,omitempty"`
	LessonsLearned    string                     `json:"lessonsLearned,omitempty" gorm:"type:text"`

	// CLOSED（复工）时填写
	WorkResumedBy string     `json:"workResumedBy,omitempty" gorm:"type:uuid"`
	WorkResumedAt *time.Time `json:"workResumedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (StopWorkAuthority) TableName() string { return "stop_work_authorities" }

// PermitCodeSequence 年度编号序列，按前缀+年份递增
type PermitCodeSequence struct {
	Prefix  string `gorm:"primaryKey;size:8"`
	Year    int    `gorm:"primaryKey"`
	LastSeq int    `gorm:"not null;default:0"`
}

// TableName 指定表名
func (PermitCodeSequence) TableName() string { return "permit_code_sequences" }

// AllModels 返回本包的全部 GORM 模型，供迁移使用
func AllModels() []any {
	return []any{
		&WorkPermit{},
		&Checklist{},
		&Extension{},
		&StopWorkAuthority{},
		&PermitCodeSequence{},
	}
}
