package permit

// PermitStatus 工作许可证生命周期状态
type PermitStatus string

const (
	StatusDraft     PermitStatus = "DRAFT"
	StatusPending   PermitStatus = "PENDING"
	StatusApproved  PermitStatus = "APPROVED"
	StatusActive    PermitStatus = "ACTIVE"
	StatusSuspended PermitStatus = "SUSPENDED"
	StatusClosed    PermitStatus = "CLOSED"
	StatusCancelled PermitStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s PermitStatus) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// permitTransitions maps each status to the statuses reachable from it.
// Forced suspension/resumption (stop-work interlock) is included here even
// though it is never triggered by a direct caller operation.
var permitTransitions = map[PermitStatus][]PermitStatus{
	StatusDraft:     {StatusPending, StatusCancelled},
	StatusPending:   {StatusApproved, StatusDraft, StatusCancelled},
	StatusApproved:  {StatusActive, StatusCancelled},
	StatusActive:    {StatusClosed, StatusSuspended, StatusCancelled},
	StatusSuspended: {StatusActive, StatusCancelled},
	StatusClosed:    {},
	StatusCancelled: {},
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s PermitStatus) CanTransition(next PermitStatus) bool {
	for _, allowed := range permitTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PermitType 许可证类型（高危作业类别）
type PermitType string

const (
	TypeHotWork         PermitType = "HOT_WORK"
	TypeConfinedSpace   PermitType = "CONFINED_SPACE"
	TypeElectrical      PermitType = "ELECTRICAL"
	TypeWorkingAtHeight PermitType = "WORKING_AT_HEIGHT"
	TypeExcavation      PermitType = "EXCAVATION"
	TypeLifting         PermitType = "LIFTING"
	TypeLockoutTagout   PermitType = "LOCKOUT_TAGOUT"
	TypeGeneral         PermitType = "GENERAL"
)

// PermitTypes lists every recognised permit type.
var PermitTypes = []PermitType{
	TypeHotWork,
	TypeConfinedSpace,
	TypeElectrical,
	TypeWorkingAtHeight,
	TypeExcavation,
	TypeLifting,
	TypeLockoutTagout,
	TypeGeneral,
}

// Valid reports whether t is a recognised permit type.
func (t PermitType) Valid() bool {
	for _, known := range PermitTypes {
		if known == t {
			return true
		}
	}
	return false
}

// ChecklistType 检查清单类型
type ChecklistType string

const (
	ChecklistPreWork  ChecklistType = "PRE_WORK"
	ChecklistPostWork ChecklistType = "POST_WORK"
)

// Valid reports whether t is a recognised checklist type.
func (t ChecklistType) Valid() bool {
	return t == ChecklistPreWork || t == ChecklistPostWork
}

// ExtensionStatus 延期申请状态
type ExtensionStatus string

const (
	ExtensionPending  ExtensionStatus = "PENDING"
	ExtensionApproved ExtensionStatus = "APPROVED"
	ExtensionRejected ExtensionStatus = "REJECTED"
)

// StopWorkStatus 停工令状态。INVESTIGATING 是 OPEN 的可选子状态，
// 解决（RESOLVED）前两者等价可处理。
type StopWorkStatus string

const (
	StopWorkOpen          StopWorkStatus = "OPEN"
	StopWorkInvestigating StopWorkStatus = "INVESTIGATING"
	StopWorkResolved      StopWorkStatus = "RESOLVED"
	StopWorkClosed        StopWorkStatus = "CLOSED"
)

// Resolvable reports whether a stop-work record in status s may be resolved.
func (s StopWorkStatus) Resolvable() bool {
	return s == StopWorkOpen || s == StopWorkInvestigating
}

// StopWorkSeverity 停工事件严重程度
type StopWorkSeverity string

const (
	SeverityLow      StopWorkSeverity = "LOW"
	SeverityMedium   StopWorkSeverity = "MEDIUM"
	SeverityHigh     StopWorkSeverity = "HIGH"
	SeverityCritical StopWorkSeverity = "CRITICAL"
)

// Valid reports whether s is a recognised severity.
func (s StopWorkSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}
