package permits

import "time"

// CreatePermitRequest 创建许可证请求
type CreatePermitRequest struct {
	Type          string    `json:"type" binding:"required"`
	Title         string    `json:"title" binding:"required"`
	Description   string    `json:"description"`
	Location      string    `json:"location" binding:"required"`
	StartDatetime time.Time `json:"startDatetime" binding:"required"`
	EndDatetime   time.Time `json:"endDatetime" binding:"required"`
}

// UpdatePermitRequest 更新许可证请求，仅提交的字段会被更新
type UpdatePermitRequest struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Location      *string    `json:"location"`
	StartDatetime *time.Time `json:"startDatetime"`
	EndDatetime   *time.Time `json:"endDatetime"`
}

// RejectRequest 审批驳回请求
type RejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CloseRequest 关闭许可证请求
type CloseRequest struct {
	Notes string `json:"notes"`
}

// CancelRequest 取消许可证请求
type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// UpdateChecklistRequest 更新检查表勾选状态请求
type UpdateChecklistRequest struct {
	Checks map[string]bool `json:"checks" binding:"required"`
}

// RequestExtensionRequest 申请延期请求
type RequestExtensionRequest struct {
	NewEndDatetime time.Time `json:"newEndDatetime" binding:"required"`
	Reason         string    `json:"reason" binding:"required"`
}

// RejectExtensionRequest 驳回延期请求
type RejectExtensionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CreateStopWorkRequest 签发停工令请求
type CreateStopWorkRequest struct {
	PermitID    *string `json:"permitId"`
	Reason      string  `json:"reason" binding:"required"`
	Severity    string  `json:"severity" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Location    string  `json:"location"`
}

// ResolveStopWorkRequest 解决停工令请求
type ResolveStopWorkRequest struct {
	ResolutionNotes   string   `json:"resolutionNotes" binding:"required"`
	CorrectiveActions []string `json:"correctiveActions"`
	LessonsLearned    string   `json:"lessonsLearned"`
}
