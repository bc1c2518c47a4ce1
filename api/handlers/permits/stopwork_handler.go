package permits

import (
	"ehs-backend/internal/common"
	"ehs-backend/internal/permit"

	"github.com/gin-gonic/gin"
)

// StopWorkHandler 停工令 Handler
type StopWorkHandler struct {
	svc *permit.Service
}

// NewStopWorkHandler 创建 StopWorkHandler 实例
func NewStopWorkHandler(svc *permit.Service) *StopWorkHandler {
	return &StopWorkHandler{svc: svc}
}

// CreateStopWork 签发停工令
// @Summary 签发停工令
// @Description 任何人可签发。挂接 ACTIVE 许可证时在同一事务内将其强制挂起
// @Tags StopWork
// @Accept json
// @Produce json
// @Param request body CreateStopWorkRequest true "停工令信息"
// @Success 201 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Router /api/stop-work [post]
func (h *StopWorkHandler) CreateStopWork(c *gin.Context) {
	var req CreateStopWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	swa, err := h.svc.CreateStopWork(c.Request.Context(), permit.CreateStopWorkParams{
		PermitID:    req.PermitID,
		Reason:      req.Reason,
		Severity:    permit.StopWorkSeverity(req.Severity),
		Description: req.Description,
		Location:    req.Location,
	}, actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseCreated(c, swa)
}

// GetStopWork 获取停工令详情
// @Summary 获取停工令详情
// @Tags StopWork
// @Produce json
// @Param id path string true "停工令ID"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/stop-work/{id} [get]
func (h *StopWorkHandler) GetStopWork(c *gin.Context) {
	swa, err := h.svc.GetStopWork(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, swa)
}

// ListStopWork 分页查询停工令
// @Summary 分页查询停工令
// @Tags StopWork
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param status query string false "状态过滤"
// @Param severity query string false "严重程度过滤"
// @Param permit_id query string false "许可证过滤"
// @Success 200 {object} common.APIResponse
// @Router /api/stop-work [get]
func (h *StopWorkHandler) ListStopWork(c *gin.Context) {
	params := permit.ListStopWorkParams{PaginationRequest: common.DefaultPagination()}
	if err := c.ShouldBindQuery(&params.PaginationRequest); err != nil {
		common.ResponseBadRequest(c, "分页参数错误: "+err.Error())
		return
	}
	params.Status = c.Query("status")
	params.Severity = c.Query("severity")
	params.PermitID = c.Query("permit_id")

	items, total, err := h.svc.ListStopWork(c.Request.Context(), params)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseList(c, items, total, params.PaginationRequest)
}

// StartInvestigation 开始调查
// @Summary 开始调查
// @Description OPEN → INVESTIGATING
// @Tags StopWork
// @Produce json
// @Param id path string true "停工令ID"
// @Success 200 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/stop-work/{id}/investigate [post]
func (h *StopWorkHandler) StartInvestigation(c *gin.Context) {
	swa, err := h.svc.StartInvestigation(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, swa)
}

// ResolveStopWork 解决停工令
// @Summary 解决停工令
// @Description OPEN / INVESTIGATING → RESOLVED，记录处置说明与纠正措施
// @Tags StopWork
// @Accept json
// @Produce json
// @Param id path string true "停工令ID"
// @Param request body ResolveStopWorkRequest true "处置信息"
// @Success 200 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/stop-work/{id}/resolve [post]
func (h *StopWorkHandler) ResolveStopWork(c *gin.Context) {
	var req ResolveStopWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	swa, err := h.svc.ResolveStopWork(c.Request.Context(), c.Param("id"), permit.ResolveStopWorkParams{
		ResolutionNotes:   req.ResolutionNotes,
		CorrectiveActions: req.CorrectiveActions,
		LessonsLearned:    req.LessonsLearned,
	}, actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, swa)
}

// ResumeWork 复工
// @Summary 复工
// @Description RESOLVED → CLOSED，挂接的许可证若仍为 SUSPENDED 则恢复 ACTIVE
// @Tags StopWork
// @Produce json
// @Param id path string true "停工令ID"
// @Success 200 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/stop-work/{id}/resume [post]
func (h *StopWorkHandler) ResumeWork(c *gin.Context) {
	swa, err := h.svc.ResumeWork(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, swa)
}
