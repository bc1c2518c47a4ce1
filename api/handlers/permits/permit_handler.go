package permits

import (
	"errors"

	"ehs-backend/internal/common"
	"ehs-backend/internal/permit"

	"github.com/gin-gonic/gin"
)

// PermitHandler 作业许可证管理 Handler
type PermitHandler struct {
	svc *permit.Service
}

// NewPermitHandler 创建 PermitHandler 实例
func NewPermitHandler(svc *permit.Service) *PermitHandler {
	return &PermitHandler{svc: svc}
}

// actorID 取当前操作人：认证中间件写入的 user_id，或 X-User-ID 头
func actorID(c *gin.Context) string {
	if id := c.GetString("user_id"); id != "" {
		return id
	}
	return c.GetHeader("X-User-ID")
}

// respondServiceError 业务错误到统一响应的映射
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, permit.ErrNotFound):
		common.ResponseError(c, common.CodeNotFound, "资源不存在")
	case permit.IsInvalidState(err):
		common.ResponseError(c, common.CodeInvalidState, err.Error())
	case permit.IsPreconditionFailed(err):
		common.ResponseError(c, common.CodePreconditionFailed, err.Error())
	case permit.IsValidation(err):
		common.ResponseError(c, common.CodeInvalidRequest, err.Error())
	default:
		common.ResponseError(c, common.CodeInternalError, "内部错误")
	}
}

// CreatePermit 创建作业许可证
// @Summary 创建作业许可证
// @Description 创建 DRAFT 状态的许可证，并按类型生成作业前/作业后检查表
// @Tags Permits
// @Accept json
// @Produce json
// @Param request body CreatePermitRequest true "许可证信息"
// @Success 201 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Router /api/permits [post]
func (h *PermitHandler) CreatePermit(c *gin.Context) {
	var req CreatePermitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	p, err := h.svc.CreatePermit(c.Request.Context(), permit.CreatePermitParams{
		Type:          permit.PermitType(req.Type),
		Title:         req.Title,
		Description:   req.Description,
		Location:      req.Location,
		StartDatetime: req.StartDatetime,
		EndDatetime:   req.EndDatetime,
		RequestedBy:   actorID(c),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseCreated(c, p)
}

// GetPermit 获取许可证详情
// @Summary 获取许可证详情
// @Description 返回许可证及其检查表与延期记录
// @Tags Permits
// @Produce json
// @Param id path string true "许可证ID"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/permits/{id} [get]
func (h *PermitHandler) GetPermit(c *gin.Context) {
	p, err := h.svc.GetPermit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, p)
}

// ListPermits 分页查询许可证
// @Summary 分页查询许可证
// @Tags Permits
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Param status query string false "状态过滤"
// @Param type query string false "类型过滤"
// @Param keyword query string false "标题/编号/地点关键字"
// @Success 200 {object} common.APIResponse
// @Router /api/permits [get]
func (h *PermitHandler) ListPermits(c *gin.Context) {
	params := permit.ListPermitsParams{PaginationRequest: common.DefaultPagination()}
	if err := c.ShouldBindQuery(&params.PaginationRequest); err != nil {
		common.ResponseBadRequest(c, "分页参数错误: "+err.Error())
		return
	}
	params.Status = c.Query("status")
	params.Type = c.Query("type")
	params.Keyword = c.Query("keyword")

	items, total, err := h.svc.ListPermits(c.Request.Context(), params)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseList(c, items, total, params.PaginationRequest)
}

// UpdatePermit 更新许可证
// @Summary 更新许可证
// @Description 仅 DRAFT / PENDING 状态可编辑
// @Tags Permits
// @Accept json
// @Produce json
// @Param id path string true "许可证ID"
// @Param request body UpdatePermitRequest true "更新字段"
// @Success 200 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/permits/{id} [put]
func (h *PermitHandler) UpdatePermit(c *gin.Context) {
	var req UpdatePermitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	p, err := h.svc.UpdatePermit(c.Request.Context(), c.Param("id"), permit.UpdatePermitParams{
		Title:         req.Title,
		Description:   req.Description,
		Location:      req.Location,
		StartDatetime: req.StartDatetime,
		EndDatetime:   req.EndDatetime,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, p)
}

// DeletePermit 删除许可证
// @Summary 删除许可证
// @Description 仅 DRAFT 状态可删除，级联删除检查表与延期记录
// @Tags Permits
// @Param id path string true "许可证ID"
// @Success 204
// @Failure 409 {object} common.APIResponse
// @Router /api/permits/{id} [delete]
func (h *PermitHandler) DeletePermit(c *gin.Context) {
	if err := h.svc.DeletePermit(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseNoContent(c)
}

// Submit 提交审批
// @Summary 提交审批
// @Description DRAFT → PENDING
// @Tags Permits
// @Produce json
// @Param id path string true "许可证ID"
// @Success 200 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/permits/{id}/submit [post]
func (h *PermitHandler) Submit(c *gin.Context) {
	p, err := h.svc.Submit(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, p)
}

// Approve 审批通过
// @Summary 审批通过
// @Description PENDING → APPROVED
// @Tags Permits
// @Produce json
// @Param id path string true "许可证ID"
// @Success 200 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/permits/{id}/approve [post]
func (h *PermitHandler) Approve(c *gin.Context) {
	p, err := h.svc.Approve(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, p)
}

// Reject 审批驳回
// @Summary 审批驳回
// @Description PENDING → DRAFT，需给出驳回原因
// @Tags Permits
// @Accept json
// @Produce json
// @Param id path string true "许可证ID"
// @Param request body RejectRequest true "驳回原因"
// @Success 200 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/permits/{id}/reject [post]
func (h *PermitHandler) Reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	p, err := h.svc.Reject(c.Request.Context(), c.Param("id"), req.Reason, actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, p)
}

// Activate 开工
// @Summary 开工
// @Description APPROVED → ACTIVE，要求作业前检查表全部通过
// @Tags Permits
// @Produce json
// @Param id path string true "许可证ID"
// @Success 200 {object} common.APIResponse
// @Failure 422 {object} common.APIResponse
// @Router /api/permits/{id}/activate [post]
func (h *PermitHandler) Activate(c *gin.Context) {
	p, err := h.svc.Activate(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, p)
}

// Close 关闭许可证
// @Summary 关闭许可证
// @Description ACTIVE → CLOSED，要求作业后检查表全部通过
// @Tags Permits
// @Accept json
// @Produce json
// @Param id path string true "许可证ID"
// @Param request body CloseRequest false "关闭说明"
// @Success 200 {object} common.APIResponse
// @Failure 422 {object} common.APIResponse
// @Router /api/permits/{id}/close [post]
func (h *PermitHandler) Close(c *gin.Context) {
	var req CloseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
			return
		}
	}

	p, err := h.svc.Close(c.Request.Context(), c.Param("id"), actorID(c), req.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, p)
}

// Cancel 取消许可证
// @Summary 取消许可证
// @Description 任何非终态均可取消，需给出原因
// @Tags Permits
// @Accept json
// @Produce json
// @Param id path string true "许可证ID"
// @Param request body CancelRequest true "取消原因"
// @Success 200 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/permits/{id}/cancel [post]
func (h *PermitHandler) Cancel(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	p, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), req.Reason, actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, p)
}
