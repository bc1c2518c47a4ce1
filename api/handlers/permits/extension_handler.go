package permits

import (
	"ehs-backend/internal/common"
	"ehs-backend/internal/permit"

	"github.com/gin-gonic/gin"
)

// ExtensionHandler 许可证延期 Handler
type ExtensionHandler struct {
	svc *permit.Service
}

// NewExtensionHandler 创建 ExtensionHandler 实例
func NewExtensionHandler(svc *permit.Service) *ExtensionHandler {
	return &ExtensionHandler{svc: svc}
}

// RequestExtension 申请延期
// @Summary 申请延期
// @Description 许可证须处于 APPROVED / ACTIVE 状态，新截止时间须晚于当前截止时间
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path string true "许可证ID"
// @Param request body RequestExtensionRequest true "延期信息"
// @Success 201 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/permits/{id}/extensions [post]
func (h *ExtensionHandler) RequestExtension(c *gin.Context) {
	var req RequestExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	ext, err := h.svc.RequestExtension(c.Request.Context(), permit.RequestExtensionParams{
		PermitID:    c.Param("id"),
		NewEnd:      req.NewEndDatetime,
		Reason:      req.Reason,
		RequestedBy: actorID(c),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseCreated(c, ext)
}

// ListExtensions 查询许可证的延期记录
// @Summary 查询许可证的延期记录
// @Tags Extensions
// @Produce json
// @Param id path string true "许可证ID"
// @Success 200 {object} common.APIResponse
// @Router /api/permits/{id}/extensions [get]
func (h *ExtensionHandler) ListExtensions(c *gin.Context) {
	exts, err := h.svc.ListExtensions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, gin.H{"extensions": exts, "total": len(exts)})
}

// GetExtension 获取延期详情
// @Summary 获取延期详情
// @Tags Extensions
// @Produce json
// @Param id path string true "延期ID"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/extensions/{id} [get]
func (h *ExtensionHandler) GetExtension(c *gin.Context) {
	ext, err := h.svc.GetExtension(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, ext)
}

// ApproveExtension 批准延期
// @Summary 批准延期
// @Description 同一事务内将许可证截止时间改为延期申请的新截止时间
// @Tags Extensions
// @Produce json
// @Param id path string true "延期ID"
// @Success 200 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/extensions/{id}/approve [post]
func (h *ExtensionHandler) ApproveExtension(c *gin.Context) {
	ext, err := h.svc.ApproveExtension(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, ext)
}

// RejectExtension 驳回延期
// @Summary 驳回延期
// @Description 不改动许可证，需给出驳回原因
// @Tags Extensions
// @Accept json
// @Produce json
// @Param id path string true "延期ID"
// @Param request body RejectExtensionRequest true "驳回原因"
// @Success 200 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /api/extensions/{id}/reject [post]
func (h *ExtensionHandler) RejectExtension(c *gin.Context) {
	var req RejectExtensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	ext, err := h.svc.RejectExtension(c.Request.Context(), c.Param("id"), req.Reason, actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, ext)
}
