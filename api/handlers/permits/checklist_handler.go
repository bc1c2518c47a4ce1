package permits

import (
	"ehs-backend/internal/common"
	"ehs-backend/internal/permit"

	"github.com/gin-gonic/gin"
)

// ChecklistHandler 检查表 Handler
type ChecklistHandler struct {
	svc *permit.Service
}

// NewChecklistHandler 创建 ChecklistHandler 实例
func NewChecklistHandler(svc *permit.Service) *ChecklistHandler {
	return &ChecklistHandler{svc: svc}
}

// GetChecklist 获取检查表详情
// @Summary 获取检查表详情
// @Tags Checklists
// @Produce json
// @Param id path string true "检查表ID"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /api/checklists/{id} [get]
func (h *ChecklistHandler) GetChecklist(c *gin.Context) {
	cl, err := h.svc.GetChecklist(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, cl)
}

// UpdateChecklist 更新检查表勾选状态
// @Summary 更新检查表勾选状态
// @Description 按条目ID勾选或取消勾选，全部通过时自动置位 all_passed
// @Tags Checklists
// @Accept json
// @Produce json
// @Param id path string true "检查表ID"
// @Param request body UpdateChecklistRequest true "条目勾选状态"
// @Success 200 {object} common.APIResponse
// @Failure 400 {object} common.APIResponse
// @Router /api/checklists/{id} [put]
func (h *ChecklistHandler) UpdateChecklist(c *gin.Context) {
	var req UpdateChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ResponseBadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	cl, err := h.svc.UpdateChecklist(c.Request.Context(), c.Param("id"), req.Checks, actorID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	common.ResponseSuccess(c, cl)
}
