package permits

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ehs-backend/internal/common"
	"ehs-backend/internal/permit"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(permit.AllModels()...))

	svc := permit.NewService(db)
	permitHandler := NewPermitHandler(svc)
	checklistHandler := NewChecklistHandler(svc)
	extensionHandler := NewExtensionHandler(svc)
	stopWorkHandler := NewStopWorkHandler(svc)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})

	apiGroup := router.Group("/api")
	permitGroup := apiGroup.Group("/permits")
	permitGroup.POST("", permitHandler.CreatePermit)
	permitGroup.GET("", permitHandler.ListPermits)
	permitGroup.GET("/:id", permitHandler.GetPermit)
	permitGroup.PUT("/:id", permitHandler.UpdatePermit)
	permitGroup.DELETE("/:id", permitHandler.DeletePermit)
	permitGroup.POST("/:id/submit", permitHandler.Submit)
	permitGroup.POST("/:id/approve", permitHandler.Approve)
	permitGroup.POST("/:id/reject", permitHandler.Reject)
	permitGroup.POST("/:id/activate", permitHandler.Activate)
	permitGroup.POST("/:id/close", permitHandler.Close)
	permitGroup.POST("/:id/cancel", permitHandler.Cancel)
	permitGroup.POST("/:id/extensions", extensionHandler.RequestExtension)
	permitGroup.GET("/:id/extensions", extensionHandler.ListExtensions)

	checklistGroup := apiGroup.Group("/checklists")
	checklistGroup.GET("/:id", checklistHandler.GetChecklist)
	checklistGroup.PUT("/:id", checklistHandler.UpdateChecklist)

	stopWorkGroup := apiGroup.Group("/stop-work")
	stopWorkGroup.POST("", stopWorkHandler.CreateStopWork)
	stopWorkGroup.GET("/:id", stopWorkHandler.GetStopWork)
	stopWorkGroup.POST("/:id/resolve", stopWorkHandler.ResolveStopWork)
	stopWorkGroup.POST("/:id/resume", stopWorkHandler.ResumeWork)

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, common.APIResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-test")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp common.APIResponse
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func createPermitViaAPI(t *testing.T, router *gin.Engine) map[string]any {
	t.Helper()
	start := time.Now().UTC().Add(time.Hour)
	w, resp := doJSON(t, router, http.MethodPost, "/api/permits", CreatePermitRequest{
		Type:          "HOT_WORK",
		Title:         "Pipe rack welding",
		Location:      "Unit 300",
		StartDatetime: start,
		EndDatetime:   start.Add(8 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	return data
}

func TestCreateAndGetPermitAPI(t *testing.T) {
	router := newTestRouter(t)

	data := createPermitViaAPI(t, router)
	require.Equal(t, "DRAFT", data["status"])
	require.NotEmpty(t, data["code"])

	w, resp := doJSON(t, router, http.MethodGet, "/api/permits/"+data["id"].(string), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := resp.Data.(map[string]any)
	require.Equal(t, data["code"], got["code"])
	require.Len(t, got["checklists"], 2)
}

func TestCreatePermitBadRequestAPI(t *testing.T) {
	router := newTestRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/api/permits", gin.H{"type": "HOT_WORK"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.False(t, resp.Success)
	require.Equal(t, common.CodeInvalidRequest, resp.Code)
}

func TestLifecycleStatusCodesAPI(t *testing.T) {
	router := newTestRouter(t)
	data := createPermitViaAPI(t, router)
	id := data["id"].(string)

	// 非 DRAFT 状态直接审批应返回 409
	w, resp := doJSON(t, router, http.MethodPost, "/api/permits/"+id+"/approve", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, common.CodeInvalidState, resp.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/permits/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, router, http.MethodPost, "/api/permits/"+id+"/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// 作业前检查表未完成，开工应返回 422
	w, resp = doJSON(t, router, http.MethodPost, "/api/permits/"+id+"/activate", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, common.CodePreconditionFailed, resp.Code)

	completeChecklistViaAPI(t, router, id, "PRE_WORK")
	w, resp = doJSON(t, router, http.MethodPost, "/api/permits/"+id+"/activate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ACTIVE", resp.Data.(map[string]any)["status"])

	completeChecklistViaAPI(t, router, id, "POST_WORK")
	w, resp = doJSON(t, router, http.MethodPost, "/api/permits/"+id+"/close", CloseRequest{Notes: "done"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "CLOSED", resp.Data.(map[string]any)["status"])
}

func completeChecklistViaAPI(t *testing.T, router *gin.Engine, permitID, ctype string) {
	t.Helper()

	_, resp := doJSON(t, router, http.MethodGet, "/api/permits/"+permitID, nil)
	checklists := resp.Data.(map[string]any)["checklists"].([]any)

	for _, raw := range checklists {
		cl := raw.(map[string]any)
		if cl["type"] != ctype {
			continue
		}
		checks := map[string]bool{}
		for _, item := range cl["items"].([]any) {
			checks[item.(map[string]any)["id"].(string)] = true
		}
		w, updated := doJSON(t, router, http.MethodPut, "/api/checklists/"+cl["id"].(string), UpdateChecklistRequest{Checks: checks})
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, true, updated.Data.(map[string]any)["allPassed"])
		return
	}
	t.Fatalf("checklist %s not found for permit %s", ctype, permitID)
}

func TestStopWorkInterlockAPI(t *testing.T) {
	router := newTestRouter(t)
	data := createPermitViaAPI(t, router)
	id := data["id"].(string)

	doJSON(t, router, http.MethodPost, "/api/permits/"+id+"/submit", nil)
	doJSON(t, router, http.MethodPost, "/api/permits/"+id+"/approve", nil)
	completeChecklistViaAPI(t, router, id, "PRE_WORK")
	doJSON(t, router, http.MethodPost, "/api/permits/"+id+"/activate", nil)

	w, resp := doJSON(t, router, http.MethodPost, "/api/stop-work", CreateStopWorkRequest{
		PermitID:    &id,
		Reason:      "UNSAFE_CONDITION",
		Severity:    "HIGH",
		Description: "Oxygen level below limit",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	swaID := resp.Data.(map[string]any)["id"].(string)

	_, resp = doJSON(t, router, http.MethodGet, "/api/permits/"+id, nil)
	require.Equal(t, "SUSPENDED", resp.Data.(map[string]any)["status"])

	// 未解决前复工应返回 409
	w, _ = doJSON(t, router, http.MethodPost, "/api/stop-work/"+swaID+"/resume", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/api/stop-work/"+swaID+"/resolve", ResolveStopWorkRequest{
		ResolutionNotes: "ventilation restored",
	})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, router, http.MethodPost, "/api/stop-work/"+swaID+"/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, resp = doJSON(t, router, http.MethodGet, "/api/permits/"+id, nil)
	require.Equal(t, "ACTIVE", resp.Data.(map[string]any)["status"])
}

func TestListPermitsDefaultPaginationAPI(t *testing.T) {
	router := newTestRouter(t)
	createPermitViaAPI(t, router)
	createPermitViaAPI(t, router)

	// 未携带分页参数时使用默认值
	w, resp := doJSON(t, router, http.MethodGet, "/api/permits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	require.Len(t, data["items"], 2)
	pagination := data["pagination"].(map[string]any)
	require.EqualValues(t, 1, pagination["page"])
	require.EqualValues(t, 20, pagination["page_size"])
	require.EqualValues(t, 2, pagination["total"])

	w, resp = doJSON(t, router, http.MethodGet, "/api/permits?page=2&page_size=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = resp.Data.(map[string]any)
	require.Len(t, data["items"], 1)
	pagination = data["pagination"].(map[string]any)
	require.EqualValues(t, 2, pagination["page"])
	require.EqualValues(t, 1, pagination["page_size"])
}

func TestGetPermitNotFoundAPI(t *testing.T) {
	router := newTestRouter(t)

	w, resp := doJSON(t, router, http.MethodGet, "/api/permits/nonexistent", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, common.CodeNotFound, resp.Code)
}

func TestExtensionFlowAPI(t *testing.T) {
	router := newTestRouter(t)
	data := createPermitViaAPI(t, router)
	id := data["id"].(string)

	doJSON(t, router, http.MethodPost, "/api/permits/"+id+"/submit", nil)
	doJSON(t, router, http.MethodPost, "/api/permits/"+id+"/approve", nil)

	end, err := time.Parse(time.RFC3339, data["endDatetime"].(string))
	require.NoError(t, err)

	w, resp := doJSON(t, router, http.MethodPost, "/api/permits/"+id+"/extensions", RequestExtensionRequest{
		NewEndDatetime: end.Add(4 * time.Hour),
		Reason:         "scope grew",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "PENDING", resp.Data.(map[string]any)["status"])

	w, resp = doJSON(t, router, http.MethodGet, "/api/permits/"+id+"/extensions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 1, resp.Data.(map[string]any)["total"])
}
