package permit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validStopWorkParams(permitID *string) CreateStopWorkParams {
	return CreateStopWorkParams{
		PermitID:    permitID,
		Reason:      "UNSAFE_CONDITION",
		Severity:    SeverityHigh,
		Description: "Gas reading above threshold near work front",
		Location:    "Unit 300",
	}
}

func TestStopWorkInterlockRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := activePermit(t, svc)

	// 创建挂接 ACTIVE 许可证的停工令：许可证被强制挂起
	swa, err := svc.CreateStopWork(ctx, validStopWorkParams(&p.ID), "user-reporter")
	require.NoError(t, err)
	require.Equal(t, StopWorkOpen, swa.Status)
	require.Equal(t, fmt.Sprintf("SWA-%d-0001", time.Now().UTC().Year()), swa.Code)
	require.Equal(t, "user-reporter", swa.ReportedBy)

	loaded, err := svc.GetPermit(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuspended, loaded.Status)

	// 解决：停工令 RESOLVED，许可证仍然 SUSPENDED
	resolved, err := svc.ResolveStopWork(ctx, swa.ID, ResolveStopWorkParams{
		ResolutionNotes:   "Leak isolated and line purged",
		CorrectiveActions: []string{"replace gasket", "retrain crew on gas testing"},
		LessonsLearned:    "verify isolation before each shift",
	}, "user-resolver")
	require.NoError(t, err)
	require.Equal(t, StopWorkResolved, resolved.Status)
	require.Equal(t, "user-resolver", resolved.ResolvedBy)
	require.NotNil(t, resolved.ResolvedAt)
	require.Len(t, resolved.CorrectiveActions, 2)

	loaded, err = svc.GetPermit(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuspended, loaded.Status)

	// 复工：停工令 CLOSED，许可证恢复 ACTIVE
	closed, err := svc.ResumeWork(ctx, swa.ID, "user-resumer")
	require.NoError(t, err)
	require.Equal(t, StopWorkClosed, closed.Status)
	require.Equal(t, "user-resumer", closed.WorkResumedBy)
	require.NotNil(t, closed.WorkResumedAt)

	loaded, err = svc.GetPermit(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, loaded.Status)
}

func TestResumeWorkRequiresResolution(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := activePermit(t, svc)

	swa, err := svc.CreateStopWork(ctx, validStopWorkParams(&p.ID), "user-reporter")
	require.NoError(t, err)

	// 未解决不得复工
	_, err = svc.ResumeWork(ctx, swa.ID, "user-resumer")
	require.True(t, IsInvalidState(err))

	loaded, err := svc.GetPermit(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuspended, loaded.Status)
}

func TestStopWorkOnNonActivePermitLeavesItAlone(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePermit(ctx, validCreateParams())
	require.NoError(t, err)
	_, err = svc.Submit(ctx, p.ID, "u")
	require.NoError(t, err)
	approved, err := svc.Approve(ctx, p.ID, "user-approver")
	require.NoError(t, err)

	swa, err := svc.CreateStopWork(ctx, validStopWorkParams(&p.ID), "user-reporter")
	require.NoError(t, err)
	require.Equal(t, StopWorkOpen, swa.Status)

	loaded, err := svc.GetPermit(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, approved.Status, loaded.Status)
}

func TestAreaWideStopWorkHasNoPermitSideEffect(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := activePermit(t, svc)

	swa, err := svc.CreateStopWork(ctx, validStopWorkParams(nil), "user-reporter")
	require.NoError(t, err)
	require.Nil(t, swa.PermitID)

	loaded, err := svc.GetPermit(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, loaded.Status)
}

func TestCancelledWhileSuspendedStaysCancelled(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := activePermit(t, svc)

	swa, err := svc.CreateStopWork(ctx, validStopWorkParams(&p.ID), "user-reporter")
	require.NoError(t, err)

	// 挂起期间许可证被单独取消
	_, err = svc.Cancel(ctx, p.ID, "job descoped", "user-admin")
	require.NoError(t, err)

	_, err = svc.ResolveStopWork(ctx, swa.ID, ResolveStopWorkParams{ResolutionNotes: "area cleared"}, "user-resolver")
	require.NoError(t, err)
	closed, err := svc.ResumeWork(ctx, swa.ID, "user-resumer")
	require.NoError(t, err)
	require.Equal(t, StopWorkClosed, closed.Status)

	// 复工不能复活已取消的许可证
	loaded, err := svc.GetPermit(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, loaded.Status)
}

func TestMultipleStopWorksOnOnePermit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := activePermit(t, svc)

	first, err := svc.CreateStopWork(ctx, validStopWorkParams(&p.ID), "user-reporter")
	require.NoError(t, err)

	// 第二份停工令挂接已 SUSPENDED 的许可证：只记录，不叠加联锁
	second := validStopWorkParams(&p.ID)
	second.Reason = "DROPPED_OBJECT"
	secondSWA, err := svc.CreateStopWork(ctx, second, "user-reporter-2")
	require.NoError(t, err)

	loaded, err := svc.GetPermit(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSuspended, loaded.Status)

	// 第一份复工即恢复许可证
	_, err = svc.ResolveStopWork(ctx, first.ID, ResolveStopWorkParams{ResolutionNotes: "gas cleared"}, "user-resolver")
	require.NoError(t, err)
	_, err = svc.ResumeWork(ctx, first.ID, "user-resumer")
	require.NoError(t, err)

	loaded, err = svc.GetPermit(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, loaded.Status)

	// 第二份随后关闭：许可证已经 ACTIVE，不再被触碰
	_, err = svc.ResolveStopWork(ctx, secondSWA.ID, ResolveStopWorkParams{ResolutionNotes: "area cleaned"}, "user-resolver")
	require.NoError(t, err)
	closed, err := svc.ResumeWork(ctx, secondSWA.ID, "user-resumer")
	require.NoError(t, err)
	require.Equal(t, StopWorkClosed, closed.Status)

	loaded, err = svc.GetPermit(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, loaded.Status)
}

func TestInvestigationSubState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	swa, err := svc.CreateStopWork(ctx, validStopWorkParams(nil), "user-reporter")
	require.NoError(t, err)

	investigating, err := svc.StartInvestigation(ctx, swa.ID, "user-investigator")
	require.NoError(t, err)
	require.Equal(t, StopWorkInvestigating, investigating.Status)

	// INVESTIGATING 仍可解决
	resolved, err := svc.ResolveStopWork(ctx, swa.ID, ResolveStopWorkParams{ResolutionNotes: "done"}, "user-resolver")
	require.NoError(t, err)
	require.Equal(t, StopWorkResolved, resolved.Status)

	// 已解决后不可再开始调查
	_, err = svc.StartInvestigation(ctx, swa.ID, "user-investigator")
	require.True(t, IsInvalidState(err))
}

func TestStopWorkTerminalIsImmutable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	swa, err := svc.CreateStopWork(ctx, validStopWorkParams(nil), "user-reporter")
	require.NoError(t, err)
	_, err = svc.ResolveStopWork(ctx, swa.ID, ResolveStopWorkParams{ResolutionNotes: "done"}, "user-resolver")
	require.NoError(t, err)
	_, err = svc.ResumeWork(ctx, swa.ID, "user-resumer")
	require.NoError(t, err)

	_, err = svc.ResolveStopWork(ctx, swa.ID, ResolveStopWorkParams{ResolutionNotes: "again"}, "user-resolver")
	require.True(t, IsInvalidState(err))
	_, err = svc.ResumeWork(ctx, swa.ID, "user-resumer")
	require.True(t, IsInvalidState(err))
}

func TestCreateStopWorkValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	params := validStopWorkParams(nil)
	params.Reason = ""
	_, err := svc.CreateStopWork(ctx, params, "user-reporter")
	require.True(t, IsValidation(err))

	params = validStopWorkParams(nil)
	params.Severity = "EXTREME"
	_, err = svc.CreateStopWork(ctx, params, "user-reporter")
	require.True(t, IsValidation(err))

	params = validStopWorkParams(nil)
	params.Description = ""
	_, err = svc.CreateStopWork(ctx, params, "user-reporter")
	require.True(t, IsValidation(err))

	_, err = svc.CreateStopWork(ctx, validStopWorkParams(nil), "")
	require.True(t, IsValidation(err))

	// 挂接不存在的许可证
	missing := "missing-permit"
	_, err = svc.CreateStopWork(ctx, validStopWorkParams(&missing), "user-reporter")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInterlockEventsPublished(t *testing.T) {
	db := openTestDB(t)
	bus := NewEventBus(nil)
	svc := NewService(db, WithEventBus(bus))
	ctx := context.Background()

	p := activePermit(t, svc)

	events, cancel := bus.Subscribe(p.ID)
	defer cancel()

	swa, err := svc.CreateStopWork(ctx, validStopWorkParams(&p.ID), "user-reporter")
	require.NoError(t, err)

	select {
	case evt := <-events:
		require.Equal(t, EventSuspended, evt.Kind)
		require.Equal(t, StatusSuspended, evt.Status)
		require.Equal(t, swa.ID, evt.StopWorkID)
	case <-time.After(time.Second):
		t.Fatal("did not receive suspension event")
	}

	_, err = svc.ResolveStopWork(ctx, swa.ID, ResolveStopWorkParams{ResolutionNotes: "ok"}, "user-resolver")
	require.NoError(t, err)
	_, err = svc.ResumeWork(ctx, swa.ID, "user-resumer")
	require.NoError(t, err)

	select {
	case evt := <-events:
		require.Equal(t, EventResumed, evt.Kind)
		require.Equal(t, StatusActive, evt.Status)
	case <-time.After(time.Second):
		t.Fatal("did not receive resumption event")
	}
}

func TestListStopWorkFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := activePermit(t, svc)

	_, err := svc.CreateStopWork(ctx, validStopWorkParams(&p.ID), "user-reporter")
	require.NoError(t, err)
	low := validStopWorkParams(nil)
	low.Severity = SeverityLow
	_, err = svc.CreateStopWork(ctx, low, "user-reporter")
	require.NoError(t, err)

	records, total, err := svc.ListStopWork(ctx, ListStopWorkParams{Severity: string(SeverityHigh)})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, records, 1)

	records, total, err = svc.ListStopWork(ctx, ListStopWorkParams{PermitID: p.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.NotNil(t, records[0].PermitID)
}
