package permit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRequestExtensionRequiresLiveWindow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePermit(ctx, validCreateParams())
	require.NoError(t, err)

	// DRAFT 不可申请延期
	_, err = svc.RequestExtension(ctx, RequestExtensionParams{
		PermitID:    p.ID,
		NewEnd:      p.EndDatetime.Add(24 * time.Hour),
		Reason:      "scope grew",
		RequestedBy: "user-a",
	})
	require.True(t, IsInvalidState(err))

	_, err = svc.Submit(ctx, p.ID, "u")
	require.NoError(t, err)
	approved, err := svc.Approve(ctx, p.ID, "user-approver")
	require.NoError(t, err)

	ext, err := svc.RequestExtension(ctx, RequestExtensionParams{
		PermitID:    p.ID,
		NewEnd:      approved.EndDatetime.Add(24 * time.Hour),
		Reason:      "scope grew",
		RequestedBy: "user-a",
	})
	require.NoError(t, err)
	require.Equal(t, ExtensionPending, ext.Status)
	// 申请时快照当前结束时间
	require.True(t, ext.OriginalEnd.Equal(approved.EndDatetime))
}

func TestRequestExtensionValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := activePermit(t, svc)

	_, err := svc.RequestExtension(ctx, RequestExtensionParams{
		PermitID:    p.ID,
		NewEnd:      p.EndDatetime.Add(time.Hour),
		Reason:      "  ",
		RequestedBy: "user-a",
	})
	require.True(t, IsValidation(err))

	// 新结束时间必须晚于当前结束时间
	_, err = svc.RequestExtension(ctx, RequestExtensionParams{
		PermitID:    p.ID,
		NewEnd:      p.EndDatetime.Add(-time.Hour),
		Reason:      "going backwards",
		RequestedBy: "user-a",
	})
	require.True(t, IsValidation(err))
}

func TestApproveExtensionMovesPermitEnd(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := activePermit(t, svc)

	newEnd := p.EndDatetime.Add(7 * 24 * time.Hour)
	ext, err := svc.RequestExtension(ctx, RequestExtensionParams{
		PermitID:    p.ID,
		NewEnd:      newEnd,
		Reason:      "weather delay",
		RequestedBy: "user-a",
	})
	require.NoError(t, err)

	approved, err := svc.ApproveExtension(ctx, ext.ID, "user-approver")
	require.NoError(t, err)
	require.Equal(t, ExtensionApproved, approved.Status)
	require.Equal(t, "user-approver", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	// 许可证结束时间更新为申请值，状态不变
	loaded, err := svc.GetPermit(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, loaded.EndDatetime.Equal(newEnd))
	require.Equal(t, StatusActive, loaded.Status)
}

func TestExtensionDecisionIsOneWay(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := activePermit(t, svc)

	ext, err := svc.RequestExtension(ctx, RequestExtensionParams{
		PermitID:    p.ID,
		NewEnd:      p.EndDatetime.Add(time.Hour),
		Reason:      "small overrun",
		RequestedBy: "user-a",
	})
	require.NoError(t, err)

	_, err = svc.ApproveExtension(ctx, ext.ID, "user-approver")
	require.NoError(t, err)

	_, err = svc.ApproveExtension(ctx, ext.ID, "user-approver")
	require.True(t, IsInvalidState(err))
	_, err = svc.RejectExtension(ctx, ext.ID, "too late", "user-approver")
	require.True(t, IsInvalidState(err))
}

func TestRejectExtensionLeavesPermitUntouched(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := activePermit(t, svc)

	ext, err := svc.RequestExtension(ctx, RequestExtensionParams{
		PermitID:    p.ID,
		NewEnd:      p.EndDatetime.Add(time.Hour),
		Reason:      "maybe",
		RequestedBy: "user-a",
	})
	require.NoError(t, err)

	_, err = svc.RejectExtension(ctx, ext.ID, "", "user-approver")
	require.True(t, IsValidation(err))

	rejected, err := svc.RejectExtension(ctx, ext.ID, "not justified", "user-approver")
	require.NoError(t, err)
	require.Equal(t, ExtensionRejected, rejected.Status)
	require.Equal(t, "not justified", rejected.RejectionReason)

	loaded, err := svc.GetPermit(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, loaded.EndDatetime.Equal(p.EndDatetime))
}

func TestSiblingPendingExtensionsStayPending(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := activePermit(t, svc)

	first, err := svc.RequestExtension(ctx, RequestExtensionParams{
		PermitID:    p.ID,
		NewEnd:      p.EndDatetime.Add(24 * time.Hour),
		Reason:      "proposal one",
		RequestedBy: "user-a",
	})
	require.NoError(t, err)
	second, err := svc.RequestExtension(ctx, RequestExtensionParams{
		PermitID:    p.ID,
		NewEnd:      p.EndDatetime.Add(48 * time.Hour),
		Reason:      "proposal two",
		RequestedBy: "user-b",
	})
	require.NoError(t, err)

	_, err = svc.ApproveExtension(ctx, first.ID, "user-approver")
	require.NoError(t, err)

	// 批准一个不会自动否决其余 PENDING 申请
	sibling, err := svc.GetExtension(ctx, second.ID)
	require.NoError(t, err)
	require.Equal(t, ExtensionPending, sibling.Status)

	exts, err := svc.ListExtensions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, exts, 2)
}
