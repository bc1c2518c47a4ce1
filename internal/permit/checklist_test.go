package permit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func preWorkChecklist(t *testing.T, svc *Service, permitID string) *Checklist {
	t.Helper()
	p, err := svc.GetPermit(context.Background(), permitID)
	require.NoError(t, err)
	for i := range p.Checklists {
		if p.Checklists[i].Type == ChecklistPreWork {
			return &p.Checklists[i]
		}
	}
	t.Fatal("no pre-work checklist")
	return nil
}

func TestUpdateChecklistRecomputesAllPassed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePermit(ctx, validCreateParams())
	require.NoError(t, err)
	cl := preWorkChecklist(t, svc, p.ID)

	// 只勾选第一项：未全部通过，完成信息为空
	updated, err := svc.UpdateChecklist(ctx, cl.ID, map[string]bool{cl.Items[0].ID: true}, "user-a")
	require.NoError(t, err)
	require.False(t, updated.AllPassed)
	require.Empty(t, updated.CompletedBy)
	require.Nil(t, updated.CompletedAt)
	require.True(t, updated.Items[0].Checked)

	// 勾选全部：AllPassed 为真并记录完成人
	checks := map[string]bool{}
	for _, item := range updated.Items {
		checks[item.ID] = true
	}
	updated, err = svc.UpdateChecklist(ctx, cl.ID, checks, "user-b")
	require.NoError(t, err)
	require.True(t, updated.AllPassed)
	require.Equal(t, "user-b", updated.CompletedBy)
	require.NotNil(t, updated.CompletedAt)

	// 取消一项：AllPassed 回到假并清空完成信息
	updated, err = svc.UpdateChecklist(ctx, cl.ID, map[string]bool{cl.Items[0].ID: false}, "user-c")
	require.NoError(t, err)
	require.False(t, updated.AllPassed)
	require.Empty(t, updated.CompletedBy)
	require.Nil(t, updated.CompletedAt)
}

func TestUpdateChecklistIdempotentWhenFullyChecked(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePermit(ctx, validCreateParams())
	require.NoError(t, err)
	cl := preWorkChecklist(t, svc, p.ID)

	checks := map[string]bool{}
	for _, item := range cl.Items {
		checks[item.ID] = true
	}

	first, err := svc.UpdateChecklist(ctx, cl.ID, checks, "user-a")
	require.NoError(t, err)
	require.True(t, first.AllPassed)
	require.Equal(t, "user-a", first.CompletedBy)

	// 重复提交不报错，完成人更新为最近一次操作者
	second, err := svc.UpdateChecklist(ctx, cl.ID, checks, "user-b")
	require.NoError(t, err)
	require.True(t, second.AllPassed)
	require.Equal(t, "user-b", second.CompletedBy)
}

func TestUpdateChecklistPreservesItemIdentity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePermit(ctx, validCreateParams())
	require.NoError(t, err)
	cl := preWorkChecklist(t, svc, p.ID)

	updated, err := svc.UpdateChecklist(ctx, cl.ID, map[string]bool{cl.Items[0].ID: true}, "user-a")
	require.NoError(t, err)
	require.Len(t, updated.Items, len(cl.Items))
	for i := range cl.Items {
		require.Equal(t, cl.Items[i].ID, updated.Items[i].ID)
		require.Equal(t, cl.Items[i].Description, updated.Items[i].Description)
	}
}

func TestUpdateChecklistRejectsUnknownItem(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePermit(ctx, validCreateParams())
	require.NoError(t, err)
	cl := preWorkChecklist(t, svc, p.ID)

	_, err = svc.UpdateChecklist(ctx, cl.ID, map[string]bool{"no-such-item": true}, "user-a")
	require.True(t, IsValidation(err))
}

func TestUpdateChecklistNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UpdateChecklist(context.Background(), "missing", map[string]bool{}, "user-a")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIsSatisfied(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	p, err := svc.CreatePermit(ctx, validCreateParams())
	require.NoError(t, err)

	ok, err := svc.IsSatisfied(ctx, p.ID, ChecklistPreWork)
	require.NoError(t, err)
	require.False(t, ok)

	completeChecklist(t, svc, p.ID, ChecklistPreWork, "user-a")
	ok, err = svc.IsSatisfied(ctx, p.ID, ChecklistPreWork)
	require.NoError(t, err)
	require.True(t, ok)

	// 清单不存在视为无需把关
	ok, err = svc.IsSatisfied(ctx, "permit-without-checklists", ChecklistPreWork)
	require.NoError(t, err)
	require.True(t, ok)
}
