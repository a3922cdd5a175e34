package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"slot-bot/model"
)

func TestSweepWarnsOnce(t *testing.T) {
	store := newMemStore(model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(23 * time.Hour)})
	svc, gw, c := newTestService(t, store)
	ctx := context.Background()

	gw.EXPECT().ResourceExists(gomock.Any(), "100").Return(true, nil).Times(2)
	gw.EXPECT().Notify(gomock.Any(), "100", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, n model.Notice) error {
			assert.Equal(t, model.MessageExpiryWarning, n.Kind)
			return nil
		}).Times(1)

	report, err := svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Warned)
	assert.NotEmpty(t, report.RunID)

	stored, _ := store.get("100")
	assert.True(t, stored.Warned)

	c.Advance(time.Hour)
	report, err = svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Warned)
}

func TestSweepExpiresAndContinuesPastFailures(t *testing.T) {
	store := newMemStore(
		model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(-time.Minute), Warned: true},
		model.SlotRecord{ID: "200", Owner: "U2", ExpiresAt: t0.Add(-time.Hour), Warned: true},
		model.SlotRecord{ID: "300", Owner: "U3", ExpiresAt: t0.Add(10 * 24 * time.Hour)},
	)
	svc, gw, _ := newTestService(t, store)

	gw.EXPECT().ResourceExists(gomock.Any(), gomock.Any()).Return(true, nil).Times(3)
	gw.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	gw.EXPECT().RevokeRole(gomock.Any(), "U1").Return(ErrPermissionDenied)
	gw.EXPECT().RevokeRole(gomock.Any(), "U2").Return(nil)
	gw.EXPECT().DeleteResource(gomock.Any(), "100").Return(nil)
	gw.EXPECT().DeleteResource(gomock.Any(), "200").Return(nil)

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Expired)
	assert.Equal(t, 1, report.Failures)

	_, ok := store.get("100")
	assert.False(t, ok, "lease ends even when cleanup fails")
	_, ok = store.get("200")
	assert.False(t, ok)
	_, ok = store.get("300")
	assert.True(t, ok)
	assert.Equal(t, 1, store.saves)
}

func TestSweepPurgesOrphans(t *testing.T) {
	store := newMemStore(
		model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(30 * 24 * time.Hour)},
		model.SlotRecord{ID: "200", Owner: "U2", ExpiresAt: t0.Add(30 * 24 * time.Hour)},
	)
	svc, gw, _ := newTestService(t, store)

	gw.EXPECT().ResourceExists(gomock.Any(), "100").Return(false, nil)
	gw.EXPECT().ResourceExists(gomock.Any(), "200").Return(false, errors.New("timeout"))
	gw.EXPECT().RevokeRole(gomock.Any(), "U1").Return(nil)

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Orphaned)

	_, ok := store.get("100")
	assert.False(t, ok)
	_, ok = store.get("200")
	assert.True(t, ok, "a failed lookup must not purge the slot")
}

func TestSweepExpiryKeepsRoleWhileOwnerHasAnotherSlot(t *testing.T) {
	store := newMemStore(
		model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(-time.Minute), Warned: true},
		model.SlotRecord{ID: "200", Owner: "U1", ExpiresAt: t0.Add(10 * 24 * time.Hour)},
		model.SlotRecord{ID: "300", Owner: "U2", ExpiresAt: t0.Add(-time.Minute), Warned: true},
	)
	svc, gw, _ := newTestService(t, store)

	gw.EXPECT().ResourceExists(gomock.Any(), gomock.Any()).Return(true, nil).Times(3)
	gw.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	gw.EXPECT().DeleteResource(gomock.Any(), "100").Return(nil)
	gw.EXPECT().RevokeRole(gomock.Any(), "U2").Return(nil)
	gw.EXPECT().DeleteResource(gomock.Any(), "300").Return(nil)

	report, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Expired)
	assert.Zero(t, report.Failures)

	_, ok := store.get("200")
	assert.True(t, ok)
}

func TestSweepNothingToDoSkipsSave(t *testing.T) {
	store := newMemStore(model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(72 * time.Hour)})
	svc, gw, _ := newTestService(t, store)

	gw.EXPECT().ResourceExists(gomock.Any(), "100").Return(true, nil)

	_, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, store.saves)
}

func TestSweepPersistenceFailure(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("unreadable")
	svc, _, _ := newTestService(t, store)

	_, err := svc.Sweep(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
}
