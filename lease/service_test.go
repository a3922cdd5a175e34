package lease

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"slot-bot/lease/mock"
	"slot-bot/model"
)

// memStore keeps the collection in memory and can be told to fail.
type memStore struct {
	mu      sync.Mutex
	slots   model.Slots
	saves   int
	loadErr error
	saveErr error
}

func newMemStore(recs ...model.SlotRecord) *memStore {
	s := &memStore{slots: model.Slots{}}
	for _, rec := range recs {
		s.slots[rec.ID] = rec
	}
	return s
}

func (s *memStore) Load(context.Context) (model.Slots, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.slots.Clone(), nil
}

func (s *memStore) Save(_ context.Context, slots model.Slots) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.slots = slots.Clone()
	return nil
}

func (s *memStore) get(id string) (model.SlotRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.slots[id]
	return rec, ok
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T, store Store) (*Service, *mock.MockGateway, *clock) {
	t.Helper()
	gw := mock.NewMockGateway(gomock.NewController(t))
	c := &clock{now: t0}
	svc := NewService(store, gw,
		WithClock(c.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return svc, gw, c
}

func TestServiceCreate(t *testing.T) {
	store := newMemStore()
	svc, gw, _ := newTestService(t, store)
	ctx := context.Background()

	gw.EXPECT().CreateResource(gomock.Any(), "U1").Return("100", nil)
	gw.EXPECT().GrantRole(gomock.Any(), "U1").Return(nil)
	gw.EXPECT().Notify(gomock.Any(), "100", gomock.Any()).Return(nil)

	res, err := svc.Create(ctx, "U1", 7)
	require.NoError(t, err)
	assert.Equal(t, "100", res.Record.ID)
	assert.Equal(t, t0.Add(7*24*time.Hour), res.Record.ExpiresAt)

	stored, ok := store.get("100")
	require.True(t, ok)
	assert.Equal(t, 0, stored.WarningCount)
	assert.False(t, stored.Paused)
}

func TestServiceCreateRejectsBadDurationWithoutChannel(t *testing.T) {
	svc, _, _ := newTestService(t, newMemStore())

	_, err := svc.Create(context.Background(), "U1", 0)
	assert.ErrorIs(t, err, ErrInvalidPrecondition)
}

func TestServiceCreateRemovesChannelWhenSaveFails(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	svc, gw, _ := newTestService(t, store)

	gw.EXPECT().CreateResource(gomock.Any(), "U1").Return("100", nil)
	gw.EXPECT().DeleteResource(gomock.Any(), "100").Return(nil)

	_, err := svc.Create(context.Background(), "U1", 7)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, ReasonPersistence, Reason(err))
}

func TestServiceGatewayFailureKeepsState(t *testing.T) {
	store := newMemStore()
	svc, gw, _ := newTestService(t, store)

	gw.EXPECT().CreateResource(gomock.Any(), "U1").Return("100", nil)
	gw.EXPECT().GrantRole(gomock.Any(), "U1").Return(ErrPermissionDenied)
	gw.EXPECT().Notify(gomock.Any(), "100", gomock.Any()).Return(nil)

	_, err := svc.Create(context.Background(), "U1", 7)
	assert.ErrorIs(t, err, ErrGateway)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, ok := store.get("100")
	assert.True(t, ok)
}

func TestServiceWarnDeletesOnThird(t *testing.T) {
	store := newMemStore(model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(72 * time.Hour)})
	svc, gw, _ := newTestService(t, store)
	ctx := context.Background()

	gw.EXPECT().Notify(gomock.Any(), "100", gomock.Any()).Return(nil).Times(3)
	gw.EXPECT().RevokeRole(gomock.Any(), "U1").Return(nil)
	gw.EXPECT().DeleteResource(gomock.Any(), "100").Return(nil)

	for i := 1; i <= 2; i++ {
		res, err := svc.Warn(ctx, "100", "A1")
		require.NoError(t, err)
		assert.False(t, res.Deleted)
		assert.Equal(t, i, res.Record.WarningCount)
	}

	res, err := svc.Warn(ctx, "100", "A1")
	require.NoError(t, err)
	assert.True(t, res.Deleted)

	_, ok := store.get("100")
	assert.False(t, ok)

	_, err = svc.Warn(ctx, "100", "A1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServicePauseTwice(t *testing.T) {
	store := newMemStore(model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(72 * time.Hour)})
	svc, gw, _ := newTestService(t, store)
	ctx := context.Background()

	gw.EXPECT().RestrictWrites(gomock.Any(), "100").Return(nil)
	gw.EXPECT().Notify(gomock.Any(), "100", gomock.Any()).Return(nil)

	_, err := svc.Pause(ctx, "100")
	require.NoError(t, err)

	_, err = svc.Pause(ctx, "100")
	assert.ErrorIs(t, err, ErrInvalidPrecondition)
	assert.Equal(t, ReasonInvalidPrecondition, Reason(err))
	assert.Equal(t, 1, store.saves)
}

func TestServiceExtendAndResume(t *testing.T) {
	store := newMemStore(model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(time.Hour), Warned: true, Paused: true})
	svc, gw, _ := newTestService(t, store)
	ctx := context.Background()

	gw.EXPECT().Notify(gomock.Any(), "100", gomock.Any()).Return(nil).Times(2)
	gw.EXPECT().RestoreWrites(gomock.Any(), "100").Return(nil)

	res, err := svc.Extend(ctx, "100", 2)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(49*time.Hour), res.Record.ExpiresAt)
	assert.False(t, res.Record.Warned)

	res, err = svc.Resume(ctx, "100")
	require.NoError(t, err)
	assert.False(t, res.Record.Paused)

	_, err = svc.Extend(ctx, "missing", 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceDelete(t *testing.T) {
	store := newMemStore(model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(time.Hour)})
	svc, gw, _ := newTestService(t, store)

	gw.EXPECT().RevokeRole(gomock.Any(), "U1").Return(ErrPermissionDenied)
	gw.EXPECT().DeleteResource(gomock.Any(), "100").Return(nil)

	res, err := svc.Delete(context.Background(), "100")
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, ReasonPermissionDenied, Reason(err))
	assert.True(t, res.Deleted)

	_, ok := store.get("100")
	assert.False(t, ok)
}

func TestServiceDeleteKeepsRoleForOwnersOtherSlot(t *testing.T) {
	store := newMemStore(
		model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(time.Hour)},
		model.SlotRecord{ID: "200", Owner: "U1", ExpiresAt: t0.Add(48 * time.Hour)},
	)
	svc, gw, _ := newTestService(t, store)
	ctx := context.Background()

	gw.EXPECT().DeleteResource(gomock.Any(), "100").Return(nil)

	res, err := svc.Delete(ctx, "100")
	require.NoError(t, err)
	assert.True(t, res.Deleted)

	// last slot of the owner
	gw.EXPECT().RevokeRole(gomock.Any(), "U1").Return(nil)
	gw.EXPECT().DeleteResource(gomock.Any(), "200").Return(nil)

	_, err = svc.Delete(ctx, "200")
	require.NoError(t, err)
}

func TestKeepSharedRole(t *testing.T) {
	slots := model.Slots{"200": {ID: "200", Owner: "U1"}}
	actions := []model.Action{
		{Kind: model.ActionRevokeRole, UserID: "U1"},
		{Kind: model.ActionRevokeRole, UserID: "U2"},
		{Kind: model.ActionDeleteResource, ResourceID: "100"},
	}

	kept := keepSharedRole(slots, actions)
	assert.Equal(t, []model.Action{
		{Kind: model.ActionRevokeRole, UserID: "U2"},
		{Kind: model.ActionDeleteResource, ResourceID: "100"},
	}, kept)
	assert.Equal(t, "U1", actions[0].UserID, "input is left untouched")
}

func TestServiceBroadcastRateLimit(t *testing.T) {
	store := newMemStore(model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(72 * time.Hour)})
	svc, gw, c := newTestService(t, store)
	ctx := context.Background()

	gw.EXPECT().Notify(gomock.Any(), "100", gomock.Any()).Return(nil).Times(2)

	_, err := svc.Broadcast(ctx, "100", model.AudienceEveryone)
	require.NoError(t, err)

	c.Advance(12 * time.Hour)
	_, err = svc.Broadcast(ctx, "100", model.AudienceEveryone)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, ReasonRateLimited, Reason(err))

	c.Advance(13 * time.Hour)
	_, err = svc.Broadcast(ctx, "100", model.AudienceHere)
	require.NoError(t, err)

	stored, _ := store.get("100")
	require.NotNil(t, stored.LastBroadcastAt)
	assert.Equal(t, t0.Add(25*time.Hour), *stored.LastBroadcastAt)
}

func TestServiceBroadcastReleasesWindowOnFailure(t *testing.T) {
	store := newMemStore(model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(72 * time.Hour)})
	svc, gw, _ := newTestService(t, store)

	gw.EXPECT().Notify(gomock.Any(), "100", gomock.Any()).Return(errors.New("missing access"))

	_, err := svc.Broadcast(context.Background(), "100", model.AudienceHere)
	assert.ErrorIs(t, err, ErrGateway)

	stored, _ := store.get("100")
	assert.Nil(t, stored.LastBroadcastAt)
}

func TestServiceDetailsAndList(t *testing.T) {
	store := newMemStore(
		model.SlotRecord{ID: "200", Owner: "U2", ExpiresAt: t0.Add(48 * time.Hour)},
		model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(2 * time.Hour)},
	)
	svc, _, _ := newTestService(t, store)
	ctx := context.Background()

	rec, err := svc.Details(ctx, "200")
	require.NoError(t, err)
	assert.Equal(t, "U2", rec.Owner)

	_, err = svc.Details(ctx, "300")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "100", all[0].ID)

	soon, err := svc.ExpiringWithin(ctx, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, "100", soon[0].ID)
}

func TestServiceLoadFailure(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("unreadable")
	svc, _, _ := newTestService(t, store)

	_, err := svc.Pause(context.Background(), "100")
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestServiceAlert(t *testing.T) {
	store := newMemStore(model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(72 * time.Hour)})
	svc, gw, _ := newTestService(t, store)

	gw.EXPECT().Notify(gomock.Any(), "100", gomock.Any()).DoAndReturn(
		func(_ context.Context, _ string, n model.Notice) error {
			assert.Equal(t, model.MessageScamAlert, n.Kind)
			assert.Equal(t, "A1", n.IssuedBy)
			return nil
		})

	require.NoError(t, svc.Alert(context.Background(), "100", "A1"))
	assert.ErrorIs(t, svc.Alert(context.Background(), "300", "A1"), ErrNotFound)
}

func TestServiceSerializesMutations(t *testing.T) {
	store := newMemStore(model.SlotRecord{ID: "100", Owner: "U1", ExpiresAt: t0.Add(72 * time.Hour)})
	svc, gw, _ := newTestService(t, store)
	ctx := context.Background()

	gw.EXPECT().Notify(gomock.Any(), "100", gomock.Any()).Return(nil).AnyTimes()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Extend(ctx, "100", 1)
		}()
	}
	wg.Wait()

	stored, _ := store.get("100")
	assert.Equal(t, t0.Add(72*time.Hour+20*24*time.Hour), stored.ExpiresAt)
}
