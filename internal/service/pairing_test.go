package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openclaw/tether-go/internal/errors"
	"github.com/openclaw/tether-go/internal/model"
	"github.com/openclaw/tether-go/internal/storage"
	"github.com/openclaw/tether-go/internal/util"
)

const (
	testCodeKey         = "code_user_123"
	testRelationshipKey = "relationship_user_123"
)

var testUser = model.User{ID: "user_123", Name: "Alex Chen"}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// faultyStore is a MemoryStore whose writes can be made to fail.
type faultyStore struct {
	*storage.MemoryStore

	mu        sync.Mutex
	putErr    error
	removeErr error
	puts      int
	removes   int
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: storage.NewMemoryStore()}
}

func (s *faultyStore) Put(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.puts++
	err := s.putErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.Put(ctx, key, value)
}

func (s *faultyStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	s.removes++
	err := s.removeErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.Remove(ctx, key)
}

func (s *faultyStore) failPuts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

func (s *faultyStore) failRemoves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeErr = err
}

func (s *faultyStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts + s.removes
}

func (s *faultyStore) has(t *testing.T, key string) bool {
	t.Helper()
	_, found, err := s.MemoryStore.Get(context.Background(), key)
	require.NoError(t, err)
	return found
}

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Reserve(ctx context.Context, code *model.PairingCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *mockRemote) Redeem(ctx context.Context, code string) (*model.Relationship, error) {
	args := m.Called(ctx, code)
	rel, _ := args.Get(0).(*model.Relationship)
	return rel, args.Error(1)
}

// gateRemote blocks every call until release is closed.
type gateRemote struct {
	release chan struct{}
	now     func() time.Time
}

func (g *gateRemote) Reserve(ctx context.Context, code *model.PairingCode) error {
	<-g.release
	return nil
}

func (g *gateRemote) Redeem(ctx context.Context, code string) (*model.Relationship, error) {
	<-g.release
	return &model.Relationship{PartnerID: "demo_user_1", PartnerName: "Jordan Smith", StartDate: g.now()}, nil
}

type testHarness struct {
	manager  *PairingManager
	store    *faultyStore
	clock    *fakeClock
	notifier *RecordingNotifier
}

func newHarness(t *testing.T, remote PairingRemote, store *faultyStore) *testHarness {
	t.Helper()
	if store == nil {
		store = newFaultyStore()
	}
	clock := newFakeClock()
	if remote == nil {
		remote = NewSimulatedRemote(0, 0, clock.Now)
	}
	notifier := &RecordingNotifier{}

	m, err := NewPairingManager(ManagerDeps{
		User:         testUser,
		Store:        storage.New(store),
		Remote:       remote,
		Notifier:     notifier,
		Clock:        clock.Now,
		CodeTTL:      60 * time.Second,
		TickInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, m.Initialize(context.Background()))

	return &testHarness{manager: m, store: store, clock: clock, notifier: notifier}
}

func (h *testHarness) pair(t *testing.T) *model.Relationship {
	t.Helper()
	rel, err := h.manager.RedeemCode(context.Background(), "ABCD1234")
	require.NoError(t, err)
	return rel
}

func TestNewPairingManager(t *testing.T) {
	adapter := storage.New(storage.NewMemoryStore())
	remote := NewSimulatedRemote(0, 0, nil)

	t.Run("requires store", func(t *testing.T) {
		_, err := NewPairingManager(ManagerDeps{User: testUser, Remote: remote})
		assert.Error(t, err)
	})

	t.Run("requires remote", func(t *testing.T) {
		_, err := NewPairingManager(ManagerDeps{User: testUser, Store: adapter})
		assert.Error(t, err)
	})

	t.Run("requires user id", func(t *testing.T) {
		_, err := NewPairingManager(ManagerDeps{Store: adapter, Remote: remote})
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		m, err := NewPairingManager(ManagerDeps{User: testUser, Store: adapter, Remote: remote})
		require.NoError(t, err)

		assert.Equal(t, DefaultCodeTTL, m.codeTTL)
		assert.Equal(t, testUser, m.CurrentUser())
		assert.Equal(t, testCodeKey, m.codeKey)
		assert.Equal(t, testRelationshipKey, m.relationshipKey)
		assert.Equal(t, model.PhaseIdle, m.State().Phase())
	})
}

func TestPairingManager_GenerateCode(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a fresh code", func(t *testing.T) {
		h := newHarness(t, nil, nil)

		code, err := h.manager.GenerateCode(ctx)
		require.NoError(t, err)

		assert.True(t, util.ValidateCode(code.Code))
		assert.Equal(t, h.clock.Now(), code.CreatedAt)
		assert.Equal(t, code.CreatedAt.Add(60*time.Second), code.ExpiresAt)
		assert.Equal(t, testUser.ID, code.OwnerID)
		assert.Equal(t, testUser.Name, code.OwnerName)

		state := h.manager.State()
		assert.Equal(t, model.PhaseCodeActive, state.Phase())
		require.NotNil(t, state.ActiveCode)
		assert.Equal(t, code.Code, state.ActiveCode.Code)
		assert.Equal(t, "1m 0s remaining", state.TimeRemaining)
		assert.False(t, state.Generating)

		assert.True(t, h.store.has(t, testCodeKey))
		last, ok := h.notifier.Last()
		require.True(t, ok)
		assert.Equal(t, noticeCodeGenerated, last)
	})

	t.Run("replaces the active code", func(t *testing.T) {
		h := newHarness(t, nil, nil)

		first, err := h.manager.GenerateCode(ctx)
		require.NoError(t, err)
		h.clock.Advance(10 * time.Second)
		second, err := h.manager.GenerateCode(ctx)
		require.NoError(t, err)

		assert.NotEqual(t, first.Code, second.Code)
		assert.Equal(t, second.Code, h.manager.State().ActiveCode.Code)

		var stored model.PairingCode
		found, err := storage.New(h.store).Get(ctx, testCodeKey, &stored)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, second.Code, stored.Code)
		assert.Equal(t, second.ExpiresAt, stored.ExpiresAt)
	})

	t.Run("rejects when paired", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		h.pair(t)

		_, err := h.manager.GenerateCode(ctx)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyPaired))
		assert.Equal(t, model.PhasePaired, h.manager.State().Phase())
		assert.False(t, h.store.has(t, testCodeKey))

		last, _ := h.notifier.Last()
		assert.Equal(t, noticeAlreadyPaired, last)
	})

	t.Run("persistence failure clears the code", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		_, err := h.manager.GenerateCode(ctx)
		require.NoError(t, err)

		h.store.failPuts(errors.New("disk full"))
		_, err = h.manager.GenerateCode(ctx)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorage))

		state := h.manager.State()
		assert.Equal(t, model.PhaseIdle, state.Phase())
		assert.False(t, state.Generating)
		assert.False(t, h.store.has(t, testCodeKey))

		last, _ := h.notifier.Last()
		assert.Equal(t, noticeGenerateFail, last)
	})

	t.Run("reserve failure leaves state unchanged", func(t *testing.T) {
		remote := &mockRemote{}
		remote.On("Reserve", mock.Anything, mock.Anything).Return(errors.New("backend down"))
		h := newHarness(t, remote, nil)

		_, err := h.manager.GenerateCode(ctx)
		assert.Error(t, err)
		assert.Equal(t, model.PhaseIdle, h.manager.State().Phase())
		assert.Zero(t, h.store.writes())
		remote.AssertExpectations(t)
	})
}

// advancingRemote moves the clock forward while it reserves.
type advancingRemote struct {
	clock *fakeClock
	delay time.Duration
}

func (r *advancingRemote) Reserve(ctx context.Context, code *model.PairingCode) error {
	r.clock.Advance(r.delay)
	return nil
}

func (r *advancingRemote) Redeem(ctx context.Context, code string) (*model.Relationship, error) {
	return nil, errors.New("not supported")
}

func TestPairingManager_GenerateCodeStartsTTLAfterReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("advancing clock", func(t *testing.T) {
		clock := newFakeClock()
		start := clock.Now()
		m, err := NewPairingManager(ManagerDeps{
			User:    testUser,
			Store:   storage.New(storage.NewMemoryStore()),
			Remote:  &advancingRemote{clock: clock, delay: time.Second},
			Clock:   clock.Now,
			CodeTTL: 60 * time.Second,
		})
		require.NoError(t, err)

		code, err := m.GenerateCode(ctx)
		require.NoError(t, err)

		assert.Equal(t, start.Add(time.Second), code.CreatedAt)
		assert.Equal(t, clock.Now().Add(60*time.Second), code.ExpiresAt)
		assert.Equal(t, "1m 0s remaining", m.State().TimeRemaining)
	})

	t.Run("real clock with delay", func(t *testing.T) {
		m, err := NewPairingManager(ManagerDeps{
			User:    testUser,
			Store:   storage.New(storage.NewMemoryStore()),
			Remote:  NewSimulatedRemote(20*time.Millisecond, 0, nil),
			CodeTTL: 60 * time.Second,
		})
		require.NoError(t, err)

		start := model.StoredTime(time.Now())
		code, err := m.GenerateCode(ctx)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, code.CreatedAt.Sub(start), 20*time.Millisecond)
		assert.Equal(t, 60*time.Second, code.ExpiresAt.Sub(code.CreatedAt))
	})
}

func TestPairingManager_PersistedStateMatchesMemory(t *testing.T) {
	ctx := context.Background()
	adapter := storage.New(storage.NewMemoryStore())
	deps := ManagerDeps{
		User:   testUser,
		Store:  adapter,
		Remote: NewSimulatedRemote(0, 0, time.Now),
		Clock:  time.Now,
	}
	m, err := NewPairingManager(deps)
	require.NoError(t, err)

	code, err := m.GenerateCode(ctx)
	require.NoError(t, err)

	var storedCode model.PairingCode
	found, err := adapter.Get(ctx, testCodeKey, &storedCode)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, *code, storedCode)
	assert.Equal(t, *code, *m.State().ActiveCode)

	rel, err := m.RedeemCode(ctx, "ABCD1234")
	require.NoError(t, err)

	var storedRel model.Relationship
	found, err = adapter.Get(ctx, testRelationshipKey, &storedRel)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, *rel, storedRel)

	restarted, err := NewPairingManager(deps)
	require.NoError(t, err)
	require.NoError(t, restarted.Initialize(ctx))
	assert.Equal(t, m.State().Relationship, restarted.State().Relationship)
}

func TestPairingManager_RedeemCode(t *testing.T) {
	ctx := context.Background()

	t.Run("pairs from idle", func(t *testing.T) {
		h := newHarness(t, nil, nil)

		rel, err := h.manager.RedeemCode(ctx, "ABCD1234")
		require.NoError(t, err)

		assert.Equal(t, util.PartnerID(h.clock.Now()), rel.PartnerID)
		assert.Contains(t, util.DisplayNames(), rel.PartnerName)
		assert.Equal(t, h.clock.Now(), rel.StartDate)

		state := h.manager.State()
		assert.Equal(t, model.PhasePaired, state.Phase())
		assert.False(t, state.Connecting)
		assert.True(t, h.store.has(t, testRelationshipKey))

		last, _ := h.notifier.Last()
		assert.Equal(t, noticeConnected(rel.PartnerName), last)
	})

	t.Run("pairs from code active and drops the code", func(t *testing.T) {
		partner := &model.Relationship{PartnerID: "demo_user_42", PartnerName: "Sam Wilson", StartDate: newFakeClock().Now()}
		remote := &mockRemote{}
		remote.On("Reserve", mock.Anything, mock.Anything).Return(nil)
		remote.On("Redeem", mock.Anything, "XYZ98765").Return(partner, nil)
		h := newHarness(t, remote, nil)

		_, err := h.manager.GenerateCode(ctx)
		require.NoError(t, err)
		require.True(t, h.store.has(t, testCodeKey))

		rel, err := h.manager.RedeemCode(ctx, "XYZ98765")
		require.NoError(t, err)
		assert.Equal(t, partner, rel)

		state := h.manager.State()
		assert.Nil(t, state.ActiveCode)
		require.NotNil(t, state.Relationship)
		assert.Equal(t, "Sam Wilson", state.Relationship.PartnerName)
		assert.False(t, h.store.has(t, testCodeKey))
		assert.True(t, h.store.has(t, testRelationshipKey))
		remote.AssertExpectations(t)
	})

	t.Run("rejects malformed input before anything else", func(t *testing.T) {
		remote := &mockRemote{}
		h := newHarness(t, remote, nil)

		for _, input := range []string{"", "abc", "abcd1234", "ABCD-123", "ABCD12345"} {
			_, err := h.manager.RedeemCode(ctx, input)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidFormat), "input %q", input)
		}

		assert.Zero(t, h.store.writes())
		remote.AssertNotCalled(t, "Redeem", mock.Anything, mock.Anything)
		last, _ := h.notifier.Last()
		assert.Equal(t, noticeInvalidCode, last)
	})

	t.Run("format check precedes paired check", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		h.pair(t)

		_, err := h.manager.RedeemCode(ctx, "bad")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidFormat))

		_, err = h.manager.RedeemCode(ctx, "ZZZZ9999")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAlreadyPaired))
	})

	t.Run("sentinel code is unavailable", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		code, err := h.manager.GenerateCode(ctx)
		require.NoError(t, err)
		before := h.manager.State()
		writes := h.store.writes()

		_, err = h.manager.RedeemCode(ctx, UnavailableCode)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePartnerUnavailable))

		after := h.manager.State()
		assert.Equal(t, before, after)
		assert.Equal(t, code.Code, after.ActiveCode.Code)
		assert.Equal(t, writes, h.store.writes())

		last, _ := h.notifier.Last()
		assert.Equal(t, noticeUnavailable, last)
	})

	t.Run("relationship write failure leaves state unchanged", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		_, err := h.manager.GenerateCode(ctx)
		require.NoError(t, err)
		before := h.manager.State()

		h.store.failPuts(errors.New("disk full"))
		_, err = h.manager.RedeemCode(ctx, "ABCD1234")
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorage))

		assert.Equal(t, before, h.manager.State())
		assert.True(t, h.store.has(t, testCodeKey))
		assert.False(t, h.store.has(t, testRelationshipKey))
	})

	t.Run("lost code removal still pairs", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		_, err := h.manager.GenerateCode(ctx)
		require.NoError(t, err)

		h.store.failRemoves(errors.New("io error"))
		_, err = h.manager.RedeemCode(ctx, "ABCD1234")
		require.NoError(t, err)

		state := h.manager.State()
		assert.Equal(t, model.PhasePaired, state.Phase())
		assert.Nil(t, state.ActiveCode)
	})
}

func TestPairingManager_EndRelationship(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op when not paired", func(t *testing.T) {
		h := newHarness(t, nil, nil)

		require.NoError(t, h.manager.EndRelationship(ctx))
		assert.Zero(t, h.store.writes())
		assert.Empty(t, h.notifier.Notices())
	})

	t.Run("ends then regenerates", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		h.pair(t)

		require.NoError(t, h.manager.EndRelationship(ctx))
		assert.Equal(t, model.PhaseIdle, h.manager.State().Phase())
		assert.False(t, h.store.has(t, testRelationshipKey))
		last, _ := h.notifier.Last()
		assert.Equal(t, noticeEnded, last)

		code, err := h.manager.GenerateCode(ctx)
		require.NoError(t, err)
		assert.True(t, util.ValidateCode(code.Code))
		assert.Equal(t, model.PhaseCodeActive, h.manager.State().Phase())
	})

	t.Run("failed delete keeps the relationship", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		h.pair(t)

		h.store.failRemoves(errors.New("io error"))
		err := h.manager.EndRelationship(ctx)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorage))

		assert.Equal(t, model.PhasePaired, h.manager.State().Phase())
		assert.True(t, h.store.has(t, testRelationshipKey))
		last, _ := h.notifier.Last()
		assert.Equal(t, noticeEndFail, last)
	})
}

func TestPairingManager_Expiry(t *testing.T) {
	ctx := context.Background()

	t.Run("tick expires the code at the deadline", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		_, err := h.manager.GenerateCode(ctx)
		require.NoError(t, err)

		h.clock.Advance(59 * time.Second)
		assert.False(t, h.manager.Tick(ctx))
		assert.Equal(t, "1s remaining", h.manager.State().TimeRemaining)

		h.clock.Advance(time.Second)
		assert.True(t, h.manager.Tick(ctx))
		assert.Equal(t, model.PhaseIdle, h.manager.State().Phase())
		assert.False(t, h.store.has(t, testCodeKey))

		assert.False(t, h.manager.Tick(ctx))
	})

	t.Run("state hides an expired code before the tick", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		_, err := h.manager.GenerateCode(ctx)
		require.NoError(t, err)

		h.clock.Advance(2 * time.Minute)
		state := h.manager.State()
		assert.Nil(t, state.ActiveCode)
		assert.Empty(t, state.TimeRemaining)
		assert.Equal(t, model.PhaseIdle, state.Phase())
	})

	t.Run("countdown job expires the code", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		_, err := h.manager.GenerateCode(ctx)
		require.NoError(t, err)
		h.clock.Advance(time.Minute)

		h.manager.Start()
		defer h.manager.Stop()

		assert.Eventually(t, func() bool {
			_, found, _ := h.store.MemoryStore.Get(ctx, testCodeKey)
			return !found
		}, time.Second, 5*time.Millisecond)
	})
}

func TestPairingManager_ActionInProgress(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	remote := &gateRemote{release: make(chan struct{}), now: clock.Now}
	h := newHarness(t, remote, nil)

	done := make(chan error, 1)
	go func() {
		_, err := h.manager.GenerateCode(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool {
		return h.manager.State().Generating
	}, time.Second, time.Millisecond)

	_, err := h.manager.RedeemCode(ctx, "ABCD1234")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeActionInProgress))

	_, err = h.manager.GenerateCode(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeActionInProgress))

	assert.False(t, h.manager.Tick(ctx))

	close(remote.release)
	require.NoError(t, <-done)

	state := h.manager.State()
	assert.False(t, state.Generating)
	assert.Equal(t, model.PhaseCodeActive, state.Phase())
}

func TestPairingManager_Initialize(t *testing.T) {
	ctx := context.Background()
	start := newFakeClock().Now()

	seed := func(t *testing.T, store *faultyStore, key string, value any) {
		t.Helper()
		require.NoError(t, storage.New(store).Put(ctx, key, value))
	}

	t.Run("restores an active code", func(t *testing.T) {
		store := newFaultyStore()
		seed(t, store, testCodeKey, model.PairingCode{
			Code: "QWER5678", CreatedAt: start, ExpiresAt: start.Add(30 * time.Second),
			OwnerID: testUser.ID, OwnerName: testUser.Name,
		})

		h := newHarness(t, nil, store)
		state := h.manager.State()
		require.NotNil(t, state.ActiveCode)
		assert.Equal(t, "QWER5678", state.ActiveCode.Code)
		assert.Equal(t, "30s remaining", state.TimeRemaining)
	})

	t.Run("discards an expired code", func(t *testing.T) {
		store := newFaultyStore()
		seed(t, store, testCodeKey, model.PairingCode{
			Code: "QWER5678", CreatedAt: start.Add(-time.Minute), ExpiresAt: start,
		})

		h := newHarness(t, nil, store)
		assert.Equal(t, model.PhaseIdle, h.manager.State().Phase())
		assert.False(t, store.has(t, testCodeKey))
	})

	t.Run("relationship wins over a stale code", func(t *testing.T) {
		store := newFaultyStore()
		seed(t, store, testCodeKey, model.PairingCode{
			Code: "QWER5678", CreatedAt: start, ExpiresAt: start.Add(time.Minute),
		})
		seed(t, store, testRelationshipKey, model.Relationship{
			PartnerID: "demo_user_7", PartnerName: "Riley Cooper", StartDate: start.Add(-24 * time.Hour),
		})

		h := newHarness(t, nil, store)
		state := h.manager.State()
		assert.Equal(t, model.PhasePaired, state.Phase())
		assert.Nil(t, state.ActiveCode)
		assert.Equal(t, "Riley Cooper", state.Relationship.PartnerName)
		assert.Equal(t, start.Add(-24*time.Hour), state.Relationship.StartDate)
		assert.False(t, store.has(t, testCodeKey))
	})

	t.Run("malformed entries are treated as absent", func(t *testing.T) {
		store := newFaultyStore()
		require.NoError(t, store.MemoryStore.Put(ctx, testCodeKey, "{not json"))
		require.NoError(t, store.MemoryStore.Put(ctx, testRelationshipKey, "[]"))

		clock := newFakeClock()
		m, err := NewPairingManager(ManagerDeps{
			User:   testUser,
			Store:  storage.New(store),
			Remote: NewSimulatedRemote(0, 0, clock.Now),
			Clock:  clock.Now,
		})
		require.NoError(t, err)

		err = m.Initialize(ctx)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorage))
		assert.Equal(t, model.PhaseIdle, m.State().Phase())

		_, err = m.GenerateCode(ctx)
		assert.NoError(t, err)
	})

	t.Run("state survives a restart", func(t *testing.T) {
		h := newHarness(t, nil, nil)
		rel := h.pair(t)

		restarted := newHarness(t, nil, h.store)
		state := restarted.manager.State()
		require.NotNil(t, state.Relationship)
		assert.Equal(t, *rel, *state.Relationship)
	})
}

// Random action sequences never leave a code and a relationship side by side,
// and memory always matches the store.
func TestPairingManager_Invariants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	rng := rand.New(rand.NewSource(1))
	inputs := []string{"ABCD1234", UnavailableCode, "bad", "ZZZZ0000"}

	for i := 0; i < 500; i++ {
		switch rng.Intn(5) {
		case 0:
			_, _ = h.manager.GenerateCode(ctx)
		case 1:
			_, _ = h.manager.RedeemCode(ctx, inputs[rng.Intn(len(inputs))])
		case 2:
			_ = h.manager.EndRelationship(ctx)
		case 3:
			h.clock.Advance(time.Duration(rng.Intn(40)) * time.Second)
		case 4:
			h.manager.Tick(ctx)
		}

		state := h.manager.State()
		require.False(t, state.ActiveCode != nil && state.Relationship != nil, "step %d", i)
		require.Equal(t, state.Relationship != nil, h.store.has(t, testRelationshipKey), "step %d", i)
		if state.ActiveCode != nil {
			require.True(t, h.store.has(t, testCodeKey), "step %d", i)
			require.True(t, state.ActiveCode.ExpiresAt.After(h.clock.Now()), "step %d", i)
		}
	}
}
