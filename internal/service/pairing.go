package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/tether-go/internal/errors"
	"github.com/openclaw/tether-go/internal/jobs"
	"github.com/openclaw/tether-go/internal/model"
	"github.com/openclaw/tether-go/internal/storage"
	"github.com/openclaw/tether-go/internal/util"
)

const (
	DefaultCodeTTL      = 60 * time.Second
	DefaultTickInterval = time.Second
)

type ManagerDeps struct {
	User     model.User
	Store    *storage.Adapter
	Remote   PairingRemote
	Notifier Notifier
	// Clock defaults to time.Now.
	Clock        func() time.Time
	CodeTTL      time.Duration
	TickInterval time.Duration
}

// PairingManager owns one user's pairing state and mirrors it to the store.
//
// Actions are serialized: while one is in flight, others fail with
// ACTION_IN_PROGRESS and the countdown tick is skipped. Remote and storage
// calls run outside the lock; in-memory state only changes once the store
// has confirmed the write.
type PairingManager struct {
	user     model.User
	store    *storage.Adapter
	remote   PairingRemote
	notifier Notifier
	now      func() time.Time
	codeTTL  time.Duration

	codeKey         string
	relationshipKey string

	countdown *jobs.PeriodicJob

	mu           sync.Mutex
	activeCode   *model.PairingCode
	relationship *model.Relationship
	generating   bool
	connecting   bool
	inFlight     bool
}

func NewPairingManager(deps ManagerDeps) (*PairingManager, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("pairing manager: store is required")
	}
	if deps.Remote == nil {
		return nil, fmt.Errorf("pairing manager: remote is required")
	}
	if deps.User.ID == "" {
		return nil, fmt.Errorf("pairing manager: user id is required")
	}

	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{}
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.CodeTTL <= 0 {
		deps.CodeTTL = DefaultCodeTTL
	}
	if deps.TickInterval <= 0 {
		deps.TickInterval = DefaultTickInterval
	}

	m := &PairingManager{
		user:            deps.User,
		store:           deps.Store,
		remote:          deps.Remote,
		notifier:        deps.Notifier,
		now:             deps.Clock,
		codeTTL:         deps.CodeTTL,
		codeKey:         storage.Key(model.RecordKindCode, deps.User.ID),
		relationshipKey: storage.Key(model.RecordKindRelationship, deps.User.ID),
	}
	m.countdown = jobs.NewPeriodicJob("pairing countdown", deps.TickInterval, func(ctx context.Context) {
		m.Tick(ctx)
	})
	return m, nil
}

func (m *PairingManager) CurrentUser() model.User {
	return m.user
}

// Initialize loads persisted state. Unreadable entries are logged and treated
// as absent; the returned error reports them but the loaded state is still usable.
func (m *PairingManager) Initialize(ctx context.Context) error {
	if err := m.begin(nil); err != nil {
		return err
	}
	defer m.finish()

	var loadErrs []error

	var code *model.PairingCode
	var storedCode model.PairingCode
	found, err := m.store.Get(ctx, m.codeKey, &storedCode)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("userId", m.user.ID).Msg("ignoring unreadable pairing code")
		loadErrs = append(loadErrs, err)
	case found && storedCode.Expired(m.now()):
		log.Info().Str("code", util.MaskCode(storedCode.Code)).Msg("discarding expired pairing code")
		m.removeBestEffort(ctx, m.codeKey)
	case found:
		code = &storedCode
	}

	var relationship *model.Relationship
	var storedRelationship model.Relationship
	found, err = m.store.Get(ctx, m.relationshipKey, &storedRelationship)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("userId", m.user.ID).Msg("ignoring unreadable relationship")
		loadErrs = append(loadErrs, err)
	case found:
		relationship = &storedRelationship
	}

	if relationship != nil && code != nil {
		log.Warn().Str("userId", m.user.ID).Msg("stored code and relationship both present; dropping code")
		m.removeBestEffort(ctx, m.codeKey)
		code = nil
	}

	m.mu.Lock()
	m.activeCode = code
	m.relationship = relationship
	m.mu.Unlock()

	log.Info().
		Str("userId", m.user.ID).
		Str("phase", string(m.State().Phase())).
		Msg("pairing state loaded")

	return errors.Join(loadErrs...)
}

// GenerateCode issues a new code for the current user, replacing any active one.
func (m *PairingManager) GenerateCode(ctx context.Context) (*model.PairingCode, error) {
	if err := m.begin(&m.generating); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeAlreadyPaired) {
			m.notifier.Notify(ctx, noticeAlreadyPaired)
		}
		return nil, err
	}
	defer m.finish()

	value, err := util.GenerateCode()
	if err != nil {
		m.notifier.Notify(ctx, noticeGenerateFail)
		return nil, apperrors.Internal("Failed to generate code").WithCause(err)
	}

	code := &model.PairingCode{
		Code:      value,
		OwnerID:   m.user.ID,
		OwnerName: m.user.Name,
	}

	if err := m.remote.Reserve(ctx, code); err != nil {
		log.Error().Err(err).Str("userId", m.user.ID).Msg("reserve pairing code")
		m.notifier.Notify(ctx, noticeGenerateFail)
		return nil, fmt.Errorf("reserve code: %w", err)
	}

	// the full TTL starts once the remote has confirmed the code
	now := model.StoredTime(m.now())
	code.CreatedAt = now
	code.ExpiresAt = now.Add(m.codeTTL)

	if err := m.store.Put(ctx, m.codeKey, code); err != nil {
		// the write may have clobbered the old entry, so neither code is confirmed
		m.mu.Lock()
		m.activeCode = nil
		m.mu.Unlock()
		m.removeBestEffort(ctx, m.codeKey)

		m.notifier.Notify(ctx, noticeGenerateFail)
		return nil, err
	}

	m.mu.Lock()
	m.activeCode = code
	m.mu.Unlock()

	log.Info().
		Str("code", util.MaskCode(code.Code)).
		Str("userId", m.user.ID).
		Time("expiresAt", code.ExpiresAt).
		Msg("pairing code created")
	m.notifier.Notify(ctx, noticeCodeGenerated)

	c := *code
	return &c, nil
}

// RedeemCode pairs the current user with the owner of input.
func (m *PairingManager) RedeemCode(ctx context.Context, input string) (*model.Relationship, error) {
	if !util.ValidateCode(input) {
		m.notifier.Notify(ctx, noticeInvalidCode)
		return nil, apperrors.InvalidFormat()
	}

	if err := m.begin(&m.connecting); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeAlreadyPaired) {
			m.notifier.Notify(ctx, noticeAlreadyPaired)
		}
		return nil, err
	}
	defer m.finish()

	relationship, err := m.remote.Redeem(ctx, input)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodePartnerUnavailable) {
			log.Warn().Str("code", util.MaskCode(input)).Msg("partner unavailable")
			m.notifier.Notify(ctx, noticeUnavailable)
			return nil, err
		}
		log.Error().Err(err).Str("code", util.MaskCode(input)).Msg("redeem pairing code")
		m.notifier.Notify(ctx, noticeRedeemFail)
		return nil, fmt.Errorf("redeem code: %w", err)
	}

	if err := m.store.Put(ctx, m.relationshipKey, relationship); err != nil {
		m.notifier.Notify(ctx, noticeRedeemFail)
		return nil, err
	}

	// Initialize drops a stale code if this removal is lost.
	if err := m.store.Remove(ctx, m.codeKey); err != nil {
		log.Error().Err(err).Str("userId", m.user.ID).Msg("remove superseded pairing code")
	}

	m.mu.Lock()
	m.relationship = relationship
	m.activeCode = nil
	m.mu.Unlock()

	log.Info().
		Str("code", util.MaskCode(input)).
		Str("userId", m.user.ID).
		Str("partnerId", relationship.PartnerID).
		Msg("pairing successful")
	m.notifier.Notify(ctx, noticeConnected(relationship.PartnerName))

	r := *relationship
	return &r, nil
}

// EndRelationship returns a paired user to idle. It does nothing when not paired.
func (m *PairingManager) EndRelationship(ctx context.Context) error {
	m.mu.Lock()
	if m.relationship == nil {
		m.mu.Unlock()
		return nil
	}
	if m.inFlight {
		m.mu.Unlock()
		return apperrors.ActionInProgress()
	}
	m.inFlight = true
	partnerID := m.relationship.PartnerID
	m.mu.Unlock()
	defer m.finish()

	if err := m.store.Remove(ctx, m.relationshipKey); err != nil {
		m.notifier.Notify(ctx, noticeEndFail)
		return err
	}

	m.mu.Lock()
	m.relationship = nil
	m.mu.Unlock()

	log.Info().Str("userId", m.user.ID).Str("partnerId", partnerID).Msg("relationship ended")
	m.notifier.Notify(ctx, noticeEnded)
	return nil
}

// Tick expires the active code once its deadline passes. It reports whether a
// code was expired, and does nothing while an action is in flight.
func (m *PairingManager) Tick(ctx context.Context) bool {
	m.mu.Lock()
	if m.inFlight || m.activeCode == nil || !m.activeCode.Expired(m.now()) {
		m.mu.Unlock()
		return false
	}
	expired := m.activeCode
	m.activeCode = nil
	m.inFlight = true
	m.mu.Unlock()
	defer m.finish()

	m.removeBestEffort(ctx, m.codeKey)

	log.Info().
		Str("code", util.MaskCode(expired.Code)).
		Str("userId", m.user.ID).
		Msg("pairing code expired")
	return true
}

// State returns a snapshot. A code past its deadline is never surfaced, even
// before the next tick clears it.
func (m *PairingManager) State() model.PairingState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := model.PairingState{
		Generating: m.generating,
		Connecting: m.connecting,
	}

	now := m.now()
	if m.activeCode != nil && !m.activeCode.Expired(now) {
		c := *m.activeCode
		state.ActiveCode = &c
		state.TimeRemaining = util.FormatRemainingDuration(c.Remaining(now))
	}
	if m.relationship != nil {
		r := *m.relationship
		state.Relationship = &r
	}
	return state
}

// Start begins the once-per-interval countdown.
func (m *PairingManager) Start() {
	m.countdown.Start()
}

func (m *PairingManager) Stop() {
	m.countdown.Stop()
}

// begin claims the action slot. flag, when set, is raised alongside it.
// Paired users may not start a flagged action.
func (m *PairingManager) begin(flag *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag != nil && m.relationship != nil {
		return apperrors.AlreadyPaired()
	}
	if m.inFlight {
		return apperrors.ActionInProgress()
	}

	m.inFlight = true
	if flag != nil {
		*flag = true
	}
	return nil
}

func (m *PairingManager) finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	m.generating = false
	m.connecting = false
}

func (m *PairingManager) removeBestEffort(ctx context.Context, key string) {
	if err := m.store.Remove(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("best-effort remove failed")
	}
}
