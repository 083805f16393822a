package service

import (
	"context"
	"time"

	apperrors "github.com/openclaw/tether-go/internal/errors"
	"github.com/openclaw/tether-go/internal/model"
	"github.com/openclaw/tether-go/internal/util"
)

// UnavailableCode always fails to redeem, modelling a partner who is already paired elsewhere.
const UnavailableCode = "00000000"

// PairingRemote is the counterpart service that publishes codes and resolves redeemed ones.
type PairingRemote interface {
	Reserve(ctx context.Context, code *model.PairingCode) error
	Redeem(ctx context.Context, code string) (*model.Relationship, error)
}

// SimulatedRemote stands in for a pairing backend: it waits a fixed delay and
// fabricates the partner identity.
type SimulatedRemote struct {
	reserveDelay time.Duration
	redeemDelay  time.Duration
	now          func() time.Time
}

func NewSimulatedRemote(reserveDelay, redeemDelay time.Duration, now func() time.Time) *SimulatedRemote {
	if now == nil {
		now = time.Now
	}
	return &SimulatedRemote{
		reserveDelay: reserveDelay,
		redeemDelay:  redeemDelay,
		now:          now,
	}
}

func (r *SimulatedRemote) Reserve(ctx context.Context, code *model.PairingCode) error {
	return wait(ctx, r.reserveDelay)
}

func (r *SimulatedRemote) Redeem(ctx context.Context, code string) (*model.Relationship, error) {
	if err := wait(ctx, r.redeemDelay); err != nil {
		return nil, err
	}

	if code == UnavailableCode {
		return nil, apperrors.PartnerUnavailable()
	}

	now := model.StoredTime(r.now())
	return &model.Relationship{
		PartnerID:   util.PartnerID(now),
		PartnerName: util.RandomDisplayName(),
		StartDate:   now,
	}, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
