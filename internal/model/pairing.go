package model

import (
	"encoding/json"
	"time"
)

// StoredTime truncates t to the millisecond UTC instant it is persisted as,
// dropping any monotonic reading, so values compare equal after a round-trip.
func StoredTime(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}

// PairingCode is a short-lived code one user shares for another to redeem.
// Timestamps are serialized as Unix milliseconds.
type PairingCode struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	OwnerID   string    `json:"userId"`
	OwnerName string    `json:"userName"`
}

// Expired reports whether the code is logically dead at now.
func (c *PairingCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

func (c *PairingCode) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

type pairingCodeJSON struct {
	Code      string `json:"code"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
	OwnerID   string `json:"userId"`
	OwnerName string `json:"userName"`
}

func (c PairingCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(pairingCodeJSON{
		Code:      c.Code,
		CreatedAt: c.CreatedAt.UnixMilli(),
		ExpiresAt: c.ExpiresAt.UnixMilli(),
		OwnerID:   c.OwnerID,
		OwnerName: c.OwnerName,
	})
}

func (c *PairingCode) UnmarshalJSON(data []byte) error {
	var raw pairingCodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = PairingCode{
		Code:      raw.Code,
		CreatedAt: time.UnixMilli(raw.CreatedAt).UTC(),
		ExpiresAt: time.UnixMilli(raw.ExpiresAt).UTC(),
		OwnerID:   raw.OwnerID,
		OwnerName: raw.OwnerName,
	}
	return nil
}

type Relationship struct {
	PartnerID   string    `json:"partnerId"`
	PartnerName string    `json:"partnerName"`
	StartDate   time.Time `json:"startDate"`
}

type relationshipJSON struct {
	PartnerID   string `json:"partnerId"`
	PartnerName string `json:"partnerName"`
	StartDate   int64  `json:"startDate"`
}

func (r Relationship) MarshalJSON() ([]byte, error) {
	return json.Marshal(relationshipJSON{
		PartnerID:   r.PartnerID,
		PartnerName: r.PartnerName,
		StartDate:   r.StartDate.UnixMilli(),
	})
}

func (r *Relationship) UnmarshalJSON(data []byte) error {
	var raw relationshipJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Relationship{
		PartnerID:   raw.PartnerID,
		PartnerName: raw.PartnerName,
		StartDate:   time.UnixMilli(raw.StartDate).UTC(),
	}
	return nil
}

// PairingState is a point-in-time copy of one user's pairing state.
type PairingState struct {
	ActiveCode    *PairingCode  `json:"activeCode,omitempty"`
	Relationship  *Relationship `json:"relationship,omitempty"`
	Generating    bool          `json:"isGenerating"`
	Connecting    bool          `json:"isConnecting"`
	TimeRemaining string        `json:"timeRemaining"`
}

func (s PairingState) Phase() Phase {
	switch {
	case s.Relationship != nil:
		return PhasePaired
	case s.ActiveCode != nil:
		return PhaseCodeActive
	default:
		return PhaseIdle
	}
}
