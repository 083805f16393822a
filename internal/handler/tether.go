package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/tether-go/internal/audit"
	apperrors "github.com/openclaw/tether-go/internal/errors"
	"github.com/openclaw/tether-go/internal/httputil"
	"github.com/openclaw/tether-go/internal/service"
	"github.com/openclaw/tether-go/internal/util"
)

type TetherHandler struct {
	manager       *service.PairingManager
	redeemLimiter func(http.Handler) http.Handler
}

// NewTetherHandler serves the pairing screen. redeemLimiter, if set, wraps
// only the redeem route.
func NewTetherHandler(manager *service.PairingManager, redeemLimiter func(http.Handler) http.Handler) *TetherHandler {
	return &TetherHandler{
		manager:       manager,
		redeemLimiter: redeemLimiter,
	}
}

func (h *TetherHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.GetState)
	r.Post("/code", h.GenerateCode)
	r.Group(func(r chi.Router) {
		if h.redeemLimiter != nil {
			r.Use(h.redeemLimiter)
		}
		r.Post("/redeem", h.RedeemCode)
	})
	r.Delete("/relationship", h.EndRelationship)

	return r
}

// GET /api/tether
func (h *TetherHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stateView())
}

// POST /api/tether/code
func (h *TetherHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	user := h.manager.CurrentUser()

	code, err := h.manager.GenerateCode(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventCodeGenerate,
		UserID:  user.ID,
		Details: map[string]any{"code": util.MaskCode(code.Code)},
	})

	writeJSON(w, http.StatusCreated, h.stateView())
}

// POST /api/tether/redeem
// Input is trimmed and upper-cased before validation.
func (h *TetherHandler) RedeemCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	input := strings.ToUpper(strings.TrimSpace(req.Code))
	user := h.manager.CurrentUser()

	rel, err := h.manager.RedeemCode(r.Context(), input)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:   audit.EventCodeRedeemFailure,
			UserID: user.ID,
			Details: map[string]any{
				"code":   util.MaskCode(input),
				"reason": string(apperrors.GetCode(err)),
			},
		})
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventCodeRedeem,
		UserID:    user.ID,
		PartnerID: rel.PartnerID,
		Details:   map[string]any{"code": util.MaskCode(input)},
	})

	writeJSON(w, http.StatusOK, h.stateView())
}

// DELETE /api/tether/relationship
func (h *TetherHandler) EndRelationship(w http.ResponseWriter, r *http.Request) {
	user := h.manager.CurrentUser()
	before := h.manager.State().Relationship

	if err := h.manager.EndRelationship(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if before != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:      audit.EventRelationshipEnd,
			UserID:    user.ID,
			PartnerID: before.PartnerID,
		})
	} else {
		log.Debug().Str("userId", user.ID).Msg("end relationship ignored, not paired")
	}

	writeJSON(w, http.StatusOK, h.stateView())
}

func (h *TetherHandler) stateView() map[string]any {
	return formatState(h.manager.CurrentUser(), h.manager.State())
}
