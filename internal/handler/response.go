package handler

import (
	"net/http"
	"time"

	"github.com/openclaw/tether-go/internal/httputil"
	"github.com/openclaw/tether-go/internal/model"
	"github.com/openclaw/tether-go/internal/util"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatCode(code *model.PairingCode, timeRemaining string) map[string]any {
	if code == nil {
		return nil
	}
	return map[string]any{
		"code":          code.Code,
		"createdAt":     formatTime(code.CreatedAt),
		"expiresAt":     formatTime(code.ExpiresAt),
		"timeRemaining": timeRemaining,
	}
}

func formatRelationship(rel *model.Relationship) map[string]any {
	if rel == nil {
		return nil
	}
	return map[string]any{
		"partnerId":   rel.PartnerID,
		"partnerName": rel.PartnerName,
		"startDate":   formatTime(rel.StartDate),
		"since":       util.FormatDate(rel.StartDate.UTC()),
	}
}

func formatState(user model.User, state model.PairingState) map[string]any {
	return map[string]any{
		"phase": state.Phase(),
		"user": map[string]any{
			"id":   user.ID,
			"name": user.Name,
		},
		"isGenerating": state.Generating,
		"isConnecting": state.Connecting,
		"code":         formatCode(state.ActiveCode, state.TimeRemaining),
		"relationship": formatRelationship(state.Relationship),
	}
}
