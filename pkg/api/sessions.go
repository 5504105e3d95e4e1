package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *API) createSession(r *http.Request) Response {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		return FailErr(err)
	}
	opts, err := req.options()
	if err != nil {
		return FailErr(err)
	}

	m, err := a.state.Manager(r.Context())
	if err != nil {
		return FailErr(err)
	}
	s, err := m.GetOrCreate(r.Context(), opts...)
	if err != nil {
		return FailErr(err)
	}

	return JSON(http.StatusOK, SessionResponse{
		Success: true,
		Session: s.Info(),
		Message: fmt.Sprintf("Created %s session %s", s.Type(), s.ID()),
	})
}

func (a *API) listSessions(r *http.Request) Response {
	m, err := a.state.Manager(r.Context())
	if err != nil {
		return FailErr(err)
	}

	sessions := m.List(r.Context())
	stats := m.Stats()
	return JSON(http.StatusOK, ListSessionsResponse{
		Success:        true,
		Sessions:       sessions,
		SessionDetails: m.Details(),
		Statistics:     stats,
		Limits: Limits{
			MaxSessions:     stats.MaxSessions,
			ActiveSessions:  stats.ActiveSessions,
			AvailableSlots:  max(stats.MaxSessions-stats.ActiveSessions, 0),
			UsagePercentage: stats.UsagePercentage,
			EvictionPolicy:  stats.EvictionPolicy,
		},
	})
}

func (a *API) getSession(r *http.Request) Response {
	m, err := a.state.Manager(r.Context())
	if err != nil {
		return FailErr(err)
	}
	id := chi.URLParam(r, "id")
	s, err := m.Get(r.Context(), id)
	if err != nil {
		return FailErr(fmt.Errorf("%w: session %s not found or expired", err, id))
	}
	return JSON(http.StatusOK, SessionResponse{Success: true, Session: s.Info()})
}

func (a *API) terminateSession(r *http.Request) Response {
	m, err := a.state.Manager(r.Context())
	if err != nil {
		return FailErr(err)
	}
	id := chi.URLParam(r, "id")
	if !m.Terminate(r.Context(), id) {
		return Fail(http.StatusNotFound, CodeSessionNotFound, fmt.Sprintf("session %s not found", id))
	}
	return JSON(http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Session %s terminated successfully", id),
	})
}

func (a *API) cleanupSessions(r *http.Request) Response {
	m, err := a.state.Manager(r.Context())
	if err != nil {
		return FailErr(err)
	}
	n := m.CleanupExpired(r.Context())
	return JSON(http.StatusOK, CleanupResponse{
		Success:         true,
		Message:         fmt.Sprintf("Cleaned up %d expired sessions", n),
		SessionsCleaned: n,
	})
}
