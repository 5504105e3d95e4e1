package api

import (
	"net/http"
	"strings"

	"github.com/dmitrymomot/sqlbridge/pkg/logger"
	"github.com/dmitrymomot/sqlbridge/pkg/session"
)

func (a *API) query(r *http.Request) Response {
	var req QueryRequest
	if err := decodeJSON(r, &req, false); err != nil {
		return FailErr(err)
	}
	if strings.TrimSpace(req.SQL) == "" {
		return Fail(http.StatusBadRequest, CodeInvalidRequest, "sql must not be empty")
	}

	m, err := a.state.Manager(r.Context())
	if err != nil {
		return FailErr(err)
	}

	var opts []session.CreateOption
	if req.SessionID != "" {
		opts = append(opts, session.WithSessionID(req.SessionID))
	}
	s, err := m.GetOrCreate(r.Context(), opts...)
	if err != nil {
		return FailErr(err)
	}

	res := s.Execute(r.Context(), req.SQL)
	if !res.Success {
		a.logger.InfoContext(r.Context(), "query failed",
			logger.SessionID(s.ID()), logger.SQL(req.SQL), logger.Error(res.Err))
		return JSON(http.StatusBadRequest, ErrorBody{
			Error:     CodeSQLExecution,
			Detail:    res.Error,
			SessionID: s.ID(),
		})
	}
	return JSON(http.StatusOK, NewQueryResponse(res))
}
