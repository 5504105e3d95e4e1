package api

import (
	"encoding/json"
	"net/http"
)

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// ErrorBody is the payload of every failed request.
type ErrorBody struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSON renders v with status.
func JSON(status int, v any) Response {
	return jsonResponse{status: status, body: v}
}

// Fail renders an ErrorBody with an explicit status and code.
func Fail(status int, code, detail string) Response {
	return jsonResponse{status: status, body: ErrorBody{Error: code, Detail: detail}}
}

// FailErr maps err to a status and code through statusFor.
func FailErr(err error) Response {
	status, code := statusFor(err)
	return Fail(status, code, err.Error())
}
