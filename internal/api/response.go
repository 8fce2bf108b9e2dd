package api

import (
	"encoding/json"
	"net/http"

	"github.com/ilkoid/specmatch/pkg/utils"
)

// Коды ошибок в поле errorCode.
const (
	CodeUploadFailed = "UPLOAD_FAILED"
	CodeAIError      = "AI_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeBadRequest   = "BAD_REQUEST"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL"
)

// Envelope - общие поля каждого ответа /api.
type Envelope struct {
	BuildID   string `json:"buildId"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Error     string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Error("Response encode failed", "error", err)
	}
}

func (s *Server) ok() Envelope {
	return Envelope{BuildID: s.buildID, Success: true}
}

func (s *Server) fail(w http.ResponseWriter, status int, code, message string, err error) {
	env := Envelope{BuildID: s.buildID, Message: message, ErrorCode: code}
	if err != nil {
		env.Error = err.Error()
	}
	writeJSON(w, status, env)
}
