package httpapi

import (
	"encoding/json"
	"net/http"
)

// Envelope is the response body of every /api route.
type Envelope struct {
	IsSuccess    bool   `json:"isSuccess"`
	Code         int    `json:"code"`
	ErrorMessage string `json:"errorMessage"`
	Data         any    `json:"data"`
}

// Fixed client-facing messages. Failures of the same class share a
// message so callers cannot distinguish their causes.
const (
	msgInvalidCredentials = "Incorrect username or password"
	msgInvalidRefresh     = "Invalid refresh token"
	msgUserNotFound       = "User not found"
	msgRateLimited        = "Too many login attempts, retry later"
	msgUnavailable        = "Service temporarily unavailable"
	msgCurrentPassword    = "Current password is incorrect"
	msgPasswordReuse      = "New password must be different from current password"
	msgPasswordPolicy     = "New password does not meet the password policy"
	msgMissingFields      = "Missing required fields"
	msgUnauthenticated    = "Could not validate credentials"
	msgForbidden          = "Not enough permissions"
	msgTooManyRequests    = "Too many requests, retry later"
	msgLoggedOut          = "Successfully logged out"
	msgPasswordUpdated    = "Password updated successfully"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{IsSuccess: true, Code: http.StatusOK, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Code: status, ErrorMessage: msg})
}
