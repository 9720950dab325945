package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/chirp/internal/common"
)

// Stable error codes returned in the "code" field of every error body.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeDuplicateIdentity   = "DUPLICATE_IDENTITY"
	CodeWeakPassword        = "WEAK_PASSWORD"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeMalformedAuthHeader = "MALFORMED_AUTH_HEADER"
	CodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
	CodeInternal            = "INTERNAL"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string   `json:"error,omitempty"`
	Errors []string `json:"errors,omitempty"`
	Code   string   `json:"code"`
}

var errMalformedBody = &common.ValidationError{Problems: []string{"The request body must be a valid JSON object."}}

// apiError maps a service error onto a status and body. Internal causes are
// never copied into the body.
func apiError(err error) (int, errorResponse) {
	var (
		validation *common.ValidationError
		weak       *common.WeakPasswordError
		dup        *common.DuplicateIdentityError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorResponse{Errors: validation.Problems, Code: CodeValidationFailed}
	case errors.As(err, &weak):
		return http.StatusBadRequest, errorResponse{Errors: weak.Rules, Code: CodeWeakPassword}
	case errors.As(err, &dup):
		msg := "Username is already taken"
		if dup.Field == "email" {
			msg = "Email is already registered"
		}
		return http.StatusBadRequest, errorResponse{Error: msg, Code: CodeDuplicateIdentity}
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusBadRequest, errorResponse{Error: "Invalid username or password", Code: CodeInvalidCredentials}
	case errors.Is(err, common.ErrMalformedAuthHeader):
		return http.StatusBadRequest, errorResponse{Error: "Invalid authorization header", Code: CodeMalformedAuthHeader}
	case errors.Is(err, common.ErrInvalidToken):
		return http.StatusBadRequest, errorResponse{Error: "Invalid token", Code: CodeInvalidToken}
	case errors.Is(err, common.ErrAccountNotFound):
		return http.StatusBadRequest, errorResponse{Error: "Account not found", Code: CodeAccountNotFound}
	case errors.Is(err, common.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: "Service temporarily unavailable", Code: CodeStoreUnavailable}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "Internal server error", Code: CodeInternal}
	}
}

// writeError writes the mapped error body and returns its code.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) string {
	status, body := apiError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "unexpected error", "error", err)
	}
	s.writeJSON(w, r, status, body)
	return body.Code
}

func (s *HTTPServer) writeUnauthorized(w http.ResponseWriter, r *http.Request, code string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="chirp"`)
	s.writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Code: code})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(r.Context(), "write response", "error", err)
	}
}

// decodeJSON reads exactly one JSON value from the request body into dst.
func decodeJSON(r *http.Request, w http.ResponseWriter, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errMalformedBody
	}
	return nil
}
