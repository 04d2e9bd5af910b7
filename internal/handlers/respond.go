package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eventhon/eventhon/internal/middleware"
	"github.com/eventhon/eventhon/internal/models"
	"github.com/eventhon/eventhon/internal/service"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type MessageResponse struct {
	Message string `json:"message"`
}

var kindStatus = map[models.ErrorKind]int{
	models.KindInvalidInput: http.StatusBadRequest,
	models.KindNotFound:     http.StatusNotFound,
	models.KindConflict:     http.StatusConflict,
	models.KindForbidden:    http.StatusForbidden,
	models.KindUnauthorized: http.StatusUnauthorized,
	models.KindExpired:      http.StatusBadRequest,
	models.KindInvalidCode:  http.StatusBadRequest,
	models.KindInternal:     http.StatusInternalServerError,
}

func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondWithMessage(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, MessageResponse{Message: message})
}

// respondWithError writes the caller-facing message of err. Anything that is
// not a known workflow error is logged and hidden behind a generic 500.
func respondWithError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		logger.WithError(err).Error("Unhandled error")
		respondWithMessage(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status, ok := kindStatus[appErr.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("Request failed")
	}
	respondWithMessage(w, status, appErr.Message)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return models.InvalidInput("Request body is required")
		}
		return models.InvalidInput("Invalid request body")
	}
	return nil
}

// claimsOf returns the session claims placed by RequireAuth.
func claimsOf(r *http.Request) *service.Claims {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return &service.Claims{}
	}
	return claims
}

// parseDate accepts a calendar date, read in loc, or a full RFC 3339
// timestamp.
func parseDate(value string, loc *time.Location, field string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, models.InvalidInput("%s must be a date (YYYY-MM-DD) or an RFC 3339 timestamp", field)
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondWithMessage(w, http.StatusNotFound, fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path))
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	respondWithMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
}
