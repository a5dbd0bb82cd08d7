package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-faster/errors"

	"hunter-compare/pkg/models"
)

// follows RFC 7807: Problem Details for HTTP APIs. Error repeats the caller-facing
// message for clients that only read {error}.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
	Error    string `json:"error"`
}

func (pd *ProblemDetails) String() string {
	return fmt.Sprintf("%d %s: %s", pd.Status, pd.Title, pd.Detail)
}

func WriteError(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	pd := &ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
		Error:    detail,
	}

	json.NewEncoder(w).Encode(pd)
}

func WriteInternalServerError(w http.ResponseWriter, instance string) {
	WriteError(w, http.StatusInternalServerError, "Internal Server Error", "Internal server error", instance)
}

func WriteBadRequest(w http.ResponseWriter, detail, instance string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail, instance)
}

func WriteNotFound(w http.ResponseWriter, detail, instance string) {
	WriteError(w, http.StatusNotFound, "Not Found", detail, instance)
}

func WriteBadGateway(w http.ResponseWriter, detail, instance string) {
	WriteError(w, http.StatusBadGateway, "Bad Gateway", detail, instance)
}

func WriteGatewayTimeout(w http.ResponseWriter, instance string) {
	WriteError(w, http.StatusGatewayTimeout, "Gateway Timeout", "Upstream service timed out", instance)
}

// WriteServiceError maps an error from the query service to a problem response.
// Only validation messages are echoed back; everything else gets a fixed message and
// the details go to the log.
func WriteServiceError(w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	instance := r.URL.Path

	var vErr *models.ValidationError
	if errors.As(err, &vErr) {
		WriteBadRequest(w, vErr.Message, instance)
		return
	}

	if errors.Is(err, models.ErrProductNotFound) {
		WriteNotFound(w, "Product not found", instance)
		return
	}

	l.Error("request failed", "path", instance, "error", err)

	if isTimeout(err) {
		WriteGatewayTimeout(w, instance)
		return
	}

	var acqErr *models.AcquisitionError
	if errors.As(err, &acqErr) {
		WriteBadGateway(w, "Failed to fetch product data", instance)
		return
	}

	WriteInternalServerError(w, instance)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
