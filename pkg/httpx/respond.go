package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmehra2102/Reservation-Pricing-Service/pkg/apperror"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps an apperror kind to its status. Anything else is a 500 and gets logged.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	kind := apperror.KindOf(err)
	status := kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "err", err)
		WriteJSON(w, status, errorBody{Error: "internal error", Code: kind.String()})
		return
	}
	WriteJSON(w, status, errorBody{Error: err.Error(), Code: kind.String()})
}

func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperror.Validation("http.Decode", "invalid body: %v", err)
	}
	return nil
}

func PathInt64(r *http.Request, name string) (int64, error) {
	return parseInt64(chi.URLParam(r, name), name)
}

func QueryInt64(r *http.Request, name string) (int64, error) {
	return parseInt64(r.URL.Query().Get(name), name)
}

func parseInt64(raw, name string) (int64, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, apperror.Validation("http.param", "%s must be a positive integer, got %q", name, raw)
	}
	return v, nil
}

// QueryTime parses an RFC 3339 timestamp query parameter.
func QueryTime(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperror.Validation("http.param", "%s must be an RFC 3339 timestamp, got %q", name, raw)
	}
	return t, nil
}
