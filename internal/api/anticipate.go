package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"swarmguard/internal/engine"
)

type anticipateRequest struct {
	// At is an RFC 3339 timestamp; empty means now.
	At string `json:"at"`
	// In is a Go duration from now, used when At is empty.
	In string `json:"in"`
}

type anticipateResponse struct {
	OK    bool      `json:"ok"`
	Queue string    `json:"queue"`
	At    time.Time `json:"at"`
}

var errInvalidAnticipation = errors.New("invalid anticipation")

func (h *handler) handleAnticipate(w http.ResponseWriter, r *http.Request, queue string) {
	at, err := decodeAnticipation(r, h.nowFn())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := h.engine.Anticipate(queue, at); err != nil {
		if errors.Is(err, engine.ErrUnknownQueue) {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "engine_error")
		return
	}
	writeJSON(w, http.StatusOK, anticipateResponse{OK: true, Queue: queue, At: at})
}

func decodeAnticipation(r *http.Request, now time.Time) (time.Time, error) {
	var req anticipateRequest
	if r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			return time.Time{}, err
		}
	}
	at := strings.TrimSpace(req.At)
	in := strings.TrimSpace(req.In)
	switch {
	case at != "" && in != "":
		return time.Time{}, errInvalidAnticipation
	case at != "":
		return time.Parse(time.RFC3339, at)
	case in != "":
		d, err := time.ParseDuration(in)
		if err != nil || d < 0 {
			return time.Time{}, errInvalidAnticipation
		}
		return now.Add(d), nil
	default:
		return now, nil
	}
}
