package api

import (
	"encoding/json"
	"net/http"
	"time"

	"swarmguard/internal/guard"
)

type errorResponse struct {
	Error string `json:"error"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type guardsResponse struct {
	Guards []snapshotView `json:"guards"`
}

// snapshotView is the wire form of guard.Snapshot.
type snapshotView struct {
	Swarm        string    `json:"swarm"`
	Queue        string    `json:"queue"`
	Alias        string    `json:"alias"`
	Role         string    `json:"role"`
	Mode         string    `json:"mode"`
	Depth        int64     `json:"depth"`
	AverageDepth float64   `json:"averageDepth"`
	TargetDepth  float64   `json:"targetDepth"`
	AppliedRate  float64   `json:"appliedRate"`
	Backpressure bool      `json:"backpressure"`
	At           time.Time `json:"at"`
}

func viewOf(s guard.Snapshot) snapshotView {
	return snapshotView{
		Swarm:        s.Swarm,
		Queue:        s.Queue,
		Alias:        s.Alias,
		Role:         s.Role,
		Mode:         s.Mode.String(),
		Depth:        s.Depth,
		AverageDepth: s.AverageDepth,
		TargetDepth:  s.TargetDepth,
		AppliedRate:  s.AppliedRate,
		Backpressure: s.Backpressure,
		At:           s.At,
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorResponse{Error: code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
