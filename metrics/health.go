package metrics

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status      string `json:"status"`
	Operator    string `json:"operator,omitempty"`
	LastDate    string `json:"last_date,omitempty"`
	LastOutcome string `json:"last_outcome,omitempty"`
	LastRunAt   int64  `json:"last_run_epoch,omitempty"`
}

func (c *Collector) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	last := c.lastDay()
	resp := healthResponse{
		Status:      "ok",
		Operator:    last.Operator,
		LastDate:    last.Date,
		LastOutcome: last.Outcome,
	}
	if !last.At.IsZero() {
		resp.LastRunAt = last.At.Unix()
	}
	_ = json.NewEncoder(w).Encode(resp)
}
