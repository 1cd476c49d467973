package model

import "time"

// RequestLog captures one routed chat completion end to end.
type RequestLog struct {
	ID             string    `db:"id" json:"id"`
	RequestedModel string    `db:"requested_model" json:"requested_model"`
	SelectedModel  string    `db:"selected_model" json:"selected_model"`
	Provider       string    `db:"provider" json:"provider"`
	MatchKind      string    `db:"match_kind" json:"match_kind"`
	Strategy       string    `db:"strategy" json:"strategy"`
	TaskType       string    `db:"task_type" json:"task_type"`
	InputTokens    int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens   int       `db:"output_tokens" json:"output_tokens"`
	LatencyMS      int64     `db:"latency_ms" json:"latency_ms"`
	StatusCode     int       `db:"status_code" json:"status_code"`
	Attempts       int       `db:"attempts" json:"attempts"`
	IsStreamed     bool      `db:"is_streamed" json:"is_streamed"`
	IPAddress      string    `db:"ip_address" json:"ip_address"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`

	// Joined, not a column.
	AttemptLogs []AttemptLog `db:"-" json:"attempt_logs,omitempty"`
}

// AttemptLog is one provider call within a request's fallback chain.
type AttemptLog struct {
	ID        string    `db:"id" json:"id"`
	RequestID string    `db:"request_id" json:"request_id"`
	ModelID   string    `db:"model_id" json:"model_id"`
	Provider  string    `db:"provider" json:"provider"`
	Attempt   int       `db:"attempt" json:"attempt"`
	LatencyMS int64     `db:"latency_ms" json:"latency_ms"`
	Succeeded bool      `db:"succeeded" json:"succeeded"`
	Error     string    `db:"error" json:"error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DailyStats represents aggregated usage data for a specific day.
type DailyStats struct {
	Date           string  `db:"date" json:"date"`
	TotalRequests  int     `db:"total_requests" json:"total_requests"`
	TotalTokens    int     `db:"total_tokens" json:"total_tokens"`
	AverageLatency float64 `db:"avg_latency" json:"avg_latency"`
}
