package core

import "time"

// RecommendationRequest carries the inputs to the recommendation engine:
// the requesting user and the incidents to rank guidance for.
type RecommendationRequest struct {
	UserID      string   `json:"user_id"`
	IncidentIDs []string `json:"incident_ids"`
}

// RecommendedItem is a single ranked recommendation.
type RecommendedItem struct {
	IncidentID string  `json:"incident_id"`
	Action     string  `json:"action"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason,omitempty"`
}

// Recommendation is the ranked result returned to the caller. Items are
// ordered by descending score.
type Recommendation struct {
	UserID      string            `json:"user_id"`
	Items       []RecommendedItem `json:"items"`
	GeneratedAt time.Time         `json:"generated_at"`
}
