package ml

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"aegis/core"
	"aegis/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Recommender produces ranked next-action recommendations for a set of
// incidents. Preprocess and Postprocess hooks for learned models are not
// part of the interface yet; the scorer below is deterministic.
type Recommender interface {
	Recommend(ctx context.Context, req *core.RecommendationRequest, incidents []core.Incident) (*core.Recommendation, error)
}

// ScorerConfig tunes the heuristic scorer.
type ScorerConfig struct {
	// RecencyHalfLife controls how fast an incident's urgency decays.
	RecencyHalfLife time.Duration
	// CacheSize bounds the per-request result cache.
	CacheSize int
	Logger    *zap.SugaredLogger
}

// HeuristicScorer ranks incidents by status weight and recency. It is
// deliberately simple: a transparent baseline that a learned model can
// replace behind the same interface.
type HeuristicScorer struct {
	halfLife time.Duration
	cache    *lru.Cache[string, *core.Recommendation]
	logger   *zap.SugaredLogger
}

// NewHeuristicScorer creates the default recommender.
func NewHeuristicScorer(config *ScorerConfig) (*HeuristicScorer, error) {
	if config == nil {
		config = &ScorerConfig{}
	}
	if config.RecencyHalfLife <= 0 {
		config.RecencyHalfLife = 24 * time.Hour
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 512
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("scorer requires a logger")
	}

	cache, err := lru.New[string, *core.Recommendation](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create recommendation cache: %w", err)
	}
	return &HeuristicScorer{
		halfLife: config.RecencyHalfLife,
		cache:    cache,
		logger:   config.Logger,
	}, nil
}

// statusWeights orders incident states by urgency.
var statusWeights = map[core.IncidentStatus]float64{
	core.IncidentOpen:          1.0,
	core.IncidentInvestigating: 0.7,
	core.IncidentResolved:      0.2,
	core.IncidentClosed:        0.0,
}

// statusActions maps each state to the suggested next move.
var statusActions = map[core.IncidentStatus]string{
	core.IncidentOpen:          "triage",
	core.IncidentInvestigating: "continue-investigation",
	core.IncidentResolved:      "verify-and-close",
	core.IncidentClosed:        "no-action",
}

// Recommend scores the given incidents for the requesting user. Results
// are cached per (user, incident set, freshness window).
func (h *HeuristicScorer) Recommend(ctx context.Context, req *core.RecommendationRequest, incidents []core.Incident) (*core.Recommendation, error) {
	if req == nil || req.UserID == "" {
		return nil, fmt.Errorf("recommendation request requires a user")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := h.cacheKey(req, incidents)
	if cached, ok := h.cache.Get(key); ok {
		metrics.RecommendationCacheHits.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.RecommendationCacheHits.WithLabelValues("miss").Inc()

	now := time.Now()
	items := make([]core.RecommendedItem, 0, len(incidents))
	for _, incident := range incidents {
		score := h.score(&incident, now)
		items = append(items, core.RecommendedItem{
			IncidentID: incident.ID,
			Action:     statusActions[incident.Status],
			Score:      score,
			Reason:     fmt.Sprintf("status %s, detected %s ago", incident.Status, now.Sub(incident.DetectedAt).Round(time.Minute)),
		})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })

	rec := &core.Recommendation{
		UserID:      req.UserID,
		Items:       items,
		GeneratedAt: now,
	}
	h.cache.Add(key, rec)
	h.logger.Debugf("Scored %d incidents for user %s", len(items), req.UserID)
	return rec, nil
}

// score combines status urgency with exponential recency decay.
func (h *HeuristicScorer) score(incident *core.Incident, now time.Time) float64 {
	weight := statusWeights[incident.Status]
	age := now.Sub(incident.DetectedAt)
	if age < 0 {
		age = 0
	}
	decay := 1.0 / (1.0 + age.Seconds()/h.halfLife.Seconds())
	return weight * (0.5 + 0.5*decay)
}

// cacheKey buckets by a five-minute window so stale scores age out
// without explicit invalidation.
func (h *HeuristicScorer) cacheKey(req *core.RecommendationRequest, incidents []core.Incident) string {
	ids := make([]string, 0, len(incidents))
	for _, incident := range incidents {
		ids = append(ids, incident.ID+":"+string(incident.Status))
	}
	sort.Strings(ids)
	window := time.Now().Unix() / 300
	return fmt.Sprintf("%s|%d|%s", req.UserID, window, strings.Join(ids, ","))
}
