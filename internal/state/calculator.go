package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pace-labs/pace-engine/internal/lru"
	"github.com/pace-labs/pace-engine/internal/metrics"
	"github.com/pace-labs/pace-engine/internal/store"
)

// DefaultWindowDays is the trailing signal window used when the caller does
// not pick one.
const DefaultWindowDays = 7

// latestCacheSize bounds the per-owner latest-snapshot cache. Every
// suggestion fetch reads the latest snapshot, so this keeps the hot path
// off the database.
const latestCacheSize = 512

// Calculator turns extracted signals into persisted state snapshots.
type Calculator struct {
	store     *store.Store
	extractor *Extractor
	latest    *lru.Cache[string, *store.StateSnapshot]
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewCalculator creates a snapshot calculator.
func NewCalculator(s *store.Store, m *metrics.Metrics, logger zerolog.Logger) *Calculator {
	return &Calculator{
		store:     s,
		extractor: NewExtractor(s, logger),
		latest:    lru.New[string, *store.StateSnapshot](latestCacheSize),
		metrics:   m,
		logger:    logger.With().Str("component", "state").Logger(),
	}
}

// Compute extracts signals, scores every state, picks the winner, and
// persists the snapshot.
//
// The winner is the highest-scoring state; ties break toward the earlier
// entry in AllStates, so the outcome never depends on map iteration order.
// A winner below 20 means nothing is actually wrong: the snapshot records
// NORMAL with confidence 0 and no top signals, though the full score map is
// still stored for inspection.
func (c *Calculator) Compute(ownerID string, windowDays int, selfReport *SelfReport) (*store.StateSnapshot, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if selfReport != nil {
		if err := selfReport.Validate(); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	signals, err := c.extractor.Extract(ownerID, windowDays, now)
	if err != nil {
		return nil, fmt.Errorf("failed to extract signals: %w", err)
	}
	signals.Merge(selfReport)

	scores := ScoreAll(signals)
	primary, best := pickPrimary(scores)

	confidence := best.Score
	topSignals := best.Signals
	if best.Score < 20 {
		primary = StateNormal
		confidence = 0
		topSignals = nil
	}
	if topSignals == nil {
		topSignals = []string{}
	}

	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scores: %w", err)
	}
	topSignalsJSON, err := json.Marshal(topSignals)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal top signals: %w", err)
	}
	selfReportJSON := ""
	if selfReport != nil {
		b, err := json.Marshal(selfReport)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal self report: %w", err)
		}
		selfReportJSON = string(b)
	}

	snap := &store.StateSnapshot{
		OwnerID:           ownerID,
		WindowDays:        windowDays,
		ScoresJSON:        string(scoresJSON),
		PrimaryState:      primary,
		PrimaryConfidence: confidence,
		TopSignalsJSON:    string(topSignalsJSON),
		SelfReportJSON:    selfReportJSON,
	}
	if err := c.store.SaveSnapshot(snap); err != nil {
		return nil, err
	}
	c.latest.Put(ownerID, snap)
	c.metrics.RecordSnapshot(primary)

	c.logger.Info().
		Str("owner_id", ownerID).
		Str("primary_state", primary).
		Int("confidence", confidence).
		Msg("computed state snapshot")

	return snap, nil
}

// Latest returns the owner's most recent snapshot, nil when none exists.
// Recent results are served from an in-process cache that Compute keeps
// current.
func (c *Calculator) Latest(ownerID string) (*store.StateSnapshot, error) {
	if snap, ok := c.latest.Get(ownerID); ok {
		return snap, nil
	}
	snap, err := c.store.LatestSnapshot(ownerID)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		c.latest.Put(ownerID, snap)
	}
	return snap, nil
}

// History returns up to limit snapshots, newest first.
func (c *Calculator) History(ownerID string, limit int) ([]*store.StateSnapshot, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	return c.store.SnapshotHistory(ownerID, limit)
}

// pickPrimary returns the highest-scoring state. Ties break toward the
// earlier entry in AllStates.
func pickPrimary(scores map[string]Score) (string, Score) {
	primary := AllStates[0]
	best := scores[primary]
	for _, typ := range AllStates[1:] {
		if scores[typ].Score > best.Score {
			primary = typ
			best = scores[typ]
		}
	}
	return primary, best
}

// IsStale reports whether a snapshot is missing or older than maxAge.
func IsStale(snap *store.StateSnapshot, maxAge time.Duration) bool {
	if snap == nil {
		return true
	}
	return time.Since(time.UnixMilli(snap.CreatedAt)) > maxAge
}
