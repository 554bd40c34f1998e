// Package experiment implements deterministic A/B test bucketing and the
// admin lifecycle around experiments.
package experiment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pace-labs/pace-engine/internal/store"
)

// ControlVariant is returned whenever no real variant applies: unknown
// experiment, not running, or a weight walk that falls through.
const ControlVariant = "control"

// Bucket maps (owner, experiment) to a stable bucket in [0, 100). The same
// pair always lands in the same bucket, on any process, with no stored state.
func Bucket(ownerID, experimentKey string) int {
	sum := sha256.Sum256([]byte(ownerID + ":" + experimentKey))
	hexDigest := hex.EncodeToString(sum[:])
	v, _ := strconv.ParseUint(hexDigest[:8], 16, 64)
	return int(v % 100)
}

// Assigner binds owners to experiment variants.
type Assigner struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewAssigner creates an assigner.
func NewAssigner(s *store.Store, logger zerolog.Logger) *Assigner {
	return &Assigner{store: s, logger: logger.With().Str("component", "experiment").Logger()}
}

// Assign returns the owner's variant key for the experiment.
//
// An existing assignment always wins, even if the experiment has since been
// paused or completed: an owner never switches arms. Otherwise a RUNNING
// experiment buckets the owner and walks the variants accumulating weights;
// the first variant whose cumulative weight exceeds the bucket is persisted
// and returned. Anything else yields control without persisting, so the
// owner re-enters assignment if the experiment later starts.
func (a *Assigner) Assign(ownerID, experimentKey string) (string, error) {
	exp, err := a.store.GetExperimentByKey(experimentKey)
	if err != nil {
		return "", err
	}
	if exp == nil {
		return ControlVariant, nil
	}

	existing, err := a.store.GetAssignment(exp.ID, ownerID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.VariantKey, nil
	}

	if exp.Status != store.ExperimentStatusRunning {
		return ControlVariant, nil
	}

	variants, err := a.store.ListVariants(exp.ID)
	if err != nil {
		return "", err
	}

	bucket := Bucket(ownerID, experimentKey)
	cumulative := 0
	for _, v := range variants {
		cumulative += v.Weight
		if bucket < cumulative {
			err := a.store.SaveAssignment(&store.ExperimentAssignment{
				ExperimentID: exp.ID,
				OwnerID:      ownerID,
				VariantKey:   v.Key,
			})
			if err != nil {
				return "", fmt.Errorf("failed to persist assignment: %w", err)
			}
			a.logger.Info().
				Str("owner_id", ownerID).
				Str("experiment", experimentKey).
				Str("variant", v.Key).
				Int("bucket", bucket).
				Msg("assigned experiment variant")
			return v.Key, nil
		}
	}

	return ControlVariant, nil
}
