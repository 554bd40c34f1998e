package ai

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	perrors "github.com/pace-labs/pace-engine/internal/errors"
	"github.com/pace-labs/pace-engine/internal/store"
)

// Prompt template keys.
const (
	PromptKeySuggestionCopy = "SUGGESTION_COPY"
	PromptKeyMicrostepDraft = "TASK_MICROSTEP_DRAFT"
)

// Resolver picks the prompt version to use for an owner: an experiment
// override when one applies, otherwise the ACTIVE default.
type Resolver struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewResolver creates a prompt resolver.
func NewResolver(s *store.Store, logger zerolog.Logger) *Resolver {
	return &Resolver{store: s, logger: logger.With().Str("component", "prompt-resolver").Logger()}
}

type variantConfig struct {
	PromptVersionOverrides map[string]string `json:"promptVersionOverrides"`
}

// Resolve returns the prompt version for (owner, key).
//
// Running experiments are checked first: if the owner holds an assignment
// whose variant config overrides this prompt key, that version wins. A
// dangling override id falls through silently. With no applicable override
// the newest ACTIVE version of the default variant is used; having none is
// an error because generation cannot proceed without a prompt.
func (r *Resolver) Resolve(ownerID, promptKey string) (*store.PromptVersion, error) {
	running, err := r.store.ListRunningExperiments()
	if err != nil {
		return nil, err
	}

	for _, exp := range running {
		assignment, err := r.store.GetAssignment(exp.ID, ownerID)
		if err != nil {
			return nil, err
		}
		if assignment == nil {
			continue
		}

		variants, err := r.store.ListVariants(exp.ID)
		if err != nil {
			return nil, err
		}
		for _, v := range variants {
			if v.Key != assignment.VariantKey || v.ConfigJSON == "" {
				continue
			}

			var cfg variantConfig
			if err := json.Unmarshal([]byte(v.ConfigJSON), &cfg); err != nil {
				r.logger.Warn().Err(err).
					Str("experiment", exp.Key).
					Str("variant", v.Key).
					Msg("unparseable variant config, skipping override")
				continue
			}
			overrideID := cfg.PromptVersionOverrides[promptKey]
			if overrideID == "" {
				continue
			}

			version, err := r.store.GetPromptVersion(overrideID)
			if err != nil {
				return nil, err
			}
			if version != nil {
				r.logger.Debug().
					Str("owner_id", ownerID).
					Str("prompt_key", promptKey).
					Str("experiment", exp.Key).
					Str("version_id", version.ID).
					Msg("resolved experiment prompt override")
				return version, nil
			}
		}
	}

	version, err := r.store.FindActiveVersion(promptKey, "default")
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, fmt.Errorf("no active prompt version for key %s: %w", promptKey, perrors.ErrNotFound)
	}
	return version, nil
}

// RenderTemplate substitutes {{name}} placeholders with their values.
// Unknown placeholders are left as-is.
func RenderTemplate(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}

// PromptHash fingerprints a prompt version's text content.
func PromptHash(systemText, userText string) string {
	sum := sha256.Sum256([]byte(systemText + userText))
	return hex.EncodeToString(sum[:])
}
