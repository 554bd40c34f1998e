package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pace-labs/pace-engine/internal/metrics"
	"github.com/pace-labs/pace-engine/internal/resilience"
	"github.com/pace-labs/pace-engine/internal/store"
	"github.com/pace-labs/pace-engine/internal/tone"
)

// Generation log types.
const (
	GenTypeSuggestionCopy = "SUGGESTION_COPY"
	GenTypeTaskDraft      = "TASK_DRAFT"
)

// breakerName identifies the model dependency in the breaker registry.
const breakerName = "anthropic"

// Repair calls run cooler and shorter than the first attempt.
const (
	repairMaxTokens   = 512
	repairTemperature = 0.5
)

// GeneratorConfig bounds the generation calls.
type GeneratorConfig struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Retry       resilience.RetryConfig
}

// DefaultGeneratorConfig mirrors the production call budget.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxTokens:   1024,
		Temperature: 0.7,
		Timeout:     15 * time.Second,
		Retry:       resilience.DefaultRetryConfig(),
	}
}

// Generator runs the full copy pipeline: resolve prompt, call the model
// through the resilience stack, validate schema and tone, repair once, and
// fall back to static copy when everything else fails. Every attempt is
// logged to the generation log regardless of outcome.
type Generator struct {
	client   Client
	resolver *Resolver
	store    *store.Store
	breakers *resilience.BreakerRegistry
	metrics  *metrics.Metrics
	cfg      GeneratorConfig
	logger   zerolog.Logger
}

// NewGenerator wires a generator.
func NewGenerator(client Client, resolver *Resolver, s *store.Store, breakers *resilience.BreakerRegistry, m *metrics.Metrics, cfg GeneratorConfig, logger zerolog.Logger) *Generator {
	return &Generator{
		client:   client,
		resolver: resolver,
		store:    s,
		breakers: breakers,
		metrics:  m,
		cfg:      cfg,
		logger:   logger.With().Str("component", "generator").Logger(),
	}
}

// call runs one model request under the breaker, retry, and timeout stack.
// The breaker is outermost so an open circuit fails fast without burning
// retry attempts.
func (g *Generator) call(ctx context.Context, req Request, out any) error {
	breaker := g.breakers.Get(breakerName)
	err := breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Retry(ctx, g.cfg.Retry, func(ctx context.Context) error {
			return resilience.WithTimeout(ctx, g.cfg.Timeout, func(ctx context.Context) error {
				return completeJSON(ctx, g.client, req, out)
			})
		})
	})
	g.metrics.SetBreakerState(breakerName, breakerGaugeValue(breaker.State()))
	return err
}

func breakerGaugeValue(s resilience.CircuitState) float64 {
	switch s {
	case resilience.StateHalfOpen:
		return 1
	case resilience.StateOpen:
		return 2
	default:
		return 0
	}
}

// GenerateSuggestionCopy produces tone-safe copy for a suggestion. It never
// fails: any error along the pipeline degrades to the static fallback for
// the type.
func (g *Generator) GenerateSuggestionCopy(ctx context.Context, ownerID, suggestionType string, contextData map[string]any) Copy {
	start := time.Now()
	logEntry := &store.AiGenerationLog{
		OwnerID:   ownerID,
		GenType:   GenTypeSuggestionCopy,
		PromptKey: PromptKeySuggestionCopy,
		ModelName: g.client.ModelID(),
	}

	copyOut, outcome := g.generateCopy(ctx, ownerID, suggestionType, contextData, logEntry)

	logEntry.LatencyMs = time.Since(start).Milliseconds()
	if b, err := json.Marshal(copyOut); err == nil {
		logEntry.OutputJSON = string(b)
	}
	if err := g.store.AppendGenerationLog(logEntry); err != nil {
		g.logger.Error().Err(err).Msg("failed to append generation log")
	}
	g.metrics.RecordGeneration(GenTypeSuggestionCopy, outcome, time.Since(start).Seconds())

	return copyOut
}

func (g *Generator) generateCopy(ctx context.Context, ownerID, suggestionType string, contextData map[string]any, logEntry *store.AiGenerationLog) (Copy, string) {
	fallback := func() (Copy, string) {
		logEntry.FallbackUsed = true
		c, ok := tone.Fallback(suggestionType)
		if !ok {
			// Unknown types should not reach generation; degrade to the
			// least committal copy rather than panic.
			c, _ = tone.Fallback("MOTIVATION_REMIND")
		}
		return Copy{Title: c.Title, Message: c.Message}, metrics.OutcomeFallback
	}

	version, err := g.resolver.Resolve(ownerID, PromptKeySuggestionCopy)
	if err != nil {
		g.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("prompt resolution failed, using fallback")
		return fallback()
	}
	logEntry.PromptVersionID = version.ID

	contextJSON, err := json.MarshalIndent(contextData, "", "  ")
	if err != nil {
		contextJSON = []byte("{}")
	}
	stateType, _ := contextData["stateType"].(string)
	if stateType == "" {
		stateType = "UNKNOWN"
	}
	stateScore := 0
	switch v := contextData["stateScore"].(type) {
	case int:
		stateScore = v
	case float64:
		stateScore = int(v)
	}

	systemPrompt := version.SystemText
	userPrompt := RenderTemplate(version.UserText, map[string]string{
		"suggestionType": suggestionType,
		"context":        string(contextJSON),
		"stateType":      stateType,
		"stateScore":     fmt.Sprintf("%d", stateScore),
	})
	if b, err := json.Marshal(map[string]string{"system": systemPrompt, "user": userPrompt}); err == nil {
		logEntry.InputJSON = string(b)
	}

	var generated Copy
	err = g.call(ctx, Request{
		System:      systemPrompt,
		User:        userPrompt,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}, &generated)
	if err != nil {
		g.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("generation call failed, using fallback")
		return fallback()
	}

	if err := validateCopy(&generated); err != nil {
		g.logger.Warn().Err(err).Msg("generated copy failed schema validation, using fallback")
		return fallback()
	}

	violations := checkCopyTone(&generated)
	if len(violations) == 0 {
		logEntry.ValidationOK = true
		return generated, metrics.OutcomeOK
	}

	for _, v := range violations {
		g.metrics.RecordToneViolation(v.Kind)
	}
	if b, err := json.Marshal(violations); err == nil {
		logEntry.ViolationsJSON = string(b)
	}
	logEntry.RepairUsed = true

	repaired, ok := g.repair(ctx, &generated, violations)
	if ok {
		logEntry.ValidationOK = true
		return *repaired, metrics.OutcomeRepaired
	}

	return fallback()
}

// repair asks the model once to rewrite violating copy. Returns false when
// the rewrite fails or still violates the tone rules.
func (g *Generator) repair(ctx context.Context, original *Copy, violations []tone.Violation) (*Copy, bool) {
	systemPrompt := tone.RepairInstruction(violations)
	userPrompt := fmt.Sprintf(`以下の提案文言を、トーン原則に従って修正してください：

タイトル: %s
メッセージ: %s

修正後のJSON形式で出力してください：
{
  "title": "修正後のタイトル",
  "message": "修正後のメッセージ"
}`, original.Title, original.Message)

	var repaired Copy
	err := g.call(ctx, Request{
		System:      systemPrompt,
		User:        userPrompt,
		MaxTokens:   repairMaxTokens,
		Temperature: repairTemperature,
	}, &repaired)
	if err != nil {
		g.logger.Warn().Err(err).Msg("repair call failed")
		return nil, false
	}

	if err := validateCopy(&repaired); err != nil {
		return nil, false
	}
	if len(checkCopyTone(&repaired)) > 0 {
		return nil, false
	}
	return &repaired, true
}

func checkCopyTone(c *Copy) []tone.Violation {
	labels := make([]string, 0, len(c.Options))
	for _, o := range c.Options {
		labels = append(labels, o.Label)
	}
	return tone.CheckCopy(c.Title, c.Message, labels)
}

// MicrostepDraft is one generated sub-step of a task.
type MicrostepDraft struct {
	Title     string `json:"title"`
	EffortMin int    `json:"effortMin"`
	Order     int    `json:"order"`
}

// StaticMicrosteps is the fixed three-step split used when generation is
// unavailable: prepare, execute, wrap up.
func StaticMicrosteps(taskTitle string) []MicrostepDraft {
	return []MicrostepDraft{
		{Title: taskTitle + " - 準備", EffortMin: 15, Order: 1},
		{Title: taskTitle + " - 実行", EffortMin: 30, Order: 2},
		{Title: taskTitle + " - 完了", EffortMin: 15, Order: 3},
	}
}

// GenerateMicrostepDraft splits a task into small steps. Degrades to the
// static three-step split on any failure.
func (g *Generator) GenerateMicrostepDraft(ctx context.Context, ownerID, taskTitle, taskDescription string) []MicrostepDraft {
	start := time.Now()
	logEntry := &store.AiGenerationLog{
		OwnerID:   ownerID,
		GenType:   GenTypeTaskDraft,
		PromptKey: PromptKeyMicrostepDraft,
		ModelName: g.client.ModelID(),
	}
	defer func() {
		logEntry.LatencyMs = time.Since(start).Milliseconds()
		if err := g.store.AppendGenerationLog(logEntry); err != nil {
			g.logger.Error().Err(err).Msg("failed to append generation log")
		}
	}()

	fallback := func() []MicrostepDraft {
		logEntry.FallbackUsed = true
		steps := StaticMicrosteps(taskTitle)
		if b, err := json.Marshal(steps); err == nil {
			logEntry.OutputJSON = string(b)
		}
		g.metrics.RecordGeneration(GenTypeTaskDraft, metrics.OutcomeFallback, time.Since(start).Seconds())
		return steps
	}

	version, err := g.resolver.Resolve(ownerID, PromptKeyMicrostepDraft)
	if err != nil {
		return fallback()
	}
	logEntry.PromptVersionID = version.ID

	if taskDescription == "" {
		taskDescription = "なし"
	}
	userPrompt := RenderTemplate(version.UserText, map[string]string{
		"taskTitle":       taskTitle,
		"taskDescription": taskDescription,
	})
	if b, err := json.Marshal(map[string]string{"system": version.SystemText, "user": userPrompt}); err == nil {
		logEntry.InputJSON = string(b)
	}

	var out struct {
		MicroSteps []MicrostepDraft `json:"microSteps"`
	}
	err = g.call(ctx, Request{
		System:      version.SystemText,
		User:        userPrompt,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	}, &out)
	if err != nil || len(out.MicroSteps) == 0 {
		return fallback()
	}

	logEntry.ValidationOK = true
	if b, err := json.Marshal(out.MicroSteps); err == nil {
		logEntry.OutputJSON = string(b)
	}
	g.metrics.RecordGeneration(GenTypeTaskDraft, metrics.OutcomeOK, time.Since(start).Seconds())
	return out.MicroSteps
}
