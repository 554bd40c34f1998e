package ai

import (
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"

	perrors "github.com/pace-labs/pace-engine/internal/errors"
	"github.com/pace-labs/pace-engine/internal/store"
)

// PromptService is the admin surface for prompt templates and versions.
type PromptService struct {
	store  *store.Store
	logger zerolog.Logger
}

// NewPromptService creates a prompt admin service.
func NewPromptService(s *store.Store, logger zerolog.Logger) *PromptService {
	return &PromptService{store: s, logger: logger.With().Str("component", "prompt-admin").Logger()}
}

// CreateVersion registers a new DRAFT version under the template key,
// creating the template on first use. The hash fingerprints the text so
// identical revisions are recognizable.
func (p *PromptService) CreateVersion(templateKey string, version int, variant, systemText, userText, createdBy, notes string) (*store.PromptVersion, error) {
	if templateKey == "" || systemText == "" || userText == "" {
		return nil, fmt.Errorf("template key, system text and user text are required: %w", perrors.ErrInvalidInput)
	}
	if version < 1 {
		return nil, fmt.Errorf("version must be positive: %w", perrors.ErrInvalidInput)
	}

	tpl, err := p.store.UpsertPromptTemplate(templateKey, templateKey, "")
	if err != nil {
		return nil, err
	}

	v := &store.PromptVersion{
		TemplateID: tpl.ID,
		Version:    version,
		Variant:    variant,
		SystemText: systemText,
		UserText:   userText,
		Hash:       PromptHash(systemText, userText),
		Notes:      notes,
		CreatedBy:  createdBy,
	}
	if err := p.store.CreatePromptVersion(v); err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("template", templateKey).
		Int("version", version).
		Str("variant", v.Variant).
		Msg("created prompt version")
	return v, nil
}

// Activate makes a version ACTIVE, archiving the prior ACTIVE version of the
// same template and variant.
func (p *PromptService) Activate(versionID string) error {
	return p.store.ActivatePromptVersion(versionID)
}

// Get returns a version by id.
func (p *PromptService) Get(versionID string) (*store.PromptVersion, error) {
	v, err := p.store.GetPromptVersion(versionID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, perrors.ErrNotFound
	}
	return v, nil
}

// List returns versions, optionally filtered to one template key.
func (p *PromptService) List(templateKey string) ([]*store.PromptVersion, error) {
	return p.store.ListPromptVersions(templateKey)
}

// Seed text for the default suggestion-copy prompt. Installed on first boot
// so a fresh database can generate immediately.
const (
	seedSuggestionSystem = `あなたはPaceアプリのAIアシスタントです。
ユーザーの自律性を尊重し、停滞からの再開を支援します。

**Paceトーン原則:**
- 命令形禁止（「〜すべき」「〜しなさい」は使用しない）
- 仮説提示（「〜かもしれません」「〜の可能性があります」）
- 許可形式（「〜してみませんか？」「〜することができます」）
- 罪悪感を煽らない（「サボ」「怠け」「ダメ」は禁止）
- ラベル貼り禁止（「あなたは〜だ」という断定は避ける）

ユーザーの状態と提案タイプに基づいて、適切なタイトルとメッセージを生成してください。`

	seedSuggestionUser = `ユーザー状態: {{stateType}}
信頼度: {{stateScore}}
提案タイプ: {{suggestionType}}
コンテキスト: {{context}}

以下のJSON形式で提案文言を生成してください:
{
  "title": "短い提案タイトル（40文字以内）",
  "message": "詳細メッセージ（200文字以内）",
  "options": [
    {"key": "ACCEPT", "label": "受け入れるボタン", "description": "選択肢の説明（任意）"}
  ]
}`
)

// SeedDefaults installs and activates the default suggestion-copy prompt if
// the key has no ACTIVE version yet. Safe to call on every boot.
func (p *PromptService) SeedDefaults() error {
	existing, err := p.store.FindActiveVersion(PromptKeySuggestionCopy, "default")
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	v, err := p.CreateVersion(PromptKeySuggestionCopy, 1, "default",
		seedSuggestionSystem, seedSuggestionUser, "system", "seeded default")
	if err != nil {
		return err
	}
	if err := p.Activate(v.ID); err != nil {
		return err
	}
	p.logger.Info().Msg("seeded default suggestion copy prompt")
	return nil
}

// Copy length limits, in runes.
const (
	maxTitleLen   = 100
	maxMessageLen = 500
)

// CopyOption is one user-selectable choice attached to generated copy.
type CopyOption struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Copy is a generated title/message pair with optional choices.
type Copy struct {
	Title   string       `json:"title"`
	Message string       `json:"message"`
	Options []CopyOption `json:"options,omitempty"`
}

// validateCopy enforces the output schema on model-produced copy.
func validateCopy(c *Copy) error {
	titleLen := utf8.RuneCountInString(c.Title)
	if titleLen == 0 || titleLen > maxTitleLen {
		return fmt.Errorf("title length %d out of range 1-%d: %w", titleLen, maxTitleLen, perrors.ErrInvalidInput)
	}
	msgLen := utf8.RuneCountInString(c.Message)
	if msgLen == 0 || msgLen > maxMessageLen {
		return fmt.Errorf("message length %d out of range 1-%d: %w", msgLen, maxMessageLen, perrors.ErrInvalidInput)
	}
	for _, opt := range c.Options {
		if opt.Key == "" || opt.Label == "" {
			return fmt.Errorf("option key and label are required: %w", perrors.ErrInvalidInput)
		}
	}
	return nil
}
