package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Prompt version statuses.
const (
	PromptStatusDraft    = "DRAFT"
	PromptStatusActive   = "ACTIVE"
	PromptStatusArchived = "ARCHIVED"
)

// PromptTemplate is a logical prompt keyed by a stable name.
type PromptTemplate struct {
	ID          string
	Key         string
	Name        string
	Description string
	CreatedAt   int64
}

// PromptVersion is one concrete revision of a template's text.
type PromptVersion struct {
	ID          string
	TemplateID  string
	Version     int
	Variant     string
	Status      string
	SystemText  string
	UserText    string
	Hash        string
	Notes       string // nullable
	CreatedBy   string
	CreatedAt   int64
	ActivatedAt int64 // unix ms, 0 = never activated
}

const promptVersionColumns = `id, template_id, version, variant, status,
	system_text, user_text, hash, notes, created_by, created_at, activated_at`

// UpsertPromptTemplate returns the template for key, creating it if missing.
func (s *Store) UpsertPromptTemplate(key, name, description string) (*PromptTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &PromptTemplate{}
	var desc sql.NullString
	err := s.db.QueryRow(`SELECT id, key, name, description, created_at FROM prompt_templates WHERE key = ?`, key).
		Scan(&t.ID, &t.Key, &t.Name, &desc, &t.CreatedAt)
	if err == nil {
		t.Description = desc.String
		return t, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up prompt template: %w", err)
	}

	t = &PromptTemplate{
		ID:          uuid.NewString(),
		Key:         key,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UnixMilli(),
	}
	_, err = s.db.Exec(`INSERT INTO prompt_templates (id, key, name, description, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Key, t.Name, nullStr(t.Description), t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create prompt template: %w", err)
	}
	return t, nil
}

// CreatePromptVersion persists a new DRAFT version.
func (s *Store) CreatePromptVersion(v *PromptVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt == 0 {
		v.CreatedAt = time.Now().UnixMilli()
	}
	if v.Variant == "" {
		v.Variant = "default"
	}
	if v.Status == "" {
		v.Status = PromptStatusDraft
	}

	_, err := s.db.Exec(`INSERT INTO prompt_versions (`+promptVersionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.TemplateID, v.Version, v.Variant, v.Status,
		v.SystemText, v.UserText, v.Hash, nullStr(v.Notes), v.CreatedBy,
		v.CreatedAt, nullInt(v.ActivatedAt))
	if err != nil {
		return fmt.Errorf("failed to create prompt version: %w", err)
	}
	return nil
}

// GetPromptVersion retrieves a version by ID. Returns nil when not found.
func (s *Store) GetPromptVersion(id string) (*PromptVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+promptVersionColumns+` FROM prompt_versions WHERE id = ?`, id)
	v, err := scanPromptVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt version: %w", err)
	}
	return v, nil
}

// FindActiveVersion returns the newest ACTIVE version for (template key,
// variant), nil when none exists.
func (s *Store) FindActiveVersion(templateKey, variant string) (*PromptVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT v.id, v.template_id, v.version, v.variant, v.status,
		v.system_text, v.user_text, v.hash, v.notes, v.created_by, v.created_at, v.activated_at
		FROM prompt_versions v
		JOIN prompt_templates t ON t.id = v.template_id
		WHERE t.key = ? AND v.variant = ? AND v.status = ?
		ORDER BY v.version DESC LIMIT 1`,
		templateKey, variant, PromptStatusActive)
	v, err := scanPromptVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active prompt version: %w", err)
	}
	return v, nil
}

// ActivatePromptVersion makes the version ACTIVE and archives any prior ACTIVE
// version of the same (template, variant) in one transaction. Other variants
// are untouched.
func (s *Store) ActivatePromptVersion(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var templateID, variant string
	err = tx.QueryRow(`SELECT template_id, variant FROM prompt_versions WHERE id = ?`, id).
		Scan(&templateID, &variant)
	if err == sql.ErrNoRows {
		return fmt.Errorf("prompt version not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load prompt version: %w", err)
	}

	_, err = tx.Exec(`UPDATE prompt_versions SET status = ?
		WHERE template_id = ? AND variant = ? AND status = ?`,
		PromptStatusArchived, templateID, variant, PromptStatusActive)
	if err != nil {
		return fmt.Errorf("failed to archive prior active version: %w", err)
	}

	_, err = tx.Exec(`UPDATE prompt_versions SET status = ?, activated_at = ? WHERE id = ?`,
		PromptStatusActive, time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to activate prompt version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activation: %w", err)
	}
	return nil
}

// ListPromptVersions returns all versions for a template key, newest first.
// An empty key lists everything.
func (s *Store) ListPromptVersions(templateKey string) ([]*PromptVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT v.id, v.template_id, v.version, v.variant, v.status,
		v.system_text, v.user_text, v.hash, v.notes, v.created_by, v.created_at, v.activated_at
		FROM prompt_versions v
		JOIN prompt_templates t ON t.id = v.template_id`
	args := []any{}
	if templateKey != "" {
		query += ` WHERE t.key = ?`
		args = append(args, templateKey)
	}
	query += ` ORDER BY v.variant ASC, v.version DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompt versions: %w", err)
	}
	defer rows.Close()

	var out []*PromptVersion
	for rows.Next() {
		v, err := scanPromptVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt version: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prompt versions: %w", err)
	}
	return out, nil
}

func scanPromptVersion(row rowScanner) (*PromptVersion, error) {
	v := &PromptVersion{}
	var notes sql.NullString
	var activatedAt sql.NullInt64

	err := row.Scan(&v.ID, &v.TemplateID, &v.Version, &v.Variant, &v.Status,
		&v.SystemText, &v.UserText, &v.Hash, &notes, &v.CreatedBy,
		&v.CreatedAt, &activatedAt)
	if err != nil {
		return nil, err
	}
	v.Notes = notes.String
	v.ActivatedAt = activatedAt.Int64
	return v, nil
}
