package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AiGenerationLog is an append-only record of one copy-generation attempt.
// The generation path itself never reads these rows.
type AiGenerationLog struct {
	ID              string
	OwnerID         string
	GenType         string
	PromptKey       string
	PromptVersionID string // nullable; empty when resolution itself failed
	ModelName       string
	InputJSON       string
	OutputJSON      string
	ValidationOK    bool
	ViolationsJSON  string // nullable
	RepairUsed      bool
	FallbackUsed    bool
	LatencyMs       int64
	CreatedAt       int64
}

// AppendGenerationLog persists one generation attempt.
func (s *Store) AppendGenerationLog(l *AiGenerationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt == 0 {
		l.CreatedAt = time.Now().UnixMilli()
	}

	_, err := s.db.Exec(`INSERT INTO ai_generation_logs
		(id, owner_id, gen_type, prompt_key, prompt_version_id, model_name,
		 input_json, output_json, validation_ok, violations_json,
		 repair_used, fallback_used, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.OwnerID, l.GenType, l.PromptKey, nullStr(l.PromptVersionID), l.ModelName,
		l.InputJSON, l.OutputJSON, boolInt(l.ValidationOK), nullStr(l.ViolationsJSON),
		boolInt(l.RepairUsed), boolInt(l.FallbackUsed), l.LatencyMs, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append generation log: %w", err)
	}
	return nil
}

// ListGenerationLogs returns up to limit log rows, newest first. An empty
// ownerID lists across all owners (admin view).
func (s *Store) ListGenerationLogs(ownerID string, limit int) ([]*AiGenerationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, owner_id, gen_type, prompt_key, prompt_version_id, model_name,
		input_json, output_json, validation_ok, violations_json,
		repair_used, fallback_used, latency_ms, created_at
		FROM ai_generation_logs`
	args := []any{}
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation logs: %w", err)
	}
	defer rows.Close()

	var out []*AiGenerationLog
	for rows.Next() {
		l := &AiGenerationLog{}
		var versionID, violations sql.NullString
		var validationOK, repairUsed, fallbackUsed int
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.GenType, &l.PromptKey, &versionID, &l.ModelName,
			&l.InputJSON, &l.OutputJSON, &validationOK, &violations,
			&repairUsed, &fallbackUsed, &l.LatencyMs, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan generation log: %w", err)
		}
		l.PromptVersionID = versionID.String
		l.ViolationsJSON = violations.String
		l.ValidationOK = validationOK != 0
		l.RepairUsed = repairUsed != 0
		l.FallbackUsed = fallbackUsed != 0
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generation logs: %w", err)
	}
	return out, nil
}
