package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	if err := s.migrateV1(); err != nil {
		return err
	}
	return s.migrateV2()
}

// migrateV1 creates the planning-data tables the engine reads and mutates.
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'TODO',
		priority INTEGER NOT NULL DEFAULT 50,
		effort_min INTEGER,
		due_at INTEGER,
		postpone_count INTEGER NOT NULL DEFAULT 0,
		quarter_goal_id TEXT,
		planned_week_start TEXT,
		weekly_plan_id TEXT,
		planned_date TEXT,
		daily_plan_id TEXT,
		origin_type TEXT,
		origin_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_owner_status ON tasks(owner_id, status);
	CREATE INDEX IF NOT EXISTS idx_tasks_owner_week ON tasks(owner_id, planned_week_start);
	CREATE INDEX IF NOT EXISTS idx_tasks_goal ON tasks(quarter_goal_id);

	CREATE TABLE IF NOT EXISTS vision_cards (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		title TEXT NOT NULL,
		why_note TEXT,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_visions_owner ON vision_cards(owner_id, archived);

	CREATE TABLE IF NOT EXISTS quarter_goals (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		vision_id TEXT,
		title TEXT NOT NULL,
		year INTEGER NOT NULL,
		cadence TEXT NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goals_owner_quarter ON quarter_goals(owner_id, year, cadence);
	CREATE INDEX IF NOT EXISTS idx_goals_vision ON quarter_goals(vision_id);

	CREATE TABLE IF NOT EXISTS weekly_plans (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(owner_id, week_start)
	);

	CREATE TABLE IF NOT EXISTS daily_plans (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		plan_date TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		UNIQUE(owner_id, plan_date)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migration v1 failed: %w", err)
	}
	return nil
}

// migrateV2 creates the engine's own tables: snapshots, suggestion events,
// prompts, experiments and generation logs.
func (s *Store) migrateV2() error {
	schema := `
	CREATE TABLE IF NOT EXISTS state_snapshots (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		window_days INTEGER NOT NULL,
		scores_json TEXT NOT NULL,
		primary_state TEXT NOT NULL,
		primary_confidence INTEGER NOT NULL,
		top_signals_json TEXT NOT NULL,
		self_report_json TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_owner_created ON state_snapshots(owner_id, created_at);

	CREATE TABLE IF NOT EXISTS suggestion_events (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		suggestion_type TEXT NOT NULL,
		state_type TEXT,
		state_score INTEGER NOT NULL DEFAULT 0,
		context TEXT NOT NULL DEFAULT 'HOME',
		payload_json TEXT NOT NULL,
		snapshot_id TEXT,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		options_json TEXT NOT NULL,
		response TEXT,
		response_payload_json TEXT,
		responded_at INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_suggestions_owner_created ON suggestion_events(owner_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_suggestions_owner_response ON suggestion_events(owner_id, response);

	CREATE TABLE IF NOT EXISTS prompt_templates (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS prompt_versions (
		id TEXT PRIMARY KEY,
		template_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		variant TEXT NOT NULL DEFAULT 'default',
		status TEXT NOT NULL DEFAULT 'DRAFT',
		system_text TEXT NOT NULL,
		user_text TEXT NOT NULL,
		hash TEXT NOT NULL,
		notes TEXT,
		created_by TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		activated_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_prompt_versions_template ON prompt_versions(template_id, variant, status);

	CREATE TABLE IF NOT EXISTS experiments (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		started_at INTEGER,
		ended_at INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS experiment_variants (
		id TEXT PRIMARY KEY,
		experiment_id TEXT NOT NULL,
		key TEXT NOT NULL,
		name TEXT NOT NULL,
		weight INTEGER NOT NULL,
		config_json TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE(experiment_id, key)
	);

	CREATE TABLE IF NOT EXISTS experiment_assignments (
		id TEXT PRIMARY KEY,
		experiment_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		variant_key TEXT NOT NULL,
		assigned_at INTEGER NOT NULL,
		UNIQUE(experiment_id, owner_id)
	);

	CREATE TABLE IF NOT EXISTS ai_generation_logs (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		gen_type TEXT NOT NULL,
		prompt_key TEXT NOT NULL,
		prompt_version_id TEXT,
		model_name TEXT NOT NULL,
		input_json TEXT NOT NULL,
		output_json TEXT NOT NULL,
		validation_ok INTEGER NOT NULL,
		violations_json TEXT,
		repair_used INTEGER NOT NULL,
		fallback_used INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ailogs_owner_created ON ai_generation_logs(owner_id, created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migration v2 failed: %w", err)
	}
	return nil
}
