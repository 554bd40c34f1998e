package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VisionCard represents a long-horizon vision in the database.
type VisionCard struct {
	ID        string
	OwnerID   string
	Title     string
	WhyNote   string // nullable
	Archived  bool
	CreatedAt int64
	UpdatedAt int64
}

// SaveVision inserts or updates a vision card.
func (s *Store) SaveVision(v *VisionCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UnixMilli()
	if v.CreatedAt == 0 {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	_, err := s.db.Exec(`
	INSERT OR REPLACE INTO vision_cards (id, owner_id, title, why_note, archived, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.OwnerID, v.Title, nullStr(v.WhyNote), boolInt(v.Archived), v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save vision: %w", err)
	}
	return nil
}

// CountActiveVisions counts the owner's non-archived vision cards.
func (s *Store) CountActiveVisions(ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM vision_cards WHERE owner_id = ? AND archived = 0`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count visions: %w", err)
	}
	return n, nil
}

// FindVisionWithWhyNote returns the most recently updated non-archived vision
// carrying a non-empty why note. Nil when none exists.
func (s *Store) FindVisionWithWhyNote(ownerID string) (*VisionCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := &VisionCard{}
	var why sql.NullString
	var archived int
	err := s.db.QueryRow(`SELECT id, owner_id, title, why_note, archived, created_at, updated_at
		FROM vision_cards
		WHERE owner_id = ? AND archived = 0 AND why_note IS NOT NULL AND why_note != ''
		ORDER BY updated_at DESC LIMIT 1`, ownerID).
		Scan(&v.ID, &v.OwnerID, &v.Title, &why, &archived, &v.CreatedAt, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vision with why note: %w", err)
	}
	v.WhyNote = why.String
	v.Archived = archived != 0
	return v, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
