package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkVersion(t *testing.T, s *Store, templateID string, version int, variant string) *PromptVersion {
	t.Helper()
	v := &PromptVersion{
		TemplateID: templateID,
		Version:    version,
		Variant:    variant,
		SystemText: "system",
		UserText:   "user {{name}}",
		Hash:       "abc123",
		CreatedBy:  "admin-1",
	}
	require.NoError(t, s.CreatePromptVersion(v))
	return v
}

func TestUpsertPromptTemplate_Idempotent(t *testing.T) {
	s := newTestStore(t)

	first, err := s.UpsertPromptTemplate("suggestion.plan_reduce", "Plan reduce copy", "")
	require.NoError(t, err)
	second, err := s.UpsertPromptTemplate("suggestion.plan_reduce", "renamed", "ignored")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Plan reduce copy", second.Name, "existing template wins")
}

func TestCreatePromptVersion_Defaults(t *testing.T) {
	s := newTestStore(t)
	tpl, err := s.UpsertPromptTemplate("k", "n", "")
	require.NoError(t, err)

	v := &PromptVersion{TemplateID: tpl.ID, Version: 1, SystemText: "s", UserText: "u", Hash: "h", CreatedBy: "a"}
	require.NoError(t, s.CreatePromptVersion(v))

	got, err := s.GetPromptVersion(v.ID)
	require.NoError(t, err)
	assert.Equal(t, "default", got.Variant)
	assert.Equal(t, PromptStatusDraft, got.Status)
	assert.Zero(t, got.ActivatedAt)
}

func TestActivatePromptVersion_ArchivesPriorActive(t *testing.T) {
	s := newTestStore(t)
	tpl, err := s.UpsertPromptTemplate("k", "n", "")
	require.NoError(t, err)

	v1 := mkVersion(t, s, tpl.ID, 1, "default")
	v2 := mkVersion(t, s, tpl.ID, 2, "default")
	other := mkVersion(t, s, tpl.ID, 1, "friendly")

	require.NoError(t, s.ActivatePromptVersion(v1.ID))
	require.NoError(t, s.ActivatePromptVersion(other.ID))
	require.NoError(t, s.ActivatePromptVersion(v2.ID))

	got1, err := s.GetPromptVersion(v1.ID)
	require.NoError(t, err)
	assert.Equal(t, PromptStatusArchived, got1.Status)

	got2, err := s.GetPromptVersion(v2.ID)
	require.NoError(t, err)
	assert.Equal(t, PromptStatusActive, got2.Status)
	assert.NotZero(t, got2.ActivatedAt)

	// Activation of one variant never touches another.
	gotOther, err := s.GetPromptVersion(other.ID)
	require.NoError(t, err)
	assert.Equal(t, PromptStatusActive, gotOther.Status)
}

func TestFindActiveVersion(t *testing.T) {
	s := newTestStore(t)
	tpl, err := s.UpsertPromptTemplate("k", "n", "")
	require.NoError(t, err)

	none, err := s.FindActiveVersion("k", "default")
	require.NoError(t, err)
	assert.Nil(t, none)

	v := mkVersion(t, s, tpl.ID, 1, "default")
	require.NoError(t, s.ActivatePromptVersion(v.ID))

	got, err := s.FindActiveVersion("k", "default")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, v.ID, got.ID)

	missing, err := s.FindActiveVersion("k", "friendly")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
