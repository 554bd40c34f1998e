package tone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_CleanText(t *testing.T) {
	violations := Check("message", "これをやってみませんか？")
	assert.Empty(t, violations)
}

func TestCheck_ImperativeFlagged(t *testing.T) {
	violations := Check("message", "すぐに対応すべきです")
	require.NotEmpty(t, violations)

	var matches []string
	for _, v := range violations {
		assert.Equal(t, ViolationForbiddenWord, v.Kind)
		assert.Equal(t, "message", v.Field)
		matches = append(matches, v.Match)
	}
	assert.Contains(t, matches, "すぐに")
	assert.Contains(t, matches, "すべき")
}

func TestCheck_PatternFlagged(t *testing.T) {
	violations := Check("message", "あなたは怠け者ですね")

	kinds := map[string]bool{}
	for _, v := range violations {
		kinds[v.Kind] = true
	}
	assert.True(t, kinds[ViolationForbiddenWord], "怠け should match the word list")
	assert.True(t, kinds[ViolationForbiddenPattern], "あなたは...ですね should match the pattern list")
}

func TestCheck_UrgingClosing(t *testing.T) {
	violations := Check("message", "今すぐ整理しましょう")
	require.NotEmpty(t, violations)
	assert.Equal(t, "今すぐ", violations[0].Match)
}

func TestCheck_PositionIsRuneOffset(t *testing.T) {
	violations := Check("message", "ああ必ずやる")
	require.Len(t, violations, 1)
	assert.Equal(t, 2, violations[0].Position)
}

func TestCheckCopy_AllFields(t *testing.T) {
	violations := CheckCopy("絶対に読むこと", "やってみませんか？", []string{"サボらない"})
	fields := map[string]bool{}
	for _, v := range violations {
		fields[v.Field] = true
	}
	assert.True(t, fields["title"])
	assert.False(t, fields["message"])
	assert.True(t, fields["option"])
}

func TestFallback_AllTypesPresent(t *testing.T) {
	types := []string{
		"PLAN_REDUCE", "TASK_MICROSTEP", "PRIORITY_FOCUS", "GOAL_REFRAME",
		"MOTIVATION_REMIND", "AUTONOMY_ADJUST", "RESUME_SUPPORT",
		"VISION_CREATE_ASSIST", "VISION_TO_QUARTER_TRANSLATE", "GOAL_TO_TASK_DRAFT",
	}
	for _, typ := range types {
		c, ok := Fallback(typ)
		require.True(t, ok, typ)
		assert.NotEmpty(t, c.Title)
		assert.NotEmpty(t, c.Message)
		assert.Empty(t, CheckCopy(c.Title, c.Message, nil), "fallback copy for %s must itself pass the tone check", typ)
	}

	_, ok := Fallback("UNKNOWN")
	assert.False(t, ok)
}

func TestRepairInstruction(t *testing.T) {
	assert.Empty(t, RepairInstruction(nil))

	violations := Check("message", "必ずやりましょう")
	instr := RepairInstruction(violations)
	assert.Contains(t, instr, "必ず")
	assert.Contains(t, instr, "message")
}
