package tone

// FallbackCopy is the static, pre-vetted copy used when generation and repair
// both fail. Every suggestion type has one.
type FallbackCopy struct {
	Title   string
	Message string
}

var fallbacks = map[string]FallbackCopy{
	"PLAN_REDUCE": {
		Title:   "タスクを整理してみませんか？",
		Message: "今週のタスクが多いようです。いくつかを来週に回すことで、進めやすくなるかもしれません。",
	},
	"TASK_MICROSTEP": {
		Title:   "小さなステップに分けてみませんか？",
		Message: "このタスクを小さなステップに分けることで、始めやすくなる可能性があります。",
	},
	"PRIORITY_FOCUS": {
		Title:   "1つに集中してみませんか？",
		Message: "複数のゴールがあるようです。1つに集中することで、進めやすくなるかもしれません。",
	},
	"GOAL_REFRAME": {
		Title:   "ゴールを見直してみませんか？",
		Message: "ゴールを少し調整することで、進めやすくなる可能性があります。",
	},
	"MOTIVATION_REMIND": {
		Title:   "目指している理由を思い出してみませんか？",
		Message: "なぜこれを目指しているのか、改めて確認することができます。",
	},
	"AUTONOMY_ADJUST": {
		Title:   "提案の頻度を調整できます",
		Message: "提案の頻度を変更することができます。ご自身のペースに合わせて調整してみませんか？",
	},
	"RESUME_SUPPORT": {
		Title:   "小さな一歩から始めてみませんか？",
		Message: "しばらくぶりですね。短時間で終わるタスクから始めてみるのはいかがでしょうか。",
	},
	"VISION_CREATE_ASSIST": {
		Title:   "Visionを作成してみませんか？",
		Message: "目指したい方向を言葉にすることで、次のステップが見えてくるかもしれません。",
	},
	"VISION_TO_QUARTER_TRANSLATE": {
		Title:   "Visionから四半期ゴールを作成してみませんか？",
		Message: "Visionを具体的な四半期ゴールに落とし込むことができます。",
	},
	"GOAL_TO_TASK_DRAFT": {
		Title:   "ゴールからタスクを作成してみませんか？",
		Message: "ゴールを具体的なタスクに分解することで、次に何をするか明確になるかもしれません。",
	},
}

// Fallback returns the static copy for a suggestion type. ok is false for an
// unknown type.
func Fallback(suggestionType string) (FallbackCopy, bool) {
	c, ok := fallbacks[suggestionType]
	return c, ok
}
