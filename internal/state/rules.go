package state

// Behavioral state types. The order of AllStates is the tie-break order:
// when two states score equal, the earlier one wins.
const (
	StateNormal          = "NORMAL"
	StateOverload        = "OVERLOAD"
	StateStuck           = "STUCK"
	StateVisionOverload  = "VISION_OVERLOAD"
	StatePlanOverload    = "PLAN_OVERLOAD"
	StateAutonomyReact   = "AUTONOMY_REACTANCE"
	StateLowMotivation   = "LOW_MOTIVATION"
	StateLowSelfEfficacy = "LOW_SELF_EFFICACY"
)

// AllStates lists every scored state in fixed evaluation order.
var AllStates = []string{
	StateOverload,
	StateStuck,
	StateVisionOverload,
	StatePlanOverload,
	StateAutonomyReact,
	StateLowMotivation,
	StateLowSelfEfficacy,
}

// Score is one state's result: an additive 0-100 score and the signal tags
// that contributed.
type Score struct {
	Type    string   `json:"type"`
	Score   int      `json:"score"`
	Signals []string `json:"signals"`
}

// Each metric contributes through exactly one tier of its ladder; a value
// matching the top tier never also counts the lower one.

func scoreOverload(s *Signals) Score {
	score := 0
	var tags []string

	if s.OverdueCount >= 5 {
		score += 30
		tags = append(tags, "overdue_tasks_high")
	} else if s.OverdueCount >= 3 {
		score += 15
		tags = append(tags, "overdue_tasks_medium")
	}

	if s.CompletionRate <= 0.3 {
		score += 20
		tags = append(tags, "completion_rate_low")
	} else if s.CompletionRate <= 0.5 {
		score += 10
		tags = append(tags, "completion_rate_medium")
	}

	if s.PostponeCount >= 3 {
		score += 15
		tags = append(tags, "postpone_frequent")
	}

	if s.Stress != nil && *s.Stress >= 8 {
		score += 20
		tags = append(tags, "stress_very_high")
	} else if s.Stress != nil && *s.Stress >= 6 {
		score += 10
		tags = append(tags, "stress_high")
	}

	if s.Capacity != nil && *s.Capacity <= 3 {
		score += 10
		tags = append(tags, "capacity_low")
	}

	return Score{Type: StateOverload, Score: clamp(score), Signals: tags}
}

func scoreStuck(s *Signals) Score {
	score := 0
	var tags []string

	if s.InactiveDays >= 7 {
		score += 40
		tags = append(tags, "inactive_week")
	} else if s.InactiveDays >= 5 {
		score += 30
		tags = append(tags, "inactive_5days")
	} else if s.InactiveDays >= 3 {
		score += 20
		tags = append(tags, "inactive_3days")
	}

	if s.PostponeCount >= 3 {
		score += 15
		tags = append(tags, "postpone_frequent")
	}

	if s.Efficacy != nil && *s.Efficacy <= 3 {
		score += 20
		tags = append(tags, "efficacy_very_low")
	} else if s.Efficacy != nil && *s.Efficacy <= 5 {
		score += 10
		tags = append(tags, "efficacy_low")
	}

	if s.Clarity != nil && *s.Clarity <= 3 {
		score += 15
		tags = append(tags, "clarity_low")
	}

	return Score{Type: StateStuck, Score: clamp(score), Signals: tags}
}

func scoreVisionOverload(s *Signals) Score {
	score := 0
	var tags []string

	if s.ActiveVisionCount >= 10 {
		score += 40
		tags = append(tags, "vision_count_very_high")
	} else if s.ActiveVisionCount >= 6 {
		score += 25
		tags = append(tags, "vision_count_high")
	}

	if s.Clarity != nil && *s.Clarity <= 4 {
		score += 20
		tags = append(tags, "clarity_low")
	}

	return Score{Type: StateVisionOverload, Score: clamp(score), Signals: tags}
}

func scorePlanOverload(s *Signals) Score {
	score := 0
	var tags []string

	if s.WeekTaskCount >= 15 {
		score += 35
		tags = append(tags, "week_tasks_very_high")
	} else if s.WeekTaskCount >= 10 {
		score += 20
		tags = append(tags, "week_tasks_high")
	}

	if s.CompletionRate <= 0.4 {
		score += 20
		tags = append(tags, "completion_rate_low")
	}

	if s.Stress != nil && *s.Stress >= 7 {
		score += 15
		tags = append(tags, "stress_high")
	}

	return Score{Type: StatePlanOverload, Score: clamp(score), Signals: tags}
}

func scoreReactance(s *Signals) Score {
	score := 0
	var tags []string

	if s.RejectRate >= 0.7 {
		score += 40
		tags = append(tags, "reject_rate_very_high")
	} else if s.RejectRate >= 0.5 {
		score += 25
		tags = append(tags, "reject_rate_high")
	}

	if s.Annoyance != nil && *s.Annoyance >= 7 {
		score += 30
		tags = append(tags, "annoyance_high")
	} else if s.Annoyance != nil && *s.Annoyance >= 5 {
		score += 15
		tags = append(tags, "annoyance_medium")
	}

	return Score{Type: StateAutonomyReact, Score: clamp(score), Signals: tags}
}

func scoreLowMotivation(s *Signals) Score {
	score := 0
	var tags []string

	if s.Motivation != nil && *s.Motivation <= 3 {
		score += 40
		tags = append(tags, "motivation_very_low")
	} else if s.Motivation != nil && *s.Motivation <= 5 {
		score += 20
		tags = append(tags, "motivation_low")
	}

	if s.InactiveDays >= 5 {
		score += 20
		tags = append(tags, "inactive_5days")
	}

	if s.CompletionRate <= 0.3 {
		score += 15
		tags = append(tags, "completion_rate_low")
	}

	return Score{Type: StateLowMotivation, Score: clamp(score), Signals: tags}
}

func scoreLowSelfEfficacy(s *Signals) Score {
	score := 0
	var tags []string

	if s.Efficacy != nil && *s.Efficacy <= 3 {
		score += 40
		tags = append(tags, "efficacy_very_low")
	} else if s.Efficacy != nil && *s.Efficacy <= 5 {
		score += 20
		tags = append(tags, "efficacy_low")
	}

	if s.PostponeCount >= 3 {
		score += 20
		tags = append(tags, "postpone_frequent")
	}

	if s.CompletionRate <= 0.3 {
		score += 15
		tags = append(tags, "completion_rate_low")
	}

	return Score{Type: StateLowSelfEfficacy, Score: clamp(score), Signals: tags}
}

// ScoreAll evaluates every state against the signals, keyed by state type.
func ScoreAll(s *Signals) map[string]Score {
	return map[string]Score{
		StateOverload:        scoreOverload(s),
		StateStuck:           scoreStuck(s),
		StateVisionOverload:  scoreVisionOverload(s),
		StatePlanOverload:    scorePlanOverload(s),
		StateAutonomyReact:   scoreReactance(s),
		StateLowMotivation:   scoreLowMotivation(s),
		StateLowSelfEfficacy: scoreLowSelfEfficacy(s),
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
