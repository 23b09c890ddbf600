package scenario

import "fmt"

// Difficulty is the three-valued scaffolding tier for a session.
type Difficulty string

// Difficulty tiers. The strings are persisted in session records, so they
// must stay exactly as written.
const (
	DifficultyEasy   Difficulty = "Easy (Tutor Mode)"
	DifficultyMedium Difficulty = "Medium (Hint Mode)"
	DifficultyHard   Difficulty = "Hard (Expert Mode)"
)

// Validate checks that d is a known difficulty tier.
func (d Difficulty) Validate() error {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return nil
	default:
		return fmt.Errorf("unknown difficulty level %q", string(d))
	}
}

// Policy captures every difficulty-conditioned branch of a turn as booleans
// computed once, so individual stages never re-test the raw difficulty string.
type Policy struct {
	SkipAmbiguity     bool // Skip the ambiguity check at turn entry
	SkipConflictCheck bool // Skip conflict re-assessment after each speaker
	SuppressReasons   bool // Blank out conflict reasons in the result
}

// Policy derives the scaffolding policy for this tier. Unknown tiers get the
// Easy policy: full scaffolding is the safe default for a misconfigured session.
func (d Difficulty) Policy() Policy {
	switch d {
	case DifficultyHard:
		return Policy{SkipAmbiguity: true, SkipConflictCheck: true}
	case DifficultyMedium:
		return Policy{SuppressReasons: true}
	case DifficultyEasy:
		return Policy{}
	default:
		return Policy{}
	}
}

// ResponseStyle is the requested verbosity of persona replies.
type ResponseStyle string

// Response styles.
const (
	StyleNormal   ResponseStyle = "Normal"
	StyleConcise  ResponseStyle = "Concise"
	StyleDetailed ResponseStyle = "Detailed"
)

// Instruction returns the style's addition to a persona's system prompt, or
// an empty string for the normal style.
func (rs ResponseStyle) Instruction() string {
	switch rs {
	case StyleConcise:
		return "Keep your responses brief and to the point: a few sentences at most."
	case StyleDetailed:
		return "Respond thoroughly, with concrete details, numbers, and examples where your background provides them."
	default:
		return ""
	}
}
