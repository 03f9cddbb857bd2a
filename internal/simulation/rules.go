package simulation

import (
	"fmt"

	"capkv/internal/dsm"
)

// Rule names an inconsistency the counter observer can detect.
type Rule string

const (
	RuleWentBackwards  Rule = "went_backwards"
	RuleUnexpectedJump Rule = "unexpected_jump"
	RuleDivergence     Rule = "divergence"
	RuleNotLatest      Rule = "not_latest"
)

// apDivergence is how far an AP counter may trail the largest counter seen in
// the same round before it counts as diverged.
const apDivergence = 2

// Violation describes one detected inconsistency.
type Violation struct {
	Rule    Rule
	Counter string
	Last    int
	Current int
	Max     int
}

func (v Violation) String() string {
	switch v.Rule {
	case RuleWentBackwards:
		return fmt.Sprintf("counter %s went back from %d to %d", v.Counter, v.Last, v.Current)
	case RuleUnexpectedJump:
		return fmt.Sprintf("own counter %s jumped from %d to %d", v.Counter, v.Last, v.Current)
	case RuleDivergence:
		return fmt.Sprintf("counter %s is %d, maximum is %d", v.Counter, v.Current, v.Max)
	default:
		return fmt.Sprintf("counter %s is %d, should be %d", v.Counter, v.Current, v.Max)
	}
}

// Check applies the rules in order and reports the first one violated.
// last is the value this observer saw before, highest the largest counter read in
// the current round, own whether the counter belongs to the observer's node.
func Check(variant dsm.Variant, counter string, own bool, last, current, highest int) (Violation, bool) {
	v := Violation{Counter: counter, Last: last, Current: current, Max: highest}

	switch {
	case current < last:
		v.Rule = RuleWentBackwards
	case own && current > last+1:
		v.Rule = RuleUnexpectedJump
	case variant == dsm.AP && current < highest-apDivergence:
		v.Rule = RuleDivergence
	case variant != dsm.AP && highest > 0 && current != highest:
		v.Rule = RuleNotLatest
	default:
		return Violation{}, false
	}
	return v, true
}
