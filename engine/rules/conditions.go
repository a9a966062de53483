// Package rules evaluates dialogue gating conditions against player state.
// Evaluation is pure: no logging, no writes, and anything it does not
// understand evaluates to false.
package rules

import (
	"github.com/nathoo/parley/engine/state"
	"github.com/nathoo/parley/types"
)

// evaluator pairs a payload check with the predicate itself. A condition
// whose payload fails the check is malformed and evaluates to false.
type evaluator struct {
	valid func(c types.Condition) bool
	eval  func(c types.Condition, v state.View) bool
}

// evaluators is the closed set of condition kinds.
var evaluators map[types.ConditionKind]evaluator

func init() {
	hasFlag := func(c types.Condition) bool { return c.Flag != "" }
	hasNPC := func(c types.Condition) bool { return c.NPC != "" }
	hasCounter := func(c types.Condition) bool { return c.Counter != "" }

	evaluators = map[types.ConditionKind]evaluator{
		types.CondAlways: {
			valid: func(types.Condition) bool { return true },
			eval:  func(types.Condition, state.View) bool { return true },
		},
		types.CondFlagSet: {
			valid: hasFlag,
			eval:  func(c types.Condition, v state.View) bool { return v.GetFlag(c.Flag) },
		},
		types.CondFlagNot: {
			valid: hasFlag,
			eval:  func(c types.Condition, v state.View) bool { return !v.GetFlag(c.Flag) },
		},
		types.CondFlagIs: {
			valid: hasFlag,
			eval:  func(c types.Condition, v state.View) bool { return v.GetFlag(c.Flag) == c.Value },
		},
		types.CondHasItem: {
			valid: func(c types.Condition) bool { return c.Item != "" },
			eval:  func(c types.Condition, v state.View) bool { return v.HasItem(c.Item) },
		},
		types.CondCounterGt: {
			valid: hasCounter,
			eval:  func(c types.Condition, v state.View) bool { return v.GetCounter(c.Counter) > c.Threshold },
		},
		types.CondCounterLt: {
			valid: hasCounter,
			eval:  func(c types.Condition, v state.View) bool { return v.GetCounter(c.Counter) < c.Threshold },
		},
		types.CondRelationshipAtLeast: {
			valid: hasNPC,
			eval:  func(c types.Condition, v state.View) bool { return v.GetRelationship(c.NPC) >= c.Threshold },
		},
		types.CondRelationshipBelow: {
			valid: hasNPC,
			eval:  func(c types.Condition, v state.View) bool { return v.GetRelationship(c.NPC) < c.Threshold },
		},
		// Not(malformed) is malformed too, so a bad inner never inverts to true.
		types.CondNot: {
			valid: func(c types.Condition) bool { return c.Inner != nil && WellFormed(*c.Inner) },
			eval:  func(c types.Condition, v state.View) bool { return !EvalCondition(*c.Inner, v) },
		},
	}
}

// EvalCondition evaluates a single condition against the player state.
func EvalCondition(c types.Condition, v state.View) bool {
	e, ok := evaluators[c.Kind]
	if !ok || !e.valid(c) {
		return false
	}
	return e.eval(c, v)
}

// EvalAllConditions returns true if all conditions pass (AND logic).
// An empty condition list is vacuously true.
func EvalAllConditions(conditions []types.Condition, v state.View) bool {
	for _, c := range conditions {
		if !EvalCondition(c, v) {
			return false
		}
	}
	return true
}

// Known reports whether kind has an evaluator.
func Known(kind types.ConditionKind) bool {
	_, ok := evaluators[kind]
	return ok
}

// WellFormed reports whether c has a known kind and the payload that kind needs.
func WellFormed(c types.Condition) bool {
	e, ok := evaluators[c.Kind]
	return ok && e.valid(c)
}
