package model

import "time"

// RuleKind selects the trigger mechanism an invalidation rule is wired to.
type RuleKind string

const (
	// RuleFileChange invalidates the entry when a file matching Pattern
	// (resolved against the entry's target path) changes on disk.
	RuleFileChange RuleKind = "file_change"

	// RuleDependencyUpdate uses the same watch mechanism as RuleFileChange.
	// It is kept as a separate kind for caller clarity and so a later
	// version can diff manifests semantically instead of byte-wise.
	RuleDependencyUpdate RuleKind = "dependency_update"

	// RuleTimeBased expires the entry MaxAge after creation.
	RuleTimeBased RuleKind = "time_based"

	// RuleManual wires no automatic trigger; only explicit Invalidate calls
	// remove the entry.
	RuleManual RuleKind = "manual"
)

// Rule is a declarative invalidation trigger attached to an entry at write
// time. Pattern applies to file-change and dependency-update rules, MaxAge to
// time-based ones.
type Rule struct {
	Kind    RuleKind      `json:"kind"`
	Pattern string        `json:"pattern,omitempty"`
	MaxAge  time.Duration `json:"max_age,omitempty"`
}

func FileChangeRule(pattern string) Rule {
	return Rule{Kind: RuleFileChange, Pattern: pattern}
}

func DependencyUpdateRule(pattern string) Rule {
	return Rule{Kind: RuleDependencyUpdate, Pattern: pattern}
}

func TimeBasedRule(maxAge time.Duration) Rule {
	return Rule{Kind: RuleTimeBased, MaxAge: maxAge}
}

func ManualRule() Rule {
	return Rule{Kind: RuleManual}
}

// IsWatched reports whether the rule needs a filesystem watch.
func (r Rule) IsWatched() bool {
	return r.Kind == RuleFileChange || r.Kind == RuleDependencyUpdate
}
