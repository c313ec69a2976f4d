// Package segment evaluates audience rules against subscriber metadata.
//
// Rules are combined with logical AND. Resolution reads live metadata, so the
// same rule list may select a different audience after subscribers change.
package segment

import (
	"fmt"
	"strings"

	"github.com/chirpy-labs/chirpy-push/internal/model"
)

// Fields lists the metadata fields understood without falling back to
// free-form attributes.
var Fields = []string{"platform", "browser", "country", "city", "language", "timezone"}

// Resolve returns the subscribers matching every rule, preserving input order.
// An empty rule list returns the input unchanged.
func Resolve(subscribers []*model.Subscriber, rules []model.Rule) []*model.Subscriber {
	if len(rules) == 0 {
		return subscribers
	}
	out := make([]*model.Subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		if MatchesAll(sub, rules) {
			out = append(out, sub)
		}
	}
	return out
}

// MatchesAll reports whether a subscriber satisfies every rule.
func MatchesAll(sub *model.Subscriber, rules []model.Rule) bool {
	for _, rule := range rules {
		if !Matches(sub, rule) {
			return false
		}
	}
	return true
}

// Matches evaluates one rule. is/is_not compare exactly; contains/not_contains
// compare case-insensitively. An unrecognised operator never matches.
func Matches(sub *model.Subscriber, rule model.Rule) bool {
	value := sub.Metadata.Field(rule.Field)
	switch rule.Operator {
	case model.OpIs:
		return value == rule.Value
	case model.OpIsNot:
		return value != rule.Value
	case model.OpContains:
		return strings.Contains(strings.ToLower(value), strings.ToLower(rule.Value))
	case model.OpNotContains:
		return !strings.Contains(strings.ToLower(value), strings.ToLower(rule.Value))
	}
	return false
}

// ValidateRules checks that every rule names a field and a known operator.
func ValidateRules(rules []model.Rule) error {
	for i, rule := range rules {
		if strings.TrimSpace(rule.Field) == "" {
			return fmt.Errorf("rule %d: field is required", i)
		}
		switch rule.Operator {
		case model.OpIs, model.OpIsNot, model.OpContains, model.OpNotContains:
		default:
			return fmt.Errorf("rule %d: unknown operator %q", i, rule.Operator)
		}
	}
	return nil
}
