package model

import "time"

// Rule operators.
const (
	OpIs          = "is"
	OpIsNot       = "is_not"
	OpContains    = "contains"
	OpNotContains = "not_contains"
)

// Segment is a named audience filter scoped to a website.
type Segment struct {
	ID        string    `json:"id"`
	WebsiteID string    `json:"websiteId"`
	Name      string    `json:"name"`
	Rules     []Rule    `json:"rules"`
	CreatedAt time.Time `json:"createdAt"`
}

// Rule compares one metadata field against a value.
type Rule struct {
	Field    string `json:"field" validate:"required"`
	Operator string `json:"operator" validate:"required,oneof=is is_not contains not_contains"`
	Value    string `json:"value"`
}
