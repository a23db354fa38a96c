// Package budget divides a token budget across the sections of a context
// bundle and packs content into each section.
package budget

import (
	"fmt"

	"ctxasm/internal/errors"
	"ctxasm/internal/model"
)

// Split holds the percentage of the budget given to each section. Slack is
// never spent.
type Split struct {
	History      int `json:"history" mapstructure:"history"`
	Config       int `json:"config" mapstructure:"config"`
	Relevant     int `json:"relevant" mapstructure:"relevant"`
	Dependencies int `json:"dependencies" mapstructure:"dependencies"`
	Slack        int `json:"slack" mapstructure:"slack"`
}

// DefaultSplit is 20/10/40/20/10.
func DefaultSplit() Split {
	return Split{History: 20, Config: 10, Relevant: 40, Dependencies: 20, Slack: 10}
}

// Validate requires non-negative shares summing to 100.
func (s Split) Validate() error {
	for name, v := range map[string]int{
		"history": s.History, "config": s.Config, "relevant": s.Relevant,
		"dependencies": s.Dependencies, "slack": s.Slack,
	} {
		if v < 0 {
			return errors.New(errors.InvalidInput, fmt.Sprintf("budget split %s must be >= 0, got %d", name, v), nil)
		}
	}
	if sum := s.History + s.Config + s.Relevant + s.Dependencies + s.Slack; sum != 100 {
		return errors.New(errors.InvalidInput, fmt.Sprintf("budget split must sum to 100, got %d", sum), nil)
	}
	return nil
}

// SubBudgets are token amounts derived from a Split.
type SubBudgets struct {
	History      int
	Config       int
	Relevant     int
	Dependencies int
	Slack        int
}

// Divide computes the sub-budgets of total. Every share is floored and the
// dependencies section takes the remainder after slack, so rounding never
// eats into slack.
func (s Split) Divide(total int) SubBudgets {
	if total <= 0 {
		return SubBudgets{}
	}
	sb := SubBudgets{
		History:  total * s.History / 100,
		Config:   total * s.Config / 100,
		Relevant: total * s.Relevant / 100,
		Slack:    total * s.Slack / 100,
	}
	sb.Dependencies = total - sb.Slack - sb.History - sb.Config - sb.Relevant
	return sb
}

// EstimateTokens approximates the token count of s as ceil(bytes/4).
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// Reason describes a relevance score and category, e.g.
// "highly relevant component".
func Reason(similarity float64, category model.Category) string {
	band := "related"
	switch {
	case similarity > 0.8:
		band = "highly relevant"
	case similarity > 0.6:
		band = "relevant"
	}
	if category == "" {
		category = model.CategoryOther
	}
	return band + " " + category.String()
}
