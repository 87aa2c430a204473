package models

import "time"

type Period string

const (
	PeriodWeekly    Period = "WEEKLY"
	PeriodMonthly   Period = "MONTHLY"
	PeriodQuarterly Period = "QUARTERLY"
	PeriodYearly    Period = "YEARLY"
)

// Valid reports whether p is one of the closed set of spending periods.
func (p Period) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly:
		return true
	}
	return false
}

type ReviewRoute string

const (
	ReviewAutoApprove  ReviewRoute = "AUTO_APPROVE"
	ReviewManualReview ReviewRoute = "MANUAL_REVIEW"
)

// Valid reports whether r is one of the closed set of review routes.
func (r ReviewRoute) Valid() bool {
	return r == ReviewAutoApprove || r == ReviewManualReview
}

// Policy is a spending limit scoped to an organization and category.
// A nil UserID makes the policy org-wide; a concrete UserID makes it a
// per-user override. At most one of each exists per (org, category),
// enforced by the storage layer.
type Policy struct {
	ID             string      `json:"id" db:"id"`
	OrganizationID string      `json:"organization_id" db:"organization_id"`
	CategoryID     string      `json:"category_id" db:"category_id"`
	UserID         *string     `json:"user_id,omitempty" db:"user_id"`
	Name           string      `json:"name" db:"name"`
	Description    string      `json:"description,omitempty" db:"description"`
	MaxAmount      float64     `json:"max_amount" db:"max_amount"`
	Period         Period      `json:"period" db:"period"`
	ReviewRoute    ReviewRoute `json:"review_route" db:"review_route"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// OrgWide reports whether the policy applies to every member of the org.
func (p *Policy) OrgWide() bool {
	return p.UserID == nil
}

// PolicyWithRelations is a policy joined with its category name and, for
// per-user policies, the target user's name and email
type PolicyWithRelations struct {
	Policy
	CategoryName string  `json:"category_name" db:"category_name"`
	UserName     *string `json:"user_name,omitempty" db:"user_name"`
	UserEmail    *string `json:"user_email,omitempty" db:"user_email"`
}
