package review

import (
	"errors"
	"time"
)

type ReviewStatus string

const (
	StatusDraft        ReviewStatus = "draft"
	StatusSubmitted    ReviewStatus = "submitted"
	StatusReviewed     ReviewStatus = "reviewed"
	StatusAcknowledged ReviewStatus = "acknowledged"
)

type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeE Grade = "E"
)

// Criterion is one weighted scoring dimension. Weight is a percentage
// share of the total; the active weights are expected to sum to 100 by
// administrative convention.
type Criterion struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Weight     float64   `json:"weight"`
	MaxScore   int       `json:"maxScore"`
	IsRequired bool      `json:"isRequired"`
	SortOrder  int       `json:"sortOrder"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Review struct {
	ID         string       `json:"id"`
	EmployeeID string       `json:"employeeId"`
	ReviewerID *string      `json:"reviewerId,omitempty"`
	Period     string       `json:"period"`
	StartDate  time.Time    `json:"startDate"`
	EndDate    time.Time    `json:"endDate"`
	Status     ReviewStatus `json:"status"`
	TotalScore *float64     `json:"totalScore,omitempty"`
	Grade      *Grade       `json:"grade,omitempty"`
	Strengths  string       `json:"strengths,omitempty"`
	Weaknesses string       `json:"weaknesses,omitempty"`
	Goals      string       `json:"goals,omitempty"`
	Comments   string       `json:"comments,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// Narrative carries the free-text part of an assessment.
type Narrative struct {
	Strengths  string `json:"strengths,omitempty"`
	Weaknesses string `json:"weaknesses,omitempty"`
	Goals      string `json:"goals,omitempty"`
	Comments   string `json:"comments,omitempty"`
}

type ScoreInput struct {
	CriterionID string  `json:"criterionId"`
	Score       float64 `json:"score"`
}

type ReviewScore struct {
	CriterionID   string  `json:"criterionId"`
	Score         float64 `json:"score"`
	WeightedScore float64 `json:"weightedScore"`
}

var (
	ErrNotFound          = errors.New("review not found")
	ErrScoreOutOfRange   = errors.New("score out of range")
	ErrIncompleteScoring = errors.New("required criteria missing from scoring input")
	ErrInvalidState      = errors.New("review is not in a scorable state")
	ErrValidation        = errors.New("invalid scoring input")
)
