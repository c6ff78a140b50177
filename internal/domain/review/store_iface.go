package review

import "context"

type StoreAPI interface {
	CreateCriterion(ctx context.Context, tenantID string, c Criterion) (Criterion, error)
	ListCriteria(ctx context.Context, tenantID string, activeOnly bool) ([]Criterion, error)
	CreateReview(ctx context.Context, tenantID string, r Review) (Review, error)
	GetReview(ctx context.Context, tenantID, reviewID string) (Review, error)
	ListReviews(ctx context.Context, tenantID, employeeID string, limit, offset int) ([]Review, int, error)
	ListScores(ctx context.Context, tenantID, reviewID string) ([]ReviewScore, error)
	ReplaceScores(ctx context.Context, tenantID, reviewID, reviewerID string, scores []ReviewScore, total float64, grade Grade) error
	UpdateStatus(ctx context.Context, tenantID, reviewID string, from, to ReviewStatus) (bool, error)
	UpdateAssessment(ctx context.Context, tenantID, reviewID string, n Narrative) error
}
