package review

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const criterionColumns = "id, code, name, COALESCE(category, ''), weight, max_score, is_required, sort_order, active, created_at"

const reviewColumns = `id, employee_id, reviewer_id, period, start_date, end_date, status, total_score, grade,
    COALESCE(strengths, ''), COALESCE(weaknesses, ''), COALESCE(goals, ''), COALESCE(comments, ''), created_at`

func scanReview(row pgx.Row) (Review, error) {
	var r Review
	err := row.Scan(&r.ID, &r.EmployeeID, &r.ReviewerID, &r.Period, &r.StartDate, &r.EndDate, &r.Status,
		&r.TotalScore, &r.Grade, &r.Strengths, &r.Weaknesses, &r.Goals, &r.Comments, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Review{}, ErrNotFound
	}
	return r, err
}

func (s *Store) CreateCriterion(ctx context.Context, tenantID string, c Criterion) (Criterion, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO review_criteria (tenant_id, code, name, category, weight, max_score, is_required, sort_order, active)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING `+criterionColumns+`
  `, tenantID, c.Code, c.Name, nullIfEmpty(c.Category), c.Weight, c.MaxScore, c.IsRequired, c.SortOrder, c.Active)

	var created Criterion
	err := row.Scan(&created.ID, &created.Code, &created.Name, &created.Category, &created.Weight,
		&created.MaxScore, &created.IsRequired, &created.SortOrder, &created.Active, &created.CreatedAt)
	return created, err
}

func (s *Store) ListCriteria(ctx context.Context, tenantID string, activeOnly bool) ([]Criterion, error) {
	query := `
    SELECT ` + criterionColumns + `
    FROM review_criteria
    WHERE tenant_id = $1
  `
	if activeOnly {
		query += " AND active"
	}
	query += " ORDER BY sort_order, code"

	rows, err := s.DB.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var criteria []Criterion
	for rows.Next() {
		var c Criterion
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Category, &c.Weight, &c.MaxScore, &c.IsRequired, &c.SortOrder, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		criteria = append(criteria, c)
	}
	return criteria, rows.Err()
}

func (s *Store) CreateReview(ctx context.Context, tenantID string, r Review) (Review, error) {
	return scanReview(s.DB.QueryRow(ctx, `
    INSERT INTO reviews (tenant_id, employee_id, period, start_date, end_date, status)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING `+reviewColumns+`
  `, tenantID, r.EmployeeID, r.Period, r.StartDate, r.EndDate, r.Status))
}

func (s *Store) GetReview(ctx context.Context, tenantID, reviewID string) (Review, error) {
	return scanReview(s.DB.QueryRow(ctx, `
    SELECT `+reviewColumns+`
    FROM reviews
    WHERE tenant_id = $1 AND id = $2
  `, tenantID, reviewID))
}

func (s *Store) ListReviews(ctx context.Context, tenantID, employeeID string, limit, offset int) ([]Review, int, error) {
	where := "tenant_id = $1"
	args := []any{tenantID}
	if employeeID != "" {
		where += " AND employee_id = $2"
		args = append(args, employeeID)
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM reviews WHERE "+where, args...).Scan(&total); err != nil {
		total = 0
	}

	query := `
    SELECT ` + reviewColumns + `
    FROM reviews
    WHERE ` + where + `
    ORDER BY created_at DESC, id
  `
	args = append(args, limit, offset)
	if employeeID != "" {
		query += " LIMIT $3 OFFSET $4"
	} else {
		query += " LIMIT $2 OFFSET $3"
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.ReviewerID, &r.Period, &r.StartDate, &r.EndDate, &r.Status,
			&r.TotalScore, &r.Grade, &r.Strengths, &r.Weaknesses, &r.Goals, &r.Comments, &r.CreatedAt); err != nil {
			return nil, 0, err
		}
		reviews = append(reviews, r)
	}
	return reviews, total, rows.Err()
}

func (s *Store) ListScores(ctx context.Context, tenantID, reviewID string) ([]ReviewScore, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT rs.criterion_id, rs.score, rs.weighted_score
    FROM review_scores rs
    JOIN reviews r ON r.id = rs.review_id
    WHERE r.tenant_id = $1 AND rs.review_id = $2
    ORDER BY rs.criterion_id
  `, tenantID, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []ReviewScore
	for rows.Next() {
		var sc ReviewScore
		if err := rows.Scan(&sc.CriterionID, &sc.Score, &sc.WeightedScore); err != nil {
			return nil, err
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// ReplaceScores swaps the score rows and the computed totals in one
// transaction so a review never carries a partial score set.
func (s *Store) ReplaceScores(ctx context.Context, tenantID, reviewID, reviewerID string, scores []ReviewScore, total float64, grade Grade) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
    UPDATE reviews
    SET total_score = $1, grade = $2, reviewer_id = COALESCE(NULLIF($3, '')::uuid, reviewer_id)
    WHERE tenant_id = $4 AND id = $5
  `, total, grade, reviewerID, tenantID, reviewID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, "DELETE FROM review_scores WHERE review_id = $1", reviewID); err != nil {
		return err
	}
	for _, sc := range scores {
		if _, err := tx.Exec(ctx, `
      INSERT INTO review_scores (review_id, criterion_id, score, weighted_score)
      VALUES ($1,$2,$3,$4)
    `, reviewID, sc.CriterionID, sc.Score, sc.WeightedScore); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) UpdateStatus(ctx context.Context, tenantID, reviewID string, from, to ReviewStatus) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE reviews
    SET status = $1
    WHERE tenant_id = $2 AND id = $3 AND status = $4
  `, to, tenantID, reviewID, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) UpdateAssessment(ctx context.Context, tenantID, reviewID string, n Narrative) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE reviews
    SET strengths = $1, weaknesses = $2, goals = $3, comments = $4
    WHERE tenant_id = $5 AND id = $6
  `, nullIfEmpty(n.Strengths), nullIfEmpty(n.Weaknesses), nullIfEmpty(n.Goals), nullIfEmpty(n.Comments), tenantID, reviewID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
