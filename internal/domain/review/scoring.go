package review

import "fmt"

// GradeFor maps a total weighted score to its letter band. Bands are
// inclusive at the lower bound: exactly 90.0 is an A, 89.999 a B.
func GradeFor(total float64) Grade {
	switch {
	case total >= 90:
		return GradeA
	case total >= 80:
		return GradeB
	case total >= 70:
		return GradeC
	case total >= 60:
		return GradeD
	default:
		return GradeE
	}
}

// ComputeScores validates the submitted raw scores against the active
// criteria and returns the weighted rows plus the total. Criteria omitted
// from the input contribute zero, but required criteria must be present.
func ComputeScores(criteria []Criterion, inputs []ScoreInput) ([]ReviewScore, float64, error) {
	byID := make(map[string]Criterion, len(criteria))
	for _, c := range criteria {
		byID[c.ID] = c
	}

	seen := make(map[string]bool, len(inputs))
	rows := make([]ReviewScore, 0, len(inputs))
	total := 0.0
	for _, input := range inputs {
		criterion, ok := byID[input.CriterionID]
		if !ok || !criterion.Active {
			return nil, 0, fmt.Errorf("%w: unknown or inactive criterion %s", ErrValidation, input.CriterionID)
		}
		if seen[input.CriterionID] {
			return nil, 0, fmt.Errorf("%w: duplicate criterion %s", ErrValidation, input.CriterionID)
		}
		seen[input.CriterionID] = true

		if input.Score < 0 || input.Score > float64(criterion.MaxScore) {
			return nil, 0, fmt.Errorf("%w: %s got %.2f, max %d", ErrScoreOutOfRange, criterion.Code, input.Score, criterion.MaxScore)
		}

		weighted := input.Score / float64(criterion.MaxScore) * criterion.Weight
		rows = append(rows, ReviewScore{
			CriterionID:   input.CriterionID,
			Score:         input.Score,
			WeightedScore: weighted,
		})
		total += weighted
	}

	for _, c := range criteria {
		if c.Active && c.IsRequired && !seen[c.ID] {
			return nil, 0, fmt.Errorf("%w: %s", ErrIncompleteScoring, c.Code)
		}
	}

	return rows, total, nil
}

// ActiveWeightSum is used for the advisory weight check on criterion
// writes; the scoring path itself never enforces it.
func ActiveWeightSum(criteria []Criterion) float64 {
	sum := 0.0
	for _, c := range criteria {
		if c.Active {
			sum += c.Weight
		}
	}
	return sum
}
