// Package scoring folds per-criterion rubric scores into a weighted total
// and a qualitative band. It performs no I/O.
package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// Contribution is one criterion's share of the total percentage.
type Contribution struct {
	Criterion models.Criterion `json:"criterion"`
	Score     int              `json:"score"`
	Weighted  float64          `json:"weighted"`
	Evaluated bool             `json:"evaluated"`
}

// Normalize converts a model-returned score mapping into a ScoreSet keyed by
// criterion id. Keys may be ints or stringified ints; values may be numbers,
// numeric strings or json.Number. Every criterion id is present in the
// result, with 0 for anything missing or unreadable.
func Normalize[K ~int | ~string](raw map[K]any) models.ScoreSet {
	scores := make(models.ScoreSet, models.CriterionCount)
	for _, c := range models.Criteria {
		scores[c.ID] = 0
	}
	for k, v := range raw {
		id, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(k)))
		if err != nil {
			continue
		}
		if _, ok := models.CriterionByID(id); !ok {
			continue
		}
		scores[id] = clamp(toInt(v))
	}
	return scores
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(math.Round(n))
	case float32:
		return int(math.Round(float64(n)))
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return int(math.Round(f))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return int(math.Round(f))
	default:
		return 0
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > models.MaxCriterionScore {
		return models.MaxCriterionScore
	}
	return score
}

// Weighted returns each criterion's contribution, (score/5)*weight, in
// criteria order. Absent or zero scores contribute 0.
func Weighted(scores models.ScoreSet, criteria []models.Criterion) []Contribution {
	out := make([]Contribution, 0, len(criteria))
	for _, c := range criteria {
		s := clamp(scores[c.ID])
		out = append(out, Contribution{
			Criterion: c,
			Score:     s,
			Weighted:  float64(s) / models.MaxCriterionScore * c.Weight,
			Evaluated: s > 0,
		})
	}
	return out
}

// Total is the weighted percentage rounded to one decimal place.
func Total(scores models.ScoreSet, criteria []models.Criterion) float64 {
	var sum float64
	for _, c := range Weighted(scores, criteria) {
		sum += c.Weighted
	}
	return Round1(sum)
}

// Round1 rounds to one decimal place. Re-rounding a rounded value is a no-op.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Band classifies a total percentage. Lower edges are inclusive.
func Band(total float64) models.Grade {
	switch {
	case total >= 90:
		return models.GradeExcellent
	case total >= 80:
		return models.GradeVeryGood
	case total >= 70:
		return models.GradeGood
	case total >= 60:
		return models.GradeSatisfactory
	default:
		return models.GradeUnsatisfactory
	}
}

// Apply fills TotalScore and Grade on result from its scores using the
// fixed rubric.
func Apply(result *models.EvaluationResult) {
	if result.Scores == nil {
		result.Scores = Normalize(map[int]any{})
	}
	result.TotalScore = Total(result.Scores, models.Criteria)
	result.Grade = Band(result.TotalScore)
}
