package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
	"github.com/Lllllllleong/teacherevaluation/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score <scores.json|->",
	Short: "Compute the weighted total and grade for a set of criterion scores",
	Long: `Score reads criterion scores and applies the fixed rubric without
calling any model. The input is either an evaluation result
({"scores": {"1": 4, ...}}) or a bare mapping of criterion id to score.
Missing criteria count as 0; scores are clamped to 0-5.

Example:
  evalctl score result.json
  echo '{"1":5,"2":4}' | evalctl score -`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	scores, err := parseScores(data)
	if err != nil {
		return err
	}

	result := &models.EvaluationResult{Scores: scores}
	scoring.Apply(result)
	printSummary(cmd.OutOrStdout(), result)
	return nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// parseScores accepts a result object with a "scores" field or a bare
// id-to-score mapping.
func parseScores(data []byte) (models.ScoreSet, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("input is not a JSON object: %w", err)
	}
	if nested, ok := raw["scores"].(map[string]any); ok {
		raw = nested
	}
	return scoring.Normalize(raw), nil
}

func printSummary(w io.Writer, result *models.EvaluationResult) {
	if result == nil {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCRITERION\tWEIGHT\tSCORE\tPOINTS")
	for _, c := range scoring.Weighted(result.Scores, models.Criteria) {
		score := "-"
		if c.Evaluated {
			score = fmt.Sprintf("%d/%d", c.Score, models.MaxCriterionScore)
		}
		fmt.Fprintf(tw, "%d\t%s\t%.0f\t%s\t%.1f\n", c.Criterion.ID, c.Criterion.Label, c.Criterion.Weight, score, c.Weighted)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\nTotal: %.1f%%\nGrade: %s\n", result.TotalScore, result.Grade)
}
