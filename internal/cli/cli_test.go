package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

func TestParseScores(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[int]int
	}{
		{name: "result object", in: `{"scores":{"1":5,"2":"4","11":3.6},"grade":"x"}`, want: map[int]int{1: 5, 2: 4, 11: 4}},
		{name: "bare mapping", in: `{"3":2,"10":9}`, want: map[int]int{3: 2, 10: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores, err := parseScores([]byte(tt.in))
			require.NoError(t, err)
			assert.Len(t, scores, models.CriterionCount)
			for id, want := range tt.want {
				assert.Equal(t, want, scores[id], "criterion %d", id)
			}
		})
	}

	_, err := parseScores([]byte(`[5,5,5]`))
	assert.Error(t, err)
}

func TestScoreCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(`{"1":5,"2":5,"3":5,"4":5,"5":5,"6":5,"7":5,"8":5,"9":5,"10":5,"11":5}`))
	rootCmd.SetArgs([]string{"score", "-"})
	t.Cleanup(func() {
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Total: 100.0%")
	assert.Contains(t, out.String(), string(models.GradeExcellent))
	assert.Contains(t, out.String(), models.Criteria[0].Label)
}

func TestPrintSummary_UnevaluatedCriteria(t *testing.T) {
	var out bytes.Buffer
	scores, err := parseScores([]byte(`{"1":3}`))
	require.NoError(t, err)

	printSummary(&out, &models.EvaluationResult{Scores: scores, TotalScore: 6, Grade: models.GradeUnsatisfactory})
	lines := strings.Split(out.String(), "\n")
	assert.Contains(t, lines[1], "3/5")
	assert.Contains(t, lines[2], "-")
	assert.Contains(t, out.String(), "Total: 6.0%")
}

func TestLoadSettings_Layering(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("EVAL")
	v.AutomaticEnv()
	t.Setenv("EVAL_PROJECT_ID", "proj-from-env")
	t.Setenv("EVAL_RUN_TIMEOUT", "90s")
	t.Setenv("EVAL_MODEL_CALL_TIMEOUT", "2m")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("project_id: proj-from-file\nmax_files: 4\nmode: direct\n"), 0o600))
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	s, err := loadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, "proj-from-env", s.ProjectID)
	assert.Equal(t, 90*time.Second, s.RunTimeout)
	assert.Equal(t, 4, s.MaxFiles)
	assert.Equal(t, "direct", s.Mode)
	assert.Equal(t, "us-central1", s.Region)

	cfg := s.PipelineConfig()
	assert.Equal(t, models.ModeDirect, cfg.Mode)
	assert.Equal(t, 4, cfg.MaxFiles)
	assert.Equal(t, 2*time.Minute, cfg.CallTimeout)
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	s, err := loadSettings(v)
	require.NoError(t, err)
	assert.Equal(t, 10, s.MaxFiles)
	assert.Equal(t, 5*time.Second, s.RetryBaseDelay)
	assert.Equal(t, "partial", s.Mode)

	assert.Error(t, writeDefaultConfig(path), "existing file must not be overwritten")
}
