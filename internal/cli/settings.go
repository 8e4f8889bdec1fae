package cli

import (
	"time"

	"github.com/spf13/viper"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
	"github.com/Lllllllleong/teacherevaluation/internal/services"
)

// Settings is the evalctl configuration as stored in config.yaml.
type Settings struct {
	ProjectID            string        `yaml:"project_id" mapstructure:"project_id"`
	Region               string        `yaml:"region" mapstructure:"region"`
	Model                string        `yaml:"model" mapstructure:"model"`
	DriveCredentialsFile string        `yaml:"drive_credentials_file" mapstructure:"drive_credentials_file"`
	MaxFiles             int           `yaml:"max_files" mapstructure:"max_files"`
	MaxTextChars         int           `yaml:"max_text_chars" mapstructure:"max_text_chars"`
	RunTimeout           time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`
	PartialConcurrency   int           `yaml:"partial_concurrency" mapstructure:"partial_concurrency"`
	ModelRPM             int           `yaml:"model_rpm" mapstructure:"model_rpm"`
	ModelCallTimeout     time.Duration `yaml:"model_call_timeout" mapstructure:"model_call_timeout"`
	MaxAttempts          int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryBaseDelay       time.Duration `yaml:"retry_base_delay" mapstructure:"retry_base_delay"`
	ArchiveBucket        string        `yaml:"archive_bucket" mapstructure:"archive_bucket"`
	Mode                 string        `yaml:"mode" mapstructure:"mode"`
	ScanURL              string        `yaml:"scan_url" mapstructure:"scan_url"`
	AnalyzeURL           string        `yaml:"analyze_url" mapstructure:"analyze_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("project_id", "")
	v.SetDefault("region", "us-central1")
	v.SetDefault("model", "gemini-1.5-pro")
	v.SetDefault("drive_credentials_file", "")
	v.SetDefault("max_files", services.DefaultMaxFiles)
	v.SetDefault("max_text_chars", services.DefaultMaxTextChars)
	v.SetDefault("run_timeout", 3*time.Minute)
	v.SetDefault("partial_concurrency", 1)
	v.SetDefault("model_rpm", 0)
	v.SetDefault("model_call_timeout", services.DefaultCallTimeout)
	v.SetDefault("max_attempts", services.DefaultMaxAttempts)
	v.SetDefault("retry_base_delay", services.DefaultBaseDelay)
	v.SetDefault("archive_bucket", "")
	v.SetDefault("mode", string(models.ModePartial))
	v.SetDefault("scan_url", "")
	v.SetDefault("analyze_url", "")
}

// loadSettings resolves flags, EVAL_* env, config file and defaults.
func loadSettings(v *viper.Viper) (Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// PipelineConfig converts settings into the pipeline's configuration.
func (s Settings) PipelineConfig() services.PipelineConfig {
	return services.PipelineConfig{
		ProjectID:            s.ProjectID,
		VertexAIRegion:       s.Region,
		ModelName:            s.Model,
		DriveCredentialsFile: s.DriveCredentialsFile,
		MaxFiles:             s.MaxFiles,
		MaxTextChars:         s.MaxTextChars,
		RunTimeout:           s.RunTimeout,
		PartialConcurrency:   s.PartialConcurrency,
		ModelRPM:             s.ModelRPM,
		CallTimeout:          s.ModelCallTimeout,
		MaxAttempts:          s.MaxAttempts,
		BaseDelay:            s.RetryBaseDelay,
		ArchiveBucket:        s.ArchiveBucket,
		Mode:                 models.AnalysisMode(s.Mode),
	}
}
