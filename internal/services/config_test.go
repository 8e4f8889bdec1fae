package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

func TestLoadPipelineConfig_Defaults(t *testing.T) {
	cfg := LoadPipelineConfig()

	assert.Equal(t, DefaultMaxFiles, cfg.MaxFiles)
	assert.Equal(t, DefaultRunTimeout, cfg.RunTimeout)
	assert.Equal(t, DefaultCallTimeout, cfg.CallTimeout)
	assert.Equal(t, models.ModePartial, cfg.Mode)
}

func TestLoadPipelineConfig_Environment(t *testing.T) {
	t.Setenv("MODEL_CALL_TIMEOUT", "90s")
	t.Setenv("MODEL_RPM", "30")
	t.Setenv("MAX_FILES", "4")

	cfg := LoadPipelineConfig()
	assert.Equal(t, 90*time.Second, cfg.CallTimeout)
	assert.Equal(t, 4, cfg.MaxFiles)

	engineCfg := cfg.ScoringEngineConfig()
	assert.Equal(t, 90*time.Second, engineCfg.CallTimeout)
	assert.Equal(t, 30, engineCfg.RequestsPerMinute)

	engine := NewScoringEngine(&fakeGenerator{}, &fakeGenerator{}, nil, engineCfg)
	assert.Equal(t, 90*time.Second, engine.callTimeout)
}

func TestNewScoringEngine_CallTimeoutFloor(t *testing.T) {
	engine := NewScoringEngine(&fakeGenerator{}, &fakeGenerator{}, nil, ScoringEngineConfig{CallTimeout: 10 * time.Second})
	assert.Equal(t, DefaultCallTimeout, engine.callTimeout)
}
