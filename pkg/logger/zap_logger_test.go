package logger

import (
	"testing"

	"github.com/amankumarsingh77/dubbing-pipeline/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestGetLoggerLevel(t *testing.T) {
	t.Parallel()

	l := NewApiLogger(&config.Config{Logger: config.Logger{Level: "warn"}})
	assert.Equal(t, zapcore.WarnLevel, l.getLoggerLevel(l.cfg))

	l.cfg.Logger.Level = "verbose"
	assert.Equal(t, zapcore.DebugLevel, l.getLoggerLevel(l.cfg))
}

func TestInitLoggerBuildsSugar(t *testing.T) {
	t.Parallel()

	l := NewApiLogger(&config.Config{Logger: config.Logger{Level: "error", Encoding: "json"}})
	l.InitLogger()
	assert.NotNil(t, l.sugarLogger)
	assert.NotPanics(t, func() { l.Infof("dropped %d", 1) })
	assert.NotPanics(t, func() { NewNop().Errorf("nothing %s", "here") })
}
