package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithOutputRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("warn", &buf)

	log.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestComponentTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("debug", &buf).Component("upload")

	log.Debug().Str("file", "trades.csv").Msg("selected")
	assert.Contains(t, buf.String(), `"component":"upload"`)
	assert.Contains(t, buf.String(), `"file":"trades.csv"`)
}

func TestNilComponentIsSilent(t *testing.T) {
	var log *Logger
	assert.NotPanics(t, func() {
		log.Component("x").Info().Msg("nothing")
	})
}
