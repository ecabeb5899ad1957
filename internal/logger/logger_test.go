package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_MinLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	log := NewWithWriters(INFO, &out, &errOut)

	log.Debug("hidden %d", 1)
	log.Info("shown %d", 2)
	log.Warn("warned")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "[INFO] ")
	assert.Contains(t, out.String(), "shown 2")
	assert.Contains(t, errOut.String(), "[WARN] ")

	log.SetMinLevel(TRACE)
	log.Trace("now visible")
	assert.Contains(t, out.String(), "now visible")
}

func TestLogger_Report(t *testing.T) {
	var out bytes.Buffer
	log := NewWithWriters(INFO, &out, &out)

	log.Report("100% reflected")

	assert.Contains(t, out.String(), "[SUCCESS] ")
	assert.Contains(t, out.String(), "100% reflected")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"trace":   TRACE,
		"DEBUG":   DEBUG,
		" warn ":  WARN,
		"error":   ERROR,
		"success": SUCCESS,
		"":        INFO,
		"bogus":   INFO,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}
