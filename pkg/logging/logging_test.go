package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{in: "debug", want: LevelDebug},
		{in: "INFO", want: LevelInfo},
		{in: "", want: LevelInfo},
		{in: "warning", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "loud", want: LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInit_TextFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelWarn, &buf)

	Info("Test", "hidden %d", 1)
	Warn("Test", "shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "subsystem=Test")
}

func TestInit_JSONIncludesError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Options{Level: LevelDebug, Format: FormatJSON, Output: &buf}))

	Error("Terraform", errors.New("boom"), "apply failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "apply failed", entry["msg"])
	assert.Equal(t, "Terraform", entry["subsystem"])
	assert.Equal(t, "boom", entry["error"])
}

func TestInit_UnknownFormat(t *testing.T) {
	err := Init(Options{Format: "xml"})
	assert.Error(t, err)
}
