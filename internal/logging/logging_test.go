package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	originalLevel := base.GetLevel()
	originalOut := base.Out
	originalFormatter := base.Formatter
	defer func() {
		base.SetLevel(originalLevel)
		base.SetOutput(originalOut)
		base.SetFormatter(originalFormatter)
	}()

	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"ERROR", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"loud", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			Setup(tt.level, nil, false)
			assert.Equal(t, tt.want, base.GetLevel())
		})
	}
}

func TestFor_TagsComponent(t *testing.T) {
	originalOut := base.Out
	originalFormatter := base.Formatter
	originalLevel := base.GetLevel()
	defer func() {
		base.SetOutput(originalOut)
		base.SetFormatter(originalFormatter)
		base.SetLevel(originalLevel)
	}()

	var buf bytes.Buffer
	Setup("info", &buf, true)
	For("commit").WithField("page", 2).Info("Stamped")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "commit", entry["component"])
	assert.Equal(t, float64(2), entry["page"])
	assert.Equal(t, "Stamped", entry["msg"])
	assert.Same(t, base, Logger())
}
