package main

import (
	"testing"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestSetLogLevel(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	tests := []struct {
		level string
		want  log.Level
	}{
		{"debug", log.DebugLevel},
		{"warn", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"info", log.InfoLevel},
		{"verbose", log.InfoLevel},
		{"", log.InfoLevel},
	}
	for _, tt := range tests {
		assert.NotPanics(t, func() {
			assert.Equal(t, tt.want, setLogLevel(tt.level), tt.level)
		})
	}
}
