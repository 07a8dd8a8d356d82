package console

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coolbeans/kgindex/pkg/logger"
)

func TestConsoleLoggerLevels(t *testing.T) {
	testCases := []struct {
		name        string
		debug       bool
		expectDebug bool
	}{
		{"info level hides debug", false, false},
		{"debug level shows debug", true, true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var buffer bytes.Buffer
			consoleLogger := NewConsoleLogger(ConsoleLoggerParams{Debug: testCase.debug, Output: &buffer})

			consoleLogger.Debug("row skipped", "line", 7)
			consoleLogger.Info("stage done", "records", 3)

			output := buffer.String()
			assert.Contains(t, output, "stage done")
			assert.Contains(t, output, "records=3")
			assert.Equal(t, testCase.expectDebug, bytes.Contains(buffer.Bytes(), []byte("row skipped")))
		})
	}
}

func TestFacadeDispatchesWithScope(t *testing.T) {
	var buffer bytes.Buffer
	logger.Init(NewConsoleLogger(ConsoleLoggerParams{Output: &buffer}))
	defer logger.Init()

	logger.With("run", "abc123")
	logger.Warn("redirect conflict", "source", "Q9")

	output := buffer.String()
	assert.Contains(t, output, "redirect conflict")
	assert.Contains(t, output, "run=abc123")
	assert.Contains(t, output, "source=Q9")
}
