package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerLogsFailures(t *testing.T) {
	status := NewStatusLog(16)
	runner := NewRunner(status)
	var src TokenSource

	runner.Submit("synth", src.Next(), func(tok *Token) error {
		return errors.New("dimensions are malformed")
	})
	runner.Wait()

	require.Len(t, status.Lines(), 1)
	assert.Contains(t, status.Last(), "synth")
	assert.Contains(t, status.Last(), "dimensions are malformed")
}

func TestRunnerCancellationIsSilent(t *testing.T) {
	status := NewStatusLog(16)
	runner := NewRunner(status)
	var src TokenSource

	tok := src.Next()
	tok.Cancel()

	// A job that notices cancellation and unwinds.
	runner.Submit("synth", tok, func(tok *Token) error {
		if tok.Cancelled() {
			return nil
		}
		t.Error("job ran despite cancelled token")
		return nil
	})

	// A job whose blocking call was interrupted.
	tok2 := src.Next()
	tok2.Cancel()
	runner.Submit("convert", tok2, func(tok *Token) error {
		return context.Canceled
	})

	runner.Wait()
	assert.Empty(t, status.Lines(), "cancellation must not produce status lines")
}

func TestRunnerRecoversPanics(t *testing.T) {
	status := NewStatusLog(16)
	runner := NewRunner(status)
	var src TokenSource

	runner.Submit("slice", src.Next(), func(tok *Token) error {
		panic("index out of range")
	})
	runner.Wait()

	require.Len(t, status.Lines(), 1)
	assert.Contains(t, status.Last(), "panicked")
}

func TestStatusLogRetention(t *testing.T) {
	status := NewStatusLog(3)
	for i := 0; i < 5; i++ {
		status.Appendf("line %d", i)
	}

	lines := status.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "line 2", lines[0])
	assert.Equal(t, "line 4", status.Last())
}
