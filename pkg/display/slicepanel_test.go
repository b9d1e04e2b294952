package display

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanview/internal/models"
	"scanview/pkg/pipeline"
	"scanview/pkg/slicer"
	"scanview/pkg/volume"
)

func rampVolume(t *testing.T, size int, withLabels bool) *models.Volume {
	t.Helper()
	vol := models.NewVolume(size, size, size, withLabels)
	require.NoError(t, volume.Generate(volume.DensityRamp, size, vol.Data, vol.Labels))
	return vol
}

func newTestSlicePanel() (*SlicePanel, *MemoryTextureFactory, *pipeline.StatusLog, *pipeline.Runner) {
	status := pipeline.NewStatusLog(32)
	runner := pipeline.NewRunner(status)
	textures := &MemoryTextureFactory{}
	panel := NewSlicePanel(textures, runner, status, 0)
	panel.Show()
	return panel, textures, status, runner
}

func TestSlicePanelAppliesArtifact(t *testing.T) {
	panel, textures, _, runner := newTestSlicePanel()
	vol := rampVolume(t, 16, false)

	panel.RequestUpdate(SliceRequest{Source: vol, Axis: models.AxisZ, Index: 5})
	runner.Wait()
	panel.Tick()

	require.NotNil(t, panel.Texture())
	assert.True(t, panel.Texture().Valid())
	assert.Equal(t, 1, textures.Created)

	minV, maxV, ok := panel.Bounds()
	require.True(t, ok)
	assert.InDelta(t, 0.0, minV, 1e-9, "ramp slice minimum sits at the x=0 column")
	assert.InDelta(t, 1.0, maxV, 1e-9, "ramp slice maximum sits at the x=15 column")
}

func TestSlicePanelDebouncesIdenticalRequests(t *testing.T) {
	panel, textures, _, runner := newTestSlicePanel()
	vol := rampVolume(t, 8, false)

	req := SliceRequest{Source: vol, Axis: models.AxisZ, Index: 3}
	panel.RequestUpdate(req)
	panel.RequestUpdate(req)
	panel.RequestUpdate(req)
	runner.Wait()
	panel.Tick()

	assert.Equal(t, 1, textures.Created, "identical inputs issue at most one job")
	assert.Equal(t, uint64(0), panel.mailbox.Drops(), "a single job means nothing was displaced")
}

// TestSlicePanelSupersededRequestNeverDisplayed issues two requests back to
// back; after both settle, only the second one's artifact may reach the
// screen, no matter which job finished last.
func TestSlicePanelSupersededRequestNeverDisplayed(t *testing.T) {
	panel, _, _, runner := newTestSlicePanel()
	vol := rampVolume(t, 16, false)

	// X-axis slices are constant-valued at x/(size-1), so the applied
	// bounds identify which request produced the live artifact.
	panel.RequestUpdate(SliceRequest{Source: vol, Axis: models.AxisX, Index: 3})
	panel.RequestUpdate(SliceRequest{Source: vol, Axis: models.AxisX, Index: 12})
	runner.Wait()
	panel.Tick()

	minV, maxV, ok := panel.Bounds()
	require.True(t, ok)
	want := 12.0 / 15.0
	assert.InDelta(t, want, minV, 1e-9, "only the second request's value may be displayed")
	assert.InDelta(t, want, maxV, 1e-9)

	// Nothing further pending: the superseded artifact is gone for good.
	panel.Tick()
	gotMin, _, _ := panel.Bounds()
	assert.InDelta(t, want, gotMin, 1e-9)
}

func TestSlicePanelEmptyResultClearsDisplay(t *testing.T) {
	panel, _, status, runner := newTestSlicePanel()
	vol := rampVolume(t, 8, false) // no labels at all

	panel.RequestUpdate(SliceRequest{Source: vol, Axis: models.AxisZ, Index: 2})
	runner.Wait()
	panel.Tick()
	require.NotNil(t, panel.Texture())

	// Labelled-only filter over an unlabelled volume hides everything.
	panel.RequestUpdate(SliceRequest{
		Source: vol,
		Axis:   models.AxisZ,
		Index:  2,
		Filter: slicer.Filter{LabelledOnly: true},
	})
	runner.Wait()
	panel.Tick()

	assert.Nil(t, panel.Texture(), "empty result clears the panel")
	_, _, ok := panel.Bounds()
	assert.False(t, ok)
	assert.Contains(t, status.Last(), "no visible data")
}

func TestSlicePanelFailureKeepsPreviousState(t *testing.T) {
	panel, _, status, runner := newTestSlicePanel()
	vol := rampVolume(t, 8, false)

	panel.RequestUpdate(SliceRequest{Source: vol, Axis: models.AxisZ, Index: 2})
	runner.Wait()
	panel.Tick()
	prevTex := panel.Texture()
	require.NotNil(t, prevTex)

	// Out-of-range index fails in the background job.
	panel.RequestUpdate(SliceRequest{Source: vol, Axis: models.AxisZ, Index: 99})
	runner.Wait()
	panel.Tick()

	assert.Same(t, prevTex, panel.Texture(), "failure must not blank the previous valid state")
	assert.True(t, prevTex.Valid())
	assert.Contains(t, status.Last(), "failed")
}

// TestSlicePanelFailedRequestCanBeRetried repeats a failing request and
// expects it to run again: a failure must not leave its fingerprint
// debouncing the retry away.
func TestSlicePanelFailedRequestCanBeRetried(t *testing.T) {
	panel, _, status, runner := newTestSlicePanel()
	vol := rampVolume(t, 8, false)

	req := SliceRequest{Source: vol, Axis: models.AxisZ, Index: 99}
	panel.RequestUpdate(req)
	runner.Wait()
	panel.Tick()
	require.Contains(t, status.Last(), "failed")

	panel.RequestUpdate(req)
	runner.Wait()
	panel.Tick()

	failures := 0
	for _, line := range status.Lines() {
		if strings.Contains(line, "failed") {
			failures++
		}
	}
	assert.Equal(t, 2, failures, "the identical request must run again after a failure")
}

func TestSlicePanelHiddenIgnoresRequests(t *testing.T) {
	panel, textures, _, runner := newTestSlicePanel()
	vol := rampVolume(t, 8, false)

	panel.Hide()
	panel.RequestUpdate(SliceRequest{Source: vol, Axis: models.AxisZ, Index: 1})
	runner.Wait()
	panel.Tick()

	assert.Equal(t, 0, textures.Created)
	assert.Nil(t, panel.Texture())
}

func TestSlicePanelShowForcesRegeneration(t *testing.T) {
	panel, textures, _, runner := newTestSlicePanel()
	vol := rampVolume(t, 8, false)

	req := SliceRequest{Source: vol, Axis: models.AxisZ, Index: 1}
	panel.RequestUpdate(req)
	runner.Wait()
	panel.Tick()
	require.Equal(t, 1, textures.Created)

	panel.Hide()
	panel.Show()
	panel.RequestUpdate(req)
	runner.Wait()
	panel.Tick()

	assert.Equal(t, 2, textures.Created, "identical inputs regenerate after Show")
}
