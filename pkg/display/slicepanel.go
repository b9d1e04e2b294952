package display

import (
	"scanview/internal/models"
	"scanview/pkg/pipeline"
	"scanview/pkg/slicer"
)

// SliceRequest is the immutable snapshot of inputs for one slice
// rasterization. It is captured at request time; the background job reads
// nothing else, so later UI changes cannot tear a result.
type SliceRequest struct {
	// Source is the dataset to slice. It must not be mutated while
	// requests against it are in flight.
	Source slicer.Source

	// Axis and Index select the cross-section.
	Axis  models.Axis
	Index int

	// Filter restricts visible materials.
	Filter slicer.Filter
}

// sliceKey is the change-detection fingerprint of a SliceRequest. It
// carries the source's serial rather than its content, so mutating a
// dataset in place behind an unchanged serial is not detected (use
// Invalidate for that case).
type sliceKey struct {
	serial        uint64
	width, height int
	depth         int
	axis          models.Axis
	index         int
	materials     uint64
	labelledOnly  bool
}

func (r SliceRequest) key() sliceKey {
	w, h, d := r.Source.Dims()
	return sliceKey{
		serial:       r.Source.Serial(),
		width:        w,
		height:       h,
		depth:        d,
		axis:         r.Axis,
		index:        r.Index,
		materials:    r.Filter.Materials,
		labelledOnly: r.Filter.LabelledOnly,
	}
}

// sliceArtifact is what a rasterization job hands to the mailbox. empty
// marks a legitimate "nothing visible" result, which clears the panel
// rather than failing it. failed marks a rasterization error; the detector
// is confined to the UI thread, so the marker travels through the mailbox
// to let Tick re-arm it for a retry of the same inputs.
type sliceArtifact struct {
	raster *slicer.Raster
	empty  bool
	failed bool
}

// SlicePanel displays live cross-sections of a volumetric dataset. Slider
// or dataset changes go through RequestUpdate; the owning frame loop calls
// Tick once per frame before the panel's widgets are drawn.
//
// All exported methods are UI-thread only. The background side touches
// nothing but the mailbox and the status log.
type SlicePanel struct {
	textures TextureFactory
	status   *pipeline.StatusLog
	runner   *pipeline.Runner

	tokens  pipeline.TokenSource
	detect  pipeline.Detector[sliceKey]
	mailbox *pipeline.Mailbox[sliceArtifact]

	visible bool

	// Live display state, replaced wholesale on each successful drain.
	tex      Texture
	minV     float64
	maxV     float64
	hasData  bool
	quantile float64
}

// NewSlicePanel creates a hidden slice panel. quantile configures robust
// color-scale bounds (see slicer.Raster.Bounds); 0 uses raw min/max.
func NewSlicePanel(textures TextureFactory, runner *pipeline.Runner, status *pipeline.StatusLog, quantile float64) *SlicePanel {
	return &SlicePanel{
		textures: textures,
		status:   status,
		runner:   runner,
		mailbox:  pipeline.NewMailbox[sliceArtifact](nil),
		quantile: quantile,
	}
}

// Show makes the panel visible and forces the next RequestUpdate to
// regenerate even if the inputs match the last generation, since the live
// texture may have been dropped while hidden.
func (p *SlicePanel) Show() {
	p.visible = true
	p.detect.Force()
}

// Hide hides the panel and cancels any in-flight generation.
func (p *SlicePanel) Hide() {
	p.visible = false
	p.tokens.CancelCurrent()
}

// Visible reports whether the panel is shown.
func (p *SlicePanel) Visible() bool {
	return p.visible
}

// Invalidate forces the next RequestUpdate to regenerate. Callers use it
// after mutating a dataset in place, which the serial-based fingerprint
// cannot see.
func (p *SlicePanel) Invalidate() {
	p.detect.Force()
}

// RequestUpdate triggers regeneration for the given inputs, subject to
// debouncing: identical inputs to the last started generation are skipped.
// A proceeding request revokes the prior token before the new job starts,
// so at most one job per panel can still win.
func (p *SlicePanel) RequestUpdate(req SliceRequest) {
	if !p.visible {
		return
	}
	if !p.detect.ShouldRegenerate(req.key()) {
		return
	}

	tok := p.tokens.Next()
	viewer := slicer.NewViewer(req.Source)

	p.runner.Submit("slice", tok, func(tok *pipeline.Token) error {
		if tok.Cancelled() {
			return nil
		}

		raster, ok, err := viewer.Rasterize(req.Axis, req.Index, req.Filter)
		if err != nil {
			p.mailbox.Put(sliceArtifact{failed: true}, tok.Version())
			return err
		}

		if tok.Cancelled() {
			return nil
		}
		p.mailbox.Put(sliceArtifact{raster: raster, empty: !ok}, tok.Version())
		return nil
	})
}

// Tick drains the mailbox and swaps any pending artifact into live display
// state. It runs at the top of the frame, before widgets reference the
// panel's texture, so nothing in the same frame can observe the disposed
// predecessor.
func (p *SlicePanel) Tick() {
	art, ok := p.mailbox.Drain()
	if !ok {
		return
	}

	if art.failed {
		// Keep the previous valid state on screen, but forget the
		// stored fingerprint so the identical request can be retried.
		p.detect.Force()
		return
	}

	if art.empty {
		// Legitimate nothing-to-display outcome. Clear the panel.
		if p.tex != nil {
			p.tex.Dispose()
			p.tex = nil
		}
		p.hasData = false
		p.status.Appendf("slice: no visible data for current filter")
		return
	}

	// Create the replacement first: if the renderer rejects it the
	// previous valid state stays on screen.
	tex, err := p.textures.CreateFromPixels(art.raster.Pixels, art.raster.Width, art.raster.Height)
	if err != nil {
		p.status.Appendf("slice: texture creation failed: %v", err)
		return
	}

	if p.tex != nil {
		p.tex.Dispose()
	}
	p.tex = tex

	// Derived scalar state comes from the new artifact unconditionally;
	// stale-merging with previous bounds would mislabel the color scale.
	p.minV, p.maxV = art.raster.Bounds(p.quantile)
	p.hasData = true
}

// Texture returns the live texture, or nil when the panel has nothing to
// display.
func (p *SlicePanel) Texture() Texture {
	return p.tex
}

// Bounds returns the current color-scale bounds. ok is false when no
// artifact has been applied yet or the last one was empty.
func (p *SlicePanel) Bounds() (minV, maxV float64, ok bool) {
	return p.minV, p.maxV, p.hasData
}

// Status returns the most recent status line.
func (p *SlicePanel) Status() string {
	return p.status.Last()
}
