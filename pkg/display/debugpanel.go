package display

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"scanview/internal/models"
	"scanview/pkg/convert"
	"scanview/pkg/pipeline"
	"scanview/pkg/slicer"
	"scanview/pkg/volume"
)

// BundleViewer is the viewer resource of a debug bundle. slicer.Viewer
// satisfies it; tests substitute recording fakes.
type BundleViewer interface {
	Rasterize(axis models.Axis, index int, f slicer.Filter) (*slicer.Raster, bool, error)
	Close()
}

// BundleDataset is a disposable dataset resource. Both the editable
// in-memory volume and the converted streamed volume satisfy it.
type BundleDataset interface {
	Unload() error
}

// Bundle is the trio of co-owned resources a debug generation produces.
// The three travel through the mailbox as one artifact and are installed or
// disposed as one transaction: no frame ever sees a viewer from one
// generation over datasets from another.
type Bundle struct {
	// Viewer renders slices out of the streamed dataset.
	Viewer BundleViewer

	// Editable is the in-memory synthesized volume, kept for label
	// editing.
	Editable BundleDataset

	// Streamed is the converted on-disk form the viewer reads from.
	Streamed BundleDataset
}

// DebugRequest configures one debug bundle generation.
type DebugRequest struct {
	Pattern    volume.Pattern
	Size       int
	WithLabels bool

	// Workers bounds the parallel label fill. Values below 1 use one
	// goroutine per Z slab up to the volume size.
	Workers int

	// OutputDir receives the converted volume file.
	OutputDir string
}

// DebugState is the observable lifecycle of a debug bundle request.
type DebugState int

const (
	// DebugIdle means no generation is running and nothing is pending.
	DebugIdle DebugState = iota

	// DebugGenerating means a background job is building the bundle.
	DebugGenerating

	// DebugAwaitingSwap means a finished bundle sits in the mailbox,
	// waiting for the next frame's Tick.
	DebugAwaitingSwap
)

// String returns the state name.
func (s DebugState) String() string {
	switch s {
	case DebugIdle:
		return "idle"
	case DebugGenerating:
		return "generating"
	case DebugAwaitingSwap:
		return "awaiting swap"
	default:
		return "unknown"
	}
}

// DebugPanel generates synthetic debug volumes end to end: synthesize,
// label in parallel, convert to the streamed form, build a viewer, and
// hand the whole bundle to the frame loop in one piece.
//
// Exported methods are UI-thread only, except State and Generating which
// are safe anywhere.
type DebugPanel struct {
	conv   convert.Converter
	status *pipeline.StatusLog
	runner *pipeline.Runner

	tokens  pipeline.TokenSource
	mailbox *pipeline.Mailbox[*Bundle]

	// inProgress holds the version of the generation being built, 0 when
	// none. Cleared by compare-and-swap so a superseded job unwinding
	// late cannot re-enable the trigger while its successor still runs.
	inProgress atomic.Uint64

	// swapMu covers the live bundle swap so no reader observes a
	// partially replaced trio.
	swapMu sync.Mutex
	live   *Bundle
}

// NewDebugPanel creates a debug panel converting through conv.
func NewDebugPanel(conv convert.Converter, runner *pipeline.Runner, status *pipeline.StatusLog) *DebugPanel {
	p := &DebugPanel{
		conv:   conv,
		status: status,
		runner: runner,
	}
	p.mailbox = pipeline.NewMailbox[*Bundle](p.disposeBundle)
	return p
}

// Generating reports whether a bundle is currently being built. The UI uses
// it to disable the trigger.
func (p *DebugPanel) Generating() bool {
	return p.inProgress.Load() != 0
}

// State returns the panel's lifecycle state.
func (p *DebugPanel) State() DebugState {
	if p.inProgress.Load() != 0 {
		return DebugGenerating
	}
	if p.mailbox.Pending() {
		return DebugAwaitingSwap
	}
	return DebugIdle
}

// Generate starts building a bundle for the given request. A second call
// while one is running supersedes it: the prior token is revoked and the
// prior job unwinds without handing anything off. Any phase failure
// releases everything built so far, logs a status line, and re-enables the
// trigger.
func (p *DebugPanel) Generate(req DebugRequest) {
	if req.Size <= 0 {
		p.status.Appendf("debug: invalid volume size %d", req.Size)
		return
	}

	tok := p.tokens.Next()
	p.inProgress.Store(tok.Version())

	p.runner.Submit("debug bundle", tok, func(tok *pipeline.Token) error {
		defer p.inProgress.CompareAndSwap(tok.Version(), 0)
		return p.buildBundle(req, tok)
	})
}

// buildBundle runs the multi-phase construction on the worker goroutine.
// Cancellation checks sit at every phase boundary; a cancelled build backs
// out whatever it has constructed and returns nil so nothing is logged.
func (p *DebugPanel) buildBundle(req DebugRequest, tok *pipeline.Token) error {
	// Phase 1: synthesize the volume. The job owns editable until the
	// bundle is handed off; every failure or cancellation exit releases
	// it. Unload is idempotent, so exits that already disposed the whole
	// bundle are unaffected.
	editable := models.NewVolume(req.Size, req.Size, req.Size, req.WithLabels)
	handedOff := false
	defer func() {
		if !handedOff {
			editable.Unload()
		}
	}()

	if err := volume.Generate(req.Pattern, req.Size, editable.Data, nil); err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	if tok.Cancelled() {
		return nil
	}

	// Phase 2: label fill, parallel over disjoint Z slabs.
	if req.WithLabels {
		err := volume.GenerateParallel(req.Pattern, req.Size, req.Workers,
			nil, editable.Labels, tok.Cancelled)
		if err == volume.ErrCancelled {
			return nil
		}
		if err != nil {
			return fmt.Errorf("label fill failed: %w", err)
		}
	}

	if tok.Cancelled() {
		return nil
	}

	// Phase 3: convert to the streamed form. The converter owns its
	// partial output: on failure or cancellation nothing is left on disk.
	// The request version keeps overlapping generations of the same
	// request from writing through each other's output file.
	outPath := filepath.Join(req.OutputDir,
		fmt.Sprintf("debug_%s_%d_v%d.svc", req.Pattern, req.Size, tok.Version()))
	err := p.conv.Convert(tok.Context(), editable, outPath, func(done, total int) {
		if done == total {
			p.status.Appendf("debug: conversion complete (%d chunks)", total)
		}
	})
	if err != nil {
		if tok.Cancelled() {
			return nil
		}
		return fmt.Errorf("conversion failed: %w", err)
	}

	// Phase 4: open the streamed form and build the dependent viewer. An
	// unreadable file is useless to everyone; remove it with the rest of
	// this generation's work.
	streamed, err := convert.Open(outPath)
	if err != nil {
		os.Remove(outPath)
		return fmt.Errorf("opening converted volume failed: %w", err)
	}

	bundle := &Bundle{
		Viewer:   slicer.NewViewer(streamed),
		Editable: editable,
		Streamed: streamed,
	}

	if tok.Cancelled() {
		// Late cancellation: the bundle never reaches the mailbox, so
		// this job still owns it and must release it.
		p.disposeBundle(bundle)
		return nil
	}

	handedOff = true
	p.mailbox.Put(bundle, tok.Version())
	return nil
}

// Tick drains the mailbox and, when a bundle arrived, swaps it in: the
// previous trio is disposed in fixed order (viewer, editable dataset,
// streamed dataset) and the new trio installed, all inside the swap
// critical section.
func (p *DebugPanel) Tick() {
	bundle, ok := p.mailbox.Drain()
	if !ok {
		return
	}

	p.swapMu.Lock()
	old := p.live
	if old != nil {
		p.disposeBundle(old)
	}
	p.live = bundle
	p.swapMu.Unlock()

	p.status.Appendf("debug: bundle installed")
}

// Live returns the currently installed bundle, or nil. The caller must not
// retain it across frames: the next swap disposes it.
func (p *DebugPanel) Live() *Bundle {
	p.swapMu.Lock()
	defer p.swapMu.Unlock()
	return p.live
}

// Close cancels any in-flight generation and releases the pending and live
// bundles. UI-thread only, called on window teardown.
func (p *DebugPanel) Close() {
	p.tokens.CancelCurrent()

	if bundle, ok := p.mailbox.Drain(); ok {
		p.disposeBundle(bundle)
	}

	p.swapMu.Lock()
	if p.live != nil {
		p.disposeBundle(p.live)
		p.live = nil
	}
	p.swapMu.Unlock()
}

// disposeBundle releases a bundle's resources in the fixed order: viewer
// first (it reads from the datasets), then the editable dataset, then the
// streamed dataset together with its backing file. Converted debug files
// are temporaries owned by their bundle; without the removal, every
// superseded or replaced generation would leave one behind. Disposal
// failures are logged, never fatal, and never prevent the remaining
// resources from being released.
func (p *DebugPanel) disposeBundle(b *Bundle) {
	if b == nil {
		return
	}
	if b.Viewer != nil {
		b.Viewer.Close()
	}
	if b.Editable != nil {
		if err := b.Editable.Unload(); err != nil {
			p.status.Appendf("debug: editable dataset unload failed: %v", err)
		}
	}
	if b.Streamed != nil {
		path := ""
		if f, ok := b.Streamed.(interface{ Path() string }); ok {
			path = f.Path()
		}
		if err := b.Streamed.Unload(); err != nil {
			p.status.Appendf("debug: streamed dataset unload failed: %v", err)
		}
		if path != "" {
			if err := os.Remove(path); err != nil {
				p.status.Appendf("debug: removing converted file failed: %v", err)
			}
		}
	}
}
