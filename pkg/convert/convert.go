// Package convert streams in-memory volumes into the chunked on-disk form
// the streaming datasets read from. The core pipeline only depends on the
// Converter contract; the chunked little-endian implementation here is what
// the debug bundle factory uses in practice.
package convert

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"scanview/internal/models"
)

// Converter is the asynchronous conversion collaborator. Convert blocks
// until the volume has been written to outputPath or the context is
// cancelled; callers run it on a worker goroutine, never the UI thread.
//
// progress, when non-nil, is invoked after each completed chunk with the
// number of chunks done and the total. A cancelled conversion removes its
// partial output and returns ctx.Err().
type Converter interface {
	Convert(ctx context.Context, vol *models.Volume, outputPath string, progress func(done, total int)) error
}

const (
	fileMagic   uint32 = 0x53564346 // "SVCF"
	fileVersion uint32 = 1
	doneMarker  uint32 = 0x444F4E45 // "DONE"
)

// header mirrors the fixed-size file prelude. All integers are
// little-endian.
type header struct {
	Magic      uint32
	Version    uint32
	Width      int64
	Height     int64
	Depth      int64
	ChunkDepth int64
	HasLabels  uint32
	_          uint32 // padding, keeps the header 8-byte aligned
}

// ChunkedConverter writes volumes as a header followed by Z-chunks of
// intensity data (and label data, when present), with a trailing completion
// marker. A file without the marker was interrupted mid-write and is
// rejected by Open.
type ChunkedConverter struct {
	// ChunkDepth is the number of Z slices per chunk. Values below 1 fall
	// back to 16.
	ChunkDepth int
}

// Convert implements Converter.
func (c *ChunkedConverter) Convert(ctx context.Context, vol *models.Volume, outputPath string, progress func(done, total int)) error {
	if vol == nil || vol.Data == nil {
		return fmt.Errorf("no volume data to convert")
	}
	if len(vol.Data) != vol.Width*vol.Height*vol.Depth {
		return fmt.Errorf("volume data holds %d values, dimensions say %d",
			len(vol.Data), vol.Width*vol.Height*vol.Depth)
	}

	chunkDepth := c.ChunkDepth
	if chunkDepth < 1 {
		chunkDepth = 16
	}
	if chunkDepth > vol.Depth {
		chunkDepth = vol.Depth
	}
	totalChunks := (vol.Depth + chunkDepth - 1) / chunkDepth

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}

	// Remove the partial file on any non-success exit; a cancelled or
	// failed conversion must leave nothing behind for Open to trip over.
	completed := false
	defer func() {
		if !completed {
			file.Close()
			os.Remove(outputPath)
		}
	}()

	hasLabels := uint32(0)
	if vol.Labels != nil {
		hasLabels = 1
	}
	hdr := header{
		Magic:      fileMagic,
		Version:    fileVersion,
		Width:      int64(vol.Width),
		Height:     int64(vol.Height),
		Depth:      int64(vol.Depth),
		ChunkDepth: int64(chunkDepth),
		HasLabels:  hasLabels,
	}
	if err := binary.Write(file, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	sliceLen := vol.Width * vol.Height
	for chunk := 0; chunk < totalChunks; chunk++ {
		// Cancellation checkpoint between chunks
		if err := ctx.Err(); err != nil {
			return err
		}

		z0 := chunk * chunkDepth
		z1 := z0 + chunkDepth
		if z1 > vol.Depth {
			z1 = vol.Depth
		}

		if err := binary.Write(file, binary.LittleEndian, vol.Data[z0*sliceLen:z1*sliceLen]); err != nil {
			return fmt.Errorf("error writing chunk %d: %w", chunk, err)
		}
		if vol.Labels != nil {
			if _, err := file.Write(vol.Labels[z0*sliceLen : z1*sliceLen]); err != nil {
				return fmt.Errorf("error writing labels for chunk %d: %w", chunk, err)
			}
		}

		if progress != nil {
			progress(chunk+1, totalChunks)
		}
	}

	if err := binary.Write(file, binary.LittleEndian, doneMarker); err != nil {
		return fmt.Errorf("error writing completion marker: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("error closing output file: %w", err)
	}

	completed = true
	return nil
}
