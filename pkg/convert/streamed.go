package convert

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"scanview/internal/models"
)

// StreamedVolume reads a converted chunk file on demand, keeping at most one
// decoded chunk in memory. It implements the same read surface as an
// in-memory volume, so viewers work over either form.
//
// A StreamedVolume is confined to one goroutine at a time: the chunk cache
// is not locked. Hand-off between goroutines must go through a
// synchronization point (the pipeline mailbox provides one).
type StreamedVolume struct {
	file *os.File
	path string

	width, height, depth int
	chunkDepth           int
	hasLabels            bool

	serial uint64

	// Single-chunk cache. cachedChunk is -1 until the first read.
	cachedChunk int
	intensity   []float64
	labels      []uint8
}

// Open validates a converted chunk file and returns a streamed view of it.
// Files missing the completion marker (interrupted conversions) are
// rejected.
func Open(path string) (*StreamedVolume, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening converted volume: %w", err)
	}

	var hdr header
	if err := binary.Read(file, binary.LittleEndian, &hdr); err != nil {
		file.Close()
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	if hdr.Magic != fileMagic {
		file.Close()
		return nil, fmt.Errorf("not a converted volume file: %s", path)
	}
	if hdr.Version != fileVersion {
		file.Close()
		return nil, fmt.Errorf("unsupported file version %d", hdr.Version)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 || hdr.Depth <= 0 || hdr.ChunkDepth <= 0 {
		file.Close()
		return nil, fmt.Errorf("invalid dimensions %dx%dx%d (chunk depth %d)",
			hdr.Width, hdr.Height, hdr.Depth, hdr.ChunkDepth)
	}

	// Check the completion marker before trusting the payload.
	var marker uint32
	if _, err := file.Seek(-4, io.SeekEnd); err != nil {
		file.Close()
		return nil, fmt.Errorf("error seeking completion marker: %w", err)
	}
	if err := binary.Read(file, binary.LittleEndian, &marker); err != nil || marker != doneMarker {
		file.Close()
		return nil, fmt.Errorf("converted volume %s is incomplete", path)
	}

	return &StreamedVolume{
		file:        file,
		path:        path,
		width:       int(hdr.Width),
		height:      int(hdr.Height),
		depth:       int(hdr.Depth),
		chunkDepth:  int(hdr.ChunkDepth),
		hasLabels:   hdr.HasLabels != 0,
		serial:      models.NewSerial(),
		cachedChunk: -1,
	}, nil
}

// Path returns the on-disk location of the converted file.
func (s *StreamedVolume) Path() string {
	return s.path
}

// Serial returns the dataset identity assigned when the file was opened.
func (s *StreamedVolume) Serial() uint64 {
	return s.serial
}

// Dims returns the volume dimensions in voxels.
func (s *StreamedVolume) Dims() (width, height, depth int) {
	return s.width, s.height, s.depth
}

// HasLabels reports whether the converted file carries label data.
func (s *StreamedVolume) HasLabels() bool {
	return s.hasLabels
}

// At returns the intensity at the given voxel coordinates, loading the
// owning chunk if it is not cached. Read failures panic: converted files
// are validated at Open, so a failure afterwards means the file changed
// under us or the dataset was unloaded while still referenced.
func (s *StreamedVolume) At(x, y, z int) float64 {
	s.loadChunk(z / s.chunkDepth)
	local := z - (z/s.chunkDepth)*s.chunkDepth
	return s.intensity[local*s.width*s.height+y*s.width+x]
}

// LabelAt returns the material label at the given voxel coordinates, or 0
// when the file carries no labels.
func (s *StreamedVolume) LabelAt(x, y, z int) uint8 {
	if !s.hasLabels {
		return 0
	}
	s.loadChunk(z / s.chunkDepth)
	local := z - (z/s.chunkDepth)*s.chunkDepth
	return s.labels[local*s.width*s.height+y*s.width+x]
}

// loadChunk reads chunk i into the cache unless it is already there.
func (s *StreamedVolume) loadChunk(i int) {
	if s.cachedChunk == i {
		return
	}
	if s.file == nil {
		panic("read from unloaded streamed volume")
	}

	sliceLen := s.width * s.height
	z0 := i * s.chunkDepth
	z1 := z0 + s.chunkDepth
	if z1 > s.depth {
		z1 = s.depth
	}
	voxels := (z1 - z0) * sliceLen

	offset := s.chunkOffset(i)
	if _, err := s.file.Seek(offset, io.SeekStart); err != nil {
		panic(fmt.Sprintf("streamed volume seek failed: %v", err))
	}

	if cap(s.intensity) < voxels {
		s.intensity = make([]float64, s.chunkDepth*sliceLen)
	}
	s.intensity = s.intensity[:voxels]
	if err := binary.Read(s.file, binary.LittleEndian, s.intensity); err != nil {
		panic(fmt.Sprintf("streamed volume read failed: %v", err))
	}

	if s.hasLabels {
		if cap(s.labels) < voxels {
			s.labels = make([]uint8, s.chunkDepth*sliceLen)
		}
		s.labels = s.labels[:voxels]
		if _, err := io.ReadFull(s.file, s.labels); err != nil {
			panic(fmt.Sprintf("streamed volume label read failed: %v", err))
		}
	}

	s.cachedChunk = i
}

// chunkOffset returns the file offset of chunk i's intensity payload.
func (s *StreamedVolume) chunkOffset(i int) int64 {
	headerSize := int64(binary.Size(header{}))
	sliceLen := int64(s.width * s.height)

	// All chunks before the last are full chunkDepth slabs, and chunk i
	// only has full chunks before it.
	voxelBytes := int64(8)
	chunkBytes := int64(s.chunkDepth) * sliceLen * voxelBytes
	if s.hasLabels {
		chunkBytes += int64(s.chunkDepth) * sliceLen
	}
	return headerSize + int64(i)*chunkBytes
}

// Unload closes the backing file and drops the chunk cache. The dataset
// must not be read afterwards. Unload is idempotent.
func (s *StreamedVolume) Unload() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.intensity = nil
	s.labels = nil
	s.cachedChunk = -1
	if err != nil {
		return fmt.Errorf("error closing converted volume: %w", err)
	}
	return nil
}
