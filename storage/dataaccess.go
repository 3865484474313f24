package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/roadkit/blobstore"
	"github.com/hupe1980/roadkit/internal/hash"
)

// HeaderSlots is the number of int32 header slots of a DataAccess.
const HeaderSlots = 32

const (
	magic         = "RKDA"
	formatVersion = 1

	fixedHeaderSize = 24 + 4*HeaderSlots
	segmentEntry    = 8
)

// DataAccess is a growable int32 array split into fixed-size segments.
type DataAccess struct {
	dir         *Directory
	name        string
	segmentSize int
	segShift    uint

	segments [][]byte
	header   [HeaderSlots]int32
	closed   bool
}

// Name returns the blob name.
func (da *DataAccess) Name() string { return da.name }

// Capacity returns the allocated size in bytes.
func (da *DataAccess) Capacity() int64 {
	return int64(len(da.segments)) * int64(da.segmentSize)
}

// SegmentCount returns the number of allocated segments.
func (da *DataAccess) SegmentCount() int { return len(da.segments) }

// EnsureCapacity grows the array to hold at least bytes. It never shrinks.
func (da *DataAccess) EnsureCapacity(bytes int64) error {
	if da.closed {
		return ErrClosed
	}
	if bytes < 0 {
		return fmt.Errorf("%w: negative capacity %d", ErrOutOfBounds, bytes)
	}
	want := int((bytes + int64(da.segmentSize) - 1) >> da.segShift)
	if want <= len(da.segments) {
		return nil
	}
	grow := want - len(da.segments)
	if err := da.dir.rc.AcquireMemory(int64(grow) * int64(da.segmentSize)); err != nil {
		return fmt.Errorf("storage: grow %s to %d bytes: %w", da.name, bytes, err)
	}
	for range grow {
		da.segments = append(da.segments, make([]byte, da.segmentSize))
	}
	return nil
}

func (da *DataAccess) locate(off int64) ([]byte, int, error) {
	if da.closed {
		return nil, 0, ErrClosed
	}
	if off < 0 || off&3 != 0 || off+4 > da.Capacity() {
		return nil, 0, fmt.Errorf("%w: offset %d, capacity %d", ErrOutOfBounds, off, da.Capacity())
	}
	return da.segments[off>>da.segShift], int(off & int64(da.segmentSize-1)), nil
}

// SetInt stores v at the 4-byte aligned byte offset off.
func (da *DataAccess) SetInt(off int64, v int32) error {
	seg, i, err := da.locate(off)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(seg[i:], uint32(v))
	return nil
}

// GetInt reads the int32 at the 4-byte aligned byte offset off.
func (da *DataAccess) GetInt(off int64) (int32, error) {
	seg, i, err := da.locate(off)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(seg[i:])), nil
}

// SetHeader stores v in header slot i.
func (da *DataAccess) SetHeader(i int, v int32) error {
	if i < 0 || i >= HeaderSlots {
		return fmt.Errorf("%w: header slot %d", ErrOutOfBounds, i)
	}
	da.header[i] = v
	return nil
}

// GetHeader reads header slot i.
func (da *DataAccess) GetHeader(i int) (int32, error) {
	if i < 0 || i >= HeaderSlots {
		return 0, fmt.Errorf("%w: header slot %d", ErrOutOfBounds, i)
	}
	return da.header[i], nil
}

// Flush writes the array as one blob, replacing any previous version.
func (da *DataAccess) Flush(ctx context.Context) error {
	if da.closed {
		return ErrClosed
	}
	d := da.dir
	comp := d.compression

	stored := make([][]byte, len(da.segments))
	g, gctx := errgroup.WithContext(ctx)
	for i, seg := range da.segments {
		if err := d.rc.AcquireWorker(gctx); err != nil {
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			defer d.rc.ReleaseWorker()
			b, err := compressBlock(seg, comp)
			stored[i] = b
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tableEnd := fixedHeaderSize + segmentEntry*len(stored)
	size := tableEnd + 4
	for _, b := range stored {
		size += len(b)
	}
	buf := make([]byte, size)

	copy(buf, magic)
	binary.LittleEndian.PutUint16(buf[4:], formatVersion)
	buf[6] = byte(comp)
	binary.LittleEndian.PutUint32(buf[8:], uint32(da.segmentSize))
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(stored)))
	binary.LittleEndian.PutUint64(buf[16:], uint64(da.Capacity()))
	for i, v := range da.header {
		binary.LittleEndian.PutUint32(buf[24+4*i:], uint32(v))
	}
	pos := tableEnd + 4
	for i, b := range stored {
		entry := buf[fixedHeaderSize+segmentEntry*i:]
		binary.LittleEndian.PutUint32(entry, uint32(len(b)))
		binary.LittleEndian.PutUint32(entry[4:], hash.CRC32C(b))
		pos += copy(buf[pos:], b)
	}
	binary.LittleEndian.PutUint32(buf[tableEnd:], hash.CRC32C(buf[:tableEnd]))

	if err := d.rc.AcquireIO(ctx, len(buf)); err != nil {
		return err
	}
	if err := d.store.Put(ctx, da.name, buf); err != nil {
		return fmt.Errorf("storage: flush %s: %w", da.name, err)
	}
	return nil
}

// LoadExisting replaces the in-memory contents with the flushed blob. It
// returns false if nothing was flushed under this name.
func (da *DataAccess) LoadExisting(ctx context.Context) (bool, error) {
	if da.closed {
		return false, ErrClosed
	}
	d := da.dir

	data, err := blobstore.ReadAll(ctx, d.store, da.name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("storage: load %s: %w", da.name, err)
	}
	if err := d.rc.AcquireIO(ctx, len(data)); err != nil {
		return false, err
	}

	if len(data) < fixedHeaderSize+4 || string(data[:4]) != magic {
		return false, fmt.Errorf("%w: %s: bad magic", ErrCorrupt, da.name)
	}
	if v := binary.LittleEndian.Uint16(data[4:]); v != formatVersion {
		return false, fmt.Errorf("%w: %s: unsupported format version %d", ErrCorrupt, da.name, v)
	}
	comp := Compression(data[6])
	segSize := int(binary.LittleEndian.Uint32(data[8:]))
	count := int(binary.LittleEndian.Uint32(data[12:]))
	capacity := int64(binary.LittleEndian.Uint64(data[16:]))

	tableEnd := fixedHeaderSize + segmentEntry*count
	if count < 0 || len(data) < tableEnd+4 {
		return false, fmt.Errorf("%w: %s: truncated segment table", ErrCorrupt, da.name)
	}
	if binary.LittleEndian.Uint32(data[tableEnd:]) != hash.CRC32C(data[:tableEnd]) {
		return false, fmt.Errorf("%w: %s: header", ErrChecksum, da.name)
	}
	if segSize != normalizeSegmentSize(segSize) || capacity != int64(count)*int64(segSize) {
		return false, fmt.Errorf("%w: %s: segment size %d, count %d, capacity %d",
			ErrCorrupt, da.name, segSize, count, capacity)
	}

	blocks := make([][]byte, count)
	pos := tableEnd + 4
	for i := range blocks {
		entry := data[fixedHeaderSize+segmentEntry*i:]
		n := int(binary.LittleEndian.Uint32(entry))
		if pos+n > len(data) {
			return false, fmt.Errorf("%w: %s: segment %d truncated", ErrCorrupt, da.name, i)
		}
		blocks[i] = data[pos : pos+n]
		if hash.CRC32C(blocks[i]) != binary.LittleEndian.Uint32(entry[4:]) {
			return false, fmt.Errorf("%w: %s: segment %d", ErrChecksum, da.name, i)
		}
		pos += n
	}

	growth := capacity - da.Capacity()
	if err := d.rc.AcquireMemory(growth); err != nil {
		return false, fmt.Errorf("storage: load %s: %w", da.name, err)
	}
	segments := make([][]byte, count)
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range blocks {
		if err := d.rc.AcquireWorker(gctx); err != nil {
			_ = g.Wait()
			d.rc.ReleaseMemory(growth)
			return false, err
		}
		g.Go(func() error {
			defer d.rc.ReleaseWorker()
			segments[i] = make([]byte, segSize)
			if err := decompressBlock(b, comp, segments[i]); err != nil {
				return fmt.Errorf("%s: segment %d: %w", da.name, i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.rc.ReleaseMemory(growth)
		return false, err
	}
	if growth < 0 {
		d.rc.ReleaseMemory(-growth)
	}

	da.segments = segments
	da.segmentSize = segSize
	da.segShift = uint(bits.TrailingZeros(uint(segSize)))
	for i := range da.header {
		da.header[i] = int32(binary.LittleEndian.Uint32(data[24+4*i:]))
	}
	return true, nil
}

// Close releases the memory held by the array. Unflushed changes are lost.
func (da *DataAccess) Close() error {
	if da.closed {
		return nil
	}
	da.closed = true
	da.dir.rc.ReleaseMemory(da.Capacity())
	da.segments = nil
	da.dir.release(da)
	return nil
}
