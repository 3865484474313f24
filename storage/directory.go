package storage

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"sort"
	"sync"

	"github.com/hupe1980/roadkit/blobstore"
	"github.com/hupe1980/roadkit/internal/resource"
)

var (
	// ErrCorrupt is returned when a persisted blob cannot be decoded.
	ErrCorrupt = errors.New("storage: corrupt data")

	// ErrChecksum is returned when a persisted blob fails CRC32C validation.
	ErrChecksum = errors.New("storage: checksum mismatch")

	// ErrOutOfBounds is returned for accesses outside the allocated capacity
	// or the header slots.
	ErrOutOfBounds = errors.New("storage: access out of bounds")

	// ErrInUse is returned when creating a DataAccess whose name is open.
	ErrInUse = errors.New("storage: data access already open")

	// ErrClosed is returned when using a closed DataAccess or Directory.
	ErrClosed = errors.New("storage: closed")

	// ErrMemoryLimit is returned when growing would exceed the memory limit.
	ErrMemoryLimit = resource.ErrMemoryLimitExceeded
)

const (
	// DefaultSegmentSize is the segment size used when none is configured.
	DefaultSegmentSize = 1 << 20

	minSegmentSize = 1 << 7
	maxSegmentSize = 1 << 30
)

// Option configures a Directory.
type Option func(*dirOptions)

type dirOptions struct {
	compression Compression
	segmentSize int
	rc          resource.Config
}

// WithCompression sets the block codec used by Flush.
func WithCompression(c Compression) Option {
	return func(o *dirOptions) { o.compression = c }
}

// WithSegmentSize sets the segment size in bytes, rounded up to a power of
// two within [128 B, 1 GiB].
func WithSegmentSize(bytes int) Option {
	return func(o *dirOptions) { o.segmentSize = bytes }
}

// WithMemoryLimit caps the bytes all open DataAccess arrays may hold.
func WithMemoryLimit(bytes int64) Option {
	return func(o *dirOptions) { o.rc.MemoryLimitBytes = bytes }
}

// WithWorkers bounds how many segments are compressed or decompressed
// concurrently.
func WithWorkers(n int) Option {
	return func(o *dirOptions) { o.rc.MaxWorkers = int64(n) }
}

// WithIOLimit throttles blob reads and writes to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *dirOptions) { o.rc.IOLimitBytesPerSec = bytesPerSec }
}

func normalizeSegmentSize(n int) int {
	if n <= 0 {
		return DefaultSegmentSize
	}
	n = max(minSegmentSize, min(n, maxSegmentSize))
	return 1 << bits.Len(uint(n-1))
}

// Directory owns a set of named DataAccess arrays in one blob store.
type Directory struct {
	store       blobstore.BlobStore
	compression Compression
	segmentSize int
	rc          *resource.Controller

	mu     sync.Mutex
	open   map[string]*DataAccess
	closed bool
}

// NewDirectory creates a directory persisting to store.
func NewDirectory(store blobstore.BlobStore, opts ...Option) *Directory {
	o := dirOptions{compression: CompressionNone}
	for _, fn := range opts {
		fn(&o)
	}
	return &Directory{
		store:       store,
		compression: o.compression,
		segmentSize: normalizeSegmentSize(o.segmentSize),
		rc:          resource.NewController(o.rc),
		open:        make(map[string]*DataAccess),
	}
}

// NewRAMDirectory creates a directory backed by an in-memory blob store.
func NewRAMDirectory(opts ...Option) *Directory {
	return NewDirectory(blobstore.NewMemoryStore(), opts...)
}

// Store returns the underlying blob store.
func (d *Directory) Store() blobstore.BlobStore { return d.store }

// Compression returns the codec used for new flushes.
func (d *Directory) Compression() Compression { return d.compression }

// SegmentSize returns the segment size in bytes.
func (d *Directory) SegmentSize() int { return d.segmentSize }

// MemoryUsage returns the bytes held by open DataAccess arrays.
func (d *Directory) MemoryUsage() int64 { return d.rc.MemoryUsage() }

// Create opens an empty DataAccess under name. Use LoadExisting to read a
// flushed one back.
func (d *Directory) Create(name string) (*DataAccess, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if _, ok := d.open[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrInUse, name)
	}
	da := &DataAccess{dir: d, name: name, segmentSize: d.segmentSize}
	da.segShift = uint(bits.TrailingZeros(uint(d.segmentSize)))
	d.open[name] = da
	return da, nil
}

// Exists reports whether a flushed blob exists under name.
func (d *Directory) Exists(ctx context.Context, name string) (bool, error) {
	b, err := d.store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, b.Close()
}

// Remove deletes the flushed blob of name. The name must not be open.
func (d *Directory) Remove(ctx context.Context, name string) error {
	d.mu.Lock()
	_, inUse := d.open[name]
	d.mu.Unlock()
	if inUse {
		return fmt.Errorf("%w: %s", ErrInUse, name)
	}
	return d.store.Delete(ctx, name)
}

// Names returns the names of all flushed blobs.
func (d *Directory) Names(ctx context.Context) ([]string, error) {
	return d.store.List(ctx, "")
}

// OpenNames returns the names of the open DataAccess arrays.
func (d *Directory) OpenNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.open))
	for n := range d.open {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (d *Directory) release(da *DataAccess) {
	d.mu.Lock()
	if d.open[da.name] == da {
		delete(d.open, da.name)
	}
	d.mu.Unlock()
}

// Close closes every open DataAccess without flushing it.
func (d *Directory) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	open := make([]*DataAccess, 0, len(d.open))
	for _, da := range d.open {
		open = append(open, da)
	}
	d.mu.Unlock()

	var errs []error
	for _, da := range open {
		errs = append(errs, da.Close())
	}
	return errors.Join(errs...)
}
