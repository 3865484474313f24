package spatial

import "github.com/hupe1980/roadkit/storage"

const (
	// DefaultMaxDepth bounds the tree to a 65536 x 65536 leaf grid.
	DefaultMaxDepth = 16

	// MaxDepth is the deepest tree a TileIndex builds.
	MaxDepth = 24

	// DataName is the DataAccess name the index persists under.
	DataName = "location_index"
)

// Options configures a TileIndex.
type Options struct {
	// Resolution is the approximate leaf size in meters. Must be positive.
	Resolution float64

	// MaxRegionSearch caps the number of rings examined around the query
	// cell. Zero searches until the result is exact.
	MaxRegionSearch int

	// MaxDepth caps the tree depth.
	MaxDepth int

	// Directory receives the persisted index. Defaults to a RAM directory.
	Directory *storage.Directory
}

// DefaultOptions holds everything but the resolution, which has no default.
var DefaultOptions = Options{
	MaxDepth: DefaultMaxDepth,
}

// Option configures a TileIndex.
type Option func(*Options)

// WithResolution sets the approximate leaf size in meters.
func WithResolution(meters float64) Option {
	return func(o *Options) { o.Resolution = meters }
}

// WithMaxRegionSearch caps the rings examined per lookup.
func WithMaxRegionSearch(rings int) Option {
	return func(o *Options) { o.MaxRegionSearch = rings }
}

// WithMaxDepth caps the tree depth, clamped to [0, MaxDepth].
func WithMaxDepth(levels int) Option {
	return func(o *Options) { o.MaxDepth = max(0, min(levels, MaxDepth)) }
}

// WithDirectory sets where Flush and Load read and write.
func WithDirectory(dir *storage.Directory) Option {
	return func(o *Options) { o.Directory = dir }
}
