package roadkit

import (
	"errors"
	"fmt"

	"github.com/hupe1980/roadkit/blobstore"
	"github.com/hupe1980/roadkit/coll"
	"github.com/hupe1980/roadkit/graph"
	"github.com/hupe1980/roadkit/queue"
	"github.com/hupe1980/roadkit/spatial"
	"github.com/hupe1980/roadkit/storage"
)

var (
	// ErrOutOfRange is returned for ids outside a structure's capacity.
	ErrOutOfRange = errors.New("id out of range")

	// ErrCapacity is returned when a bounded structure is full.
	ErrCapacity = errors.New("capacity exceeded")

	// ErrEmpty is returned when peeking or polling an empty collection.
	ErrEmpty = errors.New("collection is empty")

	// ErrInvalidConfig is returned for unusable configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotPrepared is returned by lookups before Prepare or Load.
	ErrNotPrepared = errors.New("index not prepared")

	// ErrContract is returned when the caller broke a documented precondition,
	// such as pushing an id that is already queued.
	ErrContract = errors.New("caller contract violated")

	// ErrNotFound is returned when a persisted object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("locator closed")

	// ErrCorrupt is returned when persisted index data fails validation.
	ErrCorrupt = errors.New("corrupt index data")
)

// ErrInvalidPoint indicates a coordinate outside the WGS84 ranges.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrInvalidPoint struct {
	Lat, Lon float64
	cause    error
}

func (e *ErrInvalidPoint) Error() string {
	return fmt.Sprintf("invalid coordinate: %v,%v", e.Lat, e.Lon)
}

func (e *ErrInvalidPoint) Unwrap() error { return e.cause }

// Is makes errors.Is(err, ErrContract) succeed.
func (e *ErrInvalidPoint) Is(target error) bool { return target == ErrContract }

// TranslateError maps errors of the roadkit packages onto the public
// taxonomy while keeping the cause reachable through errors.Is and
// errors.As. Locator applies it to everything it returns; searches that
// drive queue.MinHeap, coll.Map or coll.SortedCollection directly can use
// it to classify their errors the same way. Unknown errors are returned
// unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, queue.ErrOutOfRange):
		return fmt.Errorf("%w: %w", ErrOutOfRange, err)
	case errors.Is(err, queue.ErrFull),
		errors.Is(err, storage.ErrMemoryLimit):
		return fmt.Errorf("%w: %w", ErrCapacity, err)
	case errors.Is(err, queue.ErrEmpty),
		errors.Is(err, coll.ErrEmpty):
		return fmt.Errorf("%w: %w", ErrEmpty, err)
	case errors.Is(err, queue.ErrAlreadyQueued),
		errors.Is(err, queue.ErrNotQueued),
		errors.Is(err, coll.ErrDuplicateKey),
		errors.Is(err, coll.ErrKeyNotFound),
		errors.Is(err, storage.ErrInUse),
		errors.Is(err, graph.ErrInvalidPoint):
		return fmt.Errorf("%w: %w", ErrContract, err)
	case errors.Is(err, spatial.ErrInvalidResolution):
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	case errors.Is(err, spatial.ErrNotPrepared):
		return fmt.Errorf("%w: %w", ErrNotPrepared, err)
	case errors.Is(err, spatial.ErrClosed),
		errors.Is(err, storage.ErrClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, storage.ErrCorrupt),
		errors.Is(err, storage.ErrChecksum),
		errors.Is(err, spatial.ErrGraphMismatch):
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	case errors.Is(err, blobstore.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
