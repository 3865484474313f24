package roadkit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roadkit/blobstore"
	"github.com/hupe1980/roadkit/coll"
	"github.com/hupe1980/roadkit/queue"
	"github.com/hupe1980/roadkit/spatial"
	"github.com/hupe1980/roadkit/storage"
)

func TestTranslateError(t *testing.T) {
	h := queue.New(1)
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"range", h.Push(5, 1), ErrOutOfRange},
		{"full", queue.ErrFull, ErrCapacity},
		{"memory", fmt.Errorf("grow: %w", storage.ErrMemoryLimit), ErrCapacity},
		{"queue empty", queue.ErrEmpty, ErrEmpty},
		{"coll empty", coll.ErrEmpty, ErrEmpty},
		{"double push", queue.ErrAlreadyQueued, ErrContract},
		{"duplicate key", coll.ErrDuplicateKey, ErrContract},
		{"resolution", spatial.ErrInvalidResolution, ErrInvalidConfig},
		{"not prepared", spatial.ErrNotPrepared, ErrNotPrepared},
		{"checksum", storage.ErrChecksum, ErrCorrupt},
		{"mismatch", spatial.ErrGraphMismatch, ErrCorrupt},
		{"not found", blobstore.ErrNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TranslateError(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, TranslateError(nil))
	other := errors.New("other")
	assert.Equal(t, other, TranslateError(other))
}

func TestTranslateError_KeepsRangeDetails(t *testing.T) {
	err := TranslateError(queue.New(2).Update(7, 1))
	var re *queue.RangeError
	assert.ErrorAs(t, err, &re)
	assert.Equal(t, int32(7), re.ID)
}

func TestTranslateError_LiveErrors(t *testing.T) {
	ctx := context.Background()

	c := coll.NewSortedCollection()
	_, err := c.PollKey()
	assert.ErrorIs(t, TranslateError(err), ErrEmpty)
	require.NoError(t, c.Insert(1, 10))
	assert.ErrorIs(t, TranslateError(c.Insert(1, 20)), ErrContract)
	assert.ErrorIs(t, TranslateError(c.Remove(2, 10)), ErrContract)

	_, err = blobstore.ReadAll(ctx, blobstore.NewMemoryStore(), "location_index")
	assert.ErrorIs(t, TranslateError(err), ErrNotFound)

	h := queue.New(1)
	require.NoError(t, h.Push(0, 1))
	assert.ErrorIs(t, TranslateError(h.Push(0, 2)), ErrCapacity)
}
