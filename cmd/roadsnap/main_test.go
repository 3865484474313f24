package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/roadkit/geo"
	"github.com/hupe1980/roadkit/graph"
)

func TestParseStoreURI(t *testing.T) {
	tests := []struct {
		raw  string
		want storeTarget
	}{
		{"mem://", storeTarget{scheme: "mem"}},
		{"", storeTarget{scheme: "mem"}},
		{"file:///var/lib/roadkit", storeTarget{scheme: "file", path: "/var/lib/roadkit"}},
		{"s3://roads/berlin/v1", storeTarget{scheme: "s3", bucket: "roads", prefix: "berlin/v1"}},
		{"s3://roads", storeTarget{scheme: "s3", bucket: "roads"}},
		{"minio://localhost:9000/roads/berlin", storeTarget{scheme: "minio", host: "localhost:9000", bucket: "roads", prefix: "berlin"}},
	}
	for _, tt := range tests {
		got, err := parseStoreURI(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	for _, raw := range []string{"ftp://x", "s3:///prefix", "minio://host", "file://"} {
		_, err := parseStoreURI(raw)
		assert.Error(t, err, raw)
	}
}

func TestReadPoints(t *testing.T) {
	pts, err := readPoints([]string{"52.5,13.4", " 1.5 , 2 "}, nil)
	require.NoError(t, err)
	assert.Equal(t, []geo.Point{{Lat: 52.5, Lon: 13.4}, {Lat: 1.5, Lon: 2}}, pts)

	pts, err = readPoints(nil, strings.NewReader("# header\n52.5,13.4\n\n1,2\n"))
	require.NoError(t, err)
	assert.Len(t, pts, 2)

	_, err = readPoints(nil, strings.NewReader("1,2\nnope\n"))
	assert.ErrorContains(t, err, "line 2")

	_, err = readPoints([]string{"1;2"}, nil)
	assert.Error(t, err)
}

func writeGraph(t *testing.T) string {
	t.Helper()
	b := graph.NewBuilder()
	for _, p := range [][2]float64{{52.5, 13.4}, {52.5, 13.41}, {52.51, 13.41}} {
		_, err := b.AddNode(p[0], p[1])
		require.NoError(t, err)
	}
	_, err := b.AddEdge(0, 1)
	require.NoError(t, err)
	_, err = b.AddEdge(1, 2, geo.Point{Lat: 52.505, Lon: 13.412})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "graph.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, graph.WriteJSON(f, b.Build()))
	require.NoError(t, f.Close())
	return path
}

func TestRun(t *testing.T) {
	t.Setenv("ROADKIT_RESOLUTION", "100")
	t.Setenv("ROADKIT_LOG_LEVEL", "error")
	graphPath := writeGraph(t)
	storeURI := "file://" + t.TempDir()

	var out bytes.Buffer
	rc := runConfig{graphPath: graphPath, storeURI: storeURI, args: []string{"52.5001,13.405", "10,10"}}
	require.NoError(t, run(context.Background(), rc, nil, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var rec snapRecord
	require.NoError(t, gojson.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, int32(0), rec.Edge)
	require.NotNil(t, rec.Distance)
	assert.InDelta(t, 11.1, *rec.Distance, 0.5)
	assert.Equal(t, "edge", rec.Position)

	// Far away points still snap to the nearest tower.
	rec = snapRecord{}
	require.NoError(t, gojson.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, int32(0), rec.Edge)
	assert.Equal(t, int32(0), rec.Node)
	assert.Equal(t, "tower", rec.Position)

	// The second run loads the persisted index.
	out.Reset()
	rc.args = []string{"52.505,13.4119"}
	require.NoError(t, run(context.Background(), rc, nil, &out))
	assert.Contains(t, out.String(), `"edge":1`)
}

func TestRun_MissingGraph(t *testing.T) {
	assert.Error(t, run(context.Background(), runConfig{}, nil, &bytes.Buffer{}))
	assert.Error(t, run(context.Background(), runConfig{graphPath: "does-not-exist.json"}, nil, &bytes.Buffer{}))
}
