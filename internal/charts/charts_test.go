package charts

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matrix(rows int) [][]int {
	m := make([][]int, rows)
	for r := range m {
		m[r] = make([]int, 24)
	}
	return m
}

func TestActivityPNG(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m    [][]int
	}{
		{"empty week", matrix(7)},
		{"single cell", func() [][]int { m := matrix(7); m[6][14] = 3; return m }()},
		{"one row", func() [][]int { m := matrix(1); m[0][0] = 1; m[0][23] = 5; return m }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := ActivityPNG(tt.m, "Activity")
			require.NoError(t, err)
			require.True(t, bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")))

			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Positive(t, img.Bounds().Dx())
		})
	}
}

func TestActivityRejectsBadMatrix(t *testing.T) {
	t.Parallel()

	_, err := ActivityPNG(nil, "x")
	require.ErrorIs(t, err, ErrEmptyMatrix)

	_, err = ActivityHTML([][]int{{}}, "x")
	require.ErrorIs(t, err, ErrEmptyMatrix)

	_, err = ActivityPNG([][]int{{1, 2}, {1}}, "x")
	require.Error(t, err)
}

func TestActivityHTML(t *testing.T) {
	t.Parallel()

	m := matrix(7)
	m[6][14] = 4

	data, err := ActivityHTML(m, "Weekly activity")
	require.NoError(t, err)

	page := string(data)
	assert.Contains(t, page, "<html")
	assert.Contains(t, page, "Weekly activity")
	assert.Contains(t, page, "heatmap")
	assert.Contains(t, page, "detections")
}

func TestBlockLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "now", blockLabel(6, 7))
	assert.Equal(t, "-6", blockLabel(0, 7))
}
