package pgutils

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summaryFor(t *testing.T, stats map[string]float64) *Summary {
	t.Helper()
	index := []string{"count", "mean", "std_dev", "minimum", "25%", "75%", "maximum"}
	cells := make([]*float64, len(index))
	for i, label := range index {
		if v, ok := stats[label]; ok {
			v := v
			cells[i] = &v
		}
	}
	return newSummary(index, cells)
}

func TestFreedmanDiaconisBinCount(t *testing.T) {
	tests := []struct {
		name    string
		stats   map[string]float64
		want    int
		wantErr bool
	}{
		{
			// h = 2*(75-25)/cbrt(1000) = 10, range 0..200 -> 20 bins.
			name: "typical",
			stats: map[string]float64{
				"count": 1000, "minimum": 0, "maximum": 200, "25%": 25, "75%": 75,
			},
			want: 20,
		},
		{
			// Fractional widths round the bin count up.
			name: "rounds up",
			stats: map[string]float64{
				"count": 1000, "minimum": 0, "maximum": 205, "25%": 25, "75%": 75,
			},
			want: 21,
		},
		{
			// Zero IQR falls back to ceil(sqrt(count)).
			name: "constant quartiles",
			stats: map[string]float64{
				"count": 100, "minimum": 0, "maximum": 10, "25%": 5, "75%": 5,
			},
			want: 10,
		},
		{
			name: "sqrt fallback rounds up",
			stats: map[string]float64{
				"count": 10, "minimum": 0, "maximum": 1, "25%": 3, "75%": 3,
			},
			want: 4,
		},
		{
			name:    "empty dataset",
			stats:   map[string]float64{"count": 0},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := freedmanDiaconisBinCount(summaryFor(t, tt.stats))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBinCounts_Validation(t *testing.T) {
	tbl := testEventsTable(t)
	score, err := tbl.Column("score")
	require.NoError(t, err)

	// Validation failures happen before any query is issued, so a table with
	// no live connection is fine here.
	_, err = score.BinCounts(context.Background(), 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = score.BinCounts(context.Background(), -3)
	assert.ErrorIs(t, err, ErrValidation)

	name, err := tbl.Column("name")
	require.NoError(t, err)
	_, err = name.BinCounts(context.Background(), 10)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = name.AutoBinCounts(context.Background())
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBinCounts_ConstantColumn(t *testing.T) {
	tbl := testEventsTable(t)
	score, err := tbl.Column("score")
	require.NoError(t, err)

	desc := summaryFor(t, map[string]float64{
		"count": 42, "minimum": 7, "maximum": 7,
	})

	bins, err := score.binCounts(context.Background(), desc, 10)
	require.NoError(t, err)
	require.Len(t, bins, 1)
	assert.Equal(t, Bin{Left: 7, Right: 7, Count: 42}, bins[0])
}

func TestBinCounts_EmptyDataset(t *testing.T) {
	tbl := testEventsTable(t)
	score, err := tbl.Column("score")
	require.NoError(t, err)

	desc := summaryFor(t, map[string]float64{"count": 0})
	_, err = score.binCounts(context.Background(), desc, 10)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAutoBinCap(t *testing.T) {
	// A heavily concentrated IQR over a wide range wants far more than 50
	// bins; the auto path caps it.
	desc := summaryFor(t, map[string]float64{
		"count": 1e6, "minimum": 0, "maximum": 1e6, "25%": 100, "75%": 101,
	})
	bins, err := freedmanDiaconisBinCount(desc)
	require.NoError(t, err)
	assert.Greater(t, bins, autoBinCap)

	if bins > autoBinCap {
		bins = autoBinCap
	}
	assert.Equal(t, 50, bins)
}

func TestBinWidths(t *testing.T) {
	// Edges derived the way binCounts derives them tile the range exactly.
	minimum, maximum, bins := 0.0, 10.0, 4
	width := (maximum - minimum) / float64(bins)

	var prevRight float64
	for bucket := 1; bucket <= bins; bucket++ {
		left := minimum + float64(bucket-1)*width
		right := minimum + float64(bucket)*width
		if bucket > 1 {
			assert.Equal(t, prevRight, left)
		}
		prevRight = right
	}
	assert.True(t, math.Abs(prevRight-maximum) < 1e-12)
}
