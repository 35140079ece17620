package pgutils

import (
	"context"
	"fmt"
	"math"
)

// autoBinCap is the hard ceiling applied to the Freedman-Diaconis bin count
// when no explicit bin count is requested.
const autoBinCap = 50

// Bin is one histogram bucket: the half-open interval [Left, Right), closed
// on the right for the last bucket, and the number of rows that fall in it.
type Bin struct {
	Left  float64
	Right float64
	Count int64
}

// BinCounts computes a histogram of the column over bins equal-width
// buckets spanning the observed [minimum, maximum]. bins must be positive;
// validation happens before any query executes. The returned buckets cover
// the full range in order, zero-count buckets included.
func (c *Column) BinCounts(ctx context.Context, bins int) ([]Bin, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("%w: bins must be a positive integer (got %d)", ErrValidation, bins)
	}
	if !c.numeric {
		return nil, fmt.Errorf("%w: column %s is not a numeric column of %s", ErrValidation, c.name, c.table.Name())
	}
	desc, err := c.Describe(ctx, DescribeOptions{Percentiles: []float64{}})
	if err != nil {
		return nil, err
	}
	return c.binCounts(ctx, desc, bins)
}

// AutoBinCounts computes a histogram with the bin count chosen by the
// Freedman-Diaconis rule, capped at 50 buckets.
func (c *Column) AutoBinCounts(ctx context.Context) ([]Bin, error) {
	if !c.numeric {
		return nil, fmt.Errorf("%w: column %s is not a numeric column of %s", ErrValidation, c.name, c.table.Name())
	}
	desc, err := c.Describe(ctx, DescribeOptions{Percentiles: []float64{0.25, 0.75}})
	if err != nil {
		return nil, err
	}
	bins, err := freedmanDiaconisBinCount(desc)
	if err != nil {
		return nil, err
	}
	if bins > autoBinCap {
		bins = autoBinCap
	}
	return c.binCounts(ctx, desc, bins)
}

// freedmanDiaconisBinCount chooses a histogram bin count from a column
// description holding count, the 25th and 75th percentiles, minimum, and
// maximum. The bin width is 2*IQR/cbrt(count); a zero width (constant
// column) falls back to ceil(sqrt(count)).
func freedmanDiaconisBinCount(desc *Summary) (int, error) {
	count := desc.Count()
	if count == 0 {
		return 0, fmt.Errorf("%w: cannot compute a bin count for an empty dataset", ErrValidation)
	}

	h := 2 * (desc.Percentile(0.75) - desc.Percentile(0.25)) / math.Cbrt(float64(count))
	if h == 0 {
		return int(math.Ceil(math.Sqrt(float64(count)))), nil
	}
	return int(math.Ceil((desc.Max() - desc.Min()) / h)), nil
}

func (c *Column) binCounts(ctx context.Context, desc *Summary, bins int) ([]Bin, error) {
	count := desc.Count()
	if count == 0 {
		return nil, fmt.Errorf("%w: cannot compute bin counts for an empty dataset", ErrValidation)
	}

	minimum, maximum := desc.Min(), desc.Max()
	// width_bucket rejects equal bounds, so a constant column degenerates to
	// a single full-count bucket.
	if minimum == maximum {
		return []Bin{{Left: minimum, Right: maximum, Count: count}}, nil
	}

	query := fmt.Sprintf(queryBinCounts, c.name, c.table.Name(), c.name)
	rows, err := c.table.conn.Query(ctx, query, minimum, maximum, bins)
	if err != nil {
		return nil, fmt.Errorf("counting bins of %s.%s: %w", c.table.Name(), c.name, err)
	}
	defer rows.Close()

	width := (maximum - minimum) / float64(bins)
	out := make([]Bin, 0, bins)
	for rows.Next() {
		var bucket int
		var freq int64
		if err := rows.Scan(&bucket, &freq); err != nil {
			return nil, fmt.Errorf("scanning bin counts: %w", err)
		}
		bin := Bin{
			Left:  minimum + float64(bucket-1)*width,
			Right: minimum + float64(bucket)*width,
			Count: freq,
		}
		if bucket == bins {
			bin.Right = maximum
		}
		out = append(out, bin)
	}
	return out, rows.Err()
}
