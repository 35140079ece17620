package pgutils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumn_SelectAllQuery(t *testing.T) {
	tbl := testEventsTable(t)
	score, err := tbl.Column("score")
	require.NoError(t, err)

	assert.Equal(t, "select score from analytics.events", score.SelectAllQuery())
	assert.Equal(t, "select score from analytics.events order by 1",
		score.Sorted(Ascending).SelectAllQuery())
	assert.Equal(t, "select score from analytics.events order by 1 desc",
		score.Sorted(Descending).SelectAllQuery())
}

func TestColumn_Sorted_ReturnsCopy(t *testing.T) {
	tbl := testEventsTable(t)
	score, err := tbl.Column("score")
	require.NoError(t, err)

	sorted := score.Sorted(Descending)
	assert.NotSame(t, score, sorted)
	assert.Equal(t, "select score from analytics.events", score.SelectAllQuery())
	assert.True(t, sorted.IsNumeric())
	assert.True(t, score.Equal(sorted))
}

func TestColumn_Equal(t *testing.T) {
	a := testEventsTable(t)
	b := testEventsTable(t)

	scoreA, err := a.Column("score")
	require.NoError(t, err)
	scoreB, err := b.Column("score")
	require.NoError(t, err)
	idA, err := a.Column("id")
	require.NoError(t, err)

	assert.True(t, scoreA.Equal(scoreB))
	assert.False(t, scoreA.Equal(idA))
	assert.False(t, scoreA.Equal(nil))
}

func TestColumn_Parent(t *testing.T) {
	tbl := testEventsTable(t)
	score, err := tbl.Column("score")
	require.NoError(t, err)
	assert.Same(t, tbl, score.Parent())
	assert.Equal(t, "score", score.String())
}

func TestColumn_Mean_NonNumeric(t *testing.T) {
	tbl := testEventsTable(t)
	name, err := tbl.Column("name")
	require.NoError(t, err)

	_, err = name.Mean(context.Background())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = name.Describe(context.Background(), DescribeOptions{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMemo(t *testing.T) {
	var m memo

	calls := 0
	compute := func() (any, error) { calls++; return calls, nil }

	v, err := m.get("k", compute)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Cached; compute is not called again.
	v, err = m.get("k", compute)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, calls)

	m.clear()
	v, err = m.get("k", compute)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMemo_ErrorNotCached(t *testing.T) {
	var m memo

	calls := 0
	failing := func() (any, error) { calls++; return nil, assert.AnError }

	_, err := m.get("k", failing)
	require.Error(t, err)
	_, err = m.get("k", failing)
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}
