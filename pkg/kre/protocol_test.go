package kre_test

import (
	"context"
	"testing"

	"github.com/luxfi/kre/pkg/kre"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBits = 256

func runLocal(t *testing.T, dbs [][]int, k int) (int, bool) {
	t.Helper()
	coordinator, parties, err := kre.NewProtocol(dbs, k, testBits)
	require.NoError(t, err)

	value, found, err := kre.RunLocal(context.Background(), nil, coordinator, parties)
	require.NoError(t, err)
	return value, found
}

func TestScenarioSinglePartyMin(t *testing.T) {
	value, found := runLocal(t, [][]int{{-3, 7, 0, 2}}, 1)
	assert.True(t, found)
	assert.Equal(t, -3, value)
}

func TestScenarioSinglePartyMax(t *testing.T) {
	value, found := runLocal(t, [][]int{{-3, 7, 0, 2}}, 4)
	assert.True(t, found)
	assert.Equal(t, 7, value)
}

func TestScenarioTwoPartiesMedian(t *testing.T) {
	value, found := runLocal(t, [][]int{{1, 3, 5}, {2, 4, 6}}, 3)
	assert.True(t, found)
	assert.Equal(t, 3, value)
}

func TestScenarioThreePartiesDuplicates(t *testing.T) {
	value, found := runLocal(t, [][]int{{5, 5}, {5}, {1, 9}}, 3)
	assert.True(t, found)
	assert.Equal(t, 5, value)
}

func TestScenarioDPNoiseNoneMatchesNonDP(t *testing.T) {
	dbs := [][]int{
		{-80, -20, 10, 60},
		{-90, 5, 33, 71},
		{-100, -45, 2, 99},
		{-60, -3, 40, 88},
		{-77, -11, 22, 64},
		{-55, 0, 18, 91},
		{-95, -30, 9, 50},
		{-40, 6, 47, 80},
		{-70, -5, 15, 66},
		{-85, -22, 31, 73},
	}
	const k = 20

	nonDPValue, nonDPFound := runLocal(t, dbs, k)
	require.True(t, nonDPFound)

	coordinator, parties, err := kre.NewDPProtocol(dbs, k, testBits, kre.NoiseNone, kre.ScaleFixed)
	require.NoError(t, err)
	dpValue, dpFound, err := kre.RunLocal(context.Background(), nil, coordinator, parties)
	require.NoError(t, err)
	assert.True(t, dpFound)
	assert.Equal(t, nonDPValue, dpValue)
}

func TestVerdictTieBreakPrefersSearchBelow(t *testing.T) {
	coordinator, err := kre.NewCoordinator(1, 5, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, kre.VerdictSearchBelow, coordinator.Verdict(5, 5))
}

func TestBoundaryAllEqualValuesConverge(t *testing.T) {
	value, found := runLocal(t, [][]int{{4, 4, 4, 4}}, 1)
	assert.True(t, found)
	assert.Equal(t, 4, value)
}

func TestBoundaryRangeCollapsesToSinglePoint(t *testing.T) {
	value, found := runLocal(t, [][]int{{9}}, 1)
	assert.True(t, found)
	assert.Equal(t, 9, value)
}

func TestBoundaryEmptyDatabaseAcceptedWithZeroCounts(t *testing.T) {
	value, found := runLocal(t, [][]int{{}, {1, 2, 3}}, 2)
	assert.True(t, found)
	assert.Equal(t, 2, value)
}

func TestInputInvalidKOutOfRange(t *testing.T) {
	_, _, err := kre.NewProtocol([][]int{{1, 2, 3}}, 0, testBits)
	assert.Error(t, err)
	var invalid *kre.InputInvalid
	assert.ErrorAs(t, err, &invalid)

	_, _, err = kre.NewProtocol([][]int{{1, 2, 3}}, 4, testBits)
	assert.Error(t, err)
	assert.ErrorAs(t, err, &invalid)
}
