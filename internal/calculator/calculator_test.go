package calculator

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"point-matcher/internal/models"
)

var (
	sanFrancisco = models.Point{Lat: 37.7749, Lon: -122.4194}
	losAngeles   = models.Point{Lat: 34.0522, Lon: -118.2437}
	newYork      = models.Point{Lat: 40.7128, Lon: -74.0060}
	lasVegas     = models.Point{Lat: 36.1699, Lon: -115.1398}
)

func TestMatchClosestPoints(t *testing.T) {
	pairs := MatchClosestPoints(
		[]models.Point{sanFrancisco, losAngeles},
		[]models.Point{newYork, lasVegas},
	)

	require.Len(t, pairs, 2)
	assert.Equal(t, sanFrancisco, pairs[0].Source)
	assert.Equal(t, losAngeles, pairs[1].Source)
	for _, p := range pairs {
		require.NotNil(t, p.Match)
		assert.Equal(t, lasVegas, *p.Match)
		assert.Equal(t, 1, p.TargetIndex)
		assert.InDelta(t, Haversine(p.Source.Lat, p.Source.Lon, lasVegas.Lat, lasVegas.Lon), p.Distance, 1e-9)
	}
}

func TestMatchClosestPointsEmptySource(t *testing.T) {
	pairs := MatchClosestPoints(nil, []models.Point{newYork})
	assert.NotNil(t, pairs)
	assert.Empty(t, pairs)

	assert.Empty(t, MatchClosestPoints([]models.Point{}, nil))
}

func TestMatchClosestPointsEmptyTarget(t *testing.T) {
	pairs := MatchClosestPoints([]models.Point{sanFrancisco, losAngeles}, nil)

	require.Len(t, pairs, 2)
	assert.Equal(t, models.MatchPair{Source: sanFrancisco, TargetIndex: -1}, pairs[0])
	assert.Equal(t, models.MatchPair{Source: losAngeles, TargetIndex: -1}, pairs[1])
	assert.False(t, pairs[0].Matched())
}

func TestMatchClosestPointsFirstWinsTies(t *testing.T) {
	east := models.Point{Lat: 0, Lon: 1}
	west := models.Point{Lat: 0, Lon: -1}

	pairs := MatchClosestPoints([]models.Point{{Lat: 0, Lon: 0}}, []models.Point{east, west})
	require.Len(t, pairs, 1)
	assert.Equal(t, 0, pairs[0].TargetIndex)
	assert.Equal(t, east, *pairs[0].Match)

	pairs = MatchClosestPoints([]models.Point{{Lat: 0, Lon: 0}}, []models.Point{west, east})
	assert.Equal(t, west, *pairs[0].Match)

	dup := models.Point{Lat: 5, Lon: 5}
	pairs = MatchClosestPoints([]models.Point{{Lat: 4, Lon: 4}}, []models.Point{dup, dup, dup})
	assert.Equal(t, 0, pairs[0].TargetIndex)
}

func TestMatchClosestPointsNaNSource(t *testing.T) {
	src := []models.Point{{Lat: math.NaN(), Lon: 0}}
	dst := []models.Point{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}

	pairs := MatchClosestPoints(src, dst)
	require.Len(t, pairs, 1)
	require.NotNil(t, pairs[0].Match)
	assert.Equal(t, dst[0], *pairs[0].Match)
	assert.Equal(t, 0, pairs[0].TargetIndex)
	assert.True(t, math.IsNaN(pairs[0].Distance))
}

func TestBruteForceWorkersMatchSequential(t *testing.T) {
	var source, target []models.Point
	for i := 0; i < 257; i++ {
		source = append(source, models.Point{Lat: float64(i%180) - 89.5, Lon: float64((i*37)%360) - 179.5})
	}
	for i := 0; i < 61; i++ {
		target = append(target, models.Point{Lat: float64((i*13)%180) - 90, Lon: float64((i*71)%360) - 180})
	}

	want, err := BruteForce{}.Match(context.Background(), source, target)
	require.NoError(t, err)

	got, err := BruteForce{Workers: 4}.Match(context.Background(), source, target)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBruteForceCustomDistance(t *testing.T) {
	calls := 0
	flat := func(lat1, lon1, lat2, lon2 float64) float64 {
		calls++
		return (lat1-lat2)*(lat1-lat2) + (lon1-lon2)*(lon1-lon2)
	}

	m := BruteForce{Distance: flat}
	pairs, err := m.Match(context.Background(), []models.Point{sanFrancisco, losAngeles}, []models.Point{newYork, lasVegas})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, lasVegas, *pairs[0].Match)
}

func TestBruteForceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pairs, err := BruteForce{}.Match(ctx, []models.Point{sanFrancisco}, []models.Point{newYork})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, pairs)
}

func TestBruteForceProgress(t *testing.T) {
	var last [2]int
	m := BruteForce{OnProgress: func(current, total int, _ string) {
		last = [2]int{current, total}
	}}

	_, err := m.Match(context.Background(), []models.Point{sanFrancisco, losAngeles}, []models.Point{newYork})
	require.NoError(t, err)
	assert.Equal(t, [2]int{2, 2}, last)
}

func TestMatcherInterface(t *testing.T) {
	var m Matcher = BruteForce{Distance: S2Distance}
	pairs, err := m.Match(context.Background(), []models.Point{losAngeles}, []models.Point{newYork, lasVegas})
	require.NoError(t, err)
	assert.Equal(t, lasVegas, *pairs[0].Match)
}

func TestWithinRadius(t *testing.T) {
	source := []models.Point{sanFrancisco, losAngeles}
	target := []models.Point{newYork, lasVegas, sanFrancisco}

	got := WithinRadius(source, target, 600, nil)
	require.Len(t, got, 3)

	assert.Equal(t, [2]int{0, 2}, [2]int{got[0].SourceIndex, got[0].TargetIndex})
	assert.Equal(t, 0.0, got[0].Distance)
	assert.Equal(t, [2]int{1, 1}, [2]int{got[1].SourceIndex, got[1].TargetIndex})
	assert.Equal(t, [2]int{1, 2}, [2]int{got[2].SourceIndex, got[2].TargetIndex})
	// San Francisco to Las Vegas is about 670 km
	for _, m := range got {
		assert.LessOrEqual(t, m.Distance, 600.0)
	}

	assert.Empty(t, WithinRadius(source, nil, 600, nil))
	assert.Len(t, WithinRadius(source, target, 0, nil), 1)
}
