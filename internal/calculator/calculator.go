package calculator

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"point-matcher/internal/models"
)

type ProgressCallback func(current, total int, msg string)

// Matcher pairs every source point with its nearest target point.
type Matcher interface {
	Match(ctx context.Context, source, target []models.Point) ([]models.MatchPair, error)
}

// BruteForce scans every target for every source point.
// Workers > 1 splits the source points into chunks scanned in parallel;
// the output is the same as the sequential scan.
type BruteForce struct {
	Distance   DistanceFunc
	Workers    int
	OnProgress ProgressCallback
}

// MatchClosestPoints matches with Haversine distance on a single goroutine.
func MatchClosestPoints(source, target []models.Point) []models.MatchPair {
	pairs, _ := BruteForce{}.Match(context.Background(), source, target)
	return pairs
}

func (b BruteForce) Match(ctx context.Context, source, target []models.Point) ([]models.MatchPair, error) {
	dist := b.Distance
	if dist == nil {
		dist = Haversine
	}

	total := len(source)
	results := make([]models.MatchPair, total)
	if total == 0 {
		return results, nil
	}

	workers := b.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	chunkSize := (total + workers - 1) / workers

	var (
		wg             sync.WaitGroup
		processedCount int64
		cancelled      atomic.Bool
	)

	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if start >= total {
			break
		}
		if end > total {
			end = total
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()

			for idx := s; idx < e; idx++ {
				if ctx.Err() != nil {
					cancelled.Store(true)
					return
				}
				results[idx] = nearest(source[idx], target, dist)

				count := atomic.AddInt64(&processedCount, 1)
				if count%500 == 0 && b.OnProgress != nil {
					b.OnProgress(int(count), total, "")
				}
			}
		}(start, end)
	}

	wg.Wait()

	if cancelled.Load() {
		return nil, ctx.Err()
	}
	if b.OnProgress != nil {
		b.OnProgress(total, total, "")
	}
	return results, nil
}

// nearest keeps the first target with the strictly smallest distance.
func nearest(src models.Point, target []models.Point, dist DistanceFunc) models.MatchPair {
	pair := models.MatchPair{Source: src, TargetIndex: -1}
	var minDist float64

	// the first target is always taken so a NaN distance still yields a match
	for i := range target {
		d := dist(src.Lat, src.Lon, target[i].Lat, target[i].Lon)
		if i == 0 || d < minDist {
			minDist = d
			pair.TargetIndex = i
		}
	}

	if pair.TargetIndex >= 0 {
		p := target[pair.TargetIndex]
		pair.Match = &p
		pair.Distance = minDist
	}
	return pair
}

// RadiusMatch is one source/target pair within the search radius.
type RadiusMatch struct {
	SourceIndex int          `json:"source_index"`
	TargetIndex int          `json:"target_index"`
	Source      models.Point `json:"source"`
	Target      models.Point `json:"target"`
	Distance    float64      `json:"distance_km"`
}

// WithinRadius returns every source/target pair at most radiusKm apart,
// ordered by source index and then target index.
func WithinRadius(source, target []models.Point, radiusKm float64, dist DistanceFunc) []RadiusMatch {
	if dist == nil {
		dist = Haversine
	}

	var out []RadiusMatch
	for si, src := range source {
		for ti, p := range target {
			d := dist(src.Lat, src.Lon, p.Lat, p.Lon)
			if d <= radiusKm {
				out = append(out, RadiusMatch{
					SourceIndex: si,
					TargetIndex: ti,
					Source:      src,
					Target:      p,
					Distance:    d,
				})
			}
		}
	}
	return out
}
