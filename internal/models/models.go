package models

import (
	"fmt"
	"math"
)

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.Lat, p.Lon)
}

// MatchPair links a source point to its nearest target point.
// Match is nil and TargetIndex is -1 when the target set was empty.
type MatchPair struct {
	Source      Point   `json:"source"`
	Match       *Point  `json:"match"`
	TargetIndex int     `json:"target_index"`
	Distance    float64 `json:"distance_km"`
}

// Matched reports whether a target point was found.
func (m MatchPair) Matched() bool {
	return m.Match != nil
}

// ResultRow is one report line. The target columns are nil on unmatched
// rows so they render as blank cells, while real zeros stay visible.
type ResultRow struct {
	SourceIndex int      `csv:"source_index"`
	SourceLat   float64  `csv:"source_lat"`
	SourceLon   float64  `csv:"source_lon"`
	Matched     bool     `csv:"matched"`
	TargetIndex *int     `csv:"target_index"`
	TargetLat   *float64 `csv:"target_lat"`
	TargetLon   *float64 `csv:"target_lon"`
	DistanceKm  *float64 `csv:"distance_km"`
	Distance    *int     `csv:"distance_m"`
}

// SetMatch fills the target columns. index is 1-based.
func (r *ResultRow) SetMatch(index int, target Point, km float64) {
	meters := int(math.Round(km * 1000))
	r.Matched = true
	r.TargetIndex = &index
	r.TargetLat = &target.Lat
	r.TargetLon = &target.Lon
	r.DistanceKm = &km
	r.Distance = &meters
}
