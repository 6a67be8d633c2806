// Package coord converts textual coordinates to decimal degrees and back.
package coord

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"point-matcher/internal/models"
)

// dmsRe matches the whole token: integer degrees and minutes, decimal
// seconds and one hemisphere letter.
var dmsRe = regexp.MustCompile(`^\s*(\d+)\s*°\s*(\d+)\s*'\s*(\d+(?:\.\d+)?)\s*"\s*([NSEWnsew])\s*$`)

// Parse accepts a numeric value or a string token and returns decimal degrees.
func Parse(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return ParseCoordinate(v.String())
	case string:
		return ParseCoordinate(v)
	default:
		return 0, &InvalidFormatError{Raw: value}
	}
}

// ParseCoordinate returns the decimal-degree value of a plain decimal string
// or of a DMS string such as 34°3'8"N. South and west are negative.
func ParseCoordinate(s string) (float64, error) {
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, &InvalidFormatError{Raw: s}
		}
		return f, nil
	}

	m := dmsRe.FindStringSubmatch(s)
	if m == nil {
		return 0, &InvalidFormatError{Raw: s}
	}

	deg, err1 := strconv.ParseFloat(m[1], 64)
	mins, err2 := strconv.ParseFloat(m[2], 64)
	sec, err3 := strconv.ParseFloat(m[3], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, &InvalidFormatError{Raw: s}
	}

	angle := deg + mins/60 + sec/3600
	switch strings.ToUpper(m[4]) {
	case "S", "W":
		angle = -angle
	}
	return angle, nil
}

// ParsePoint parses a latitude and longitude token and validates the result.
func ParsePoint(lat, lon any) (models.Point, error) {
	la, err := Parse(lat)
	if err != nil {
		return models.Point{}, err
	}
	lo, err := Parse(lon)
	if err != nil {
		return models.Point{}, err
	}
	if err := Validate(la, lo); err != nil {
		return models.Point{}, err
	}
	return models.Point{Lat: la, Lon: lo}, nil
}
