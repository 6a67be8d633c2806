package coord

import "math"

type Axis int

const (
	Latitude Axis = iota
	Longitude
)

func (a Axis) String() string {
	if a == Latitude {
		return "latitude"
	}
	return "longitude"
}

func (a Axis) bounds() (float64, float64) {
	if a == Latitude {
		return -90, 90
	}
	return -180, 180
}

// hemispheres returns the letters used for positive and negative values.
func (a Axis) hemispheres() (byte, byte) {
	if a == Latitude {
		return 'N', 'S'
	}
	return 'E', 'W'
}

// Check returns an *OutOfRangeError if v is NaN or outside the axis bounds.
func (a Axis) Check(v float64) error {
	lo, hi := a.bounds()
	if math.IsNaN(v) || v < lo || v > hi {
		return &OutOfRangeError{Axis: a, Value: v}
	}
	return nil
}

// Validate checks latitude and longitude bounds.
func Validate(lat, lon float64) error {
	if err := Latitude.Check(lat); err != nil {
		return err
	}
	return Longitude.Check(lon)
}
