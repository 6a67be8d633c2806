package coord

import (
	"fmt"
	"math"
)

// FormatDMS renders v as D°M'S.ss"H. Seconds keep two decimals, which
// bounds the round-trip error well under 1e-5 degrees.
func FormatDMS(v float64, axis Axis) string {
	pos, neg := axis.hemispheres()
	h := pos
	if v < 0 {
		h = neg
		v = -v
	}

	deg := math.Floor(v)
	mins := math.Floor((v - deg) * 60)
	sec := math.Round(((v-deg)*3600-mins*60)*100) / 100
	if sec <= 0 {
		sec = 0
	}
	if sec >= 60 {
		sec -= 60
		mins++
	}
	if mins >= 60 {
		mins -= 60
		deg++
	}
	return fmt.Sprintf("%d°%d'%s\"%c", int(deg), int(mins), formatSeconds(sec), h)
}

func formatSeconds(sec float64) string {
	s := fmt.Sprintf("%.2f", sec)
	// 8.00 -> 8, 7.50 -> 7.5
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}
