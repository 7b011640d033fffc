package audio

import "math"

// MinDB is the level reported for zero amplitude. It is finite so that it
// compares below every real level.
const MinDB = -math.MaxFloat64

// ToDB converts a linear amplitude to decibels.
func ToDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return MinDB
	}
	return 20 * math.Log10(amplitude)
}

// FromDB converts decibels to a linear amplitude.
func FromDB(db float64) float64 {
	if db <= MinDB {
		return 0
	}
	return math.Pow(10, db/20)
}
