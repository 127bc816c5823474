//go:build !race

package common

// RaceEnabled reports whether the race detector is compiled in.
const RaceEnabled = false
