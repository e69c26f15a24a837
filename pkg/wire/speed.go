package wire

// SpeedFactorFromPercent maps a viewer speed slider percentage (0..100) to
// a replay speed-factor multiplier (1..900) through a fixed piecewise-linear
// table, using integer math. Out-of-range input yields 0.
//
// Breakpoints: 0-10% -> 1-60, 10-40% -> 60-300, 40-60% -> 300-600,
// 60-100% -> 600-900.
func SpeedFactorFromPercent(percent int) int {
	switch {
	case percent >= 0 && percent <= 10:
		return (60-1)*(percent-0)/(10-0) + 1
	case percent > 10 && percent <= 40:
		return (300-60)*(percent-10)/(40-10) + 60
	case percent > 40 && percent <= 60:
		return (600-300)*(percent-40)/(60-40) + 300
	case percent > 60 && percent <= 100:
		return (900-600)*(percent-60)/(100-60) + 600
	}
	return 0
}
