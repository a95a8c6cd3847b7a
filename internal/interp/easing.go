package interp

// Easing remaps linear progress before interpolation.
type Easing func(t float64) float64

// Linear leaves progress untouched.
func Linear(t float64) float64 { return t }

// EaseInOutCubic applies smooth easing at both ends.
func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - pow(-2*t+2, 3)/2
}

// EaseOutQuad decelerates toward the end.
func EaseOutQuad(t float64) float64 {
	return 1 - (1-t)*(1-t)
}

// EasingByName resolves an easing name, falling back to EaseInOutCubic.
func EasingByName(name string) Easing {
	switch name {
	case "linear":
		return Linear
	case "ease-out":
		return EaseOutQuad
	default:
		return EaseInOutCubic
	}
}

// pow calculates x^n
func pow(x float64, n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= x
	}
	return result
}
