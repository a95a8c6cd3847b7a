package interp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Color is a parsed property color: an RGB triple plus straight alpha.
type Color struct {
	RGB   colorful.Color
	Alpha float64
}

// ParseColor accepts 3/6/8-digit hex (#rgb, #rrggbb, #rrggbbaa) and the
// functional rgba(r,g,b,a) form.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		return parseHex(s)
	}
	if strings.HasPrefix(strings.ToLower(s), "rgba(") || strings.HasPrefix(strings.ToLower(s), "rgb(") {
		return parseFunctional(s)
	}
	return Color{}, fmt.Errorf("unrecognized color %q", s)
}

// BlendColors blends two color strings in RGBA space. The result re-encodes
// compactly as lowercase #rrggbb when the blended alpha is 1, and keeps the
// functional rgba() form otherwise.
func BlendColors(from, to string, t float64) (string, error) {
	fc, err := ParseColor(from)
	if err != nil {
		return "", err
	}
	tc, err := ParseColor(to)
	if err != nil {
		return "", err
	}

	blended := Color{
		RGB:   fc.RGB.BlendRgb(tc.RGB, t),
		Alpha: fc.Alpha + (tc.Alpha-fc.Alpha)*t,
	}
	return blended.String(), nil
}

// String renders the color back to its property form.
func (c Color) String() string {
	r, g, b := c.RGB.Clamped().RGB255()
	if c.Alpha >= 0.9995 {
		return fmt.Sprintf("#%02x%02x%02x", r, g, b)
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%s)", r, g, b,
		strconv.FormatFloat(c.Alpha, 'f', -1, 64))
}

// RGBA8 returns 8-bit premultiply-free channel values.
func (c Color) RGBA8() (r, g, b, a uint8) {
	r, g, b = c.RGB.Clamped().RGB255()
	a = uint8(clamp01(c.Alpha)*255 + 0.5)
	return
}

func parseHex(s string) (Color, error) {
	hex := s[1:]
	var r, g, b, a uint64
	var err error
	a = 0xff
	switch len(hex) {
	case 3:
		r, g, b, err = hexNibbles(hex)
	case 6:
		r, g, b, err = hexPairs(hex)
	case 8:
		r, g, b, err = hexPairs(hex[:6])
		if err == nil {
			a, err = strconv.ParseUint(hex[6:8], 16, 8)
		}
	default:
		return Color{}, fmt.Errorf("bad hex color %q", s)
	}
	if err != nil {
		return Color{}, fmt.Errorf("bad hex color %q", s)
	}
	return Color{
		RGB:   colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255},
		Alpha: float64(a) / 255,
	}, nil
}

func hexNibbles(hex string) (r, g, b uint64, err error) {
	vals := make([]uint64, 3)
	for i := 0; i < 3; i++ {
		v, e := strconv.ParseUint(hex[i:i+1], 16, 8)
		if e != nil {
			return 0, 0, 0, e
		}
		vals[i] = v*16 + v // expand #abc to #aabbcc
	}
	return vals[0], vals[1], vals[2], nil
}

func hexPairs(hex string) (r, g, b uint64, err error) {
	vals := make([]uint64, 3)
	for i := 0; i < 3; i++ {
		v, e := strconv.ParseUint(hex[2*i:2*i+2], 16, 8)
		if e != nil {
			return 0, 0, 0, e
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

func parseFunctional(s string) (Color, error) {
	open := strings.Index(s, "(")
	close := strings.LastIndex(s, ")")
	if open < 0 || close < open {
		return Color{}, fmt.Errorf("bad rgba color %q", s)
	}
	parts := strings.Split(s[open+1:close], ",")
	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, fmt.Errorf("bad rgba color %q", s)
	}

	nums := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Color{}, fmt.Errorf("bad rgba color %q", s)
		}
		nums[i] = v
	}

	alpha := 1.0
	if len(nums) == 4 {
		alpha = clamp01(nums[3])
	}
	return Color{
		RGB: colorful.Color{
			R: clamp01(nums[0] / 255),
			G: clamp01(nums[1] / 255),
			B: clamp01(nums[2] / 255),
		},
		Alpha: alpha,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
