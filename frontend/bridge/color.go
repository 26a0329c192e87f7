package bridge

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGB represents an RGB color with values 0-255
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex returns the lowercase #rrggbb form.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHexColor accepts #rgb and #rrggbb.
func ParseHexColor(s string) (RGB, error) {
	if !strings.HasPrefix(s, "#") {
		return RGB{}, fmt.Errorf("color %q: missing #", s)
	}
	digits := s[1:]
	if len(digits) == 3 {
		digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
	}
	if len(digits) != 6 {
		return RGB{}, fmt.Errorf("color %q: want 3 or 6 hex digits", s)
	}
	n, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("color %q: %w", s, err)
	}
	return RGB{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

// IsHexColor reports whether s parses as a hex color.
func IsHexColor(s string) bool {
	_, err := ParseHexColor(s)
	return err == nil
}

// NormalizeColor resolves a hex string or a named color to #rrggbb.
func NormalizeColor(s string) (string, error) {
	if c, ok := NamedColors[strings.ToLower(s)]; ok {
		return c.Hex(), nil
	}
	c, err := ParseHexColor(s)
	if err != nil {
		return "", err
	}
	return c.Hex(), nil
}

// HSBToRGB converts hue (0-360), saturation and brightness (0-1) to RGB.
func HSBToRGB(hue, saturation, brightness float64) RGB {
	hue = math.Mod(hue, 360)
	if hue < 0 {
		hue += 360
	}

	if saturation <= 0 {
		v := uint8(math.Round(brightness * 255))
		return RGB{R: v, G: v, B: v}
	}
	if brightness <= 0 {
		return RGB{}
	}

	c := brightness * saturation
	x := c * (1 - math.Abs(math.Mod(hue/60, 2)-1))
	m := brightness - c

	var r1, g1, b1 float64
	switch {
	case hue < 60:
		r1, g1, b1 = c, x, 0
	case hue < 120:
		r1, g1, b1 = x, c, 0
	case hue < 180:
		r1, g1, b1 = 0, c, x
	case hue < 240:
		r1, g1, b1 = 0, x, c
	case hue < 300:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}

	return RGB{
		R: uint8(math.Round((r1 + m) * 255)),
		G: uint8(math.Round((g1 + m) * 255)),
		B: uint8(math.Round((b1 + m) * 255)),
	}
}

// RGBToHSB converts RGB to hue (0-360), saturation and brightness (0-1).
func RGBToHSB(c RGB) (hue, saturation, brightness float64) {
	rf := float64(c.R) / 255
	gf := float64(c.G) / 255
	bf := float64(c.B) / 255

	hi := math.Max(rf, math.Max(gf, bf))
	lo := math.Min(rf, math.Min(gf, bf))
	delta := hi - lo

	brightness = hi
	if hi > 0 {
		saturation = delta / hi
	}

	if delta != 0 {
		switch hi {
		case rf:
			hue = 60 * math.Mod((gf-bf)/delta, 6)
		case gf:
			hue = 60 * ((bf-rf)/delta + 2)
		case bf:
			hue = 60 * ((rf-gf)/delta + 4)
		}
	}
	if hue < 0 {
		hue += 360
	}
	return hue, saturation, brightness
}

// NamedColors maps color names accepted by Set to RGB values
var NamedColors = map[string]RGB{
	"red":     {R: 255, G: 0, B: 0},
	"orange":  {R: 255, G: 165, B: 0},
	"yellow":  {R: 255, G: 255, B: 0},
	"green":   {R: 0, G: 255, B: 0},
	"cyan":    {R: 0, G: 255, B: 255},
	"blue":    {R: 0, G: 0, B: 255},
	"purple":  {R: 128, G: 0, B: 128},
	"pink":    {R: 255, G: 192, B: 203},
	"magenta": {R: 255, G: 0, B: 255},
	"white":   {R: 255, G: 255, B: 255},
	"black":   {R: 0, G: 0, B: 0},
}
