package qr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Validation bounds for generation inputs.
const (
	MaxDataLength = 4296 // maximum characters encodable in a QR code
	MinSize       = 21
	MaxSize       = 4000
)

func ValidateData(data string) error {
	if strings.TrimSpace(data) == "" {
		return fmt.Errorf("data cannot be empty")
	}
	if len(data) > MaxDataLength {
		return fmt.Errorf("data exceeds maximum length of %d characters", MaxDataLength)
	}
	return nil
}

func ValidateSize(size int) error {
	if size < MinSize || size > MaxSize {
		return fmt.Errorf("size must be between %d and %d pixels", MinSize, MaxSize)
	}
	return nil
}

// Generate renders a standalone QR code with high error correction.
func Generate(data string, size int, fg, bg color.Color) (image.Image, error) {
	if err := ValidateData(data); err != nil {
		return nil, err
	}
	if err := ValidateSize(size); err != nil {
		return nil, err
	}

	code, err := qrcode.New(data, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR: %w", err)
	}
	code.ForegroundColor = fg
	code.BackgroundColor = bg

	return code.Image(size), nil
}

// Modules returns the raw QR module matrix (including quiet zone) for the
// artistic and halftone renderers.
func Modules(data string) ([][]bool, error) {
	if err := ValidateData(data); err != nil {
		return nil, err
	}

	code, err := qrcode.New(data, qrcode.Highest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR: %w", err)
	}

	return code.Bitmap(), nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

var namedColors = map[string]color.RGBA{
	"black":   {0, 0, 0, 255},
	"white":   {255, 255, 255, 255},
	"red":     {255, 0, 0, 255},
	"green":   {0, 128, 0, 255},
	"blue":    {0, 0, 255, 255},
	"yellow":  {255, 255, 0, 255},
	"orange":  {255, 165, 0, 255},
	"purple":  {128, 0, 128, 255},
	"gray":    {128, 128, 128, 255},
	"grey":    {128, 128, 128, 255},
	"navy":    {0, 0, 128, 255},
	"teal":    {0, 128, 128, 255},
	"maroon":  {128, 0, 0, 255},
	"magenta": {255, 0, 255, 255},
	"cyan":    {0, 255, 255, 255},
}

// ParseColor accepts a named color or a #RGB / #RRGGBB hex value.
func ParseColor(s string) (color.Color, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[name]; ok {
		return c, nil
	}

	if strings.HasPrefix(name, "#") {
		hex := name[1:]
		if len(hex) == 3 {
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		}
		if len(hex) == 6 {
			v, err := strconv.ParseUint(hex, 16, 32)
			if err == nil {
				return color.RGBA{
					R: uint8(v >> 16),
					G: uint8(v >> 8),
					B: uint8(v),
					A: 255,
				}, nil
			}
		}
	}

	return nil, fmt.Errorf("unsupported color %q", s)
}
