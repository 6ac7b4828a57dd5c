package qr

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var ValidPositions = []string{"center", "top-left", "top-right", "bottom-left", "bottom-right"}

// CalcPosition returns the top-left corner for a QR of qrSize placed on a
// bgW x bgH background.
func CalcPosition(bgW, bgH, qrSize int, position string, margin int) (int, int, error) {
	switch strings.ToLower(position) {
	case "center":
		return (bgW - qrSize) / 2, (bgH - qrSize) / 2, nil
	case "bottom-right":
		return bgW - qrSize - margin, bgH - qrSize - margin, nil
	case "bottom-left":
		return margin, bgH - qrSize - margin, nil
	case "top-right":
		return bgW - qrSize - margin, margin, nil
	case "top-left":
		return margin, margin, nil
	}
	return 0, 0, fmt.Errorf("unsupported position %q, use one of: %s",
		position, strings.Join(ValidPositions, ", "))
}

const logoBoxPadding = 10

// WithLogo embeds a logo in the center of a QR code. High error correction
// tolerates up to 30%% of the code being obscured, hence the scale bounds.
func WithLogo(data string, size int, logoScale float64, fg, bg color.Color, logo image.Image) (image.Image, error) {
	if logoScale < 0.1 || logoScale > 0.4 {
		return nil, fmt.Errorf("logo_scale should be between 0.1 and 0.4 for reliable scanning")
	}

	base, err := Generate(data, size, fg, bg)
	if err != nil {
		return nil, err
	}

	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), base, image.Point{}, draw.Src)

	logoSize := int(float64(size) * logoScale)
	boxSize := logoSize + logoBoxPadding*2
	boxMin := image.Pt((size-boxSize)/2, (size-boxSize)/2)

	// Solid box behind the logo improves scannability.
	draw.Draw(out, image.Rectangle{Min: boxMin, Max: boxMin.Add(image.Pt(boxSize, boxSize))},
		image.NewUniform(bg), image.Point{}, draw.Src)

	logoMin := image.Pt((size-logoSize)/2, (size-logoSize)/2)
	dst := image.Rectangle{Min: logoMin, Max: logoMin.Add(image.Pt(logoSize, logoSize))}
	xdraw.CatmullRom.Scale(out, dst, logo, logo.Bounds(), xdraw.Over, nil)

	return out, nil
}

// WithText renders text in a cleared box in the center of a QR code.
func WithText(data, text string, size int, textScale float64, fg, bg, fontColor color.Color) (image.Image, error) {
	if textScale < 0.1 || textScale > 0.4 {
		return nil, fmt.Errorf("text_scale should be between 0.1 and 0.4 for reliable scanning")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	base, err := Generate(data, size, fg, bg)
	if err != nil {
		return nil, err
	}

	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), base, image.Point{}, draw.Src)

	boxSize := int(float64(size) * textScale)
	boxMin := image.Pt((size-boxSize)/2, (size-boxSize)/2)
	draw.Draw(out, image.Rectangle{Min: boxMin, Max: boxMin.Add(image.Pt(boxSize, boxSize))},
		image.NewUniform(bg), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	drawer := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(fontColor),
		Face: face,
		Dot: fixed.P(
			(size-width)/2,
			size/2+face.Metrics().Ascent.Ceil()/2,
		),
	}
	drawer.DrawString(text)

	return out, nil
}

// Embed places a freshly generated QR onto a background image.
func Embed(bg image.Image, data string, scale float64, position string, margin int, fill, back color.Color) (image.Image, error) {
	if scale <= 0 || scale > 1 {
		return nil, fmt.Errorf("scale must be between 0 and 1")
	}

	bounds := bg.Bounds()
	bgW, bgH := bounds.Dx(), bounds.Dy()

	qrSize := int(float64(bgW) * scale)
	if qrSize < MinSize {
		qrSize = MinSize
	}

	code, err := Generate(data, qrSize, fill, back)
	if err != nil {
		return nil, err
	}

	x, y, err := CalcPosition(bgW, bgH, qrSize, position, margin)
	if err != nil {
		return nil, err
	}

	out := image.NewRGBA(image.Rect(0, 0, bgW, bgH))
	draw.Draw(out, out.Bounds(), bg, bounds.Min, draw.Src)
	draw.Draw(out, image.Rect(x, y, x+qrSize, y+qrSize), code, image.Point{}, draw.Over)

	return out, nil
}
