package qr

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Module rendering parameters for the artistic and halftone styles. Finder
// patterns and timing cells stay solid so the result remains scannable.
const (
	defaultModulePx  = 9
	halftoneSubCells = 3
)

// Artistic blends a source image into the QR module grid: each dark module
// keeps a solid center dot while the surrounding pixels take on the image.
// modulePx controls rendered detail; higher QR versions map to larger
// modules upstream.
func Artistic(data string, src image.Image, modulePx int, contrast, brightness float64, colorized bool) (image.Image, error) {
	if modulePx < 6 || modulePx > 24 {
		modulePx = defaultModulePx
	}
	modules, err := Modules(data)
	if err != nil {
		return nil, err
	}

	n := len(modules)
	size := n * modulePx

	scaled := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	adjust(scaled, contrast, brightness, colorized)

	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), scaled, image.Point{}, draw.Src)

	// Center dot occupies the middle third of each module.
	dot := modulePx / 3
	for my := 0; my < n; my++ {
		for mx := 0; mx < n; mx++ {
			px, py := mx*modulePx, my*modulePx

			var fill color.Color = color.White
			if modules[my][mx] {
				fill = color.Black
			}

			if isStructural(mx, my, n) {
				// Solid module; no image bleed-through.
				draw.Draw(out, image.Rect(px, py, px+modulePx, py+modulePx),
					image.NewUniform(fill), image.Point{}, draw.Src)
				continue
			}

			draw.Draw(out, image.Rect(px+dot, py+dot, px+2*dot, py+2*dot),
				image.NewUniform(fill), image.Point{}, draw.Src)
		}
	}

	return out, nil
}

// Halftone renders a QArt-style dithered QR: every module splits into a
// grid of sub-cells, the center cell carries the module bit and the rest
// sample the image as black/white halftone dots.
func Halftone(data string, src image.Image, pointSize int, dither bool, fill color.Color, onlyData bool) (image.Image, error) {
	if pointSize < 1 || pointSize > 32 {
		pointSize = 8
	}
	if fill == nil {
		fill = color.Black
	}

	modules, err := Modules(data)
	if err != nil {
		return nil, err
	}

	n := len(modules)
	sub := halftoneSubCells
	size := n * sub * pointSize

	gray := image.NewGray(image.Rect(0, 0, n*sub, n*sub))
	xdraw.ApproxBiLinear.Scale(gray, gray.Bounds(), src, src.Bounds(), xdraw.Src, nil)

	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)

	for my := 0; my < n; my++ {
		for mx := 0; mx < n; mx++ {
			structural := isStructural(mx, my, n)
			for sy := 0; sy < sub; sy++ {
				for sx := 0; sx < sub; sx++ {
					center := sx == sub/2 && sy == sub/2
					var dark bool
					switch {
					case structural:
						dark = modules[my][mx]
					case center:
						dark = modules[my][mx]
					case onlyData:
						// Fast mode keeps non-center cells blank.
						dark = false
					default:
						dark = sampleDark(gray, mx*sub+sx, my*sub+sy, dither)
					}

					if !dark {
						continue
					}
					x := (mx*sub + sx) * pointSize
					y := (my*sub + sy) * pointSize
					draw.Draw(out, image.Rect(x, y, x+pointSize, y+pointSize),
						image.NewUniform(fill), image.Point{}, draw.Src)
				}
			}
		}
	}

	return out, nil
}

// 2x2 Bayer matrix scaled to the 0-255 luminance range.
var bayer2 = [2][2]uint8{{32, 160}, {224, 96}}

func sampleDark(gray *image.Gray, x, y int, dither bool) bool {
	v := gray.GrayAt(x, y).Y
	threshold := uint8(128)
	if dither {
		threshold = bayer2[y%2][x%2]
	}
	return v < threshold
}

// isStructural reports whether the module belongs to a finder pattern or a
// timing line. The skip2 bitmap includes a 4-module quiet zone border.
func isStructural(mx, my, n int) bool {
	const quiet = 4
	x, y := mx-quiet, my-quiet
	inner := n - 2*quiet

	if x < 0 || y < 0 || x >= inner || y >= inner {
		return false // quiet zone
	}

	// Finder patterns with separator, 8x8 corners.
	if (x < 8 && y < 8) || (x >= inner-8 && y < 8) || (x < 8 && y >= inner-8) {
		return true
	}

	// Timing patterns.
	if x == 6 || y == 6 {
		return true
	}

	return false
}

func adjust(img *image.RGBA, contrast, brightness float64, colorized bool) {
	if contrast <= 0 {
		contrast = 1.0
	}
	if brightness <= 0 {
		brightness = 1.0
	}

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.RGBAAt(x, y)
			r := adjustChannel(c.R, contrast, brightness)
			g := adjustChannel(c.G, contrast, brightness)
			b := adjustChannel(c.B, contrast, brightness)
			if !colorized {
				l := uint8((uint32(r)*299 + uint32(g)*587 + uint32(b)*114) / 1000)
				r, g, b = l, l, l
			}
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: c.A})
		}
	}
}

func adjustChannel(v uint8, contrast, brightness float64) uint8 {
	f := (float64(v)/255 - 0.5) * contrast
	f = (f + 0.5) * brightness * 255
	if f < 0 {
		f = 0
	}
	if f > 255 {
		f = 255
	}
	return uint8(f)
}
