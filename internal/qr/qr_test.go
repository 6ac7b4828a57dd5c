package qr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateData(t *testing.T) {
	assert.NoError(t, ValidateData("https://example.com"))
	assert.Error(t, ValidateData(""))
	assert.Error(t, ValidateData("   "))
	assert.Error(t, ValidateData(strings.Repeat("x", MaxDataLength+1)))
	assert.NoError(t, ValidateData(strings.Repeat("x", MaxDataLength)))
}

func TestValidateSize(t *testing.T) {
	assert.NoError(t, ValidateSize(MinSize))
	assert.NoError(t, ValidateSize(MaxSize))
	assert.NoError(t, ValidateSize(300))
	assert.Error(t, ValidateSize(MinSize-1))
	assert.Error(t, ValidateSize(MaxSize+1))
	assert.Error(t, ValidateSize(0))
}

func TestGenerate(t *testing.T) {
	img, err := Generate("https://example.com", 300, color.Black, color.White)
	require.NoError(t, err)

	bounds := img.Bounds()
	assert.Equal(t, 300, bounds.Dx())
	assert.Equal(t, 300, bounds.Dy())

	_, err = Generate("", 300, color.Black, color.White)
	assert.Error(t, err)
}

func TestEncodePNG(t *testing.T) {
	img, err := Generate("https://example.com", 128, color.Black, color.White)
	require.NoError(t, err)

	data, err := EncodePNG(img)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 128, decoded.Bounds().Dx())
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"black", color.RGBA{0, 0, 0, 255}},
		{"White", color.RGBA{255, 255, 255, 255}},
		{"  red ", color.RGBA{255, 0, 0, 255}},
		{"#ff8000", color.RGBA{255, 128, 0, 255}},
		{"#FF8000", color.RGBA{255, 128, 0, 255}},
		{"#f00", color.RGBA{255, 0, 0, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}

	for _, bad := range []string{"", "chartreuse-ish", "#12345", "#gggggg", "123456"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestCalcPosition(t *testing.T) {
	tests := []struct {
		position string
		wantX    int
		wantY    int
	}{
		{"center", 85, 60},
		{"top-left", 10, 10},
		{"top-right", 140, 10},
		{"bottom-left", 10, 140},
		{"bottom-right", 140, 140},
	}
	for _, tt := range tests {
		t.Run(tt.position, func(t *testing.T) {
			x, y, err := CalcPosition(200, 170, 30, tt.position, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.wantX, x)
			assert.Equal(t, tt.wantY, y)
		})
	}

	_, _, err := CalcPosition(200, 170, 30, "middle", 10)
	assert.Error(t, err)
}

func TestWithLogo(t *testing.T) {
	logo := image.NewRGBA(image.Rect(0, 0, 64, 64))

	img, err := WithLogo("https://example.com", 300, 0.2, color.Black, color.White, logo)
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())

	_, err = WithLogo("https://example.com", 300, 0.05, color.Black, color.White, logo)
	assert.Error(t, err, "scale below 0.1 risks unscannable output")

	_, err = WithLogo("https://example.com", 300, 0.5, color.Black, color.White, logo)
	assert.Error(t, err)
}

func TestWithText(t *testing.T) {
	img, err := WithText("https://example.com", "SCAN ME", 300, 0.3, color.Black, color.White, color.Black)
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())

	_, err = WithText("https://example.com", "  ", 300, 0.3, color.Black, color.White, color.Black)
	assert.Error(t, err)

	_, err = WithText("https://example.com", "SCAN ME", 300, 0.05, color.Black, color.White, color.Black)
	assert.Error(t, err)
}

func TestEmbed(t *testing.T) {
	bg := image.NewRGBA(image.Rect(0, 0, 400, 300))

	img, err := Embed(bg, "https://example.com", 0.25, "bottom-right", 10, color.Black, color.White)
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	_, err = Embed(bg, "https://example.com", 0, "center", 10, color.Black, color.White)
	assert.Error(t, err)

	_, err = Embed(bg, "https://example.com", 1.5, "center", 10, color.Black, color.White)
	assert.Error(t, err)

	_, err = Embed(bg, "https://example.com", 0.25, "nowhere", 10, color.Black, color.White)
	assert.Error(t, err)
}

func TestEmbed_TinyBackgroundClampsToMinSize(t *testing.T) {
	bg := image.NewRGBA(image.Rect(0, 0, 60, 60))

	img, err := Embed(bg, "hi", 0.1, "center", 0, color.Black, color.White)
	require.NoError(t, err)
	assert.Equal(t, 60, img.Bounds().Dx())
}

func TestModules(t *testing.T) {
	modules, err := Modules("https://example.com")
	require.NoError(t, err)
	require.NotEmpty(t, modules)

	// Bitmap includes the quiet zone, so corners are light.
	assert.False(t, modules[0][0])

	n := len(modules)
	for _, row := range modules {
		assert.Len(t, row, n, "module matrix must be square")
	}
}

func TestStyleCatalog(t *testing.T) {
	catalog := StyleCatalog()
	require.NotEmpty(t, catalog)

	seen := make(map[string]bool)
	for _, s := range catalog {
		assert.True(t, ValidStyle(s.Name))
		assert.NotEmpty(t, s.Description)
		assert.False(t, seen[s.Name], "duplicate style %q", s.Name)
		seen[s.Name] = true
	}

	assert.True(t, ValidStyle(StyleBasic))
	assert.True(t, ValidStyle(StyleArtistic))
	assert.False(t, ValidStyle("monet"))
}

func TestArtistic(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			src.Set(x, y, color.RGBA{uint8(x * 2), uint8(y * 2), 128, 255})
		}
	}

	img, err := Artistic("https://example.com", src, 9, 1.2, 1.1, true)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
	assert.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())

	_, err = Artistic("", src, 9, 1.2, 1.1, true)
	assert.Error(t, err)
}

func TestHalftone(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 80, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 80; x++ {
			src.Set(x, y, color.Gray{Y: uint8((x + y) * 2)})
		}
	}

	img, err := Halftone("https://example.com", src, 3, true, color.Black, false)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())

	_, err = Halftone("", src, 3, true, color.Black, false)
	assert.Error(t, err)
}
