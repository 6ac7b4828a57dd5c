package handler

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qrforge/qrforge/internal/auth"
	"github.com/qrforge/qrforge/internal/metrics"
	"github.com/qrforge/qrforge/internal/middleware"
	"github.com/qrforge/qrforge/internal/qr"
	"github.com/qrforge/qrforge/internal/storage"
	"github.com/qrforge/qrforge/internal/usage"
	"github.com/rs/zerolog/log"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

const cacheTTL = time.Hour

// QRHandler serves the generation endpoints. It runs strictly after
// admission; its own validation is limited to generation inputs plus the
// tier constraints the core delegates here (allowed styles, batch size).
type QRHandler struct {
	authenticator *auth.Authenticator
	tracker       *usage.Tracker
	cache         *storage.RedisClient // nil disables response caching
}

func NewQRHandler(authenticator *auth.Authenticator, tracker *usage.Tracker, cache *storage.RedisClient) *QRHandler {
	return &QRHandler{
		authenticator: authenticator,
		tracker:       tracker,
		cache:         cache,
	}
}

// Handles GET /styles
func (h *QRHandler) ListStyles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"styles":           qr.StyleCatalog(),
		"artistic_presets": qr.PresetCatalog(),
	})
}

// Handles POST /qr
func (h *QRHandler) CreateBasic(c *gin.Context) {
	if !h.styleAllowed(c, qr.StyleBasic) {
		return
	}

	data := c.PostForm("data")
	size, ok := formInt(c, "size", 500)
	if !ok {
		return
	}
	fill, back, ok := h.formColors(c)
	if !ok {
		return
	}

	cacheKey := h.cacheKey(qr.StyleBasic, data, strconv.Itoa(size), c.PostForm("fill_color"), c.PostForm("back_color"))
	if h.serveCached(c, cacheKey) {
		return
	}

	start := time.Now()
	img, err := qr.Generate(data, size, fill, back)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.servePNG(c, qr.StyleBasic, img, cacheKey, start)
}

// Handles POST /qr/logo
func (h *QRHandler) CreateLogo(c *gin.Context) {
	if !h.styleAllowed(c, qr.StyleLogo) {
		return
	}

	logo, ok := h.formImage(c, "logo")
	if !ok {
		return
	}

	data := c.PostForm("data")
	size, ok := formInt(c, "size", 500)
	if !ok {
		return
	}
	logoScale, ok := formFloat(c, "logo_scale", 0.25)
	if !ok {
		return
	}
	fill, back, okc := h.formColors(c)
	if !okc {
		return
	}

	start := time.Now()
	img, err := qr.WithLogo(data, size, logoScale, fill, back, logo)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.servePNG(c, qr.StyleLogo, img, "", start)
}

// Handles POST /qr/text
func (h *QRHandler) CreateText(c *gin.Context) {
	if !h.styleAllowed(c, qr.StyleText) {
		return
	}

	data := c.PostForm("data")
	text := c.PostForm("text")
	size, ok := formInt(c, "size", 500)
	if !ok {
		return
	}
	textScale, ok := formFloat(c, "text_scale", 0.3)
	if !ok {
		return
	}
	fill, back, ok := h.formColors(c)
	if !ok {
		return
	}

	fontColor, err := qr.ParseColor(formString(c, "font_color", "black"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cacheKey := h.cacheKey(qr.StyleText, data, text, strconv.Itoa(size),
		c.PostForm("text_scale"), c.PostForm("fill_color"), c.PostForm("back_color"), c.PostForm("font_color"))
	if h.serveCached(c, cacheKey) {
		return
	}

	start := time.Now()
	img, err := qr.WithText(data, text, size, textScale, fill, back, fontColor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.servePNG(c, qr.StyleText, img, cacheKey, start)
}

// Handles POST /qr/artistic
func (h *QRHandler) CreateArtistic(c *gin.Context) {
	if !h.styleAllowed(c, qr.StyleArtistic) {
		return
	}

	src, ok := h.formImage(c, "image")
	if !ok {
		return
	}

	data := c.PostForm("data")
	version, ok := formInt(c, "version", 10)
	if !ok {
		return
	}
	contrast, ok := formFloat(c, "contrast", 1.0)
	if !ok {
		return
	}
	brightness, ok := formFloat(c, "brightness", 1.0)
	if !ok {
		return
	}
	colorized, ok := formBool(c, "colorized", true)
	if !ok {
		return
	}

	if preset := c.PostForm("preset"); preset != "" {
		p, ok := qr.ArtisticPresets[preset]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown preset %q", preset)})
			return
		}
		version = p.Version
		contrast = p.Contrast
		brightness = p.Brightness
	}

	if version < 1 || version > 40 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version must be between 1 and 40"})
		return
	}

	start := time.Now()
	img, err := qr.Artistic(data, src, 7+version/4, contrast, brightness, colorized)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.servePNG(c, qr.StyleArtistic, img, "", start)
}

// Handles POST /qr/qart
func (h *QRHandler) CreateQArt(c *gin.Context) {
	if !h.styleAllowed(c, qr.StyleQArt) {
		return
	}

	src, ok := h.formImage(c, "image")
	if !ok {
		return
	}

	data := c.PostForm("data")
	pointSize, ok := formInt(c, "point_size", 8)
	if !ok {
		return
	}
	dither, ok := formBool(c, "dither", true)
	if !ok {
		return
	}
	fast, ok := formBool(c, "fast", false)
	if !ok {
		return
	}

	var fill color.Color
	r, ok := formInt(c, "color_r", 0)
	if !ok {
		return
	}
	g, ok := formInt(c, "color_g", 0)
	if !ok {
		return
	}
	b, ok := formInt(c, "color_b", 0)
	if !ok {
		return
	}
	if r != 0 || g != 0 || b != 0 {
		fill = color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
	}

	start := time.Now()
	img, err := qr.Halftone(data, src, pointSize, dither, fill, fast)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.servePNG(c, qr.StyleQArt, img, "", start)
}

// Handles POST /embed
func (h *QRHandler) CreateEmbed(c *gin.Context) {
	if !h.styleAllowed(c, qr.StyleEmbed) {
		return
	}

	bg, ok := h.formImage(c, "background")
	if !ok {
		return
	}

	data := c.PostForm("data")
	scale, ok := formFloat(c, "scale", 0.3)
	if !ok {
		return
	}
	position := formString(c, "position", "center")
	margin, ok := formInt(c, "margin", 20)
	if !ok {
		return
	}
	fill, back, okc := h.formColors(c)
	if !okc {
		return
	}

	start := time.Now()
	img, err := qr.Embed(bg, data, scale, position, margin, fill, back)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.servePNG(c, qr.StyleEmbed, img, "", start)
}

// Handles POST /batch/embed. The limiter already charged one slot per
// uploaded file; here the batch only needs to fit the tier's batch cap.
func (h *QRHandler) BatchEmbed(c *gin.Context) {
	if !h.styleAllowed(c, qr.StyleEmbed) {
		return
	}

	form, err := c.MultipartForm()
	if err != nil || form == nil || len(form.File["backgrounds"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one background image is required"})
		return
	}
	files := form.File["backgrounds"]

	limits, _ := h.authenticator.Limits(middleware.Tier(c))
	if limits.MaxBatchSize > 0 && len(files) > limits.MaxBatchSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":          "batch size exceeds tier limit",
			"max_batch_size": limits.MaxBatchSize,
		})
		return
	}

	data := c.PostForm("data")
	scale, ok := formFloat(c, "scale", 0.3)
	if !ok {
		return
	}
	position := formString(c, "position", "center")
	margin, ok := formInt(c, "margin", 20)
	if !ok {
		return
	}
	fill, back, okc := h.formColors(c)
	if !okc {
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, fh := range files {
		bg, err := decodeUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to decode %s: %v", fh.Filename, err)})
			return
		}

		img, err := qr.Embed(bg, data, scale, position, margin, fill, back)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		png, err := qr.EncodePNG(img)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		w, err := zw.Create(outputName(fh.Filename))
		if err == nil {
			_, err = w.Write(png)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build archive"})
			return
		}
	}

	if err := zw.Close(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build archive"})
		return
	}

	identity := middleware.Identity(c)
	for range files {
		h.tracker.Record(identity, qr.StyleEmbed)
	}
	metrics.GenerationsTotal.WithLabelValues(qr.StyleEmbed).Add(float64(len(files)))
	metrics.GenerationSeconds.Observe(time.Since(start).Seconds())

	c.Header("Content-Disposition", "attachment; filename=batch_qr.zip")
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

// styleAllowed enforces the resolved tier's allowed_styles constraint.
func (h *QRHandler) styleAllowed(c *gin.Context, style string) bool {
	limits, ok := h.authenticator.Limits(middleware.Tier(c))
	if !ok || !limits.AllowsStyle(style) {
		c.JSON(http.StatusForbidden, gin.H{
			"error": fmt.Sprintf("style %q is not available on your tier", style),
		})
		return false
	}
	return true
}

func (h *QRHandler) formColors(c *gin.Context) (fill, back color.Color, ok bool) {
	var err error
	if fill, err = qr.ParseColor(formString(c, "fill_color", "black")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	if back, err = qr.ParseColor(formString(c, "back_color", "white")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	return fill, back, true
}

func (h *QRHandler) formImage(c *gin.Context, field string) (image.Image, bool) {
	fh, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s image is required", field)})
		return nil, false
	}

	img, err := decodeUpload(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to decode %s: %v", field, err)})
		return nil, false
	}
	return img, true
}

// servePNG encodes, caches, counts, and writes the generated image.
func (h *QRHandler) servePNG(c *gin.Context, style string, img image.Image, cacheKey string, start time.Time) {
	png, err := qr.EncodePNG(img)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.cache != nil && cacheKey != "" {
		if err := h.cache.Set(c.Request.Context(), cacheKey, png, cacheTTL); err != nil {
			log.Debug().Err(err).Msg("failed to cache generated image")
		}
	}

	h.tracker.Record(middleware.Identity(c), style)
	metrics.GenerationsTotal.WithLabelValues(style).Inc()
	metrics.GenerationSeconds.Observe(time.Since(start).Seconds())

	c.Data(http.StatusOK, "image/png", png)
}

// serveCached returns true when the response was served from Redis. Usage
// is still recorded; a cached generation counts against the caller.
func (h *QRHandler) serveCached(c *gin.Context, cacheKey string) bool {
	if h.cache == nil || cacheKey == "" {
		return false
	}

	png, err := h.cache.Get(c.Request.Context(), cacheKey)
	if err != nil {
		if !storage.IsMiss(err) {
			log.Debug().Err(err).Msg("image cache lookup failed")
		}
		return false
	}

	style := strings.SplitN(cacheKey, ":", 3)[1]
	h.tracker.Record(middleware.Identity(c), style)
	c.Data(http.StatusOK, "image/png", png)
	return true
}

func (h *QRHandler) cacheKey(style string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return fmt.Sprintf("qrimg:%s:%s", style, hex.EncodeToString(sum[:]))
}

func decodeUpload(fh *multipart.FileHeader) (image.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

func outputName(original string) string {
	name := original
	if name == "" {
		name = "image.png"
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name + "_qr.png"
}

func formString(c *gin.Context, field, fallback string) string {
	if v := c.PostForm(field); v != "" {
		return v
	}
	return fallback
}

// The typed form helpers apply the fallback only when the field is absent;
// a present but unparseable value is a caller error and gets a 400.

func formInt(c *gin.Context, field string, fallback int) (int, bool) {
	v := c.PostForm(field)
	if v == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s must be an integer", field)})
		return 0, false
	}
	return n, true
}

func formFloat(c *gin.Context, field string, fallback float64) (float64, bool) {
	v := c.PostForm(field)
	if v == "" {
		return fallback, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s must be a number", field)})
		return 0, false
	}
	return f, true
}

func formBool(c *gin.Context, field string, fallback bool) (bool, bool) {
	v := c.PostForm(field)
	if v == "" {
		return fallback, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s must be a boolean", field)})
		return false, false
	}
	return b, true
}
