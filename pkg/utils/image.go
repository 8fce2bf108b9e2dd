package utils

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Регистрируем GIF декодер
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp" // Телефоны часто отдают WebP
)

// Форматы кодирования подготовленного изображения.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// ErrEmptyImage возвращается для пустого входного буфера.
var ErrEmptyImage = errors.New("empty image data")

// FitImage вписывает изображение в квадрат maxDim x maxDim, сохраняя пропорции,
// и перекодирует его в format (png или jpeg).
//
// Параметры:
//   - data: байты исходного изображения (JPEG, PNG, GIF, WebP)
//   - maxDim: максимальная сторона в пикселях. 0 - без ресайза.
//   - format: FormatPNG или FormatJPEG; пустая строка означает PNG.
//   - quality: качество JPEG (1-100), для PNG игнорируется.
//
// Возвращает байты и MIME-тип результата.
func FitImage(data []byte, maxDim int, format string, quality int) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if maxDim > 0 && (b.Dx() > maxDim || b.Dy() > maxDim) {
		// Thumbnail сохраняет aspect ratio и не увеличивает картинку
		img = resize.Thumbnail(uint(maxDim), uint(maxDim), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	switch format {
	case "", FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), "image/png", nil
	case FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = 85
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	default:
		return nil, "", fmt.Errorf("unsupported output format %q", format)
	}
}

// DataURI кодирует байты в data URI для передачи в vision-модель.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
