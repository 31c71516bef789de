package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vbonduro/chartgen/internal/provider"
)

const maxImageSize = 50 * 1024 * 1024 // 50 MB

var errUnsupportedImage = errors.New("unsupported image format")

// allowedImageTypes is the set of MIME types accepted for reference images.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniff spec (and
// therefore the stdlib) does not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// generateForm carries the generation fields shared by the JSON and
// multipart request shapes.
type generateForm struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
	Mode     string `json:"mode"`
	Provider string `json:"provider"`
	Platform string `json:"platform"`
	Model    string `json:"model"`
	// Image is a data URL in the JSON shape.
	Image string `json:"image"`
}

// readGenerateForm decodes either a JSON body or a multipart form with an
// optional "image" file. The returned image, if any, has been sniffed and
// carries the detected MIME type rather than the declared one.
func readGenerateForm(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (generateForm, *provider.Image, error) {
	var form generateForm
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImageSize); err != nil {
			return form, nil, fmt.Errorf("failed to parse form: %w", err)
		}
		form = generateForm{
			Prompt:   r.FormValue("prompt"),
			Language: r.FormValue("language"),
			Mode:     r.FormValue("mode"),
			Provider: r.FormValue("provider"),
			Platform: r.FormValue("platform"),
			Model:    r.FormValue("model"),
		}
		file, _, err := r.FormFile("image")
		if errors.Is(err, http.ErrMissingFile) {
			return form, nil, nil
		}
		if err != nil {
			return form, nil, fmt.Errorf("failed to read image: %w", err)
		}
		defer closeWithLog(file, "upload file", logger)

		data, err := io.ReadAll(file)
		if err != nil {
			return form, nil, fmt.Errorf("failed to read image: %w", err)
		}
		img, err := sniffImage(data)
		return form, img, err
	}

	// Data URLs are a third larger than the bytes they carry.
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize*4/3+64*1024)
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		return form, nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if form.Image == "" {
		return form, nil, nil
	}
	img, err := provider.ParseDataURL(form.Image)
	if err != nil {
		return form, nil, err
	}
	img, err = sniffImage(img.Data)
	return form, img, err
}

func sniffImage(data []byte) (*provider.Image, error) {
	if len(data) > maxImageSize {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageSize)
	}
	mimeType, ok := allowedImageMIME(data)
	if !ok {
		return nil, errUnsupportedImage
	}
	return &provider.Image{Data: data, MIMEType: mimeType}, nil
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
