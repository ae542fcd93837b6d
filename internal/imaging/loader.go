package imaging

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/xfmoulet/qoi"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var qoiMagic = []byte("qoif")

// Load reads an image file from disk. Supports PNG, JPEG, GIF, WEBP, BMP,
// TIFF and QOI.
// The path is normalized: ~ is expanded to the user's home directory,
// and relative paths are resolved to absolute.
func Load(path string) (image.Image, error) {
	path = ExpandPath(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".png":
		return png.Decode(f)
	case ".jpg", ".jpeg":
		return jpeg.Decode(f)
	case ".gif":
		return gif.Decode(f)
	case ".bmp":
		return bmp.Decode(f)
	case ".tif", ".tiff":
		return tiff.Decode(f)
	case ".qoi":
		return qoi.Decode(f)
	case ".webp":
		// Decoded via the blank import of golang.org/x/image/webp
		img, _, err := image.Decode(f)
		return img, err
	default:
		return nil, fmt.Errorf("unsupported image format %q (supported: png, jpg, jpeg, gif, webp, bmp, tif, tiff, qoi)", ext)
	}
}

// Decode sniffs the format of r and decodes it.
func Decode(r io.Reader) (image.Image, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(qoiMagic))
	if bytes.Equal(head, qoiMagic) {
		img, err := qoi.Decode(br)
		if err != nil {
			return nil, fmt.Errorf("decoding qoi: %w", err)
		}
		return img, nil
	}
	img, _, err := image.Decode(br)
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// SavePNG writes an image to disk as PNG.
// The path is normalized: ~ is expanded and relative paths are resolved.
func SavePNG(path string, img image.Image) error {
	return save(path, img, png.Encode)
}

// SaveQOI writes an image to disk as QOI.
func SaveQOI(path string, img image.Image) error {
	return save(path, img, qoi.Encode)
}

// Save picks the lossless encoder from the file extension: ".qoi" writes
// QOI, anything else PNG.
func Save(path string, img image.Image) error {
	if strings.EqualFold(filepath.Ext(path), ".qoi") {
		return SaveQOI(path, img)
	}
	return SavePNG(path, img)
}

// Encode writes img to w as "png" or "qoi".
func Encode(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(format) {
	case "png", "":
		return png.Encode(w, img)
	case "qoi":
		return qoi.Encode(w, img)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

func save(path string, img image.Image, encode func(io.Writer, image.Image) error) error {
	path = ExpandPath(path)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if err := encode(f, img); err != nil {
		return fmt.Errorf("encoding %s: %w", strings.TrimPrefix(filepath.Ext(path), "."), err)
	}
	return nil
}

// ExpandPath normalizes a file path by expanding ~ to the user's home
// directory and resolving relative paths to absolute.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	// Expand ~ and ~/ to home directory
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	// On Windows, also handle ~\
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "~\\") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	// Resolve relative paths to absolute
	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return filepath.Clean(path)
}
