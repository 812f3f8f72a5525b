package imageprocessor

import (
	"bytes"
	"image"
	"path/filepath"
	"strings"

	// Register the stdlib and extended decoders with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"imagededup/types"
)

// losslessFormats are the decoded codec families treated as lossless when
// ranking canonical candidates.
var losslessFormats = map[string]struct{}{
	"png":  {},
	"tiff": {},
	"bmp":  {},
}

// rawExtensions are camera RAW containers. They cannot be decoded in
// process; their metadata is still recoverable through the exiftool
// fallback.
var rawExtensions = map[string]struct{}{
	".dng": {},
	".raf": {},
	".arw": {},
	".nef": {},
	".cr2": {},
	".cr3": {},
	".nrw": {},
	".srf": {},
}

// decodableExtensions lists everything image.Decode can handle with the
// registered decoders.
var decodableExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".tif":  {},
	".tiff": {},
	".bmp":  {},
	".webp": {},
}

// LoaderRegistry answers which files the fingerprint pipeline can take on.
// It mirrors the extension classification the scanner uses for counting.
type LoaderRegistry struct{}

// NewLoaderRegistry returns the shared registry.
func NewLoaderRegistry() *LoaderRegistry {
	return &LoaderRegistry{}
}

// CanLoadFile reports whether a path looks like a supported image file.
func (r *LoaderRegistry) CanLoadFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := decodableExtensions[ext]; ok {
		return true
	}
	_, ok := rawExtensions[ext]
	return ok
}

// IsRawFormat reports whether the path carries a camera RAW extension.
func IsRawFormat(path string) bool {
	_, ok := rawExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsTiffFormat reports whether the path is a TIFF container.
func IsTiffFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".tif" || ext == ".tiff"
}

// IsLossless reports whether a decoded format name is a lossless family.
func IsLossless(format string) bool {
	_, ok := losslessFormats[format]
	return ok
}

// Decode turns raw file bytes into a pixel buffer and the codec family name.
// Failures come back as *types.DecodeError so callers can skip and count.
func Decode(path string, raw []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", &types.DecodeError{Path: path, Err: err}
	}
	return img, format, nil
}
