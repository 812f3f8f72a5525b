package imageprocessor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path/filepath"
	"strings"
	"time"

	"imagededup/logging"
	"imagededup/types"
	"imagededup/utils"
)

// Result is the outcome of fingerprinting one file. MetadataErr is the
// non-fatal EXIF failure, set when the record proceeded with empty metadata.
type Result struct {
	Record      types.ImageRecord
	MetadataErr error
}

// Extractor turns raw file bytes into ImageRecords. It holds the optional
// exiftool reader used for camera RAW containers.
type Extractor struct {
	exiftool *ExiftoolReader
}

// NewExtractor builds an extractor. The exiftool reader may be nil.
func NewExtractor(et *ExiftoolReader) *Extractor {
	return &Extractor{exiftool: et}
}

// Extract fingerprints one file. The exact hash always covers the raw file
// bytes, so it is format-sensitive; for RAW containers the pixel signals
// come from the embedded preview while the digest still covers the original
// bytes. A *types.DecodeError means the caller must skip and count the file.
func (e *Extractor) Extract(path string, raw []byte, modTime time.Time) (Result, error) {
	var res Result

	exactHash := streamDigest(raw)

	var (
		pixels  = raw
		format  string
		meta    types.ExifMeta
		metaErr error
	)

	if IsRawFormat(path) {
		preview, err := e.exiftool.ExtractPreview(path)
		if err != nil {
			return res, &types.DecodeError{Path: path, Err: err}
		}
		pixels = preview
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		meta, metaErr = e.exiftool.Read(path)
	} else {
		meta, metaErr = ParseExif(path, raw)
	}

	img, decodedFormat, err := Decode(path, pixels)
	if err != nil {
		return res, err
	}
	if format == "" {
		format = decodedFormat
	}

	pHash, err := PerceptualHash(img)
	if err != nil {
		return res, &types.DecodeError{Path: path, Err: err}
	}

	if metaErr != nil {
		logging.DebugLog("metadata unavailable for %s: %v", path, metaErr)
		meta = types.ExifMeta{}
	}

	bounds := img.Bounds()
	res.Record = types.ImageRecord{
		Path:           path,
		ByteSize:       int64(len(raw)),
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		Format:         format,
		ExactHash:      exactHash,
		PerceptualHash: pHash,
		Exif:           meta,
		ModTime:        modTime,
		NameTokens:     utils.NormalizeNameTokens(path),
	}
	res.MetadataErr = metaErr
	return res, nil
}

// streamDigest computes the sha-256 of the raw bytes through the streaming
// interface, so the same path serves file readers when buffers get large.
func streamDigest(raw []byte) string {
	h := sha256.New()
	io.Copy(h, bytes.NewReader(raw)) // hash.Hash writes never fail
	return hex.EncodeToString(h.Sum(nil))
}
