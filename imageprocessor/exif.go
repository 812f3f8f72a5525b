package imageprocessor

import (
	"bytes"
	"os/exec"
	"time"

	exiftool "github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"

	"imagededup/logging"
	"imagededup/types"
)

// exiftoolTimeLayout is the timestamp format exiftool prints for
// DateTimeOriginal.
const exiftoolTimeLayout = "2006:01:02 15:04:05"

// ParseExif extracts the evidence-relevant EXIF fields from a raw metadata
// block. Parsing is best-effort: a malformed block returns empty metadata
// and a *types.MetadataError, partial blocks return whatever fields were
// present. Absent fields are simply not compared downstream.
func ParseExif(path string, raw []byte) (types.ExifMeta, error) {
	var meta types.ExifMeta

	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return meta, &types.MetadataError{Path: path, Err: err}
	}

	if ts, err := x.DateTime(); err == nil {
		meta.CaptureTime = &ts
	}
	if tag, err := x.Get(exif.Make); err == nil {
		if v, err := tag.StringVal(); err == nil {
			meta.CameraMake = v
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if v, err := tag.StringVal(); err == nil {
			meta.CameraModel = v
		}
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			meta.Orientation = v
		}
	}

	return meta, nil
}

// ExiftoolReader shells out to a long-running exiftool process for formats
// the in-process parser cannot read, chiefly camera RAW containers. It is
// optional: when exiftool is not installed the pipeline runs without it and
// RAW metadata is simply absent.
type ExiftoolReader struct {
	et *exiftool.Exiftool
}

// NewExiftoolReader starts exiftool in stay-open mode. Returns nil (not an
// error taxonomy member) when the binary is unavailable; callers treat a nil
// reader as metadata-off.
func NewExiftoolReader() *ExiftoolReader {
	et, err := exiftool.NewExiftool()
	if err != nil {
		logging.LogWarning("exiftool unavailable, RAW metadata disabled: %v", err)
		return nil
	}
	return &ExiftoolReader{et: et}
}

// Close shuts the exiftool process down.
func (r *ExiftoolReader) Close() {
	if r == nil || r.et == nil {
		return
	}
	r.et.Close()
}

// Read extracts EXIF evidence fields for one file by path.
func (r *ExiftoolReader) Read(path string) (types.ExifMeta, error) {
	var meta types.ExifMeta
	if r == nil || r.et == nil {
		return meta, &types.MetadataError{Path: path, Err: errExiftoolUnavailable}
	}

	fms := r.et.ExtractMetadata(path)
	if len(fms) == 0 {
		return meta, &types.MetadataError{Path: path, Err: errNoExiftoolOutput}
	}
	fm := fms[0]
	if fm.Err != nil {
		return meta, &types.MetadataError{Path: path, Err: fm.Err}
	}

	if v, err := fm.GetString("Make"); err == nil {
		meta.CameraMake = v
	}
	if v, err := fm.GetString("Model"); err == nil {
		meta.CameraModel = v
	}
	if v, err := fm.GetString("DateTimeOriginal"); err == nil {
		if ts, err := time.ParseInLocation(exiftoolTimeLayout, v, time.Local); err == nil {
			meta.CaptureTime = &ts
		}
	}

	return meta, nil
}

// previewTags are tried in order when pulling an embedded JPEG out of a RAW
// container. Cameras disagree about which tag holds the usable preview.
var previewTags = []string{
	"JpgFromRaw",
	"PreviewImage",
	"LargePreviewImage",
	"OtherImage",
	"ThumbnailImage",
}

// ExtractPreview pulls the embedded preview JPEG out of a RAW file so the
// perceptual signals can be computed without a full RAW develop.
func (r *ExiftoolReader) ExtractPreview(path string) ([]byte, error) {
	if r == nil || r.et == nil {
		return nil, errExiftoolUnavailable
	}
	for _, tag := range previewTags {
		out, err := exec.Command("exiftool", "-b", "-"+tag, path).Output()
		if err == nil && len(out) > 0 {
			return out, nil
		}
	}
	return nil, errNoPreview
}

var (
	errExiftoolUnavailable = errorString("exiftool not available")
	errNoExiftoolOutput    = errorString("exiftool produced no metadata")
	errNoPreview           = errorString("no embedded preview image found")
)

type errorString string

func (e errorString) Error() string { return string(e) }
