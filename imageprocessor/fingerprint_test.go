package imageprocessor

import (
	"bytes"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagededup/types"
)

func encodePNG(t *testing.T, seed int64) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(seed, 128, 128)))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, seed int64) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(seed, 128, 128), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestExtractRecordFields(t *testing.T) {
	extractor := NewExtractor(nil)
	modTime := time.Now()
	raw := encodePNG(t, 3)

	res, err := extractor.Extract("/photos/holiday beach.png", raw, modTime)
	require.NoError(t, err)

	rec := res.Record
	assert.Equal(t, "/photos/holiday beach.png", rec.Path)
	assert.Equal(t, int64(len(raw)), rec.ByteSize)
	assert.Equal(t, 128, rec.Width)
	assert.Equal(t, 128, rec.Height)
	assert.Equal(t, "png", rec.Format)
	assert.Len(t, rec.ExactHash, 64)
	assert.NotZero(t, rec.PerceptualHash)
	assert.Equal(t, []string{"beach", "holiday"}, rec.NameTokens)
	assert.Equal(t, modTime, rec.ModTime)
	// PNG carries no EXIF: the record proceeds with empty metadata and the
	// failure is reported as non-fatal.
	assert.Error(t, res.MetadataErr)
	assert.True(t, rec.Exif.Empty())
}

func TestExtractReencodedImageMatchesPerceptually(t *testing.T) {
	extractor := NewExtractor(nil)

	asPNG, err := extractor.Extract("/a.png", encodePNG(t, 5), time.Now())
	require.NoError(t, err)
	asJPEG, err := extractor.Extract("/a.jpg", encodeJPEG(t, 5), time.Now())
	require.NoError(t, err)

	// Format-sensitive digest, format-insensitive perceptual signal.
	assert.NotEqual(t, asPNG.Record.ExactHash, asJPEG.Record.ExactHash)
	d := HammingDistance(asPNG.Record.PerceptualHash, asJPEG.Record.PerceptualHash)
	assert.LessOrEqual(t, d, 10)
}

func TestExtractIdenticalBytesShareExactHash(t *testing.T) {
	extractor := NewExtractor(nil)
	raw := encodePNG(t, 9)

	first, err := extractor.Extract("/one.png", raw, time.Now())
	require.NoError(t, err)
	second, err := extractor.Extract("/elsewhere/two.png", raw, time.Now())
	require.NoError(t, err)

	assert.Equal(t, first.Record.ExactHash, second.Record.ExactHash)
	assert.Equal(t, first.Record.PerceptualHash, second.Record.PerceptualHash)
}

func TestExtractCorruptFile(t *testing.T) {
	extractor := NewExtractor(nil)

	_, err := extractor.Extract("/broken.jpg", []byte("not an image at all"), time.Now())
	require.Error(t, err)
	var decodeErr *types.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "/broken.jpg", decodeErr.Path)
}

func TestRegistryClassification(t *testing.T) {
	registry := NewLoaderRegistry()

	assert.True(t, registry.CanLoadFile("/x/a.JPG"))
	assert.True(t, registry.CanLoadFile("/x/a.webp"))
	assert.True(t, registry.CanLoadFile("/x/a.cr2"))
	assert.False(t, registry.CanLoadFile("/x/a.txt"))
	assert.False(t, registry.CanLoadFile("/x/a.mp4"))

	assert.True(t, IsRawFormat("/x/a.NEF"))
	assert.False(t, IsRawFormat("/x/a.png"))
	assert.True(t, IsTiffFormat("/x/a.tif"))
	assert.True(t, IsLossless("png"))
	assert.False(t, IsLossless("jpeg"))
}
