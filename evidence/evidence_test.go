package evidence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagededup/config"
	"imagededup/index"
	"imagededup/types"
)

func buildPairs(t *testing.T, cfg config.Config, records []types.ImageRecord) []PairEvidence {
	t.Helper()
	b := NewBuilder(cfg, index.New())
	for _, rec := range records {
		b.AddRecord(rec)
	}
	pairs, err := b.BuildEvidence(context.Background(), 2)
	require.NoError(t, err)
	return pairs
}

func pairBetween(pairs []PairEvidence, a, b types.RecordID) (PairEvidence, bool) {
	for _, p := range pairs {
		if p.A == a && p.B == b {
			return p, true
		}
	}
	return PairEvidence{}, false
}

func methods(p PairEvidence) []types.Method {
	out := make([]types.Method, len(p.Edges))
	for i, e := range p.Edges {
		out[i] = e.Method
	}
	return out
}

func TestExactMatchIsMaximalEvidence(t *testing.T) {
	records := []types.ImageRecord{
		{Path: "/a.jpg", ExactHash: "same", PerceptualHash: 0},
		{Path: "/b.jpg", ExactHash: "same", PerceptualHash: ^uint64(0)},
	}
	pairs := buildPairs(t, config.Default(), records)

	p, ok := pairBetween(pairs, 0, 1)
	require.True(t, ok)
	assert.Equal(t, 1.0, p.Weight)
	assert.Contains(t, methods(p), types.MethodExact)
}

func TestTightPerceptualMatch(t *testing.T) {
	records := []types.ImageRecord{
		{Path: "/a.jpg", ExactHash: "h1", PerceptualHash: 0},
		{Path: "/b.jpg", ExactHash: "h2", PerceptualHash: 0x7}, // distance 3
	}
	pairs := buildPairs(t, config.Default(), records)

	p, ok := pairBetween(pairs, 0, 1)
	require.True(t, ok)
	assert.InDelta(t, 0.6, p.Weight, 1e-9)
	assert.Equal(t, []types.Method{types.MethodPerceptual}, methods(p))
	assert.Equal(t, 3, p.Edges[0].Distance)
}

func TestLooseBandRequiresCorroboration(t *testing.T) {
	// Distance 12 sits in (T1=10, T2=16]: similar, possibly unrelated.
	loose := uint64(0xFFF)

	t.Run("uncorroborated edge is discarded", func(t *testing.T) {
		records := []types.ImageRecord{
			{Path: "/a.jpg", ExactHash: "h1", PerceptualHash: 0},
			{Path: "/b.jpg", ExactHash: "h2", PerceptualHash: loose},
		}
		pairs := buildPairs(t, config.Default(), records)
		assert.Empty(t, pairs)
	})

	t.Run("matching camera retains the edge", func(t *testing.T) {
		records := []types.ImageRecord{
			{Path: "/a.jpg", ExactHash: "h1", PerceptualHash: 0,
				Exif: types.ExifMeta{CameraMake: "Fujifilm", CameraModel: "X-T4"}},
			{Path: "/b.jpg", ExactHash: "h2", PerceptualHash: loose,
				Exif: types.ExifMeta{CameraMake: "Fujifilm", CameraModel: "X-T4"}},
		}
		pairs := buildPairs(t, config.Default(), records)

		p, ok := pairBetween(pairs, 0, 1)
		require.True(t, ok)
		assert.InDelta(t, 0.25+0.15, p.Weight, 1e-9)
		assert.ElementsMatch(t, []types.Method{types.MethodPerceptual, types.MethodExifCamera}, methods(p))
	})

	t.Run("close capture time retains the edge", func(t *testing.T) {
		ts1 := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
		ts2 := ts1.Add(2 * time.Second)
		records := []types.ImageRecord{
			{Path: "/a.jpg", ExactHash: "h1", PerceptualHash: 0,
				Exif: types.ExifMeta{CaptureTime: &ts1}},
			{Path: "/b.jpg", ExactHash: "h2", PerceptualHash: loose,
				Exif: types.ExifMeta{CaptureTime: &ts2}},
		}
		pairs := buildPairs(t, config.Default(), records)

		p, ok := pairBetween(pairs, 0, 1)
		require.True(t, ok)
		assert.Contains(t, methods(p), types.MethodExifTime)
	})
}

func TestFilenameAloneNeverCreatesAnEdge(t *testing.T) {
	// Same filename tokens, different content, perceptual distance beyond T2.
	records := []types.ImageRecord{
		{Path: "/x/beach sunset.jpg", ExactHash: "h1", PerceptualHash: 0,
			NameTokens: []string{"beach", "sunset"}},
		{Path: "/y/beach sunset.jpg", ExactHash: "h2", PerceptualHash: ^uint64(0),
			NameTokens: []string{"beach", "sunset"}},
	}
	pairs := buildPairs(t, config.Default(), records)
	assert.Empty(t, pairs)
}

func TestFilenameBoostsExistingEdge(t *testing.T) {
	records := []types.ImageRecord{
		{Path: "/x/beach.jpg", ExactHash: "h1", PerceptualHash: 0,
			NameTokens: []string{"beach"}},
		{Path: "/y/beach.jpg", ExactHash: "h2", PerceptualHash: 0x3, // distance 2
			NameTokens: []string{"beach"}},
	}
	pairs := buildPairs(t, config.Default(), records)

	p, ok := pairBetween(pairs, 0, 1)
	require.True(t, ok)
	assert.InDelta(t, 0.6+0.1, p.Weight, 1e-9)
	assert.Contains(t, methods(p), types.MethodFilename)
}

func TestWeightsCapAtOne(t *testing.T) {
	ts := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	meta := types.ExifMeta{CaptureTime: &ts, CameraMake: "Sony", CameraModel: "A7"}
	records := []types.ImageRecord{
		{Path: "/x/img.jpg", ExactHash: "same", PerceptualHash: 0, Exif: meta,
			NameTokens: []string{"img"}},
		{Path: "/y/img.jpg", ExactHash: "same", PerceptualHash: 0, Exif: meta,
			NameTokens: []string{"img"}},
	}
	pairs := buildPairs(t, config.Default(), records)

	p, ok := pairBetween(pairs, 0, 1)
	require.True(t, ok)
	assert.Equal(t, 1.0, p.Weight)
	assert.Len(t, p.Edges, 5) // every method contributed
}

func TestDisabledMethodsEmitNothing(t *testing.T) {
	cfg := config.Default()
	cfg.Methods.Perceptual = false

	records := []types.ImageRecord{
		{Path: "/a.jpg", ExactHash: "h1", PerceptualHash: 0},
		{Path: "/b.jpg", ExactHash: "h2", PerceptualHash: 0x1},
	}
	pairs := buildPairs(t, cfg, records)
	assert.Empty(t, pairs)
}
