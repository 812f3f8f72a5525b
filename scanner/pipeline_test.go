package scanner

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagededup/config"
	"imagededup/database"
	"imagededup/types"
)

// blockImage builds a deterministic high-contrast pattern so perceptual
// hashes are stable under re-encoding and rotation.
func blockImage(seed int64, w, h int) image.Image {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	const block = 8
	for by := 0; by < h; by += block {
		for bx := 0; bx < w; bx += block {
			v := uint8(rng.Intn(2) * 255)
			for y := by; y < by+block && y < h; y++ {
				for x := bx; x < bx+block && x < w; x++ {
					img.Set(x, y, color.RGBA{v, v, v, 255})
				}
			}
		}
	}
	return img
}

func writeJPEG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// writeCorpus lays out the canonical test scenario: a.jpg, b.png with the
// same picture re-encoded, c.jpg rotated 90°, d.jpg unrelated and one
// corrupt file.
func writeCorpus(t *testing.T, dir string) {
	t.Helper()
	src := blockImage(42, 128, 128)
	writeJPEG(t, filepath.Join(dir, "a.jpg"), src)
	writePNG(t, filepath.Join(dir, "b.png"), src)
	writeJPEG(t, filepath.Join(dir, "c.jpg"), imaging.Rotate90(src))
	writeJPEG(t, filepath.Join(dir, "d.jpg"), blockImage(1234, 128, 128))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corrupt.jpg"), []byte("junk bytes"), 0o644))
}

func testOptions(dir string) ScanOptions {
	return ScanOptions{
		FolderPath: dir,
		Config:     config.Default(),
		Quiet:      true,
	}
}

func TestCollectRecordsSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir)

	records, summary, err := CollectRecords(context.Background(), testOptions(dir))
	require.NoError(t, err, "a corrupt file must not abort the run")

	assert.Len(t, records, 4)
	assert.Equal(t, 5, summary.TotalCandidates)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 1, summary.DecodeErrors)
	require.Len(t, summary.Skipped, 1)
	assert.Contains(t, summary.Skipped[0].Path, "corrupt.jpg")

	// Records come back sorted by path for deterministic id assignment.
	for i := 1; i < len(records); i++ {
		assert.Less(t, records[i-1].Path, records[i].Path)
	}
}

func TestPipelineClustersRotatedAndReencodedCopies(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir)

	result, err := RunPipeline(context.Background(), testOptions(dir))
	require.NoError(t, err)

	// a.jpg, b.png and c.jpg form one cluster; d.jpg stays alone.
	byPath := make(map[string]types.RecordID)
	for _, r := range result.Records {
		byPath[filepath.Base(r.Path)] = r.ID
	}

	var dupCluster types.Cluster
	for _, c := range result.Clusters {
		for _, m := range c.Members {
			if m == byPath["a.jpg"] {
				dupCluster = c
			}
		}
	}
	require.Len(t, dupCluster.Members, 3)
	assert.Contains(t, dupCluster.Members, byPath["b.png"])
	assert.Contains(t, dupCluster.Members, byPath["c.jpg"])
	assert.GreaterOrEqual(t, dupCluster.Confidence, 0.6)

	singleton := false
	for _, c := range result.Clusters {
		if len(c.Members) == 1 && c.Members[0] == byPath["d.jpg"] {
			singleton = true
		}
	}
	assert.True(t, singleton, "unrelated image must stay a singleton")

	// One keep plus two duplicates planned, nothing for the singleton.
	require.NotNil(t, result.Plan)
	assert.Len(t, result.Plan.Actions, 3)
}

func TestPipelineIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir)

	first, err := RunPipeline(context.Background(), testOptions(dir))
	require.NoError(t, err)
	second, err := RunPipeline(context.Background(), testOptions(dir))
	require.NoError(t, err)

	assert.Equal(t, first.Clusters, second.Clusters)
	require.Equal(t, len(first.Plan.Actions), len(second.Plan.Actions))
	for i := range first.Plan.Actions {
		assert.Equal(t, first.Plan.Actions[i], second.Plan.Actions[i])
	}
}

func TestPipelineWithCheckpoint(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir)

	cp, err := database.Open(filepath.Join(t.TempDir(), "checkpoint.db"))
	require.NoError(t, err)
	defer cp.Close()

	opts := testOptions(dir)
	opts.Checkpoint = cp

	first, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Summary.FromCheckpoint)

	second, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)
	// Unchanged files are all served from the checkpoint on the re-run,
	// and the outcome is identical.
	assert.Equal(t, second.Summary.Processed, second.Summary.FromCheckpoint)
	assert.Equal(t, first.Clusters, second.Clusters)
}

func TestCollectRecordsHonorsFilters(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir)

	opts := testOptions(dir)
	opts.Config.Exclude = []string{"d.jpg"}

	records, _, err := CollectRecords(context.Background(), opts)
	require.NoError(t, err)
	for _, r := range records {
		assert.NotContains(t, r.Path, "d.jpg")
	}
}

func TestCollectRecordsCancellation(t *testing.T) {
	dir := t.TempDir()
	writeCorpus(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := CollectRecords(ctx, testOptions(dir))
	assert.ErrorIs(t, err, context.Canceled)
}
