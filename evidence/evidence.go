// Package evidence accumulates weighted similarity edges between records
// from every enabled detection signal.
package evidence

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"imagededup/config"
	"imagededup/index"
	"imagededup/types"
	"imagededup/utils"
)

// Signal weights. Exact evidence is always sufficient to merge on its own;
// the loose perceptual band never is, even with every corroboration added.
const (
	weightExact       = 1.0
	weightTight       = 0.6
	weightLoose       = 0.25
	weightExifTime    = 0.3
	weightExifCamera  = 0.15
	weightFilenameHit = 0.1

	// filenameOverlapMin is the Jaccard floor for token overlap to count.
	filenameOverlapMin = 0.5
)

// PairEvidence is the combined evidence between one pair of records:
// the per-method edges plus their summed weight, capped at 1.0.
type PairEvidence struct {
	A      types.RecordID
	B      types.RecordID
	Weight float64
	Edges  []types.SimilarityEdge
}

// Builder owns the record arena and emits the evidence graph. Records are
// added single-threaded after the fingerprinting barrier; edge emission then
// fans out across workers with per-worker buffers merged at a second
// barrier.
type Builder struct {
	cfg     config.Config
	idx     *index.Index
	records []types.ImageRecord
	byExact map[string][]types.RecordID
}

// NewBuilder wires a builder to the shared similarity index.
func NewBuilder(cfg config.Config, idx *index.Index) *Builder {
	return &Builder{
		cfg:     cfg,
		idx:     idx,
		byExact: make(map[string][]types.RecordID),
	}
}

// AddRecord commits a fingerprint to the arena, assigns its dense id and
// feeds the lookup structures. The returned id is stable for the run.
func (b *Builder) AddRecord(rec types.ImageRecord) types.RecordID {
	id := types.RecordID(len(b.records))
	rec.ID = id
	b.records = append(b.records, rec)

	b.byExact[rec.ExactHash] = append(b.byExact[rec.ExactHash], id)
	if b.cfg.Methods.Perceptual {
		b.idx.Insert(id, rec.PerceptualHash)
	}
	return id
}

// Records exposes the committed arena. Later stages index it by RecordID.
func (b *Builder) Records() []types.ImageRecord {
	return b.records
}

// BuildEvidence emits and combines all edges. Each record is processed by
// exactly one worker and only emits edges toward lower ids, so no pair is
// produced twice and no locking is needed on the output buffers.
func (b *Builder) BuildEvidence(ctx context.Context, workers int) ([]PairEvidence, error) {
	if workers < 1 {
		workers = 1
	}

	buffers := make([][]types.SimilarityEdge, workers)
	g, ctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := w; i < len(b.records); i += workers {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				buffers[w] = append(buffers[w], b.edgesForRecord(types.RecordID(i))...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var edges []types.SimilarityEdge
	for _, buf := range buffers {
		edges = append(edges, buf...)
	}
	return combine(edges), nil
}

// edgesForRecord emits the evidence between record id and all lower ids.
func (b *Builder) edgesForRecord(id types.RecordID) []types.SimilarityEdge {
	rec := b.records[id]
	var out []types.SimilarityEdge

	// Pairs that already have visual evidence; EXIF and filename signals
	// only attach to these, never create links on their own.
	linked := make(map[types.RecordID]bool)

	if b.cfg.Methods.Exact {
		// Linking to the earliest member is enough: union-find closes the
		// equivalence class transitively without quadratic edge counts.
		group := b.byExact[rec.ExactHash]
		for _, other := range group {
			if other < id {
				out = append(out, types.SimilarityEdge{
					A: other, B: id, Method: types.MethodExact, Weight: weightExact,
				})
				linked[other] = true
				break
			}
		}
	}

	if b.cfg.Methods.Perceptual {
		for _, m := range b.idx.Query(rec.PerceptualHash, b.cfg.LooseDistance) {
			if m.ID >= id {
				continue
			}
			other := b.records[m.ID]
			if m.Distance <= b.cfg.TightDistance {
				out = append(out, types.SimilarityEdge{
					A: m.ID, B: id, Method: types.MethodPerceptual,
					Distance: m.Distance, Weight: weightTight,
				})
				linked[m.ID] = true
				continue
			}
			// Loose band: keep only when at least one independent signal
			// agrees, otherwise the edge is discarded entirely.
			if b.corroborated(rec, other) {
				out = append(out, types.SimilarityEdge{
					A: m.ID, B: id, Method: types.MethodPerceptual,
					Distance: m.Distance, Weight: weightLoose,
				})
				linked[m.ID] = true
			}
		}
	}

	for other := range linked {
		out = append(out, b.supportingEdges(rec, b.records[other])...)
	}
	return out
}

// corroborated reports whether an independent signal backs a loose-band
// perceptual match. Absent EXIF fields are never treated as a mismatch.
func (b *Builder) corroborated(a, c types.ImageRecord) bool {
	if b.cfg.Methods.Exif {
		if captureTimesAgree(a.Exif, c.Exif, b.cfg.ExifWindow()) {
			return true
		}
		if camerasAgree(a.Exif, c.Exif) {
			return true
		}
	}
	if b.cfg.Methods.Filename &&
		utils.TokenOverlap(a.NameTokens, c.NameTokens) >= filenameOverlapMin {
		return true
	}
	return false
}

// supportingEdges emits the EXIF and filename edges for a pair that already
// has visual evidence.
func (b *Builder) supportingEdges(hi, lo types.ImageRecord) []types.SimilarityEdge {
	a, c := lo.ID, hi.ID
	var out []types.SimilarityEdge

	if b.cfg.Methods.Exif {
		if captureTimesAgree(hi.Exif, lo.Exif, b.cfg.ExifWindow()) {
			out = append(out, types.SimilarityEdge{
				A: a, B: c, Method: types.MethodExifTime, Weight: weightExifTime,
			})
		}
		if camerasAgree(hi.Exif, lo.Exif) {
			out = append(out, types.SimilarityEdge{
				A: a, B: c, Method: types.MethodExifCamera, Weight: weightExifCamera,
			})
		}
	}
	if b.cfg.Methods.Filename &&
		utils.TokenOverlap(hi.NameTokens, lo.NameTokens) >= filenameOverlapMin {
		out = append(out, types.SimilarityEdge{
			A: a, B: c, Method: types.MethodFilename, Weight: weightFilenameHit,
		})
	}
	return out
}

func captureTimesAgree(a, c types.ExifMeta, window time.Duration) bool {
	if a.CaptureTime == nil || c.CaptureTime == nil {
		return false
	}
	d := a.CaptureTime.Sub(*c.CaptureTime)
	if d < 0 {
		d = -d
	}
	return d <= window
}

func camerasAgree(a, c types.ExifMeta) bool {
	if a.CameraMake == "" || c.CameraMake == "" {
		return false
	}
	if a.CameraMake != c.CameraMake {
		return false
	}
	// Model is only compared when both sides carry one.
	if a.CameraModel != "" && c.CameraModel != "" && a.CameraModel != c.CameraModel {
		return false
	}
	return true
}

// combine folds per-method edges into per-pair evidence, summing weights
// with a 1.0 cap, and orders pairs by descending combined weight so the
// strongest evidence merges first.
func combine(edges []types.SimilarityEdge) []PairEvidence {
	type pairKey struct{ a, b types.RecordID }
	byPair := make(map[pairKey]*PairEvidence)

	for _, e := range edges {
		k := pairKey{e.A, e.B}
		pe, ok := byPair[k]
		if !ok {
			pe = &PairEvidence{A: e.A, B: e.B}
			byPair[k] = pe
		}
		pe.Edges = append(pe.Edges, e)
		pe.Weight += e.Weight
	}

	out := make([]PairEvidence, 0, len(byPair))
	for _, pe := range byPair {
		if pe.Weight > 1.0 {
			pe.Weight = 1.0
		}
		sort.Slice(pe.Edges, func(i, j int) bool {
			return pe.Edges[i].Method < pe.Edges[j].Method
		})
		out = append(out, *pe)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}
