package scanner

import (
	"context"

	"imagededup/cluster"
	"imagededup/evidence"
	"imagededup/index"
	"imagededup/logging"
	"imagededup/planner"
	"imagededup/types"
)

// PipelineResult is everything a full run produces. All slices are owned by
// the result and immutable once returned.
type PipelineResult struct {
	Records  []types.ImageRecord
	Clusters []types.Cluster
	Plan     *planner.Plan
	Summary  *Summary
}

// RunPipeline executes the whole engine: fingerprint extraction, evidence
// accumulation, clustering, canonical selection and action planning.
// Clustering runs single-threaded after all edge emission completes; its
// cost is near-linear in the edge count.
func RunPipeline(ctx context.Context, opts ScanOptions) (*PipelineResult, error) {
	records, summary, err := CollectRecords(ctx, opts)
	if err != nil {
		return nil, err
	}

	idx := index.New()
	builder := evidence.NewBuilder(opts.Config, idx)
	for _, rec := range records {
		builder.AddRecord(rec)
	}

	pairs, err := builder.BuildEvidence(ctx, opts.Config.WorkerCount())
	if err != nil {
		return nil, err
	}
	logging.DebugLog("evidence: %d record(s), %d weighted pair(s)", len(records), len(pairs))

	clusters := cluster.Build(builder.Records(), pairs, opts.Config.MergeThreshold)
	plan := planner.BuildPlan(opts.Config, builder.Records(), clusters)

	return &PipelineResult{
		Records:  builder.Records(),
		Clusters: clusters,
		Plan:     plan,
		Summary:  summary,
	}, nil
}
