// Package planner converts clusters and canonical choices into a
// reviewable, non-destructive action plan. Nothing here touches the
// filesystem; execution belongs to an external tool after review.
package planner

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"imagededup/config"
	"imagededup/types"
)

// ClusterReport is the per-cluster slice of the report document.
type ClusterReport struct {
	ClusterID     int            `json:"cluster_id"`
	MemberPaths   []string       `json:"member_paths"`
	CanonicalPath string         `json:"canonical_path"`
	Confidence    float64        `json:"confidence"`
	Signals       []types.Method `json:"signals,omitempty"`
}

// Plan is the full output of a run: every proposed action plus the cluster
// evidence backing it.
type Plan struct {
	ID          string          `json:"plan_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	DryRun      bool            `json:"dry_run"`
	Clusters    []ClusterReport `json:"clusters"`
	Actions     []types.Action  `json:"actions"`
}

// BuildPlan maps every non-canonical member to a disposition. The
// configured disposition applies only when the cluster's confidence clears
// the relevant floor; low-confidence clusters always route to review, no
// configuration can bypass that.
func BuildPlan(cfg config.Config, records []types.ImageRecord, clusters []types.Cluster) *Plan {
	plan := &Plan{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		DryRun:      cfg.DryRun,
	}

	for _, c := range clusters {
		if len(c.Members) < 2 {
			continue
		}

		report := ClusterReport{
			ClusterID:     c.ID,
			CanonicalPath: records[c.Canonical].Path,
			Confidence:    c.Confidence,
			Signals:       c.Signals,
		}
		for _, id := range c.Members {
			report.MemberPaths = append(report.MemberPaths, records[id].Path)
		}
		plan.Clusters = append(plan.Clusters, report)

		plan.Actions = append(plan.Actions, types.Action{
			Target:      c.Canonical,
			Path:        records[c.Canonical].Path,
			Disposition: types.DispositionKeep,
			Reason:      fmt.Sprintf("canonical of cluster %d (%d members)", c.ID, len(c.Members)),
			ClusterID:   c.ID,
		})

		for _, id := range c.Members {
			if id == c.Canonical {
				continue
			}
			disposition, reason := resolveDisposition(cfg, c)
			plan.Actions = append(plan.Actions, types.Action{
				Target:      id,
				Path:        records[id].Path,
				Disposition: disposition,
				Reason:      reason,
				ClusterID:   c.ID,
			})
		}
	}
	return plan
}

// resolveDisposition applies the configured policy under the safety
// invariants.
func resolveDisposition(cfg config.Config, c types.Cluster) (types.Disposition, string) {
	duplicateOf := fmt.Sprintf("duplicate in cluster %d (confidence %.2f, signals %v)",
		c.ID, c.Confidence, c.Signals)

	if c.Confidence < cfg.ReviewFloor {
		return types.DispositionMoveToReview,
			fmt.Sprintf("confidence %.2f below review floor %.2f; manual review required",
				c.Confidence, cfg.ReviewFloor)
	}

	switch types.Disposition(cfg.Disposition) {
	case types.DispositionDelete:
		if c.Confidence < cfg.AutoDeleteFloor {
			return types.DispositionMoveToReview,
				fmt.Sprintf("confidence %.2f below auto-delete floor %.2f; routed to review",
					c.Confidence, cfg.AutoDeleteFloor)
		}
		return types.DispositionDelete, duplicateOf
	case types.DispositionLink:
		if c.Confidence < cfg.AutoDeleteFloor {
			return types.DispositionMoveToReview,
				fmt.Sprintf("confidence %.2f below link floor %.2f; routed to review",
					c.Confidence, cfg.AutoDeleteFloor)
		}
		return types.DispositionLink, duplicateOf
	default:
		return types.DispositionMoveToReview, duplicateOf
	}
}
