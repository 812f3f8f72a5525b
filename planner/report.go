package planner

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"imagededup/types"
)

// WriteJSON encodes the full plan document.
func (p *Plan) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// SaveJSON writes the plan document to a file.
func (p *Plan) SaveJSON(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	defer f.Close()
	return p.WriteJSON(f)
}

// WriteCSV writes the flat per-action manifest.
func (p *Plan) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"cluster_id", "path", "disposition", "canonical_path", "confidence", "signals", "reason",
	}); err != nil {
		return err
	}

	canonicalByCluster := make(map[int]ClusterReport, len(p.Clusters))
	for _, c := range p.Clusters {
		canonicalByCluster[c.ClusterID] = c
	}

	for _, a := range p.Actions {
		c := canonicalByCluster[a.ClusterID]
		signals := make([]string, len(c.Signals))
		for i, m := range c.Signals {
			signals[i] = string(m)
		}
		row := []string{
			fmt.Sprintf("%d", a.ClusterID),
			a.Path,
			string(a.Disposition),
			c.CanonicalPath,
			fmt.Sprintf("%.2f", c.Confidence),
			strings.Join(signals, ";"),
			a.Reason,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the manifest to a file.
func (p *Plan) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest %s: %w", path, err)
	}
	defer f.Close()
	return p.WriteCSV(f)
}

// RenderSummary renders the human-readable plan overview table.
func (p *Plan) RenderSummary() string {
	counts := make(map[types.Disposition]int)
	for _, a := range p.Actions {
		counts[a.Disposition]++
	}

	duplicates := 0
	lowConfidence := 0
	for _, c := range p.Clusters {
		duplicates += len(c.MemberPaths) - 1
		if c.Confidence < 0.5 {
			lowConfidence++
		}
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Plan ID", p.ID},
		{"Duplicate clusters", len(p.Clusters)},
		{"Duplicate files", duplicates},
		{"Keep", counts[types.DispositionKeep]},
		{"Move to review", counts[types.DispositionMoveToReview]},
		{"Delete", counts[types.DispositionDelete]},
		{"Link", counts[types.DispositionLink]},
		{"Low-confidence clusters", lowConfidence},
		{"Dry run", p.DryRun},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
