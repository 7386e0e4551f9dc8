// Package pipeline orchestrates one job's structuring run: reading-order
// assignment, anchor extraction, merging, and guarded persistence. Stages
// run sequentially per job because each depends on the full output of the
// prior stage; jobs share no pipeline state.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/seojun-park/sheetwise/internal/anchor"
	"github.com/seojun-park/sheetwise/internal/entity"
	"github.com/seojun-park/sheetwise/internal/gateway"
	"github.com/seojun-park/sheetwise/internal/layout"
	"github.com/seojun-park/sheetwise/internal/merge"
	"github.com/seojun-park/sheetwise/internal/normalize"
	"github.com/seojun-park/sheetwise/internal/vision"
)

// Pipeline runs segment -> extract anchors -> merge -> persist for one job.
type Pipeline struct {
	Segmenter *layout.Segmenter
	Extractor *anchor.Extractor
	Merger    *merge.Merger
	Gateway   *gateway.Gateway
	Describer vision.Describer // optional; nil disables description backfill
	Log       *slog.Logger
}

// New creates a pipeline. describer may be nil when no description
// generator is configured.
func New(seg *layout.Segmenter, ext *anchor.Extractor, m *merge.Merger, gw *gateway.Gateway, describer vision.Describer, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{Segmenter: seg, Extractor: ext, Merger: m, Gateway: gw, Describer: describer, Log: log}
}

// Run structures one normalized job and persists the result. The document
// is returned even when persistence fails so callers can inspect it; the
// save result carries the persistence outcome.
func (p *Pipeline) Run(ctx context.Context, in *normalize.JobInput) (*entity.StructuredDocument, gateway.SaveResult, error) {
	ordered := p.Segmenter.AssignReadingOrder(in.Elements, in.PageWidth, in.PageHeight)
	attach(ordered, in.Observations, in.Descriptions)
	p.backfillDescriptions(ctx, ordered)

	columns := 1
	if n := len(ordered); n > 0 {
		columns = ordered[n-1].Column + 1
	}

	anchors := p.Extractor.Extract(in.Elements, in.Observations)
	p.Log.Info("pipeline.extract.ok",
		"job_id", in.JobID,
		"elements", len(in.Elements),
		"anchors", len(anchors),
		"columns", columns,
	)

	doc := p.Merger.Merge(in.JobID.String(), ordered, anchors, columns)
	p.Log.Info("pipeline.merge.ok", "job_id", in.JobID, "questions", doc.Info.TotalQuestions)

	res := p.Gateway.Save(ctx, in.JobID, doc)
	if res.Outcome == gateway.OutcomeFailed {
		p.Log.Error("pipeline.persist.failed", "job_id", in.JobID, "failure", string(res.Failure), "err", res.Err)
		return doc, res, res.Err
	}
	p.Log.Info("pipeline.persist.ok", "job_id", in.JobID, "outcome", res.Outcome.String())
	return doc, res, nil
}

// backfillDescriptions generates descriptions for visual elements the
// producer shipped without one, when a crop image and a describer are
// available. A failed call degrades that element, never the job.
func (p *Pipeline) backfillDescriptions(ctx context.Context, ordered []entity.OrderedElement) {
	if p.Describer == nil {
		return
	}
	for i := range ordered {
		el := &ordered[i]
		if !el.Class.IsVisual() || el.Description != nil || el.CropURL == "" {
			continue
		}
		desc, err := p.Describer.Describe(ctx, vision.DescribeRequest{
			ElementID: el.ID,
			Class:     el.Class,
			ImageURL:  el.CropURL,
			Hint:      hintText(el),
		})
		if err != nil {
			p.Log.Warn("pipeline.describe.skipped", "element_id", el.ID, "err", err)
			continue
		}
		el.Description = &desc
	}
}

func hintText(el *entity.OrderedElement) string {
	if el.Text == nil {
		return ""
	}
	return el.Text.Text
}

// attach pairs each ordered element with its observation and description by
// id. The lookup tables are built once per job by the normalizer; element
// data is never duplicated into them.
func attach(ordered []entity.OrderedElement, obs map[string]entity.TextObservation, descs map[string]entity.VisualDescription) {
	for i := range ordered {
		if o, ok := obs[ordered[i].ID]; ok {
			o := o
			ordered[i].Text = &o
		}
		if d, ok := descs[ordered[i].ID]; ok {
			d := d
			ordered[i].Description = &d
		}
	}
}
