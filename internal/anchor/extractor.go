// Package anchor locates question-number anchors by fusing layout, OCR, and
// pattern confidences over the detected elements of one page.
package anchor

import (
	"log/slog"
	"sort"

	"github.com/seojun-park/sheetwise/constants"
	"github.com/seojun-park/sheetwise/internal/entity"
	"github.com/seojun-park/sheetwise/internal/fusion"
)

// Extractor finds accepted question-number anchors.
type Extractor struct {
	scorer *fusion.Scorer
	log    *slog.Logger
}

// NewExtractor creates an extractor using the given scorer.
func NewExtractor(scorer *fusion.Scorer, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{scorer: scorer, log: log}
}

type candidate struct {
	number    string
	elementID string
	y         float64
	score     float64
}

// Extract returns the accepted anchors keyed by question number. Duplicate
// numbers keep only the highest-scoring instance, ties broken by lower y.
// Empty or all-below-threshold input yields an empty map, not an error.
func (e *Extractor) Extract(elements []entity.DetectedElement, observations map[string]entity.TextObservation) map[string]entity.Anchor {
	var candidates []candidate

	for _, el := range elements {
		obs, ok := observations[el.ID]
		if !ok || obs.Text == "" {
			// No OCR text is expected, not an error.
			continue
		}
		number, matched := ExtractNumber(obs.Text)
		if !matched {
			continue
		}

		patternConf := 1.0
		layoutConf := el.Confidence
		if el.Class != constants.ClassQuestionNumber {
			// Fallback path: the element was not classed as a question
			// number, so the layout signal contributes nothing.
			layoutConf = 0
		}

		score := e.scorer.Score(layoutConf, obs.Confidence, patternConf)
		if !e.scorer.Accept(score) {
			e.log.Debug("anchor.candidate.rejected",
				"element_id", el.ID,
				"number", number,
				"score", score,
				"threshold", e.scorer.Threshold(),
			)
			continue
		}
		candidates = append(candidates, candidate{number: number, elementID: el.ID, y: el.Box.Y1, score: score})
	}

	// Deterministic collision handling: best score wins, lower y on ties.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].y < candidates[j].y
	})

	anchors := make(map[string]entity.Anchor, len(candidates))
	for _, c := range candidates {
		if _, exists := anchors[c.number]; exists {
			continue
		}
		anchors[c.number] = entity.Anchor{Number: c.number, ElementID: c.elementID, Y: c.y, Score: c.score}
	}
	return anchors
}
