// Package fusion combines independent per-source confidence signals into a
// single acceptance score for question-number candidates.
package fusion

import (
	"github.com/seojun-park/sheetwise/internal/common"
)

// Scorer fuses layout, OCR, and pattern confidences with fixed weights.
// The weighting favors the most stable signal (layout) over noisier OCR
// over the cheap pattern fallback.
type Scorer struct {
	layoutWeight  float64
	ocrWeight     float64
	patternWeight float64
	threshold     float64
}

// NewScorer creates a scorer from the fusion configuration.
func NewScorer(cfg common.FusionConfig) *Scorer {
	return &Scorer{
		layoutWeight:  cfg.LayoutWeight,
		ocrWeight:     cfg.OCRWeight,
		patternWeight: cfg.PatternWeight,
		threshold:     cfg.AcceptThreshold,
	}
}

// Score computes the fused acceptance score. Inputs are clamped to [0,1];
// a missing input is passed as 0. Pure, no side effects.
func (s *Scorer) Score(layoutConf, ocrConf, patternConf float64) float64 {
	return s.layoutWeight*clamp01(layoutConf) +
		s.ocrWeight*clamp01(ocrConf) +
		s.patternWeight*clamp01(patternConf)
}

// Accept reports whether a score meets the acceptance threshold.
// Below-threshold candidates are rejected, not retried.
func (s *Scorer) Accept(score float64) bool {
	return score >= s.threshold
}

// Threshold returns the configured acceptance threshold.
func (s *Scorer) Threshold() float64 { return s.threshold }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
