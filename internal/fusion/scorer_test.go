package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seojun-park/sheetwise/internal/common"
)

func defaultConfig() common.FusionConfig {
	return common.FusionConfig{
		LayoutWeight:    0.5,
		OCRWeight:       0.3,
		PatternWeight:   0.2,
		AcceptThreshold: 0.70,
	}
}

func TestScore_StrongSignalsAccepted(t *testing.T) {
	s := NewScorer(defaultConfig())

	// Confident detection, confident OCR, pattern matched.
	got := s.Score(0.9, 0.95, 1.0)
	assert.InDelta(t, 0.935, got, 1e-9)
	assert.True(t, s.Accept(got))
}

func TestScore_WeakLayoutRejected(t *testing.T) {
	s := NewScorer(defaultConfig())

	// Perfect OCR and pattern cannot rescue a weak layout signal.
	got := s.Score(0.39, 1.0, 1.0)
	assert.InDelta(t, 0.695, got, 1e-9)
	assert.False(t, s.Accept(got))
}

func TestScore_ThresholdBoundaryAccepted(t *testing.T) {
	s := NewScorer(defaultConfig())

	// 0.5*0.4 + 0.3*1.0 + 0.2*1.0 = 0.70 lands exactly on the threshold.
	got := s.Score(0.4, 1.0, 1.0)
	assert.InDelta(t, 0.70, got, 1e-9)
	assert.True(t, s.Accept(got))
}

func TestScore_InputsClamped(t *testing.T) {
	s := NewScorer(defaultConfig())

	assert.InDelta(t, 1.0, s.Score(2.0, 3.0, 5.0), 1e-9)
	assert.InDelta(t, 0.0, s.Score(-1.0, -0.5, -0.1), 1e-9)
}

func TestScore_MonotonicInEachSignal(t *testing.T) {
	s := NewScorer(defaultConfig())

	base := s.Score(0.5, 0.5, 0.5)
	assert.Greater(t, s.Score(0.6, 0.5, 0.5), base)
	assert.Greater(t, s.Score(0.5, 0.6, 0.5), base)
	assert.Greater(t, s.Score(0.5, 0.5, 0.6), base)
}

func TestScore_MissingSignalsContributeNothing(t *testing.T) {
	s := NewScorer(defaultConfig())

	// Fallback path: no layout signal caps the score at 0.5, below the
	// acceptance threshold.
	got := s.Score(0, 1.0, 1.0)
	assert.InDelta(t, 0.5, got, 1e-9)
	assert.False(t, s.Accept(got))
}
