package anchor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seojun-park/sheetwise/constants"
	"github.com/seojun-park/sheetwise/internal/common"
	"github.com/seojun-park/sheetwise/internal/entity"
	"github.com/seojun-park/sheetwise/internal/fusion"
)

func newTestExtractor() *Extractor {
	scorer := fusion.NewScorer(common.FusionConfig{
		LayoutWeight:    0.5,
		OCRWeight:       0.3,
		PatternWeight:   0.2,
		AcceptThreshold: 0.70,
	})
	return NewExtractor(scorer, nil)
}

func numberElement(id string, y, conf float64) entity.DetectedElement {
	return entity.DetectedElement{
		ID:         id,
		Class:      constants.ClassQuestionNumber,
		Confidence: conf,
		Box:        entity.BoundingBox{X1: 50, Y1: y, X2: 90, Y2: y + 24},
	}
}

func TestExtract_AcceptedAnchors(t *testing.T) {
	e := newTestExtractor()

	elements := []entity.DetectedElement{
		numberElement("e1", 100, 0.9),
		numberElement("e2", 400, 0.85),
	}
	obs := map[string]entity.TextObservation{
		"e1": {ElementID: "e1", Text: "1.", Confidence: 0.95},
		"e2": {ElementID: "e2", Text: "2번", Confidence: 0.9},
	}

	anchors := e.Extract(elements, obs)
	require.Len(t, anchors, 2)
	assert.Equal(t, 100.0, anchors["1"].Y)
	assert.Equal(t, "e1", anchors["1"].ElementID)
	assert.Equal(t, 400.0, anchors["2"].Y)
	assert.Equal(t, "e2", anchors["2"].ElementID)
	assert.InDelta(t, 0.935, anchors["1"].Score, 1e-9)
}

func TestExtract_DuplicateNumberKeepsHighestScore(t *testing.T) {
	e := newTestExtractor()

	// The same number detected twice; the later, better-scored instance
	// must win regardless of position.
	elements := []entity.DetectedElement{
		numberElement("weak", 100, 0.7),
		numberElement("strong", 150, 0.8),
	}
	obs := map[string]entity.TextObservation{
		"weak":   {ElementID: "weak", Text: "1.", Confidence: 0.6},  // 0.73
		"strong": {ElementID: "strong", Text: "1.", Confidence: 0.8}, // 0.84
	}

	anchors := e.Extract(elements, obs)
	require.Len(t, anchors, 1)
	assert.Equal(t, 150.0, anchors["1"].Y)
	assert.Equal(t, "strong", anchors["1"].ElementID)
	assert.InDelta(t, 0.84, anchors["1"].Score, 1e-9)
}

func TestExtract_DuplicateTieBreaksOnLowerY(t *testing.T) {
	e := newTestExtractor()

	elements := []entity.DetectedElement{
		numberElement("lower", 500, 0.9),
		numberElement("upper", 120, 0.9),
	}
	obs := map[string]entity.TextObservation{
		"lower": {ElementID: "lower", Text: "4)", Confidence: 0.9},
		"upper": {ElementID: "upper", Text: "4.", Confidence: 0.9},
	}

	anchors := e.Extract(elements, obs)
	require.Len(t, anchors, 1)
	assert.Equal(t, 120.0, anchors["4"].Y)
}

func TestExtract_BelowThresholdRejected(t *testing.T) {
	e := newTestExtractor()

	elements := []entity.DetectedElement{numberElement("e1", 100, 0.3)}
	obs := map[string]entity.TextObservation{
		"e1": {ElementID: "e1", Text: "1.", Confidence: 0.5}, // 0.5*0.3+0.3*0.5+0.2 = 0.50
	}

	anchors := e.Extract(elements, obs)
	assert.Empty(t, anchors)
}

func TestExtract_OtherClassesLoseLayoutSignal(t *testing.T) {
	e := newTestExtractor()

	// A question-text element whose OCR happens to start with "3." gets no
	// layout contribution, capping its score at 0.5.
	elements := []entity.DetectedElement{
		{
			ID:         "t1",
			Class:      constants.ClassQuestionText,
			Confidence: 0.99,
			Box:        entity.BoundingBox{X1: 50, Y1: 200, X2: 700, Y2: 260},
		},
	}
	obs := map[string]entity.TextObservation{
		"t1": {ElementID: "t1", Text: "3. 다음 중 옳은 것은?", Confidence: 1.0},
	}

	anchors := e.Extract(elements, obs)
	assert.Empty(t, anchors)
}

func TestExtract_RaisingThresholdNeverAddsAnchors(t *testing.T) {
	elements := []entity.DetectedElement{
		numberElement("e1", 100, 0.9),
		numberElement("e2", 200, 0.7),
		numberElement("e3", 300, 0.5),
		numberElement("e4", 400, 0.3),
	}
	obs := map[string]entity.TextObservation{
		"e1": {ElementID: "e1", Text: "1.", Confidence: 0.95},
		"e2": {ElementID: "e2", Text: "2.", Confidence: 0.8},
		"e3": {ElementID: "e3", Text: "3.", Confidence: 0.6},
		"e4": {ElementID: "e4", Text: "4.", Confidence: 0.4},
	}

	prev := len(elements) + 1
	for _, threshold := range []float64{0.0, 0.3, 0.5, 0.7, 0.9, 1.0} {
		scorer := fusion.NewScorer(common.FusionConfig{
			LayoutWeight:    0.5,
			OCRWeight:       0.3,
			PatternWeight:   0.2,
			AcceptThreshold: threshold,
		})
		got := len(NewExtractor(scorer, nil).Extract(elements, obs))
		assert.LessOrEqual(t, got, prev, "threshold %v", threshold)
		prev = got
	}
}

func TestExtract_MissingOCRSkipped(t *testing.T) {
	e := newTestExtractor()

	elements := []entity.DetectedElement{numberElement("e1", 100, 0.9)}
	anchors := e.Extract(elements, map[string]entity.TextObservation{})
	assert.Empty(t, anchors)
}

func TestExtract_EmptyInput(t *testing.T) {
	e := newTestExtractor()

	anchors := e.Extract(nil, nil)
	assert.NotNil(t, anchors)
	assert.Empty(t, anchors)
}
