package entity

import (
	"github.com/seojun-park/sheetwise/constants"
)

// BoundingBox is an axis-aligned box in source-image pixel space.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// CenterX returns the horizontal center of the box.
func (b BoundingBox) CenterX() float64 { return (b.X1 + b.X2) / 2 }

// DetectedElement is one region found by the layout detector.
// Immutable after normalization; core components never mutate it.
type DetectedElement struct {
	ID         string                 `json:"id"`
	Class      constants.ElementClass `json:"class"`
	Confidence float64                `json:"confidence"`
	Box        BoundingBox            `json:"box"`
	PageIndex  int                    `json:"page_index"`
	// CropURL points at the cropped region image (data: or https:) when the
	// producer exported one; empty otherwise.
	CropURL string `json:"crop_url,omitempty"`
}

// TextObservation is the OCR output paired to one element by id.
// At most one observation exists per element; absence is expected.
type TextObservation struct {
	ElementID  string  `json:"element_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// VisualDescription is the AI-generated description of a visual element,
// paired to the element by id.
type VisualDescription struct {
	ElementID   string  `json:"element_id"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// Anchor is an accepted question-number candidate. ElementID identifies the
// element the number was read from, Y is that element's top edge, and Score
// is the fused acceptance score.
type Anchor struct {
	Number    string
	ElementID string
	Y         float64
	Score     float64
}

// OrderedElement is a DetectedElement with its paired observation and
// description plus the reading-order assignment from the segmenter.
// Rank forms a strict total order: page ascending, then column, then y.
type OrderedElement struct {
	DetectedElement
	Text        *TextObservation
	Description *VisualDescription
	Column      int
	Rank        int
}
