// Package normalize is the single adapter at the subsystem boundary that
// maps every known producer field variant to one canonical shape. Core
// components see only canonical shapes.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/seojun-park/sheetwise/constants"
	"github.com/seojun-park/sheetwise/internal/common"
	"github.com/seojun-park/sheetwise/internal/entity"
)

// JobInput is the canonical input of one analysis job. Observations and
// descriptions are keyed by element id; they reference elements weakly and
// never duplicate element data.
type JobInput struct {
	JobID        uuid.UUID
	PageWidth    float64
	PageHeight   float64
	Elements     []entity.DetectedElement
	Observations map[string]entity.TextObservation
	Descriptions map[string]entity.VisualDescription
}

// classAliases maps producer class-label variants onto canonical classes.
var classAliases = map[string]constants.ElementClass{
	"question_number": constants.ClassQuestionNumber,
	"question_no":     constants.ClassQuestionNumber,
	"qnum":            constants.ClassQuestionNumber,
	"question_text":   constants.ClassQuestionText,
	"question":        constants.ClassQuestionText,
	"text":            constants.ClassQuestionText,
	"passage":         constants.ClassPassage,
	"reading_passage": constants.ClassPassage,
	"choice":          constants.ClassChoice,
	"option":          constants.ClassChoice,
	"answer_option":   constants.ClassChoice,
	"image":           constants.ClassImage,
	"figure":          constants.ClassImage,
	"picture":         constants.ClassImage,
	"table":           constants.ClassTable,
	"flowchart":       constants.ClassFlowchart,
	"diagram":         constants.ClassFlowchart,
	"explanation":     constants.ClassExplanation,
	"solution":        constants.ClassExplanation,
	"section_header":  constants.ClassSectionHeader,
	"section":         constants.ClassSectionHeader,
	"header":          constants.ClassSectionHeader,
}

// Normalize parses a raw producer payload, maps field variants to the
// canonical shape, and validates the result. Malformed payloads are
// permanent faults.
func Normalize(raw []byte) (*JobInput, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, common.NewAppError("MALFORMED_INPUT", "payload is not a JSON object", err)
	}

	jobIDStr, ok := pickString(payload, "job_id", "jobId", "analysis_id", "id")
	if !ok {
		return nil, common.NewAppError("MALFORMED_INPUT", "missing job id", common.ErrInvalidInput)
	}
	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		return nil, common.NewAppError("MALFORMED_INPUT", "job id is not a UUID", err)
	}

	width, height := pageSize(payload)
	if width <= 0 || height <= 0 {
		return nil, common.NewAppError("MALFORMED_INPUT", "missing page dimensions", common.ErrInvalidInput)
	}

	in := &JobInput{
		JobID:        jobID,
		PageWidth:    width,
		PageHeight:   height,
		Observations: make(map[string]entity.TextObservation),
		Descriptions: make(map[string]entity.VisualDescription),
	}

	for i, item := range pickList(payload, "detections", "elements", "layout") {
		el, ok := normalizeElement(item, i)
		if !ok {
			continue
		}
		in.Elements = append(in.Elements, el)
	}

	for _, item := range pickList(payload, "ocr", "observations", "texts") {
		id, ok := pickString(item, "element_id", "elementId", "id", "ref")
		if !ok {
			continue
		}
		text, _ := pickString(item, "text", "content", "value")
		in.Observations[id] = entity.TextObservation{
			ElementID:  id,
			Text:       text,
			Confidence: clamp01(pickFloat(item, "confidence", "score", "conf")),
		}
	}

	for _, item := range pickList(payload, "descriptions", "visual_descriptions", "analyses") {
		id, ok := pickString(item, "element_id", "elementId", "id", "ref")
		if !ok {
			continue
		}
		desc, _ := pickString(item, "description", "analysis", "text")
		in.Descriptions[id] = entity.VisualDescription{
			ElementID:   id,
			Description: desc,
			Confidence:  clamp01(pickFloat(item, "confidence", "score", "conf")),
		}
	}

	if err := validateCanonical(in); err != nil {
		return nil, common.NewAppError("MALFORMED_INPUT", "canonical validation failed", err)
	}
	return in, nil
}

func normalizeElement(item map[string]any, index int) (entity.DetectedElement, bool) {
	label, ok := pickString(item, "class", "label", "class_name", "category")
	if !ok {
		return entity.DetectedElement{}, false
	}
	class, ok := classAliases[strings.ToLower(strings.TrimSpace(label))]
	if !ok {
		// Unknown classes survive normalization; the merger decides
		// whether they have a structural slot.
		class = constants.ElementClass(strings.ToLower(strings.TrimSpace(label)))
	}

	box, ok := pickBox(item)
	if !ok {
		return entity.DetectedElement{}, false
	}

	id, ok := pickString(item, "id", "element_id", "elementId")
	pageIndex := int(pickFloat(item, "page_index", "page", "pageIndex"))
	if !ok {
		id = fmt.Sprintf("p%d-e%d", pageIndex, index)
	}
	cropURL, _ := pickString(item, "crop_url", "cropUrl", "image_url", "url")

	return entity.DetectedElement{
		ID:         id,
		Class:      class,
		Confidence: clamp01(pickFloat(item, "confidence", "score", "conf")),
		Box:        box,
		PageIndex:  pageIndex,
		CropURL:    cropURL,
	}, true
}

func validateCanonical(in *JobInput) error {
	type canonicalElement struct {
		ID         string             `json:"id"`
		Class      string             `json:"class"`
		Confidence float64            `json:"confidence"`
		PageIndex  int                `json:"page_index"`
		Box        entity.BoundingBox `json:"box"`
	}
	canonical := map[string]any{
		"job_id":      in.JobID.String(),
		"page_width":  in.PageWidth,
		"page_height": in.PageHeight,
		"elements":    []canonicalElement{},
	}
	els := make([]canonicalElement, len(in.Elements))
	for i, el := range in.Elements {
		els[i] = canonicalElement{
			ID:         el.ID,
			Class:      string(el.Class),
			Confidence: el.Confidence,
			PageIndex:  el.PageIndex,
			Box:        el.Box,
		}
	}
	canonical["elements"] = els

	data, err := json.Marshal(canonical)
	if err != nil {
		return err
	}
	return ValidateJSONAgainstSchema(canonicalSchema, data)
}

func pageSize(payload map[string]any) (float64, float64) {
	if page, ok := payload["page"].(map[string]any); ok {
		return pickFloat(page, "width", "page_width"), pickFloat(page, "height", "page_height")
	}
	if page, ok := payload["page_info"].(map[string]any); ok {
		return pickFloat(page, "width", "page_width"), pickFloat(page, "height", "page_height")
	}
	return pickFloat(payload, "page_width", "pageWidth", "width"),
		pickFloat(payload, "page_height", "pageHeight", "height")
}

func pickString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func pickFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f
			}
		}
	}
	return 0
}

func pickList(m map[string]any, keys ...string) []map[string]any {
	for _, k := range keys {
		raw, ok := m[k].([]any)
		if !ok {
			continue
		}
		items := make([]map[string]any, 0, len(raw))
		for _, entry := range raw {
			if item, ok := entry.(map[string]any); ok {
				items = append(items, item)
			}
		}
		return items
	}
	return nil
}

// pickBox accepts {x1,y1,x2,y2}, {x,y,width,height}, and 4-element arrays
// under box/bbox/coordinates.
func pickBox(item map[string]any) (entity.BoundingBox, bool) {
	for _, k := range []string{"box", "bbox", "coordinates"} {
		switch v := item[k].(type) {
		case map[string]any:
			if _, ok := v["x1"]; ok {
				return entity.BoundingBox{
					X1: pickFloat(v, "x1"),
					Y1: pickFloat(v, "y1"),
					X2: pickFloat(v, "x2"),
					Y2: pickFloat(v, "y2"),
				}, true
			}
			if _, ok := v["width"]; ok {
				x := pickFloat(v, "x", "left")
				y := pickFloat(v, "y", "top")
				return entity.BoundingBox{
					X1: x,
					Y1: y,
					X2: x + pickFloat(v, "width"),
					Y2: y + pickFloat(v, "height"),
				}, true
			}
		case []any:
			if len(v) == 4 {
				coords := make([]float64, 4)
				for i, c := range v {
					f, ok := c.(float64)
					if !ok {
						return entity.BoundingBox{}, false
					}
					coords[i] = f
				}
				return entity.BoundingBox{X1: coords[0], Y1: coords[1], X2: coords[2], Y2: coords[3]}, true
			}
		}
	}
	return entity.BoundingBox{}, false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
