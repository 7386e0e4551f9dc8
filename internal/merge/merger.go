// Package merge assembles ordered, classified elements into the nested
// question tree of a structured worksheet document.
package merge

import (
	"log/slog"
	"strings"

	"github.com/seojun-park/sheetwise/constants"
	"github.com/seojun-park/sheetwise/internal/entity"
)

// Merger walks elements in reading order, splitting at question-number
// anchors and routing each element into the open question by class.
type Merger struct {
	log *slog.Logger
}

// NewMerger creates a merger.
func NewMerger(log *slog.Logger) *Merger {
	if log == nil {
		log = slog.Default()
	}
	return &Merger{log: log}
}

// Merge builds the structured document for one job. It is a pure function
// of its inputs: identical inputs always produce a byte-identical document.
// Elements before the first anchor become front matter; elements of a class
// with no structural slot are logged and dropped, never fatal.
func (m *Merger) Merge(jobID string, elements []entity.OrderedElement, anchors map[string]entity.Anchor, columnCount int) *entity.StructuredDocument {
	doc := &entity.StructuredDocument{
		Info: entity.DocumentInfo{
			JobID:        jobID,
			ElementCount: len(elements),
			AnchorCount:  len(anchors),
			ColumnCount:  columnCount,
		},
		Questions: []entity.Question{},
	}

	// Anchors are keyed by the identity of the element they were read
	// from, so a coincidental y match in another column never splits.
	anchorsByElement := make(map[string]entity.Anchor, len(anchors))
	for _, a := range anchors {
		anchorsByElement[a.ElementID] = a
	}

	var (
		open    *entity.Question
		section string
	)
	closeOpen := func() {
		if open != nil {
			doc.Questions = append(doc.Questions, *open)
			open = nil
		}
	}

	for _, el := range elements {
		if a, ok := anchorsByElement[el.ID]; ok {
			closeOpen()
			open = newQuestion(a.Number, section)
		}

		if el.Class == constants.ClassSectionHeader {
			if text := elementText(el); text != "" {
				section = text
				if open != nil {
					open.Section = section
				}
			}
			continue
		}

		if open == nil {
			if text := elementText(el); text != "" {
				doc.Info.FrontMatter = append(doc.Info.FrontMatter, text)
			} else {
				// Pre-anchor elements without text have no front-matter
				// slot; keep the drop visible.
				m.log.Warn("merge.element.orphaned",
					"element_id", el.ID,
					"class", string(el.Class),
				)
			}
			continue
		}
		m.route(open, el)
	}
	closeOpen()

	doc.Info.TotalQuestions = len(doc.Questions)
	return doc
}

// route places one element into the open question's matching list.
func (m *Merger) route(q *entity.Question, el entity.OrderedElement) {
	switch el.Class {
	case constants.ClassQuestionNumber:
		// The number itself is already captured by the anchor split.
	case constants.ClassQuestionText:
		appendText(&q.Content.MainQuestion, elementText(el))
	case constants.ClassPassage:
		appendText(&q.Content.Passage, elementText(el))
	case constants.ClassChoice:
		q.Content.Choices = append(q.Content.Choices, splitChoice(elementText(el)))
	case constants.ClassImage, constants.ClassFlowchart:
		q.Content.Images = append(q.Content.Images, visualRef(el))
		if el.Description != nil && el.Description.Description != "" {
			q.Analysis.ImageDescriptions = append(q.Analysis.ImageDescriptions, el.Description.Description)
		}
	case constants.ClassTable:
		q.Content.Tables = append(q.Content.Tables, visualRef(el))
		if el.Description != nil && el.Description.Description != "" {
			q.Analysis.TableAnalysis = append(q.Analysis.TableAnalysis, el.Description.Description)
		}
	case constants.ClassExplanation:
		if text := elementText(el); text != "" {
			q.Content.Explanations = append(q.Content.Explanations, text)
		}
		if el.Description != nil && el.Description.Description != "" {
			q.Analysis.ProblemAnalysis = append(q.Analysis.ProblemAnalysis, el.Description.Description)
		}
	default:
		// Partial structuring beats aborting the document.
		m.log.Warn("merge.element.unroutable",
			"element_id", el.ID,
			"class", string(el.Class),
			"question", q.Number,
		)
	}
}

func newQuestion(number, section string) *entity.Question {
	return &entity.Question{
		Number:  number,
		Section: section,
		Content: entity.QuestionContent{
			Choices:      []entity.Choice{},
			Images:       []entity.VisualRef{},
			Tables:       []entity.VisualRef{},
			Explanations: []string{},
		},
		Analysis: entity.AIAnalysis{
			ImageDescriptions: []string{},
			TableAnalysis:     []string{},
			ProblemAnalysis:   []string{},
		},
	}
}

func elementText(el entity.OrderedElement) string {
	if el.Text == nil {
		return ""
	}
	return strings.TrimSpace(el.Text.Text)
}

func appendText(dst *string, text string) {
	if text == "" {
		return
	}
	if *dst == "" {
		*dst = text
		return
	}
	*dst = *dst + "\n" + text
}

// choiceMarkers are the recognized leading choice numbers.
var choiceMarkers = []string{"①", "②", "③", "④", "⑤", "(1)", "(2)", "(3)", "(4)", "(5)"}

// splitChoice separates a detected leading choice marker from the choice
// body, preserving the marker as the choice number.
func splitChoice(text string) entity.Choice {
	for _, marker := range choiceMarkers {
		if strings.HasPrefix(text, marker) {
			return entity.Choice{
				Number: marker,
				Text:   strings.TrimSpace(strings.TrimPrefix(text, marker)),
			}
		}
	}
	return entity.Choice{Text: text}
}

func visualRef(el entity.OrderedElement) entity.VisualRef {
	ref := entity.VisualRef{ElementID: el.ID, Box: el.Box}
	if el.Text != nil {
		ref.Caption = strings.TrimSpace(el.Text.Text)
	}
	return ref
}
