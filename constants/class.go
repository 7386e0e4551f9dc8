package constants

// ElementClass is the canonical class label assigned by the layout detector.
// The normalization adapter maps producer variants onto these values before
// any core component sees them.
type ElementClass string

const (
	ClassQuestionNumber ElementClass = "question_number"
	ClassQuestionText   ElementClass = "question_text"
	ClassPassage        ElementClass = "passage"
	ClassChoice         ElementClass = "choice"
	ClassImage          ElementClass = "image"
	ClassTable          ElementClass = "table"
	ClassFlowchart      ElementClass = "flowchart"
	ClassExplanation    ElementClass = "explanation"
	ClassSectionHeader  ElementClass = "section_header"
)

// Classes holds every canonical class label.
var Classes = []ElementClass{
	ClassQuestionNumber,
	ClassQuestionText,
	ClassPassage,
	ClassChoice,
	ClassImage,
	ClassTable,
	ClassFlowchart,
	ClassExplanation,
	ClassSectionHeader,
}

// IsVisual reports whether elements of this class receive AI-generated
// descriptions from the vision collaborator.
func (c ElementClass) IsVisual() bool {
	switch c {
	case ClassImage, ClassTable, ClassFlowchart:
		return true
	}
	return false
}
