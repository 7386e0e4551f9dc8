// Package layout assigns reading order to detected elements by locating
// column boundaries from the horizontal distribution of element boxes.
//
// Worksheets mix full-width headers with 2-column bodies, so the segmenter
// detects gaps per page instead of assuming a fixed column count: it
// projects boxes onto the horizontal axis, measures how much of the page
// height is covered at each x position, and treats sufficiently wide,
// mostly text-free vertical bands as column separators.
package layout

import (
	"sort"

	"github.com/seojun-park/sheetwise/internal/common"
	"github.com/seojun-park/sheetwise/internal/entity"
)

// bins is the horizontal resolution of the coverage projection.
const bins = 256

// Segmenter detects column boundaries and assigns reading-order ranks.
type Segmenter struct {
	minGapWidth     float64
	minGapHeightPct float64
}

// NewSegmenter creates a segmenter from the layout configuration.
func NewSegmenter(cfg common.LayoutConfig) *Segmenter {
	return &Segmenter{
		minGapWidth:     cfg.MinGapWidth,
		minGapHeightPct: cfg.MinGapHeightPct,
	}
}

// span is a half-open horizontal interval [from, to).
type span struct {
	from, to float64
}

func (s span) width() float64 { return s.to - s.from }

// AssignReadingOrder returns the elements annotated with a column index and
// a rank forming a strict total order: page ascending, then column, then y,
// x as tie-break. The input slice is not mutated, and the result does not
// depend on the input order. No qualifying gap means a single column.
func (s *Segmenter) AssignReadingOrder(elements []entity.DetectedElement, pageWidth, pageHeight float64) []entity.OrderedElement {
	columns := s.detectColumns(elements, pageWidth, pageHeight)

	ordered := make([]entity.OrderedElement, len(elements))
	for i, el := range elements {
		ordered[i] = entity.OrderedElement{
			DetectedElement: el,
			Column:          assignColumn(el.Box, columns),
		}
	}

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.PageIndex != b.PageIndex {
			return a.PageIndex < b.PageIndex
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.Box.Y1 != b.Box.Y1 {
			return a.Box.Y1 < b.Box.Y1
		}
		if a.Box.X1 != b.Box.X1 {
			return a.Box.X1 < b.Box.X1
		}
		return a.ID < b.ID
	})
	for i := range ordered {
		ordered[i].Rank = i
	}
	return ordered
}

// ColumnCount returns the number of columns the elements would segment into.
func (s *Segmenter) ColumnCount(elements []entity.DetectedElement, pageWidth, pageHeight float64) int {
	return len(s.detectColumns(elements, pageWidth, pageHeight))
}

// detectColumns returns the column spans, left to right. Columns are the
// maximal covered runs of the horizontal projection; the text-free runs
// between them must be at least minGapWidth wide to qualify as separators.
func (s *Segmenter) detectColumns(elements []entity.DetectedElement, pageWidth, pageHeight float64) []span {
	if pageWidth <= 0 || pageHeight <= 0 || len(elements) == 0 {
		return []span{{from: 0, to: pageWidth}}
	}

	binWidth := pageWidth / bins
	covered := make([]bool, bins)
	for b := 0; b < bins; b++ {
		x1 := float64(b) * binWidth
		x2 := x1 + binWidth
		free := pageHeight - coveredHeight(elements, x1, x2)
		covered[b] = free < s.minGapHeightPct*pageHeight
	}

	// Collect covered runs, merging across sub-minimum gaps so narrow
	// inter-word slivers do not split a column.
	var runs []span
	for b := 0; b < bins; {
		if !covered[b] {
			b++
			continue
		}
		start := b
		for b < bins && covered[b] {
			b++
		}
		run := span{from: float64(start) * binWidth, to: float64(b) * binWidth}
		if n := len(runs); n > 0 && run.from-runs[n-1].to < s.minGapWidth {
			runs[n-1].to = run.to
		} else {
			runs = append(runs, run)
		}
	}

	if len(runs) <= 1 {
		return []span{{from: 0, to: pageWidth}}
	}
	return runs
}

// coveredHeight returns the total page height covered by element boxes that
// horizontally overlap [x1, x2), counting each y interval once.
func coveredHeight(elements []entity.DetectedElement, x1, x2 float64) float64 {
	var intervals []span
	for _, el := range elements {
		if el.Box.X2 <= x1 || el.Box.X1 >= x2 {
			continue
		}
		intervals = append(intervals, span{from: el.Box.Y1, to: el.Box.Y2})
	}
	if len(intervals) == 0 {
		return 0
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].from < intervals[j].from })

	total := 0.0
	cur := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.from <= cur.to {
			if iv.to > cur.to {
				cur.to = iv.to
			}
			continue
		}
		total += cur.width()
		cur = iv
	}
	total += cur.width()
	return total
}

// assignColumn picks the column whose span contains the box center; a box
// straddling a gap goes to the column with the larger horizontal overlap.
func assignColumn(box entity.BoundingBox, columns []span) int {
	if len(columns) <= 1 {
		return 0
	}
	center := box.CenterX()
	for i, col := range columns {
		if center >= col.from && center < col.to {
			return i
		}
	}

	best, bestOverlap := 0, -1.0
	for i, col := range columns {
		lo := max(box.X1, col.from)
		hi := min(box.X2, col.to)
		if overlap := hi - lo; overlap > bestOverlap {
			best, bestOverlap = i, overlap
		}
	}
	return best
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
