// Package export renders persisted structured documents for human review.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/seojun-park/sheetwise/internal/entity"
	"github.com/seojun-park/sheetwise/internal/gateway"
)

// MarshalDocument serializes a structured document with the stable wire
// field names consumers depend on.
func MarshalDocument(doc *entity.StructuredDocument) ([]byte, error) {
	return json.Marshal(doc)
}

// UnmarshalDocument is the inverse of MarshalDocument.
func UnmarshalDocument(data []byte) (*entity.StructuredDocument, error) {
	var doc entity.StructuredDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return &doc, nil
}

// Service is a tiny façade over the gateway that produces export bytes.
type Service struct {
	gw     *gateway.Gateway
	logger *slog.Logger
}

func NewService(gw *gateway.Gateway, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gw: gw, logger: logger}
}

// ExportJSON returns the canonical JSON form of the persisted document.
func (s *Service) ExportJSON(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	doc, err := s.gw.Load(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	s.logger.Info("export.json.ok", "job_id", jobID.String(), "questions", len(doc.Questions))
	return out, nil
}

// ExportXLSX returns an XLSX workbook (as bytes) with one row per question.
func (s *Service) ExportXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	start := time.Now()

	doc, err := s.gw.Load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Questions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Number",
		"Section",
		"Question",
		"Passage",
		"Choices",
		"Visuals",
		"Explanation",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, q := range doc.Questions {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, q.Number)
		write(2, q.Section)
		write(3, truncate(q.Content.MainQuestion, 200))
		write(4, truncate(q.Content.Passage, 200))
		write(5, formatChoices(q.Content.Choices))
		write(6, len(q.Content.Images)+len(q.Content.Tables))
		write(7, truncate(strings.Join(q.Content.Explanations, " / "), 200))

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 10)
	_ = f.SetColWidth(sheet, "B", "B", 22)
	_ = f.SetColWidth(sheet, "C", "D", 48)
	_ = f.SetColWidth(sheet, "E", "E", 40)
	_ = f.SetColWidth(sheet, "F", "F", 10)
	_ = f.SetColWidth(sheet, "G", "G", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", jobID.String(),
		"rows", len(doc.Questions),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func formatChoices(choices []entity.Choice) string {
	if len(choices) == 0 {
		return ""
	}
	parts := make([]string, len(choices))
	for i, c := range choices {
		parts[i] = fmt.Sprintf("%s %s", c.Number, truncate(c.Text, 40))
	}
	return strings.Join(parts, " | ")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
