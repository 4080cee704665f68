package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/signintech/gopdf"
	"github.com/stemsi/exstem-delivery/internal/model"
)

const (
	pdfFont       = "body"
	pdfMargin     = 40.0
	pdfLineHeight = 14.0
	pdfBodySize   = 10
	pdfTitleSize  = 16
)

// PDF renders a printable review. A TrueType font file is required because
// question text is arbitrary Unicode.
func PDF(doc *model.ReviewDocument, fontPath string) ([]byte, error) {
	if fontPath == "" {
		return nil, errors.New("pdf export needs a font path")
	}

	w := &pdfWriter{}
	w.pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	if err := w.pdf.AddTTFFont(pdfFont, fontPath); err != nil {
		return nil, fmt.Errorf("load pdf font: %w", err)
	}
	w.newPage()

	if err := w.heading(doc.TemplateTitle); err != nil {
		return nil, err
	}
	finished := "-"
	if doc.FinishedAt != nil {
		finished = doc.FinishedAt.Format("2006-01-02 15:04 MST")
	}
	meta := []string{
		fmt.Sprintf("Attempt %s (no. %d)", doc.AttemptID, doc.AttemptNo),
		fmt.Sprintf("Student: %s", doc.StudentID),
		fmt.Sprintf("Status: %s    Finished: %s", doc.Status, finished),
		fmt.Sprintf("Score: %s / %s (%.1f%%)", formatFloat(doc.Score), formatFloat(doc.MaxScore), doc.Percentage),
	}
	for _, line := range meta {
		if err := w.line(line); err != nil {
			return nil, err
		}
	}
	w.gap()

	for _, sec := range doc.Sections {
		title := fmt.Sprintf("Section %d: %s  [%s / %s]", sec.Index+1, sec.Title, formatFloat(sec.Score), formatFloat(sec.MaxScore))
		if err := w.heading(title); err != nil {
			return nil, err
		}
		for _, q := range sec.Questions {
			if err := w.question(q); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if _, err := w.pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf gopdf.GoPdf
}

func (w *pdfWriter) newPage() {
	w.pdf.AddPage()
	w.pdf.SetXY(pdfMargin, pdfMargin)
}

func (w *pdfWriter) ensureSpace(lines int) {
	if w.pdf.GetY()+float64(lines)*pdfLineHeight > gopdf.PageSizeA4.H-pdfMargin {
		w.newPage()
	}
}

func (w *pdfWriter) gap() {
	w.pdf.SetXY(pdfMargin, w.pdf.GetY()+pdfLineHeight/2)
}

func (w *pdfWriter) heading(text string) error {
	if err := w.pdf.SetFont(pdfFont, "", pdfTitleSize); err != nil {
		return err
	}
	w.ensureSpace(2)
	if err := w.pdf.Cell(nil, text); err != nil {
		return err
	}
	w.pdf.SetXY(pdfMargin, w.pdf.GetY()+pdfLineHeight*1.5)
	return w.pdf.SetFont(pdfFont, "", pdfBodySize)
}

// line writes text wrapped to the printable width.
func (w *pdfWriter) line(text string) error {
	if err := w.pdf.SetFont(pdfFont, "", pdfBodySize); err != nil {
		return err
	}
	width := gopdf.PageSizeA4.W - 2*pdfMargin
	parts, err := w.pdf.SplitText(text, width)
	if err != nil || len(parts) == 0 {
		parts = []string{text}
	}
	for _, p := range parts {
		w.ensureSpace(1)
		if err := w.pdf.Cell(nil, p); err != nil {
			return err
		}
		w.pdf.SetXY(pdfMargin, w.pdf.GetY()+pdfLineHeight)
	}
	return nil
}

func (w *pdfWriter) question(q model.QuestionReview) error {
	lines := []string{fmt.Sprintf("%d. %s", q.Position+1, q.QuestionText)}
	for _, o := range q.Options {
		mark := "   "
		switch {
		case o.Selected && o.IsCorrect:
			mark = "[v]"
		case o.Selected:
			mark = "[x]"
		case o.IsCorrect:
			mark = "[ ]"
		}
		lines = append(lines, fmt.Sprintf("    %s %s. %s", mark, o.Index, o.Text))
	}
	if q.QuestionType == model.QuestionTypeNumeric {
		lines = append(lines, fmt.Sprintf("    Answer: %s    Correct: %s",
			strings.Join(q.Selected, ", "), strings.Join(q.CorrectAnswer, ", ")))
	}
	lines = append(lines, fmt.Sprintf("    %s  %s / %s marks  %ds",
		q.Status, formatFloat(q.EarnedMarks), formatFloat(q.Marks), q.TimeSpent))
	if q.Explanation != "" {
		lines = append(lines, "    "+q.Explanation)
	}

	for _, l := range lines {
		if err := w.line(l); err != nil {
			return err
		}
	}
	w.gap()
	return nil
}
