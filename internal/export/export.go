// Package export renders a review document as a downloadable file. Every
// format walks the document in its frozen order.
package export

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-delivery/internal/model"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat normalizes a user supplied format name.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	if !f.Valid() {
		return "", ErrUnsupportedFormat
	}
	return f, nil
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == FormatCSV || f == FormatPDF || f == FormatXLSX
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/octet-stream"
}

// Options tunes rendering.
type Options struct {
	// FontPath is a TrueType font used by the PDF renderer.
	FontPath string
}

// Artifact is a rendered export.
type Artifact struct {
	ContentType string
	FileName    string
	Body        []byte
}

// Render produces doc in the given format.
func Render(doc *model.ReviewDocument, format Format, opts Options) (*Artifact, error) {
	var (
		body []byte
		err  error
	)
	switch format {
	case FormatCSV:
		body, err = CSV(doc)
	case FormatXLSX:
		body, err = XLSX(doc)
	case FormatPDF:
		body, err = PDF(doc, opts.FontPath)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	return &Artifact{
		ContentType: format.ContentType(),
		FileName:    fmt.Sprintf("attempt-%s-review.%s", doc.AttemptID, format),
		Body:        body,
	}, nil
}

// responseHeader is shared by the tabular formats.
var responseHeader = []string{
	"section_index", "section_title", "position", "instance_key", "question_ref",
	"question_text", "question_type", "selected", "correct_answer", "status",
	"marks", "earned_marks", "time_spent", "flagged", "marked_for_review",
}

// responseRows flattens the document to one row per question in frozen order.
func responseRows(doc *model.ReviewDocument) [][]string {
	var rows [][]string
	for _, sec := range doc.Sections {
		for _, q := range sec.Questions {
			rows = append(rows, []string{
				strconv.Itoa(sec.Index),
				sec.Title,
				strconv.Itoa(q.Position),
				q.InstanceKey,
				q.QuestionRef,
				q.QuestionText,
				string(q.QuestionType),
				strings.Join(q.Selected, "|"),
				strings.Join(q.CorrectAnswer, "|"),
				string(q.Status),
				formatFloat(q.Marks),
				formatFloat(q.EarnedMarks),
				strconv.Itoa(q.TimeSpent),
				strconv.FormatBool(q.Flagged),
				strconv.FormatBool(q.MarkedForReview),
			})
		}
	}
	return rows
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
