package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDocument() *model.ReviewDocument {
	finished := time.Date(2026, 3, 2, 8, 40, 0, 0, time.UTC)
	return &model.ReviewDocument{
		AttemptID:     uuid.MustParse("0b5c3c2e-1d0a-4d8e-9a1f-3c2b1a0f9e8d"),
		StudentID:     "student-7",
		TemplateID:    uuid.MustParse("6f1c2a54-4f0e-4a3b-9a57-6d0f1d2a7c11"),
		TemplateTitle: "Physics Mock 1",
		AttemptNo:     2,
		Status:        model.AttemptStatusSubmitted,
		StartedAt:     finished.Add(-40 * time.Minute),
		FinishedAt:    &finished,
		Score:         3,
		MaxScore:      8,
		Percentage:    37.5,
		Sections: []model.SectionReview{
			{
				Index: 1, Title: "Mechanics", Score: 4, MaxScore: 4,
				Questions: []model.QuestionReview{{
					InstanceKey: "q4_1_0", QuestionRef: "q4", Position: 0,
					QuestionText: "A ball, dropped, falls \"freely\"?", QuestionType: model.QuestionTypeSingleChoice,
					Options: []model.ReviewOption{
						{Index: "0", Text: "Yes", IsCorrect: true, Selected: true},
						{Index: "1", Text: "No"},
					},
					CorrectAnswer: []string{"0"}, Selected: []string{"0"},
					Status: model.ResponseStatusCorrect, Marks: 4, EarnedMarks: 4, TimeSpent: 42,
				}},
			},
			{
				Index: 0, Title: "Optics", Score: -1, MaxScore: 4,
				Questions: []model.QuestionReview{{
					InstanceKey: "q1_0_0", QuestionRef: "q1", Position: 0,
					QuestionText: "Focal length in cm", QuestionType: model.QuestionTypeNumeric,
					CorrectAnswer: []string{"12.5"}, Selected: []string{"10"},
					Status: model.ResponseStatusIncorrect, Marks: 4, EarnedMarks: -1, Flagged: true,
					Explanation: "Use the lens equation.",
				}},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	_, err = ParseFormat("docx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestRender_UnsupportedFormat(t *testing.T) {
	_, err := Render(sampleDocument(), Format("docx"), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCSV_PreservesFrozenOrder(t *testing.T) {
	art, err := Render(sampleDocument(), FormatCSV, Options{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", art.ContentType)
	assert.Equal(t, "attempt-0b5c3c2e-1d0a-4d8e-9a1f-3c2b1a0f9e8d-review.csv", art.FileName)

	records, err := csv.NewReader(bytes.NewReader(art.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, responseHeader, records[0])

	assert.Equal(t, "q4_1_0", records[1][3])
	assert.Equal(t, "A ball, dropped, falls \"freely\"?", records[1][5])
	assert.Equal(t, "correct", records[1][9])
	assert.Equal(t, "42", records[1][12])

	assert.Equal(t, "q1_0_0", records[2][3])
	assert.Equal(t, "10", records[2][7])
	assert.Equal(t, "12.5", records[2][8])
	assert.Equal(t, "-1", records[2][11])
	assert.Equal(t, "true", records[2][13])
}

func TestXLSX_Sheets(t *testing.T) {
	body, err := XLSX(sampleDocument())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, responsesSheet}, f.GetSheetList())

	title, err := f.GetCellValue(summarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Physics Mock 1", title)

	rows, err := f.GetRows(responsesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "q4_1_0", rows[1][3])
	assert.Equal(t, "q1_0_0", rows[2][3])
}

func TestPDF(t *testing.T) {
	_, err := PDF(sampleDocument(), "")
	assert.Error(t, err)

	font := os.Getenv("PDF_FONT_PATH")
	if font == "" {
		font = "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf"
	}
	if _, err := os.Stat(font); err != nil {
		t.Skipf("no TrueType font available at %s", font)
	}

	art, err := Render(sampleDocument(), FormatPDF, Options{FontPath: font})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", art.ContentType)
	assert.True(t, bytes.HasPrefix(art.Body, []byte("%PDF-")))
}
