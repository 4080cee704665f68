package export

import (
	"fmt"

	"github.com/stemsi/exstem-delivery/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet   = "Summary"
	responsesSheet = "Responses"
)

// XLSX renders a workbook with a summary sheet and a responses sheet.
func XLSX(doc *model.ReviewDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}

	finished := ""
	if doc.FinishedAt != nil {
		finished = doc.FinishedAt.Format("2006-01-02 15:04:05 MST")
	}
	summary := [][]any{
		{"Attempt", doc.AttemptID.String()},
		{"Student", doc.StudentID},
		{"Template", doc.TemplateTitle},
		{"Attempt No", doc.AttemptNo},
		{"Status", string(doc.Status)},
		{"Started", doc.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Finished", finished},
		{"Score", doc.Score},
		{"Max Score", doc.MaxScore},
		{"Percentage", doc.Percentage},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(responsesSheet); err != nil {
		return nil, err
	}
	header := make([]any, len(responseHeader))
	for i, h := range responseHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(responsesSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, row := range responseRows(doc) {
		cells := make([]any, len(row))
		for j, v := range row {
			cells[j] = v
		}
		if err := f.SetSheetRow(responsesSheet, fmt.Sprintf("A%d", i+2), &cells); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
