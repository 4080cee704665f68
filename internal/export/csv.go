package export

import (
	"bytes"
	"encoding/csv"

	"github.com/stemsi/exstem-delivery/internal/model"
)

// CSV renders one header row followed by one row per question.
func CSV(doc *model.ReviewDocument) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(responseHeader); err != nil {
		return nil, err
	}
	if err := w.WriteAll(responseRows(doc)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
