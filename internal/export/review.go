package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/thebtf/feudsurvey/pkg/models"
)

const (
	// ReviewSheet is the worksheet name of the review workbook.
	ReviewSheet = "Survey Consolidated"
	// ReviewFilename is the attachment name used for review exports.
	ReviewFilename = "survey-consolidated.xlsx"
	// ReviewSlots is the number of answer columns in the review row.
	ReviewSlots = 8
)

// ReviewHeader returns the header row: Question, Round, A1, %1 ... A8, %8.
func ReviewHeader() []any {
	header := []any{"Question", "Round"}
	for i := 1; i <= ReviewSlots; i++ {
		header = append(header, fmt.Sprintf("A%d", i), fmt.Sprintf("%%%d", i))
	}
	return header
}

// ReviewRow builds the data row for a question from clusters in board order.
// Missing slots hold an empty label and a zero percentage.
func ReviewRow(question, round string, clusters []models.Cluster) []any {
	row := []any{question, round}
	for i := 0; i < ReviewSlots; i++ {
		if i < len(clusters) {
			row = append(row, clusters[i].Label, clusters[i].Percentage)
			continue
		}
		row = append(row, "", 0)
	}
	return row
}

// WriteReview writes a one-question review workbook.
func WriteReview(w io.Writer, question, round string, clusters []models.Cluster) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ReviewSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := ReviewHeader()
	if err := f.SetSheetRow(ReviewSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := ReviewRow(question, round, clusters)
	if err := f.SetSheetRow(ReviewSheet, "A2", &row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
