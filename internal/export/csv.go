// Package export renders survey data for download: a CSV of raw responses
// and an XLSX review sheet of the top clusters for a question.
package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/thebtf/feudsurvey/pkg/models"
)

// CSVFilename is the attachment name used for response exports.
const CSVFilename = "survey-responses.csv"

// CSVHeader lists the exported columns in order.
var CSVHeader = []string{"ts", "sessionId", "questionIndex", "questionText", "clientId", "ip", "raw"}

// WriteCSV writes responses as CSV. Every field is quoted and rows are
// separated by a bare newline, so spreadsheets keep leading zeros and
// multi-line answers intact.
func WriteCSV(w io.Writer, responses []models.RawResponse) error {
	bw := bufio.NewWriter(w)
	if err := writeRecord(bw, CSVHeader, false); err != nil {
		return err
	}
	for i := range responses {
		r := &responses[i]
		record := []string{
			strconv.FormatInt(r.Timestamp, 10),
			r.SessionID,
			strconv.Itoa(r.QuestionIndex),
			r.QuestionText,
			r.ClientID,
			r.IP,
			r.Text,
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		if err := writeRecord(bw, record, true); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeRecord(w *bufio.Writer, fields []string, quote bool) error {
	for i, f := range fields {
		if i > 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if quote {
			f = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		}
		if _, err := w.WriteString(f); err != nil {
			return err
		}
	}
	return nil
}
