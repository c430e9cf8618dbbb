package ingestion

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"bitbucket.org/mmdatafocus/contacts_backend/utils"
)

var utf8Bom = []byte{0xEF, 0xBB, 0xBF}

// ParseContactsCSV parses an uploaded contact file into rows. The header
// must contain an email column; first_name, last_name and company are
// optional columns. An unparseable file, a missing email column or a file
// with zero data rows is a fatal ingest error for the whole job.
func ParseContactsCSV(data []byte) ([]ParsedRow, error) {
	data = bytes.TrimPrefix(data, utf8Bom)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, utils.NewFatalIngestError("file is empty")
	}
	if err != nil {
		return nil, utils.NewFatalIngestError("file is not valid CSV: " + err.Error())
	}

	columns := make(map[string]int)
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["email"]; !ok {
		return nil, utils.NewFatalIngestError("header has no email column")
	}

	field := func(record []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []ParsedRow
	rowNumber := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, utils.NewFatalIngestError("file is not valid CSV: " + err.Error())
		}
		rowNumber++
		rows = append(rows, ParsedRow{
			RowNumber: rowNumber,
			Email:     field(record, "email"),
			FirstName: field(record, "first_name"),
			LastName:  field(record, "last_name"),
			Company:   field(record, "company"),
		})
	}

	if len(rows) == 0 {
		return nil, utils.NewFatalIngestError("file has no data rows")
	}
	return rows, nil
}
