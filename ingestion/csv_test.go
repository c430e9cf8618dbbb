package ingestion

import (
	"testing"

	"bitbucket.org/mmdatafocus/contacts_backend/utils"
)

func TestParseContactsCSV_HeaderAndColumns(t *testing.T) {
	data := []byte("Email,First_Name,last_name,company\n" +
		"a@x.com,Ann,Bell,Acme\n" +
		" b@y.com ,Bo,,\n")

	rows, err := ParseContactsCSV(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].RowNumber != 1 || rows[1].RowNumber != 2 {
		t.Fatalf("row numbers must be 1-based and sequential: %+v", rows)
	}
	if rows[0].Email != "a@x.com" || rows[0].Company != "Acme" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Email != "b@y.com" {
		t.Fatalf("fields must be trimmed, got %q", rows[1].Email)
	}
	if rows[1].LastName != "" || rows[1].Company != "" {
		t.Fatalf("missing optional fields must be empty: %+v", rows[1])
	}
}

func TestParseContactsCSV_StripsByteOrderMark(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("email\none@x.com\n")...)
	rows, err := ParseContactsCSV(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0].Email != "one@x.com" {
		t.Fatalf("unexpected email: %q", rows[0].Email)
	}
}

func TestParseContactsCSV_FatalConditions(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty file", ""},
		{"no email column", "first_name,last_name\nAnn,Bell\n"},
		{"header only", "email,first_name\n"},
		{"broken quoting", "email\n\"unterminated\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ParseContactsCSV([]byte(tt.data))
			if err == nil {
				t.Fatalf("expected fatal error, got rows %+v", rows)
			}
			if !utils.IsFatalIngestError(err) {
				t.Fatalf("expected fatal ingest error, got %T: %v", err, err)
			}
		})
	}
}
