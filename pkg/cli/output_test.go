package cli

import (
	"bytes"
	"encoding/json"
	"testing"
)

type stubTable struct {
	Items []string `json:"items"`
}

func (s stubTable) Header() []string { return []string{"ID", "TITLE"} }

func (s stubTable) Rows() [][]string {
	rows := make([][]string, len(s.Items))
	for i, id := range s.Items {
		rows[i] = []string{id, "Sample " + id}
	}
	return rows
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"junit", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestTextFormatter_FormatTo(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, stubTable{Items: []string{"W-1", "W-22"}}); err != nil {
		t.Fatal(err)
	}
	want := "ID    TITLE\nW-1   Sample W-1\nW-22  Sample W-22\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := NewFormatter(FormatText).FormatTo(&buf, "archived 3 records"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "archived 3 records\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestJSONFormatter_FormatTo(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatJSON).FormatTo(&buf, stubTable{Items: []string{"W-1"}}); err != nil {
		t.Fatal(err)
	}
	var got stubTable
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if len(got.Items) != 1 || got.Items[0] != "W-1" {
		t.Errorf("items = %v", got.Items)
	}
}

func TestCSVFormatter_FormatTo(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatCSV).FormatTo(&buf, stubTable{Items: []string{"W-1", "W,2"}}); err != nil {
		t.Fatal(err)
	}
	want := "ID,TITLE\nW-1,Sample W-1\n\"W,2\",\"Sample W,2\"\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	if err := NewFormatter(FormatCSV).FormatTo(&buf, 42); err == nil {
		t.Error("CSV of a non-table should fail")
	}
}
