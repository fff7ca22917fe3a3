package repo

import (
	"strings"
	"testing"
)

func TestReadCSVSkipsMalformedRows(t *testing.T) {
	data := "URL,Label\n" +
		"nobell.it/70ffb52d079109dca5664cce6f317373782/login.SkyPe.com/en/cgi-bin/verification/login/,bad\n" +
		"too,many,fields\n" +
		"\"quoted,url.com\",good\n" +
		"short\n" +
		"golang.org,good\n"

	rows, skipped, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV returned error: %v", err)
	}
	if skipped != 2 {
		t.Fatalf("expected 2 skipped rows, got %d", skipped)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1].URL != "quoted,url.com" || rows[1].Label != "good" {
		t.Fatalf("unexpected quoted row %+v", rows[1])
	}
	if rows[2].URL != "golang.org" {
		t.Fatalf("unexpected last row %+v", rows[2])
	}
}

func TestReadCSVColumnOrder(t *testing.T) {
	rows, _, err := ReadCSV(strings.NewReader("label,url\nbad,phish.example\n"))
	if err != nil {
		t.Fatalf("ReadCSV returned error: %v", err)
	}
	if len(rows) != 1 || rows[0].URL != "phish.example" || rows[0].Label != "bad" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestReadCSVRequiresColumns(t *testing.T) {
	if _, _, err := ReadCSV(strings.NewReader("address,class\na,b\n")); err == nil {
		t.Fatalf("expected error for missing columns")
	}
	if _, _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty dataset")
	}
}
