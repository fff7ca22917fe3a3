package repo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCSV parses a url,label dataset. Rows with the wrong number of fields are skipped and counted.
func ReadCSV(r io.Reader) ([]LabeledURL, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, errors.New("dataset is empty")
		}
		return nil, 0, fmt.Errorf("read dataset header: %w", err)
	}
	urlCol, labelCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case "url":
			urlCol = i
		case "label":
			labelCol = i
		}
	}
	if urlCol < 0 || labelCol < 0 {
		return nil, 0, fmt.Errorf("dataset header %v must contain url and label columns", header)
	}
	width := len(header)

	var (
		rows    []LabeledURL
		skipped int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("read dataset: %w", err)
		}
		if len(record) != width {
			skipped++
			continue
		}
		rows = append(rows, LabeledURL{URL: record[urlCol], Label: record[labelCol]})
	}
	return rows, skipped, nil
}
