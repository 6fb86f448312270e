package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadEntries parses an input list in CSV form: one entity per line as
// "cnpj,name". A header line starting with "cnpj" is skipped. Blank lines
// and lines starting with # are ignored. Order is preserved, including
// duplicates, since snapshot order follows input order.
func ReadEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var entries []Entry
	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read input list line %d: %w", line, err)
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "cnpj") {
			continue
		}

		e := Entry{CNPJ: strings.TrimSpace(record[0])}
		if len(record) > 1 {
			e.Name = strings.TrimSpace(record[1])
		}
		if e.CNPJ == "" && e.Name == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadEntriesFile loads the input list from disk.
func ReadEntriesFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input list: %w", err)
	}
	defer f.Close()
	return ReadEntries(f)
}
