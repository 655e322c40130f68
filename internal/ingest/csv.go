// Package ingest reads reference records from the sources the corpus is
// distributed in.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/postcodecheck/addresscleaner/internal/domain"
)

// Columns every reference CSV must carry. municipality is optional.
var requiredColumns = []string{"postcode", "city", "street", "numbertype", "minnumber", "maxnumber"}

// CSVSource reads a semicolon separated reference file with a header row.
// Columns are looked up by name, so their order is free.
type CSVSource struct {
	path   string
	reader io.Reader
}

// NewCSVFile reads the reference CSV at path.
func NewCSVFile(path string) *CSVSource {
	return &CSVSource{path: path}
}

// NewCSVReader reads reference CSV data from r. name identifies it in errors.
func NewCSVReader(name string, r io.Reader) *CSVSource {
	return &CSVSource{path: name, reader: r}
}

// Name identifies the source in logs and errors.
func (s *CSVSource) Name() string {
	return "csv " + s.path
}

// Each parses the file and passes every record to fn. It stops at the first
// malformed row; the error names its line.
func (s *CSVSource) Each(ctx context.Context, fn func(domain.ReferenceRecord) error) error {
	r := s.reader
	if r == nil {
		f, err := os.Open(s.path)
		if err != nil {
			return fmt.Errorf("open reference csv: %w", err)
		}
		defer f.Close()
		r = f
	}

	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("read csv header: empty file")
		}
		return fmt.Errorf("read csv header: %w", err)
	}
	columns, err := columnLookup(header)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)
		record, err := columns.record(row)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
}

// columnIndex maps lower-cased header names to their position.
type columnIndex map[string]int

func columnLookup(header []string) (columnIndex, error) {
	columns := make(columnIndex, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		columns[name] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv header lacks columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func (c columnIndex) value(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (c columnIndex) record(row []string) (domain.ReferenceRecord, error) {
	minNumber, err := strconv.Atoi(c.value(row, "minnumber"))
	if err != nil {
		return domain.ReferenceRecord{}, fmt.Errorf("parse minnumber: %w", err)
	}
	maxNumber, err := strconv.Atoi(c.value(row, "maxnumber"))
	if err != nil {
		return domain.ReferenceRecord{}, fmt.Errorf("parse maxnumber: %w", err)
	}

	nt := domain.NumberType(strings.ToLower(c.value(row, "numbertype")))
	if !nt.IsValid() {
		return domain.ReferenceRecord{}, fmt.Errorf("unknown numbertype %q", c.value(row, "numbertype"))
	}

	return domain.NewReferenceRecord(
		c.value(row, "postcode"),
		c.value(row, "street"),
		c.value(row, "city"),
		c.value(row, "municipality"),
		nt, minNumber, maxNumber,
	), nil
}
