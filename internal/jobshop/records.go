package jobshop

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/jobshop-api/internal/models"
)

var requiredColumns = []string{FieldJobID, FieldTaskID, FieldMachineID, FieldDuration}

// ReadCSV parses a task table with a header row. Column names are matched
// case-insensitively, ignoring spaces and underscores; Deadline is optional.
// An empty stream yields no records.
func ReadCSV(r io.Reader) ([]models.TaskRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []models.TaskRecord{}, nil
	}
	if err != nil {
		return nil, csvError(err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normalizeColumn(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[normalizeColumn(name)]; !ok {
			return nil, schemaError(0, name, "column is missing")
		}
	}
	deadlineCol, hasDeadline := columns[normalizeColumn(FieldDeadline)]

	cell := func(row []string, name string) string {
		idx := columns[normalizeColumn(name)]
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	records := make([]models.TaskRecord, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		rec := models.TaskRecord{
			JobID:     cell(row, FieldJobID),
			TaskID:    cell(row, FieldTaskID),
			MachineID: cell(row, FieldMachineID),
			Duration:  cell(row, FieldDuration),
		}
		if hasDeadline && deadlineCol < len(row) {
			rec.Deadline = strings.TrimSpace(row[deadlineCol])
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteCSV renders records with the canonical header.
func WriteCSV(w io.Writer, records []models.TaskRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{FieldJobID, FieldTaskID, FieldMachineID, FieldDuration, FieldDeadline}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		if err := writer.Write([]string{rec.JobID, rec.TaskID, rec.MachineID, rec.Duration, rec.Deadline}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func normalizeColumn(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(name)
}

func csvError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return schemaError(parseErr.Line, "CSV", "is malformed: "+parseErr.Err.Error())
	}
	return schemaError(0, "CSV", "could not be read: "+err.Error())
}
