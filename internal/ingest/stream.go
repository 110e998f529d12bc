package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/filing-assistant/internal/model"
)

// decodeArray decodes a JSON array streaming, sending each element to a channel.
// Both channels are closed when processing completes.
func decodeArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}

// DecodeJSON reads a JSON array of fact records. The first invalid record
// stops decoding.
func (v *Validator) DecodeJSON(ctx context.Context, r io.Reader) ([]model.Fact, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rawCh, errCh := decodeArray[json.RawMessage](ctx, r)

	var facts []model.Fact
	i := 0
	for raw := range rawCh {
		fact, err := v.Fact(raw)
		if err != nil {
			return nil, atRecord(i, err)
		}
		facts = append(facts, fact)
		i++
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return facts, nil
}

// streamRows reads delimited rows and sends them to a channel. The header row
// is sent first. Both channels are closed when processing completes.
func streamRows(ctx context.Context, r io.Reader) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		reader.FieldsPerRecord = -1
		reader.Comment = '#'

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSV reads fact records from a CSV ledger with a header row.
func (v *Validator) ReadCSV(ctx context.Context, r io.Reader) ([]model.Fact, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := streamRows(ctx, r)

	var (
		cols  columns
		facts []model.Fact
		first = true
		i     = 0
	)
	for row := range rowCh {
		if first {
			first = false
			var err error
			if cols, err = newColumns(row); err != nil {
				return nil, err
			}
			continue
		}
		fact, err := v.row(cols, row)
		if err != nil {
			return nil, atRecord(i, err)
		}
		facts = append(facts, fact)
		i++
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return facts, nil
}

// columns maps a header row to field positions. Columns not named by Record
// are carried as extension values.
type columns struct {
	index map[string]int
	extra map[int]string
}

var knownColumns = map[string]bool{
	"schema_version": true,
	"category":       true,
	"subcategory":    true,
	"amount":         true,
	"provenance":     true,
	"override":       true,
	"recorded_at":    true,
	"employer":       true,
	"employer_tan":   true,
	"section":        true,
	"deductor":       true,
	"deductor_tan":   true,
}

func newColumns(header []string) (columns, error) {
	cols := columns{index: make(map[string]int), extra: make(map[int]string)}
	for i, h := range header {
		name := normalize(h)
		if name == "" {
			continue
		}
		if knownColumns[name] {
			cols.index[name] = i
		} else {
			cols.extra[i] = name
		}
	}
	for _, required := range []string{"category", "subcategory", "amount", "provenance"} {
		if _, ok := cols.index[required]; !ok {
			return columns{}, model.NewValidationError("header", "missing column %q", required)
		}
	}
	return cols, nil
}

func (c columns) get(row []string, name string) string {
	i, ok := c.index[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (v *Validator) row(cols columns, row []string) (model.Fact, error) {
	amount, err := decimal.NewFromString(strings.ReplaceAll(cols.get(row, "amount"), ",", ""))
	if err != nil {
		return model.Fact{}, model.NewValidationError("amount", "invalid amount %q", cols.get(row, "amount"))
	}
	var override bool
	if s := cols.get(row, "override"); s != "" {
		if override, err = strconv.ParseBool(s); err != nil {
			return model.Fact{}, model.NewValidationError("override", "invalid boolean %q", s)
		}
	}

	rec := Record{
		SchemaVersion: cols.get(row, "schema_version"),
		Category:      normalize(cols.get(row, "category")),
		Subcategory:   cols.get(row, "subcategory"),
		Amount:        amount,
		Provenance:    normalize(cols.get(row, "provenance")),
		Override:      override,
		RecordedAt:    cols.get(row, "recorded_at"),
		Employer:      cols.get(row, "employer"),
		EmployerTAN:   cols.get(row, "employer_tan"),
		Section:       cols.get(row, "section"),
		Deductor:      cols.get(row, "deductor"),
		DeductorTAN:   cols.get(row, "deductor_tan"),
	}
	for i, name := range cols.extra {
		if i < len(row) && row[i] != "" {
			if rec.Extension == nil {
				rec.Extension = make(map[string]string)
			}
			rec.Extension[name] = row[i]
		}
	}
	return v.Record(rec)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// atRecord prefixes a validation error's field with the record index.
func atRecord(i int, err error) error {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return &model.ValidationError{Field: fmt.Sprintf("records[%d].%s", i, ve.Field), Reason: ve.Reason}
	}
	return eris.Wrapf(err, "ingest: record %d", i)
}
