package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

// LoadCSV reads a returns table from a file.
func LoadCSV(path string) (*Returns, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open returns file: %w", err)
	}
	defer f.Close()

	r, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ReadCSV parses `date,<asset...>` rows with YYYY-MM-DD dates.
// Every cell must be present; empty cells are a DataError (no forward fill).
func ReadCSV(in io.Reader) (*Returns, error) {
	cr := csv.NewReader(in)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: header needs date and at least one asset", ErrEmptyTable)
	}

	assets := make([]string, len(header)-1)
	for i, h := range header[1:] {
		assets[i] = strings.TrimSpace(h)
	}

	var (
		dates []time.Time
		data  []float64
	)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// csv.ErrFieldCount → 열 개수 불일치
			return nil, fmt.Errorf("%w: line %d: %v", ErrMisalignedDates, line, err)
		}

		d, err := time.Parse(DateLayout, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad date %q", ErrMisalignedDates, line, rec[0])
		}
		dates = append(dates, d)

		for j, cell := range rec[1:] {
			cell = strings.TrimSpace(cell)
			v, err := strconv.ParseFloat(cell, 64)
			if cell == "" || err != nil {
				return nil, fmt.Errorf("%w: line %d asset %s: %q", ErrBadValue, line, assets[j], cell)
			}
			data = append(data, v)
		}
	}

	if len(dates) == 0 {
		return nil, ErrEmptyTable
	}

	return NewReturns(dates, assets, mat.NewDense(len(dates), len(assets), data))
}
