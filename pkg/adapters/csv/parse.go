package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/covidash/pkg/domain"
)

// ErrMalformed is returned for CSV input that cannot be parsed.
var ErrMalformed = errors.New("malformed csv")

// header maps lower-cased column names to their index.
type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	names, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read headers: %v", ErrMalformed, err)
	}
	h := make(header, len(names))
	for i, n := range names {
		h[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(n, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := h[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformed, col)
		}
	}
	return h, nil
}

func number(record []string, i int) (float64, error) {
	s := strings.TrimSpace(record[i])
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseSeries reads the wide `date,state,fips,cases,deaths` series and
// returns it in long format: one row per (state, date, metric).
// The fips column is accepted but ignored; column order does not matter.
func ParseSeries(r io.Reader) ([]domain.Row, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	h, err := readHeader(cr, "date", "state", "cases", "deaths")
	if err != nil {
		return nil, err
	}

	var rows []domain.Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		date, err := domain.ParseDate(strings.TrimSpace(record[h["date"]]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		state := strings.TrimSpace(record[h["state"]])
		if state == "" {
			return nil, fmt.Errorf("%w: line %d: empty state", ErrMalformed, line)
		}
		for _, m := range domain.Metrics {
			n, err := number(record, h[string(m)])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad %s: %v", ErrMalformed, line, m, err)
			}
			rows = append(rows, domain.Row{State: state, Date: date, Metric: m, N: n})
		}
	}
	return rows, nil
}

// ParsePopulation reads a `state,population` table.
func ParsePopulation(r io.Reader) ([]domain.PopulationRow, error) {
	cr := csv.NewReader(r)
	h, err := readHeader(cr, "state", "population")
	if err != nil {
		return nil, err
	}

	var rows []domain.PopulationRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		p, err := number(record, h["population"])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad population: %v", ErrMalformed, line, err)
		}
		rows = append(rows, domain.PopulationRow{
			State:      strings.TrimSpace(record[h["state"]]),
			Population: p,
		})
	}
	return rows, nil
}
