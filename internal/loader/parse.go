package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"costboard/internal/core"
	"costboard/internal/record"
)

// Positional layout of a cost snapshot row.
const (
	colBrand = iota
	colDivision
	colTeam
	colMajor
	colMid
	colSub
	colAccount
	colAmount
	colPeriod
	colNote

	minFields = colPeriod + 1
)

// parseCSV converts a cost snapshot into records. The header line is dropped,
// short rows are counted as skipped and zero amounts are discarded silently.
// Rows whose period cell is unreadable inherit the period of the file.
func parseCSV(body []byte, fallback core.Period) (records []core.CostRecord, skipped int) {
	lines := record.SplitLines(string(body))
	if len(lines) == 0 {
		return nil, 0
	}
	records = make([]core.CostRecord, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := record.Parse(line)
		if len(fields) < minFields {
			skipped++
			continue
		}
		amount := core.AmountOrZero(fields[colAmount])
		if amount.IsZero() {
			continue
		}
		records = append(records, core.CostRecord{
			Brand:    text(fields[colBrand]),
			Division: text(fields[colDivision]),
			Team:     text(fields[colTeam]),
			Major:    text(fields[colMajor]),
			Mid:      text(fields[colMid]),
			Sub:      text(fields[colSub]),
			Account:  text(fields[colAccount]),
			Amount:   amount,
			Period:   periodOr(fields[colPeriod], fallback),
			Note:     text(record.Field(fields, colNote)),
		})
	}
	return records, skipped
}

// jsonRow mirrors the JSON snapshot layout written by the spreadsheet export.
type jsonRow struct {
	Brand     flexString `json:"브랜드"`
	Division  flexString `json:"본부"`
	Team      flexString `json:"팀"`
	Major     flexString `json:"대분류"`
	Mid       flexString `json:"중분류"`
	Sub       flexString `json:"소분류"`
	Account   flexString `json:"계정과목"`
	Amount    flexString `json:"금액"`
	Period    flexString `json:"년월"`
	AltPeriod flexString `json:"연월"`
	Note      flexString `json:"비고"`
}

// parseJSON converts a JSON array snapshot into records.
func parseJSON(body []byte, fallback core.Period) ([]core.CostRecord, error) {
	var rows []jsonRow
	if err := json.Unmarshal(bytes.TrimPrefix(body, []byte("\ufeff")), &rows); err != nil {
		return nil, fmt.Errorf("decode json snapshot: %w", err)
	}
	records := make([]core.CostRecord, 0, len(rows))
	for _, r := range rows {
		amount := core.AmountOrZero(string(r.Amount))
		if amount.IsZero() {
			continue
		}
		period := string(r.Period)
		if period == "" {
			period = string(r.AltPeriod)
		}
		records = append(records, core.CostRecord{
			Brand:    text(string(r.Brand)),
			Division: text(string(r.Division)),
			Team:     text(string(r.Team)),
			Major:    text(string(r.Major)),
			Mid:      text(string(r.Mid)),
			Sub:      text(string(r.Sub)),
			Account:  text(string(r.Account)),
			Amount:   amount,
			Period:   periodOr(period, fallback),
			Note:     text(string(r.Note)),
		})
	}
	return records, nil
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(b)
	}
	return nil
}

// text trims a label and normalises it to NFC so Hangul exported in
// decomposed form compares equal to the category names.
func text(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// periodOr parses s, falling back to the period of the snapshot file.
func periodOr(s string, fallback core.Period) core.Period {
	if p, err := core.ParsePeriod(s); err == nil {
		return p
	}
	return fallback
}
