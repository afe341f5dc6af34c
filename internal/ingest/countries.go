package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/scoreline/internal/store"
)

// CountryReport summarizes a countries file load.
type CountryReport struct {
	Inserted int `json:"inserted"`
	Existing int `json:"existing"`
	Skipped  int `json:"skipped"`
}

type countryLine struct {
	Country  *string `json:"country"`
	Timezone *string `json:"timezone"`
}

// LoadCountries reads newline-delimited {"country", "timezone"} objects
// into the countries table. Codes are upper-cased. Lines that are not JSON
// or lack either field are skipped. Loading the same file twice inserts
// nothing the second time.
func LoadCountries(ctx context.Context, s *store.Store, r io.Reader, logger *slog.Logger) (CountryReport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var rep CountryReport
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("load countries: line %d: %w", lineNo, err)
		}

		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var cl countryLine
		if err := json.Unmarshal(line, &cl); err != nil {
			rep.Skipped++
			logger.Warn("country line skipped", "line", lineNo, "error", err)
			continue
		}
		if cl.Country == nil || strings.TrimSpace(*cl.Country) == "" || cl.Timezone == nil {
			rep.Skipped++
			logger.Warn("country line skipped", "line", lineNo, "error", "missing country or timezone")
			continue
		}

		inserted, err := s.InsertCountry(ctx, strings.TrimSpace(*cl.Country), *cl.Timezone)
		if err != nil {
			return rep, fmt.Errorf("load countries: line %d: %w", lineNo, err)
		}
		if inserted {
			rep.Inserted++
		} else {
			rep.Existing++
		}
	}
	if err := sc.Err(); err != nil {
		return rep, fmt.Errorf("load countries: read line %d: %w", lineNo+1, err)
	}

	logger.Info("countries loaded", "inserted", rep.Inserted, "existing", rep.Existing, "skipped", rep.Skipped)
	return rep, nil
}
