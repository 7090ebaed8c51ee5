package provider

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/tradegate/market"
)

// CSVSource serves prices from <dir>/<SYMBOL>.csv files with rows of
// time,price[,volume]. It is used for offline runs and the regime command.
type CSVSource struct {
	Dir string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

func (s *CSVSource) load(asset market.Asset) ([]market.PriceSample, error) {
	path := filepath.Join(s.Dir, asset.Symbol+".csv")
	samples, err := ReadSamplesFile(path)
	if err != nil {
		return nil, err
	}
	return samples, nil
}

// History returns the last limit samples of the file.
func (s *CSVSource) History(ctx context.Context, asset market.Asset, limit int) ([]market.PriceSample, error) {
	samples, err := s.load(asset)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples, nil
}

// Quote is the last row, with change measured against the previous row.
func (s *CSVSource) Quote(ctx context.Context, asset market.Asset) (market.Quote, error) {
	samples, err := s.load(asset)
	if err != nil {
		return market.Quote{}, err
	}
	last, ok := market.Last(samples)
	if !ok {
		return market.Quote{}, fmt.Errorf("%s: no rows", asset.Symbol)
	}
	q := market.Quote{Symbol: asset.Symbol, Price: last.Price, Time: last.Time}
	if n := len(samples); n > 1 && samples[n-2].Price != 0 {
		prev := samples[n-2].Price
		q.Change24h = last.Price - prev
		q.ChangePercent = q.Change24h / prev * 100
	}
	return q, nil
}

// ReadSamplesFile reads a time,price[,volume] CSV file.
func ReadSamplesFile(path string) ([]market.PriceSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	samples, err := ReadSamples(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

// ReadSamples parses time,price[,volume] rows. A header row is skipped.
// Time is RFC3339 or unix milliseconds.
func ReadSamples(r io.Reader) ([]market.PriceSample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []market.PriceSample
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) < 2 {
			return nil, fmt.Errorf("line %d: want time,price[,volume]", line)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "time") {
			continue
		}

		ts, err := parseSampleTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		px, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: price: %w", line, err)
		}
		s := market.PriceSample{Time: ts, Price: px}
		if len(rec) > 2 && strings.TrimSpace(rec[2]) != "" {
			if s.Volume, err = strconv.ParseFloat(strings.TrimSpace(rec[2]), 64); err != nil {
				return nil, fmt.Errorf("line %d: volume: %w", line, err)
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func parseSampleTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: %w", s, err)
	}
	return t.UTC(), nil
}
