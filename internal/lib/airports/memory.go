package airports

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/dpup/tripplan/server/internal/lib/geo"
)

//go:embed data/airports.csv
var embeddedDataset []byte

var csvColumns = []string{"id", "name", "city", "country", "iata", "type", "latitude", "longitude", "weight", "timezone"}

// MemoryRepository serves the dataset from an immutable in-memory slice, so
// concurrent readers need no locking.
type MemoryRepository struct {
	records []Record
}

// NewMemoryRepository wraps a fixed set of records
func NewMemoryRepository(records []Record) *MemoryRepository {
	copied := make([]Record, len(records))
	copy(copied, records)
	return &MemoryRepository{records: copied}
}

// LoadEmbedded parses the reference dataset compiled into the binary
func LoadEmbedded() (*MemoryRepository, error) {
	records, err := ParseCSV(bytes.NewReader(embeddedDataset))
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded airport dataset: %w", err)
	}
	return NewMemoryRepository(records), nil
}

// ParseCSV reads airport records with the header
// id,name,city,country,iata,type,latitude,longitude,weight,timezone
func ParseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvColumns)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, col := range csvColumns {
		if strings.TrimSpace(header[i]) != col {
			return nil, fmt.Errorf("unexpected column %q at position %d, want %q", header[i], i, col)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		lat, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid latitude: %w", line, err)
		}
		lng, err := strconv.ParseFloat(row[7], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid longitude: %w", line, err)
		}
		weight, err := strconv.ParseFloat(row[8], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid weight: %w", line, err)
		}

		location, err := geo.NewPoint(lat, lng)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		records = append(records, Record{
			ID:       row[0],
			Name:     row[1],
			City:     row[2],
			Country:  row[3],
			IATA:     strings.ToUpper(strings.TrimSpace(row[4])),
			Type:     row[5],
			Location: location,
			Weight:   weight,
			Timezone: row[9],
		})
	}

	return records, nil
}

// Nearest implements Repository
func (m *MemoryRepository) Nearest(_ context.Context, p geo.Point, limit int) ([]Record, error) {
	if len(m.records) == 0 {
		return nil, ErrDataUnavailable
	}

	type scored struct {
		record   Record
		distance float64
	}
	var eligible []scored
	for _, rec := range m.records {
		if !rec.Eligible() {
			continue
		}
		eligible = append(eligible, scored{record: rec, distance: PlanarDistance(p, rec.Location)})
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].distance < eligible[j].distance
	})
	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}

	result := make([]Record, len(eligible))
	for i, s := range eligible {
		result[i] = s.record
	}
	return result, nil
}

// Zone implements Repository
func (m *MemoryRepository) Zone(_ context.Context, p geo.Point) (string, error) {
	zone := ""
	best := 0.0
	for _, rec := range m.records {
		if rec.Timezone == "" {
			continue
		}
		d := PlanarDistance(p, rec.Location)
		if zone == "" || d < best {
			zone, best = rec.Timezone, d
		}
	}
	if zone == "" {
		return "", ErrDataUnavailable
	}
	return zone, nil
}

// Len returns the number of records held
func (m *MemoryRepository) Len() int {
	return len(m.records)
}
