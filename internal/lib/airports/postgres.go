package airports

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dpup/tripplan/server/internal/db"
	"github.com/dpup/tripplan/server/internal/lib/geo"
)

// The ORDER BY expression mirrors PlanarDistance so both repositories rank
// candidates identically.
const planarDistanceSQL = `power(latitude - $1, 2) +
	power(least(abs(longitude - $2), 360 - abs(longitude - $2)) * cos(radians((latitude + $1) / 2)), 2)`

const nearestAirportsSQL = `
	SELECT id, name, city, country, iata, type, latitude, longitude, weight, timezone
	FROM airports
	WHERE type = 'airport' AND iata IS NOT NULL AND iata <> ''
	ORDER BY ` + planarDistanceSQL + `
	LIMIT $3`

const nearestZoneSQL = `
	SELECT timezone
	FROM airports
	WHERE timezone IS NOT NULL AND timezone <> ''
	ORDER BY ` + planarDistanceSQL + `
	LIMIT 1`

// PostgresRepository queries an airports table with the same columns as the
// embedded CSV dataset
type PostgresRepository struct {
	db db.Querier
}

// NewPostgresRepository creates a repository over the given pool
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// Nearest implements Repository
func (r *PostgresRepository) Nearest(ctx context.Context, p geo.Point, limit int) ([]Record, error) {
	rows, err := r.db.Query(ctx, nearestAirportsSQL, p.Latitude, p.Longitude, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest airports: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.City, &rec.Country, &rec.IATA, &rec.Type,
			&rec.Location.Latitude, &rec.Location.Longitude, &rec.Weight, &rec.Timezone); err != nil {
			return nil, fmt.Errorf("failed to scan airport: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read airports: %w", err)
	}
	return records, nil
}

// Zone implements Repository
func (r *PostgresRepository) Zone(ctx context.Context, p geo.Point) (string, error) {
	var zone string
	err := r.db.QueryRow(ctx, nearestZoneSQL, p.Latitude, p.Longitude).Scan(&zone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrDataUnavailable
	}
	if err != nil {
		return "", fmt.Errorf("failed to query time zone: %w", err)
	}
	return zone, nil
}
