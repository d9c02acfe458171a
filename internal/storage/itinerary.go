// Package storage persists the parts of a planned route a project keeps
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dpup/tripplan/server/internal/db"
	"github.com/dpup/tripplan/server/internal/lib/itinerary"
)

var (
	ErrMissingProject = errors.New("project id is required")
	ErrUnknownSection = errors.New("section not in route")
)

// Entry is one route saved into a project's itinerary
type Entry struct {
	ID            string              `json:"id"`
	ProjectID     string              `json:"projectId"`
	Modality      itinerary.Modality  `json:"modality"`
	CustomName    string              `json:"customName,omitempty"`
	Duration      int                 `json:"duration"`
	DepartureTime time.Time           `json:"departureTime"`
	TotalDistance float64             `json:"totalDistance"`
	Zones         itinerary.Zones     `json:"zones"`
	Sections      []itinerary.Section `json:"sections"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// SaveRequest selects what to keep from a planned route. An empty SectionIDs
// keeps every section.
type SaveRequest struct {
	ProjectID  string           `json:"projectId"`
	Route      *itinerary.Route `json:"route"`
	SectionIDs []string         `json:"sectionIds,omitempty"`
	CustomName string           `json:"customName,omitempty"`
}

// ItineraryStore writes itinerary entries to Postgres
type ItineraryStore struct {
	db db.Querier
}

func NewItineraryStore(q db.Querier) *ItineraryStore {
	return &ItineraryStore{db: q}
}

// NewEntry builds the entry to persist. Duration, departure and distance are
// recomputed over the kept sections.
func NewEntry(req SaveRequest) (*Entry, error) {
	if req.ProjectID == "" {
		return nil, ErrMissingProject
	}
	if req.Route == nil || len(req.Route.Sections) == 0 {
		return nil, itinerary.ErrEmptyRoute
	}

	sections, err := selectSections(req.Route.Sections, req.SectionIDs)
	if err != nil {
		return nil, err
	}
	kept, err := itinerary.Aggregate(sections, req.Route.Modality, req.Route.Zones)
	if err != nil {
		return nil, err
	}

	name := req.CustomName
	if name == "" {
		name = req.Route.CustomName
	}
	return &Entry{
		ID:            uuid.NewString(),
		ProjectID:     req.ProjectID,
		Modality:      req.Route.Modality,
		CustomName:    name,
		Duration:      kept.Duration,
		DepartureTime: kept.DepartureTime,
		TotalDistance: kept.TotalDistance,
		Zones:         req.Route.Zones,
		Sections:      sections,
	}, nil
}

// selectSections keeps the requested sections in travel order
func selectSections(all []itinerary.Section, ids []string) ([]itinerary.Section, error) {
	if len(ids) == 0 {
		return all, nil
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var kept []itinerary.Section
	for _, s := range all {
		if wanted[s.ID] {
			kept = append(kept, s)
			delete(wanted, s.ID)
		}
	}
	for id := range wanted {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSection, id)
	}
	return kept, nil
}

// Save persists the selected part of a route
func (s *ItineraryStore) Save(ctx context.Context, req SaveRequest) (*Entry, error) {
	entry, err := NewEntry(req)
	if err != nil {
		return nil, err
	}

	sections, err := json.Marshal(entry.Sections)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sections: %w", err)
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO itinerary_entries
			(id, project_id, modality, custom_name, duration_minutes, departure_time, total_distance, zone_start, zone_end, sections)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		entry.ID, entry.ProjectID, string(entry.Modality), entry.CustomName, entry.Duration,
		entry.DepartureTime, entry.TotalDistance, entry.Zones.Start, entry.Zones.End, sections,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save itinerary entry: %w", err)
	}
	return entry, nil
}

// List returns a project's entries in departure order
func (s *ItineraryStore) List(ctx context.Context, projectID string) ([]Entry, error) {
	if projectID == "" {
		return nil, ErrMissingProject
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, project_id, modality, custom_name, duration_minutes, departure_time, total_distance, zone_start, zone_end, sections, created_at
		FROM itinerary_entries
		WHERE project_id = $1
		ORDER BY departure_time`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query itinerary: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e        Entry
			modality string
			sections []byte
		)
		if err := rows.Scan(&e.ID, &e.ProjectID, &modality, &e.CustomName, &e.Duration, &e.DepartureTime,
			&e.TotalDistance, &e.Zones.Start, &e.Zones.End, &sections, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan itinerary entry: %w", err)
		}
		e.Modality = itinerary.Modality(modality)
		if err := json.Unmarshal(sections, &e.Sections); err != nil {
			return nil, fmt.Errorf("failed to decode sections of entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read itinerary: %w", err)
	}
	return entries, nil
}
