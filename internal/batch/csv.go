package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column aliases accepted in CSV headers, keyed by canonical name.
var csvAliases = map[string][]string{
	"site_id":             {"site_id", "id"},
	"address":             {"address"},
	"roof_area_sqm":       {"roof_area_sqm", "roof_area", "area_sqm", "area"},
	"roof_material":       {"roof_material", "material"},
	"lat":                 {"lat", "latitude"},
	"lng":                 {"lng", "lon", "long", "longitude"},
	"daily_demand_liters": {"daily_demand_liters", "daily_demand", "demand"},
}

// ParseSitesCSV reads site records from CSV data. The first row must be a
// header; columns are matched by name in any order. Missing numeric values
// take the documented defaults silently, unparseable ones take the defaults
// with a per-line warning, and a missing material becomes "concrete". Only a
// structurally broken file fails the parse.
func ParseSitesCSV(r io.Reader) ([]SiteInput, []string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("unable to read header: %w", err)
	}
	index := mapHeaders(header)

	if !hasAnyColumn(index) {
		return nil, nil, fmt.Errorf("header has no recognized site columns: %s", strings.Join(header, ", "))
	}

	var sites []SiteInput
	var warnings []string
	line := 1
	for {
		line++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, warnings, fmt.Errorf("line %d: %w", line, err)
		}
		if blankRecord(record) {
			continue
		}
		site, warns := parseSiteRecord(record, index, line)
		warnings = append(warnings, warns...)
		sites = append(sites, site)
	}

	return sites, warnings, nil
}

func mapHeaders(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.TrimPrefix(key, "\ufeff")
		index[key] = i
	}
	return index
}

func hasAnyColumn(index map[string]int) bool {
	for _, aliases := range csvAliases {
		for _, a := range aliases {
			if _, ok := index[a]; ok {
				return true
			}
		}
	}
	return false
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func parseSiteRecord(record []string, index map[string]int, line int) (SiteInput, []string) {
	var warnings []string

	field := func(key string) string {
		for _, alias := range csvAliases[key] {
			idx, ok := index[alias]
			if !ok || idx >= len(record) {
				continue
			}
			if v := strings.TrimSpace(record[idx]); v != "" {
				return v
			}
		}
		return ""
	}

	site := SiteInput{
		SiteID:       field("site_id"),
		Address:      field("address"),
		RoofMaterial: field("roof_material"),
	}
	if site.RoofMaterial == "" {
		site.RoofMaterial = DefaultRoofMaterial
	}

	site.RoofAreaSqm = DefaultRoofAreaSqm
	if raw := field("roof_area_sqm"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			site.RoofAreaSqm = v
		} else {
			warnings = append(warnings, fmt.Sprintf("line %d: unparseable roof_area_sqm %q, using %g", line, raw, DefaultRoofAreaSqm))
		}
	}

	lat := DefaultLat
	if raw := field("lat"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			lat = v
		} else {
			warnings = append(warnings, fmt.Sprintf("line %d: unparseable lat %q, using %g", line, raw, DefaultLat))
		}
	}
	lng := DefaultLng
	if raw := field("lng"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			lng = v
		} else {
			warnings = append(warnings, fmt.Sprintf("line %d: unparseable lng %q, using %g", line, raw, DefaultLng))
		}
	}
	site.Lat = &lat
	site.Lng = &lng

	if raw := field("daily_demand_liters"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			site.DailyDemandLiters = &v
		} else {
			warnings = append(warnings, fmt.Sprintf("line %d: unparseable daily_demand_liters %q, ignoring", line, raw))
		}
	}

	return site, warnings
}
