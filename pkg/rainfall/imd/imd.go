// Package imd serves monthly rainfall normals for Indian locations from a
// built-in station table of IMD 1991-2020 climatological normals.
package imd

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall"
)

func init() {
	rainfall.Register(&Provider{})
}

// maxStationDistanceKM bounds the nearest-station search. Locations farther
// than this from every station are outside the table's coverage.
const maxStationDistanceKM = 500.0

type station struct {
	name      string
	lat, lng  float64
	monthlyMM [12]float64
}

// Station normals in mm, January through December.
var stations = []station{
	{"New Delhi (Safdarjung)", 28.58, 77.20, [12]float64{19, 22, 16, 10, 30, 74, 210, 247, 124, 15, 5, 9}},
	{"Mumbai (Santacruz)", 19.09, 72.85, [12]float64{0.6, 0.4, 0, 0.6, 11, 537, 794, 585, 327, 65, 17, 3}},
	{"Chennai (Nungambakkam)", 13.07, 80.24, [12]float64{24, 7, 4, 13, 34, 54, 94, 117, 119, 267, 374, 191}},
	{"Kolkata (Alipore)", 22.54, 88.33, [12]float64{11, 26, 31, 51, 126, 293, 385, 345, 305, 151, 24, 6}},
	{"Bengaluru", 12.97, 77.59, [12]float64{2, 6, 13, 48, 111, 84, 101, 131, 201, 175, 62, 17}},
	{"Hyderabad", 17.45, 78.47, [12]float64{7, 6, 12, 22, 37, 112, 168, 181, 160, 103, 19, 5}},
	{"Ahmedabad", 23.07, 72.63, [12]float64{2, 1, 1, 1, 6, 98, 271, 219, 112, 19, 5, 1}},
	{"Jaipur", 26.82, 75.80, [12]float64{7, 8, 5, 5, 21, 62, 200, 204, 75, 17, 4, 3}},
	{"Pune", 18.53, 73.85, [12]float64{2, 1, 3, 14, 34, 132, 188, 112, 133, 90, 30, 6}},
	{"Lucknow", 26.75, 80.88, [12]float64{16, 16, 8, 6, 21, 107, 289, 291, 179, 37, 5, 8}},
	{"Bhopal", 23.28, 77.35, [12]float64{11, 8, 6, 4, 12, 130, 364, 351, 171, 31, 11, 8}},
	{"Nagpur", 21.10, 79.05, [12]float64{12, 15, 15, 12, 15, 174, 322, 281, 167, 62, 10, 7}},
	{"Guwahati", 26.10, 91.58, [12]float64{11, 19, 54, 148, 233, 316, 309, 259, 190, 91, 17, 6}},
	{"Thiruvananthapuram", 8.48, 76.95, [12]float64{23, 21, 39, 115, 205, 314, 219, 138, 173, 271, 207, 68}},
	{"Srinagar", 34.08, 74.80, [12]float64{63, 78, 104, 84, 65, 38, 57, 66, 36, 29, 26, 47}},
}

// Provider resolves coordinates to the nearest station's normals.
type Provider struct{}

func (p *Provider) Key() string {
	return "imd"
}

func (p *Provider) Name() string {
	return "India Meteorological Department station normals"
}

func (p *Provider) SourceURL() string {
	return "https://mausam.imd.gov.in/"
}

// Normals returns the normals of the nearest station within coverage range.
func (p *Provider) Normals(ctx context.Context, lat, lng float64) (*rainfall.Profile, error) {
	st, distKM := nearest(lat, lng)
	// The negated compare also rejects NaN distances from garbage input.
	if st == nil || !(distKM <= maxStationDistanceKM) {
		return nil, fmt.Errorf("no station within %.0f km of (%.4f, %.4f): %w",
			maxStationDistanceKM, lat, lng, rainfall.ErrNoCoverage)
	}
	return &rainfall.Profile{
		MonthlyMM: st.monthlyMM,
		AnnualMM:  rainfall.AnnualTotal(st.monthlyMM),
		Source:    "IMD climatological normals 1991-2020",
		Station:   st.name,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// NearestStation reports the name and distance of the closest station in
// the normals table, when one is within coverage range.
func NearestStation(lat, lng float64) (name string, distKM float64, ok bool) {
	st, d := nearest(lat, lng)
	if st == nil || !(d <= maxStationDistanceKM) {
		return "", d, false
	}
	return st.name, d, true
}

func nearest(lat, lng float64) (*station, float64) {
	var best *station
	bestKM := math.Inf(1)
	for i := range stations {
		d := haversineKM(lat, lng, stations[i].lat, stations[i].lng)
		if d < bestKM {
			best = &stations[i]
			bestKM = d
		}
	}
	return best, bestKM
}

const earthRadiusKM = 6371.0

func haversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
