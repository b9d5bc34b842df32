// Package hazard scores sinkhole risk and plans routes around known hazard
// zones.
package hazard

import (
	"fmt"

	"github.com/seoulsafe/sinkhole-api/geo"
)

// Zone is a known sinkhole hazard location.
type Zone struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Risk float64 `json:"risk"`
	Name string  `json:"name"`
}

// Point returns the zone's coordinate.
func (z Zone) Point() geo.Point {
	return geo.Point{Lat: z.Lat, Lng: z.Lng}
}

// Entry pairs a zone with the H3 cell it falls in.
type Entry struct {
	Zone
	Cell string `json:"h3_cell"`
}

// Table is an ordered, read-only set of hazard zones. It is safe for
// concurrent use.
type Table struct {
	entries []Entry
	index   *geo.H3Index
}

// NewTable builds a table from zones, keeping their order. Order decides
// ties in Nearest.
func NewTable(zones []Zone) (*Table, error) {
	if len(zones) == 0 {
		return nil, fmt.Errorf("hazard table needs at least one zone")
	}

	index := geo.NewH3Index(geo.H3ResolutionBlock)
	entries := make([]Entry, len(zones))
	for i, z := range zones {
		if !z.Point().IsValid() {
			return nil, fmt.Errorf("zone %d (%s): coordinate out of range", i, z.Name)
		}
		if z.Risk < 0 || z.Risk > 1 {
			return nil, fmt.Errorf("zone %d (%s): risk %v outside [0,1]", i, z.Name, z.Risk)
		}
		entries[i] = Entry{Zone: z, Cell: index.GetCellString(z.Point())}
	}

	return &Table{entries: entries, index: index}, nil
}

// DefaultZones returns the Seoul hazard zones the service ships with.
func DefaultZones() []Zone {
	return []Zone{
		{Lat: 37.5665, Lng: 126.9780, Risk: 0.85, Name: "중구 명동"},
		{Lat: 37.5663, Lng: 126.9779, Risk: 0.90, Name: "중구 명동 인근"},
		{Lat: 37.5519, Lng: 126.9918, Risk: 0.78, Name: "강남구 논현동"},
		{Lat: 37.5172, Lng: 127.0473, Risk: 0.82, Name: "강남구 삼성동"},
		{Lat: 37.5794, Lng: 126.9770, Risk: 0.75, Name: "종로구 종로1가"},
		{Lat: 37.5512, Lng: 126.9882, Risk: 0.88, Name: "서초구 서초동"},
		{Lat: 37.5326, Lng: 126.9026, Risk: 0.73, Name: "영등포구 여의도동"},
		{Lat: 37.5838, Lng: 127.0580, Risk: 0.80, Name: "성동구 성수동"},
		{Lat: 37.5145, Lng: 126.9061, Risk: 0.77, Name: "관악구 신림동"},
		{Lat: 37.6065, Lng: 127.0921, Risk: 0.84, Name: "동대문구 청량리동"},
	}
}

// DefaultTable returns a table over DefaultZones.
func DefaultTable() *Table {
	t, err := NewTable(DefaultZones())
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of zones.
func (t *Table) Len() int {
	return len(t.entries)
}

// Zones returns a copy of the zones in table order.
func (t *Table) Zones() []Zone {
	zones := make([]Zone, len(t.entries))
	for i, e := range t.entries {
		zones[i] = e.Zone
	}
	return zones
}

// Entries returns a copy of the zones with their H3 cells, in table order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// EntriesNear returns the zones whose cell lies within kRings of cell.
func (t *Table) EntriesNear(cell string, kRings int) ([]Entry, error) {
	disk, err := t.index.Disk(cell, kRings)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0)
	for _, e := range t.entries {
		if _, ok := disk[e.Cell]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Nearest returns the zone closest to p and its haversine distance in km.
// The first zone in table order wins a tie.
func (t *Table) Nearest(p geo.Point) (Zone, float64) {
	best := t.entries[0].Zone
	bestDist := geo.HaversineDistance(p, best.Point())
	for _, e := range t.entries[1:] {
		if d := geo.HaversineDistance(p, e.Point()); d < bestDist {
			best, bestDist = e.Zone, d
		}
	}
	return best, bestDist
}
