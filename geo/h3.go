// Package geo provides geospatial utilities including H3 hexagonal indexing.
package geo

import (
	"fmt"

	"github.com/uber/h3-go/v4"
)

// H3Resolution defines the H3 resolution levels.
// Resolution 7: ~5.16 km² average hexagon area (~1.22 km edge)
// Resolution 8: ~0.74 km² average hexagon area (~0.46 km edge)
// Resolution 9: ~0.11 km² average hexagon area (~0.17 km edge)
type H3Resolution int

const (
	// H3ResolutionDistrict is for district-level grouping (resolution 7)
	H3ResolutionDistrict H3Resolution = 7
	// H3ResolutionNeighborhood is for neighborhood-level grouping (resolution 8)
	H3ResolutionNeighborhood H3Resolution = 8
	// H3ResolutionBlock is for block-level labels (resolution 9)
	H3ResolutionBlock H3Resolution = 9
)

// maxKRings bounds neighbourhood queries so a single request cannot ask for
// an unbounded disk.
const maxKRings = 10

// H3Index wraps H3 functionality at a fixed resolution.
type H3Index struct {
	resolution int
}

// NewH3Index creates a new H3 indexer with the specified resolution.
func NewH3Index(resolution H3Resolution) *H3Index {
	return &H3Index{
		resolution: int(resolution),
	}
}

// Resolution returns the resolution cells are computed at.
func (h *H3Index) Resolution() int {
	return h.resolution
}

// LatLngToCell converts a lat/lng point to an H3 cell.
func (h *H3Index) LatLngToCell(p Point) h3.Cell {
	return h3.LatLngToCell(h3.LatLng{Lat: p.Lat, Lng: p.Lng}, h.resolution)
}

// CellToLatLng converts an H3 cell to its center point.
func (h *H3Index) CellToLatLng(cell h3.Cell) Point {
	latLng := h3.CellToLatLng(cell)
	return Point{Lat: latLng.Lat, Lng: latLng.Lng}
}

// GetCellString returns the H3 cell string for a point.
func (h *H3Index) GetCellString(p Point) string {
	return h.LatLngToCell(p).String()
}

// Disk returns the string form of every cell within kRings of the cell
// identified by cellStr. k=0 returns just the cell itself.
func (h *H3Index) Disk(cellStr string, kRings int) (map[string]struct{}, error) {
	if err := ValidateH3Cell(cellStr); err != nil {
		return nil, err
	}
	if kRings < 0 {
		kRings = 0
	}
	if kRings > maxKRings {
		kRings = maxKRings
	}

	cell := h3.Cell(h3.IndexFromString(cellStr))
	// Cells of a different resolution are brought to ours before expanding.
	if res := cell.Resolution(); res > h.resolution {
		cell = cell.Parent(h.resolution)
	}

	disk := h3.GridDisk(cell, kRings)
	out := make(map[string]struct{}, len(disk))
	for _, c := range disk {
		if c.Resolution() < h.resolution {
			for _, child := range c.Children(h.resolution) {
				out[child.String()] = struct{}{}
			}
			continue
		}
		out[c.String()] = struct{}{}
	}
	return out, nil
}

// ValidateH3Cell validates an H3 cell string.
func ValidateH3Cell(cellStr string) error {
	if cellStr == "" {
		return fmt.Errorf("empty H3 cell string")
	}

	index := h3.IndexFromString(cellStr)
	if index == 0 {
		return fmt.Errorf("invalid H3 cell string: %s", cellStr)
	}

	cell := h3.Cell(index)
	if !cell.IsValid() {
		return fmt.Errorf("invalid H3 cell: %s", cellStr)
	}

	return nil
}
