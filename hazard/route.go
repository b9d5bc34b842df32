package hazard

import (
	"fmt"

	"github.com/seoulsafe/sinkhole-api/geo"
)

// RouteType says whether a route detours around hazard zones.
type RouteType string

// Route types.
const (
	RouteDirect     RouteType = "direct"
	RouteSafeDetour RouteType = "safe_detour"
)

const (
	// dangerLineThreshold is in planar degree units, see geo.NearLine.
	dangerLineThreshold = 0.5
	dangerRisk          = 0.7
	detourRadiusKm      = 1.0
	detourOffsetDeg     = 0.01
	averageSpeedKmh     = 30.0
)

// Route is a suggested path between two coordinates.
type Route struct {
	Waypoints     []geo.Point `json:"waypoints"`
	Distance      float64     `json:"distance"`
	EstimatedTime int         `json:"estimated_time"`
	RouteType     RouteType   `json:"route_type"`
	AvoidedZones  []Zone      `json:"avoided_zones"`
	Message       string      `json:"message"`
}

// Advisor plans routes that detour around high-risk zones.
type Advisor struct {
	table *Table
}

// NewAdvisor creates an advisor over table.
func NewAdvisor(table *Table) *Advisor {
	return &Advisor{table: table}
}

// PlanRoute suggests a route from start to end.
//
// Distance is the straight-line distance between the endpoints while
// EstimatedTime follows the waypoints, so a detour takes longer without
// getting longer.
func (a *Advisor) PlanRoute(start, end geo.Point) (Route, error) {
	if err := checkPoint(start, "start_latitude", "start_longitude"); err != nil {
		return Route{}, err
	}
	if err := checkPoint(end, "end_latitude", "end_longitude"); err != nil {
		return Route{}, err
	}

	dangerous := a.dangerousZones(start, end)

	route := Route{
		Distance:     geo.HaversineDistance(start, end),
		AvoidedZones: dangerous,
	}
	if len(dangerous) == 0 {
		route.Waypoints = []geo.Point{start, end}
		route.RouteType = RouteDirect
		route.Message = "위험지역이 없어 직선 경로를 제공합니다."
	} else {
		route.Waypoints = detourWaypoints(start, end, dangerous)
		route.RouteType = RouteSafeDetour
		route.Message = fmt.Sprintf("%d개의 위험지역을 우회하는 경로입니다.", len(dangerous))
	}
	route.EstimatedTime = travelMinutes(route.Waypoints)

	return route, nil
}

// dangerousZones returns high-risk zones near the start-end line in table
// order. Coincident endpoints give a zero-length route with nothing to avoid.
func (a *Advisor) dangerousZones(start, end geo.Point) []Zone {
	zones := make([]Zone, 0)
	if start.Equal(end) {
		return zones
	}
	for _, e := range a.table.entries {
		if e.Risk > dangerRisk && geo.NearLine(start, end, e.Point(), dangerLineThreshold) {
			zones = append(zones, e.Zone)
		}
	}
	return zones
}

func detourWaypoints(start, end geo.Point, dangerous []Zone) []geo.Point {
	mid := geo.PlanarMidpoint(start, end)

	waypoints := []geo.Point{start}
	for _, z := range dangerous {
		if geo.HaversineDistance(mid, z.Point()) >= detourRadiusKm {
			continue
		}
		waypoints = append(waypoints, geo.Point{
			Lat: z.Lat + awayFrom(z.Lat, mid.Lat),
			Lng: z.Lng + awayFrom(z.Lng, mid.Lng),
		})
	}
	return append(waypoints, end)
}

func awayFrom(zoneCoord, midCoord float64) float64 {
	if zoneCoord > midCoord {
		return detourOffsetDeg
	}
	return -detourOffsetDeg
}

func travelMinutes(waypoints []geo.Point) int {
	return int(geo.PathLength(waypoints) / averageSpeedKmh * 60)
}
