// Package places searches Kakao Local for named places. Searches never fail
// outward: upstream problems degrade to an empty result with a reason.
package places

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MinQueryLength is the shortest query, in runes, that reaches the provider.
const MinQueryLength = 2

// Place is a normalized search hit.
type Place struct {
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	RoadAddress string  `json:"road_address"`
	Longitude   float64 `json:"longitude"`
	Latitude    float64 `json:"latitude"`
	Category    string  `json:"category"`
	Phone       string  `json:"phone"`
	URL         string  `json:"url"`
}

// Result is the response body of a place search.
type Result struct {
	Places     []Place `json:"places"`
	TotalCount int     `json:"total_count"`
	Error      string  `json:"error,omitempty"`
}

func newResult(places []Place) Result {
	if places == nil {
		places = []Place{}
	}
	return Result{Places: places, TotalCount: len(places)}
}

func degraded(reason string) Result {
	r := newResult(nil)
	r.Error = reason
	return r
}

// NormalizeQuery trims, collapses inner whitespace and lowercases a query.
// The result is the cache key for the query.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

func tooShort(normalized string) bool {
	return utf8.RuneCountInString(normalized) < MinQueryLength
}

// kakaoResponse is the keyword search payload.
type kakaoResponse struct {
	Documents []kakaoDocument `json:"documents"`
	Meta      struct {
		TotalCount int  `json:"total_count"`
		IsEnd      bool `json:"is_end"`
	} `json:"meta"`
}

type kakaoDocument struct {
	PlaceName       string `json:"place_name"`
	AddressName     string `json:"address_name"`
	RoadAddressName string `json:"road_address_name"`
	X               string `json:"x"`
	Y               string `json:"y"`
	CategoryName    string `json:"category_name"`
	Phone           string `json:"phone"`
	PlaceURL        string `json:"place_url"`
}

// toPlaces converts documents, dropping any with unparseable coordinates.
func (r *kakaoResponse) toPlaces() []Place {
	places := make([]Place, 0, len(r.Documents))
	for _, d := range r.Documents {
		lng, err := strconv.ParseFloat(d.X, 64)
		if err != nil {
			continue
		}
		lat, err := strconv.ParseFloat(d.Y, 64)
		if err != nil {
			continue
		}
		places = append(places, Place{
			Name:        d.PlaceName,
			Address:     d.AddressName,
			RoadAddress: d.RoadAddressName,
			Longitude:   lng,
			Latitude:    lat,
			Category:    d.CategoryName,
			Phone:       d.Phone,
			URL:         d.PlaceURL,
		})
	}
	return places
}
