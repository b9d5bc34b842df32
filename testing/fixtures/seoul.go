package fixtures

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Landmarks used across handler and advisor tests.
var (
	Myeongdong = Coordinate{Lat: 37.5636, Lng: 126.9826}
	Gangnam    = Coordinate{Lat: 37.4979, Lng: 127.0276}
	Samseong   = Coordinate{Lat: 37.5088, Lng: 127.0631}
	Jamsil     = Coordinate{Lat: 37.5133, Lng: 127.1028}

	// Far enough from Seoul that no hazard zone lies near the route line.
	BusanStation = Coordinate{Lat: 35.1151, Lng: 129.0422}
	Haeundae     = Coordinate{Lat: 35.1587, Lng: 129.1604}
)

// KakaoKeywordResponse is a trimmed Kakao Local keyword-search payload.
const KakaoKeywordResponse = `{
  "meta": {"total_count": 2, "pageable_count": 2, "is_end": true},
  "documents": [
    {
      "id": "8134927",
      "place_name": "명동역 4호선",
      "category_name": "교통,수송 > 지하철,전철 > 수도권4호선",
      "address_name": "서울 중구 충무로2가 66-7",
      "road_address_name": "서울 중구 퇴계로 지하 126",
      "phone": "02-6110-4241",
      "x": "126.98654",
      "y": "37.56095",
      "place_url": "http://place.map.kakao.com/8134927"
    },
    {
      "id": "27360148",
      "place_name": "명동성당",
      "category_name": "종교 > 천주교 > 성당",
      "address_name": "서울 중구 명동2가 1-1",
      "road_address_name": "서울 중구 명동길 74",
      "phone": "02-774-1784",
      "x": "126.98723",
      "y": "37.56326",
      "place_url": "http://place.map.kakao.com/27360148"
    }
  ]
}`
