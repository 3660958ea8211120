package domain

// PlaceCategory is a places-API search type. It is passed through to the
// external service as-is; anything the service accepts is valid.
type PlaceCategory string

const (
	CategoryHospital   PlaceCategory = "hospital"
	CategoryPolice     PlaceCategory = "police"
	CategoryMall       PlaceCategory = "shopping_mall"
	CategoryLodging    PlaceCategory = "lodging"
	CategoryRestaurant PlaceCategory = "restaurant"
)

// PlaceRecord is one point of interest with its computed distance from
// the search origin. ContactNumber and a refined Address arrive only via
// detail enrichment.
type PlaceRecord struct {
	Name          string      `json:"name"`
	Address       string      `json:"address"`
	DistanceKm    float64     `json:"distance_km"`
	ContactNumber *string     `json:"contact_number,omitempty"`
	Rating        *float64    `json:"rating,omitempty"`
	Location      *Coordinate `json:"location_coordinates,omitempty"`
	PlaceID       string      `json:"place_id,omitempty"`
}

// HospitalSearchResult is the bounded public result of the hospital
// pipeline. TotalFound counts the records actually returned, after the
// 20-record cap.
type HospitalSearchResult struct {
	QueryLocation  string        `json:"query_location"`
	Hospitals      []PlaceRecord `json:"hospitals"`
	TotalFound     int           `json:"total_found"`
	SearchRadiusKm float64       `json:"search_radius_km"`
}

// NearbyPlace is one raw row from the places-search endpoint. Location is
// nil when the service omitted geometry; such rows are skipped upstream.
type NearbyPlace struct {
	Name     string
	Vicinity string
	Location *Coordinate
	Rating   *float64
	PlaceID  string
}

// PlaceDetails carries the optional enrichment fields of a place.
type PlaceDetails struct {
	FormattedAddress     *string
	FormattedPhoneNumber *string
	Rating               *float64
	Location             *Coordinate
}
