package matching

import (
	"hash/fnv"
	"math"

	"github.com/saan-app/saan_be/internal/models"
)

const earthRadiusKM = 6371.0088

// PlaceholderMaxKM bounds the stand-in distance of cards with no location data.
const PlaceholderMaxKM = 80

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceKM resolves how far card is from origin: a stored distance wins,
// then great-circle distance from stored coordinates, then a stable
// placeholder derived from the card id.
func DistanceKM(card models.ElderCard, origin *Point) float64 {
	if card.DistanceKM != nil {
		return *card.DistanceKM
	}
	if origin != nil && card.Latitude != nil && card.Longitude != nil {
		return Haversine(*origin, Point{Lat: *card.Latitude, Lng: *card.Longitude})
	}
	return placeholderKM(card)
}

func Haversine(a, b Point) float64 {
	lat1, lat2 := rad(a.Lat), rad(b.Lat)
	dLat := lat2 - lat1
	dLng := rad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(h)))
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// placeholderKM is in [0, PlaceholderMaxKM) with two decimals.
func placeholderKM(card models.ElderCard) float64 {
	h := fnv.New64a()
	_, _ = h.Write(card.ID[:])
	return float64(h.Sum64()%(PlaceholderMaxKM*100)) / 100
}
