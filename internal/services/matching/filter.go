package matching

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/saan-app/saan_be/internal/models"
)

var ErrInvalidCriteria = errors.New("invalid matching criteria")

// Distance thresholds a feed may be narrowed to, in kilometers.
var AllowedDistances = []int{20, 50, 80}

// Criteria selects cards from the feed. Zero values mean "all".
type Criteria struct {
	TaskType      models.TaskType `json:"task_type,omitempty"`
	MaxDistanceKM int             `json:"max_distance_km,omitempty"`
	Query         string          `json:"q,omitempty"`
	Origin        *Point          `json:"origin,omitempty"`
}

// ParseCriteria reads raw query-string values. "all" and "" both disable a stage.
func ParseCriteria(taskType, distance, query, lat, lng string) (Criteria, error) {
	var c Criteria

	switch t := strings.TrimSpace(taskType); t {
	case "", "all":
	default:
		if !models.TaskType(t).Valid() {
			return Criteria{}, fmt.Errorf("%w: task type %q", ErrInvalidCriteria, t)
		}
		c.TaskType = models.TaskType(t)
	}

	switch d := strings.TrimSpace(distance); d {
	case "", "all":
	default:
		km, err := strconv.Atoi(d)
		if err != nil || !allowedDistance(km) {
			return Criteria{}, fmt.Errorf("%w: distance %q", ErrInvalidCriteria, d)
		}
		c.MaxDistanceKM = km
	}

	c.Query = strings.TrimSpace(query)

	lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	if lat != "" || lng != "" {
		p, err := parsePoint(lat, lng)
		if err != nil {
			return Criteria{}, err
		}
		c.Origin = &p
	}
	return c, nil
}

func allowedDistance(km int) bool {
	for _, d := range AllowedDistances {
		if d == km {
			return true
		}
	}
	return false
}

func parsePoint(lat, lng string) (Point, error) {
	la, err1 := strconv.ParseFloat(lat, 64)
	lo, err2 := strconv.ParseFloat(lng, 64)
	if err1 != nil || err2 != nil {
		return Point{}, fmt.Errorf("%w: lat/lng must both be numbers", ErrInvalidCriteria)
	}
	if !(la >= -90 && la <= 90 && lo >= -180 && lo <= 180) {
		return Point{}, fmt.Errorf("%w: lat/lng out of range", ErrInvalidCriteria)
	}
	return Point{Lat: la, Lng: lo}, nil
}

// Candidate is a card with its distance resolved for one viewer.
type Candidate struct {
	Card       models.ElderCard `json:"card"`
	DistanceKM float64          `json:"distance_km"`
}

// Resolve fixes the distance of every card relative to origin.
func Resolve(cards []models.ElderCard, origin *Point) []Candidate {
	out := make([]Candidate, 0, len(cards))
	for _, c := range cards {
		out = append(out, Candidate{Card: c, DistanceKM: DistanceKM(c, origin)})
	}
	return out
}

// Apply narrows in by task type, then distance, then text query. Input
// order is preserved; nothing is re-sorted.
func Apply(in []Candidate, c Criteria) []Candidate {
	out := make([]Candidate, 0, len(in))
	q := strings.ToLower(c.Query)

	for _, cand := range in {
		if c.TaskType != "" && cand.Card.TaskType() != c.TaskType {
			continue
		}
		if c.MaxDistanceKM > 0 && !(cand.DistanceKM <= float64(c.MaxDistanceKM)) {
			continue
		}
		if q != "" && !matchesQuery(cand.Card, q) {
			continue
		}
		out = append(out, cand)
	}
	return out
}

func matchesQuery(card models.ElderCard, q string) bool {
	if contains(card.Name, q) || contains(card.Location, q) {
		return true
	}
	for _, name := range card.ProductNames() {
		if contains(name, q) {
			return true
		}
	}
	return false
}

func contains(field, lowerQ string) bool {
	return field != "" && strings.Contains(strings.ToLower(field), lowerQ)
}
