package matching

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saan-app/saan_be/internal/models"
)

func km(v float64) *float64 { return &v }

func cardIDs(cands []Candidate) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Card.ID)
	}
	return out
}

func sampleCards() []models.ElderCard {
	return []models.ElderCard{
		{
			ID: uuid.New(), Name: "Grandma Somsri", Location: "Chiang Mai", DistanceKM: km(12.0),
			Details: models.PostProduct{Descriptions: []string{"handwoven basket", "bamboo brush"}},
		},
		{
			ID: uuid.New(), Name: "Uncle Prasert", Location: "Lamphun", DistanceKM: km(45.2),
			Details: models.PackProduct{Name: "rice crackers", Price: 159},
		},
		{
			ID: uuid.New(), Name: "Auntie Malee", Location: "Basket Village", DistanceKM: km(70),
			Details: models.PackProduct{Name: "ceramic cup", Price: 80},
		},
	}
}

func TestParseCriteria(t *testing.T) {
	c, err := ParseCriteria("all", "all", "  basket ", "", "")
	require.NoError(t, err)
	assert.Equal(t, Criteria{Query: "basket"}, c)

	c, err = ParseCriteria("pack_product", "50", "", "18.79", "98.98")
	require.NoError(t, err)
	assert.Equal(t, models.TaskPackProduct, c.TaskType)
	assert.Equal(t, 50, c.MaxDistanceKM)
	require.NotNil(t, c.Origin)
	assert.Equal(t, Point{Lat: 18.79, Lng: 98.98}, *c.Origin)

	bad := [][5]string{
		{"sell_product", "", "", "", ""},
		{"", "30", "", "", ""},
		{"", "twenty", "", "", ""},
		{"", "", "", "18.7", ""},
		{"", "", "", "91", "10"},
		{"", "", "", "NaN", "10"},
		{"", "", "", "18.7", "-Inf"},
	}
	for _, b := range bad {
		_, err := ParseCriteria(b[0], b[1], b[2], b[3], b[4])
		assert.ErrorIs(t, err, ErrInvalidCriteria, "%v", b)
	}
}

func TestApplyQueryMatchesDescriptions(t *testing.T) {
	cards := sampleCards()
	in := Resolve(cards[:1], nil)

	got := Apply(in, Criteria{Query: "basket"})
	assert.Equal(t, []uuid.UUID{cards[0].ID}, cardIDs(got))

	got = Apply(in, Criteria{Query: "ceramic"})
	assert.Empty(t, got)
}

func TestApplyQueryIsCaseInsensitiveAcrossFields(t *testing.T) {
	cards := sampleCards()
	in := Resolve(cards, nil)

	// a description on the first card, the location of the third
	got := Apply(in, Criteria{Query: "BASKET"})
	assert.Equal(t, []uuid.UUID{cards[0].ID, cards[2].ID}, cardIDs(got))

	got = Apply(in, Criteria{Query: "prasert"})
	assert.Equal(t, []uuid.UUID{cards[1].ID}, cardIDs(got))

	got = Apply(in, Criteria{Query: "crackers"})
	assert.Equal(t, []uuid.UUID{cards[1].ID}, cardIDs(got))
}

func TestApplyDistanceThreshold(t *testing.T) {
	cards := sampleCards()
	in := Resolve(cards, nil)

	got := Apply(in, Criteria{MaxDistanceKM: 20})
	assert.Equal(t, []uuid.UUID{cards[0].ID}, cardIDs(got))

	got = Apply(in, Criteria{MaxDistanceKM: 50})
	assert.Equal(t, []uuid.UUID{cards[0].ID, cards[1].ID}, cardIDs(got))

	edge := []Candidate{{Card: models.ElderCard{ID: uuid.New()}, DistanceKM: 20}}
	assert.Len(t, Apply(edge, Criteria{MaxDistanceKM: 20}), 1)

	unknown := []Candidate{{Card: models.ElderCard{ID: uuid.New()}, DistanceKM: math.NaN()}}
	assert.Empty(t, Apply(unknown, Criteria{MaxDistanceKM: 20}))
}

func TestApplyStagesCombineAndKeepOrder(t *testing.T) {
	cards := sampleCards()
	in := Resolve(cards, nil)

	got := Apply(in, Criteria{TaskType: models.TaskPackProduct})
	assert.Equal(t, []uuid.UUID{cards[1].ID, cards[2].ID}, cardIDs(got))

	got = Apply(in, Criteria{TaskType: models.TaskPackProduct, MaxDistanceKM: 50})
	assert.Equal(t, []uuid.UUID{cards[1].ID}, cardIDs(got))

	got = Apply(in, Criteria{TaskType: models.TaskPostProduct, Query: "crackers"})
	assert.Empty(t, got)

	assert.Len(t, Apply(in, Criteria{}), len(cards))
}

func TestApplyIsIdempotent(t *testing.T) {
	in := Resolve(sampleCards(), nil)
	for _, c := range []Criteria{
		{},
		{TaskType: models.TaskPackProduct},
		{MaxDistanceKM: 50, Query: "a"},
		{TaskType: models.TaskPostProduct, MaxDistanceKM: 80, Query: "basket"},
	} {
		once := Apply(in, c)
		twice := Apply(once, c)
		assert.Equal(t, once, twice)
		assert.Equal(t, once, Apply(in, c))
	}
}
