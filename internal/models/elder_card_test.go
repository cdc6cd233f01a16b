package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func ptr[T any](v T) *T { return &v }

func TestElderCardRowKeepsOneCluster(t *testing.T) {
	post := ElderCard{
		ID:      uuid.New(),
		Name:    "Grandma Somsri",
		Details: PostProduct{Descriptions: []string{"handwoven basket", "bamboo brush"}},
	}
	row := post.Row()
	assert.Equal(t, TaskPostProduct, row.TaskType)
	assert.Equal(t, []string{"handwoven basket", "bamboo brush"}, []string(row.ProductDescriptions))
	assert.Nil(t, row.ProductName)
	assert.Nil(t, row.ProductPrice)
	assert.Nil(t, row.ProductImage)

	pack := ElderCard{
		ID:      uuid.New(),
		Name:    "Uncle Prasert",
		Details: PackProduct{Name: "rice crackers", Price: 159, MarketShare: ptr(12.5)},
	}
	row = pack.Row()
	assert.Equal(t, TaskPackProduct, row.TaskType)
	assert.Empty(t, row.ProductDescriptions)
	require.NotNil(t, row.ProductName)
	assert.Equal(t, "rice crackers", *row.ProductName)
	require.NotNil(t, row.ProductPrice)
	assert.Equal(t, 159.0, *row.ProductPrice)
	assert.Nil(t, row.ProductImage)

	back, err := row.Card()
	require.NoError(t, err)
	assert.Equal(t, pack.Details, back.Details)
}

func TestElderCardRowRejectsMixedClusters(t *testing.T) {
	name := "stray"
	rows := []ElderCardRow{
		{ID: uuid.New(), TaskType: TaskPostProduct, ProductName: &name},
		{ID: uuid.New(), TaskType: TaskPackProduct, ProductDescriptions: datatypes.NewJSONSlice([]string{"x"})},
	}
	for _, r := range rows {
		_, err := r.Card()
		assert.ErrorIs(t, err, ErrMixedCard, "task type %s", r.TaskType)
	}

	_, err := ElderCardRow{ID: uuid.New(), TaskType: "sell_product"}.Card()
	assert.ErrorIs(t, err, ErrUnknownTaskType)
}

func TestElderCardValidate(t *testing.T) {
	tests := []struct {
		name string
		card ElderCard
		ok   bool
	}{
		{"post card", ElderCard{Name: "a", Details: PostProduct{Descriptions: []string{"mat"}}}, true},
		{"post card without descriptions", ElderCard{Name: "a", Details: PostProduct{}}, true},
		{"pack card", ElderCard{Name: "a", Details: PackProduct{Name: "jam", Price: 0}}, true},
		{"missing name", ElderCard{Details: PostProduct{}}, false},
		{"missing details", ElderCard{Name: "a"}, false},
		{"blank description", ElderCard{Name: "a", Details: PostProduct{Descriptions: []string{"mat", " "}}}, false},
		{"pack without product name", ElderCard{Name: "a", Details: PackProduct{Price: 10}}, false},
		{"negative price", ElderCard{Name: "a", Details: PackProduct{Name: "jam", Price: -1}}, false},
		{"share over 100", ElderCard{Name: "a", Details: PackProduct{Name: "jam", MarketShare: ptr(120.0)}}, false},
		{"latitude without longitude", ElderCard{Name: "a", Latitude: ptr(13.7), Details: PostProduct{}}, false},
		{"negative distance", ElderCard{Name: "a", DistanceKM: ptr(-3.0), Details: PostProduct{}}, false},
		{"NaN distance", ElderCard{Name: "a", DistanceKM: ptr(math.NaN()), Details: PostProduct{}}, false},
		{"infinite distance", ElderCard{Name: "a", DistanceKM: ptr(math.Inf(1)), Details: PostProduct{}}, false},
		{"NaN latitude", ElderCard{Name: "a", Latitude: ptr(math.NaN()), Longitude: ptr(99.0), Details: PostProduct{}}, false},
		{"latitude past the pole", ElderCard{Name: "a", Latitude: ptr(91.0), Longitude: ptr(99.0), Details: PostProduct{}}, false},
		{"infinite longitude", ElderCard{Name: "a", Latitude: ptr(18.0), Longitude: ptr(math.Inf(-1)), Details: PostProduct{}}, false},
		{"NaN price", ElderCard{Name: "a", Details: PackProduct{Name: "jam", Price: math.NaN()}}, false},
		{"infinite price", ElderCard{Name: "a", Details: PackProduct{Name: "jam", Price: math.Inf(1)}}, false},
		{"NaN share", ElderCard{Name: "a", Details: PackProduct{Name: "jam", MarketShare: ptr(math.NaN())}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.card.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestElderCardProductNames(t *testing.T) {
	post := ElderCard{Details: PostProduct{Descriptions: []string{"basket"}}}
	pack := ElderCard{Details: PackProduct{Name: "jam"}}

	assert.Equal(t, []string{"basket"}, post.ProductNames())
	assert.Equal(t, []string{"jam"}, pack.ProductNames())
	assert.Nil(t, ElderCard{}.ProductNames())
}

func TestElderCardJSONOmitsOtherCluster(t *testing.T) {
	card := ElderCard{ID: uuid.New(), Name: "a", Details: PostProduct{}}
	b, err := json.Marshal(card)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "post_product", out["task_type"])
	assert.Equal(t, []any{}, out["product_descriptions"])
	assert.NotContains(t, out, "product_name")
	assert.NotContains(t, out, "product_price")
}
