package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saan-app/saan_be/internal/models"
)

func TestSelectionToggleIsAnInvolution(t *testing.T) {
	sel := NewSelection(models.TaskPostProduct)
	require.NoError(t, sel.Toggle("post_item"))
	before := sel.Labels()

	for _, label := range []string{"add_item", "post_item", "wrap_gift"} {
		require.NoError(t, sel.Toggle(label))
		require.NoError(t, sel.Toggle(label))
		assert.Equal(t, before, sel.Labels(), "toggling %q twice", label)
	}
}

func TestSelectionPostCardIsMultiSelect(t *testing.T) {
	sel := NewSelection(models.TaskPostProduct)
	require.NoError(t, sel.Toggle("post_item"))
	require.NoError(t, sel.Toggle(" add_item "))

	assert.Equal(t, []string{"post_item", "add_item"}, sel.Labels())
	assert.True(t, sel.Contains("add_item"))

	require.NoError(t, sel.Toggle("post_item"))
	assert.Equal(t, []string{"add_item"}, sel.Labels())
}

func TestSelectionPackCardHoldsOneLabel(t *testing.T) {
	sel := NewSelection(models.TaskPackProduct)
	require.NoError(t, sel.Toggle("pack_item"))
	require.NoError(t, sel.Toggle("gift_wrap"))
	assert.Equal(t, []string{"gift_wrap"}, sel.Labels())

	require.NoError(t, sel.Toggle("gift_wrap"))
	assert.True(t, sel.Empty())
}

func TestSelectionRejectsBlankLabel(t *testing.T) {
	sel := NewSelection(models.TaskPostProduct)
	assert.ErrorIs(t, sel.Toggle("  "), ErrEmptyLabel)
	assert.True(t, sel.Empty())
}

func TestSelectionLabelsIsACopy(t *testing.T) {
	sel := NewSelection(models.TaskPostProduct)
	require.NoError(t, sel.Toggle("post_item"))

	labels := sel.Labels()
	labels[0] = "changed"
	assert.Equal(t, []string{"post_item"}, sel.Labels())
}

func TestNormalizeLabels(t *testing.T) {
	got, err := NormalizeLabels(models.TaskPostProduct, []string{" post_item", "add_item", "post_item "})
	require.NoError(t, err)
	assert.Equal(t, []string{"post_item", "add_item"}, got)

	_, err = NormalizeLabels(models.TaskPostProduct, nil)
	assert.ErrorIs(t, err, ErrEmptySelection)

	_, err = NormalizeLabels(models.TaskPostProduct, []string{"post_item", ""})
	assert.ErrorIs(t, err, ErrEmptyLabel)

	_, err = NormalizeLabels(models.TaskPackProduct, []string{"pack_item", "gift_wrap"})
	assert.ErrorIs(t, err, ErrTooManyLabels)

	got, err = NormalizeLabels(models.TaskPackProduct, []string{"pack_item", "pack_item"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pack_item"}, got)
}
