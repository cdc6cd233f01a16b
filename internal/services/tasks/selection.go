package tasks

import (
	"errors"
	"strings"

	"github.com/saan-app/saan_be/internal/models"
)

var (
	ErrEmptyLabel     = errors.New("task label is empty")
	ErrEmptySelection = errors.New("no task selected")
	ErrTooManyLabels  = errors.New("pack_product tasks take exactly one label")
)

// DefaultLabels are the labels offered for each card type. Labels are free
// text; these are suggestions, not an allow-list.
var DefaultLabels = map[models.TaskType][]string{
	models.TaskPostProduct: {"post_item", "add_item"},
	models.TaskPackProduct: {"pack_item"},
}

// Selection is a volunteer's pending choice of labels on one card.
// post_product cards are multi-select; pack_product cards hold at most one label.
type Selection struct {
	taskType models.TaskType
	labels   []string
}

func NewSelection(tt models.TaskType) Selection {
	return Selection{taskType: tt}
}

// Toggle adds label if absent and removes it if present. On a pack_product
// card, picking a different label replaces the current one.
func (s *Selection) Toggle(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return ErrEmptyLabel
	}

	if s.taskType == models.TaskPackProduct {
		if len(s.labels) == 1 && s.labels[0] == label {
			s.labels = nil
		} else {
			s.labels = []string{label}
		}
		return nil
	}

	for i, l := range s.labels {
		if l == label {
			s.labels = append(s.labels[:i:i], s.labels[i+1:]...)
			return nil
		}
	}
	s.labels = append(s.labels, label)
	return nil
}

func (s Selection) Contains(label string) bool {
	for _, l := range s.labels {
		if l == label {
			return true
		}
	}
	return false
}

func (s Selection) Labels() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

func (s Selection) Empty() bool { return len(s.labels) == 0 }

func (s Selection) TaskType() models.TaskType { return s.taskType }

// NormalizeLabels trims and de-duplicates labels, keeping first occurrence
// order, and checks them against the card type.
func NormalizeLabels(tt models.TaskType, labels []string) ([]string, error) {
	seen := map[string]bool{}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			return nil, ErrEmptyLabel
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}

	if len(out) == 0 {
		return nil, ErrEmptySelection
	}
	if tt == models.TaskPackProduct && len(out) > 1 {
		return nil, ErrTooManyLabels
	}
	return out, nil
}
