package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/saan-app/saan_be/internal/models"
)

var ErrCardNotFound = errors.New("elder card not found")

type MatchingService struct {
	DB *gorm.DB
}

func NewMatchingService(db *gorm.DB) *MatchingService {
	return &MatchingService{DB: db}
}

// Feed fetches every card newest first and runs the filter pipeline.
func (s *MatchingService) Feed(ctx context.Context, c Criteria) ([]Candidate, error) {
	var rows []models.ElderCardRow
	if err := s.DB.WithContext(ctx).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		zap.L().Error("fetch elder cards", zap.Error(err))
		return nil, fmt.Errorf("fetch elder cards: %w", err)
	}

	cards := make([]models.ElderCard, 0, len(rows))
	for _, r := range rows {
		card, err := r.Card()
		if err != nil {
			zap.L().Warn("skipping malformed elder card", zap.Stringer("card_id", r.ID), zap.Error(err))
			continue
		}
		cards = append(cards, card)
	}

	return Apply(Resolve(cards, c.Origin), c), nil
}

func (s *MatchingService) Card(ctx context.Context, id uuid.UUID, origin *Point) (Candidate, error) {
	var row models.ElderCardRow
	if err := s.DB.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Candidate{}, ErrCardNotFound
		}
		return Candidate{}, err
	}

	card, err := row.Card()
	if err != nil {
		return Candidate{}, err
	}
	return Candidate{Card: card, DistanceKM: DistanceKM(card, origin)}, nil
}
