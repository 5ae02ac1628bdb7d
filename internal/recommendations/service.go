package recommendations

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

// RecommendationList carries ranked products plus whether the ranking came
// from the fallback path instead of the recommendation service.
type RecommendationList struct {
	Products []catalog.ProductDTO `json:"products"`
	Fallback bool                 `json:"fallback"`
}

// Service resolves personalized, similar-product, and image-driven rankings.
type Service interface {
	ForUser(ctx context.Context, userID uuid.UUID, limit int) (*RecommendationList, error)
	SimilarTo(ctx context.Context, productID uuid.UUID, limit int) (*RecommendationList, error)
	ByImage(ctx context.Context, filename string, image []byte, limit int) (*RecommendationList, error)
}

type mlClient interface {
	Recommendations(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error)
	Similar(ctx context.Context, productID uuid.UUID, limit int) ([]uuid.UUID, error)
	SearchByImage(ctx context.Context, filename string, image []byte, topK int) ([]uuid.UUID, error)
}

type service struct {
	ml      mlClient
	catalog *catalog.Repository
	logg    *logger.Logger
}

// NewService constructs a recommendations service instance.
func NewService(ml mlClient, catalogRepo *catalog.Repository, logg *logger.Logger) (Service, error) {
	if ml == nil {
		return nil, fmt.Errorf("ml client required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{ml: ml, catalog: catalogRepo, logg: logg}, nil
}

func (s *service) ForUser(ctx context.Context, userID uuid.UUID, limit int) (*RecommendationList, error) {
	limit = clampLimit(limit)
	ids, err := s.ml.Recommendations(ctx, userID, limit)
	if err != nil {
		return s.fallback(ctx, limit, err)
	}
	return s.resolve(ctx, ids, limit)
}

func (s *service) SimilarTo(ctx context.Context, productID uuid.UUID, limit int) (*RecommendationList, error) {
	limit = clampLimit(limit)
	ids, err := s.ml.Similar(ctx, productID, limit)
	if err != nil {
		return s.fallback(ctx, limit, err)
	}
	return s.resolve(ctx, ids, limit)
}

func (s *service) ByImage(ctx context.Context, filename string, image []byte, limit int) (*RecommendationList, error) {
	if len(image) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image payload is empty")
	}
	limit = clampLimit(limit)
	ids, err := s.ml.SearchByImage(ctx, filename, image, limit)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
			return nil, err
		}
		return s.fallback(ctx, limit, err)
	}
	return s.resolve(ctx, ids, limit)
}

// resolve enriches ranked ids into catalog products, preserving the ranking
// order and dropping ids the catalog no longer knows.
func (s *service) resolve(ctx context.Context, ids []uuid.UUID, limit int) (*RecommendationList, error) {
	if len(ids) == 0 {
		return s.fallback(ctx, limit, nil)
	}

	products, err := s.catalog.ListByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load recommended products")
	}

	byID := make(map[uuid.UUID]*catalog.ProductDTO, len(products))
	for i := range products {
		byID[products[i].ID] = catalog.FromModel(&products[i])
	}

	ranked := make([]catalog.ProductDTO, 0, len(ids))
	for _, id := range ids {
		dto, ok := byID[id]
		if !ok {
			continue
		}
		ranked = append(ranked, *dto)
		if len(ranked) == limit {
			break
		}
	}
	if len(ranked) == 0 {
		return s.fallback(ctx, limit, nil)
	}
	return &RecommendationList{Products: ranked, Fallback: false}, nil
}

// fallback serves the catalog's top-rated products when the recommendation
// service is unavailable or returns nothing usable.
func (s *service) fallback(ctx context.Context, limit int, cause error) (*RecommendationList, error) {
	if cause != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", cause.Error()), "recommendation service unavailable, serving top rated")
	}

	products, err := s.catalog.ListTopRated(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load top rated products")
	}

	ranked := make([]catalog.ProductDTO, 0, len(products))
	for i := range products {
		ranked = append(ranked, *catalog.FromModel(&products[i]))
	}
	return &RecommendationList{Products: ranked, Fallback: true}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
