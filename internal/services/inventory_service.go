package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/menycars/copiloto/internal/cache"
	"github.com/menycars/copiloto/internal/models"
	"github.com/menycars/copiloto/internal/providers/brain"
	postgresrepo "github.com/menycars/copiloto/internal/repositories/postgres"
	"github.com/menycars/copiloto/internal/utils"
)

const inventoryCacheKey = "inventory:snapshot"

type InventoryService interface {
	// Snapshot returns the bounded inventory view the brain prompts
	// with. Read-only from the pipeline's perspective.
	Snapshot(ctx context.Context) ([]brain.VehicleSummary, error)
	List(ctx context.Context, limit int) ([]models.Vehicle, error)
	Get(ctx context.Context, id string) (*models.Vehicle, error)
	AddPhoto(ctx context.Context, id, photoURL string) (*models.Vehicle, error)
}

type inventoryService struct {
	vehicles postgresrepo.VehicleRepo
	cache    cache.Cache
	limit    int
	cacheTTL time.Duration
}

func NewInventoryService(vehicles postgresrepo.VehicleRepo, c cache.Cache, limit int, cacheTTL time.Duration) InventoryService {
	if limit <= 0 {
		limit = 20
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &inventoryService{vehicles: vehicles, cache: c, limit: limit, cacheTTL: cacheTTL}
}

func (s *inventoryService) Snapshot(ctx context.Context) ([]brain.VehicleSummary, error) {
	const op = "InventoryService.Snapshot"

	if s.cache != nil {
		var cached []brain.VehicleSummary
		if hit, err := s.cache.GetJSON(ctx, inventoryCacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	rows, err := s.vehicles.ListAvailable(ctx, s.limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list inventory", err)
	}

	out := make([]brain.VehicleSummary, 0, len(rows))
	for _, v := range rows {
		out = append(out, summarize(v))
	}

	if s.cache != nil {
		_ = s.cache.SetJSON(ctx, inventoryCacheKey, out, s.cacheTTL)
	}
	return out, nil
}

func (s *inventoryService) List(ctx context.Context, limit int) ([]models.Vehicle, error) {
	const op = "InventoryService.List"

	rows, err := s.vehicles.ListAvailable(ctx, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list vehicles", err)
	}
	return rows, nil
}

func (s *inventoryService) Get(ctx context.Context, id string) (*models.Vehicle, error) {
	const op = "InventoryService.Get"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "id is required", nil)
	}
	return s.vehicles.GetByID(ctx, id)
}

// AddPhoto appends an uploaded photo URL to the vehicle's image list
// and invalidates the snapshot cache.
func (s *inventoryService) AddPhoto(ctx context.Context, id, photoURL string) (*models.Vehicle, error) {
	const op = "InventoryService.AddPhoto"

	if id == "" || photoURL == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "id and photo url are required", nil)
	}

	v, err := s.vehicles.GetByID(ctx, id)
	if err != nil {
		return nil, utils.E(utils.CodeNotFound, op, "vehicle not found", err)
	}

	urls := decodeImageURLs(v.ImageURLs)
	urls = append(urls, photoURL)
	encoded, _ := json.Marshal(urls)

	fields := map[string]any{
		"image_urls": encoded,
		"updated_at": time.Now().UTC(),
	}
	if v.ImageURL == "" {
		fields["image_url"] = photoURL
		v.ImageURL = photoURL
	}
	if err := s.vehicles.UpdateFields(ctx, id, fields); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update vehicle", err)
	}

	v.ImageURLs = encoded
	if s.cache != nil {
		_ = s.cache.Del(ctx, inventoryCacheKey)
	}
	return v, nil
}

func summarize(v models.Vehicle) brain.VehicleSummary {
	return brain.VehicleSummary{
		ID:          v.ID,
		DisplayName: v.Make + " " + v.Model,
		Year:        v.Year,
		Price:       v.Price,
		URL:         v.PublicURL,
		ImageURL:    v.ImageURL,
		ImageURLs:   decodeImageURLs(v.ImageURLs),
	}
}

func decodeImageURLs(raw []byte) []string {
	var urls []string
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &urls)
	}
	return urls
}
