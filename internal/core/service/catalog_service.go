package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bazar-store/bazar/internal/core/domain"
	"github.com/bazar-store/bazar/internal/metrics"
	"github.com/bazar-store/bazar/internal/port"
)

const (
	// reserveAttempts bounds the internal retry loop when concurrent
	// reservations conflict on the same item.
	reserveAttempts = 5
	reserveBackoff  = 10 * time.Millisecond
)

// CatalogService owns the item records and the atomic stock primitives.
type CatalogService struct {
	repo port.CatalogRepository
	log  zerolog.Logger
}

func NewCatalogService(repo port.CatalogRepository, log zerolog.Logger) *CatalogService {
	return &CatalogService{repo: repo, log: log}
}

func (s *CatalogService) GetItem(ctx context.Context, id int) (domain.Item, error) {
	return s.repo.GetItem(ctx, id)
}

// SearchByTopic returns title -> id for items whose topic matches exactly,
// case-insensitive.
func (s *CatalogService) SearchByTopic(ctx context.Context, topic string) (map[string]int, error) {
	topic = strings.ToLower(topic)
	items, err := s.repo.ListItems(ctx, func(it domain.Item) bool {
		return strings.ToLower(it.Topic) == topic
	})
	if err != nil {
		return nil, err
	}
	return titleIndex(items), nil
}

// SearchByKeyword returns title -> id for items whose title or topic contains
// the keyword, case-insensitive.
func (s *CatalogService) SearchByKeyword(ctx context.Context, keyword string) (map[string]int, error) {
	keyword = strings.ToLower(keyword)
	items, err := s.repo.ListItems(ctx, func(it domain.Item) bool {
		return strings.Contains(strings.ToLower(it.Title), keyword) ||
			strings.Contains(strings.ToLower(it.Topic), keyword)
	})
	if err != nil {
		return nil, err
	}
	return titleIndex(items), nil
}

func titleIndex(items []domain.Item) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.Title] = it.ID
	}
	return out
}

// ReserveStock checks and decrements stock as one atomic unit. Transient
// conflicts between concurrent reservations are retried here with bounded
// backoff; ErrOutOfStock and ErrNotFound are final on first sight.
func (s *CatalogService) ReserveStock(ctx context.Context, id, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("invalid quantity %d", quantity)
	}

	var lastErr error
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		if attempt > 0 {
			metrics.ReservationRetries.Inc()
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(reserveBackoff << (attempt - 1)):
			}
		}

		remaining, err := s.repo.ReserveStock(ctx, id, quantity)
		if err == nil {
			s.log.Debug().Int("item_id", id).Int("stock", remaining).Msg("stock reserved")
			return remaining, nil
		}
		if !errors.Is(err, domain.ErrReservationRace) {
			return 0, err
		}
		lastErr = err
	}

	return 0, fmt.Errorf("reserve stock for item %d: %w", id, lastErr)
}

// RestoreStock undoes a reservation. Fails only when the item is unknown.
func (s *CatalogService) RestoreStock(ctx context.Context, id, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, fmt.Errorf("invalid quantity %d", quantity)
	}
	stock, err := s.repo.RestoreStock(ctx, id, quantity)
	if err != nil {
		return 0, err
	}
	s.log.Debug().Int("item_id", id).Int("stock", stock).Msg("stock restored")
	return stock, nil
}

// SeedFromCSV loads the catalog from a CSV of
// item_number,title,topic,stock,cost when the store is empty. A missing file
// is not an error; an empty catalog is a valid state.
func (s *CatalogService) SeedFromCSV(ctx context.Context, path string) error {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	if count > 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn().Str("path", path).Msg("no seed file, starting with empty catalog")
			return nil
		}
		return fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	loaded := 0
	for i, rec := range records {
		if i == 0 && strings.EqualFold(rec[0], "item_number") {
			continue // header row
		}
		item, err := parseItemRecord(rec)
		if err != nil {
			return fmt.Errorf("seed file line %d: %w", i+1, err)
		}
		if err := s.repo.PutItem(ctx, item); err != nil {
			return fmt.Errorf("store item %d: %w", item.ID, err)
		}
		loaded++
	}

	s.log.Info().Int("items", loaded).Str("path", path).Msg("catalog seeded")
	return nil
}

func parseItemRecord(rec []string) (domain.Item, error) {
	if len(rec) != 5 {
		return domain.Item{}, fmt.Errorf("expected 5 fields, got %d", len(rec))
	}
	id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
	if err != nil {
		return domain.Item{}, fmt.Errorf("item number: %w", err)
	}
	stock, err := strconv.Atoi(strings.TrimSpace(rec[3]))
	if err != nil {
		return domain.Item{}, fmt.Errorf("stock: %w", err)
	}
	cost, err := strconv.Atoi(strings.TrimSpace(rec[4]))
	if err != nil {
		return domain.Item{}, fmt.Errorf("cost: %w", err)
	}
	if stock < 0 || cost < 0 {
		return domain.Item{}, fmt.Errorf("negative stock or cost for item %d", id)
	}
	return domain.Item{
		ID:    id,
		Title: strings.TrimSpace(rec[1]),
		Topic: strings.TrimSpace(rec[2]),
		Stock: stock,
		Cost:  cost,
	}, nil
}
