package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/FlowPagesHQ/FlowPages/app/models"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/cache"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/env"
	"github.com/FlowPagesHQ/FlowPages/internal/pkg/registrar"
)

const cacheKeyPrefix = "pricing:tld:"

// Service serves per-TLD pricing through a read-through hierarchy: cache,
// then the synced pricing table, then the live registrar API as a last
// resort for TLDs the sync has not covered yet.
type Service struct {
	db        *gorm.DB
	registrar registrar.Client
	cacheTTL  time.Duration
}

func NewService(db *gorm.DB, reg registrar.Client) *Service {
	return &Service{
		db:        db,
		registrar: reg,
		cacheTTL:  env.GetEnvDuration("PRICING_CACHE_TTL", 6*time.Hour),
	}
}

// GetPricing returns pricing for a TLD. Cache misses fall through to the
// pricing table; the cache is only populated from table reads so a live
// registrar hiccup never gets pinned for the TTL.
func (s *Service) GetPricing(ctx context.Context, tld string) (*registrar.Pricing, error) {
	tld = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tld), "."))
	if tld == "" {
		return nil, errors.New("tld is required")
	}

	if cached, err := cache.Get(cacheKeyPrefix + tld); err == nil {
		var p registrar.Pricing
		if jsonErr := json.Unmarshal([]byte(cached), &p); jsonErr == nil {
			return &p, nil
		}
		// Unreadable cache entries are dropped, not served.
		_ = cache.Delete(cacheKeyPrefix + tld)
	}

	var row models.DomainPricing
	err := s.db.Where("tld = ?", tld).First(&row).Error
	if err == nil {
		p := &registrar.Pricing{
			TLD:           row.TLD,
			RegisterPrice: row.RegisterPrice,
			TransferPrice: row.TransferPrice,
			RenewPrice:    row.RenewPrice,
			Currency:      row.Currency,
		}
		s.cachePricing(p)
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	log.Infof("[Pricing] No synced pricing for .%s, querying registrar live", tld)
	p, err := s.registrar.GetPricing(ctx, tld)
	if err != nil {
		return nil, fmt.Errorf("live pricing lookup for .%s failed: %w", tld, err)
	}
	return p, nil
}

func (s *Service) cachePricing(p *registrar.Pricing) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := cache.Set(cacheKeyPrefix+p.TLD, string(raw), s.cacheTTL); err != nil {
		log.Warnf("[Pricing] Failed to cache pricing for .%s: %v", p.TLD, err)
	}
}

// Sync pulls the registrar's full price list, upserts the pricing table and
// invalidates the cache entries it replaced. Run periodically by the
// scheduler.
func (s *Service) Sync(ctx context.Context) (int, error) {
	list, err := s.registrar.ListPricing(ctx)
	if err != nil {
		return 0, fmt.Errorf("pricing sync: %w", err)
	}

	now := time.Now()
	for _, p := range list {
		row := models.DomainPricing{
			TLD:           strings.ToLower(p.TLD),
			RegisterPrice: p.RegisterPrice,
			TransferPrice: p.TransferPrice,
			RenewPrice:    p.RenewPrice,
			Currency:      p.Currency,
			SyncedAt:      now,
		}
		err := s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tld"}},
			DoUpdates: clause.AssignmentColumns([]string{"register_price", "transfer_price", "renew_price", "currency", "synced_at"}),
		}).Create(&row).Error
		if err != nil {
			return 0, fmt.Errorf("pricing sync upsert .%s: %w", row.TLD, err)
		}
		if err := cache.Delete(cacheKeyPrefix + row.TLD); err != nil {
			log.Warnf("[Pricing] Failed to invalidate cache for .%s: %v", row.TLD, err)
		}
	}
	log.Infof("[Pricing] Synced %d TLD price entries", len(list))
	return len(list), nil
}

// HealthReport describes the freshness of the synced pricing table.
type HealthReport struct {
	TLDCount   int        `json:"tld_count"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	SyncAge    string     `json:"sync_age,omitempty"`
	Stale      bool       `json:"stale"`
}

// Health reports how stale the synced price list is. An empty table or a
// sync older than maxAge is flagged.
func (s *Service) Health(ctx context.Context, maxAge time.Duration) (*HealthReport, error) {
	_ = ctx
	var count int64
	if err := s.db.Model(&models.DomainPricing{}).Count(&count).Error; err != nil {
		return nil, err
	}
	report := &HealthReport{TLDCount: int(count), Stale: true}
	if count == 0 {
		return report, nil
	}

	var latest models.DomainPricing
	if err := s.db.Order("synced_at DESC").First(&latest).Error; err != nil {
		return nil, err
	}
	report.LastSyncAt = &latest.SyncedAt
	age := time.Since(latest.SyncedAt)
	report.SyncAge = age.Round(time.Minute).String()
	report.Stale = age > maxAge
	return report, nil
}
