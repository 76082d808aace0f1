// Package receipt provides the read-only Payment+Citation view keyed by
// receipt number that receipt renderers consume. Lookups of completed
// payments go through an optional Redis read-through cache; the engine
// invalidates entries when a payment is reversed or renumbered.
package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	citationmodels "citepay/internal/citation/models"
	paymentmodels "citepay/internal/payment/models"
	"citepay/internal/platform/metrics"
	id "citepay/pkg/domain"
	dErrors "citepay/pkg/domain-errors"
	"citepay/pkg/platform/sentinel"
)

// View is the renderer's snapshot of a payment and its citation.
type View struct {
	Payment  *paymentmodels.Payment   `json:"payment"`
	Citation *citationmodels.Citation `json:"citation"`
}

// PaymentReader is the payment lookup the service needs.
type PaymentReader interface {
	FindByReceiptNumber(ctx context.Context, receiptNumber string) (*paymentmodels.Payment, error)
}

// CitationReader is the citation lookup the service needs.
type CitationReader interface {
	FindByID(ctx context.Context, citationID id.CitationID) (*citationmodels.Citation, error)
}

// Cache is the receipt-view cache. Implementations must treat misses as
// (nil, nil), not errors.
type Cache interface {
	Get(ctx context.Context, receiptNumber string) (*View, error)
	Set(ctx context.Context, receiptNumber string, view *View) error
	Invalidate(ctx context.Context, receiptNumber string) error
}

// Service resolves receipt numbers to renderable views.
type Service struct {
	payments  PaymentReader
	citations CitationReader
	cache     Cache
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(s *Service)

func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(payments PaymentReader, citations CitationReader, opts ...Option) *Service {
	s := &Service{payments: payments, citations: citations}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup resolves a receipt number to its payment and citation. Only
// completed payments are cached: pending_print rows still change, and
// reversed rows are rendered with their live status.
func (s *Service) Lookup(ctx context.Context, receiptNumber string) (*View, error) {
	receipt := paymentmodels.NormalizeReceiptNumber(receiptNumber)
	if err := paymentmodels.ValidateReceiptNumber(receipt); err != nil {
		return nil, err
	}

	if view := s.cacheGet(ctx, receipt); view != nil {
		return view, nil
	}

	payment, err := s.payments.FindByReceiptNumber(ctx, receipt)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no payment for receipt number")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "find payment by receipt")
	}

	citation, err := s.citations.FindByID(ctx, payment.CitationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "citation for receipt no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "find citation for receipt")
	}

	view := &View{Payment: payment, Citation: citation}
	if payment.Status == paymentmodels.StatusCompleted {
		s.cacheSet(ctx, receipt, view)
	}
	return view, nil
}

func (s *Service) cacheGet(ctx context.Context, receipt string) *View {
	if s.cache == nil {
		return nil
	}
	view, err := s.cache.Get(ctx, receipt)
	if err != nil {
		s.logWarn(ctx, "receipt cache read failed", "receipt_number", receipt, "error", err)
		return nil
	}
	if s.metrics != nil {
		if view != nil {
			s.metrics.ReceiptCacheHits.Inc()
		} else {
			s.metrics.ReceiptCacheMisses.Inc()
		}
	}
	return view
}

func (s *Service) cacheSet(ctx context.Context, receipt string, view *View) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, receipt, view); err != nil {
		s.logWarn(ctx, "receipt cache write failed", "receipt_number", receipt, "error", err)
	}
}

func (s *Service) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}

// RedisCache stores receipt views in Redis under a TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisCache constructs a Redis-backed receipt cache.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(receiptNumber string) string {
	return "citepay:receipt:" + receiptNumber
}

func (c *RedisCache) Get(ctx context.Context, receiptNumber string) (*View, error) {
	payload, err := c.client.Get(ctx, cacheKey(receiptNumber)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var view View
	if err := json.Unmarshal(payload, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *RedisCache) Set(ctx context.Context, receiptNumber string, view *View) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(receiptNumber), payload, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, receiptNumber string) error {
	return c.client.Del(ctx, cacheKey(receiptNumber)).Err()
}
