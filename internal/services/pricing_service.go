package services

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"fynd/internal/models"
	"fynd/internal/repositories"
	"fynd/pkg/metrics"
)

// defaultFlushDelay is the coalescing window: every price request arriving
// within it is folded into one bulk store lookup.
const defaultFlushDelay = 50 * time.Millisecond

type pricingWaiter struct {
	ch chan models.PricingInfo
}

type pricingDelivery struct {
	ch   chan models.PricingInfo
	info models.PricingInfo
}

// PricingAggregator coalesces concurrent per-product price requests into one
// bulk lookup per flush window, fans the results back out to subscribers and
// caches them for the lifetime of the process. Resolved prices are assumed
// low-churn for a browsing session, so there is no TTL and no eviction.
type PricingAggregator struct {
	repo  repositories.CatalogRepository
	delay time.Duration
	now   func() time.Time

	mu      sync.Mutex
	pending map[string]struct{}
	waiters map[string][]*pricingWaiter
	cache   map[string]models.PricingInfo
	timer   *time.Timer
	stopped bool
}

// NewPricingAggregator creates a new PricingAggregator over the given store.
// A non-positive delay selects the default flush window.
func NewPricingAggregator(repo repositories.CatalogRepository, delay time.Duration) *PricingAggregator {
	if delay <= 0 {
		delay = defaultFlushDelay
	}
	return &PricingAggregator{
		repo:    repo,
		delay:   delay,
		now:     time.Now,
		pending: make(map[string]struct{}),
		waiters: make(map[string][]*pricingWaiter),
		cache:   make(map[string]models.PricingInfo),
	}
}

// canonicalProductID brings a caller-supplied product id into the form the
// store keys its bulk results by, so "007" and "7" share one pending entry
// and one cache slot. Unparseable ids pass through trimmed; they resolve to
// null pricing via the absent-product rule.
func canonicalProductID(productID string) string {
	id := strings.TrimSpace(productID)
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return strconv.FormatUint(n, 10)
	}
	return id
}

// Subscribe registers interest in the pricing of one product. The returned
// channel receives exactly one PricingInfo; a cached product resolves
// immediately without touching the store. The cancel func withdraws the
// subscription; calling it after delivery is harmless.
func (a *PricingAggregator) Subscribe(productID string) (<-chan models.PricingInfo, func()) {
	id := canonicalProductID(productID)
	ch := make(chan models.PricingInfo, 1)

	a.mu.Lock()
	if info, ok := a.cache[id]; ok {
		a.mu.Unlock()
		ch <- info
		return ch, func() {}
	}

	w := &pricingWaiter{ch: ch}
	a.waiters[id] = append(a.waiters[id], w)
	a.pending[id] = struct{}{}
	if a.timer == nil && !a.stopped {
		a.timer = time.AfterFunc(a.delay, a.flush)
	}
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		ws := a.waiters[id]
		for i, cand := range ws {
			if cand == w {
				a.waiters[id] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		if len(a.waiters[id]) == 0 {
			delete(a.waiters, id)
		}
		// The id stays in the pending set; the next flush resolves and
		// caches it even with nobody listening.
	}
	return ch, cancel
}

// Lookup resolves the pricing of one product, waiting through the coalescing
// window if needed. The only error it returns is the context's.
func (a *PricingAggregator) Lookup(ctx context.Context, productID string) (models.PricingInfo, error) {
	ch, cancel := a.Subscribe(productID)
	select {
	case info := <-ch:
		return info, nil
	case <-ctx.Done():
		cancel()
		return models.PricingInfo{}, ctx.Err()
	}
}

// CachedCount reports how many products have resolved pricing in the cache.
func (a *PricingAggregator) CachedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cache)
}

// Stop cancels a scheduled flush and prevents new ones. Pending subscribers
// of an already-drained flush are still served.
func (a *PricingAggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// flush drains the pending set and resolves it with one bulk store lookup.
func (a *PricingAggregator) flush() {
	a.mu.Lock()
	snapshot := make([]string, 0, len(a.pending))
	for id := range a.pending {
		snapshot = append(snapshot, id)
	}
	a.pending = make(map[string]struct{})
	a.timer = nil
	a.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	results := a.resolve(snapshot)

	var deliveries []pricingDelivery
	a.mu.Lock()
	for _, id := range snapshot {
		info := results[id]
		a.cache[id] = info
		for _, w := range a.waiters[id] {
			deliveries = append(deliveries, pricingDelivery{ch: w.ch, info: info})
		}
		delete(a.waiters, id)
	}
	a.mu.Unlock()

	for _, d := range deliveries {
		// Channels are buffered for exactly one result, so this never blocks.
		select {
		case d.ch <- d.info:
		default:
		}
	}
}

// resolve performs the bulk lookup for one snapshot. A store failure degrades
// the whole snapshot to null pricing; it is logged but never surfaced to the
// subscribers, since a missing price is an acceptable state for the UI.
func (a *PricingAggregator) resolve(ids []string) map[string]models.PricingInfo {
	results := make(map[string]models.PricingInfo, len(ids))

	variants, err := a.repo.QueryVariantPrices(ids)
	var offers []models.OfferPrice
	if err == nil {
		offers, err = a.repo.QueryActiveOffers(ids, a.now())
	}
	if err != nil {
		zap.L().Error("bulk pricing lookup failed",
			zap.Int("products", len(ids)), zap.Error(err))
		metrics.PricingFlushCounter.WithLabelValues("error").Inc()
		for _, id := range ids {
			results[id] = models.PricingInfo{}
		}
		return results
	}
	metrics.PricingFlushCounter.WithLabelValues("ok").Inc()

	for _, v := range variants {
		cur := results[v.ProductID]
		if cur.VariantPrice == nil || v.Price < *cur.VariantPrice {
			price := v.Price
			cur.VariantPrice = &price
			cur.CompareAtPrice = v.CompareAtPrice
		}
		results[v.ProductID] = cur
	}
	for _, o := range offers {
		cur := results[o.ProductID]
		if cur.OfferPrice == nil || o.Price < *cur.OfferPrice {
			price := o.Price
			cur.OfferPrice = &price
		}
		results[o.ProductID] = cur
	}
	// Products the store did not return resolve to all-null pricing.
	for _, id := range ids {
		if _, ok := results[id]; !ok {
			results[id] = models.PricingInfo{}
		}
	}
	return results
}
