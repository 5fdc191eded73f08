package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/storefront-commerce/internal/domain"
	"github.com/rs/zerolog"
)

// Cart — хранилище состояния корзины: валидация команд, пересчёт сумм,
// персистентность снимка и рассылка другим экземплярам после каждого коммита.
type Cart struct {
	mu        sync.RWMutex
	state     domain.CartState
	observers []func(domain.CartState)
	updating  atomic.Bool

	repo domain.SnapshotRepository
	pub  domain.StatePublisher
	log  zerolog.Logger
}

// NewCart — поднять состояние из репозитория. Отсутствующий или битый
// снимок даёт пустую корзину, ошибок наружу не бывает.
func NewCart(ctx context.Context, repo domain.SnapshotRepository, pub domain.StatePublisher, log zerolog.Logger) *Cart {
	c := &Cart{repo: repo, pub: pub, log: log}
	c.state = domain.CartState{Items: []domain.CartItem{}, LastUpdated: time.Now()}

	raw, err := repo.Load(ctx, domain.SnapshotKeyCart)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn().Err(err).Msg("load cart snapshot")
		}
		return c
	}
	var st domain.CartState
	if err := json.Unmarshal(raw, &st); err != nil || st.LastUpdated.IsZero() {
		log.Warn().Msg("corrupted cart snapshot, starting empty")
		return c
	}
	if st.Items == nil {
		st.Items = []domain.CartItem{}
	}
	// суммы при подъёме всегда выводятся заново из позиций
	st.Totals = domain.CalculateTotals(st.Items)
	c.state = st
	return c
}

// Subscribe — регистрация наблюдателя; вызывается после каждого локального
// коммита и после принятия чужого снимка.
func (c *Cart) Subscribe(fn func(domain.CartState)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// AddItem — добавить позицию. Повторное добавление той же пары (ID, Kind)
// складывает количества на существующей записи.
func (c *Cart) AddItem(ctx context.Context, item domain.CartItem, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: invalid quantity for new item", domain.ErrValidation)
	}
	c.updating.Store(true)
	defer c.updating.Store(false)

	st, changed, err := c.mutate(func(items []domain.CartItem) ([]domain.CartItem, error) {
		if err := validateAvailability(item, quantity); err != nil {
			return nil, err
		}
		for i := range items {
			if items[i].ID == item.ID && items[i].Kind == item.Kind {
				merged := items[i].Quantity + quantity
				if err := validateAvailability(items[i], merged); err != nil {
					return nil, err
				}
				items[i].Quantity = merged
				return items, nil
			}
		}
		item.Quantity = quantity
		if max := item.EffectiveMax(); item.Quantity > max {
			item.Quantity = max
		}
		return append(items, item), nil
	})
	if err != nil {
		return err
	}
	if changed {
		c.finish(ctx, st)
	}
	return nil
}

// UpdateQuantity — установить количество позиции; ноль удаляет позицию.
func (c *Cart) UpdateQuantity(ctx context.Context, id, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: invalid quantity provided", domain.ErrValidation)
	}
	if quantity == 0 {
		return c.RemoveItem(ctx, id)
	}
	c.updating.Store(true)
	defer c.updating.Store(false)

	st, changed, err := c.mutate(func(items []domain.CartItem) ([]domain.CartItem, error) {
		for i := range items {
			if items[i].ID == id {
				if err := validateAvailability(items[i], quantity); err != nil {
					return nil, err
				}
				items[i].Quantity = quantity
				return items, nil
			}
		}
		// отсутствующая позиция — идемпотентный успех
		return nil, nil
	})
	if err != nil {
		return err
	}
	if changed {
		c.finish(ctx, st)
	}
	return nil
}

// RemoveItem — удалить позицию; удаление отсутствующей — no-op без ошибки.
func (c *Cart) RemoveItem(ctx context.Context, id int) error {
	c.updating.Store(true)
	defer c.updating.Store(false)

	st, changed, err := c.mutate(func(items []domain.CartItem) ([]domain.CartItem, error) {
		kept := items[:0]
		for _, it := range items {
			if it.ID != id {
				kept = append(kept, it)
			}
		}
		if len(kept) == len(items) {
			return nil, nil
		}
		return kept, nil
	})
	if err != nil {
		return err
	}
	if changed {
		c.finish(ctx, st)
	}
	return nil
}

// Clear — опустошить корзину; суммы обнуляются.
func (c *Cart) Clear(ctx context.Context) error {
	c.updating.Store(true)
	defer c.updating.Store(false)

	st, _, err := c.mutate(func([]domain.CartItem) ([]domain.CartItem, error) {
		return []domain.CartItem{}, nil
	})
	if err != nil {
		return err
	}
	c.finish(ctx, st)
	return nil
}

// ApplySnapshot — принять снимок из канала рассылки: состояние замещается
// целиком, без пересчёта и без повторной рассылки.
func (c *Cart) ApplySnapshot(raw []byte) {
	var st domain.CartState
	if err := json.Unmarshal(raw, &st); err != nil {
		c.log.Warn().Err(err).Msg("invalid cart snapshot on broadcast channel")
		return
	}
	if st.Items == nil {
		st.Items = []domain.CartItem{}
	}
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
	c.notify(st)
}

// Items — копия позиций в порядке добавления.
func (c *Cart) Items() []domain.CartItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneItems(c.state.Items)
}

// Totals — текущие производные суммы.
func (c *Cart) Totals() domain.CartTotals {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Totals
}

// IsEmpty — пуста ли корзина.
func (c *Cart) IsEmpty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.state.Items) == 0
}

// LastUpdated — время последнего коммита.
func (c *Cart) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.LastUpdated
}

// FreeShippingProgress — прогресс к бесплатной доставке.
func (c *Cart) FreeShippingProgress() domain.FreeShippingProgress {
	return domain.FreeShipping(c.Totals())
}

// IsUpdating — эфемерный флаг занятости для UI; в снимок не входит.
func (c *Cart) IsUpdating() bool {
	return c.updating.Load()
}

// State — копия полного состояния.
func (c *Cart) State() domain.CartState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.state
	st.Items = cloneItems(st.Items)
	return st
}

// mutate применяет fn к копии позиций под блокировкой; fn, вернувшая
// nil-срез без ошибки, означает no-op без коммита.
func (c *Cart) mutate(fn func(items []domain.CartItem) ([]domain.CartItem, error)) (domain.CartState, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := fn(cloneItems(c.state.Items))
	if err != nil {
		return domain.CartState{}, false, err
	}
	if items == nil {
		return domain.CartState{}, false, nil
	}
	st := domain.CartState{
		Items:       items,
		Totals:      domain.CalculateTotals(items),
		LastUpdated: time.Now(),
	}
	c.state = st
	return st, true, nil
}

// finish — персистентность и рассылка зафиксированного снимка. Отказ
// хранилища или канала не откатывает коммит, только пишется в лог.
func (c *Cart) finish(ctx context.Context, st domain.CartState) {
	raw, err := json.Marshal(st)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal cart snapshot")
		c.notify(st)
		return
	}
	if err := c.repo.Save(ctx, domain.SnapshotKeyCart, raw); err != nil {
		c.log.Warn().Err(err).Msg("save cart snapshot")
	}
	if c.pub != nil {
		if err := c.pub.Publish(ctx, raw); err != nil {
			c.log.Warn().Err(err).Msg("broadcast cart snapshot")
		}
	}
	c.notify(st)
}

func (c *Cart) notify(st domain.CartState) {
	c.mu.RLock()
	observers := make([]func(domain.CartState), len(c.observers))
	copy(observers, c.observers)
	c.mu.RUnlock()
	for _, fn := range observers {
		fn(st)
	}
}

func validateAvailability(item domain.CartItem, quantity int) error {
	if max := item.EffectiveMax(); quantity > max {
		return fmt.Errorf("%w: maximum quantity of %d allowed for %s", domain.ErrValidation, max, item.Title)
	}
	if item.Kind == domain.KindCourse && quantity > 1 {
		return fmt.Errorf("%w: only one enrollment per course is allowed", domain.ErrValidation)
	}
	return nil
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}
