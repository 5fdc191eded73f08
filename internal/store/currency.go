package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/example/storefront-commerce/internal/domain"
	"github.com/rs/zerolog"
)

// Currency — хранилище активной валюты отображения: явная смена, автоопре-
// деление по геолокации, конвертация и форматирование цен. Активная валюта
// меняется только по успешному завершению операции; неудачный запрос курса
// оставляет прежнее значение и фиксируется в LastError.
type Currency struct {
	mu        sync.RWMutex
	current   domain.CurrencyInfo
	lastErr   error
	observers []func(domain.CurrencyInfo)
	loading   atomic.Bool
	// поколение запроса: ответ, переживший более новый запрос, отбрасывается
	gen      atomic.Uint64
	firstRun bool

	repo  domain.SnapshotRepository
	pub   domain.StatePublisher
	loc   domain.LocationSource
	rates domain.RateSource
	log   zerolog.Logger
}

// NewCurrency — поднять сохранённый выбор валюты; отсутствующий или битый
// снимок даёт USD. FirstRun истинно, когда выбора ещё не было.
func NewCurrency(ctx context.Context, repo domain.SnapshotRepository, pub domain.StatePublisher, loc domain.LocationSource, rates domain.RateSource, log zerolog.Logger) *Currency {
	s := &Currency{repo: repo, pub: pub, loc: loc, rates: rates, log: log}
	s.current = domain.DefaultCurrency()

	raw, err := repo.Load(ctx, domain.SnapshotKeyCurrency)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.firstRun = true
		} else {
			log.Warn().Err(err).Msg("load currency snapshot")
		}
		return s
	}
	var info domain.CurrencyInfo
	if jerr := json.Unmarshal(raw, &info); jerr != nil {
		log.Warn().Msg("corrupted currency snapshot, falling back to USD")
		return s
	}
	if _, ok := domain.FindCurrency(info.Code); !ok || info.Rate <= 0 {
		log.Warn().Str("code", info.Code).Msg("stored currency not supported, falling back to USD")
		return s
	}
	if info.Code == "USD" {
		info.Rate = 1
	}
	s.current = info
	return s
}

// FirstRun — не было ли ещё сохранённого выбора валюты; после первого
// коммита всегда false.
func (s *Currency) FirstRun() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.firstRun
}

// Subscribe — регистрация наблюдателя смены валюты.
func (s *Currency) Subscribe(fn func(domain.CurrencyInfo)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Change — явный выбор валюты. USD устанавливается сразу и без сети,
// для остальных сначала запрашивается актуальный курс.
func (s *Currency) Change(ctx context.Context, code string) error {
	info, ok := domain.FindCurrency(code)
	if !ok {
		err := fmt.Errorf("%w: %s", domain.ErrUnsupportedCurrency, code)
		s.setLastError(err)
		return err
	}
	gen := s.gen.Add(1)
	s.setLastError(nil)

	if info.Code == "USD" {
		s.adopt(ctx, info, gen)
		return nil
	}

	s.loading.Store(true)
	defer s.loading.Store(false)

	rate, err := s.fetchRate(ctx, info.Code)
	if err != nil {
		s.setLastError(err)
		return err
	}
	info.Rate = rate
	s.adopt(ctx, info, gen)
	return nil
}

// Detect — автоопределение валюты по стране клиента. Любой отказ внешних
// сервисов оставляет активную валюту нетронутой.
func (s *Currency) Detect(ctx context.Context) error {
	gen := s.gen.Add(1)
	s.setLastError(nil)
	s.loading.Store(true)
	defer s.loading.Store(false)

	country, err := s.loc.CountryCode(ctx)
	if err != nil {
		err = fmt.Errorf("%w: detect location: %v", domain.ErrServiceUnavailable, err)
		s.setLastError(err)
		return err
	}
	code := domain.CurrencyForCountry(country)
	info, _ := domain.FindCurrency(code)

	if info.Code != "USD" {
		rate, err := s.fetchRate(ctx, info.Code)
		if err != nil {
			s.setLastError(err)
			return err
		}
		info.Rate = rate
	}
	if s.adopt(ctx, info, gen) {
		s.log.Info().Str("country", country).Str("currency", info.Code).Msg("currency detected")
	}
	return nil
}

// Convert — чистая конвертация долларовой суммы в активную валюту.
func (s *Currency) Convert(usdAmount float64) float64 {
	return domain.Round2(usdAmount * s.Current().Rate)
}

// Format — конвертация и отображение по правилам активной валюты.
func (s *Currency) Format(usdAmount float64) string {
	cur := s.Current()
	return domain.FormatAmount(cur, usdAmount*cur.Rate)
}

// Parse — разбор строки цены; мусор даёт 0.
func (s *Currency) Parse(priceString string) float64 {
	return domain.ParsePrice(priceString)
}

// ConvertString — разобрать долларовую строку цены и отобразить в активной валюте.
func (s *Currency) ConvertString(priceString string) string {
	return s.Format(domain.ParsePrice(priceString))
}

// Current — активная валюта.
func (s *Currency) Current() domain.CurrencyInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Supported — каталог поддерживаемых валют.
func (s *Currency) Supported() []domain.CurrencyInfo {
	return domain.SupportedCurrencies()
}

// IsLoading — идёт ли сетевая операция смены/определения валюты.
func (s *Currency) IsLoading() bool {
	return s.loading.Load()
}

// LastError — ошибка последней неуспешной операции, nil после успеха.
func (s *Currency) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// ApplySnapshot — принять валюту из канала рассылки без повторной рассылки.
func (s *Currency) ApplySnapshot(raw []byte) {
	var info domain.CurrencyInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		s.log.Warn().Err(err).Msg("invalid currency snapshot on broadcast channel")
		return
	}
	if _, ok := domain.FindCurrency(info.Code); !ok || info.Rate <= 0 {
		s.log.Warn().Str("code", info.Code).Msg("unsupported currency snapshot ignored")
		return
	}
	s.mu.Lock()
	s.current = info
	s.firstRun = false
	s.mu.Unlock()
	s.notify(info)
}

func (s *Currency) fetchRate(ctx context.Context, code string) (float64, error) {
	rates, err := s.rates.Rates(ctx, "USD", []string{code})
	if err != nil {
		return 0, fmt.Errorf("%w: fetch rate for %s: %v", domain.ErrServiceUnavailable, code, err)
	}
	rate, ok := rates[code]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("%w: rate for %s missing in response", domain.ErrServiceUnavailable, code)
	}
	return rate, nil
}

// adopt — атомарная смена активной валюты с персистентностью и рассылкой.
// Проверка поколения и запись идут под одной блокировкой: ответ, переживший
// более новый запрос, не попадает ни в состояние, ни в снимок, ни в рассылку.
func (s *Currency) adopt(ctx context.Context, info domain.CurrencyInfo, gen uint64) bool {
	s.mu.Lock()
	if s.gen.Load() != gen {
		s.mu.Unlock()
		return false
	}
	s.current = info
	s.lastErr = nil
	s.firstRun = false
	s.mu.Unlock()

	raw, err := json.Marshal(info)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal currency snapshot")
		s.notify(info)
		return true
	}
	if err := s.repo.Save(ctx, domain.SnapshotKeyCurrency, raw); err != nil {
		s.log.Warn().Err(err).Msg("save currency snapshot")
	}
	if s.pub != nil {
		if err := s.pub.Publish(ctx, raw); err != nil {
			s.log.Warn().Err(err).Msg("broadcast currency snapshot")
		}
	}
	s.notify(info)
	return true
}

func (s *Currency) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Currency) notify(info domain.CurrencyInfo) {
	s.mu.RLock()
	observers := make([]func(domain.CurrencyInfo), len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(info)
	}
}
