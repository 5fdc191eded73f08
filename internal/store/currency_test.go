package store

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/example/storefront-commerce/internal/adapter/memstore"
	"github.com/example/storefront-commerce/internal/domain"
	"github.com/rs/zerolog"
)

type fakeRates struct {
	rates map[string]float64
	err   error
	calls int
}

func (f *fakeRates) Rates(_ context.Context, _ string, _ []string) (map[string]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.rates, nil
}

// blockingRates имитирует медленную сеть: Rates сообщает о входе и висит
// до явного освобождения.
type blockingRates struct {
	entered chan struct{}
	release chan struct{}
	rates   map[string]float64
}

func (b *blockingRates) Rates(_ context.Context, _ string, _ []string) (map[string]float64, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.rates, nil
}

type fakeLocation struct {
	country string
	err     error
}

func (f *fakeLocation) CountryCode(_ context.Context) (string, error) {
	return f.country, f.err
}

func newTestCurrency(t *testing.T, loc domain.LocationSource, rates domain.RateSource) (*Currency, *memstore.MemorySnapshotRepo) {
	t.Helper()
	repo := memstore.NewMemorySnapshotRepo()
	return NewCurrency(context.Background(), repo, nil, loc, rates, zerolog.Nop()), repo
}

func TestDefaultsToUSD(t *testing.T) {
	s, _ := newTestCurrency(t, &fakeLocation{}, &fakeRates{})
	cur := s.Current()
	if cur.Code != "USD" || cur.Rate != 1 {
		t.Errorf("Current() = %+v, want USD rate 1", cur)
	}
	if !s.FirstRun() {
		t.Error("FirstRun() = false with no stored currency")
	}
}

func TestChangeToUSDSkipsRateFetch(t *testing.T) {
	rates := &fakeRates{rates: map[string]float64{"EUR": 0.92}}
	s, _ := newTestCurrency(t, &fakeLocation{}, rates)

	if err := s.Change(context.Background(), "USD"); err != nil {
		t.Fatalf("Change(USD) error = %v", err)
	}
	if rates.calls != 0 {
		t.Errorf("rate fetches = %d, want 0 for USD", rates.calls)
	}
	if cur := s.Current(); cur.Rate != 1 {
		t.Errorf("USD rate = %v, want exactly 1", cur.Rate)
	}
}

func TestChangeToEUR(t *testing.T) {
	rates := &fakeRates{rates: map[string]float64{"EUR": 0.92}}
	s, repo := newTestCurrency(t, &fakeLocation{}, rates)
	ctx := context.Background()

	if err := s.Change(ctx, "EUR"); err != nil {
		t.Fatalf("Change(EUR) error = %v", err)
	}
	cur := s.Current()
	if cur.Code != "EUR" || cur.Rate != 0.92 {
		t.Errorf("Current() = %+v, want EUR rate 0.92", cur)
	}
	if got := s.Format(12.99); got != "11.95€" {
		t.Errorf("Format(12.99) = %q, want %q", got, "11.95€")
	}
	if got := s.Convert(12.99); got != 11.95 {
		t.Errorf("Convert(12.99) = %v, want 11.95", got)
	}
	if _, err := repo.Load(ctx, domain.SnapshotKeyCurrency); err != nil {
		t.Errorf("currency snapshot not persisted: %v", err)
	}
	if s.FirstRun() {
		t.Error("FirstRun() = true after a committed change")
	}
}

func TestChangeUnsupportedCurrency(t *testing.T) {
	s, _ := newTestCurrency(t, &fakeLocation{}, &fakeRates{})
	before := s.Current()

	err := s.Change(context.Background(), "JPY")
	if !errors.Is(err, domain.ErrUnsupportedCurrency) {
		t.Errorf("Change(JPY) error = %v, want ErrUnsupportedCurrency", err)
	}
	if s.Current() != before {
		t.Error("failed change must leave current currency untouched")
	}
}

func TestChangeRateFetchFailure(t *testing.T) {
	s, _ := newTestCurrency(t, &fakeLocation{}, &fakeRates{err: errors.New("connection refused")})
	before := s.Current()

	err := s.Change(context.Background(), "GBP")
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("Change(GBP) error = %v, want ErrServiceUnavailable", err)
	}
	if s.Current() != before {
		t.Error("failed fetch must leave current currency untouched")
	}
	if s.LastError() == nil {
		t.Error("LastError() = nil after a failed change")
	}
}

func TestChangeRateMissingInResponse(t *testing.T) {
	s, _ := newTestCurrency(t, &fakeLocation{}, &fakeRates{rates: map[string]float64{}})
	if err := s.Change(context.Background(), "CAD"); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("Change(CAD) error = %v, want ErrServiceUnavailable", err)
	}
}

func TestSuccessfulChangeClearsLastError(t *testing.T) {
	rates := &fakeRates{err: errors.New("boom")}
	s, _ := newTestCurrency(t, &fakeLocation{}, rates)
	ctx := context.Background()

	_ = s.Change(ctx, "EUR")
	if s.LastError() == nil {
		t.Fatal("LastError() = nil after failure")
	}

	rates.err = nil
	rates.rates = map[string]float64{"EUR": 0.92}
	if err := s.Change(ctx, "EUR"); err != nil {
		t.Fatalf("Change(EUR) error = %v", err)
	}
	if s.LastError() != nil {
		t.Errorf("LastError() = %v after success, want nil", s.LastError())
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		country   string
		rates     map[string]float64
		wantCode  string
		wantRate  float64
		wantCalls int
	}{
		{name: "germany maps to EUR", country: "DE", rates: map[string]float64{"EUR": 0.92}, wantCode: "EUR", wantRate: 0.92, wantCalls: 1},
		{name: "uk maps to GBP", country: "GB", rates: map[string]float64{"GBP": 0.79}, wantCode: "GBP", wantRate: 0.79, wantCalls: 1},
		{name: "unmapped country stays USD without fetch", country: "BR", wantCode: "USD", wantRate: 1, wantCalls: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rates := &fakeRates{rates: tt.rates}
			s, _ := newTestCurrency(t, &fakeLocation{country: tt.country}, rates)

			if err := s.Detect(context.Background()); err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			cur := s.Current()
			if cur.Code != tt.wantCode || cur.Rate != tt.wantRate {
				t.Errorf("Current() = %+v, want %s rate %v", cur, tt.wantCode, tt.wantRate)
			}
			if rates.calls != tt.wantCalls {
				t.Errorf("rate fetches = %d, want %d", rates.calls, tt.wantCalls)
			}
		})
	}
}

func TestDetectLocationFailure(t *testing.T) {
	s, _ := newTestCurrency(t, &fakeLocation{err: errors.New("timeout")}, &fakeRates{})
	before := s.Current()

	err := s.Detect(context.Background())
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("Detect() error = %v, want ErrServiceUnavailable", err)
	}
	if s.Current() != before {
		t.Error("failed detection must leave current currency untouched")
	}
}

func TestPersistedCurrencySurvivesRestart(t *testing.T) {
	repo := memstore.NewMemorySnapshotRepo()
	ctx := context.Background()
	rates := &fakeRates{rates: map[string]float64{"EUR": 0.92}}

	first := NewCurrency(ctx, repo, nil, &fakeLocation{}, rates, zerolog.Nop())
	if err := first.Change(ctx, "EUR"); err != nil {
		t.Fatalf("Change(EUR) error = %v", err)
	}

	second := NewCurrency(ctx, repo, nil, &fakeLocation{}, rates, zerolog.Nop())
	if second.Current() != first.Current() {
		t.Errorf("restarted currency = %+v, want %+v", second.Current(), first.Current())
	}
	if second.FirstRun() {
		t.Error("FirstRun() = true with a stored currency")
	}
}

func TestCorruptedCurrencySnapshotFallsBack(t *testing.T) {
	repo := memstore.NewMemorySnapshotRepo()
	ctx := context.Background()
	if err := repo.Save(ctx, domain.SnapshotKeyCurrency, []byte(`garbage`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	s := NewCurrency(ctx, repo, nil, &fakeLocation{}, &fakeRates{}, zerolog.Nop())
	if cur := s.Current(); cur.Code != "USD" {
		t.Errorf("Current() = %+v, want USD fallback", cur)
	}
}

func TestParse(t *testing.T) {
	s, _ := newTestCurrency(t, &fakeLocation{}, &fakeRates{})
	if got := s.Parse("$12.99"); got != 12.99 {
		t.Errorf("Parse() = %v, want 12.99", got)
	}
	if got := s.Parse("not a price"); got != 0 {
		t.Errorf("Parse(garbage) = %v, want 0", got)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	rates := &fakeRates{rates: map[string]float64{"EUR": 0.92, "GBP": 0.79, "CAD": 1.36, "AUD": 1.52}}
	s, _ := newTestCurrency(t, &fakeLocation{}, rates)
	ctx := context.Background()

	for _, code := range []string{"EUR", "GBP", "CAD", "AUD"} {
		if err := s.Change(ctx, code); err != nil {
			t.Fatalf("Change(%s) error = %v", code, err)
		}
		rate := s.Current().Rate
		for _, x := range []float64{0.99, 12.99, 24.99, 100} {
			want := domain.Round2(x * rate)
			got := s.Parse(s.Format(x))
			if math.Abs(got-want) > 1e-9 {
				t.Errorf("%s: Parse(Format(%v)) = %v, want %v", code, x, got, want)
			}
		}
	}
}

func TestRapidChangeDiscardsStaleResponse(t *testing.T) {
	repo := memstore.NewMemorySnapshotRepo()
	pub := &capturePublisher{}
	rates := &blockingRates{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		rates:   map[string]float64{"EUR": 0.92},
	}
	s := NewCurrency(context.Background(), repo, pub, &fakeLocation{}, rates, zerolog.Nop())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.Change(ctx, "EUR") }()
	<-rates.entered // запрос курса для EUR повис в сети

	// более новая смена завершается, пока первая ещё ждёт ответа
	if err := s.Change(ctx, "USD"); err != nil {
		t.Fatalf("Change(USD) error = %v", err)
	}
	close(rates.release) // устаревший ответ приходит уже после смены
	if err := <-done; err != nil {
		t.Fatalf("Change(EUR) error = %v", err)
	}

	if cur := s.Current(); cur.Code != "USD" || cur.Rate != 1 {
		t.Errorf("Current() = %+v, stale EUR response must not win over newer USD change", cur)
	}
	raw, err := repo.Load(ctx, domain.SnapshotKeyCurrency)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var stored domain.CurrencyInfo
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("unmarshal stored currency: %v", err)
	}
	if stored.Code != "USD" {
		t.Errorf("persisted currency = %+v, stale response must not be persisted", stored)
	}
	if pub.count() != 1 {
		t.Errorf("published %d snapshots, want only the committed USD change", pub.count())
	}
}

func TestApplySnapshotAdoptsCurrency(t *testing.T) {
	s, _ := newTestCurrency(t, &fakeLocation{}, &fakeRates{})

	var observed []domain.CurrencyInfo
	s.Subscribe(func(c domain.CurrencyInfo) { observed = append(observed, c) })

	s.ApplySnapshot([]byte(`{"code":"EUR","symbol":"€","name":"Euro","rate":0.92}`))
	if cur := s.Current(); cur.Code != "EUR" || cur.Rate != 0.92 {
		t.Errorf("Current() = %+v, want adopted EUR", cur)
	}
	if len(observed) != 1 {
		t.Errorf("observer calls = %d, want 1", len(observed))
	}

	// снимок с валютой вне каталога игнорируется
	s.ApplySnapshot([]byte(`{"code":"JPY","symbol":"¥","rate":150}`))
	if cur := s.Current(); cur.Code != "EUR" {
		t.Errorf("Current() = %+v, unsupported snapshot must be ignored", cur)
	}
}
