package domain

import "context"

// Ключи снимков в репозитории.
const (
	SnapshotKeyCart     = "cart"
	SnapshotKeyCurrency = "currency"
)

// SnapshotRepository — порт персистентности: снимок состояния пишется и
// читается только целиком, частичных записей не бывает.
type SnapshotRepository interface {
	Save(ctx context.Context, key string, raw []byte) error
	// Load возвращает ErrNotFound, если снимок ещё не сохранялся.
	Load(ctx context.Context, key string) ([]byte, error)
}

// StatePublisher — порт рассылки снимка другим экземплярам.
type StatePublisher interface {
	Publish(ctx context.Context, raw []byte) error
}

// StateSubscriber — порт подписки на снимки; получатель замещает своё
// состояние целиком, последний разосланный снимок побеждает.
type StateSubscriber interface {
	Subscribe(ctx context.Context, handler func(raw []byte)) error
}

// LocationSource — порт геолокации: код страны клиента.
type LocationSource interface {
	CountryCode(ctx context.Context) (string, error)
}

// RateSource — порт курсов валют: единиц целевой валюты за единицу базовой.
type RateSource interface {
	Rates(ctx context.Context, base string, codes []string) (map[string]float64, error)
}

// Общие доменные ошибки
var (
	ErrNotFound            = notFoundError("not found")
	ErrValidation          = validationError("invalid data")
	ErrUnsupportedCurrency = unsupportedCurrencyError("unsupported currency")
	ErrServiceUnavailable  = serviceUnavailableError("service unavailable")
)

type notFoundError string

func (e notFoundError) Error() string { return string(e) }

type validationError string

func (e validationError) Error() string { return string(e) }

type unsupportedCurrencyError string

func (e unsupportedCurrencyError) Error() string { return string(e) }

type serviceUnavailableError string

func (e serviceUnavailableError) Error() string { return string(e) }
