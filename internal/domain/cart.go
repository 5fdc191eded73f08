package domain

import "time"

// Тарифы корзины.
const (
	ShippingThreshold  = 25.0
	ShippingCost       = 4.99
	TaxRate            = 0.08
	MaxQuantityDefault = 10
)

// Виды позиций корзины.
const (
	KindBook    = "book"
	KindCourse  = "course"
	KindProduct = "product"
)

// CartItem — позиция корзины. Пара (ID, Kind) уникальна в пределах корзины.
type CartItem struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle,omitempty"`
	Image       string `json:"image,omitempty"`
	Price       string `json:"price"`
	Quantity    int    `json:"quantity"`
	Category    string `json:"category,omitempty"`
	Dimensions  string `json:"dimensions,omitempty"`
	Kind        string `json:"type"`
	MaxQuantity int    `json:"maxQuantity,omitempty"`
}

// EffectiveMax — собственный лимит позиции либо общий по умолчанию.
func (i CartItem) EffectiveMax() int {
	if i.MaxQuantity > 0 {
		return i.MaxQuantity
	}
	return MaxQuantityDefault
}

// LineTotal — стоимость строки: цена за единицу на количество.
func (i CartItem) LineTotal() float64 {
	return ParsePrice(i.Price) * float64(i.Quantity)
}

// CartTotals — производные суммы; всегда пересчитываются из позиций целиком.
type CartTotals struct {
	Subtotal  float64 `json:"subtotal"`
	Shipping  float64 `json:"shipping"`
	Tax       float64 `json:"tax"`
	Total     float64 `json:"total"`
	ItemCount int     `json:"itemCount"`
}

// CartState — авторитетное состояние корзины. Транзиентные флаги UI
// сюда не входят: снимок сериализуется и рассылается как есть.
type CartState struct {
	Items       []CartItem `json:"items"`
	Totals      CartTotals `json:"totals"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

// CalculateTotals — чистая функция сумм корзины. Округление до двух
// знаков выполняется один раз на финальных значениях, не по слагаемым.
func CalculateTotals(items []CartItem) CartTotals {
	if len(items) == 0 {
		return CartTotals{}
	}
	var subtotal float64
	count := 0
	for _, it := range items {
		subtotal += it.LineTotal()
		count += it.Quantity
	}
	shipping := ShippingCost
	if subtotal >= ShippingThreshold {
		shipping = 0
	}
	tax := subtotal * TaxRate
	total := subtotal + shipping + tax
	return CartTotals{
		Subtotal:  Round2(subtotal),
		Shipping:  Round2(shipping),
		Tax:       Round2(tax),
		Total:     Round2(total),
		ItemCount: count,
	}
}

// FreeShippingProgress — прогресс к порогу бесплатной доставки.
type FreeShippingProgress struct {
	IsEligible bool    `json:"isEligible"`
	Remaining  float64 `json:"remaining"`
	Progress   float64 `json:"progress"`
}

// FreeShipping — прогресс по текущим суммам.
func FreeShipping(t CartTotals) FreeShippingProgress {
	remaining := ShippingThreshold - t.Subtotal
	if remaining < 0 {
		remaining = 0
	}
	progress := t.Subtotal / ShippingThreshold * 100
	if progress > 100 {
		progress = 100
	}
	return FreeShippingProgress{
		IsEligible: t.Subtotal >= ShippingThreshold,
		Remaining:  Round2(remaining),
		Progress:   progress,
	}
}
