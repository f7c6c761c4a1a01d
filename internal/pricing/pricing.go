// Package pricing вычисляет авторитетные цены заказа.
//
// Расчёт — чистая функция от снимка каталога, категорий покупателя и
// текущего времени. Сумма, предложенная языковой моделью, сюда не попадает.
package pricing

import (
	"sort"
	"time"

	"github.com/mmeshcher/pekara-system/internal/model"
)

// DefaultCurrency используется, если каталог не задал валюту.
const DefaultCurrency = "EUR"

// Quote — результат расчёта цены заказа.
type Quote struct {
	Lines      []model.OrderLine
	TotalCents int64
	Currency   string
	// Skipped — SKU из запроса, отсутствующие в активном каталоге.
	// Это расхождение модели и каталога, вызывающий обязан его залогировать.
	Skipped []string
}

// Compute считает построчные и итоговую цены для набора (SKU, количество).
// Позиции сортируются по SKU, чтобы результат был детерминированным.
func Compute(products []model.Product, categories []string, items map[string]int, now time.Time) Quote {
	bySKU := make(map[string]*model.Product, len(products))
	for i := range products {
		if products[i].Active {
			bySKU[products[i].SKU] = &products[i]
		}
	}

	skus := make([]string, 0, len(items))
	for sku := range items {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	q := Quote{Currency: DefaultCurrency}

	for _, sku := range skus {
		qty := items[sku]
		if qty <= 0 {
			continue
		}

		p, ok := bySKU[sku]
		if !ok {
			q.Skipped = append(q.Skipped, sku)
			continue
		}

		unitFinal, discountName := unitPrice(p, categories, now)

		q.Lines = append(q.Lines, model.OrderLine{
			SKU:            sku,
			Quantity:       qty,
			UnitBaseCents:  p.BasePriceCents,
			UnitFinalCents: unitFinal,
			DiscountName:   discountName,
		})
		q.TotalCents += unitFinal * int64(qty)

		if p.Currency != "" {
			q.Currency = p.Currency
		}
	}

	return q
}

// unitPrice возвращает цену единицы товара после применимой скидки и
// название применённой скидки (пустое, если скидки нет).
func unitPrice(p *model.Product, categories []string, now time.Time) (int64, string) {
	base := p.BasePriceCents
	d := p.Discount

	if d == nil || !d.Active {
		return base, ""
	}
	if !categoriesEligible(d.Categories, categories) {
		return base, ""
	}
	if !withinWindow(d, now) {
		return base, ""
	}

	var final int64
	switch d.Type {
	case model.DiscountPercentage:
		// Округление к ближайшему центу.
		final = base - (base*d.Value+50)/100
	case model.DiscountFixed:
		final = base - d.Value
	default:
		return base, ""
	}

	if final < 0 {
		final = 0
	}
	return final, d.Name
}

// categoriesEligible: пустой список допустимых категорий означает «для всех»,
// иначе требуется пересечение с категориями покупателя.
func categoriesEligible(allowed, have []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		for _, h := range have {
			if a == h {
				return true
			}
		}
	}
	return false
}

func withinWindow(d *model.Discount, now time.Time) bool {
	if d.From != nil && now.Before(*d.From) {
		return false
	}
	if d.Until != nil && now.After(*d.Until) {
		return false
	}
	return true
}
