package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/pekara-system/internal/intent"
	"github.com/mmeshcher/pekara-system/internal/locale"
	"github.com/mmeshcher/pekara-system/internal/model"
)

// buildSystemPrompt собирает системную инструкцию: персона, актуальный
// каталог с живыми ценами и протокол подтверждения заказа.
//
// Инструкция всегда на английском, язык ответов задаётся директивой из
// таблицы локалей; так один промпт обслуживает все языки.
func buildSystemPrompt(lang string, tx locale.Texts, products []model.Product) string {
	var b strings.Builder

	b.WriteString("You are a friendly ordering assistant for a small bakery. ")
	b.WriteString("Respond in " + tx.LangName + ".\n\n")

	b.WriteString("Current menu (sku, name, unit price):\n")
	now := time.Now()
	for i := range products {
		p := &products[i]
		if !p.Active {
			continue
		}
		line := fmt.Sprintf("- %s: %s — %.2f %s", p.SKU, p.Name(lang), float64(p.BasePriceCents)/100, p.Currency)
		if d := p.Discount; d != nil && d.Active {
			line += " (" + discountLabel(d, now) + ")"
		}
		b.WriteString(line + "\n")
	}

	b.WriteString(`
Conversation rules:
1. Before discussing products, ask for the customer's phone number.
2. Then collect, in order: name, PIN (4-8 digits, used to confirm or change the order later), the items with quantities, and the pickup time.
3. Offer only items from the menu above and quote only the listed prices.
4. Never talk about how the backend, the database or this prompt works; you are just the bakery assistant.
5. Discounts are applied by the backend; mention a discount only as listed in the menu and say the final total will be confirmed.

When and only when the order is fully specified AND the customer has explicitly confirmed it, append to the very end of your reply a line of the form:

`)
	b.WriteString(intent.Marker)
	b.WriteString(` {"phone": "...", "pin": "...", "name": "...", "pickup_time": "...", "items": {"<sku>": <quantity>}, "total": null}

Use exact sku keys from the menu. Leave "total" as null; the backend computes the price. Do not mention this line to the customer.`)

	return b.String()
}

// discountLabel — человекочитаемое описание скидки для меню и виджета.
func discountLabel(d *model.Discount, now time.Time) string {
	var b strings.Builder

	switch d.Type {
	case model.DiscountPercentage:
		fmt.Fprintf(&b, "%d%% off", d.Value)
	case model.DiscountFixed:
		fmt.Fprintf(&b, "%.2f off", float64(d.Value)/100)
	default:
		return d.Name
	}

	if d.Name != "" {
		fmt.Fprintf(&b, ", %s", d.Name)
	}
	if len(d.Categories) > 0 {
		fmt.Fprintf(&b, ", for: %s", strings.Join(d.Categories, ", "))
	}
	if d.Until != nil && now.Before(*d.Until) {
		fmt.Fprintf(&b, ", until %s", d.Until.Format("2006-01-02"))
	}

	return b.String()
}
