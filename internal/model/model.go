// Package model содержит доменные сущности сервиса приёма заказов пекарни.
package model

import "time"

// DefaultProjectID — проект по умолчанию, если клиент его не указал.
const DefaultProjectID = "burek01"

// DiscountType описывает способ вычисления скидки.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Discount описывает правило скидки товара.
type Discount struct {
	// Active выключает скидку без удаления её настроек.
	Active bool
	Type   DiscountType
	// Value — проценты для percentage и центы для fixed.
	Value int64
	Name  string
	// Categories — категории покупателей, для которых действует скидка.
	// Пустой список означает «для всех».
	Categories []string
	// From и Until задают необязательное окно действия скидки.
	From  *time.Time
	Until *time.Time
}

// Product описывает товар каталога проекта.
type Product struct {
	ID        int64
	ProjectID string
	SKU       string
	// Names — отображаемые названия по кодам языка (hr, de, en).
	Names          map[string]string
	BasePriceCents int64
	Currency       string
	Active         bool
	Discount       *Discount
	CreatedAt      time.Time
}

// Name возвращает название товара для языка lang с фолбэком на хорватский и SKU.
func (p *Product) Name(lang string) string {
	if n, ok := p.Names[lang]; ok && n != "" {
		return n
	}
	if n, ok := p.Names["hr"]; ok && n != "" {
		return n
	}
	return p.SKU
}

// Customer описывает покупателя, идентифицируемого телефоном внутри проекта.
type Customer struct {
	ID        int64
	ProjectID string
	Phone     string
	// PIN — секрет, предъявляемый при каждом подтверждении заказа.
	PIN        string
	Name       string
	Categories []string
	CreatedAt  time.Time
}

// OrderStatus описывает статус заказа в журнале.
type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCanceled  OrderStatus = "canceled"
)

// OrderLine содержит расчёт цены по одной позиции заказа.
type OrderLine struct {
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`
	UnitBaseCents  int64  `json:"unit_base_cents"`
	UnitFinalCents int64  `json:"unit_final_cents"`
	DiscountName   string `json:"discount_name,omitempty"`
}

// Order описывает подтверждённый заказ.
type Order struct {
	ID         int64
	ProjectID  string
	Phone      string
	PIN        string
	Name       string
	PickupTime string
	// Items — количество по SKU, как его сформулировал покупатель.
	Items map[string]int
	// Lines — авторитетная разбивка цен, вычисленная сервером.
	Lines      []OrderLine
	TotalCents int64
	Currency   string
	Status     OrderStatus
	// SupersedesID указывает на заказ, который этот заказ отменил.
	SupersedesID *int64
	ClientIP     string
	UserAgent    string
	CreatedAt    time.Time
}

// OrderIntent — структурированный блок, который языковая модель добавляет
// к ответу, когда заказ полностью согласован с покупателем.
type OrderIntent struct {
	Phone      string         `json:"phone"`
	PIN        string         `json:"pin"`
	Name       string         `json:"name"`
	PickupTime string         `json:"pickup_time"`
	Items      map[string]int `json:"items"`
	// Total — справочная сумма модели; сервер её отбрасывает и считает сам.
	Total *float64 `json:"total"`
}

// Message — одна реплика диалога в формате chat completions.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
