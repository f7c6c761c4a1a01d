// Package service реализует бизнес-логику сервиса приёма заказов: конвейер
// диалогового оформления заказа и операции админского контура.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pekara-system/internal/identity"
	"github.com/mmeshcher/pekara-system/internal/intent"
	"github.com/mmeshcher/pekara-system/internal/locale"
	"github.com/mmeshcher/pekara-system/internal/model"
	"github.com/mmeshcher/pekara-system/internal/pricing"
	"github.com/mmeshcher/pekara-system/internal/repository"
	"github.com/mmeshcher/pekara-system/internal/validation"
)

// maxHistoryMessages ограничивает длину пересылаемой истории диалога,
// чтобы не раздувать промпт: клиент присылает историю целиком каждый ход.
const maxHistoryMessages = 20

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	ListProducts(ctx context.Context, projectID string) ([]model.Product, error)
	UpsertProduct(ctx context.Context, p *model.Product) (int64, error)

	ListCustomers(ctx context.Context, projectID string) ([]model.Customer, error)
	GetCustomerByPhone(ctx context.Context, projectID, phone string) (*model.Customer, error)
	CreateCustomer(ctx context.Context, c *model.Customer) (int64, error)
	UpdateCustomerName(ctx context.Context, projectID, phone, name string) error
	UpsertCustomer(ctx context.Context, c *model.Customer) (int64, error)
	DeleteCustomer(ctx context.Context, projectID string, id int64) error

	CreateOrder(ctx context.Context, o *model.Order) (int64, *int64, error)
	GetOrder(ctx context.Context, projectID string, id int64) (*model.Order, error)
	ListOrders(ctx context.Context, projectID string, group repository.OrderStatusGroup, date repository.OrderDateFilter) ([]model.Order, error)
	MarkDelivered(ctx context.Context, projectID string, id int64) (*model.Order, error)
	CancelOrder(ctx context.Context, projectID string, id int64) (*model.Order, error)
}

// Completer — контракт сервиса генерации текста.
type Completer interface {
	Complete(ctx context.Context, messages []model.Message) (string, error)
}

// EventSink получает события жизненного цикла заказов.
type EventSink interface {
	OrderConfirmed(o *model.Order)
	OrderDelivered(o *model.Order)
	OrderCanceled(o *model.Order)
}

// Service содержит бизнес-логику сервиса приёма заказов.
type Service struct {
	repo      Repository
	completer Completer
	gate      *identity.Gate
	events    EventSink
	logger    *zap.Logger
	// now подменяется в тестах; прайсинг — чистая функция времени.
	now func() time.Time
}

// NewService создаёт сервис. events может быть nil, если событийный контур
// не сконфигурирован.
func NewService(repo Repository, completer Completer, events EventSink, logger *zap.Logger) *Service {
	return &Service{
		repo:      repo,
		completer: completer,
		gate:      identity.NewGate(repo, nil),
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// ChatRequest — один ход диалога. Messages содержит ограниченную историю
// вместе с последней репликой пользователя; сервер между ходами состояния
// не хранит.
type ChatRequest struct {
	ProjectID string
	Lang      string
	Messages  []model.Message
	ClientIP  string
	UserAgent string
}

// Chat выполняет один ход диалога: собирает промпт, получает ответ модели,
// извлекает структурированный заказ и проводит его через конвейер
// личность → цена → журнал.
//
// Все ошибки преобразуются в локализованную реплику: наружу не выходят ни
// внутренние коды, ни сырые ошибки. Заказ либо записан целиком, либо не
// записан вовсе.
func (s *Service) Chat(ctx context.Context, req ChatRequest) string {
	projectID := req.ProjectID
	if projectID == "" {
		projectID = model.DefaultProjectID
	}
	lang := locale.Resolve(req.Lang)
	tx := locale.Get(lang)

	products, err := s.repo.ListProducts(ctx, projectID)
	if err != nil {
		s.logger.Error("load catalog", zap.Error(err), zap.String("project", projectID))
		return tx.ErrGeneric
	}

	history := req.Messages
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}

	messages := make([]model.Message, 0, len(history)+1)
	messages = append(messages, model.Message{
		Role:    "system",
		Content: buildSystemPrompt(lang, tx, products),
	})
	messages = append(messages, history...)

	text, err := s.completer.Complete(ctx, messages)
	if err != nil {
		s.logger.Error("completion failed", zap.Error(err), zap.String("project", projectID))
		return tx.ErrGeneric
	}
	if text == "" {
		text = "OK."
	}

	parsed := intent.Parse(text)
	if parsed.ParseErr != nil {
		// Мягкая ошибка: диалог продолжается без заказа в этом ходе.
		s.logger.Warn("order payload parse failed",
			zap.Error(parsed.ParseErr),
			zap.String("project", projectID),
		)
	}
	if parsed.Payload == nil {
		if parsed.Reply == "" {
			return tx.Welcome
		}
		return parsed.Reply
	}

	return s.confirmOrder(ctx, projectID, tx, products, parsed, req)
}

// confirmOrder проводит извлечённый заказ через гейт личности, прайсинг и
// журнал. Любой отказ до записи означает, что заказ не существует.
func (s *Service) confirmOrder(ctx context.Context, projectID string, tx locale.Texts, products []model.Product, parsed intent.ParsedTurn, req ChatRequest) string {
	payload := parsed.Payload

	res, err := s.gate.Resolve(ctx, projectID, payload.Phone, payload.PIN, payload.Name)
	if err != nil {
		s.logger.Error("identity gate", zap.Error(err), zap.String("project", projectID))
		return tx.ErrGeneric
	}

	switch res.Status {
	case identity.StatusNoPhone:
		return tx.ErrMissingPhone
	case identity.StatusNoPIN:
		return tx.ErrMissingPIN
	case identity.StatusWrongPIN:
		// Жёсткая граница безопасности: ни заказа, ни расчёта цены.
		// Сам PIN в лог не попадает.
		s.logger.Warn("wrong pin on order confirmation",
			zap.String("project", projectID),
			zap.String("phone", validation.NormalizePhone(payload.Phone)),
		)
		return tx.ErrWrongPIN
	case identity.StatusOK:
	default:
		return tx.ErrGeneric
	}

	customer := res.Customer

	quote := pricing.Compute(products, customer.Categories, payload.Items, s.now())
	for _, sku := range quote.Skipped {
		// Расхождение каталога и модели, не ошибка пользователя.
		s.logger.Warn("sku not in active catalog",
			zap.String("project", projectID),
			zap.String("sku", sku),
		)
	}
	if len(quote.Lines) == 0 {
		s.logger.Warn("order payload without priceable items",
			zap.String("project", projectID),
			zap.String("phone", customer.Phone),
		)
		return tx.ErrGeneric
	}

	order := &model.Order{
		ProjectID:  projectID,
		Phone:      customer.Phone,
		PIN:        payload.PIN,
		Name:       customer.Name,
		PickupTime: payload.PickupTime,
		Items:      payload.Items,
		Lines:      quote.Lines,
		TotalCents: quote.TotalCents,
		Currency:   quote.Currency,
		Status:     model.OrderStatusConfirmed,
		ClientIP:   req.ClientIP,
		UserAgent:  req.UserAgent,
	}

	id, superseded, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		s.logger.Error("create order",
			zap.Error(err),
			zap.String("project", projectID),
			zap.String("phone", customer.Phone),
		)
		return tx.ErrGeneric
	}
	order.ID = id
	order.SupersedesID = superseded

	if superseded != nil {
		s.logger.Info("order superseded",
			zap.Int64("orderID", id),
			zap.Int64("supersededID", *superseded),
			zap.String("phone", customer.Phone),
		)
	}

	if s.events != nil {
		s.events.OrderConfirmed(order)
	}

	confirmation := fmt.Sprintf(tx.ConfirmedFmt, float64(quote.TotalCents)/100, quote.Currency)
	if parsed.Reply == "" {
		return confirmation
	}
	return parsed.Reply + "\n\n" + confirmation
}

// CatalogEntry — строка каталога для виджета.
type CatalogEntry struct {
	SKU           string
	Name          string
	Price         float64
	Currency      string
	DiscountLabel string
}

// ProjectConfig — данные для начального экрана виджета.
type ProjectConfig struct {
	ProjectID   string
	Lang        string
	Title       string
	Description string
	Welcome     string
	Catalog     []CatalogEntry
}

// GetProjectConfig возвращает локализованные тексты и каталог проекта.
func (s *Service) GetProjectConfig(ctx context.Context, projectID, lang string) (*ProjectConfig, error) {
	if projectID == "" {
		projectID = model.DefaultProjectID
	}
	lang = locale.Resolve(lang)
	tx := locale.Get(lang)

	products, err := s.repo.ListProducts(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	cfg := &ProjectConfig{
		ProjectID:   projectID,
		Lang:        lang,
		Title:       tx.Title,
		Description: tx.Description,
		Welcome:     tx.Welcome,
	}

	now := s.now()
	for i := range products {
		p := &products[i]
		if !p.Active {
			continue
		}
		entry := CatalogEntry{
			SKU:      p.SKU,
			Name:     p.Name(lang),
			Price:    float64(p.BasePriceCents) / 100,
			Currency: p.Currency,
		}
		if d := p.Discount; d != nil && d.Active {
			entry.DiscountLabel = discountLabel(d, now)
		}
		cfg.Catalog = append(cfg.Catalog, entry)
	}

	return cfg, nil
}

// ListOrders возвращает заказы проекта для админского списка.
func (s *Service) ListOrders(ctx context.Context, projectID, status, date string) ([]model.Order, error) {
	group := repository.OrderGroupAll
	if status == string(repository.OrderGroupOpen) {
		group = repository.OrderGroupOpen
	}
	dateFilter := repository.OrderDateAll
	if date == string(repository.OrderDateToday) {
		dateFilter = repository.OrderDateToday
	}
	return s.repo.ListOrders(ctx, projectID, group, dateFilter)
}

// MarkOrderDelivered отмечает заказ доставленным. Повторная отметка — no-op.
func (s *Service) MarkOrderDelivered(ctx context.Context, projectID string, id int64) (*model.Order, error) {
	o, err := s.repo.MarkDelivered(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		s.events.OrderDelivered(o)
	}
	return o, nil
}

// CancelOrder отменяет заказ. Доставленный заказ отменить нельзя.
func (s *Service) CancelOrder(ctx context.Context, projectID string, id int64) (*model.Order, error) {
	o, err := s.repo.CancelOrder(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		s.events.OrderCanceled(o)
	}
	return o, nil
}

// ListProducts возвращает все товары проекта для админского контура.
func (s *Service) ListProducts(ctx context.Context, projectID string) ([]model.Product, error) {
	return s.repo.ListProducts(ctx, projectID)
}

// UpsertProduct валидирует и сохраняет товар.
func (s *Service) UpsertProduct(ctx context.Context, p *model.Product) (int64, error) {
	if p.SKU == "" {
		return 0, errors.New("sku is required")
	}
	if p.BasePriceCents < 0 {
		return 0, errors.New("base price must not be negative")
	}
	if p.ProjectID == "" {
		p.ProjectID = model.DefaultProjectID
	}
	if p.Currency == "" {
		p.Currency = pricing.DefaultCurrency
	}
	return s.repo.UpsertProduct(ctx, p)
}

// ListCustomers возвращает всех покупателей проекта.
func (s *Service) ListCustomers(ctx context.Context, projectID string) ([]model.Customer, error) {
	return s.repo.ListCustomers(ctx, projectID)
}

// UpsertCustomer валидирует и сохраняет покупателя. В отличие от чата
// админский контур может менять PIN и категории.
func (s *Service) UpsertCustomer(ctx context.Context, c *model.Customer) (int64, error) {
	c.Phone = validation.NormalizePhone(c.Phone)
	if !validation.IsValidPhone(c.Phone) {
		return 0, errors.New("phone is required")
	}
	if c.PIN == "" {
		return 0, errors.New("pin is required")
	}
	if c.ProjectID == "" {
		c.ProjectID = model.DefaultProjectID
	}
	return s.repo.UpsertCustomer(ctx, c)
}

// DeleteCustomer удаляет покупателя.
func (s *Service) DeleteCustomer(ctx context.Context, projectID string, id int64) error {
	return s.repo.DeleteCustomer(ctx, projectID, id)
}
