// Package handler содержит HTTP-обработчики API сервиса приёма заказов.
package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pekara-system/internal/middleware"
	"github.com/mmeshcher/pekara-system/internal/model"
	"github.com/mmeshcher/pekara-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Chat(ctx context.Context, req service.ChatRequest) string
	GetProjectConfig(ctx context.Context, projectID, lang string) (*service.ProjectConfig, error)

	ListOrders(ctx context.Context, projectID, status, date string) ([]model.Order, error)
	MarkOrderDelivered(ctx context.Context, projectID string, id int64) (*model.Order, error)
	CancelOrder(ctx context.Context, projectID string, id int64) (*model.Order, error)

	ListProducts(ctx context.Context, projectID string) ([]model.Product, error)
	UpsertProduct(ctx context.Context, p *model.Product) (int64, error)

	ListCustomers(ctx context.Context, projectID string) ([]model.Customer, error)
	UpsertCustomer(ctx context.Context, c *model.Customer) (int64, error)
	DeleteCustomer(ctx context.Context, projectID string, id int64) error
}

// Handler реализует HTTP-обработчики API сервиса приёма заказов.
type Handler struct {
	service   Service
	logger    *zap.Logger
	adminAuth *middleware.AdminAuth
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, adminAuth *middleware.AdminAuth) *Handler {
	return &Handler{
		service:   s,
		logger:    logger,
		adminAuth: adminAuth,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// clientIP возвращает адрес клиента с учётом реверс-прокси.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type catalogEntryResponse struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Discount string  `json:"discount,omitempty"`
}

type configResponse struct {
	ProjectID   string                 `json:"project_id"`
	Lang        string                 `json:"lang"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Welcome     string                 `json:"welcome"`
	Catalog     []catalogEntryResponse `json:"catalog"`
}

// GetConfig возвращает локализованные тексты виджета и каталог проекта.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project")
	lang := r.URL.Query().Get("lang")

	cfg, err := h.service.GetProjectConfig(r.Context(), projectID, lang)
	if err != nil {
		h.logger.Error("get project config", zap.Error(err), zap.String("project", projectID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := configResponse{
		ProjectID:   cfg.ProjectID,
		Lang:        cfg.Lang,
		Title:       cfg.Title,
		Description: cfg.Description,
		Welcome:     cfg.Welcome,
		Catalog:     make([]catalogEntryResponse, 0, len(cfg.Catalog)),
	}
	for _, e := range cfg.Catalog {
		resp.Catalog = append(resp.Catalog, catalogEntryResponse{
			SKU:      e.SKU,
			Name:     e.Name,
			Price:    e.Price,
			Currency: e.Currency,
			Discount: e.DiscountLabel,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type chatRequest struct {
	ProjectID string          `json:"projectId"`
	Lang      string          `json:"lang"`
	Messages  []model.Message `json:"messages"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Chat обрабатывает один ход диалога. Структурированный блок заказа
// потребляется сервером; клиент всегда получает только текст реплики.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if len(req.Messages) == 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	reply := h.service.Chat(r.Context(), service.ChatRequest{
		ProjectID: req.ProjectID,
		Lang:      req.Lang,
		Messages:  req.Messages,
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	})

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

type orderResponse struct {
	ID           int64          `json:"id"`
	CreatedAt    string         `json:"created_at"`
	UserName     string         `json:"user_name"`
	UserPhone    string         `json:"user_phone"`
	PickupTime   string         `json:"pickup_time"`
	Items        map[string]int `json:"items"`
	Total        float64        `json:"total"`
	Currency     string         `json:"currency"`
	Status       string         `json:"status"`
	SupersedesID *int64         `json:"supersedes_id,omitempty"`
}

func toOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:           o.ID,
		CreatedAt:    o.CreatedAt.Format(time.RFC3339),
		UserName:     o.Name,
		UserPhone:    o.Phone,
		PickupTime:   o.PickupTime,
		Items:        o.Items,
		Total:        float64(o.TotalCents) / 100,
		Currency:     o.Currency,
		Status:       string(o.Status),
		SupersedesID: o.SupersedesID,
	}
}
