package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/pekara-system/internal/model"
	"github.com/mmeshcher/pekara-system/internal/repository"
	"github.com/mmeshcher/pekara-system/internal/validation"
)

func projectFromQuery(r *http.Request) string {
	project := r.URL.Query().Get("project")
	if project == "" {
		project = model.DefaultProjectID
	}
	return project
}

type ordersListResponse struct {
	Orders []orderResponse `json:"orders"`
}

// AdminListOrders возвращает заказы проекта по группе статусов и дате.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	project := projectFromQuery(r)
	status := r.URL.Query().Get("status")
	date := r.URL.Query().Get("date")

	orders, err := h.service.ListOrders(r.Context(), project, status, date)
	if err != nil {
		h.logger.Error("admin list orders", zap.Error(err), zap.String("project", project))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := ordersListResponse{Orders: make([]orderResponse, 0, len(orders))}
	for i := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(&orders[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

func orderIDFromURL(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// AdminMarkDelivered отмечает заказ доставленным; повторный вызов — no-op.
func (h *Handler) AdminMarkDelivered(w http.ResponseWriter, r *http.Request) {
	h.adminOrderTransition(w, r, h.service.MarkOrderDelivered)
}

// AdminCancelOrder отменяет заказ; доставленный заказ отменить нельзя.
func (h *Handler) AdminCancelOrder(w http.ResponseWriter, r *http.Request) {
	h.adminOrderTransition(w, r, h.service.CancelOrder)
}

func (h *Handler) adminOrderTransition(w http.ResponseWriter, r *http.Request, transition func(ctx context.Context, projectID string, id int64) (*model.Order, error)) {
	project := projectFromQuery(r)

	id, ok := orderIDFromURL(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	o, err := transition(r.Context(), project, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrOrderDelivered), errors.Is(err, repository.ErrOrderCanceled):
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
		default:
			h.logger.Error("admin order transition", zap.Error(err), zap.Int64("orderID", id))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// categoryList принимает категории и как JSON-массив, и как строку с
// разделителями.
type categoryList []string

func (c *categoryList) UnmarshalJSON(data []byte) error {
	var asSlice []string
	if err := json.Unmarshal(data, &asSlice); err == nil {
		var res []string
		for _, s := range asSlice {
			s = strings.TrimSpace(s)
			if s != "" {
				res = append(res, s)
			}
		}
		*c = res
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err != nil {
		return err
	}
	*c = validation.SplitCategories(asString)
	return nil
}

type productPayload struct {
	ID                int64        `json:"id,omitempty"`
	ProjectID         string       `json:"project_id"`
	SKU               string       `json:"sku"`
	NameHR            string       `json:"name_hr"`
	NameDE            string       `json:"name_de"`
	NameEN            string       `json:"name_en"`
	BasePrice         float64      `json:"base_price"`
	Currency          string       `json:"currency"`
	IsActive          bool         `json:"is_active"`
	IsDiscountActive  bool         `json:"is_discount_active"`
	DiscountType      string       `json:"discount_type,omitempty"`
	DiscountValue     float64      `json:"discount_value,omitempty"`
	DiscountName      string       `json:"discount_name,omitempty"`
	AllowedCategories categoryList `json:"allowed_categories,omitempty"`
	DiscountFrom      *time.Time   `json:"discount_from,omitempty"`
	DiscountUntil     *time.Time   `json:"discount_until,omitempty"`
}

func toProductPayload(p *model.Product) productPayload {
	out := productPayload{
		ID:        p.ID,
		ProjectID: p.ProjectID,
		SKU:       p.SKU,
		NameHR:    p.Names["hr"],
		NameDE:    p.Names["de"],
		NameEN:    p.Names["en"],
		BasePrice: float64(p.BasePriceCents) / 100,
		Currency:  p.Currency,
		IsActive:  p.Active,
	}
	if d := p.Discount; d != nil {
		out.IsDiscountActive = d.Active
		out.DiscountType = string(d.Type)
		out.DiscountName = d.Name
		out.AllowedCategories = categoryList(d.Categories)
		out.DiscountFrom = d.From
		out.DiscountUntil = d.Until
		if d.Type == model.DiscountFixed {
			out.DiscountValue = float64(d.Value) / 100
		} else {
			out.DiscountValue = float64(d.Value)
		}
	}
	return out
}

func (p *productPayload) toModel() *model.Product {
	out := &model.Product{
		ID:        p.ID,
		ProjectID: p.ProjectID,
		SKU:       strings.TrimSpace(p.SKU),
		Names: map[string]string{
			"hr": p.NameHR,
			"de": p.NameDE,
			"en": p.NameEN,
		},
		BasePriceCents: int64(p.BasePrice*100 + 0.5),
		Currency:       p.Currency,
		Active:         p.IsActive,
	}
	if p.IsDiscountActive || p.DiscountType != "" {
		value := int64(p.DiscountValue + 0.5)
		if p.DiscountType == string(model.DiscountFixed) {
			value = int64(p.DiscountValue*100 + 0.5)
		}
		out.Discount = &model.Discount{
			Active:     p.IsDiscountActive,
			Type:       model.DiscountType(p.DiscountType),
			Value:      value,
			Name:       p.DiscountName,
			Categories: p.AllowedCategories,
			From:       p.DiscountFrom,
			Until:      p.DiscountUntil,
		}
	}
	return out
}

// AdminListProducts возвращает все товары проекта.
func (h *Handler) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	project := projectFromQuery(r)

	products, err := h.service.ListProducts(r.Context(), project)
	if err != nil {
		h.logger.Error("admin list products", zap.Error(err), zap.String("project", project))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]productPayload, 0, len(products))
	for i := range products {
		resp = append(resp, toProductPayload(&products[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AdminUpsertProduct создаёт или обновляет товар по (project, sku).
func (h *Handler) AdminUpsertProduct(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	p := payload.toModel()
	id, err := h.service.UpsertProduct(r.Context(), p)
	if err != nil {
		h.logger.Warn("admin upsert product", zap.Error(err), zap.String("sku", p.SKU))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	p.ID = id

	writeJSON(w, http.StatusOK, toProductPayload(p))
}

type customerPayload struct {
	ID         int64        `json:"id,omitempty"`
	ProjectID  string       `json:"project_id"`
	Phone      string       `json:"phone"`
	PIN        string       `json:"pin"`
	Name       string       `json:"name"`
	Categories categoryList `json:"categories,omitempty"`
	CreatedAt  string       `json:"created_at,omitempty"`
}

func toCustomerPayload(c *model.Customer) customerPayload {
	return customerPayload{
		ID:         c.ID,
		ProjectID:  c.ProjectID,
		Phone:      c.Phone,
		PIN:        c.PIN,
		Name:       c.Name,
		Categories: categoryList(c.Categories),
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
	}
}

// AdminListCustomers возвращает всех покупателей проекта.
func (h *Handler) AdminListCustomers(w http.ResponseWriter, r *http.Request) {
	project := projectFromQuery(r)

	customers, err := h.service.ListCustomers(r.Context(), project)
	if err != nil {
		h.logger.Error("admin list customers", zap.Error(err), zap.String("project", project))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]customerPayload, 0, len(customers))
	for i := range customers {
		resp = append(resp, toCustomerPayload(&customers[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AdminUpsertCustomer создаёт или обновляет покупателя по (project, phone).
func (h *Handler) AdminUpsertCustomer(w http.ResponseWriter, r *http.Request) {
	var payload customerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	c := &model.Customer{
		ProjectID:  payload.ProjectID,
		Phone:      payload.Phone,
		PIN:        payload.PIN,
		Name:       payload.Name,
		Categories: payload.Categories,
	}

	id, err := h.service.UpsertCustomer(r.Context(), c)
	if err != nil {
		h.logger.Warn("admin upsert customer", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	c.ID = id

	writeJSON(w, http.StatusOK, toCustomerPayload(c))
}

// AdminDeleteCustomer удаляет покупателя по идентификатору.
func (h *Handler) AdminDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	project := projectFromQuery(r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteCustomer(r.Context(), project, id); err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("admin delete customer", zap.Error(err), zap.Int64("customerID", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
