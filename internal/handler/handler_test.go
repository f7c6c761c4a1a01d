package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pekara-system/internal/middleware"
	"github.com/mmeshcher/pekara-system/internal/model"
	"github.com/mmeshcher/pekara-system/internal/repository"
	"github.com/mmeshcher/pekara-system/internal/service"
)

type stubService struct {
	chatReply   string
	lastChatReq service.ChatRequest

	configResp *service.ProjectConfig
	configErr  error

	ordersResp []model.Order
	ordersErr  error

	deliveredResp *model.Order
	deliveredErr  error

	cancelResp *model.Order
	cancelErr  error

	productsResp []model.Product
	productsErr  error

	upsertProductID  int64
	upsertProductErr error

	customersResp []model.Customer
	customersErr  error

	upsertCustomerID  int64
	upsertCustomerErr error

	deleteCustomerErr error
}

func (s *stubService) Chat(ctx context.Context, req service.ChatRequest) string {
	s.lastChatReq = req
	return s.chatReply
}

func (s *stubService) GetProjectConfig(ctx context.Context, projectID, lang string) (*service.ProjectConfig, error) {
	return s.configResp, s.configErr
}

func (s *stubService) ListOrders(ctx context.Context, projectID, status, date string) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) MarkOrderDelivered(ctx context.Context, projectID string, id int64) (*model.Order, error) {
	return s.deliveredResp, s.deliveredErr
}

func (s *stubService) CancelOrder(ctx context.Context, projectID string, id int64) (*model.Order, error) {
	return s.cancelResp, s.cancelErr
}

func (s *stubService) ListProducts(ctx context.Context, projectID string) ([]model.Product, error) {
	return s.productsResp, s.productsErr
}

func (s *stubService) UpsertProduct(ctx context.Context, p *model.Product) (int64, error) {
	return s.upsertProductID, s.upsertProductErr
}

func (s *stubService) ListCustomers(ctx context.Context, projectID string) ([]model.Customer, error) {
	return s.customersResp, s.customersErr
}

func (s *stubService) UpsertCustomer(ctx context.Context, c *model.Customer) (int64, error) {
	return s.upsertCustomerID, s.upsertCustomerErr
}

func (s *stubService) DeleteCustomer(ctx context.Context, projectID string, id int64) error {
	return s.deleteCustomerErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger, middleware.NewAdminAuth("admin", "tajna"))
}

func TestChat_ReturnsReply(t *testing.T) {
	svc := &stubService{chatReply: "Vaša narudžba je potvrđena."}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(chatRequest{
		ProjectID: "burek01",
		Lang:      "hr",
		Messages:  []model.Message{{Role: "user", Content: "dva bureka sa sirom"}},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()

	h.Chat(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp chatResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply != svc.chatReply {
		t.Fatalf("reply = %q, want %q", resp.Reply, svc.chatReply)
	}
	if svc.lastChatReq.ClientIP != "203.0.113.7" {
		t.Fatalf("clientIP = %q, want first X-Forwarded-For entry", svc.lastChatReq.ClientIP)
	}
}

func TestChat_BadRequestOnEmptyMessages(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(chatRequest{ProjectID: "burek01"})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Chat(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestChat_BadRequestOnInvalidJSON(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()

	h.Chat(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestGetConfig_JSONResponse(t *testing.T) {
	svc := &stubService{
		configResp: &service.ProjectConfig{
			ProjectID:   "burek01",
			Lang:        "de",
			Title:       "Bäckerei",
			Welcome:     "Willkommen!",
			Catalog: []service.CatalogEntry{
				{SKU: "burek_sir", Name: "Burek mit Käse", Price: 5, Currency: "EUR", DiscountLabel: "studentski popust"},
			},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/config?project=burek01&lang=de", nil)
	rec := httptest.NewRecorder()

	h.GetConfig(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp configResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Catalog) != 1 || resp.Catalog[0].Name != "Burek mit Käse" {
		t.Fatalf("catalog = %+v, want localized entry", resp.Catalog)
	}
	if resp.Catalog[0].Discount != "studentski popust" {
		t.Fatalf("discount label = %q", resp.Catalog[0].Discount)
	}
}

func TestAdminRoutes_RequireBasicAuth(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAdminListOrders_JSONResponse(t *testing.T) {
	now := time.Now().UTC()
	svc := &stubService{
		ordersResp: []model.Order{
			{
				ID:         7,
				ProjectID:  "burek01",
				Phone:      "+385911234567",
				Name:       "Ana",
				PickupTime: "08:30",
				Items:      map[string]int{"burek_sir": 2},
				TotalCents: 1000,
				Currency:   "EUR",
				Status:     model.OrderStatusConfirmed,
				CreatedAt:  now,
			},
		},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders?project=burek01&status=open", nil)
	req.SetBasicAuth("admin", "tajna")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp ordersListResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(resp.Orders))
	}
	if resp.Orders[0].Total != 10 {
		t.Fatalf("total = %v, want 10 EUR", resp.Orders[0].Total)
	}
}

func TestAdminMarkDelivered_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "not found", err: repository.ErrOrderNotFound, wantStatus: http.StatusNotFound},
		{name: "already canceled", err: repository.ErrOrderCanceled, wantStatus: http.StatusConflict},
		{name: "ok", err: nil, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{
				deliveredErr: tt.err,
				deliveredResp: &model.Order{
					ID:     7,
					Status: model.OrderStatusDelivered,
					Items:  map[string]int{},
				},
			}
			h := newTestHandler(t, svc)
			router := h.SetupRouter()

			req := httptest.NewRequest(http.MethodPost, "/api/admin/orders/7/delivered", nil)
			req.SetBasicAuth("admin", "tajna")
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Result().StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestAdminCancelOrder_ConflictOnDelivered(t *testing.T) {
	svc := &stubService{cancelErr: repository.ErrOrderDelivered}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/orders/7/cancel", nil)
	req.SetBasicAuth("admin", "tajna")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestAdminUpsertProduct_AcceptsStringCategories(t *testing.T) {
	svc := &stubService{upsertProductID: 3}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body := `{
		"project_id": "burek01",
		"sku": "burek_sir",
		"name_hr": "Burek sa sirom",
		"base_price": 5.0,
		"is_active": true,
		"is_discount_active": true,
		"discount_type": "percentage",
		"discount_value": 20,
		"discount_name": "studentski popust",
		"allowed_categories": "student; ucenik"
	}`

	req := httptest.NewRequest(http.MethodPost, "/api/admin/products", strings.NewReader(body))
	req.SetBasicAuth("admin", "tajna")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp productPayload
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 3 {
		t.Fatalf("id = %d, want 3", resp.ID)
	}
	if len(resp.AllowedCategories) != 2 || resp.AllowedCategories[0] != "student" {
		t.Fatalf("categories = %v, want [student ucenik]", resp.AllowedCategories)
	}
}

func TestAdminUpsertCustomer_BadRequestOnServiceError(t *testing.T) {
	svc := &stubService{upsertCustomerErr: context.DeadlineExceeded}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(customerPayload{
		ProjectID: "burek01",
		Phone:     "abc",
		PIN:       "1234",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/customers", bytes.NewReader(body))
	req.SetBasicAuth("admin", "tajna")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAdminDeleteCustomer_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/customers/5", nil)
	req.SetBasicAuth("admin", "tajna")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNoContent)
	}
}
