package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/pekara-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса пекарни.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", h.GetConfig)
		r.Post("/chat", h.Chat)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.adminAuth.Middleware)

			r.Get("/orders", h.AdminListOrders)
			r.Post("/orders/{id}/delivered", h.AdminMarkDelivered)
			r.Post("/orders/{id}/cancel", h.AdminCancelOrder)

			r.Get("/products", h.AdminListProducts)
			r.Post("/products", h.AdminUpsertProduct)

			r.Get("/customers", h.AdminListCustomers)
			r.Post("/customers", h.AdminUpsertCustomer)
			r.Delete("/customers/{id}", h.AdminDeleteCustomer)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
