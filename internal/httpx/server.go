package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	healthcheck "github.com/vladislavdragonenkov/vstore/internal/health"
	"github.com/vladislavdragonenkov/vstore/internal/service/auth"
)

// RouterDeps — обработчики и сквозные зависимости HTTP-слоя.
type RouterDeps struct {
	Orders   *OrdersHandler
	Products *ProductsHandler
	Payments *PaymentsHandler
	Auth     *AuthHandler
	Health   *healthcheck.Handler

	// Tokens включает проверку Bearer-токена на админских маршрутах.
	// nil отключает проверку.
	Tokens *auth.TokenIssuer
}

// NewRouter собирает chi-роутер со всеми маршрутами API.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	if deps.Health != nil {
		r.Method(http.MethodGet, "/healthz", deps.Health)
		r.Get("/readyz", deps.Health.ReadinessHandler)
	}
	r.Get("/livez", healthcheck.LivenessHandler)

	r.Route("/api", func(r chi.Router) {
		if deps.Products != nil {
			r.Get("/products", deps.Products.listProducts)
			r.Get("/products/{id}", deps.Products.getProduct)

			r.Group(func(r chi.Router) {
				r.Use(RequireAuth(deps.Tokens))
				r.Post("/products", deps.Products.createProduct)
				r.Put("/products/{id}", deps.Products.updateProduct)
				r.Delete("/products/{id}", deps.Products.deleteProduct)
				r.Patch("/products/{id}/stock", deps.Products.setStock)
			})
		}

		if deps.Orders != nil {
			r.Post("/orders", deps.Orders.placeOrder)

			r.Group(func(r chi.Router) {
				r.Use(RequireAuth(deps.Tokens))
				r.Get("/orders", deps.Orders.listOrders)
				r.Get("/orders/{id}", deps.Orders.getOrder)
				r.Get("/orders/{id}/timeline", deps.Orders.getTimeline)
				r.Patch("/orders/{id}/status", deps.Orders.updateStatus)
			})
		}

		if deps.Payments != nil {
			r.Post("/payments/create-order", deps.Payments.createGatewayOrder)
			r.Post("/payments/verify", deps.Payments.verifyAndPlace)
			r.Post("/payments/webhook", deps.Payments.webhook)
		}

		if deps.Auth != nil {
			r.Post("/auth/send-otp", deps.Auth.sendOTP)
			r.Post("/auth/verify-otp", deps.Auth.verifyOTP)
		}
	})

	return r
}
