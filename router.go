package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	adminapi "ms-storefront/internal/admin/api"
	"ms-storefront/internal/auth"
	chatapi "ms-storefront/internal/chat/api"
	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	orderapi "ms-storefront/internal/order/api"
	paymentapi "ms-storefront/internal/payment/api"
	"ms-storefront/internal/utils"
)

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", ww.Status()), time.Since(start).String())
		})
	}
}

func newRouter(cfg *config.Config, svc services, log *logger.Logger) http.Handler {
	authHandler := &adminapi.Handler{
		Service:      svc.sessions,
		Logger:       log,
		CookieName:   cfg.Auth.CookieName,
		CookieSecure: cfg.Auth.CookieSecure,
	}
	orderHandler := &orderapi.Handler{OrderService: svc.orders, Logger: log}
	chatHandler := &chatapi.Handler{Service: svc.chat, Logger: log}
	streamHandler := &chatapi.StreamHandler{Service: svc.chat, Events: svc.events, Logger: log}
	paymentHandler := &paymentapi.Handler{Service: svc.payments, Logger: log, PublicBaseURL: cfg.Server.PublicBaseURL}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})

	// --- Public Routes ---
	r.Route("/admin/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/check", authHandler.Check)
	})
	log.Info("ROUTER", "Auth routes registered under /admin/auth")

	r.Route("/payments", func(r chi.Router) {
		r.Post("/tokens", paymentHandler.IssueToken)
		r.Get("/tokens/{token}/qr", paymentHandler.QRCode)
		r.Post("/verify-token", paymentHandler.VerifyToken)
		r.Get("/verify/{token}", paymentHandler.Verify)
	})
	log.Info("ROUTER", "Payment routes registered under /payments")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(svc.sessions, cfg.Auth.CookieName, log))

		r.Route("/admin/orders", func(r chi.Router) {
			r.Get("/", orderHandler.ListOrders)
			r.Get("/{id}", orderHandler.GetOrder)
			r.Patch("/{id}", orderHandler.UpdateOrder)
		})
		log.Info("ROUTER", "Order routes registered under /admin/orders")

		r.Route("/admin/chat", func(r chi.Router) {
			r.Get("/rooms", chatHandler.ListRooms)
			r.Get("/messages/{roomId}", chatHandler.ListMessages)
			r.Post("/messages/{roomId}", chatHandler.SendMessage)
			r.Get("/stream/{roomId}", streamHandler.Stream)
		})
		log.Info("ROUTER", "Chat routes registered under /admin/chat")
	})

	return r
}
