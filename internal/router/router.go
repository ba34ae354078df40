package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	rh "ledger-service/internal/handler/rest"
	wsh "ledger-service/internal/handler/websocket"
	"ledger-service/internal/middleware"
)

func SetupRoutes(
	r chi.Router,
	ledgerHandler *rh.LedgerHandler,
	wsHandler *wsh.Handler,
	rdb *redis.Client,
	jwtSecret string,
	logger *zap.Logger,
) chi.Router {

	// ---- Global Middleware ----
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.RateLimiter(rdb, 100, time.Minute, 10*time.Minute, "global"))

	// ---------- Public ----------
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// ---------- Authenticated ----------
	r.Group(func(ar chi.Router) {
		ar.Use(middleware.RequireAuth(jwtSecret, logger))

		ar.Route("/ledger", func(lr chi.Router) {
			lr.Get("/", ledgerHandler.ListLedgers)
			lr.Post("/open", ledgerHandler.OpenLedger)
			lr.Get("/{id}", ledgerHandler.GetLedger)
			lr.Post("/{id}/pay", ledgerHandler.RecordPaid)
			lr.Post("/{id}/receive", ledgerHandler.RecordReceived)
		})

		ar.Get("/ws", wsHandler.HandleConnection)
	})

	return r
}
