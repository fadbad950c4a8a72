package server

import (
	"net/netip"
	"time"

	"blockwatch/internal/handlers"
	"blockwatch/internal/middlewares"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupRouter(ctx *middlewares.AppContext, trusted []netip.Prefix, verifier *middlewares.TokenVerifier) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middlewares.ClientIPMiddleware(trusted))
	r.Use(middlewares.ActorMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middlewares.MetricsMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(middlewares.AppContextMiddleware(ctx))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ctx.Config.CORS.AllowedOrigins,
		AllowedMethods:   ctx.Config.CORS.AllowedMethods,
		AllowedHeaders:   ctx.Config.CORS.AllowedHeaders,
		ExposedHeaders:   ctx.Config.CORS.ExposedHeaders,
		AllowCredentials: ctx.Config.CORS.AllowCredentials,
		MaxAge:           ctx.Config.CORS.MaxAgeSeconds,
	}))

	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", ctx.HandlerFunc(handlers.HandlerHealth))

		r.Get("/blocks", ctx.HandlerFunc(handlers.GETBlocks))
		r.Get("/blocks/{ip}", ctx.HandlerFunc(handlers.GETBlock))
		r.Get("/history", ctx.HandlerFunc(handlers.GETHistory))

		r.Group(func(r chi.Router) {
			r.Use(middlewares.RequireToken(verifier))
			r.Post("/blocks", ctx.HandlerFunc(handlers.POSTBlock))
			r.Post("/blocks/domain", ctx.HandlerFunc(handlers.POSTBlockDomain))
			r.Delete("/blocks/{ip}", ctx.HandlerFunc(handlers.DELETEBlock))
			r.Post("/sweep", ctx.HandlerFunc(handlers.POSTSweep))
		})
	})

	return r
}

func setupDebugRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Mount("/debug", middleware.Profiler())

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
