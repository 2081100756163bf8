package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"servicehub/internal/config"
	"servicehub/internal/database"
	"servicehub/internal/middleware"
	"servicehub/internal/modules/availability"
	"servicehub/internal/modules/catalog"
	"servicehub/internal/modules/events"
	"servicehub/internal/modules/ledger"
	"servicehub/internal/modules/provider"
	"servicehub/internal/modules/request"
	jwtsvc "servicehub/internal/pkg/jwt"
	"servicehub/internal/pkg/response"
	"servicehub/internal/queue"
	"servicehub/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("migrate: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := repository.NewStore(db)
	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL)

	led := ledger.NewLedger(store, ledger.Rates{
		StandardBps:     cfg.StandardFeeBps,
		CancellationBps: cfg.CancellationFeeBps,
	}, log.Printf)

	hub := events.NewHub()
	defer hub.Close()

	var publisher *queue.Publisher
	if cfg.QueueEnabled {
		publisher = queue.NewPublisher(cfg.RabbitURL, cfg.EventExchange, log.Printf)
		go publisher.Run(ctx)

		consumer := queue.NewPaymentConsumer(cfg.RabbitURL, cfg.PaymentsQueue, led, log.Printf)
		go consumer.Run(ctx)
	}

	var sink events.Sink
	if publisher != nil {
		sink = publisher
	}
	requestService := request.NewService(store, led, events.NewFanout(hub, sink), request.Options{
		ConcurrencyCap: cfg.ProviderConcurrencyCap,
	}, log.Printf)

	availabilityHandler := availability.NewHandler(
		availability.NewIndex(store.Providers, store.Availability, store.Requests),
	)
	providerService := provider.NewService(store.Providers, store.Categories, provider.StoreSchedules(store), log.Printf)
	providerHandler := provider.NewHandler(providerService)
	catalogHandler := catalog.NewHandler(catalog.NewService(store.Categories, store.Providers))
	requestHandler := request.NewHandler(requestService, store.Providers)
	ledgerHandler := ledger.NewHandler(led, log.Printf)

	wsHandler := events.NewWSHandler(hub, j, originChecker(cfg.CORSAllowedOrigins), log.Printf)

	var submitLimiter gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		rdb := config.NewRedisClient()
		if rdb == nil {
			log.Println("level=warn msg=\"redis unavailable, rate limiting disabled\"")
		} else {
			defer func() { _ = rdb.Close() }()
			submitLimiter = middleware.RateLimit(cfg.RateLimit, rdb, log.Printf)
		}
	}

	r := gin.Default()
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorLogger())
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{
			"status":         "ok",
			"online_clients": hub.OnlineCount(),
		})
	})

	wsHandler.RegisterRoutes(r)

	v1 := r.Group("/api/v1")
	{
		// public
		catalogHandler.RegisterRoutes(v1)
		availabilityHandler.RegisterRoutes(v1)
		providerHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.JWTAuth(j))
		{
			providerHandler.RegisterProtectedRoutes(protected)
			requestHandler.RegisterRoutes(protected, submitLimiter)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.JWTAuth(j), middleware.AdminOnly())
		{
			providerHandler.RegisterAdminRoutes(admin)
			catalogHandler.RegisterAdminRoutes(admin)
			ledgerHandler.RegisterAdminRoutes(admin)
		}
	}

	internal := r.Group("/internal")
	internal.Use(middleware.InternalTokenAuth(cfg.InternalToken, cfg.InternalAllowedIPs))
	ledgerHandler.RegisterInternalRoutes(internal)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("level=info msg=listening addr=%s env=%s queue=%t", cfg.HTTPAddr, cfg.AppEnv, cfg.QueueEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("level=info msg=shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error msg=shutdown_failed err=%v", err)
	}
}

// originChecker mirrors the CORS allowlist for websocket upgrades. Requests
// without an Origin header (non-browser clients) are accepted.
func originChecker(extra []string) func(origin string) bool {
	allowed := map[string]bool{
		"http://localhost:3000": true,
		"http://localhost:5173": true,
		"http://127.0.0.1:3000": true,
		"http://127.0.0.1:5173": true,
	}
	for _, o := range extra {
		allowed[o] = true
	}
	return func(origin string) bool {
		return origin == "" || allowed[origin]
	}
}
