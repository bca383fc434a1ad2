package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/juampidev/pagolink/internal/config"
	"github.com/juampidev/pagolink/internal/infra/httpclient"
	"github.com/juampidev/pagolink/internal/infra/mercadopago"
	s3infra "github.com/juampidev/pagolink/internal/infra/s3"
	pgrepo "github.com/juampidev/pagolink/internal/repo/postgres"
	redrepo "github.com/juampidev/pagolink/internal/repo/redis"
	authsvc "github.com/juampidev/pagolink/internal/services/auth"
	checkoutsvc "github.com/juampidev/pagolink/internal/services/checkout"
	linkssvc "github.com/juampidev/pagolink/internal/services/links"
	reconcilesvc "github.com/juampidev/pagolink/internal/services/reconcile"
	salessvc "github.com/juampidev/pagolink/internal/services/sales"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	eventsRepo := redrepo.NewEventsRepo(redisClient)
	saleRepo := pgrepo.NewSaleRepo(pool)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	gateway := mercadopago.NewClient(mercadopago.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		AccessToken: cfg.Gateway.AccessToken,
		Currency:    cfg.Gateway.Currency,
		HTTPClient:  httpclient.New(cfg.Gateway.Timeout),
	})
	if cfg.Gateway.AccessToken == "" {
		log.Warn("gateway access token is empty, payment calls will fail with CONFIG_ERROR")
	}

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL)
	authService := authsvc.NewService(jwtManager, sessionRepo, cfg.Auth.AdminPassword, cfg.Auth.SessionTTL)

	linksService := linkssvc.NewService(linkssvc.Dependencies{
		Store:        saleRepo,
		Events:       eventsRepo,
		Logger:       log,
		PublicOrigin: cfg.Checkout.PublicOrigin,
	})
	checkoutService := checkoutsvc.NewService(checkoutsvc.Dependencies{
		Store:   saleRepo,
		Gateway: gateway,
		Events:  eventsRepo,
		Logger:  log,
	}, checkoutsvc.Config{
		PublicOrigin:       cfg.Checkout.PublicOrigin,
		BankTransferInfo:   cfg.Checkout.BankTransferInfo,
		SubscriptionReason: cfg.Checkout.SubscriptionReason,
	})
	reconcileService := reconcilesvc.NewService(reconcilesvc.Dependencies{
		Store:   saleRepo,
		Gateway: gateway,
		Events:  eventsRepo,
		Logger:  log,
	})
	salesService := salessvc.NewService(salessvc.Dependencies{
		Store:   saleRepo,
		Events:  eventsRepo,
		Source:  eventsRepo,
		Storage: salessvc.NewS3ExportStorage(s3Client, cfg.S3.Bucket),
		Logger:  log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		AuthService:      authService,
		LinksService:     linksService,
		CheckoutService:  checkoutService,
		ReconcileService: reconcileService,
		SalesService:     salesService,
		Logger:           log,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
