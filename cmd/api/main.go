package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	"storefront/internal/infra/events"
	"storefront/internal/infra/idempotency"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/infra/token"
	"storefront/internal/logging"
	"storefront/internal/server"
	"storefront/internal/tracing"
	"storefront/internal/usecase"
	auth "storefront/internal/usecase/auth_usecase"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	//.envは無くてもよい（本番は環境変数）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.IsProd(), cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		os.Exit(stopped(logger, err))
	}
}

// os.Exitはdeferを飛ばすので、ここで書き出してから終了コードを返す
func stopped(logger *zap.Logger, err error) int {
	logger.Error("server stopped", zap.Error(err))
	_ = logger.Sync()
	return 1
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing.Setup()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	categoryRepo := infraRepo.NewCategoryGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB, cfg.CartLockTimeout)

	//二重送信ガード（REDIS_ADDRが空なら無し）
	var guard usecase.CheckoutGuard = idempotency.NoopGuard{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()
		guard = idempotency.NewRedisGuard(rdb, cfg.CheckoutGuardTTL)
	}

	publisher, err := events.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = publisher.Close() }()

	//JWT
	tokens := token.NewJWTManager(cfg.JWTSecret, cfg.AccessTTL)

	//Usecase生成
	cartUC := usecase.NewCartUsecase(txm, cartRepo, cartRepo, productRepo, logger)
	productUC := usecase.NewProductUsecase(txm, productRepo, cartUC, logger)
	categoryUC := usecase.NewCategoryUsecase(txm, categoryRepo, logger)
	orderUC := usecase.NewOrderUsecase(txm, guard, publisher, logger)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, publisher, logger)
	adminUserUC := usecase.NewAdminUserUsecase(txm, auditRepo, logger)
	addressUC := usecase.NewAddressUsecase(addressRepo)

	clock := auth.SystemClock{}
	registerUC := auth.NewRegisterUserUsecase(userRepo, auth.NewBcryptPasswordHasher(12), clock)
	loginUC := auth.NewLoginUsecase(userRepo, auth.NewBcryptPasswordVerifier(), tokens, clock, logger)

	//Handler生成
	srv := server.New(cfg, logger, server.Handlers{
		Tokens:       tokens,
		Users:        userRepo,
		Auth:         handler.NewAuthHandler(registerUC, loginUC),
		Product:      handler.NewProductHandler(productUC),
		Category:     handler.NewCategoryHandler(categoryUC),
		Cart:         handler.NewCartHandler(cartUC),
		Order:        handler.NewOrderHandler(orderUC),
		Address:      handler.NewAddressHandler(addressUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC),
		AdminUser:    handler.NewAdminUserHandler(adminUserUC),
		Seller:       handler.NewSellerProductHandler(productUC),
	})

	return srv.Run(ctx, 10*time.Second)
}
