package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/store-rating-api/internal/application/auth"
	"github.com/store-rating-api/internal/application/registration"
	"github.com/store-rating-api/internal/application/store"
	"github.com/store-rating-api/internal/application/user"
	"github.com/store-rating-api/internal/config"
	"github.com/store-rating-api/internal/domain"
	"github.com/store-rating-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/store-rating-api/internal/infrastructure/jwt"
	"github.com/store-rating-api/internal/infrastructure/memstore"
	"github.com/store-rating-api/internal/infrastructure/redisstore"
	"github.com/store-rating-api/internal/infrastructure/smtp"
	"github.com/store-rating-api/internal/infrastructure/sns"
	"github.com/store-rating-api/internal/pkg/keylock"
	transporthttp "github.com/store-rating-api/internal/transport/http"
)

// guestFunc adapts a function to the store service's guest lookup.
type guestFunc func(ctx context.Context) (*domain.User, error)

func (f guestFunc) Guest(ctx context.Context) (*domain.User, error) { return f(ctx) }

type verificationStores struct {
	pending registration.KV[domain.PendingRegistration]
	otps    registration.KV[domain.OTPRecord]
	resets  registration.KV[domain.ResetAuthorization]
	close   func()
}

func newVerificationStores(cfg *config.Config, log logrus.FieldLogger) (*verificationStores, error) {
	switch cfg.KVBackend {
	case "memory":
		pending := memstore.New[domain.PendingRegistration](cfg.SweepInterval)
		otps := memstore.New[domain.OTPRecord](cfg.SweepInterval)
		resets := memstore.New[domain.ResetAuthorization](cfg.SweepInterval)
		return &verificationStores{
			pending: pending,
			otps:    otps,
			resets:  resets,
			close: func() {
				pending.Close()
				otps.Close()
				resets.Close()
			},
		}, nil
	case "redis":
		client := redisstore.NewClient(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		log.WithField("addr", cfg.RedisAddr).Info("verification state stored in redis")
		return &verificationStores{
			pending: redisstore.New[domain.PendingRegistration](client, "pending"),
			otps:    redisstore.New[domain.OTPRecord](client, "otp"),
			resets:  redisstore.New[domain.ResetAuthorization](client, "reset"),
			close:   func() { _ = client.Close() },
		}, nil
	}
	return nil, fmt.Errorf("unknown KV_BACKEND %q", cfg.KVBackend)
}

func newNotifier(cfg *config.Config) (smtp.Mailer, error) {
	switch cfg.Notifier {
	case "smtp":
		return smtp.NewMailer(cfg), nil
	case "sns":
		sender, err := sns.NewSender(cfg)
		if err != nil {
			return nil, err
		}
		return sender, nil
	}
	return nil, fmt.Errorf("unknown NOTIFIER %q", cfg.Notifier)
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()
	log := newLogger(cfg)
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	ctx := context.Background()

	dynamoClient, err := dynamo.NewClient(cfg)
	if err != nil {
		log.WithError(err).Fatal("dynamodb client")
	}
	// Creates the tables if they don't exist.
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables, log)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.WithError(err).Fatal("jwt provider")
	}

	kv, err := newVerificationStores(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("verification store")
	}
	defer kv.close()

	notifier, err := newNotifier(cfg)
	if err != nil {
		log.WithError(err).Fatal("notifier")
	}

	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users, cfg.DynamoTables.UserKeys)
	storeRepo := dynamo.NewStoreRepo(dynamoClient, cfg.DynamoTables.Stores)
	ratingRepo := dynamo.NewRatingRepo(dynamoClient, cfg.DynamoTables.Ratings)
	counters := dynamo.NewCounterRepo(dynamoClient, cfg.DynamoTables.Counters)

	var userSvc user.Service
	storeSvc := store.NewService(store.ServiceDeps{
		StoreRepo:  storeRepo,
		RatingRepo: ratingRepo,
		UserRepo:   userRepo,
		Guests:     guestFunc(func(ctx context.Context) (*domain.User, error) { return userSvc.Guest(ctx) }),
		IDs:        counters,
		Log:        log.WithField("component", "store"),
	})
	registrationSvc := registration.NewService(registration.ServiceDeps{
		Pending:                   kv.pending,
		OTPs:                      kv.otps,
		Resets:                    kv.resets,
		Users:                     userRepo,
		IDs:                       counters,
		Mailer:                    notifier,
		Locker:                    keylock.New(),
		Log:                       log.WithField("component", "registration"),
		OTPExpiry:                 cfg.OTPExpiry,
		PendingTTL:                cfg.PendingRegistrationTTL,
		RequireResetAuthorization: cfg.ResetRequireAuthorization,
	})
	userSvc = user.NewService(user.ServiceDeps{
		UserRepo: userRepo,
		IDs:      counters,
		Content:  storeSvc,
		Pending:  registrationSvc,
		Log:      log.WithField("component", "user"),
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:     userRepo,
		Registration: registrationSvc,
		Accounts:     userSvc,
		JWTProvider:  jwtProvider,
		Log:          log.WithField("component", "auth"),
	})

	if err := userSvc.Seed(ctx, cfg.SuperAdmin); err != nil {
		log.WithError(err).Fatal("seed accounts")
	}

	router, closeRouter := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Registration: registrationSvc,
		Auth:         authSvc,
		Users:        userSvc,
		Stores:       storeSvc,
		Tokens:       jwtProvider,
		Lookup:       userRepo,
		Log:          log,
	})
	defer closeRouter()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.AppPort, "env": cfg.AppEnv}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
		return
	}
	log.Info("server stopped")
}
