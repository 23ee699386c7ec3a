package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/exaring/otelpgx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riandyrn/otelchi"
	"github.com/screenseat/booking-engine/internal/domain"
	"github.com/screenseat/booking-engine/internal/payment"
	"github.com/screenseat/booking-engine/internal/queue"
	"github.com/screenseat/booking-engine/internal/repository"
	appvalidator "github.com/screenseat/booking-engine/internal/validator"
	"github.com/screenseat/booking-engine/internal/vcs"
	"github.com/stripe/stripe-go/v82"
)

var (
	version = vcs.Version()
)

type application struct {
	config         config
	logger         *slog.Logger
	db             *pgxpool.Pool
	redis          redis.UniversalClient
	validator      *validator.Validate
	sessionManager *scs.SessionManager

	bookingRepo  domain.BookingRepository
	showtimeRepo domain.ShowtimeRepository
	seatRepo     domain.SeatRepository
	paymentRepo  domain.PaymentRepository

	paymentProvider domain.PaymentProvider
	eventPublisher  domain.EventPublisher
}

type config struct {
	port int
	env  string
	db   struct {
		dsn          string
		maxOpenConns int
		maxIdleTime  time.Duration
	}
	redis struct {
		url          string
		maxOpenConns int
		maxIdleConns int
		maxIdleTime  time.Duration
	}
	amqp struct {
		url string
	}
	gateway struct {
		provider      string
		checkoutUrl   string
		webhookSecret string
		currency      string
	}
	stripe struct {
		secretKey  string
		successUrl string
		failureUrl string
	}
	sweeper struct {
		enabled  bool
		interval time.Duration
	}
	otelCollectorUrl string
}

func Run() error {
	var cfg config

	flag.IntVar(&cfg.port, "port", 3000, "server port")
	flag.StringVar(&cfg.env, "env", "dev", "Environment (dev|staging|prod)")

	flag.StringVar(&cfg.db.dsn, "db-dsn", os.Getenv("DB_DSN"), "PostgreSQL DSN")
	flag.IntVar(&cfg.db.maxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.db.maxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.redis.url, "redis-url", os.Getenv("REDIS_URL"), "Redis URL")
	flag.IntVar(&cfg.redis.maxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.redis.maxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.redis.maxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.amqp.url, "amqp-url", os.Getenv("AMQP_URL"), "RabbitMQ URL for booking events (empty disables publishing)")

	flag.StringVar(&cfg.gateway.provider, "gateway-provider", "stub", "Payment gateway provider (stub|stripe)")
	flag.StringVar(&cfg.gateway.checkoutUrl, "gateway-checkout-url", "https://pay.screenseat.local", "Stub gateway checkout base URL")
	flag.StringVar(&cfg.gateway.webhookSecret, "gateway-webhook-secret", os.Getenv("GATEWAY_WEBHOOK_SECRET"), "Shared secret for payment webhook signatures")
	flag.StringVar(&cfg.gateway.currency, "gateway-currency", "usd", "Currency of payment amounts")

	flag.StringVar(&cfg.stripe.secretKey, "stripe-key", os.Getenv("STRIPE_KEY"), "Stripe secret key")
	flag.StringVar(&cfg.stripe.successUrl, "stripe-success-url", "https://example.com/success.html", "Stripe payment success page")
	flag.StringVar(&cfg.stripe.failureUrl, "stripe-failure-url", "https://example.com/failure.html", "Stripe payment failure page")

	flag.BoolVar(&cfg.sweeper.enabled, "sweeper-enabled", true, "Periodically mark lapsed holds as Expired")
	flag.DurationVar(&cfg.sweeper.interval, "sweeper-interval", time.Minute, "Interval between expiry sweeps")

	flag.StringVar(&cfg.otelCollectorUrl, "otel-collector-url", os.Getenv("OTEL_COLLECTOR_URL"), "OpenTelemetry collector URL (empty disables telemetry)")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	validator := appvalidator.NewValidator()

	db, err := newDatabasePool(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	bookingRepo := repository.NewPostgresBookingRepository(db)
	showtimeRepo := repository.NewPostgresShowtimeRepository(db)
	seatRepo := repository.NewPostgresSeatRepository(db)
	paymentRepo := repository.NewPostgresPaymentRepository(db)

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	paymentProvider, err := newPaymentProvider(cfg)
	if err != nil {
		return err
	}

	eventPublisher, closePublisher, err := newEventPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	app := &application{
		config:          cfg,
		logger:          logger,
		db:              db,
		redis:           redisClient,
		validator:       validator,
		sessionManager:  newSessionManager(redisClient),
		bookingRepo:     bookingRepo,
		showtimeRepo:    showtimeRepo,
		seatRepo:        seatRepo,
		paymentRepo:     paymentRepo,
		paymentProvider: paymentProvider,
		eventPublisher:  eventPublisher,
	}

	shutdownTelemetry, err := app.initTelemetry()
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	stopSweeper, err := app.startExpirySweeper()
	if err != nil {
		return err
	}
	defer stopSweeper()

	return app.run()
}

func newPaymentProvider(cfg config) (domain.PaymentProvider, error) {
	switch cfg.gateway.provider {
	case "stub":
		return payment.NewStubProvider(cfg.gateway.checkoutUrl), nil
	case "stripe":
		stripe.Key = cfg.stripe.secretKey
		return payment.NewStripeProvider(cfg.stripe.successUrl, cfg.stripe.failureUrl, cfg.gateway.currency), nil
	}
	return nil, fmt.Errorf("unknown gateway provider: %q", cfg.gateway.provider)
}

func newEventPublisher(cfg config, logger *slog.Logger) (domain.EventPublisher, func(), error) {
	if cfg.amqp.url == "" {
		logger.Info("AMQP URL not set, booking events disabled")
		return queue.NopPublisher{}, func() {}, nil
	}

	publisher, err := queue.NewPublisher(cfg.amqp.url, logger)
	if err != nil {
		return nil, nil, err
	}

	return publisher, publisher.Close, nil
}

func newSessionManager(client *redis.Client) *scs.SessionManager {
	sessionManager := scs.New()

	sessionManager.Store = goredisstore.New(client)
	sessionManager.IdleTimeout = 20 * time.Minute
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func newRedisClient(cfg config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.redis.url,
		MaxIdleConns:    cfg.redis.maxIdleConns,
		MaxActiveConns:  cfg.redis.maxOpenConns,
		ConnMaxIdleTime: cfg.redis.maxIdleTime,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := rdb.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func newDatabasePool(cfg config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.db.dsn)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.db.maxIdleTime
	config.MaxConns = int32(cfg.db.maxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *application) run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
		}

		shutdownError <- nil
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}

func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)

	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(otelchi.Middleware("booking-engine", otelchi.WithChiRoutes(r)))
	r.Use(app.recoverPanic)
	r.Use(app.sessionManager.LoadAndSave)

	r.Get("/health", app.GetHealth)

	r.Get("/showtimes/{showtimeId}/seats", app.GetSeatAvailability)

	r.With(app.requireAuthentication).Route("/bookings", func(r chi.Router) {
		r.Post("/", app.CreateBooking)
		r.Get("/", app.ListBookings)
		r.Get("/{bookingId}", app.GetBooking)
		r.Patch("/{bookingId}/cancel", app.CancelBooking)
		r.Patch("/{bookingId}/confirm", app.ConfirmBooking)
		r.With(app.requirePrivileged).Patch("/{bookingId}/claim", app.ClaimBooking)
		r.Post("/{bookingId}/payments", app.CreatePaymentAttempt)
		r.Get("/{bookingId}/payments", app.ListPaymentAttempts)
	})

	r.Post("/webhooks/payments", app.PaymentWebhookHandler)

	return r
}
