package config

import (
	"VoiceBooking/database/postgres"
	"VoiceBooking/internal/api/bookings"
	bookingRepository "VoiceBooking/internal/api/bookings/repository"
	bookingService "VoiceBooking/internal/api/bookings/service"
	"VoiceBooking/internal/api/calls"
	callHandler "VoiceBooking/internal/api/calls/handler"
	callRepository "VoiceBooking/internal/api/calls/repository"
	callService "VoiceBooking/internal/api/calls/service"
	"VoiceBooking/internal/middleware"
	"VoiceBooking/internal/worker"
	"VoiceBooking/pkg/notify"
	"VoiceBooking/pkg/queue"
	"VoiceBooking/pkg/redis"
	"VoiceBooking/pkg/s3"
	"VoiceBooking/pkg/smtp"
	"VoiceBooking/pkg/timeparse"
	twilioPkg "VoiceBooking/pkg/twilio"
	"VoiceBooking/pkg/utils"
	"VoiceBooking/pkg/whatsapp"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine         *fiber.App
	db             *sqlx.DB
	log            *logrus.Logger
	middleware     middleware.Middleware
	validator      *validator.Validate
	utils          utils.IUtils
	handlers       []handler
	redisOpt       asynq.RedisConnOpt
	redisServer    redis.IRedis
	queue          queue.IQueue
	notifier       notify.INotifier
	whatsappClient whatsapp.IWhatsappSender
	s3Client       s3.ItfS3
	worker         *worker.Worker
	shutdownOnce   sync.Once
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if server.queue == nil {
		return nil, fmt.Errorf("booking queue is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithDatabase connects to postgres and applies pending migrations.
func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}

		if err := postgres.Migrate(db, s.log); err != nil {
			_ = db.Close()
			return err
		}

		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

// WithQueue sets up the booking task client. The same connection feeds the worker.
func WithQueue() ServerOption {
	return func(s *Server) error {
		s.redisOpt = queue.RedisOpt()
		s.queue = queue.New(s.redisOpt, queue.Options{
			MaxRetry: envInt("BOOKING_MAX_RETRY", 3),
			Timeout:  envDuration("BOOKING_TASK_TIMEOUT", 30*time.Second),
		})
		return nil
	}
}

// WithNotifier enables every confirmation channel that is configured. Missing channels are skipped.
func WithNotifier() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before notifier")
		}

		var channels []notify.Channel

		sms, err := twilioPkg.NewSMSSender()
		switch {
		case err == nil:
			channels = append(channels, notify.NewSMSChannel(sms))
		case errors.Is(err, twilioPkg.ErrSMSNotConfigured):
			s.log.Info("SMS confirmations disabled")
		default:
			return fmt.Errorf("failed to create SMS sender: %w", err)
		}

		if to := envString("NOTIFY_EMAIL", ""); to != "" {
			mailer, err := smtp.New()
			if err != nil {
				return fmt.Errorf("failed to create SMTP mailer: %w", err)
			}
			channels = append(channels, notify.NewEmailChannel(mailer, to))
		}

		if envBool("WHATSAPP_ENABLED", false) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			client, err := whatsapp.New(ctx)
			if err != nil {
				s.log.Errorf("Failed to initialize WhatsApp client: %v", err)
				return fmt.Errorf("failed to create WhatsApp client: %w", err)
			}
			s.whatsappClient = client
			channels = append(channels, notify.NewWhatsappChannel(client))
		}

		s.notifier = notify.New(s.log, channels...)
		return nil
	}
}

// WithS3Client archives booking receipts when a bucket is configured.
func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if errors.Is(err, s3.ErrNotConfigured) {
			if s.log != nil {
				s.log.Info("Booking receipt archive disabled")
			}
			return nil
		}
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, middleware.Config{
			TwilioAuthToken:  envString("TWILIO_AUTH_TOKEN", ""),
			PublicBaseURL:    envString("PUBLIC_BASE_URL", ""),
			WebhookJWTSecret: envString("WEBHOOK_JWT_SECRET", ""),
			RateLimit:        float64(envInt("RATE_LIMIT_RPS", middleware.DefaultRateLimit)),
			RateBurst:        envInt("RATE_LIMIT_BURST", middleware.DefaultRateBurst),
		})
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Calls Domain
	callRepo := callRepository.New(s.db, s.log)
	callServices := callService.NewCallService(s.log, callRepo, s.queue, s.utils, calls.Config{
		CallStartMode: s.callStartMode(),
	})
	callHandlers := callHandler.New(s.log, s.validator, s.middleware, callServices, envString("PUBLIC_BASE_URL", ""))

	// Bookings Domain
	bookingRepo := bookingRepository.New(s.db, s.log)
	bookingServices := bookingService.NewBookingService(
		s.log,
		bookingRepo,
		timeparse.New(),
		s.notifier,
		s.redisServer,
		s.s3Client,
		s.utils,
		bookings.Config{
			SlotDuration:     time.Duration(envInt("BOOKING_SLOT_MINUTES", 30)) * time.Minute,
			ProbeLimit:       envInt("BOOKING_PROBE_LIMIT", bookings.DefaultProbeLimit),
			FailOnExhaustion: envBool("BOOKING_FAIL_ON_EXHAUSTION", true),
		},
	)
	s.worker = worker.New(s.log, s.redisOpt, bookingServices, worker.Config{
		Concurrency:   envInt("WORKER_CONCURRENCY", worker.DefaultConcurrent),
		MaxRetryDelay: envDuration("BOOKING_RETRY_MAX_DELAY", worker.DefaultMaxDelay),
	})

	s.setupHealthCheck()
	s.handlers = append(s.handlers, callHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(middleware.LoggerConfig())

	for _, h := range s.handlers {
		h.Start(s.engine)
	}

	if s.worker != nil {
		if err := s.worker.Start(); err != nil {
			return fmt.Errorf("failed to start booking worker: %w", err)
		}
	}

	port := envString("APP_PORT", "3000")

	if err := s.engine.Listen(fmt.Sprintf(":%s", port)); err != nil {
		s.Shutdown()
		return err
	}

	return nil
}

// Shutdown stops accepting webhooks, drains the worker and closes outbound clients.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(s.shutdown)
}

func (s *Server) shutdown() {
	if err := s.engine.ShutdownWithTimeout(10 * time.Second); err != nil {
		s.log.Errorf("Failed to shut down HTTP server: %v", err)
	}
	if s.worker != nil {
		s.worker.Shutdown()
	}
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.log.Errorf("Failed to close booking queue: %v", err)
		}
	}
	if s.redisServer != nil {
		_ = s.redisServer.Close()
	}
	if s.whatsappClient != nil {
		_ = s.whatsappClient.Disconnect()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Server) callStartMode() calls.CallStartMode {
	mode := calls.CallStartMode(envString("CALL_START_MODE", string(calls.CallStartPreserve)))
	switch mode {
	case calls.CallStartPreserve, calls.CallStartReset:
		return mode
	default:
		s.log.Warnf("Unknown CALL_START_MODE %q, using %q", mode, calls.CallStartPreserve)
		return calls.CallStartPreserve
	}
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/health/", func(ctx *fiber.Ctx) error {
		return ctx.SendString("OK")
	})
}
