package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/andreyxaxa/crm-payments/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

const (
	_defaultAddr            = ":80"
	_defaultReadTimeout     = 5 * time.Second
	_defaultWriteTimeout    = 5 * time.Second
	_defaultShutdownTimeout = 3 * time.Second
	_defaultBodyLimit       = 1 << 20
)

type Server struct {
	ctx context.Context
	eg  *errgroup.Group

	App    *fiber.App
	notify chan error

	address         string
	prefork         bool
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	bodyLimit       int

	logger logger.Interface
}

func New(l logger.Interface, opts ...Option) *Server {
	group, ctx := errgroup.WithContext(context.Background())
	group.SetLimit(1)

	s := &Server{
		ctx:             ctx,
		eg:              group,
		notify:          make(chan error, 1),
		address:         _defaultAddr,
		readTimeout:     _defaultReadTimeout,
		writeTimeout:    _defaultWriteTimeout,
		shutdownTimeout: _defaultShutdownTimeout,
		bodyLimit:       _defaultBodyLimit,
		logger:          l,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.App = fiber.New(fiber.Config{
		Prefork:               s.prefork,
		ReadTimeout:           s.readTimeout,
		WriteTimeout:          s.writeTimeout,
		BodyLimit:             s.bodyLimit,
		JSONDecoder:           json.Unmarshal,
		JSONEncoder:           json.Marshal,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	return s
}

// ErrorHandler отвечает JSON'ом на ошибки, которые не обработал сам хендлер:
// неизвестный маршрут, лимит тела, паника под recover.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	if code >= fiber.StatusInternalServerError {
		return ctx.Status(code).JSON(fiber.Map{"error": "internal_error"})
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":   strings.ReplaceAll(strings.ToLower(http.StatusText(code)), " ", "_"),
		"message": err.Error(),
	})
}

func (s *Server) Start() {
	s.eg.Go(func() error {
		s.logger.Info("httpserver - Server - listening on %s", s.address)

		if err := s.App.Listen(s.address); err != nil {
			s.notify <- err
			close(s.notify)

			return err
		}

		return nil
	})
}

func (s *Server) Notify() <-chan error {
	return s.notify
}

// Shutdown ждет активные запросы не дольше shutdownTimeout.
// Открытые SSE-потоки должны быть закрыты до вызова.
func (s *Server) Shutdown() error {
	var errList []error

	if err := s.App.ShutdownWithTimeout(s.shutdownTimeout); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error(err, "httpserver - Server - Shutdown - s.App.ShutdownWithTimeout")
		errList = append(errList, err)
	}

	if err := s.eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error(err, "httpserver - Server - Shutdown - s.eg.Wait")
		errList = append(errList, err)
	}

	s.logger.Info("httpserver - Server - Shutdown")

	return errors.Join(errList...)
}
