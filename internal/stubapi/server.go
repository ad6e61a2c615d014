// Package stubapi is an in-memory implementation of the CardioCare backend
// used for local development and end-to-end tests of the client.
package stubapi

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const defaultTokenTTL = 15 * time.Minute

type Config struct {
	// SigningKey signs access tokens. A random key is generated when empty.
	SigningKey []byte
	TokenTTL   time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Now        func() time.Time
}

type Server struct {
	store      *memStore
	signingKey []byte
	tokenTTL   time.Duration
	bcryptCost int
	now        func() time.Time
	logger     zerolog.Logger
	echo       *echo.Echo
}

func New(cfg Config, logger zerolog.Logger) (*Server, error) {
	s := &Server{
		store:      newMemStore(),
		signingKey: cfg.SigningKey,
		tokenTTL:   cfg.TokenTTL,
		bcryptCost: cfg.BcryptCost,
		now:        cfg.Now,
		logger:     logger,
	}
	if len(s.signingKey) == 0 {
		s.signingKey = make([]byte, 32)
		if _, err := rand.Read(s.signingKey); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = defaultTokenTTL
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	if s.now == nil {
		s.now = time.Now
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(Recovery(logger))
	e.Use(RequestID())
	e.Use(Logger(logger))
	e.Use(BodyLimit(maxBodyBytes))
	e.Use(NoStore())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", RequestIDHeader},
	}))

	s.echo = e
	e.GET("/health", s.health)
	s.registerRoutes(e.Group("/api"))
	return s, nil
}

func (s *Server) registerRoutes(g *echo.Group) {
	g.POST("/register", s.register)
	g.POST("/login", s.login)

	authed := g.Group("", s.requireToken())
	authed.POST("/predict", s.predict)
	authed.GET("/history", s.history)
	authed.GET("/recommendations", s.recommendations)
	authed.GET("/doctors", s.doctors)
	authed.POST("/appointments", s.bookAppointment)
	authed.GET("/appointments", s.patientAppointments)
	authed.PUT("/appointments/:id", s.updateAppointmentStatus)

	doctor := authed.Group("/doctor")
	doctor.GET("/appointments", s.doctorAppointments)
	doctor.GET("/patients", s.patients, s.requireDoctor("Access forbidden"))
	doctor.GET("/patient_history/:id", s.patientHistory, s.requireDoctor("Access forbidden"))
	doctor.GET("/prediction_details/:id", s.predictionDetails, s.requireDoctor("Access forbidden"))
	doctor.PUT("/prediction_note/:id", s.saveNote, s.requireDoctor("Access forbidden"))
	doctor.GET("/recommendations", s.doctorNotes, s.requireDoctor("Access forbidden"))
}

func (s *Server) health(c echo.Context) error {
	users, predictions, appointments := s.store.counts()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "healthy",
		"users":        users,
		"predictions":  predictions,
		"appointments": appointments,
	})
}

// Handler exposes the router, for httptest servers.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("stub backend listening")
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
