// Package devserver serves the CMDB REST API over a store.Store. It backs the
// cmdbd development daemon and the client tests.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/goliatone/go-cmdbform/internal/store"
	"github.com/goliatone/go-cmdbform/pkg/fieldtypes"
	"github.com/goliatone/go-cmdbform/pkg/logging"
	"github.com/goliatone/go-cmdbform/pkg/model"
)

// Prefix is the path every API route is mounted under.
const Prefix = "/rest/"

// Option customises a Server.
type Option func(*Server)

// WithRegistry sets the field kinds accepted in posted Types.
func WithRegistry(registry *fieldtypes.Registry) Option {
	return func(s *Server) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithCatalog replaces the export destination catalog.
func WithCatalog(catalog Catalog) Option {
	return func(s *Server) {
		s.catalog = catalog
	}
}

// WithLogLevel sets the echo logger level: debug, info, warn, error or off.
func WithLogLevel(level string) Option {
	return func(s *Server) {
		s.echo.Logger.SetLevel(logging.ParseLevel(level))
	}
}

// Server is the HTTP front of a store.
type Server struct {
	store    store.Store
	registry *fieldtypes.Registry
	catalog  Catalog
	echo     *echo.Echo
}

// New wires the routes. The store stays owned by the caller.
func New(st store.Store, options ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetPrefix("cmdbd")
	e.Logger.SetLevel(logging.ParseLevel("warn"))

	s := &Server{
		store:    st,
		registry: fieldtypes.NewRegistry(),
		catalog:  DefaultCatalog(),
		echo:     e,
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(err, c)
		e.Logger.Debug(err)
	}
	e.Use(middleware.Recover())
	e.Use(logRequests)
	s.routes()
	return s
}

func (s *Server) routes() {
	api := func(path string) string { return Prefix + path }
	e := s.echo

	e.GET(api("type/"), s.listTypes)
	e.POST(api("type/"), s.createType)
	e.GET(api("type/:id"), s.getType)
	e.PUT(api("type/:id"), s.updateType)
	e.DELETE(api("type/:id"), s.deleteType)

	e.GET(api("category/"), s.listCategories)
	e.POST(api("category/"), s.createCategory)
	e.GET(api("category/tree"), s.categoryTree)
	e.GET(api("category/:id"), s.getCategory)
	e.PUT(api("category/:id"), s.updateCategory)

	e.GET(api("object/"), s.listObjects)
	e.POST(api("object/"), s.createObject)
	e.GET(api("object/:id"), s.getObject)
	e.PUT(api("object/:id"), s.updateObject)
	e.DELETE(api("object/:id"), s.deleteObject)

	e.GET(api("group/"), s.listGroups)

	e.GET(api("externalsystem/"), s.externalSystems)
	e.GET(api("externalsystem/parameters/:name"), s.externalParameters)
	e.GET(api("externalsystem/variables/:name"), s.externalVariables)
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Logger exposes the echo logger for the embedding command.
func (s *Server) Logger() echo.Logger { return s.echo.Logger }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		begin := time.Now()
		err := next(c)
		c.Logger().Infof("%s %s status=%d in %v error=%v",
			c.Request().Method, c.Request().URL, c.Response().Status, time.Since(begin), err)
		return err
	}
}

func pathID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid id %q", c.Param("id")))
	}
	return id, nil
}

// storeError maps store failures onto status codes. Conflicts are reported
// against the name attribute.
func storeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		msg := err.Error()
		if _, detail, ok := strings.Cut(msg, store.ErrConflict.Error()+": "); ok {
			msg = detail
		}
		return c.JSON(http.StatusConflict, map[string][]string{"name": {msg}})
	default:
		return err
	}
}

func invalid(c echo.Context, errs model.ValidationErrors) error {
	payload := make(map[string][]string, len(errs))
	for _, verr := range errs {
		path := verr.Path
		if path == "" {
			path = "form"
		}
		payload[path] = append(payload[path], verr.Message)
	}
	return c.JSON(http.StatusUnprocessableEntity, map[string]any{"errors": payload})
}
