package mocklibrary

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hondana-app/hondana/pkg/binder"
	"github.com/hondana-app/hondana/pkg/config"
	"github.com/hondana-app/hondana/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
)

// NewServer wraps the mock backend in an HTTP server for local development.
func NewServer(cfg *config.Config, store *Store) (*http.Server, error) {
	e, err := NewEcho(cfg, store)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.MockServerHost, cfg.MockServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

// NewEcho builds the mock backend's echo instance. Tests mount it on an
// httptest server directly.
func NewEcho(cfg *config.Config, store *Store) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)
	RegisterRoutes(e, store, cfg.MockJWTSecret)

	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

// Seed fills the store with a small catalog and one patron for local
// development. The patron logs in as "patron" / "hondana".
func Seed(store *Store) error {
	store.AddItem(Item{ID: 101, Title: "The Left Hand of Darkness", CopiesAvailable: 2})
	store.AddItem(Item{ID: 102, Title: "A Wizard of Earthsea", CopiesAvailable: 0})
	store.AddItem(Item{ID: 103, Title: "The Dispossessed", CopiesAvailable: 1})
	store.AddItem(Item{ID: 104, Title: "The Lathe of Heaven", CopiesAvailable: 3})
	return store.AddPatron("patron", "hondana")
}
