package mocklibrary

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the mock backend's routes: login plus the two
// borrowing endpoints the patron client consumes.
func RegisterRoutes(e *echo.Echo, store *Store, jwtSecret string) {
	h := &handler{
		store:     store,
		jwtSecret: []byte(jwtSecret),
	}

	e.POST("/auth/login", h.login)

	g := e.Group("/borrows")
	g.Use(authenticate(h.jwtSecret))
	g.POST("/eligibility", h.checkEligibility)
	g.POST("", h.createBorrow)
}
