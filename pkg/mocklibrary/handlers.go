package mocklibrary

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hondana-app/hondana/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const tokenExpiry = 24 * time.Hour

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type handler struct {
	store     *Store
	jwtSecret []byte
}

func (h *handler) login(c echo.Context) error {
	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if err := h.store.Authenticate(params.Username, params.Password); err != nil {
		return errors.WithStack(err)
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: params.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	})
	signed, err := token.SignedString(h.jwtSecret)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Token string `json:"token"`
	}{signed}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) checkEligibility(c echo.Context) error {
	params := CheckEligibilityPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	username, _ := c.Get("username").(string)
	snapshot := h.store.Classify(username, params.LibraryItemIDs)

	return errors.WithStack(c.JSON(http.StatusOK, snapshot))
}

func (h *handler) createBorrow(c echo.Context) error {
	params := CreateBorrowPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	username, _ := c.Get("username").(string)
	reference, err := h.store.Borrow(username, params.LibraryItemIDs, params.ReservationItemIDs)
	if err != nil {
		return errors.WithStack(err)
	}

	message := fmt.Sprintf(
		"Borrow request %s submitted for %d item(s); %d reservation(s) queued.",
		reference, len(params.LibraryItemIDs), len(params.ReservationItemIDs),
	)
	resp := struct {
		Message   string `json:"message"`
		Reference string `json:"reference"`
	}{message, reference}

	return errors.WithStack(c.JSON(http.StatusCreated, resp))
}

// authenticate validates the bearer token and puts the patron's username in
// the request context.
func authenticate(jwtSecret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				return errcodes.Unauthorized("Missing bearer token")
			}

			parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return jwtSecret, nil
			})
			if err != nil || !parsed.Valid {
				return errcodes.Unauthorized("Invalid or expired token")
			}

			tokenClaims, ok := parsed.Claims.(*claims)
			if !ok {
				return errcodes.Unauthorized("Invalid token claims")
			}

			c.Set("username", tokenClaims.Username)
			return next(c)
		}
	}
}
