package libraryclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hondana-app/hondana/pkg/config"
	"github.com/hondana-app/hondana/pkg/eligibility"
	"github.com/hondana-app/hondana/pkg/errcodes"
	"github.com/hondana-app/hondana/pkg/mocklibrary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestBackend(t *testing.T) (*httptest.Server, *mocklibrary.Store) {
	t.Helper()

	store := mocklibrary.NewStore()
	require.NoError(t, mocklibrary.Seed(store))

	cfg := &config.Config{MockJWTSecret: "test-secret"}
	e, err := mocklibrary.NewEcho(cfg, store)
	require.NoError(t, err)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, store
}

func loginTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	c := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
	token, err := c.Login(context.Background(), "patron", "hondana")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	c.SetToken(token)
	return c
}

func TestClientLogin(t *testing.T) {
	t.Parallel()
	srv, _ := setupTestBackend(t)

	t.Run("returns a token for valid credentials", func(t *testing.T) {
		c := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
		token, err := c.Login(context.Background(), "patron", "hondana")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("surfaces the backend's structured error", func(t *testing.T) {
		c := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
		_, err := c.Login(context.Background(), "patron", "wrong")
		require.Error(t, err)

		codedErr := &errcodes.Error{}
		require.ErrorAs(t, err, &codedErr)
		assert.Equal(t, http.StatusUnauthorized, codedErr.HTTPCode)
		assert.Equal(t, "Invalid username or password", codedErr.Message)
	})
}

func TestClientCheckEligibility(t *testing.T) {
	t.Parallel()
	srv, store := setupTestBackend(t)

	t.Run("returns the classified snapshot", func(t *testing.T) {
		c := loginTestClient(t, srv)
		store.MarkBorrowed("patron", 103)

		ids := []eligibility.ItemID{101, 102, 103}
		snapshot, err := c.CheckEligibility(context.Background(), ids)
		require.NoError(t, err)

		require.NoError(t, snapshot.ValidatePartition(ids))
		assert.Len(t, snapshot.AllowToBorrowItems, 1)
		assert.Len(t, snapshot.AllowToReserveItems, 1)
		assert.Len(t, snapshot.AlreadyBorrowedItems, 1)
		assert.Equal(t, "The Left Hand of Darkness", snapshot.AllowToBorrowItems[0].Title)
	})

	t.Run("fails fast without a token", func(t *testing.T) {
		c := New(Config{BaseURL: srv.URL, HTTPClient: srv.Client()})
		_, err := c.CheckEligibility(context.Background(), []eligibility.ItemID{101})
		require.Error(t, err)

		codedErr := &errcodes.Error{}
		require.ErrorAs(t, err, &codedErr)
		assert.Equal(t, http.StatusUnauthorized, codedErr.HTTPCode)
	})

	t.Run("fails fast on an expired token without a request", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "patron",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		// The base URL points nowhere; the expiry check must trip before
		// any request is made.
		c := New(Config{BaseURL: "http://127.0.0.1:1", Token: signed})
		_, err = c.CheckEligibility(context.Background(), []eligibility.ItemID{101})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expired")
	})
}

func TestClientSubmitBorrow(t *testing.T) {
	t.Parallel()
	srv, store := setupTestBackend(t)

	t.Run("submits and returns the confirmation message", func(t *testing.T) {
		c := loginTestClient(t, srv)

		msg, err := c.SubmitBorrow(context.Background(), eligibility.BorrowRequest{
			Description:        "pickup on friday",
			LibraryItemIDs:     []eligibility.ItemID{101},
			ReservationItemIDs: []eligibility.ItemID{102},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, msg)

		snapshot := store.Classify("patron", []eligibility.ItemID{101, 102})
		assert.Len(t, snapshot.AlreadyRequestedItems, 1)
		assert.Len(t, snapshot.AlreadyReservedItems, 1)
	})

	t.Run("decodes a borrow conflict into a structured error", func(t *testing.T) {
		c := loginTestClient(t, srv)
		store.MarkBorrowed("patron", 104)

		_, err := c.SubmitBorrow(context.Background(), eligibility.BorrowRequest{
			LibraryItemIDs: []eligibility.ItemID{104},
		})
		require.Error(t, err)

		codedErr := &errcodes.Error{}
		require.ErrorAs(t, err, &codedErr)
		assert.Equal(t, "borrow_conflict", codedErr.Code)
		assert.Equal(t, http.StatusUnprocessableEntity, codedErr.HTTPCode)
	})
}
