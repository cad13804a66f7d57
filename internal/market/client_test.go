package market_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisale/unichat-go/internal/market"
)

func TestUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "name": "Alice", "email": "alice@stu.upes.ac.in", "verified": 1},
			{"id": 2, "name": "Bob", "email": "bob@stu.upes.ac.in", "verified": 0}
		]`))
	}))
	defer srv.Close()

	users, err := market.NewClient(srv.URL, nil).Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Name)
	assert.Equal(t, 1, users[0].Verified)
	assert.Equal(t, "bob@stu.upes.ac.in", users[1].Email)
}

func TestUsersBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "db connection refused"}`))
	}))
	defer srv.Close()

	_, err := market.NewClient(srv.URL, nil).Users(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db connection refused")
}

func TestSignup(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/signup", r.URL.Path)
			require.Equal(t, http.MethodPost, r.Method)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Alice", body["name"])
			assert.Equal(t, "alice@stu.upes.ac.in", body["email"])

			_, _ = w.Write([]byte(`{"success": true, "message": "Signup successful!"}`))
		}))
		defer srv.Close()

		err := market.NewClient(srv.URL, nil).Signup(context.Background(), "Alice", "alice@stu.upes.ac.in")
		assert.NoError(t, err)
	})

	t.Run("duplicate email", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": false, "message": "User already exists!"}`))
		}))
		defer srv.Close()

		err := market.NewClient(srv.URL, nil).Signup(context.Background(), "Alice", "alice@stu.upes.ac.in")
		assert.ErrorIs(t, err, market.ErrUserExists)
	})
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message": "Welcome to UniSale API!"}`))
	}))
	defer srv.Close()

	assert.NoError(t, market.NewClient(srv.URL, nil).Health(context.Background()))
}
