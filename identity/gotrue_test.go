package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newGoTrueServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "correct" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"at-1","user":{"id":"sub-1"}}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":"sub-1"}`))
	})
	mux.HandleFunc("/admin/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer service-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email_confirm"] != true {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if body["email"] == "taken@example.com" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error_code":"email_exists","msg":"A user with this email address has already been registered"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"sub-new"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGoTrueProvider(t *testing.T) {
	srv := newGoTrueServer(t)
	p := NewGoTrueProvider(srv.URL+"/", "service-key", 5*time.Second, zaptest.NewLogger(t))
	ctx := context.Background()

	session, err := p.Authenticate(ctx, "a@example.com", "correct")
	require.NoError(t, err)
	assert.Equal(t, "at-1", session.AccessToken)

	subject, err := p.GetSubject(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", subject)

	_, err = p.Authenticate(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	created, err := p.CreateGuestAccount(ctx, "new@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "sub-new", created)

	_, err = p.CreateGuestAccount(ctx, "taken@example.com", "pw")
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestGoTrueProvider_ClientErrorsDoNotOpenCircuit(t *testing.T) {
	srv := newGoTrueServer(t)
	p := NewGoTrueProvider(srv.URL, "service-key", 5*time.Second, zaptest.NewLogger(t))

	for i := 0; i < 10; i++ {
		_, err := p.Authenticate(context.Background(), "a@example.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := p.Authenticate(context.Background(), "a@example.com", "correct")
	assert.NoError(t, err)
}
