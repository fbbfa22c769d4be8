package identity_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daap14/affconsole/internal/identity"
)

const testAPIKey = "anon-key"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokenBody(access string, expiresIn int) map[string]any {
	return map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    expiresIn,
		"refresh_token": "refresh-" + access,
		"user": map[string]any{
			"id":            "u-1",
			"email":         "ana@example.com",
			"user_metadata": map[string]any{"first_name": "Ana"},
		},
	}
}

func TestHTTPProvider_SignInWithPassword(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, testAPIKey, r.Header.Get("apikey"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "pw" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		writeJSON(w, http.StatusOK, tokenBody("a1", 3600))
	}))
	defer srv.Close()

	store := &identity.MemoryStore{}
	p := identity.NewHTTPProvider(srv.URL, testAPIKey, identity.WithTokenStore(store))
	log := &eventLog{}
	p.OnAuthStateChange(log.listen)

	_, err := p.SignInWithPassword(context.Background(), "ana@example.com", "bad")
	var idErr *identity.Error
	require.ErrorAs(t, err, &idErr)
	assert.Equal(t, "Invalid login credentials", idErr.Message)
	assert.Equal(t, "invalid_grant", idErr.Code)
	assert.Equal(t, http.StatusBadRequest, idErr.Status)

	sess, err := p.SignInWithPassword(context.Background(), "ana@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "a1", sess.AccessToken)
	assert.Equal(t, "Ana", sess.User.Metadata.FirstName)
	assert.False(t, sess.IsExpired())

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "a1", stored.AccessToken)
	assert.Equal(t, []identity.Event{identity.EventSignedIn}, log.all())
}

func TestHTTPProvider_SignUpPendingConfirmation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/signup", r.URL.Path)
		var body struct {
			Email string            `json:"email"`
			Data  identity.Metadata `json:"data"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{
			"id":            "u-9",
			"email":         body.Email,
			"user_metadata": body.Data,
		})
	}))
	defer srv.Close()

	p := identity.NewHTTPProvider(srv.URL, testAPIKey)

	user, err := p.SignUp(context.Background(), "new@example.com", "pw", identity.Metadata{FirstName: "Nia"})

	require.NoError(t, err)
	assert.Equal(t, "u-9", user.ID)
	assert.Equal(t, "Nia", user.Metadata.FirstName)
	current, err := p.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestHTTPProvider_SignUpAutoConfirmed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tokenBody("a1", 3600))
	}))
	defer srv.Close()

	p := identity.NewHTTPProvider(srv.URL, testAPIKey)

	user, err := p.SignUp(context.Background(), "ana@example.com", "pw", identity.Metadata{})

	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	current, err := p.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "a1", current.AccessToken)
}

func TestHTTPProvider_RefreshesExpiredSession(t *testing.T) {
	t.Parallel()

	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("grant_type") {
		case "password":
			writeJSON(w, http.StatusOK, tokenBody("a1", 1))
		case "refresh_token":
			refreshes.Add(1)
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "refresh-a1", body["refresh_token"])
			resp := tokenBody("a2", 3600)
			delete(resp, "user")
			writeJSON(w, http.StatusOK, resp)
		}
	}))
	defer srv.Close()

	p := identity.NewHTTPProvider(srv.URL, testAPIKey)
	log := &eventLog{}
	p.OnAuthStateChange(log.listen)
	_, err := p.SignInWithPassword(context.Background(), "ana@example.com", "pw")
	require.NoError(t, err)

	current, err := p.GetSession(context.Background())

	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "a2", current.AccessToken)
	assert.Equal(t, "u-1", current.User.ID)
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, []identity.Event{identity.EventSignedIn, identity.EventTokenRefreshed}, log.all())

	again, err := p.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a2", again.AccessToken)
	assert.Equal(t, int32(1), refreshes.Load())
}

func TestHTTPProvider_RejectedRefreshSignsOut(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("grant_type") == "refresh_token" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Refresh Token Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, tokenBody("a1", 1))
	}))
	defer srv.Close()

	p := identity.NewHTTPProvider(srv.URL, testAPIKey)
	log := &eventLog{}
	p.OnAuthStateChange(log.listen)
	_, err := p.SignInWithPassword(context.Background(), "ana@example.com", "pw")
	require.NoError(t, err)

	current, err := p.GetSession(context.Background())

	require.NoError(t, err)
	assert.Nil(t, current)
	assert.Equal(t, []identity.Event{identity.EventSignedIn, identity.EventSignedOut}, log.all())
}

func TestHTTPProvider_SignOutClearsEvenOnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/logout" {
			assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"msg": "boom"})
			return
		}
		writeJSON(w, http.StatusOK, tokenBody("a1", 3600))
	}))
	defer srv.Close()

	store := &identity.MemoryStore{}
	p := identity.NewHTTPProvider(srv.URL, testAPIKey, identity.WithTokenStore(store))
	_, err := p.SignInWithPassword(context.Background(), "ana@example.com", "pw")
	require.NoError(t, err)

	err = p.SignOut(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	current, err := p.GetSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
	_, err = store.Load()
	assert.ErrorIs(t, err, identity.ErrNoStoredSession)
}

func TestHTTPProvider_UpdateUser(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/user" {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
			var body struct {
				Data identity.Metadata `json:"data"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, http.StatusOK, map[string]any{
				"id":            "u-1",
				"email":         "ana@example.com",
				"user_metadata": body.Data,
			})
			return
		}
		writeJSON(w, http.StatusOK, tokenBody("a1", 3600))
	}))
	defer srv.Close()

	p := identity.NewHTTPProvider(srv.URL, testAPIKey)

	_, err := p.UpdateUser(context.Background(), identity.Metadata{})
	assert.ErrorIs(t, err, identity.ErrNoSession)

	_, err = p.SignInWithPassword(context.Background(), "ana@example.com", "pw")
	require.NoError(t, err)

	user, err := p.UpdateUser(context.Background(), identity.Metadata{FirstName: "Anabel", LastName: "Silva"})
	require.NoError(t, err)
	assert.Equal(t, "Anabel", user.Metadata.FirstName)

	current, err := p.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Silva", current.User.Metadata.LastName)
}

func TestHTTPProvider_RecoversStoredSession(t *testing.T) {
	t.Parallel()

	store := &identity.MemoryStore{}
	require.NoError(t, store.Save(&identity.Session{
		User:        &identity.User{ID: "u-1"},
		AccessToken: "stored",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))

	p := identity.NewHTTPProvider("http://127.0.0.1:0", testAPIKey, identity.WithTokenStore(store))

	current, err := p.GetSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "stored", current.AccessToken)
}
