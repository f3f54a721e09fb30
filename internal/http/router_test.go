package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"property-registry/backend/internal/config"
	"property-registry/backend/internal/domain/account"
	"property-registry/backend/internal/domain/property"
	"property-registry/backend/internal/domain/session"
	"property-registry/backend/internal/ready"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	mu        sync.Mutex
	passwords map[string]string // by email
}

func (f *fakeProvider) CreateUser(_ context.Context, email, password string) (*account.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.passwords[email]; ok {
		return nil, fmt.Errorf("%w: EMAIL_EXISTS", account.ErrEmailExists)
	}
	f.passwords[email] = password
	return &account.User{UID: "uid-" + email, Email: email}, nil
}

func (f *fakeProvider) SignInWithPassword(_ context.Context, email, password string) (*account.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.passwords[email]; !ok || p != password {
		return nil, fmt.Errorf("%w: INVALID_LOGIN_CREDENTIALS", account.ErrInvalidCredentials)
	}
	return &account.User{UID: "uid-" + email, Email: email, IDToken: "tok:" + email, RefreshToken: "refresh"}, nil
}

func (f *fakeProvider) RevokeSessions(context.Context, string) error { return nil }

func (f *fakeProvider) UpdatePassword(_ context.Context, uid, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passwords[strings.TrimPrefix(uid, "uid-")] = newPassword
	return nil
}

// stubVerifier accepts the "tok:<email>" tokens issued by fakeProvider.
type stubVerifier struct{}

func (stubVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	email, ok := strings.CutPrefix(idToken, "tok:")
	if !ok || email == "" {
		return nil, errors.New("bad token")
	}
	return &auth.Token{UID: "uid-" + email, Claims: map[string]interface{}{"email": email}}, nil
}

func bearer(email string) []string {
	return []string{"Authorization", "Bearer tok:" + email}
}

type testEnv struct {
	handler http.Handler
	sig     *ready.Signal[*Facades]
	store   *property.MemStore
}

func newTestEnv(t *testing.T, requireAuth bool) *testEnv {
	t.Helper()
	store := property.NewMemStore()
	return newTestEnvWithStore(t, requireAuth, store, store)
}

func newTestEnvWithStore(t *testing.T, requireAuth bool, mem *property.MemStore, store property.Store) *testEnv {
	t.Helper()
	sessions := session.NewMemoryStore()
	accounts := account.NewService(&fakeProvider{passwords: map[string]string{}}, sessions)
	t.Cleanup(accounts.Close)

	sig := ready.New[*Facades]()
	require.True(t, sig.Publish(&Facades{
		Accounts:   accounts,
		Properties: property.NewService(store),
		Sessions:   sessions,
		Verifier:   stubVerifier{},
	}))

	h := NewRouter(RouterDeps{
		Cfg:       config.Config{RequireAuth: requireAuth, AllowedOrigins: []string{"http://localhost:3000"}},
		Ready:     sig,
		KeepAlive: 50 * time.Millisecond,
	})
	return &testEnv{handler: h, sig: sig, store: mem}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header ...string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestRouter_NotReady(t *testing.T) {
	h := NewRouter(RouterDeps{Ready: ready.New[*Facades]()})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/properties", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ReadyzWait(t *testing.T) {
	sig := ready.New[*Facades]()
	h := NewRouter(RouterDeps{Ready: sig})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz?wait=20ms", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	go func() {
		time.Sleep(20 * time.Millisecond)
		sig.Publish(&Facades{})
	}()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz?wait=5s", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz?wait=soon", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AccountFlow(t *testing.T) {
	env := newTestEnv(t, false)
	a := bearer("a@example.com")

	code, body := env.do(t, http.MethodPost, "/v1/auth/accounts", `{"email":"a@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, true, body["success"])
	user, _ := body["user"].(map[string]any)
	assert.Equal(t, "tok:a@example.com", user["idToken"], "creation signs the user in")

	code, body = env.do(t, http.MethodPost, "/v1/auth/accounts", `{"email":"a@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", body["kind"])

	code, body = env.do(t, http.MethodGet, "/v1/auth/me", "", a...)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["authenticated"])
	me, _ := body["user"].(map[string]any)
	assert.Equal(t, "a@example.com", me["email"])
	assert.NotContains(t, me, "idToken")
	assert.NotContains(t, me, "refreshToken")

	code, _ = env.do(t, http.MethodPost, "/v1/auth/password", `{"newPassword":"secret2"}`, a...)
	assert.Equal(t, http.StatusOK, code)

	code, _ = env.do(t, http.MethodPost, "/v1/auth/sign-out", "", a...)
	assert.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodPost, "/v1/auth/sign-in", `{"email":"a@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", body["kind"])

	code, body = env.do(t, http.MethodPost, "/v1/auth/sign-in", `{"email":"a@example.com","password":"secret2"}`)
	assert.Equal(t, http.StatusOK, code)
	user, _ = body["user"].(map[string]any)
	assert.Equal(t, "tok:a@example.com", user["idToken"])
	assert.Equal(t, "refresh", user["refreshToken"])

	code, body = env.do(t, http.MethodPost, "/v1/auth/sign-in", `{"email":"a@example.com","bogus":1}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", body["kind"])
}

func TestRouter_SessionRoutesIgnoreOtherClients(t *testing.T) {
	for _, requireAuth := range []bool{false, true} {
		t.Run(fmt.Sprintf("requireAuth=%v", requireAuth), func(t *testing.T) {
			env := newTestEnv(t, requireAuth)

			code, _ := env.do(t, http.MethodPost, "/v1/auth/accounts", `{"email":"a@example.com","password":"secret1"}`)
			require.Equal(t, http.StatusCreated, code)
			code, _ = env.do(t, http.MethodPost, "/v1/auth/sign-in", `{"email":"a@example.com","password":"secret1"}`)
			require.Equal(t, http.StatusOK, code)

			// an anonymous client cannot act on that session
			code, body := env.do(t, http.MethodPost, "/v1/auth/password", `{"newPassword":"hijacked"}`)
			assert.Equal(t, http.StatusUnauthorized, code)
			assert.Equal(t, "unauthenticated", body["kind"])

			code, body = env.do(t, http.MethodGet, "/v1/auth/me", "")
			assert.Equal(t, http.StatusUnauthorized, code)
			assert.NotContains(t, body, "user")

			code, _ = env.do(t, http.MethodPost, "/v1/auth/sign-out", "")
			assert.Equal(t, http.StatusUnauthorized, code)
			code, _ = env.do(t, http.MethodGet, "/v1/session", "")
			assert.Equal(t, http.StatusUnauthorized, code)

			// another signed-in user only sees themselves
			code, _ = env.do(t, http.MethodPost, "/v1/auth/accounts", `{"email":"b@example.com","password":"secret1"}`)
			require.Equal(t, http.StatusCreated, code)
			code, body = env.do(t, http.MethodGet, "/v1/auth/me", "", bearer("b@example.com")...)
			require.Equal(t, http.StatusOK, code)
			me, _ := body["user"].(map[string]any)
			assert.Equal(t, "b@example.com", me["email"])

			// the original password still works
			code, _ = env.do(t, http.MethodPost, "/v1/auth/sign-in", `{"email":"a@example.com","password":"secret1"}`)
			assert.Equal(t, http.StatusOK, code)
		})
	}
}

func (e *testEnv) sessionOf(email string) (map[string]any, bool) {
	req := httptest.NewRequest(http.MethodGet, "/v1/session", nil)
	req.Header.Set("Authorization", "Bearer tok:"+email)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		return nil, false
	}
	var body struct {
		Session map[string]any `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		return nil, false
	}
	return body.Session, true
}

func TestRouter_SessionReflectsSignIn(t *testing.T) {
	env := newTestEnv(t, false)

	got, ok := env.sessionOf("a@example.com")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"isLoggedIn": false}, got)

	code, _ := env.do(t, http.MethodPost, "/v1/auth/accounts", `{"email":"a@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, code)

	want := map[string]any{"isLoggedIn": true, "userEmail": "a@example.com", "userId": "uid-a@example.com"}
	require.Eventually(t, func() bool {
		got, ok := env.sessionOf("a@example.com")
		return ok && assert.ObjectsAreEqual(want, got)
	}, time.Second, 5*time.Millisecond)

	code, _ = env.do(t, http.MethodPost, "/v1/auth/sign-out", "", bearer("a@example.com")...)
	require.Equal(t, http.StatusOK, code)
	require.Eventually(t, func() bool {
		got, ok := env.sessionOf("a@example.com")
		return ok && got["isLoggedIn"] == false
	}, time.Second, 5*time.Millisecond)
}

func TestRouter_PropertyCRUD(t *testing.T) {
	env := newTestEnv(t, false)

	code, body := env.do(t, http.MethodPost, "/v1/properties", `{"plotNumber":"P-1","district":"North"}`)
	require.Equal(t, http.StatusCreated, code)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	code, body = env.do(t, http.MethodPost, "/v1/properties", `{"district":"North"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", body["kind"])

	code, _ = env.do(t, http.MethodPatch, "/v1/properties/"+id, `{"ownerInfo":"Jane"}`)
	assert.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodPatch, "/v1/properties/missing", `{"ownerInfo":"Jane"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["kind"])

	code, body = env.do(t, http.MethodGet, "/v1/properties", "")
	require.Equal(t, http.StatusOK, code)
	data, _ := body["data"].([]any)
	require.Len(t, data, 1)
	rec, _ := data[0].(map[string]any)
	assert.Equal(t, "Jane", rec["ownerInfo"])

	code, body = env.do(t, http.MethodGet, "/v1/properties/search?q=NORTH", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 1)

	code, body = env.do(t, http.MethodGet, "/v1/properties/search?q=south", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 0)

	code, _ = env.do(t, http.MethodDelete, "/v1/properties/"+id, "")
	assert.Equal(t, http.StatusOK, code)

	code, body = env.do(t, http.MethodGet, "/v1/properties", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 0)
}

func TestRouter_PropertiesRequireToken(t *testing.T) {
	env := newTestEnv(t, true)

	code, body := env.do(t, http.MethodGet, "/v1/properties", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", body["kind"])

	code, _ = env.do(t, http.MethodGet, "/v1/properties", "", bearer("a@example.com")...)
	assert.Equal(t, http.StatusOK, code)

	// sign-in stays open
	code, _ = env.do(t, http.MethodPost, "/v1/auth/sign-in", `{"email":"a@example.com","password":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRouter_StreamSendsSnapshots(t *testing.T) {
	env := newTestEnv(t, false)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/properties/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 8)
	go func() {
		defer close(events)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if line := sc.Text(); strings.HasPrefix(line, "data: ") {
				events <- strings.TrimPrefix(line, "data: ")
			}
		}
	}()

	next := func() []property.Property {
		t.Helper()
		select {
		case raw, ok := <-events:
			require.True(t, ok, "stream closed")
			var msg struct {
				Data []property.Property `json:"data"`
			}
			require.NoError(t, json.Unmarshal([]byte(raw), &msg))
			return msg.Data
		case <-ctx.Done():
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}

	assert.Empty(t, next(), "initial snapshot")

	_, err = env.store.Create(context.Background(), map[string]any{property.FieldPlotNumber: "P-9"})
	require.NoError(t, err)

	got := next()
	for len(got) == 0 {
		got = next()
	}
	require.Len(t, got, 1)
	assert.Equal(t, "P-9", got[0].PlotNumber)
}

type deniedWatchStore struct {
	*property.MemStore
}

func (deniedWatchStore) Watch(context.Context, func([]property.Property)) error {
	return fmt.Errorf("%w: missing or insufficient permissions", property.ErrUnauthorized)
}

func TestRouter_StreamEndsWithErrorEvent(t *testing.T) {
	mem := property.NewMemStore()
	env := newTestEnvWithStore(t, false, mem, deniedWatchStore{MemStore: mem})
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/properties/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// the server closes the stream after the error event, so reading ends
	var event, data string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	require.NoError(t, ctx.Err(), "stream was not closed by the server")

	assert.Equal(t, "error", event)
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "permission_denied", body["kind"])
	assert.Contains(t, body["error"], "insufficient permissions")
}
