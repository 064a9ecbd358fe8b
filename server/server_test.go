package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/ctfer-io/chore-server/pkg/errors"
	"github.com/ctfer-io/chore-server/pkg/cors"
	"github.com/ctfer-io/chore-server/pkg/fs"
	"github.com/ctfer-io/chore-server/pkg/lock"
)

// spyStore counts the calls reaching the store.
type spyStore struct {
	Store
	loads, saves atomic.Int32
	saveErr      error
}

func (s *spyStore) Load(ctx context.Context) (fs.Document, error) {
	s.loads.Add(1)
	return s.Store.Load(ctx)
}

func (s *spyStore) Save(ctx context.Context, doc fs.Document) error {
	s.saves.Add(1)
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.Store.Save(ctx, doc)
}

func newTestServer(t *testing.T, maxBodySize int64) (*Server, *spyStore) {
	t.Helper()

	return newTestServerWith(t, maxBodySize, fs.Options{Atomic: true})
}

func newTestServerWith(t *testing.T, maxBodySize int64, opts fs.Options) (*Server, *spyStore) {
	t.Helper()

	opts.Directory = filepath.Join(t.TempDir(), "data")
	st, err := fs.NewStore(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, st.Close())
	})

	policy, err := cors.New(cors.Config{
		Policy:   cors.PresetTrusted,
		Suffixes: []string{"tiiny.site"},
	})
	require.NoError(t, err)

	spy := &spyStore{Store: st}
	return NewServer(Options{
		Port:        3000,
		MaxBodySize: maxBodySize,
		Store:       spy,
		Policy:      policy,
	}), spy
}

func do(t *testing.T, srv http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func Test_U_Liveness(t *testing.T) {
	t.Parallel()

	srv, spy := newTestServer(t, 0)
	rec := do(t, srv, http.MethodGet, "/", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"chore-server"}`, rec.Body.String())
	assert.Zero(t, spy.loads.Load())
}

func Test_U_Healthcheck(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 0)
	rec := do(t, srv, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
}

func Test_U_FetchFresh(t *testing.T) {
	t.Parallel()

	srv, spy := newTestServer(t, 0)
	rec := do(t, srv, http.MethodGet, StatePath, "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "{}", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	// Data directory was created even though nothing was written
	info, err := os.Stat(spy.Directory())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func Test_U_ReplaceThenFetch(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 0)

	rec := do(t, srv, http.MethodPost, StatePath, `{"chores":{"alice":["dishes"]}}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, StatePath, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chores":{"alice":["dishes"]}}`, rec.Body.String())
}

func Test_U_ReplaceIdempotent(t *testing.T) {
	t.Parallel()

	srv, spy := newTestServer(t, 0)
	doc := `{"week":3,"chores":{"bob":["trash","laundry"]},"ratio":0.25}`

	for range 2 {
		rec := do(t, srv, http.MethodPost, StatePath, doc, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.EqualValues(t, 2, spy.saves.Load())

	rec := do(t, srv, http.MethodGet, StatePath, "", nil)
	assert.JSONEq(t, doc, rec.Body.String())
}

func Test_U_ReplaceRejectsNonObject(t *testing.T) {
	t.Parallel()

	var tests = map[string]struct {
		Body string
	}{
		"string":            {Body: `"not an object"`},
		"array":             {Body: `[1,2,3]`},
		"number":            {Body: `42`},
		"null":              {Body: `null`},
		"bool":              {Body: `false`},
		"empty":             {Body: ``},
		"broken":            {Body: `{"chores":`},
		"leading-zero":      {Body: `{"a":01}`},
		"trailing-dot":      {Body: `{"a":1.}`},
		"control-character": {Body: "{\"a\":\"\x01\"}"},
	}

	for testname, tt := range tests {
		t.Run(testname, func(t *testing.T) {
			t.Parallel()

			srv, spy := newTestServer(t, 0)
			prior := `{"chores":{"alice":["dishes"]}}`
			require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, StatePath, prior, nil).Code)

			rec := do(t, srv, http.MethodPost, StatePath, tt.Body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := errorResponse{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)

			// Only the prior replace reached the store
			assert.EqualValues(t, 1, spy.saves.Load())
			rec = do(t, srv, http.MethodGet, StatePath, "", nil)
			assert.JSONEq(t, prior, rec.Body.String())
		})
	}
}

func Test_U_ReplaceTooLarge(t *testing.T) {
	t.Parallel()

	srv, spy := newTestServer(t, 64)
	body := `{"chores":"` + strings.Repeat("x", 128) + `"}`

	rec := do(t, srv, http.MethodPost, StatePath, body, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
	assert.Zero(t, spy.saves.Load())

	rec = do(t, srv, http.MethodGet, StatePath, "", nil)
	assert.Equal(t, "{}", rec.Body.String())
}

func Test_U_ReplaceStorageFailure(t *testing.T) {
	t.Parallel()

	srv, spy := newTestServer(t, 0)
	spy.saveErr = &errs.ErrInternal{Sub: errors.New("disk full")}

	rec := do(t, srv, http.MethodPost, StatePath, `{"a":1}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func Test_U_MissingDataDirectory(t *testing.T) {
	t.Parallel()

	for _, kind := range lock.Kinds {
		t.Run(kind, func(t *testing.T) {
			t.Parallel()

			srv, spy := newTestServerWith(t, 0, fs.Options{Atomic: true, Lock: kind})
			require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, StatePath, `{"a":1}`, nil).Code)
			require.NoError(t, os.RemoveAll(spy.Directory()))

			rec := do(t, srv, http.MethodGet, StatePath, "", nil)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "{}", rec.Body.String())

			rec = do(t, srv, http.MethodPost, StatePath, `{"b":2}`, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			rec = do(t, srv, http.MethodGet, StatePath, "", nil)
			assert.JSONEq(t, `{"b":2}`, rec.Body.String())
		})
	}
}

func Test_U_PreflightSkipsStore(t *testing.T) {
	t.Parallel()

	var tests = map[string]struct {
		Origin        string
		Preflight     bool
		ExpectedAllow string
	}{
		"trusted-preflight": {
			Origin:        "https://example.tiiny.site",
			Preflight:     true,
			ExpectedAllow: "https://example.tiiny.site",
		},
		"rejected-preflight": {
			Origin:    "https://evil.example.com",
			Preflight: true,
		},
		"bare-options": {
			Origin:        "http://localhost:5173",
			ExpectedAllow: "http://localhost:5173",
		},
		"no-origin": {},
	}

	for testname, tt := range tests {
		t.Run(testname, func(t *testing.T) {
			t.Parallel()

			srv, spy := newTestServer(t, 0)
			headers := map[string]string{}
			if tt.Origin != "" {
				headers["Origin"] = tt.Origin
			}
			if tt.Preflight {
				headers["Access-Control-Request-Method"] = http.MethodPost
				headers["Access-Control-Request-Headers"] = "content-type"
			}

			rec := do(t, srv, http.MethodOptions, StatePath, "", headers)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, rec.Body.String())
			assert.Equal(t, tt.ExpectedAllow, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Zero(t, spy.loads.Load())
			assert.Zero(t, spy.saves.Load())
		})
	}
}

func Test_U_CORSOnSimpleRequests(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 0)

	rec := do(t, srv, http.MethodGet, StatePath, "", map[string]string{"Origin": "https://example.tiiny.site"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.tiiny.site", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, srv, http.MethodPost, StatePath, `{"a":1}`, map[string]string{"Origin": "https://evil.example.com"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// CORS headers are also set on errors
	rec = do(t, srv, http.MethodPost, StatePath, `[]`, map[string]string{"Origin": "http://127.0.0.1:8080"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "http://127.0.0.1:8080", rec.Header().Get("Access-Control-Allow-Origin"))
}

func Test_U_Routing(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 0)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/other", "", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, http.MethodPut, StatePath, `{}`, nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, srv, http.MethodDelete, StatePath, "", nil).Code)
}

func Test_U_RunShutdown(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 0)
	srv.Host = "127.0.0.1"
	srv.Port = 0
	assert.Equal(t, "127.0.0.1:0", srv.Addr())

	ctx := context.Background()
	require.NoError(t, srv.Run(ctx))
	assert.NoError(t, srv.Shutdown(ctx))
}

func Test_U_ShutdownNotRunning(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, 0)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
