package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/replybot/internal/domain"
	"github.com/pbaille/replybot/internal/store"
)

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate(context.Context) { c.n++ }

func newTestServer(t *testing.T) (*Server, *store.Store, *countingInvalidator) {
	t.Helper()
	st, err := store.New(store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	inv := &countingInvalidator{}
	return New(st, inv, 0.25, "", nil), st, inv
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestTagsLifecycle(t *testing.T) {
	srv, _, inv := newTestServer(t)
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/tags", "")
	assert.JSONEq(t, `{"tags":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/tags", `{"text":"^кот","strategy":"regexp","scope":"token"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var tag domain.Tag
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tag))
	assert.Equal(t, "^кот", tag.Text)
	assert.Equal(t, domain.StrategyExact, tag.Strategy)
	assert.Equal(t, 1, inv.n)

	rec = do(t, h, http.MethodPost, "/tags", `{"text":"hello"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/tags", "")
	var list struct{ Tags []domain.Tag }
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Tags, 2)
	assert.Equal(t, domain.StrategyFuzzy, list.Tags[1].Strategy)
	assert.Equal(t, domain.ScopePerToken, list.Tags[1].Scope)

	rec = do(t, h, http.MethodDelete, "/tags/"+jsonID(tag.ID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 3, inv.n)

	rec = do(t, h, http.MethodDelete, "/tags/"+jsonID(tag.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddTag_Validation(t *testing.T) {
	srv, _, inv := newTestServer(t)
	h := srv.Handler()

	for _, body := range []string{`{`, `{"text":"  "}`, `{"text":"x","strategy":"magic"}`, `{"text":"x","scope":"line"}`} {
		rec := do(t, h, http.MethodPost, "/tags", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Zero(t, inv.n)

	rec := do(t, h, http.MethodDelete, "/tags/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMedia(t *testing.T) {
	srv, st, _ := newTestServer(t)
	_, err := st.AddMedia(context.Background(), "meow", domain.MediaVoice, []byte("ogg"))
	require.NoError(t, err)

	rec := do(t, srv.Handler(), http.MethodGet, "/media", "")
	assert.JSONEq(t, `{"media":[{"id":1,"name":"meow","type":"voice"}]}`, rec.Body.String())
}

func TestRecognize(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()
	_, err := st.AddTag(ctx, "кот", domain.StrategyFuzzy, domain.ScopePerToken)
	require.NoError(t, err)

	rec := do(t, srv.Handler(), http.MethodPost, "/recognize", `{"text":"Смотри: КОТ!"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tag":"кот","matched":true,"tokens":["смотри","кот"]}`, rec.Body.String())

	rec = do(t, srv.Handler(), http.MethodPost, "/recognize", `{"text":"see https://кот.рф","urls":["https://кот.рф"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"matched":false,"tokens":["see"]}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := do(t, srv.Handler(), http.MethodOptions, "/tags", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
