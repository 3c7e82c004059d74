package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ragmux/internal/agents"
	"ragmux/internal/auth"
	"ragmux/internal/classifier"
	"ragmux/internal/debugtrace"
	"ragmux/internal/eventbus"
	"ragmux/internal/llmclient"
	"ragmux/internal/manager"
	"ragmux/internal/memory"
	"ragmux/internal/memory/preferences"
	"ragmux/internal/metacognition"
	"ragmux/internal/model"
	"ragmux/internal/quality"
	"ragmux/internal/react"
	"ragmux/internal/store"
)

// fakePrefs is an in-process preferences.Store double for tests that don't
// need a real Postgres connection.
type fakePrefs struct {
	values map[string]model.Preference
}

func newFakePrefs() *fakePrefs { return &fakePrefs{values: make(map[string]model.Preference)} }

func (f *fakePrefs) Init(ctx context.Context) error { return nil }

func (f *fakePrefs) Get(ctx context.Context, userID, key string) (model.Preference, bool, error) {
	p, ok := f.values[userID+"|"+key]
	return p, ok, nil
}

func (f *fakePrefs) Set(ctx context.Context, p model.Preference) (model.Preference, error) {
	f.values[p.UserID+"|"+p.Key] = p
	return p, nil
}

func (f *fakePrefs) List(ctx context.Context, userID string) ([]model.Preference, error) {
	var out []model.Preference
	for k, p := range f.values {
		if strings.HasPrefix(k, userID+"|") {
			out = append(out, p)
		}
	}
	return out, nil
}

var _ preferences.Store = (*fakePrefs)(nil)

type fakeProvider struct{}

func (fakeProvider) Name() string { return "fake" }

func (fakeProvider) Generate(ctx context.Context, req llmclient.Request) (llmclient.Response, error) {
	switch {
	case strings.Contains(req.System, "classify"):
		return llmclient.Response{Content: `{"category":"simple_chat","complexity":"low","confidence":0.9}`}, nil
	case strings.Contains(req.System, "quality reviewer"):
		return llmclient.Response{Content: `{"relevance":0.9,"completeness":0.9,"accuracy_signals":0.9,"language_match":1.0,"harmful_content_free":1.0,"issues":[]}`}, nil
	case strings.Contains(req.System, "self-improvement"):
		return llmclient.Response{Content: `{"accuracy":0.8,"completeness":0.8,"relevance":0.8,"clarity":0.8,"efficiency":0.8,"user_alignment":0.8,"strengths":[],"weaknesses":[]}`}, nil
	default:
		return llmclient.Response{Content: "ok"}, nil
	}
}

func newTestServer(t *testing.T) (*Server, *auth.TokenStore) {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.Init(context.Background()))

	llm := llmclient.New(fakeProvider{})
	reg := agents.NewRegistry(5)
	reg.Register(&agents.Func{
		AgentName: "casual_chat_agent",
		HandleFunc: func(ctx context.Context, tc *agents.TaskContext) (agents.Result, error) {
			return agents.Result{Output: "hi back"}, nil
		},
	})
	bus := eventbus.New(16)
	trace := debugtrace.New(200, 1000)
	engine := react.New(reg, bus, trace, llm, st)
	mem := memory.New(st, nil, nil, nil, 20)

	mgr := manager.New(manager.Deps{
		Store:      st,
		Memory:     mem,
		Classifier: classifier.New(llm),
		Engine:     engine,
		Quality:    quality.New(llm),
		Evaluator:  metacognition.NewAdaptiveEvaluator(metacognition.NewSelfEvaluator(llm)),
		Bus:        bus,
		Trace:      trace,
		Registry:   reg,
	})

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.DefaultCost)
	require.NoError(t, err)
	tokens := auth.New("admin", string(hash), 60)

	srv := NewServer(Deps{
		Manager:     mgr,
		Store:       st,
		Trace:       trace,
		Bus:         bus,
		Preferences: newFakePrefs(),
		Auth:        tokens,
	})
	return srv, tokens
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(b))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, r)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogin_SucceedsAndRejects(t *testing.T) {
	srv, _ := newTestServer(t)

	ok := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin", "password": "hunter2"})
	require.Equal(t, http.StatusOK, ok.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(ok.Body.Bytes(), &body))
	assert.NotEmpty(t, body["token"])

	bad := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestChat_HappyPath(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/chat", map[string]string{
		"session_id": "sess-1", "user_id": "user-1", "query": "hello there",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result manager.ChatResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "hi back", result.Output)
	assert.NotEmpty(t, result.TaskUID)
}

func TestChat_RejectsEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/chat", map[string]string{"session_id": "s", "user_id": "u"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionsAndTasksLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	chatRec := doJSON(t, srv, http.MethodPost, "/api/v1/chat", map[string]string{
		"session_id": "sess-2", "user_id": "user-1", "query": "hello",
	})
	require.Equal(t, http.StatusOK, chatRec.Code)
	var result manager.ChatResult
	require.NoError(t, json.Unmarshal(chatRec.Body.Bytes(), &result))

	listRec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, listRec.Code)

	getRec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/sess-2", nil)
	assert.Equal(t, http.StatusOK, getRec.Code)

	turnsRec := doJSON(t, srv, http.MethodGet, "/api/v1/sessions/sess-2/turns", nil)
	require.Equal(t, http.StatusOK, turnsRec.Code)

	taskRec := doJSON(t, srv, http.MethodGet, "/api/v1/tasks/"+result.TaskUID, nil)
	require.Equal(t, http.StatusOK, taskRec.Code)

	missingRec := doJSON(t, srv, http.MethodGet, "/api/v1/tasks/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, missingRec.Code)
}

func TestDebugTrace_ReturnsRecordedEntries(t *testing.T) {
	srv, _ := newTestServer(t)
	doJSON(t, srv, http.MethodPost, "/api/v1/chat", map[string]string{
		"session_id": "sess-3", "user_id": "user-1", "query": "hello",
	})
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/debug/trace?session_id=sess-3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	traces, ok := body["traces"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, traces)
}

func TestPreferences_SetAndList(t *testing.T) {
	srv, _ := newTestServer(t)
	setRec := doJSON(t, srv, http.MethodPut, "/api/v1/users/user-1/preferences/locale", map[string]string{"value": "en-US"})
	require.Equal(t, http.StatusOK, setRec.Code)

	listRec := doJSON(t, srv, http.MethodGet, "/api/v1/users/user-1/preferences", nil)
	require.Equal(t, http.StatusOK, listRec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &body))
	prefs, ok := body["preferences"].([]any)
	require.True(t, ok)
	assert.Len(t, prefs, 1)
}
