package wsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"ragmux/internal/agents"
	"ragmux/internal/classifier"
	"ragmux/internal/debugtrace"
	"ragmux/internal/eventbus"
	"ragmux/internal/llmclient"
	"ragmux/internal/manager"
	"ragmux/internal/memory"
	"ragmux/internal/metacognition"
	"ragmux/internal/model"
	"ragmux/internal/quality"
	"ragmux/internal/react"
	"ragmux/internal/store"
)

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

func newTestHandler(t *testing.T) *Handler {
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
	return New(bus, mgr)
}

func TestServeSession_StreamsFinalEventAfterChatSubmission(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/sessions/{sessionID}", h.ServeSession)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/sess-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type": "chat", "session_id": "sess-1", "user_id": "user-1", "query": "hello",
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var evt model.ChatEvent
	for {
		if err := conn.ReadJSON(&evt); err != nil {
			t.Fatalf("reading event: %v", err)
		}
		if evt.Type == model.EventFinal {
			break
		}
	}
	require.Equal(t, "hi back", evt.Data)
}
