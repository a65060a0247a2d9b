package hub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/client"
	"github.com/schallerala/unifr-master-ilids-prompt-engineering-playground-client/internal/store"
)

// newService fakes the remote service with canned responses.
func newService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /variations", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `["ViT-B-32","ViT-L-14"]`)
	})
	mux.HandleFunc("GET /text-classification", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `["by-mean"]`)
	})
	mux.HandleFunc("GET /images", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"index":["c1","c2"],"categories":["Alarm","Background"]}`)
	})
	mux.HandleFunc("GET /text", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"text":[],"classification":[]}`)
	})
	for _, route := range []string{"POST /text/add", "POST /text/add-all", "DELETE /text", "PUT /text", "POST /play/{clip}"} {
		mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}
	mux.HandleFunc("POST /similarity", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"similarities":{"c1":[{"text":"fence","classification":true,"similarity":0.7}]},
			"confusion":{"1":{"tp":1,"fn":0,"fp":1,"tn":0,"topk_text_classification":{"c1":true,"c2":true}}},
			"min":0.1,"max":0.9}`)
	})
	mux.HandleFunc("POST /tsne-images", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Alarm":{"text":["c1"],"x":[1],"y":[2]}}`)
	})
	mux.HandleFunc("POST /roc-auc", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"fpr":[0,1],"tpr":[0,1],"thresholds":[1,0],"auc":0.5}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestHub(t *testing.T) (*Hub, *store.Store, *httptest.Server) {
	t.Helper()
	svc := newService(t)
	s := store.New(client.New(svc.URL, 5*time.Second))
	t.Cleanup(s.Close)
	require.NoError(t, s.Init(context.Background()))
	s.Wait()

	h := New(s, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)

	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	return h, s, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readUntil reads messages until match returns true or the deadline passes.
func readUntil(t *testing.T, ws *websocket.Conn, match func(Message) bool) Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg Message
		require.NoError(t, ws.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func decodeView(t *testing.T, msg Message) View {
	t.Helper()
	var v View
	require.NoError(t, json.Unmarshal(msg.Payload, &v))
	return v
}

func TestHealth(t *testing.T) {
	_, _, srv := newTestHub(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestStateEndpoint(t *testing.T) {
	_, _, srv := newTestHub(t)

	resp, err := http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	var v View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, "ViT-B-32", v.State.Options.SelectedModelVariation)
	assert.Equal(t, "by-mean", v.State.Options.SelectedTextClassificationMethod)
	assert.Len(t, v.Clips, 2)
	assert.NotNil(t, v.Roc)
}

func TestWebsocketSendsStateOnConnect(t *testing.T) {
	h, _, srv := newTestHub(t)
	ws := dial(t, srv)

	msg := readUntil(t, ws, func(m Message) bool { return m.Type == TypeState })
	v := decodeView(t, msg)
	assert.Equal(t, []string{"ViT-B-32", "ViT-L-14"}, v.State.Options.ModelVariations)
	assert.Eventually(t, func() bool { return h.Connections() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWebsocketAppliesIntents(t *testing.T) {
	_, s, srv := newTestHub(t)
	ws := dial(t, srv)
	readUntil(t, ws, func(m Message) bool { return m.Type == TypeState })

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type":    IntentAddText,
		"payload": map[string]any{"text": " Fence ", "classification": true},
	}))
	msg := readUntil(t, ws, func(m Message) bool {
		if m.Type != TypeState {
			return false
		}
		v := decodeView(t, m)
		return len(v.State.Texts.List) == 1 && len(v.Confusions) == 1
	})
	v := decodeView(t, msg)
	assert.Equal(t, "fence", v.State.Texts.List[0].Text)
	assert.Equal(t, 1, v.Confusions[0].K)

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type":    IntentSelectModelVariation,
		"payload": map[string]any{"value": "ViT-L-14"},
	}))
	readUntil(t, ws, func(m Message) bool {
		return m.Type == TypeState && decodeView(t, m).State.Options.SelectedModelVariation == "ViT-L-14"
	})

	require.NoError(t, ws.WriteJSON(map[string]any{"type": IntentToggleShowNotAlarms}))
	readUntil(t, ws, func(m Message) bool {
		return m.Type == TypeState && len(decodeView(t, m).Clips) == 1
	})

	s.Wait()
	assert.False(t, s.Snapshot().Clips.Filtering.ShowNotAlarms)
}

func TestWebsocketRejectsBadIntents(t *testing.T) {
	_, _, srv := newTestHub(t)
	ws := dial(t, srv)
	readUntil(t, ws, func(m Message) bool { return m.Type == TypeState })

	tests := []struct {
		name    string
		message map[string]any
		want    string
	}{
		{"unknown intent", map[string]any{"type": "explode"}, "unknown intent"},
		{"unknown option", map[string]any{"type": IntentSelectModelVariation, "payload": map[string]any{"value": "RN50"}}, "unknown option"},
		{"missing payload", map[string]any{"type": IntentAddText}, "missing payload"},
		{"empty text", map[string]any{"type": IntentAddText, "payload": map[string]any{"text": "  "}}, "empty text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, ws.WriteJSON(tt.message))
			msg := readUntil(t, ws, func(m Message) bool { return m.Type == TypeError })

			var p ErrorPayload
			require.NoError(t, json.Unmarshal(msg.Payload, &p))
			assert.Contains(t, p.Message, tt.want)
		})
	}
}

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want store.Action
	}{
		{"toggle all", `{"type":"toggle_all","payload":{"value":true}}`, store.ToggleAllTo{Value: true}},
		{"toggle text", `{"type":"toggle_text","payload":{"text":"fence"}}`, store.ToggleTextClassification{Text: "fence"}},
		{"remove text", `{"type":"remove_text","payload":{"text":"fence"}}`, store.RemoveText{Text: "fence"}},
		{"wrong top-k", `{"type":"toggle_wrong_topk","payload":{"k":3}}`, store.ToggleShowOnlyWrongTopK{K: 3}},
		{"softmax", `{"type":"toggle_softmax"}`, store.ToggleApplySoftmax{}},
		{"all similarities", `{"type":"toggle_all_similarities"}`, store.ToggleShowAllSimilarities{}},
		{"method", `{"type":"select_text_classification_method","payload":{"value":"by-mean"}}`, store.SelectTextClassificationMethod{Value: "by-mean"}},
		{"subtraction", `{"type":"set_subtraction_texts","payload":{"value":"a, b"}}`, store.SetSubtractionTexts{Value: "a, b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg Message
			require.NoError(t, json.Unmarshal([]byte(tt.msg), &msg))
			got, err := decodeAction(msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeActionErrors(t *testing.T) {
	_, err := decodeAction(Message{Type: "nope"})
	assert.ErrorIs(t, err, ErrUnknownIntent)

	_, err = decodeAction(Message{Type: IntentToggleAll, Payload: json.RawMessage(`{"value":"yes"}`)})
	assert.Error(t, err)

	_, err = decodeAction(Message{Type: IntentToggleAll, Payload: json.RawMessage(`{}`)})
	assert.ErrorContains(t, err, "missing value")
}

func TestJoinQueuesStateBeforeLaterChanges(t *testing.T) {
	s := store.New(client.New(newService(t).URL, 5*time.Second))
	t.Cleanup(s.Close)
	h := New(s, nil)

	c := &conn{id: "view", send: make(chan []byte, sendBuffer)}
	require.NoError(t, h.join(c))
	assert.Equal(t, 1, h.Connections())

	require.NoError(t, s.Dispatch(store.ToggleShowAlarms{}))
	h.broadcast()

	require.Len(t, c.send, 2)
	views := make([]View, 2)
	for i := range views {
		var msg Message
		require.NoError(t, json.Unmarshal(<-c.send, &msg))
		assert.Equal(t, TypeState, msg.Type)
		views[i] = decodeView(t, msg)
	}
	assert.True(t, views[0].State.Clips.Filtering.ShowAlarms)
	assert.False(t, views[1].State.Clips.Filtering.ShowAlarms, "change after joining reaches the view")
}
