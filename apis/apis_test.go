package apis

import (
	"bytes"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeedEvent(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Request
		ok   bool
	}{
		{"plain text", "  build passed ", Request{Text: "build passed"}, true},
		{"json text", `{"text": "hi"}`, Request{Text: "hi"}, true},
		{"json info", `{"info": true}`, Request{Info: true}, true},
		{"empty", "   ", Request{}, false},
		{"empty json", `{}`, Request{}, false},
		{"broken json", `{"text": `, Request{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseFeedEvent(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	req, ok := parseFeedEvent(`{"brightness": 30}`)
	require.True(t, ok)
	require.NotNil(t, req.Brightness)
	assert.Equal(t, 30, *req.Brightness)
}

func TestNewRequestCredentials(t *testing.T) {
	req, err := newRequest(HTTPCredentials{URL: "http://localhost/updates", Username: "u", Password: "p"})
	require.NoError(t, err)
	user, pass, ok := req.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
	assert.Equal(t, "text/event-stream", req.Header.Get("Accept"))

	req, err = newRequest(HTTPCredentials{URL: "http://localhost/updates"})
	require.NoError(t, err)
	_, _, ok = req.BasicAuth()
	assert.False(t, ok)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return c
}

func TestRemoteWebsocket(t *testing.T) {
	remote := NewRemote(zerolog.Nop())
	srv := httptest.NewServer(remote.Handler())
	defer srv.Close()

	c := dial(t, srv)
	defer c.Close()

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"text": "hello", "brightness": 80}`)))
	select {
	case req := <-remote.Requests():
		assert.Equal(t, "hello", req.Text)
		require.NotNil(t, req.Brightness)
		assert.Equal(t, 80, *req.Brightness)
	case <-time.After(time.Second):
		t.Fatal("no request received")
	}
	var r reply
	require.NoError(t, c.ReadJSON(&r))
	assert.True(t, r.OK)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`nope`)))
	require.NoError(t, c.ReadJSON(&r))
	assert.False(t, r.OK)
	assert.Contains(t, r.Error, "invalid request")

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{}`)))
	require.NoError(t, c.ReadJSON(&r))
	assert.Equal(t, "empty request", r.Error)

	remote.Notify("UpdateBrightness", []byte{1, 2})
	require.NoError(t, c.ReadJSON(&r))
	assert.Equal(t, "UpdateBrightness", r.Opcode)
	assert.Equal(t, []byte{1, 2}, r.Payload)
}

func TestRemoteRejectsForeignOrigin(t *testing.T) {
	remote := NewRemote(zerolog.Nop())
	srv := httptest.NewServer(remote.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	assert.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRemoteImage(t *testing.T) {
	remote := NewRemote(zerolog.Nop())
	srv := httptest.NewServer(remote.Handler())
	defer srv.Close()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	resp, err := http.Post(srv.URL+"/image", "image/png", &buf)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	select {
	case req := <-remote.Requests():
		require.NotNil(t, req.Image)
		assert.Equal(t, 8, req.Image.Bounds().Dx())
	case <-time.After(time.Second):
		t.Fatal("no request received")
	}

	resp, err = http.Post(srv.URL+"/image", "image/png", strings.NewReader("garbage"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/image")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
