package game

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// TestWSConnKeepalive : サーバは定期的にpingを打ち、pongが返る限り
// 無操作のコネクションを切らない. pongが途絶えたら切る.
func TestWSConnKeepalive(t *testing.T) {
	origPing, origPong := pingPeriod, pongTimeout
	pingPeriod, pongTimeout = 20*time.Millisecond, 100*time.Millisecond
	defer func() { pingPeriod, pongTimeout = origPing, origPong }()

	upgrader := websocket.Upgrader{}
	serverClosed := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		c := NewWSConn(ws)
		// 本番ではservice側のreadLoopに相当する. pongはこの読み取りで処理される
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}
		c.Close("read loop finished")
		close(serverClosed)
	}))
	defer ts.Close()

	client, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	var pings atomic.Int64
	var answer atomic.Bool
	answer.Store(true)
	client.SetPingHandler(func(message string) error {
		pings.Add(1)
		if !answer.Load() {
			return nil
		}
		return client.WriteControl(websocket.PongMessage, []byte(message),
			time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// 何も送らなくても、pongを返している間はpongTimeoutを超えて生き続ける
	time.Sleep(4 * pongTimeout)
	require.GreaterOrEqual(t, pings.Load(), int64(3))
	select {
	case <-serverClosed:
		t.Fatal("quiet but responsive conn was closed")
	default:
	}

	// pongを止めるとデッドラインで切られる
	answer.Store(false)
	select {
	case <-serverClosed:
	case <-time.After(10 * pongTimeout):
		t.Fatal("unresponsive conn was not closed")
	}
}
