package cmd

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/xerrors"
)

// event : サーバ→クライアントのエンベロープ.
type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// botConn : シナリオ用のwebsocketクライアント.
// 受信は専用goroutineで行い、イベントをチャネルに流す.
type botConn struct {
	ws     *websocket.Conn
	events chan *event
}

func wsURL() string {
	u := serverURL
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return strings.TrimSuffix(u, "/") + "/ws"
}

func dial(ctx context.Context) (*botConn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL(), nil)
	if err != nil {
		return nil, xerrors.Errorf("dial %v: %w", wsURL(), err)
	}
	c := &botConn{
		ws:     ws,
		events: make(chan *event, 32),
	}
	go c.readLoop()
	return c, nil
}

func (c *botConn) readLoop() {
	defer close(c.events)
	for {
		_, b, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var ev event
		if err := json.Unmarshal(b, &ev); err != nil {
			logger.Debugf("bad frame: %v", err)
			continue
		}
		c.events <- &ev
	}
}

func (c *botConn) close() {
	_ = c.ws.Close()
}

func (c *botConn) send(typ string, data interface{}) error {
	b, err := json.Marshal(map[string]interface{}{"type": typ, "data": data})
	if err != nil {
		return xerrors.Errorf("marshal %v: %w", typ, err)
	}
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// waitEvent : evtypesのどれかが来るまで待つ. 他のイベントは読み捨てる.
func (c *botConn) waitEvent(d time.Duration, evtypes ...string) (*event, bool) {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			return nil, false

		case ev, ok := <-c.events:
			if !ok {
				return nil, false
			}
			for _, typ := range evtypes {
				if ev.Type == typ {
					return ev, true
				}
			}
			logger.Debugf("discard event: %v", ev.Type)
		}
	}
}

func (c *botConn) waitEventData(d time.Duration, evtype string, v interface{}) error {
	ev, ok := c.waitEvent(d, evtype)
	if !ok {
		return xerrors.Errorf("%v event not received within %v", evtype, d)
	}
	if err := json.Unmarshal(ev.Data, v); err != nil {
		return xerrors.Errorf("%v data unmarshal: %w", evtype, err)
	}
	return nil
}
