package game

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/xerrors"

	"arcade/log"
	"arcade/metrics"
)

const (
	// ConnSendBufSize : 送信キューの深さ. 溢れたフレームは捨てる.
	ConnSendBufSize = 64

	writeTimeout = 5 * time.Second
)

// keepalive間隔. ブラウザはpingへ自動でpongを返すので、pongが
// 途絶えたコネクションだけが読み取りデッドラインで切れる.
// 在室中の無操作にプロトコルレベルのタイムアウトはない.
var (
	pongTimeout = 75 * time.Second
	pingPeriod  = 60 * time.Second
)

type ConnID string

// Conn : クライアントへの送信経路.
// RoomのmsgLoopからはSendしか呼ばれない. Sendはブロックしない.
type Conn interface {
	ID() ConnID
	Send(ev *Event) error
	Close(msg string)
}

// WSConn : gorilla/websocketのConn実装.
// 書き込みは専用goroutine(writePump)に寄せ、遅いクライアントが
// ルームの進行を止めないようにする.
type WSConn struct {
	id   ConnID
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewWSConn(conn *websocket.Conn) *WSConn {
	c := &WSConn{
		id:   ConnID(uuid.NewString()),
		conn: conn,
		send: make(chan []byte, ConnSendBufSize),
		done: make(chan struct{}),
	}
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	go c.writePump()
	return c
}

func (c *WSConn) ID() ConnID {
	return c.id
}

// Send : イベントを送信キューに積む.
// キューが一杯なら捨てる(状態は既に確定しており、ブロックやロール
// バックはしない).
func (c *WSConn) Send(ev *Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return xerrors.Errorf("event marshal: %w", err)
	}
	select {
	case <-c.done:
		return xerrors.Errorf("conn closed: conn=%v", c.id)
	case c.send <- b:
		metrics.EventSent.Add(1)
	default:
		log.Debugf("send buffer full, frame dropped: conn=%v ev=%v", c.id, ev.Type)
	}
	return nil
}

func (c *WSConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debugf("ping error: conn=%v %v", c.id, err)
				c.Close("ping error")
				return
			}
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Debugf("write error: conn=%v %v", c.id, err)
				c.Close("write error")
				return
			}
		}
	}
}

func (c *WSConn) Close(msg string) {
	c.closeOnce.Do(func() {
		log.Debugf("conn close: conn=%v %v", c.id, msg)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, msg),
			time.Now().Add(writeTimeout))
		close(c.done)
		_ = c.conn.Close()
	})
}
