package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func jsonDecode(res *http.Response, v interface{}) error {
	return json.NewDecoder(res.Body).Decode(v)
}

type wsEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newWSServer(t *testing.T) (*ArcadeService, *httptest.Server) {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc, err := New(sqlx.NewDb(db, "mysql"), testConf())
	require.NoError(t, err)

	r := mux.NewRouter()
	svc.registerRoutes(r)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return svc, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return &wsClient{t: t, conn: ws}
}

// wsClient : テスト用の薄いクライアント. 目的のイベントが来るまで
// 他のイベントは読み捨てる.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (c *wsClient) send(typ, data string) {
	c.t.Helper()
	frame := fmt.Sprintf(`{"type":%q,"data":%s}`, typ, data)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func (c *wsClient) next(evType string) json.RawMessage {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		_, b, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for %v", evType)
		var ev wsEvent
		require.NoError(c.t, json.Unmarshal(b, &ev))
		if ev.Type == evType {
			return ev.Data
		}
	}
}

func TestWebSocketRoomLifecycle(t *testing.T) {
	svc, ts := newWSServer(t)

	host := dialWS(t, ts)
	host.send("create-room", `{"gameId":"tic-tac-toe","playerName":"Alice"}`)

	var created struct {
		RoomCode string `json:"roomCode"`
		PlayerID string `json:"playerId"`
		IsHost   bool   `json:"isHost"`
	}
	require.NoError(t, json.Unmarshal(host.next("room-created"), &created))
	require.Regexp(t, "^[A-Z0-9]{6}$", created.RoomCode)
	require.NotEmpty(t, created.PlayerID)
	require.True(t, created.IsHost)
	require.Equal(t, 1, svc.repo.NumRooms())

	guest := dialWS(t, ts)
	guest.send("join-room", fmt.Sprintf(`{"roomCode":%q}`, created.RoomCode))

	var joined struct {
		RoomCode  string `json:"roomCode"`
		PlayerID  string `json:"playerId"`
		IsHost    bool   `json:"isHost"`
		GameState struct {
			Board      []string `json:"board"`
			GameStatus string   `json:"gameStatus"`
		} `json:"gameState"`
	}
	require.NoError(t, json.Unmarshal(guest.next("room-joined"), &joined))
	require.Equal(t, created.RoomCode, joined.RoomCode)
	require.False(t, joined.IsHost)
	require.Equal(t, "waiting", joined.GameState.GameStatus)
	require.Len(t, joined.GameState.Board, 9)

	// 参加通知は全員に届く. 名前未指定は採番される
	var pj struct {
		Players []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"players"`
	}
	require.NoError(t, json.Unmarshal(host.next("player-joined"), &pj))
	require.Len(t, pj.Players, 2)
	require.Equal(t, "Alice", pj.Players[0].Name)
	require.Equal(t, "Player 2", pj.Players[1].Name)

	// ゲーム開始と1手目
	host.send("game-action", fmt.Sprintf(
		`{"roomCode":%q,"action":{"type":"start-game"}}`, created.RoomCode))

	var st struct {
		GameState struct {
			Board         []string `json:"board"`
			CurrentPlayer string   `json:"currentPlayer"`
			GameStatus    string   `json:"gameStatus"`
		} `json:"gameState"`
		PlayerID string `json:"playerId"`
	}
	require.NoError(t, json.Unmarshal(guest.next("game-state-updated"), &st))
	require.Equal(t, "playing", st.GameState.GameStatus)
	require.Equal(t, created.PlayerID, st.PlayerID)

	host.send("game-action", fmt.Sprintf(
		`{"roomCode":%q,"action":{"type":"make-move","position":0}}`, created.RoomCode))
	require.NoError(t, json.Unmarshal(guest.next("game-state-updated"), &st))
	require.Equal(t, "X", st.GameState.Board[0])
	require.Equal(t, "O", st.GameState.CurrentPlayer)

	// tic-tac-toeは2人まで
	third := dialWS(t, ts)
	third.send("join-room", fmt.Sprintf(`{"roomCode":%q}`, created.RoomCode))
	var evErr struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(third.next("error"), &evErr))
	require.Equal(t, "Room is full", evErr.Message)

	// ゲストの切断で退室通知、ホストは変わらない
	guest.conn.Close()
	var left struct {
		PlayerID string `json:"playerId"`
		Players  []struct {
			ID string `json:"id"`
		} `json:"players"`
	}
	require.NoError(t, json.Unmarshal(host.next("player-left"), &left))
	require.Equal(t, joined.PlayerID, left.PlayerID)
	require.Len(t, left.Players, 1)

	// 最後の1人が切断するとルームは消える
	host.conn.Close()
	require.Eventually(t, func() bool {
		return svc.repo.NumRooms() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketJoinUnknownRoom(t *testing.T) {
	_, ts := newWSServer(t)

	c := dialWS(t, ts)
	c.send("join-room", `{"roomCode":"ZZZZZZ"}`)

	var evErr struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(c.next("error"), &evErr))
	require.Equal(t, "Room not found", evErr.Message)
}

func TestWebSocketIgnoresUnknownType(t *testing.T) {
	_, ts := newWSServer(t)

	c := dialWS(t, ts)
	c.send("bogus", `{}`)
	c.send("create-room", `{"gameId":"tic-tac-toe"}`)

	// 未知タイプにerrorイベントは返らず、次の要求が普通に通る
	var created struct {
		RoomCode string `json:"roomCode"`
	}
	require.NoError(t, json.Unmarshal(c.next("room-created"), &created))
	require.Regexp(t, "^[A-Z0-9]{6}$", created.RoomCode)
}

func TestWebSocketHostChangeOnDisconnect(t *testing.T) {
	_, ts := newWSServer(t)

	host := dialWS(t, ts)
	host.send("create-room", `{"gameId":"party-game"}`)
	var created struct {
		RoomCode string `json:"roomCode"`
	}
	require.NoError(t, json.Unmarshal(host.next("room-created"), &created))

	guest := dialWS(t, ts)
	guest.send("join-room", fmt.Sprintf(`{"roomCode":%q,"playerName":"Bob"}`, created.RoomCode))
	var joined struct {
		PlayerID string `json:"playerId"`
	}
	require.NoError(t, json.Unmarshal(guest.next("room-joined"), &joined))

	host.conn.Close()

	var hc struct {
		NewHostID string `json:"newHostId"`
	}
	require.NoError(t, json.Unmarshal(guest.next("host-changed"), &hc))
	require.Equal(t, joined.PlayerID, hc.NewHostID)
}

func TestVoterIP(t *testing.T) {
	r := httptest.NewRequest("POST", "/nominations/1/vote", nil)
	r.RemoteAddr = "192.0.2.1:34567"
	require.Equal(t, "192.0.2.1", voterIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 192.0.2.1")
	require.Equal(t, "203.0.113.9", voterIP(r))
}
