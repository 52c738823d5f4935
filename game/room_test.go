package game

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"arcade/config"
	"arcade/rules"
)

// stubConn : テスト用のConn実装. 受信イベントを記録する.
type stubConn struct {
	id ConnID
	ch chan *Event

	mu     sync.Mutex
	events []*Event
	closed bool
}

func newStubConn(id string) *stubConn {
	return &stubConn{
		id: ConnID(id),
		ch: make(chan *Event, 256),
	}
}

func (c *stubConn) ID() ConnID { return c.id }

func (c *stubConn) Send(ev *Event) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	c.ch <- ev
	return nil
}

func (c *stubConn) Close(msg string) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// next : evTypeのイベントが届くまで他を読み飛ばして返す.
func (c *stubConn) next(t *testing.T, evType string) *Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-c.ch:
			if ev.Type == evType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %v event: conn=%v", evType, c.id)
			return nil
		}
	}
}

// count : 記録済みイベントからevTypeの数を数える.
func (c *stubConn) count(evType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, ev := range c.events {
		if ev.Type == evType {
			n++
		}
	}
	return n
}

func testConf() *config.GameConf {
	return &config.GameConf{
		RetryCount:        5,
		DefaultMaxPlayers: 4,
		SweepInterval:     config.Duration(time.Minute),
		InactiveDeadline:  config.Duration(30 * time.Minute),
	}
}

// ルーム作成+入室のヘルパ. 返り値は(room, hostのplayerId).
func createRoom(t *testing.T, repo *Repository, conn *stubConn, gameID, name string) (*Room, string) {
	t.Helper()
	room, err := repo.CreateRoom(conn, gameID, name)
	require.NoError(t, err)
	created := conn.next(t, EvTypeRoomCreated).Data.(EvRoomCreatedData)
	require.Equal(t, room.Code(), created.RoomCode)
	require.True(t, created.IsHost)
	return room, created.PlayerID
}

func joinRoom(t *testing.T, repo *Repository, conn *stubConn, roomCode, name string) string {
	t.Helper()
	require.NoError(t, repo.JoinRoom(conn, roomCode, name))
	joined := conn.next(t, EvTypeRoomJoined).Data.(EvRoomJoinedData)
	require.Equal(t, roomCode, joined.RoomCode)
	require.False(t, joined.IsHost)
	return joined.PlayerID
}

func TestRoomJoinOrderAndDefaultNames(t *testing.T) {
	repo := NewRepository(testConf())
	host := newStubConn("c1")
	c2 := newStubConn("c2")
	c3 := newStubConn("c3")

	// アダプタ未登録のゲームはデフォルト定員(4)
	room, hostID := createRoom(t, repo, host, "party-game", "")
	p2 := joinRoom(t, repo, c2, room.Code(), "")
	p3 := joinRoom(t, repo, c3, room.Code(), "Carol")

	ev := c3.next(t, EvTypePlayerJoined).Data.(EvPlayerJoinedData)
	want := []PlayerInfo{
		{ID: hostID, Name: "Host"},
		{ID: p2, Name: "Player 2"},
		{ID: p3, Name: "Carol"},
	}
	require.Equal(t, want, ev.Players)

	// 入室者自身にもplayer-joinedが届く(room-joinedの後)
	require.Equal(t, 1, c3.count(EvTypePlayerJoined))
}

func TestRoomFull(t *testing.T) {
	repo := NewRepository(testConf())
	host := newStubConn("c1")
	c2 := newStubConn("c2")
	c3 := newStubConn("c3")

	room, _ := createRoom(t, repo, host, rules.GameIDTicTacToe, "")
	joinRoom(t, repo, c2, room.Code(), "")

	// 3人目は定員オーバー
	require.NoError(t, repo.JoinRoom(c3, room.Code(), ""))
	errEv := c3.next(t, EvTypeError).Data.(EvErrorData)
	require.Equal(t, "Room is full", errEv.Message)

	// 定員オーバーでメンバーは変化しない
	require.Equal(t, 0, c3.count(EvTypeRoomJoined))
	require.Eventually(t, func() bool {
		return host.count(EvTypePlayerJoined) == 1
	}, time.Second, 10*time.Millisecond)

	// 溢れたコネクションの索引は巻き戻される. 別ルームには入れる
	room2, _ := createRoom(t, repo, newStubConn("c4"), rules.GameIDTicTacToe, "")
	joinRoom(t, repo, c3, room2.Code(), "")
}

func TestJoinRoomNotFound(t *testing.T) {
	repo := NewRepository(testConf())
	conn := newStubConn("c1")

	err := repo.JoinRoom(conn, "ZZZZZZ", "")
	require.Error(t, err)
	var ewt ErrorWithType
	require.ErrorAs(t, err, &ewt)
	require.Equal(t, ErrRoomNotFound, ewt.ErrType())
	require.Equal(t, "Room not found", ewt.Message())
}

func TestGameActionScenario(t *testing.T) {
	repo := NewRepository(testConf())
	host := newStubConn("c1")
	c2 := newStubConn("c2")

	room, _ := createRoom(t, repo, host, rules.GameIDTicTacToe, "Alice")
	joinRoom(t, repo, c2, room.Code(), "Bob")

	require.NoError(t, repo.GameAction(host, room.Code(), []byte(`{"type":"start-game"}`)))
	st := c2.next(t, EvTypeGameState).Data.(EvGameStateData).GameState.(rules.TicTacToeState)
	require.Equal(t, rules.StatusPlaying, st.GameStatus)
	require.Equal(t, "X", st.CurrentPlayer)

	require.NoError(t, repo.GameAction(host, room.Code(), []byte(`{"type":"make-move","position":0}`)))
	st = c2.next(t, EvTypeGameState).Data.(EvGameStateData).GameState.(rules.TicTacToeState)
	require.Equal(t, "O", st.CurrentPlayer)

	require.NoError(t, repo.GameAction(c2, room.Code(), []byte(`{"type":"make-move","position":4}`)))
	ev := c2.next(t, EvTypeGameState).Data.(EvGameStateData)
	st = ev.GameState.(rules.TicTacToeState)

	// 2手で手番が元に戻り、ゲームは継続中
	require.Equal(t, rules.StatusPlaying, st.GameStatus)
	require.Equal(t, "X", st.CurrentPlayer)
	require.Equal(t, "X", st.Board[0])
	require.Equal(t, "O", st.Board[4])
	require.JSONEq(t, `{"type":"make-move","position":4}`, string(ev.LastAction))

	// 全員に同じ状態が配信される
	host.next(t, EvTypeGameState)
	host.next(t, EvTypeGameState)
	st2 := host.next(t, EvTypeGameState).Data.(EvGameStateData).GameState.(rules.TicTacToeState)
	require.Equal(t, st, st2)
}

func TestGameActionUnknownTypeStillBroadcasts(t *testing.T) {
	repo := NewRepository(testConf())
	host := newStubConn("c1")

	room, _ := createRoom(t, repo, host, rules.GameIDTicTacToe, "")

	// 未知のactionはエラーではなくno-op. stateは無変更のまま配信される
	require.NoError(t, repo.GameAction(host, room.Code(), []byte(`{"type":"dance"}`)))
	st := host.next(t, EvTypeGameState).Data.(EvGameStateData).GameState.(rules.TicTacToeState)
	require.Equal(t, rules.StatusWaiting, st.GameStatus)
	require.Equal(t, 0, host.count(EvTypeError))
}

func TestGameActionNotInRoom(t *testing.T) {
	repo := NewRepository(testConf())
	host := newStubConn("c1")
	outsider := newStubConn("c2")

	room, _ := createRoom(t, repo, host, rules.GameIDTicTacToe, "")

	err := repo.GameAction(outsider, room.Code(), []byte(`{"type":"start-game"}`))
	var ewt ErrorWithType
	require.ErrorAs(t, err, &ewt)
	require.Equal(t, ErrPlayerNotInRoom, ewt.ErrType())

	// 別ルームに入室済みのコネクションも対象ルームでは部外者
	other := newStubConn("c3")
	createRoom(t, repo, other, rules.GameIDTicTacToe, "")
	err = repo.GameAction(other, room.Code(), []byte(`{"type":"start-game"}`))
	require.ErrorAs(t, err, &ewt)
	require.Equal(t, ErrPlayerNotInRoom, ewt.ErrType())
}
