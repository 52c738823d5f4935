package service

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"arcade/game"
	"arcade/log"
	"arcade/metrics"
)

const (
	// wsReadLimit : クライアントフレームの上限. アクションのJSONは小さい.
	wsReadLimit = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// ブラウザのゲームクライアントはどのオリジンからでも来る
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientMsg : クライアント→サーバのエンベロープ.
// サーバ→クライアントのgame.Eventと対になる.
type clientMsg struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type createRoomParam struct {
	GameID     string `json:"gameId"`
	PlayerName string `json:"playerName"`
}

type joinRoomParam struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type gameActionParam struct {
	RoomCode string          `json:"roomCode"`
	Action   json.RawMessage `json:"action"`
}

func (s *ArcadeService) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("websocket upgrade: %+v", err)
		return
	}
	conn := game.NewWSConn(ws)
	metrics.Conns.Add(1)
	log.Debugf("player connected: conn=%v", conn.ID())

	go s.readLoop(ws, conn)
}

// readLoop : 受信専用. 切断(エラー含む)でリポジトリに退室を伝える.
// 以降このconn宛のイベントは届かない.
func (s *ArcadeService) readLoop(ws *websocket.Conn, conn *game.WSConn) {
	defer func() {
		metrics.Conns.Add(-1)
		s.repo.Disconnect(conn.ID())
		conn.Close("read loop finished")
		log.Debugf("player disconnected: conn=%v", conn.ID())
	}()

	// 読み取りデッドラインはWSConnのkeepalive(ping/pong)が管理する.
	// 無操作のプレイヤーをサーバ側から切ることはない
	ws.SetReadLimit(wsReadLimit)
	for {
		_, b, err := ws.ReadMessage()
		if err != nil {
			log.Debugf("read error: conn=%v %v", conn.ID(), err)
			return
		}
		metrics.MessageRecv.Add(1)

		var msg clientMsg
		if err := json.Unmarshal(b, &msg); err != nil {
			log.Debugf("invalid frame: conn=%v %v", conn.ID(), err)
			_ = conn.Send(game.NewEvError("Invalid message"))
			continue
		}
		s.dispatch(conn, &msg)
	}
}

func (s *ArcadeService) dispatch(conn *game.WSConn, msg *clientMsg) {
	var err error
	switch msg.Type {
	case "create-room":
		var p createRoomParam
		if err = json.Unmarshal(msg.Data, &p); err == nil {
			_, err = s.repo.CreateRoom(conn, p.GameID, p.PlayerName)
		}
	case "join-room":
		var p joinRoomParam
		if err = json.Unmarshal(msg.Data, &p); err == nil {
			err = s.repo.JoinRoom(conn, p.RoomCode, p.PlayerName)
		}
	case "game-action":
		var p gameActionParam
		if err = json.Unmarshal(msg.Data, &p); err == nil {
			err = s.repo.GameAction(conn, p.RoomCode, p.Action)
		}
	default:
		// 未知のタイプは無視する. エラーイベントにはしない
		log.Debugf("unknown message type: conn=%v type=%v", conn.ID(), msg.Type)
		return
	}

	if err != nil {
		var ewt game.ErrorWithType
		if errors.As(err, &ewt) {
			log.Debugf("%v failed: conn=%v %+v", msg.Type, conn.ID(), err)
			_ = conn.Send(game.NewEvError(ewt.Message()))
			return
		}
		log.Errorf("%v failed: conn=%v %+v", msg.Type, conn.ID(), err)
		_ = conn.Send(game.NewEvError("Invalid message"))
	}
}
