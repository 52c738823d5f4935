package game

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"arcade/rules"
)

const (
	// RoomMsgChSize : Msgチャネルのバッファサイズ
	RoomMsgChSize = 10
)

// Player : ルーム在室中のプレイヤー.
// Roomが所有する. コネクションはSession Manager(Repository)の索引からも
// 引けるが、所有はしない.
type Player struct {
	ID   string
	Name string

	conn Conn
}

// Room : マルチプレイセッション1つぶんの状態機械.
// 全ての変更はmsgLoop goroutineで逐次実行される. 外から触ってよいのは
// Post/Done/Close/Expired と読み取り専用のアクセサのみ.
type Room struct {
	repo    *Repository
	code    string
	gameID  string
	adapter rules.Adapter

	msgCh     chan Msg
	done      chan struct{}
	closeOnce sync.Once

	// 以下はmsgLoop内でのみ読み書きする
	gameState rules.State
	hostID    string
	players   []*Player // join順. 先頭がホスト引き継ぎ候補

	createdAt    time.Time
	lastActivity atomic.Int64 // unixnano. Reaperが外から読む

	logger *zap.SugaredLogger
}

func newRoom(repo *Repository, code, gameID string, adapter rules.Adapter, host *Player, logger *zap.SugaredLogger) *Room {
	r := &Room{
		repo:    repo,
		code:    code,
		gameID:  gameID,
		adapter: adapter,

		msgCh: make(chan Msg, RoomMsgChSize),
		done:  make(chan struct{}),

		gameState: adapter.InitialState(),
		hostID:    host.ID,
		players:   []*Player{host},

		createdAt: time.Now(),

		logger: logger,
	}
	r.touch()
	return r
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) GameID() string {
	return r.gameID
}

// Done returns a channel which closed when room is done.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// Post : メッセージをmsgLoopへ渡す. 閉室済みなら捨ててfalseを返す.
func (r *Room) Post(m Msg) bool {
	select {
	case <-r.done:
		r.logger.Debugf("discard msg for closed room: %T", m)
		return false
	case r.msgCh <- m:
		return true
	}
}

// Close : ルームを終了する. msgLoopが抜けてRepositoryから外れる.
func (r *Room) Close(reason string) {
	r.closeOnce.Do(func() {
		r.logger.Infof("room closed: %v", reason)
		close(r.done)
	})
}

// Expired : lastActivityがdeadlineより古いか. Reaperから呼ばれる.
func (r *Room) Expired(deadline time.Duration) bool {
	last := time.Unix(0, r.lastActivity.Load())
	return time.Since(last) > deadline
}

func (r *Room) touch() {
	r.lastActivity.Store(time.Now().UnixNano())
}

// msgLoop goroutine dispatch messages.
func (r *Room) msgLoop() {
	r.logger.Debugf("Room.msgLoop() start")
Loop:
	for {
		select {
		case <-r.done:
			break Loop
		case msg := <-r.msgCh:
			if err := r.dispatch(msg); err != nil {
				r.logger.Errorf("room msg error: %+v", err)
			}
		}
	}
	r.repo.RemoveRoom(r)
	r.logger.Debugf("Room.msgLoop() finish")
}

func (r *Room) dispatch(msg Msg) error {
	switch m := msg.(type) {
	case *MsgJoin:
		return r.msgJoin(m)
	case *MsgGameAction:
		return r.msgGameAction(m)
	case *MsgLeave:
		return r.msgLeave(m)
	default:
		return xerrors.Errorf("unknown msg type: %T %v", m, m)
	}
}

// sendTo : 特定クライアントに送信. 失敗はログのみ(送信は投げっぱなし).
func (r *Room) sendTo(c Conn, ev *Event) {
	if err := c.Send(ev); err != nil {
		r.logger.Debugf("send error: conn=%v ev=%v %v", c.ID(), ev.Type, err)
	}
}

// broadcast : 在室全員に送信. 送信時点のメンバーにのみ届く.
func (r *Room) broadcast(ev *Event) {
	for _, p := range r.players {
		r.sendTo(p.conn, ev)
	}
}

func (r *Room) playerInfos() []PlayerInfo {
	infos := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		infos = append(infos, PlayerInfo{ID: p.ID, Name: p.Name})
	}
	return infos
}

func (r *Room) msgJoin(msg *MsgJoin) error {
	if len(r.players) >= r.adapter.MaxPlayers() {
		// JoinRoomで登録済みの索引を巻き戻す
		r.repo.unbindConn(msg.Conn.ID(), r.code)
		r.sendTo(msg.Conn, NewEvError("Room is full"))
		return withType(
			xerrors.Errorf("room full: room=%v max=%v", r.code, r.adapter.MaxPlayers()),
			ErrRoomFull, "Room is full")
	}

	name := msg.PlayerName
	if name == "" {
		name = fmt.Sprintf("Player %d", len(r.players)+1)
	}
	player := &Player{
		ID:   msg.PlayerID,
		Name: name,
		conn: msg.Conn,
	}
	r.players = append(r.players, player)
	r.touch()

	r.sendTo(msg.Conn, NewEvRoomJoined(r.code, player.ID, r.gameState))
	r.broadcast(NewEvPlayerJoined(r.playerInfos()))

	r.logger.Infof("player joined: player=%v name=%q", player.ID, player.Name)
	return nil
}

func (r *Room) msgGameAction(msg *MsgGameAction) error {
	player := r.findPlayer(msg.PlayerID)
	if player == nil {
		// Repositoryの索引が古い場合(退室直後など)にここに来る
		return withType(
			xerrors.Errorf("player not in room: room=%v player=%v", r.code, msg.PlayerID),
			ErrPlayerNotInRoom, "Player not in room")
	}

	// 未知のaction typeはAdapterが無変更のstateを返す.
	// その場合もgame-state-updatedは配信する(意図的な寛容仕様).
	r.gameState = r.adapter.Apply(r.gameState, msg.Action, player.ID)
	r.touch()

	r.broadcast(NewEvGameState(r.gameState, msg.Action, player.ID))
	return nil
}

func (r *Room) msgLeave(msg *MsgLeave) error {
	idx := -1
	for i, p := range r.players {
		if p.ID == msg.PlayerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.logger.Debugf("player may be already left: player=%v", msg.PlayerID)
		return nil
	}

	player := r.players[idx]
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	r.touch()
	r.logger.Infof("player left: player=%v", player.ID)

	if len(r.players) == 0 {
		// 空室は即時削除. 放置期限は待たない
		r.Close("no players left")
		return nil
	}

	if r.hostID == player.ID {
		// 生存者のうち最初に入室した者へ引き継ぐ
		r.hostID = r.players[0].ID
		r.logger.Infof("host switched: host=%v->%v", player.ID, r.hostID)
		r.broadcast(NewEvHostChanged(r.hostID))
	}

	r.broadcast(NewEvPlayerLeft(player.ID, r.playerInfos()))
	return nil
}

func (r *Room) findPlayer(playerID string) *Player {
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}
