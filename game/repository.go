package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"arcade/common"
	"arcade/config"
	"arcade/log"
	"arcade/metrics"
	"arcade/rules"
)

// binding : コネクションがどのルームの誰かを引くための索引エントリ.
// 所有権はない(RoomとPlayerの所有はRepository.rooms側).
type binding struct {
	roomCode string
	playerID string
}

// Repository : 全ルームとコネクション索引のオーナー.
// ルーム内部の状態には触らず、メッセージを投げるだけ.
type Repository struct {
	conf  *config.GameConf
	rules *rules.Registry

	mu    sync.RWMutex
	rooms map[string]*Room
	conns map[ConnID]binding
}

func NewRepository(conf *config.GameConf) *Repository {
	return &Repository{
		conf:  conf,
		rules: rules.NewRegistry(conf.DefaultMaxPlayers),

		rooms: make(map[string]*Room),
		conns: make(map[ConnID]binding),
	}
}

// CreateRoom : ルームを作成し、作成者をホストとして入室させる.
// ルームコードは衝突しなくなるまで生成し直す. RetryCount回続けて衝突
// したら(実質起こらないが)ErrRoomCreationで失敗させる. プロセスは落とさない.
func (repo *Repository) CreateRoom(conn Conn, gameID, playerName string) (*Room, error) {
	name := playerName
	if name == "" {
		name = "Host"
	}
	host := &Player{
		ID:   uuid.NewString(),
		Name: name,
		conn: conn,
	}
	adapter := repo.rules.Find(gameID)

	repo.mu.Lock()
	if b, bound := repo.conns[conn.ID()]; bound {
		repo.mu.Unlock()
		return nil, withType(
			xerrors.Errorf("conn already in a room: conn=%v room=%v", conn.ID(), b.roomCode),
			ErrAlreadyInRoom, "Already in a room")
	}
	code := ""
	for n := 0; n < repo.conf.RetryCount; n++ {
		c := repo.newRoomCode()
		if _, ok := repo.rooms[c]; !ok {
			code = c
			break
		}
	}
	if code == "" {
		repo.mu.Unlock()
		return nil, withType(
			xerrors.Errorf("room code retry exhausted: tries=%v", repo.conf.RetryCount),
			ErrRoomCreation, "Failed to create room")
	}

	logger := log.Get().With("room", code, "game", gameID)
	room := newRoom(repo, code, gameID, adapter, host, logger)
	repo.rooms[code] = room
	repo.conns[conn.ID()] = binding{roomCode: code, playerID: host.ID}
	repo.mu.Unlock()

	metrics.Rooms.Add(1)
	go room.msgLoop()

	room.sendTo(conn, NewEvRoomCreated(code, host.ID))
	logger.Infof("room created: host=%v name=%q", host.ID, host.Name)
	return room, nil
}

// JoinRoom : 入室要求をルームへ渡す.
// 索引への登録はここで同期的に行う. 以降このコネクションの
// GameAction/Disconnectは(処理順がMsgJoinの後になるだけで)必ず入室を
// 観測する. 定員チェックはルーム側で行い、溢れたら索引を巻き戻す.
func (repo *Repository) JoinRoom(conn Conn, roomCode, playerName string) error {
	repo.mu.Lock()
	room, ok := repo.rooms[roomCode]
	if !ok {
		repo.mu.Unlock()
		return withType(
			xerrors.Errorf("room not found: room=%v", roomCode),
			ErrRoomNotFound, "Room not found")
	}
	if b, bound := repo.conns[conn.ID()]; bound {
		repo.mu.Unlock()
		return withType(
			xerrors.Errorf("conn already in a room: conn=%v room=%v", conn.ID(), b.roomCode),
			ErrAlreadyInRoom, "Already in a room")
	}
	playerID := uuid.NewString()
	repo.conns[conn.ID()] = binding{roomCode: roomCode, playerID: playerID}
	repo.mu.Unlock()

	if !room.Post(&MsgJoin{Conn: conn, PlayerID: playerID, PlayerName: playerName}) {
		// 閉室と競合した. 登録を取り消してなかったことにする
		repo.unbindConn(conn.ID(), roomCode)
		return withType(
			xerrors.Errorf("room closed: room=%v", roomCode),
			ErrRoomNotFound, "Room not found")
	}
	return nil
}

// GameAction : ゲーム操作をルームへ渡す.
// 送信元コネクションが当該ルームに入室済みでなければ受け付けない.
func (repo *Repository) GameAction(conn Conn, roomCode string, action json.RawMessage) error {
	room, ok := repo.GetRoom(roomCode)
	if !ok {
		return withType(
			xerrors.Errorf("room not found: room=%v", roomCode),
			ErrRoomNotFound, "Room not found")
	}

	repo.mu.RLock()
	b, bound := repo.conns[conn.ID()]
	repo.mu.RUnlock()
	if !bound || b.roomCode != roomCode {
		return withType(
			xerrors.Errorf("conn not in room: room=%v conn=%v", roomCode, conn.ID()),
			ErrPlayerNotInRoom, "Player not in room")
	}

	if !room.Post(&MsgGameAction{ConnID: conn.ID(), PlayerID: b.playerID, Action: action}) {
		return withType(
			xerrors.Errorf("room closed: room=%v", roomCode),
			ErrRoomNotFound, "Room not found")
	}
	return nil
}

// Disconnect : 切断されたコネクションをルームから退室させる.
// どのルームにも入っていなければ何もしない.
func (repo *Repository) Disconnect(connID ConnID) {
	repo.mu.Lock()
	b, bound := repo.conns[connID]
	delete(repo.conns, connID)
	var room *Room
	if bound {
		room = repo.rooms[b.roomCode]
	}
	repo.mu.Unlock()

	if !bound {
		log.Debugf("disconnect of unbound conn: conn=%v", connID)
		return
	}
	if room == nil {
		// Reaperに回収された後の切断. 索引の掃除だけで良い
		log.Debugf("disconnect after room removed: conn=%v room=%v", connID, b.roomCode)
		return
	}
	room.Post(&MsgLeave{ConnID: connID, PlayerID: b.playerID})
}

func (repo *Repository) GetRoom(roomCode string) (*Room, bool) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	room, ok := repo.rooms[roomCode]
	return room, ok
}

// RemoveRoom : msgLoop終了時にルーム自身から呼ばれる.
func (repo *Repository) RemoveRoom(room *Room) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	delete(repo.rooms, room.code)
	metrics.Rooms.Add(-1)
	log.Debugf("room removed from repository: room=%v", room.code)
}

func (repo *Repository) NumRooms() int {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	return len(repo.rooms)
}

// unbindConn : 当該ルームに束縛されている場合に限り索引から外す.
// 入室の巻き戻し用. 切断で既に外れていたり別ルームに付け直されていたら
// 何もしない.
func (repo *Repository) unbindConn(connID ConnID, roomCode string) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if b, ok := repo.conns[connID]; ok && b.roomCode == roomCode {
		delete(repo.conns, connID)
	}
}

func (repo *Repository) newRoomCode() string {
	return common.RandomCode()
}

// StartSweeper : Idle Reaperを起動する. ctxのキャンセルで止まる.
// 期限を過ぎたルームは通知なしで回収する(クライアントへの
// room-expired等は送らない. 既知の仕様).
func (repo *Repository) StartSweeper(ctx context.Context) {
	interval := time.Duration(repo.conf.SweepInterval)
	deadline := time.Duration(repo.conf.InactiveDeadline)
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				repo.sweepRooms(deadline)
			}
		}
	}()
}

func (repo *Repository) sweepRooms(deadline time.Duration) {
	repo.mu.RLock()
	targets := make([]*Room, 0, len(repo.rooms))
	for _, room := range repo.rooms {
		targets = append(targets, room)
	}
	repo.mu.RUnlock()

	for _, room := range targets {
		if room.Expired(deadline) {
			room.Close(fmt.Sprintf("idle for more than %v", deadline))
		}
	}
}
