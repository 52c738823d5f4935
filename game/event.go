package game

import (
	"encoding/json"

	"arcade/rules"
)

// server→client イベント種別
const (
	EvTypeRoomCreated  = "room-created"
	EvTypeRoomJoined   = "room-joined"
	EvTypePlayerJoined = "player-joined"
	EvTypeGameState    = "game-state-updated"
	EvTypeHostChanged  = "host-changed"
	EvTypePlayerLeft   = "player-left"
	EvTypeError        = "error"
)

// Event : server→client のJSONフレーム {"type":..., "data":...}
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// PlayerInfo : イベントに載せる公開プレイヤー情報.
// コネクション参照は外に出さない.
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type EvRoomCreatedData struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	IsHost   bool   `json:"isHost"`
}

type EvRoomJoinedData struct {
	RoomCode  string      `json:"roomCode"`
	PlayerID  string      `json:"playerId"`
	IsHost    bool        `json:"isHost"`
	GameState rules.State `json:"gameState"`
}

type EvPlayerJoinedData struct {
	Players []PlayerInfo `json:"players"`
}

type EvGameStateData struct {
	GameState  rules.State     `json:"gameState"`
	LastAction json.RawMessage `json:"lastAction"`
	PlayerID   string          `json:"playerId"`
}

type EvHostChangedData struct {
	NewHostID string `json:"newHostId"`
}

type EvPlayerLeftData struct {
	PlayerID string       `json:"playerId"`
	Players  []PlayerInfo `json:"players"`
}

type EvErrorData struct {
	Message string `json:"message"`
}

func NewEvRoomCreated(roomCode, playerID string) *Event {
	return &Event{EvTypeRoomCreated, EvRoomCreatedData{roomCode, playerID, true}}
}

func NewEvRoomJoined(roomCode, playerID string, state rules.State) *Event {
	return &Event{EvTypeRoomJoined, EvRoomJoinedData{roomCode, playerID, false, state}}
}

func NewEvPlayerJoined(players []PlayerInfo) *Event {
	return &Event{EvTypePlayerJoined, EvPlayerJoinedData{players}}
}

func NewEvGameState(state rules.State, lastAction json.RawMessage, playerID string) *Event {
	return &Event{EvTypeGameState, EvGameStateData{state, lastAction, playerID}}
}

func NewEvHostChanged(newHostID string) *Event {
	return &Event{EvTypeHostChanged, EvHostChangedData{newHostID}}
}

func NewEvPlayerLeft(playerID string, players []PlayerInfo) *Event {
	return &Event{EvTypePlayerLeft, EvPlayerLeftData{playerID, players}}
}

func NewEvError(message string) *Event {
	return &Event{EvTypeError, EvErrorData{message}}
}
