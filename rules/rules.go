// Package rules は各マルチプレイゲームの進行ロジックを提供する.
// CoordinatorはStateの中身に触れず、Adapter経由でのみ更新する.
package rules

import (
	"encoding/json"
)

// ゲーム進行状態. 全ゲーム共通の文字列表現.
const (
	StatusWaiting  = "waiting"
	StatusPlaying  = "playing"
	StatusFinished = "finished"
)

// State : ゲーム固有の状態スナップショット.
// 値はAdapterだけが解釈する. イベントへはそのままJSONで載せる.
type State any

// Adapter : ゲーム1種類ぶんのルール実装.
type Adapter interface {
	GameID() string

	// MaxPlayers : このゲームの最大人数
	MaxPlayers() int

	// InitialState : ルーム作成時の初期状態
	InitialState() State

	// Apply : 純粋関数. (state, action, playerID)が同じなら結果も同じ.
	// 解釈できないactionは変更なしのstateをそのまま返す(エラーにしない).
	Apply(s State, action json.RawMessage, playerID string) State
}

// Registry : gameId -> Adapter の索引.
// 未登録のgameIdにはfallback(状態なし・素通し)を返す.
type Registry struct {
	adapters map[string]Adapter
	fallback Adapter
}

// NewRegistry : 組み込みゲームを登録したRegistryを作る.
func NewRegistry(defaultMaxPlayers int) *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		fallback: &freeform{maxPlayers: defaultMaxPlayers},
	}
	r.Register(TicTacToe{})
	r.Register(Connect4{})
	return r
}

func (r *Registry) Register(a Adapter) {
	r.adapters[a.GameID()] = a
}

// Find : gameIdに対応するAdapterを返す. 未登録ならfallback.
func (r *Registry) Find(gameID string) Adapter {
	if a, ok := r.adapters[gameID]; ok {
		return a
	}
	return r.fallback
}

// freeform : アダプタ未実装のゲーム用.
// 初期状態は空オブジェクト、actionは素通しで状態を変えない.
type freeform struct {
	maxPlayers int
}

func (f *freeform) GameID() string  { return "" }
func (f *freeform) MaxPlayers() int { return f.maxPlayers }

func (f *freeform) InitialState() State {
	return map[string]any{}
}

func (f *freeform) Apply(s State, action json.RawMessage, playerID string) State {
	return s
}
