package rules

import (
	"encoding/json"
)

const GameIDConnect4 = "connect4"

// Connect4State : 6行x7列の盤面. 空マスは空文字列.
type Connect4State struct {
	Board         [6][7]string `json:"board"`
	CurrentPlayer string       `json:"currentPlayer"`
	Winner        string       `json:"winner,omitempty"`
	GameStatus    string       `json:"gameStatus"`
}

// Connect4 : 2人用. 盤面ロジックは未実装でactionは素通し.
// TODO: 駒の落下と4目並びの判定を実装する
type Connect4 struct{}

func (Connect4) GameID() string  { return GameIDConnect4 }
func (Connect4) MaxPlayers() int { return 2 }

func (Connect4) InitialState() State {
	return Connect4State{
		CurrentPlayer: "red",
		GameStatus:    StatusWaiting,
	}
}

func (Connect4) Apply(s State, action json.RawMessage, playerID string) State {
	return s
}
