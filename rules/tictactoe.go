package rules

import (
	"encoding/json"
)

const (
	GameIDTicTacToe = "tic-tac-toe"

	markX = "X"
	markO = "O"

	// WinnerTie : 引き分け
	WinnerTie = "tie"
)

// TicTacToeState : 3x3盤面. Boardはflat index(0-8), row=pos/3, col=pos%3.
// 空マスは空文字列.
type TicTacToeState struct {
	Board         [9]string `json:"board"`
	CurrentPlayer string    `json:"currentPlayer"`
	Winner        string    `json:"winner,omitempty"`
	GameStatus    string    `json:"gameStatus"`
}

type ticTacToeAction struct {
	Type     string `json:"type"`
	Position int    `json:"position"`
}

// 勝利ライン: 横3 + 縦3 + 斜め2
var ticTacToeLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// TicTacToe : 2人用ターン制ゲーム.
// X = players[0] (作成者), O = players[1] (2人目の入室者).
type TicTacToe struct{}

func (TicTacToe) GameID() string  { return GameIDTicTacToe }
func (TicTacToe) MaxPlayers() int { return 2 }

func (TicTacToe) InitialState() State {
	return TicTacToeState{
		CurrentPlayer: markX,
		GameStatus:    StatusWaiting,
	}
}

func (TicTacToe) Apply(s State, action json.RawMessage, playerID string) State {
	st, ok := s.(TicTacToeState)
	if !ok {
		return s
	}
	var act ticTacToeAction
	if err := json.Unmarshal(action, &act); err != nil {
		return s
	}

	switch act.Type {
	case "start-game":
		if st.GameStatus != StatusWaiting {
			return s
		}
		st.GameStatus = StatusPlaying
		return st

	case "make-move":
		if st.GameStatus != StatusPlaying {
			return s
		}
		if act.Position < 0 || act.Position >= len(st.Board) {
			return s
		}
		if st.Board[act.Position] != "" {
			return s
		}

		// stは値コピーなので書き込んでも元のstateは変化しない
		st.Board[act.Position] = st.CurrentPlayer

		if w := ticTacToeWinner(st.Board); w != "" {
			st.Winner = w
			st.GameStatus = StatusFinished
		} else if boardFull(st.Board) {
			st.Winner = WinnerTie
			st.GameStatus = StatusFinished
		} else if st.CurrentPlayer == markX {
			st.CurrentPlayer = markO
		} else {
			st.CurrentPlayer = markX
		}
		return st
	}

	return s
}

func ticTacToeWinner(board [9]string) string {
	for _, l := range ticTacToeLines {
		if board[l[0]] != "" && board[l[0]] == board[l[1]] && board[l[0]] == board[l[2]] {
			return board[l[0]]
		}
	}
	return ""
}

func boardFull(board [9]string) bool {
	for _, c := range board {
		if c == "" {
			return false
		}
	}
	return true
}
