package lobby

// GameInfo : カタログに載せるゲームの静的情報.
type GameInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"` // single | multiplayer
	MaxPlayers int    `json:"maxPlayers,omitempty"`
}

var games = []GameInfo{
	{ID: "game-2048", Name: "2048", Category: "single"},
	{ID: "snake", Name: "Snake", Category: "single"},
	{ID: "tic-tac-toe", Name: "Tic-Tac-Toe", Category: "multiplayer", MaxPlayers: 2},
	{ID: "connect4", Name: "Connect 4", Category: "multiplayer", MaxPlayers: 2},
}

// Games : プレイ可能なゲームの一覧. 静的でDBには持たない.
func Games() []GameInfo {
	// 呼び出し側の書き換えから守るためコピーを返す
	gs := make([]GameInfo, len(games))
	copy(gs, games)
	return gs
}
