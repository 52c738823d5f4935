package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

// scenarioCmd runs scenario test
//
// 機能テスト
var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Run scenario test",
	Long:  `Scenario test: ルーム作成から勝敗確定までを通しで確認する`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(scenarioCmd)
}

func runScenario(ctx context.Context) error {
	for _, test := range []func(context.Context) error{
		scenarioCatalog,
		scenarioJoinUnknownRoom,
		scenarioPlayToWin,
		scenarioHostChange,
	} {
		err := test(ctx)
		if err != nil {
			return err
		}
	}
	logger.Infof("all scenarios passed")
	return nil
}

type roomCreated struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
	IsHost   bool   `json:"isHost"`
}

type gameStateUpdated struct {
	GameState struct {
		Board         []string `json:"board"`
		CurrentPlayer string   `json:"currentPlayer"`
		Winner        string   `json:"winner"`
		GameStatus    string   `json:"gameStatus"`
	} `json:"gameState"`
	PlayerID string `json:"playerId"`
}

// createRoom : ルームを作ってホスト接続とルームコードを返す.
func createRoom(ctx context.Context, gameID, playerName string) (*botConn, *roomCreated, error) {
	host, err := dial(ctx)
	if err != nil {
		return nil, nil, err
	}
	err = host.send("create-room", map[string]string{
		"gameId": gameID, "playerName": playerName,
	})
	if err != nil {
		host.close()
		return nil, nil, err
	}
	var created roomCreated
	if err := host.waitEventData(timeout, "room-created", &created); err != nil {
		host.close()
		return nil, nil, err
	}
	if !created.IsHost {
		host.close()
		return nil, nil, xerrors.Errorf("creator is not host: %+v", created)
	}
	logger.Infof("room created: %v (%v)", created.RoomCode, gameID)
	return host, &created, nil
}

func joinRoom(ctx context.Context, roomCode, playerName string) (*botConn, string, error) {
	guest, err := dial(ctx)
	if err != nil {
		return nil, "", err
	}
	err = guest.send("join-room", map[string]string{
		"roomCode": roomCode, "playerName": playerName,
	})
	if err != nil {
		guest.close()
		return nil, "", err
	}
	var joined struct {
		PlayerID string `json:"playerId"`
	}
	if err := guest.waitEventData(timeout, "room-joined", &joined); err != nil {
		guest.close()
		return nil, "", err
	}
	return guest, joined.PlayerID, nil
}

// ゲームカタログとヘルスチェックのテスト
func scenarioCatalog(ctx context.Context) error {
	res, err := http.Get(serverURL + "/health")
	if err != nil {
		return xerrors.Errorf("health: %w", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return xerrors.Errorf("health: status %v", res.StatusCode)
	}

	res, err = http.Get(serverURL + "/games")
	if err != nil {
		return xerrors.Errorf("games: %w", err)
	}
	defer res.Body.Close()
	var body struct {
		Games []struct {
			ID string `json:"id"`
		} `json:"games"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return xerrors.Errorf("games decode: %w", err)
	}
	for _, g := range body.Games {
		if g.ID == "tic-tac-toe" {
			logger.Infof("catalog ok: %v games", len(body.Games))
			return nil
		}
	}
	return xerrors.Errorf("tic-tac-toe not in catalog")
}

// 存在しないルームへの入室はerrorイベント
func scenarioJoinUnknownRoom(ctx context.Context) error {
	c, err := dial(ctx)
	if err != nil {
		return err
	}
	defer c.close()

	err = c.send("join-room", map[string]string{"roomCode": "ZZZZZZ"})
	if err != nil {
		return err
	}
	var evErr struct {
		Message string `json:"message"`
	}
	if err := c.waitEventData(timeout, "error", &evErr); err != nil {
		return err
	}
	if evErr.Message != "Room not found" {
		return xerrors.Errorf("unexpected error message: %q", evErr.Message)
	}
	logger.Infof("join unknown room ok")
	return nil
}

// tic-tac-toeをXの勝ちまで進める
func scenarioPlayToWin(ctx context.Context) error {
	host, created, err := createRoom(ctx, "tic-tac-toe", "bot-host")
	if err != nil {
		return err
	}
	defer host.close()

	guest, _, err := joinRoom(ctx, created.RoomCode, "bot-guest")
	if err != nil {
		return err
	}
	defer guest.close()

	action := func(c *botConn, a map[string]interface{}) error {
		return c.send("game-action", map[string]interface{}{
			"roomCode": created.RoomCode, "action": a,
		})
	}

	if err := action(host, map[string]interface{}{"type": "start-game"}); err != nil {
		return err
	}
	var st gameStateUpdated
	if err := host.waitEventData(timeout, "game-state-updated", &st); err != nil {
		return err
	}
	if st.GameState.GameStatus != "playing" {
		return xerrors.Errorf("gameStatus = %v, wants playing", st.GameState.GameStatus)
	}

	// X: 0,3,6 (左列) / O: 1,4
	for i, pos := range []int{0, 1, 3, 4, 6} {
		c := host
		if i%2 == 1 {
			c = guest
		}
		err := action(c, map[string]interface{}{"type": "make-move", "position": pos})
		if err != nil {
			return err
		}
		if err := host.waitEventData(timeout, "game-state-updated", &st); err != nil {
			return err
		}
	}

	if st.GameState.Winner != "X" || st.GameState.GameStatus != "finished" {
		return xerrors.Errorf("winner = %q status = %q, wants X finished",
			st.GameState.Winner, st.GameState.GameStatus)
	}

	// 終局後の全員の盤面が一致していること
	var stGuest gameStateUpdated
	for stGuest.GameState.GameStatus != "finished" {
		if err := guest.waitEventData(timeout, "game-state-updated", &stGuest); err != nil {
			return err
		}
	}
	if fmt.Sprint(st.GameState.Board) != fmt.Sprint(stGuest.GameState.Board) {
		return xerrors.Errorf("board mismatch: host=%v guest=%v",
			st.GameState.Board, stGuest.GameState.Board)
	}

	logger.Infof("play to win ok: room=%v", created.RoomCode)
	return nil
}

// ホスト切断でホストが移譲される
func scenarioHostChange(ctx context.Context) error {
	host, created, err := createRoom(ctx, "party-game", "bot-host")
	if err != nil {
		return err
	}

	guest, guestID, err := joinRoom(ctx, created.RoomCode, "bot-guest")
	if err != nil {
		host.close()
		return err
	}
	defer guest.close()

	host.close()

	var hc struct {
		NewHostID string `json:"newHostId"`
	}
	if err := guest.waitEventData(timeout, "host-changed", &hc); err != nil {
		return err
	}
	if hc.NewHostID != guestID {
		return xerrors.Errorf("newHostId = %v, wants %v", hc.NewHostID, guestID)
	}
	logger.Infof("host change ok: room=%v", created.RoomCode)
	return nil
}
