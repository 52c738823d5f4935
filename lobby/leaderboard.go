package lobby

import (
	"context"
	"time"
	"unicode/utf8"

	"golang.org/x/xerrors"
)

const (
	// MaxPlayerNameLen : スコア登録時のプレイヤー名上限
	MaxPlayerNameLen = 50

	// TopScoresDefaultLimit / TopScoresMaxLimit : 取得件数の既定値と上限
	TopScoresDefaultLimit = 10
	TopScoresMaxLimit     = 100
)

const (
	scoreInsertQuery = "INSERT INTO leaderboard (game_id, player_name, score, achieved_at) VALUES (?, ?, ?, ?)"
	scoreRankQuery   = "SELECT COUNT(*) FROM leaderboard WHERE game_id = ? AND score > ?"
	topScoresQuery   = "SELECT id, game_id, player_name, score, achieved_at FROM leaderboard" +
		" WHERE game_id = ? ORDER BY score DESC, achieved_at ASC LIMIT ?"
)

type ScoreEntry struct {
	ID         int64     `db:"id" json:"id"`
	GameID     string    `db:"game_id" json:"gameId"`
	PlayerName string    `db:"player_name" json:"playerName"`
	Score      int       `db:"score" json:"score"`
	AchievedAt time.Time `db:"achieved_at" json:"achievedAt"`

	// Rank : 登録/取得時に算出する. DBには持たない
	Rank int `db:"-" json:"rank"`
}

// RecordScore : スコアを登録し、順位(自分より高いスコアの数+1)を返す.
func (s *Store) RecordScore(ctx context.Context, gameID, playerName string, score int) (*ScoreEntry, error) {
	if gameID == "" || playerName == "" {
		return nil, withType(
			xerrors.Errorf("gameID and playerName required: game=%q player=%q", gameID, playerName),
			ErrArgument, "Missing required fields: gameId, playerName, score")
	}
	if score < 0 {
		return nil, withType(
			xerrors.Errorf("negative score: %v", score),
			ErrArgument, "Score must be non-negative")
	}
	// 文字数で数える. マルチバイト名をバイト長で弾かない
	if utf8.RuneCountInString(playerName) > MaxPlayerNameLen {
		return nil, withType(
			xerrors.Errorf("player name too long: %v chars", utf8.RuneCountInString(playerName)),
			ErrArgument, "Player name must be 50 characters or less")
	}

	entry := &ScoreEntry{
		GameID:     gameID,
		PlayerName: playerName,
		Score:      score,
		AchievedAt: time.Now().UTC(),
	}

	res, err := s.db.ExecContext(ctx, scoreInsertQuery,
		entry.GameID, entry.PlayerName, entry.Score, entry.AchievedAt)
	if err != nil {
		return nil, xerrors.Errorf("insert score: %w", err)
	}
	entry.ID, err = res.LastInsertId()
	if err != nil {
		return nil, xerrors.Errorf("score id: %w", err)
	}

	var above int
	err = s.db.GetContext(ctx, &above, scoreRankQuery, gameID, score)
	if err != nil {
		return nil, xerrors.Errorf("score rank: %w", err)
	}
	entry.Rank = above + 1

	return entry, nil
}

// TopScores : gameIDの上位limit件を順位付きで返す.
// limitは1..100に丸め、0以下なら既定の10件.
func (s *Store) TopScores(ctx context.Context, gameID string, limit int) ([]ScoreEntry, error) {
	if gameID == "" {
		return nil, withType(
			xerrors.Errorf("gameID required"),
			ErrArgument, "Missing gameId")
	}
	if limit <= 0 {
		limit = TopScoresDefaultLimit
	}
	if limit > TopScoresMaxLimit {
		limit = TopScoresMaxLimit
	}

	entries := []ScoreEntry{}
	err := s.db.SelectContext(ctx, &entries, topScoresQuery, gameID, limit)
	if err != nil {
		return nil, xerrors.Errorf("select top scores: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
