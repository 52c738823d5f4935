package lobby

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"golang.org/x/xerrors"
)

// mysqlErrDupEntry : UNIQUE制約違反 (Error 1062: Duplicate entry)
const mysqlErrDupEntry = 1062

const (
	nominationsQuery     = "SELECT id, name, description, category, votes FROM nomination ORDER BY votes DESC, name ASC"
	nominationExistQuery = "SELECT id FROM nomination WHERE id = ?"
	voteInsertQuery      = "INSERT INTO vote (nomination_id, voter_ip) VALUES (?, ?)"
	voteCountupQuery     = "UPDATE nomination SET votes = votes + 1 WHERE id = ?"
)

// Nomination : 次に追加するゲームの候補.
type Nomination struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Category    string `db:"category" json:"category"`
	Votes       int    `db:"votes" json:"votes"`
}

// Nominations : 候補一覧を得票数順で返す.
func (s *Store) Nominations(ctx context.Context) ([]Nomination, error) {
	noms := []Nomination{}
	err := s.db.SelectContext(ctx, &noms, nominationsQuery)
	if err != nil {
		return nil, xerrors.Errorf("select nominations: %w", err)
	}
	return noms, nil
}

// CastVote : 候補に1票入れる. 同一IPからは候補ごとに1回まで
// (voteテーブルのUNIQUE(nomination_id, voter_ip)で弾く).
func (s *Store) CastVote(ctx context.Context, nominationID int64, voterIP string) error {
	var id int64
	err := s.db.GetContext(ctx, &id, nominationExistQuery, nominationID)
	if errors.Is(err, sql.ErrNoRows) {
		return withType(
			xerrors.Errorf("nomination not found: id=%v", nominationID),
			ErrNotFound, "Nomination not found")
	}
	if err != nil {
		return xerrors.Errorf("select nomination: %w", err)
	}

	_, err = s.db.ExecContext(ctx, voteInsertQuery, nominationID, voterIP)
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDupEntry {
		return withType(
			xerrors.Errorf("already voted: id=%v ip=%v", nominationID, voterIP),
			ErrDuplicateVote, "Already voted for this nomination")
	}
	if err != nil {
		return xerrors.Errorf("insert vote: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, voteCountupQuery, nominationID); err != nil {
		return xerrors.Errorf("count up votes: %w", err)
	}
	return nil
}
