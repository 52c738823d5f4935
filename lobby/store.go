// Package lobby はアーケード外周のコラボレータ(リーダーボード・投票・
// ゲームカタログ)を提供する. ルームのライブ状態には一切関与しない.
package lobby

import (
	"github.com/jmoiron/sqlx"
)

// Store : MySQLに対する読み書き. 接続プールは呼び出し側が所有する.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}
