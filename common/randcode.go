package common

import (
	crand "crypto/rand"
	"math"
	"math/big"
	"math/rand"
)

// プロジェクトで一度だけ実行する.
func init() {
	seed, _ := crand.Int(crand.Reader, big.NewInt(math.MaxInt64))
	rand.Seed(seed.Int64())
}

// RandomCode : 共有用ルームコードを生成する.
// 36^6通り. 一意性は保証しないので登録側で衝突チェックすること.
func RandomCode() string {
	b := make([]byte, RoomCodeLen)
	for i := range b {
		b[i] = RoomCodeChars[rand.Intn(len(RoomCodeChars))]
	}
	return string(b)
}
