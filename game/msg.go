package game

import (
	"encoding/json"
)

// Msg : RoomのmsgLoopで逐次処理されるメッセージ.
// 1メッセージの処理は割り込みなしで最後まで走る.
type Msg interface {
	msg()
	SenderID() ConnID
}

var _ Msg = &MsgJoin{}
var _ Msg = &MsgGameAction{}
var _ Msg = &MsgLeave{}

// MsgJoin : 入室要求. PlayerIDは索引登録と同時にRepositoryが採番済み.
// 定員チェックはmsgLoop内で行う(join同士を直列化するため).
type MsgJoin struct {
	Conn       Conn
	PlayerID   string
	PlayerName string
}

func (*MsgJoin) msg() {}

func (m *MsgJoin) SenderID() ConnID {
	return m.Conn.ID()
}

// MsgGameAction : ゲーム操作. Actionの中身はAdapterだけが解釈する.
type MsgGameAction struct {
	ConnID   ConnID
	PlayerID string
	Action   json.RawMessage
}

func (*MsgGameAction) msg() {}

func (m *MsgGameAction) SenderID() ConnID {
	return m.ConnID
}

// MsgLeave : 切断によるプレイヤーの退室. 再接続はない.
type MsgLeave struct {
	ConnID   ConnID
	PlayerID string
}

func (*MsgLeave) msg() {}

func (m *MsgLeave) SenderID() ConnID {
	return m.ConnID
}
