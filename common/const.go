package common

const (
	// RoomCodeLen : 共有用ルームコードの文字数
	RoomCodeLen = 6
	// RoomCodeChars : ルームコードに使う文字種
	RoomCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// RoomCodePattern : ルームコードの正規表現
	RoomCodePattern = "^[A-Z0-9]{6}$"
)
