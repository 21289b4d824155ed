package model

import "time"

// Client はユーザーが管理する顧客を表す。
// OwnerIDはログインユーザーのUID。
type Client struct {
	ID        string
	OwnerID   string
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment は顧客に紐付く予約を表す。
// Dateは YYYY-MM-DD、Timeは HH:MM 形式の文字列で保持する。
type Appointment struct {
	ID         string
	OwnerID    string
	ClientID   string
	ClientName string // 表示用に非正規化した顧客名
	Date       string
	Time       string
	Notes      string
	CreatedAt  time.Time
}

// コレクション名。変更通知のキーとして使用する。
const (
	CollectionClients      = "clients"
	CollectionAppointments = "appointments"
)
