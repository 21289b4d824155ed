// Package model はドメインモデルを定義する。
package model

import "time"

// Identity は外部認証サービスが報告する認証済みプリンシパルを表す。
// UIDはセッションをまたいで不変。Email, DisplayName, PhotoURLは空の場合がある。
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// Session はアプリインスタンス全体で共有される現在の認証状態を表す。
// Identityがnilの場合は未ログイン。
type Session struct {
	Identity  *Identity
	IsLoading bool
}

// Authenticated はログイン済みかどうかを返す。
func (s Session) Authenticated() bool {
	return s.Identity != nil
}

// Profile はIdentityに対応してバックエンドに永続化されるプロフィールレコード。
// UIDをキーに1対1で対応し、初回観測時に1度だけ作成される。
type Profile struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	CreatedAt   time.Time
}

// ProfileExtra はプロフィール作成時に呼び出し側が与える追加情報。
type ProfileExtra struct {
	DisplayName string
}

// Account はセルフホスト型認証バックエンドのアカウントを表す。
type Account struct {
	UID          string
	Email        string
	PasswordHash string
	DisplayName  string
	PhotoURL     string
	CreatedAt    time.Time
}

// Identity はアカウントから認証済みIdentityを生成する。
func (a *Account) Identity() *Identity {
	return &Identity{
		UID:         a.UID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		PhotoURL:    a.PhotoURL,
	}
}

// DeviceSession はこの端末でのログイン状態を表す。
// プロセス再起動後もログイン状態を復元するために永続化される。
type DeviceSession struct {
	ID        string
	UID       string
	ExpiresAt time.Time
	CreatedAt time.Time
}
