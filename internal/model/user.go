package model

// User はサービス利用ユーザーを表す。
// CreatedAt はエポックミリ秒。
type User struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	PasswordHash string       `json:"passwordHash"`
	CreatedAt    int64        `json:"createdAt"`
	WatchHistory []WatchEntry `json:"watchHistory"`
}

// AuthUser はクライアントに返すユーザー情報。パスワードハッシュを含まない。
type AuthUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt int64  `json:"createdAt"`
}

// Public はUserからAuthUserを生成する。
func (u *User) Public() AuthUser {
	return AuthUser{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

// WatchEntry はユーザーごと・作品ごとの視聴位置を表す。
// (ユーザー, AnimeID) で一意となり、後勝ちで上書きされる。
type WatchEntry struct {
	AnimeID   int     `json:"animeId"`
	Episode   int     `json:"episode"`
	Position  float64 `json:"position"`
	Title     string  `json:"title,omitempty"`
	Image     string  `json:"image,omitempty"`
	UpdatedAt int64   `json:"updatedAt"`
}
