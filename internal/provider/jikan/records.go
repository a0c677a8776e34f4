package jikan

import "encoding/json"

// listResponse はJikanの一覧系レスポンス。
// dataは1件ずつデコードし、型の合わないレコードだけを読み飛ばす。
type listResponse struct {
	Data       []json.RawMessage `json:"data"`
	Pagination *pagination       `json:"pagination"`
}

type itemResponse struct {
	Data json.RawMessage `json:"data"`
}

type pagination struct {
	CurrentPage     int  `json:"current_page"`
	HasNextPage     bool `json:"has_next_page"`
	LastVisiblePage *int `json:"last_visible_page"`
	LastPage        *int `json:"last_page"`
}

type imageSet struct {
	ImageURL      string `json:"image_url"`
	LargeImageURL string `json:"large_image_url"`
}

type titleEntry struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

type named struct {
	MalID int    `json:"mal_id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
}

type animeRecord struct {
	MalID         int          `json:"mal_id"`
	Title         string       `json:"title"`
	TitleEnglish  string       `json:"title_english"`
	TitleJapanese string       `json:"title_japanese"`
	TitleSynonyms []string     `json:"title_synonyms"`
	Titles        []titleEntry `json:"titles"`
	Images        struct {
		JPG  imageSet `json:"jpg"`
		WebP imageSet `json:"webp"`
	} `json:"images"`
	ImageURL string   `json:"image_url"`
	Type     string   `json:"type"`
	Year     *int     `json:"year"`
	Score    *float64 `json:"score"`
	Synopsis string   `json:"synopsis"`
	Aired    struct {
		From   string `json:"from"`
		String string `json:"string"`
	} `json:"aired"`
	Genres    []named `json:"genres"`
	Members   int     `json:"members"`
	Favorites int     `json:"favorites"`
}

type relationGroup struct {
	Relation string  `json:"relation"`
	Entry    []named `json:"entry"`
}

type episodeRecord struct {
	MalID         int    `json:"mal_id"`
	Title         string `json:"title"`
	TitleRomanji  string `json:"title_romanji"`
	TitleJapanese string `json:"title_japanese"`
	Aired         string `json:"aired"`
}

type streamRecord struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// decodeEach はレコードを1件ずつデコードし、失敗したものを除いて返す。
func decodeEach[T any](raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
