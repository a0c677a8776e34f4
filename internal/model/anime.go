package model

// Source はアニメIDの名前空間を表す。
// プロバイダごとにIDの体系が異なるため、IDは必ずSourceと組で扱う。
type Source string

const (
	SourceMAL     Source = "mal"
	SourceAniList Source = "anilist"
	SourceDex     Source = "dex"
)

// ParseSource は文字列をSourceに変換する。空文字はSourceMALとして扱う。
func ParseSource(s string) (Source, bool) {
	switch Source(s) {
	case "", SourceMAL:
		return SourceMAL, true
	case SourceAniList:
		return SourceAniList, true
	case SourceDex:
		return SourceDex, true
	}
	return "", false
}

// AnimeRef は名前空間付きのアニメIDを表す。
type AnimeRef struct {
	Source Source
	ID     int
}

// AnimeSummary はプロバイダ非依存の正規化済み作品情報。
// Rating は nil または 0〜10 の範囲に収まる。
type AnimeSummary struct {
	ID       int      `json:"id"`
	Source   Source   `json:"source"`
	Title    string   `json:"title"`
	Image    string   `json:"image"`
	Type     string   `json:"type,omitempty"`
	Year     *int     `json:"year"`
	Rating   *float64 `json:"rating"`
	Synopsis string   `json:"synopsis"`
	Genres   []string `json:"genres"`
	Seasons  []Season `json:"seasons,omitempty"`
}

// Ref はAnimeSummaryの名前空間付きIDを返す。
func (a *AnimeSummary) Ref() AnimeRef {
	return AnimeRef{Source: a.Source, ID: a.ID}
}

// Season はシリーズ内の1シーズン。Number は1始まり。
type Season struct {
	ID     int    `json:"id"`
	Source Source `json:"source"`
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// SearchResultItem は検索結果の1件。
type SearchResultItem struct {
	ID       int    `json:"id"`
	Source   Source `json:"source"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	Type     string `json:"type,omitempty"`
	Year     *int   `json:"year"`
}

// SearchCandidate はプロバイダが返すランキング前の検索候補。
// Titles には英題・ローマ字・原題・別名などすべての表記を含める。
type SearchCandidate struct {
	Summary    AnimeSummary
	Titles     []string
	Popularity int
	Favorites  int
}

// Item は候補をSearchResultItemに変換する。
func (c *SearchCandidate) Item() SearchResultItem {
	return SearchResultItem{
		ID:       c.Summary.ID,
		Source:   c.Summary.Source,
		Title:    c.Summary.Title,
		ImageURL: c.Summary.Image,
		Type:     c.Summary.Type,
		Year:     c.Summary.Year,
	}
}

// Pagination はプロバイダ横断で正規化したページ情報。
type Pagination struct {
	Page            int  `json:"page"`
	HasNextPage     bool `json:"hasNextPage"`
	LastVisiblePage *int `json:"lastVisiblePage"`
}

// AnimePage は discover の結果ページ。
type AnimePage struct {
	Results    []AnimeSummary `json:"results"`
	Pagination Pagination     `json:"pagination"`
}

// EpisodeItem はエピソード1件。Number は1以上。
type EpisodeItem struct {
	ID      string  `json:"id"`
	Number  int     `json:"number"`
	Title   string  `json:"title,omitempty"`
	AirDate *string `json:"airDate"`
}

// EpisodePage はエピソード一覧の1ページ。
type EpisodePage struct {
	Episodes   []EpisodeItem `json:"episodes"`
	Pagination *Pagination   `json:"pagination"`
}

// Genre はジャンル語彙の1要素。
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// StreamLink は外部配信サービスへのリンク。
type StreamLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// NewsItem はアニメ関連ニュース1件。
type NewsItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	PublishedAt string `json:"publishedAt,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Image       string `json:"image,omitempty"`
}

// DiscoverQuery は discover の正規化済み検索条件。
// GenreID/GenreName はジャンル語彙で解決済みの場合のみ設定される。
// GenreProvider は GenreID の名前空間（語彙を返したプロバイダ名）。
type DiscoverQuery struct {
	Query         string
	GenreID       int
	GenreName     string
	GenreProvider string
	Page          int
	OrderBy       string
	Sort          string
}

// RelationNode は関連グラフ上の1作品。Format は放送形態（TV, ONA, MOVIE など、不明なら空）。
type RelationNode struct {
	Ref    AnimeRef
	Title  string
	Format string
}

// RelationEdges はある作品の前作・続編エッジ。
type RelationEdges struct {
	Self     RelationNode
	Prequels []RelationNode
	Sequels  []RelationNode
}
