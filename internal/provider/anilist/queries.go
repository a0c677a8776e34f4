package anilist

import (
	"github.com/shurcooL/graphql"

	"github.com/hitoshi/koanime/internal/model"
)

// MediaSort はAniListのMediaSort列挙型。変数の型名としてそのまま使われる。
type MediaSort string

// MediaSeason はAniListのMediaSeason列挙型。
type MediaSeason string

type mediaTitle struct {
	English       string `graphql:"english"`
	Romaji        string `graphql:"romaji"`
	Native        string `graphql:"native"`
	UserPreferred string `graphql:"userPreferred"`
}

type media struct {
	ID         int        `graphql:"id"`
	IDMal      *int       `graphql:"idMal"`
	Title      mediaTitle `graphql:"title"`
	Synonyms   []string   `graphql:"synonyms"`
	CoverImage struct {
		ExtraLarge string `graphql:"extraLarge"`
		Large      string `graphql:"large"`
		Medium     string `graphql:"medium"`
	} `graphql:"coverImage"`
	Format     string `graphql:"format"`
	SeasonYear *int   `graphql:"seasonYear"`
	StartDate  struct {
		Year *int `graphql:"year"`
	} `graphql:"startDate"`
	AverageScore *int     `graphql:"averageScore"`
	Description  string   `graphql:"description(asHtml: false)"`
	Genres       []string `graphql:"genres"`
	Popularity   int      `graphql:"popularity"`
	Favourites   int      `graphql:"favourites"`
}

type pageInfo struct {
	CurrentPage int  `graphql:"currentPage"`
	HasNextPage bool `graphql:"hasNextPage"`
	LastPage    *int `graphql:"lastPage"`
}

type relationNode struct {
	ID     int        `graphql:"id"`
	IDMal  *int       `graphql:"idMal"`
	Type   string     `graphql:"type"`
	Format string     `graphql:"format"`
	Title  mediaTitle `graphql:"title"`
}

type relationEdge struct {
	RelationType string       `graphql:"relationType(version: 2)"`
	Node         relationNode `graphql:"node"`
}

type trendingQuery struct {
	Page struct {
		Media []media `graphql:"media(type: ANIME, sort: [TRENDING_DESC, POPULARITY_DESC], isAdult: false)"`
	} `graphql:"Page(page: 1, perPage: 24)"`
}

type seasonQuery struct {
	Page struct {
		Media []media `graphql:"media(season: $season, seasonYear: $year, type: ANIME, sort: [POPULARITY_DESC], isAdult: false)"`
	} `graphql:"Page(page: 1, perPage: 24)"`
}

type searchQuery struct {
	Page struct {
		Media []media `graphql:"media(search: $search, type: ANIME, sort: [SEARCH_MATCH, POPULARITY_DESC], isAdult: false)"`
	} `graphql:"Page(page: 1, perPage: 30)"`
}

type discoverQuery struct {
	Page struct {
		PageInfo pageInfo `graphql:"pageInfo"`
		Media    []media  `graphql:"media(search: $search, genre: $genre, type: ANIME, sort: $sort, isAdult: false)"`
	} `graphql:"Page(page: $page, perPage: 24)"`
}

type genreQuery struct {
	GenreCollection []string `graphql:"GenreCollection"`
}

type infoQuery struct {
	Media media `graphql:"Media(id: $id, idMal: $idMal, type: ANIME)"`
}

type relationsQuery struct {
	Media struct {
		ID        int        `graphql:"id"`
		IDMal     *int       `graphql:"idMal"`
		Format    string     `graphql:"format"`
		Title     mediaTitle `graphql:"title"`
		Relations struct {
			Edges []relationEdge `graphql:"edges"`
		} `graphql:"relations"`
	} `graphql:"Media(id: $id, idMal: $idMal, type: ANIME)"`
}

type episodesQuery struct {
	Media struct {
		ID                int                `graphql:"id"`
		Episodes          int                `graphql:"episodes"`
		StreamingEpisodes []streamingEpisode `graphql:"streamingEpisodes"`
		AiringSchedule    struct {
			PageInfo pageInfo `graphql:"pageInfo"`
			Nodes    []struct {
				ID       int   `graphql:"id"`
				Episode  int   `graphql:"episode"`
				AiringAt int64 `graphql:"airingAt"`
			} `graphql:"nodes"`
		} `graphql:"airingSchedule(page: $page, perPage: 50)"`
	} `graphql:"Media(id: $id, idMal: $idMal, type: ANIME)"`
}

type streamingEpisode struct {
	Title string `graphql:"title"`
	URL   string `graphql:"url"`
	Site  string `graphql:"site"`
}

type streamsQuery struct {
	Media struct {
		StreamingEpisodes []streamingEpisode `graphql:"streamingEpisodes"`
		ExternalLinks     []struct {
			Site string `graphql:"site"`
			URL  string `graphql:"url"`
			Type string `graphql:"type"`
		} `graphql:"externalLinks"`
	} `graphql:"Media(id: $id, idMal: $idMal, type: ANIME)"`
}

// refVariables はAniList ID・MAL IDのどちらで引くかに応じて片方をnullにした変数を作る。
func refVariables(ref model.AnimeRef) map[string]any {
	anilistID := (*graphql.Int)(nil)
	malID := (*graphql.Int)(nil)
	v := graphql.Int(ref.ID)
	if ref.Source == model.SourceAniList {
		anilistID = &v
	} else {
		malID = &v
	}
	return map[string]any{"id": anilistID, "idMal": malID}
}
