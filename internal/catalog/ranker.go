package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/hitoshi/koanime/internal/model"
)

const (
	maxSearchResults   = 20
	tokenMatchScore    = 5
	prefixMatchBonus   = 2
	maxPopularityBonus = 10
	maxFavoritesBonus  = 10
	popularityUnit     = 100000
	favoritesUnit      = 10000
)

var folder = cases.Fold()

func fold(s string) string {
	return folder.String(strings.TrimSpace(s))
}

// Rank は1プロバイダ分の検索候補をクエリとの一致度でスコア付けし、
// スコアの降順（同点は元の順序を維持）に並べて最大20件を返す。
//
// 各トークンがタイトル表記のいずれかに含まれれば+5、いずれかの表記の先頭に一致すれば更に+2。
// 人気度 floor(popularity/100000) とお気に入り数 floor(favorites/10000) をそれぞれ最大10まで加算する。
func Rank(query string, candidates []model.SearchCandidate) []model.SearchResultItem {
	tokens := strings.Fields(fold(query))

	type scored struct {
		item  model.SearchResultItem
		score int
	}
	list := make([]scored, 0, len(candidates))
	for i := range candidates {
		list = append(list, scored{
			item:  candidates[i].Item(),
			score: score(tokens, &candidates[i]),
		})
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].score > list[j].score
	})

	if len(list) > maxSearchResults {
		list = list[:maxSearchResults]
	}
	out := make([]model.SearchResultItem, len(list))
	for i, s := range list {
		out[i] = s.item
	}
	return out
}

func score(tokens []string, c *model.SearchCandidate) int {
	titles := make([]string, 0, len(c.Titles)+1)
	for _, t := range append([]string{c.Summary.Title}, c.Titles...) {
		if f := fold(t); f != "" {
			titles = append(titles, f)
		}
	}
	haystack := strings.Join(titles, " | ")

	total := 0
	for _, tok := range tokens {
		if !strings.Contains(haystack, tok) {
			continue
		}
		total += tokenMatchScore
		for _, t := range titles {
			if strings.HasPrefix(t, tok) {
				total += prefixMatchBonus
				break
			}
		}
	}
	total += min(c.Popularity/popularityUnit, maxPopularityBonus)
	total += min(c.Favorites/favoritesUnit, maxFavoritesBonus)
	return total
}
