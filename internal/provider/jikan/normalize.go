package jikan

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hitoshi/koanime/internal/model"
	"github.com/hitoshi/koanime/internal/provider/upstream"
)

func (c *Client) summarize(a animeRecord) model.AnimeSummary {
	var firstTitle string
	if len(a.Titles) > 0 {
		firstTitle = a.Titles[0].Title
	}

	year := a.Year
	if year == nil || *year <= 0 {
		year = upstream.YearIn(a.Aired.From)
	}
	if year == nil {
		year = upstream.YearIn(a.Aired.String)
	}

	var rating *float64
	if a.Score != nil {
		rating = upstream.Rating(*a.Score)
	}

	genres := make([]string, 0, len(a.Genres))
	for _, g := range a.Genres {
		if g.Name != "" {
			genres = append(genres, g.Name)
		}
	}

	return model.AnimeSummary{
		ID:     a.MalID,
		Source: model.SourceMAL,
		Title:  upstream.FirstNonEmpty(a.TitleEnglish, a.Title, firstTitle),
		Image: upstream.FirstNonEmpty(
			a.Images.JPG.LargeImageURL,
			a.Images.JPG.ImageURL,
			a.Images.WebP.LargeImageURL,
			a.ImageURL,
		),
		Type:     a.Type,
		Year:     year,
		Rating:   rating,
		Synopsis: c.sanitizer.PlainText(a.Synopsis),
		Genres:   genres,
	}
}

// titles はランキング用にすべてのタイトル表記を集める。
func titles(a animeRecord) []string {
	out := []string{a.Title, a.TitleEnglish, a.TitleJapanese}
	for _, t := range a.Titles {
		out = append(out, t.Title)
	}
	out = append(out, a.TitleSynonyms...)

	filtered := out[:0]
	for _, t := range out {
		if t != "" {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func (c *Client) summaries(raw []json.RawMessage) []model.AnimeSummary {
	records := decodeEach[animeRecord](raw)
	out := make([]model.AnimeSummary, 0, len(records))
	for _, r := range records {
		if r.MalID <= 0 {
			continue
		}
		out = append(out, c.summarize(r))
	}
	return out
}

func normalizePagination(p *pagination, requested int) model.Pagination {
	if p == nil {
		return model.Pagination{Page: requested}
	}
	page := p.CurrentPage
	if page <= 0 {
		page = requested
	}
	last := p.LastVisiblePage
	if last == nil {
		last = p.LastPage
	}
	return model.Pagination{Page: page, HasNextPage: p.HasNextPage, LastVisiblePage: last}
}

func episodeItems(animeID, page int, records []episodeRecord) []model.EpisodeItem {
	out := make([]model.EpisodeItem, 0, len(records))
	for i, ep := range records {
		number := ep.MalID
		if number <= 0 {
			number = (page-1)*episodesPerPage + i + 1
		}
		id := strconv.Itoa(ep.MalID)
		if ep.MalID <= 0 {
			id = fmt.Sprintf("%d-%d", animeID, number)
		}
		item := model.EpisodeItem{
			ID:     id,
			Number: number,
			Title:  upstream.FirstNonEmpty(ep.Title, ep.TitleRomanji, ep.TitleJapanese),
		}
		if ep.Aired != "" {
			aired := ep.Aired
			item.AirDate = &aired
		}
		out = append(out, item)
	}
	return out
}
