package anilist

import (
	"github.com/hitoshi/koanime/internal/model"
	"github.com/hitoshi/koanime/internal/provider/upstream"
)

func (c *Client) summarize(m media) model.AnimeSummary {
	ref := nodeRef(m.ID, m.IDMal)

	year := m.SeasonYear
	if year == nil || *year <= 0 {
		year = m.StartDate.Year
	}
	if year != nil && *year <= 0 {
		year = nil
	}

	var rating *float64
	if m.AverageScore != nil {
		rating = upstream.RatingFromPercent(*m.AverageScore)
	}

	genres := make([]string, 0, len(m.Genres))
	for _, g := range m.Genres {
		if g != "" {
			genres = append(genres, g)
		}
	}

	return model.AnimeSummary{
		ID:       ref.ID,
		Source:   ref.Source,
		Title:    preferredTitle(m.Title),
		Image:    upstream.FirstNonEmpty(m.CoverImage.ExtraLarge, m.CoverImage.Large, m.CoverImage.Medium),
		Type:     m.Format,
		Year:     year,
		Rating:   rating,
		Synopsis: c.sanitizer.PlainText(m.Description),
		Genres:   genres,
	}
}

func (c *Client) summaries(list []media) []model.AnimeSummary {
	out := make([]model.AnimeSummary, 0, len(list))
	for _, m := range list {
		if m.ID == 0 {
			continue
		}
		out = append(out, c.summarize(m))
	}
	return out
}

// nodeRef はMAL IDがあればMAL ID体系、無ければAniList ID体系の参照を返す。
func nodeRef(id int, idMal *int) model.AnimeRef {
	if idMal != nil && *idMal > 0 {
		return model.AnimeRef{Source: model.SourceMAL, ID: *idMal}
	}
	return model.AnimeRef{Source: model.SourceAniList, ID: id}
}

func preferredTitle(t mediaTitle) string {
	return upstream.FirstNonEmpty(t.English, t.Romaji, t.Native, t.UserPreferred)
}

func titles(m media) []string {
	out := make([]string, 0, 4+len(m.Synonyms))
	for _, t := range append([]string{m.Title.English, m.Title.Romaji, m.Title.Native, m.Title.UserPreferred}, m.Synonyms...) {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
