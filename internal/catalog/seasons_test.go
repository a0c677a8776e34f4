package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/hitoshi/koanime/internal/model"
)

func mal(id int) model.AnimeRef { return model.AnimeRef{Source: model.SourceMAL, ID: id} }

func node(id int, format string) model.RelationNode {
	return model.RelationNode{Ref: mal(id), Title: fmt.Sprintf("T%d", id), Format: format}
}

type relationGraph struct {
	edges   map[model.AnimeRef]*model.RelationEdges
	fetched []model.AnimeRef
}

func (g *relationGraph) fetch(_ context.Context, ref model.AnimeRef) (*model.RelationEdges, bool) {
	g.fetched = append(g.fetched, ref)
	e, ok := g.edges[ref]
	return e, ok
}

func seasonIDs(seasons []model.Season) []int {
	out := make([]int, len(seasons))
	for i, s := range seasons {
		out[i] = s.ID
	}
	return out
}

func TestResolveSeasons_StopsAfterThreeHops(t *testing.T) {
	g := &relationGraph{edges: map[model.AnimeRef]*model.RelationEdges{
		mal(100): {Self: node(100, "TV"), Prequels: []model.RelationNode{node(99, "TV")}},
		mal(99):  {Self: node(99, "TV"), Prequels: []model.RelationNode{node(98, "TV")}, Sequels: []model.RelationNode{node(100, "TV")}},
		mal(98):  {Self: node(98, "TV"), Prequels: []model.RelationNode{node(97, "TV")}, Sequels: []model.RelationNode{node(99, "TV")}},
		mal(97):  {Self: node(97, "TV"), Prequels: []model.RelationNode{node(96, "TV")}, Sequels: []model.RelationNode{node(98, "TV")}},
	}}
	seed := &model.AnimeSummary{ID: 100, Source: model.SourceMAL, Title: "Seed"}

	got := resolveSeasons(context.Background(), seed, g.fetch)

	if fmt.Sprint(seasonIDs(got)) != "[97 98 99 100]" {
		t.Fatalf("chain = %v, want [97 98 99 100]", seasonIDs(got))
	}
	for i, s := range got {
		if s.Number != i+1 {
			t.Errorf("season %d number = %d", s.ID, s.Number)
		}
	}
	if got[3].Title != "Seed" {
		t.Errorf("seed title = %q", got[3].Title)
	}
	for _, ref := range g.fetched {
		if ref.ID == 97 || ref.ID == 96 {
			t.Errorf("fetched %v, the walk should stop at the third hop", ref)
		}
	}
}

func TestResolveSeasons_BothDirections(t *testing.T) {
	g := &relationGraph{edges: map[model.AnimeRef]*model.RelationEdges{
		mal(2): {Prequels: []model.RelationNode{node(1, "TV")}, Sequels: []model.RelationNode{node(3, "TV")}},
		mal(1): {Sequels: []model.RelationNode{node(2, "TV")}},
		mal(3): {Prequels: []model.RelationNode{node(2, "TV")}},
	}}
	seed := &model.AnimeSummary{ID: 2, Source: model.SourceMAL, Title: "T2"}

	got := resolveSeasons(context.Background(), seed, g.fetch)
	if fmt.Sprint(seasonIDs(got)) != "[1 2 3]" {
		t.Errorf("chain = %v, want [1 2 3]", seasonIDs(got))
	}
}

func TestResolveSeasons_NeverRevisits(t *testing.T) {
	g := &relationGraph{edges: map[model.AnimeRef]*model.RelationEdges{
		mal(1): {Prequels: []model.RelationNode{node(2, "TV")}, Sequels: []model.RelationNode{node(2, "TV")}},
		mal(2): {Prequels: []model.RelationNode{node(1, "TV")}, Sequels: []model.RelationNode{node(1, "TV")}},
	}}
	seed := &model.AnimeSummary{ID: 1, Source: model.SourceMAL}

	got := resolveSeasons(context.Background(), seed, g.fetch)
	seen := map[int]bool{}
	for _, s := range got {
		if seen[s.ID] {
			t.Fatalf("id %d visited twice: %v", s.ID, seasonIDs(got))
		}
		seen[s.ID] = true
	}
	if len(got) != 2 {
		t.Errorf("chain = %v, want two entries", seasonIDs(got))
	}
}

func TestResolveSeasons_PrefersBroadcastFormat(t *testing.T) {
	g := &relationGraph{edges: map[model.AnimeRef]*model.RelationEdges{
		mal(10): {Sequels: []model.RelationNode{node(11, "MOVIE"), node(12, "TV")}},
		mal(12): {},
	}}
	seed := &model.AnimeSummary{ID: 10, Source: model.SourceMAL}

	got := resolveSeasons(context.Background(), seed, g.fetch)
	if fmt.Sprint(seasonIDs(got)) != "[10 12]" {
		t.Errorf("chain = %v, want [10 12]", seasonIDs(got))
	}
}

func TestResolveSeasons_FallsBackToFirstEdge(t *testing.T) {
	g := &relationGraph{edges: map[model.AnimeRef]*model.RelationEdges{
		mal(10): {Sequels: []model.RelationNode{node(11, "MOVIE"), node(12, "SPECIAL")}},
		mal(11): {},
	}}
	seed := &model.AnimeSummary{ID: 10, Source: model.SourceMAL}

	got := resolveSeasons(context.Background(), seed, g.fetch)
	if fmt.Sprint(seasonIDs(got)) != "[10 11]" {
		t.Errorf("chain = %v, want [10 11]", seasonIDs(got))
	}
}

func TestResolveSeasons_SeedLookupFailure(t *testing.T) {
	g := &relationGraph{edges: map[model.AnimeRef]*model.RelationEdges{}}
	seed := &model.AnimeSummary{ID: 5, Source: model.SourceMAL}

	if got := resolveSeasons(context.Background(), seed, g.fetch); got != nil {
		t.Errorf("seasons = %v, want nil", got)
	}
}

func TestResolveSeasons_NoRelationsIsSingleSeason(t *testing.T) {
	g := &relationGraph{edges: map[model.AnimeRef]*model.RelationEdges{mal(5): {}}}
	seed := &model.AnimeSummary{ID: 5, Source: model.SourceMAL, Title: "Solo"}

	got := resolveSeasons(context.Background(), seed, g.fetch)
	want := []model.Season{{ID: 5, Source: model.SourceMAL, Number: 1, Title: "Solo"}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("seasons = %v, want %v", got, want)
	}
}

func TestResolveSeasons_SelfInOtherNamespaceCountsAsSeen(t *testing.T) {
	seedRef := model.AnimeRef{Source: model.SourceAniList, ID: 500}
	g := &relationGraph{edges: map[model.AnimeRef]*model.RelationEdges{
		seedRef: {Self: node(50, "TV"), Sequels: []model.RelationNode{node(51, "TV")}},
		mal(51): {Sequels: []model.RelationNode{node(50, "TV")}},
	}}
	seed := &model.AnimeSummary{ID: 500, Source: model.SourceAniList}

	got := resolveSeasons(context.Background(), seed, g.fetch)
	if fmt.Sprint(seasonIDs(got)) != "[500 51]" {
		t.Errorf("chain = %v, want [500 51]", seasonIDs(got))
	}
}
