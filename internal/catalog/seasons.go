package catalog

import (
	"context"

	"github.com/hitoshi/koanime/internal/model"
)

// maxRelationDepth は前作・続編をそれぞれ辿る最大段数。
const maxRelationDepth = 3

// broadcastFormats は分岐があるときに優先する放送形態。
var broadcastFormats = map[string]bool{"TV": true, "TV_SHORT": true, "ONA": true}

type relationFetcher func(ctx context.Context, ref model.AnimeRef) (*model.RelationEdges, bool)

// resolveSeasons は起点作品から前作・続編を辿り、古い順に番号を振ったシーズン列を返す。
// 起点の関連情報を取得できない場合はnilを返す。関連がなければ起点のみの1件となる。
func resolveSeasons(ctx context.Context, seed *model.AnimeSummary, fetch relationFetcher) []model.Season {
	seedRef := seed.Ref()
	edges, ok := fetch(ctx, seedRef)
	if !ok {
		return nil
	}

	seen := map[model.AnimeRef]bool{seedRef: true}
	markSelf(seen, edges)

	back := walkRelations(ctx, edges, prequelsOf, seen, fetch)
	fwd := walkRelations(ctx, edges, sequelsOf, seen, fetch)

	chain := make([]model.RelationNode, 0, len(back)+1+len(fwd))
	for i := len(back) - 1; i >= 0; i-- {
		chain = append(chain, back[i])
	}
	chain = append(chain, model.RelationNode{Ref: seedRef, Title: seed.Title})
	chain = append(chain, fwd...)

	seasons := make([]model.Season, len(chain))
	for i, n := range chain {
		seasons[i] = model.Season{
			ID:     n.Ref.ID,
			Source: n.Ref.Source,
			Number: i + 1,
			Title:  n.Title,
		}
	}
	return seasons
}

func prequelsOf(e *model.RelationEdges) []model.RelationNode { return e.Prequels }
func sequelsOf(e *model.RelationEdges) []model.RelationNode  { return e.Sequels }

// markSelf は取得した関連情報の作品自身を既出扱いにする。
// プロバイダによっては別のID体系で自身を返すため、両方の表記を記録する。
func markSelf(seen map[model.AnimeRef]bool, e *model.RelationEdges) {
	if e.Self.Ref.ID > 0 {
		seen[e.Self.Ref] = true
	}
}

// walkRelations は一方向に最大maxRelationDepth段辿る。既出の作品に到達したら止める。
// 次の段が不要な場合は関連情報を取得しない。
func walkRelations(ctx context.Context, start *model.RelationEdges, next func(*model.RelationEdges) []model.RelationNode, seen map[model.AnimeRef]bool, fetch relationFetcher) []model.RelationNode {
	var out []model.RelationNode
	cur := start
	for depth := 0; depth < maxRelationDepth; depth++ {
		node, ok := pickEdge(next(cur))
		if !ok || seen[node.Ref] {
			break
		}
		seen[node.Ref] = true
		out = append(out, node)

		if depth == maxRelationDepth-1 {
			break
		}
		edges, ok := fetch(ctx, node.Ref)
		if !ok {
			break
		}
		markSelf(seen, edges)
		cur = edges
	}
	return out
}

// pickEdge は放送形態のエッジを優先し、なければ先頭のエッジを選ぶ。
func pickEdge(nodes []model.RelationNode) (model.RelationNode, bool) {
	var valid []model.RelationNode
	for _, n := range nodes {
		if n.Ref.ID > 0 {
			valid = append(valid, n)
		}
	}
	if len(valid) == 0 {
		return model.RelationNode{}, false
	}
	for _, n := range valid {
		if broadcastFormats[n.Format] {
			return n, true
		}
	}
	return valid[0], true
}
