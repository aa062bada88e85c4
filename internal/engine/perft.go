package engine

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hailam/reversi/internal/board"
)

// PerftResult holds the outcome of a perft run.
type PerftResult struct {
	Depth   int
	Nodes   uint64
	Elapsed time.Duration
}

// Perft counts the leaves of the game tree below pos at the given depth. A
// pass counts as a move and a finished game as a single leaf. Root moves are
// spread over at most workers goroutines (GOMAXPROCS when workers < 1).
func Perft(ctx context.Context, pos board.Position, depth, workers int) (PerftResult, error) {
	start := time.Now()
	res := PerftResult{Depth: depth}
	if depth <= 0 {
		res.Nodes = 1
		return res, nil
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	root := pos.GenerateMoves()
	if root.Len() == 0 {
		res.Nodes = 1
		return res, nil
	}

	var nodes atomic.Uint64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, m := range root.Slice() {
		m := m
		g.Go(func() error {
			p := pos
			p.Update(m)
			n, err := perft(ctx, &p, depth-1, board.NewMoveList())
			if err != nil {
				return err
			}
			nodes.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	res.Nodes = nodes.Load()
	res.Elapsed = time.Since(start)
	log.Debug().
		Int("depth", depth).
		Uint64("nodes", res.Nodes).
		Dur("elapsed", res.Elapsed).
		Msg("perft-done")
	return res, nil
}

// cancelDepth is the remaining depth at and above which perft polls ctx.
const cancelDepth = 4

func perft(ctx context.Context, p *board.Position, depth int, ml *board.MoveList) (uint64, error) {
	if depth == 0 {
		return 1, nil
	}
	if depth >= cancelDepth {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}

	p.FillMoves(ml)
	if ml.Len() == 0 {
		return 1, nil
	}
	if depth == 1 {
		return uint64(ml.Len()), nil
	}

	// ml is refilled by the children, so keep this level's moves.
	var moves [board.MaxMoves]board.Move
	n := copy(moves[:], ml.Slice())

	var nodes uint64
	for _, m := range moves[:n] {
		p.Update(m)
		c, err := perft(ctx, p, depth-1, ml)
		p.Restore(m)
		if err != nil {
			return 0, err
		}
		nodes += c
	}
	return nodes, nil
}
