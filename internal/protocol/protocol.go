// Package protocol implements a line-oriented text console over the board,
// transposition table and snapshot store.
package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hailam/reversi/internal/board"
	"github.com/hailam/reversi/internal/engine"
	"github.com/hailam/reversi/internal/storage"
)

// ErrNoStorage is returned by snapshot commands when the console runs
// without a database.
var ErrNoStorage = errors.New("no snapshot storage")

// state is one entry of the undo history.
type state struct {
	pos  board.Position
	side board.Color
}

// Console holds the current game and the shared transposition table.
type Console struct {
	pos     board.Position
	side    board.Color
	history []state

	table    *engine.Table
	store    *storage.Storage
	settings *storage.Settings

	out io.Writer
}

// New creates a console on the starting position. store and settings may be
// nil, in which case the snapshot database commands fail with ErrNoStorage.
func New(table *engine.Table, store *storage.Storage, settings *storage.Settings) *Console {
	if settings == nil {
		settings = storage.DefaultSettings()
	}
	return &Console{
		pos:      board.NewPosition(),
		side:     board.Black,
		table:    table,
		store:    store,
		settings: settings,
		out:      io.Discard,
	}
}

// Position returns the current position and the color of its Player.
func (c *Console) Position() (board.Position, board.Color) {
	return c.pos, c.side
}

// Run reads commands from r until "quit" or end of input, writing replies
// to w. Command errors are reported on w and do not stop the loop.
func (c *Console) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	c.out = w
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if err := c.Execute(ctx, cmd, args); err != nil {
			log.Debug().Str("cmd", line).Err(err).Msg("command-failed")
			c.printf("error: %v\n", err)
		}
	}
	return scanner.Err()
}

// Execute runs a single command.
func (c *Console) Execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "new":
		c.reset(board.NewPosition(), board.Black)
		c.printf("ok\n")
	case "setboard":
		return c.handleSetBoard(args)
	case "fen":
		return c.handleFEN(args)
	case "d", "display":
		c.handleDisplay()
	case "moves":
		c.handleMoves()
	case "play":
		return c.handlePlay(args)
	case "undo":
		return c.handleUndo()
	case "pass":
		return c.handlePlay([]string{"ps"})
	case "stability":
		c.handleStability()
	case "mobility":
		c.handleMobility()
	case "unique":
		c.handleUnique()
	case "hash":
		c.printf("hash %016x\n", c.pos.Hash())
	case "perft":
		return c.handlePerft(ctx, args)
	case "probe":
		c.handleProbe()
	case "store":
		return c.handleStore(args)
	case "hashinfo":
		c.handleHashInfo()
	case "hashclear":
		c.table.Clear()
		c.printf("ok\n")
	case "newsearch":
		c.table.NewSearch()
		c.printf("date %d\n", c.table.Date())
	case "savehash":
		return c.handleSaveHash(args)
	case "loadhash":
		return c.handleLoadHash(args)
	case "listhash":
		return c.handleListHash()
	case "delhash":
		return c.handleDeleteHash(args)
	case "exporthash":
		return c.handleExport(args)
	case "importhash":
		return c.handleImport(args)
	case "kernel":
		return c.handleKernel(args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (c *Console) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) reset(pos board.Position, side board.Color) {
	c.pos, c.side = pos, side
	c.history = c.history[:0]
}

// handleSetBoard parses "setboard <64 squares> <side>".
func (c *Console) handleSetBoard(args []string) error {
	pos, side, err := board.ParseBoard(strings.Join(args, " "))
	if err != nil {
		return err
	}
	c.reset(pos, side)
	c.printf("ok\n")
	return nil
}

// handleFEN prints the current FEN, or sets the position from one.
func (c *Console) handleFEN(args []string) error {
	if len(args) == 0 {
		c.printf("fen %s\n", c.pos.ToFEN(c.side))
		return nil
	}
	pos, side, err := board.ParseFEN(strings.Join(args, " "))
	if err != nil {
		return err
	}
	c.reset(pos, side)
	c.printf("ok\n")
	return nil
}

func (c *Console) handleDisplay() {
	c.printf("%s", c.pos.String())
	c.printf("board %s\n", c.pos.ToBoardString(c.side))
	c.printf("side %s\n", c.side)
	switch {
	case c.pos.IsGameOver():
		c.printf("game over, score %+d\n", c.pos.FinalScore())
	case c.pos.MustPass():
		c.printf("must pass\n")
	}
}

func (c *Console) handleMoves() {
	ml := c.pos.GenerateMoves()
	if ml.Len() == 0 {
		c.printf("moves none\n")
		return
	}
	moves := make([]string, 0, ml.Len())
	for _, m := range ml.Slice() {
		moves = append(moves, m.String())
	}
	c.printf("moves %s\n", strings.Join(moves, " "))
}

// handlePlay applies a move sequence. Either every move is legal and the
// sequence is played, or the position is left unchanged.
func (c *Console) handlePlay(args []string) error {
	if len(args) == 0 {
		return errors.New("play: missing moves")
	}
	squares, err := board.ParseMoves(strings.Join(args, ""))
	if err != nil {
		return err
	}

	pos, side := c.pos, c.side
	history := make([]state, 0, len(squares))
	for _, sq := range squares {
		history = append(history, state{pos, side})
		if !pos.Play(sq) {
			return fmt.Errorf("illegal move %s", sq)
		}
		side = side.Other()
	}

	c.history = append(c.history, history...)
	c.pos, c.side = pos, side
	c.printf("ok\n")
	return nil
}

func (c *Console) handleUndo() error {
	if len(c.history) == 0 {
		return errors.New("nothing to undo")
	}
	last := c.history[len(c.history)-1]
	c.history = c.history[:len(c.history)-1]
	c.pos, c.side = last.pos, last.side
	c.printf("ok\n")
	return nil
}

func (c *Console) handleStability() {
	c.printf("stability %d edge %d corner %d\n",
		c.pos.Stability(), c.pos.EdgeStability(), c.pos.CornerStability())
}

func (c *Console) handleMobility() {
	c.printf("mobility %d weighted %d potential %d\n",
		c.pos.Mobility(),
		board.GetWeightedMobility(c.pos.Player, c.pos.Opponent),
		c.pos.PotentialMobility())
}

func (c *Console) handleUnique() {
	unique, sym := c.pos.Unique()
	c.printf("unique %s symmetry %d\n", unique.ToBoardString(c.side), sym)
}

func (c *Console) handlePerft(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("perft: missing depth")
	}
	depth, err := strconv.Atoi(args[0])
	if err != nil || depth < 0 {
		return fmt.Errorf("perft: invalid depth %q", args[0])
	}
	workers := 0
	if len(args) > 1 {
		if workers, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("perft: invalid workers %q", args[1])
		}
	}

	res, err := engine.Perft(ctx, c.pos, depth, workers)
	if err != nil {
		return err
	}
	nps := uint64(0)
	if secs := res.Elapsed.Seconds(); secs > 0 {
		nps = uint64(float64(res.Nodes) / secs)
	}
	c.printf("perft %d nodes %d time %d nps %d\n",
		res.Depth, res.Nodes, res.Elapsed.Milliseconds(), nps)
	return nil
}

func (c *Console) handleProbe() {
	d, ok := c.table.Probe(c.pos, c.pos.Hash())
	if !ok {
		c.printf("probe miss\n")
		return
	}
	c.printf("probe depth %d selectivity %d lower %d upper %d move %s %s date %d\n",
		d.Depth, d.Selectivity, d.Lower, d.Upper, d.Move[0], d.Move[1], d.Date)
}

// handleStore stores an exact score: "store <depth> <score> [move]".
func (c *Console) handleStore(args []string) error {
	if len(args) < 2 {
		return errors.New("store: want <depth> <score> [move]")
	}
	depth, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("store: invalid depth %q", args[0])
	}
	score, err := strconv.Atoi(args[1])
	if err != nil || score < engine.ScoreMin || score > engine.ScoreMax {
		return fmt.Errorf("store: invalid score %q", args[1])
	}
	move := board.NoSquare
	if len(args) > 2 {
		if move, err = board.ParseSquare(args[2]); err != nil {
			return err
		}
	}

	c.table.Store(c.pos, c.pos.Hash(), engine.Result{
		Depth: depth,
		Alpha: engine.ScoreMin,
		Beta:  engine.ScoreMax,
		Score: score,
		Move:  move,
	})
	c.printf("ok\n")
	return nil
}

func (c *Console) handleHashInfo() {
	st := c.table.Stats()
	c.printf("hash entries %d buckets %d ways %d locks %d date %d\n",
		c.table.Size(), c.table.Buckets(), c.table.Ways(), c.table.Locks(), c.table.Date())
	c.printf("hash probes %d hits %d stores %d skips %d hitrate %.1f%% full %d\n",
		st.Probes, st.Hits, st.Stores, st.Skips, c.table.HitRate(), c.table.HashFull())
}

func (c *Console) handleSaveHash(args []string) error {
	if c.store == nil {
		return ErrNoStorage
	}
	name := strings.Join(args, " ")
	info, err := c.store.SaveTable(name, c.table)
	if err != nil {
		return err
	}
	c.settings.LastSnapshot = info.ID
	if err := c.store.SaveSettings(c.settings); err != nil {
		log.Warn().Err(err).Msg("settings-save-failed")
	}
	c.printf("saved %s entries %d bytes %d\n", info.ID, info.Entries, info.StoredSize)
	return nil
}

func (c *Console) handleLoadHash(args []string) error {
	if c.store == nil {
		return ErrNoStorage
	}
	id := c.settings.LastSnapshot
	if len(args) > 0 {
		id = args[0]
	}
	if id == "" {
		return errors.New("loadhash: missing snapshot id")
	}
	info, err := c.store.LoadTable(id, c.table)
	if err != nil {
		return err
	}
	c.printf("loaded %s entries %d\n", info.ID, info.Entries)
	return nil
}

func (c *Console) handleListHash() error {
	if c.store == nil {
		return ErrNoStorage
	}
	list, err := c.store.ListSnapshots()
	if err != nil {
		return err
	}
	for _, info := range list {
		c.printf("snapshot %s %q entries %d created %s\n",
			info.ID, info.Name, info.Entries, info.Created.Format("2006-01-02 15:04:05"))
	}
	c.printf("snapshots %d\n", len(list))
	return nil
}

func (c *Console) handleDeleteHash(args []string) error {
	if c.store == nil {
		return ErrNoStorage
	}
	if len(args) == 0 {
		return errors.New("delhash: missing snapshot id")
	}
	if err := c.store.DeleteSnapshot(args[0]); err != nil {
		return err
	}
	c.printf("ok\n")
	return nil
}

func (c *Console) handleExport(args []string) error {
	if len(args) == 0 {
		return errors.New("exporthash: missing path")
	}
	if err := storage.ExportTable(args[0], c.table); err != nil {
		return err
	}
	c.printf("ok\n")
	return nil
}

func (c *Console) handleImport(args []string) error {
	if len(args) == 0 {
		return errors.New("importhash: missing path")
	}
	if err := storage.ImportTable(args[0], c.table); err != nil {
		return err
	}
	c.printf("ok\n")
	return nil
}

// handleKernel prints the active kernels, or selects a flip or move-mask
// kernel by name.
func (c *Console) handleKernel(args []string) error {
	if len(args) == 0 {
		flip, mask := board.ActiveKernels()
		var flips, masks []string
		for _, k := range board.FlipKernels() {
			flips = append(flips, k.Name())
		}
		for _, k := range board.MoveMaskKernels() {
			masks = append(masks, k.Name())
		}
		c.printf("kernel flip %s mask %s\n", flip, mask)
		c.printf("available flip %s mask %s\n", strings.Join(flips, ","), strings.Join(masks, ","))
		return nil
	}

	name := args[0]
	switch name {
	case board.MaskKoggeStone, board.MaskSequential:
		if err := board.UseMaskKernel(name); err != nil {
			return err
		}
	default:
		if err := board.UseKernel(name); err != nil {
			return err
		}
		c.settings.Kernel = name
		if c.store != nil {
			if err := c.store.SaveSettings(c.settings); err != nil {
				log.Warn().Err(err).Msg("settings-save-failed")
			}
		}
	}
	c.printf("ok\n")
	return nil
}
