// Package session runs one participant's pass through a game: opening and
// lobby, the timed match, results and teardown back to the top menu.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/character"
	"github.com/DoyleJ11/poipoi-backend/internal/match"
	"github.com/DoyleJ11/poipoi-backend/internal/room"
	"github.com/DoyleJ11/poipoi-backend/internal/slot"
	"github.com/DoyleJ11/poipoi-backend/internal/task"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	"go.uber.org/zap"
)

var ErrAlreadyStarted = errors.New("session already started")

// Network is the replicated room as the controller sees it. *room.Replica
// implements it.
type Network interface {
	match.Net
	slot.Board
	Pump()
	Joined() bool
	Connected() bool
	Offline() bool
	Room() types.RoomProps
	Players() []types.PlayerProps
	Local() (types.PlayerProps, bool)
	Authority() (*room.Authority, bool)
	SetPlayer(patch types.PlayerPatch) error
	When(pred func() bool) *task.Future[struct{}]
	OnEvent(h room.EventHandler)
	OnPose(h room.PoseHandler)
	Disconnect() error
}

var _ Network = (*room.Replica)(nil)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseOpening
	PhaseLobby
	PhaseActive
	PhaseEnding
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseOpening:
		return "opening"
	case PhaseLobby:
		return "lobby"
	case PhaseActive:
		return "active"
	case PhaseEnding:
		return "ending"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Outcome is how a session left the room.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeFinished
	OutcomeCancelled
	OutcomeRejected
	OutcomeDisconnected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFinished:
		return "finished"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeRejected:
		return "rejected"
	case OutcomeDisconnected:
		return "disconnected"
	default:
		return "none"
	}
}

// Controller owns the phase machine, the match clock and the local
// participant's score. Every method must be called from the goroutine that
// calls Tick.
type Controller struct {
	cfg      Config
	net      Network
	ui       Presentation
	controls Controls
	log      *zap.Logger
	rng      *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	sched  *task.Scheduler
	world  *match.World

	phase   Phase
	timer   float64
	score   int
	record  float64
	slot    int
	outcome Outcome
	err     error
	lastH   float64
}

func New(parent context.Context, cfg Config, net Network, ui Presentation, controls Controls, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = room.DefaultCapacity
	}
	if controls == nil {
		controls = &ManualControls{}
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	ctx, cancel := context.WithCancel(parent)
	c := &Controller{
		cfg:      cfg,
		net:      net,
		ui:       ui.withDefaults(),
		controls: controls,
		log:      log.Named("session"),
		rng:      rand.New(rand.NewPCG(seed, seed>>1|1)),
		ctx:      ctx,
		cancel:   cancel,
		sched:    task.NewScheduler(ctx, log),
		timer:    cfg.MatchDuration.Seconds(),
		record:   -1,
		slot:     types.NoSlot,
	}
	net.OnEvent(func(from string, seq uint64, evt types.Event) {
		if w := c.ensureWorld(); w != nil {
			w.HandleEvent(from, seq, evt)
		}
	})
	net.OnPose(func(p types.Pose) {
		if w := c.ensureWorld(); w != nil {
			w.HandlePose(p)
		}
	})
	return c
}

func (c *Controller) Phase() Phase        { return c.phase }
func (c *Controller) Timer() float64      { return c.timer }
func (c *Controller) Score() int          { return c.score }
func (c *Controller) Record() float64     { return c.record }
func (c *Controller) Slot() int           { return c.slot }
func (c *Controller) World() *match.World { return c.world }
func (c *Controller) Outcome() Outcome    { return c.outcome }

// Err is the error that ended the session early, if any.
func (c *Controller) Err() error { return c.err }

// Done reports whether the session has returned to the top menu.
func (c *Controller) Done() bool { return c.phase == PhaseClosed }

// ensureWorld builds the world once the local identity is known.
func (c *Controller) ensureWorld() *match.World {
	if c.world != nil {
		return c.world
	}
	if !c.net.Joined() {
		return nil
	}
	c.world = match.NewWorld(c.cfg.World, c.net, c.sched, c.log)
	c.world.OnLanded(func(itemID int, distance float64) {
		if c.phase != PhaseActive {
			return
		}
		if c.UpdateScoreAndRecord(1, distance) {
			c.log.Info("new record", zap.Int("item", itemID), zap.Float64("distance", distance))
		}
	})
	return c.world
}

// Start resets the local score and launches the opening sequence.
func (c *Controller) Start() error {
	if c.phase != PhaseIdle {
		return ErrAlreadyStarted
	}
	c.phase = PhaseOpening
	c.score, c.record = 0, -1
	c.timer = c.cfg.MatchDuration.Seconds()
	c.ui.Timer.SetTime(c.timer)
	c.sched.Go(c.ctx, "opening", c.opening)
	return nil
}

// Tick advances the session by dt. Network frames are applied first so
// every task and the world see the same state for the whole tick.
func (c *Controller) Tick(dt time.Duration) {
	if c.phase == PhaseIdle || c.phase == PhaseClosed {
		return
	}
	c.net.Pump()

	if c.phase == PhaseActive && !c.net.Connected() {
		c.dropped()
	}

	timeUp := false
	if c.phase == PhaseActive {
		if c.net.Room().Practice {
			c.ui.Timer.SetTime(-1)
		} else {
			c.timer -= dt.Seconds()
			if c.timer <= 0 {
				c.timer = 0
				timeUp = true
			}
			c.ui.Timer.SetTime(c.timer)
		}
	}

	c.sched.Tick(dt)

	// started after the scheduler tick so this tick's dt does not count
	// against the ending delays
	if timeUp {
		c.EndMatch()
	}

	if c.world != nil && c.phase != PhaseClosed {
		var in character.Input
		if c.phase == PhaseActive {
			in = c.controls.Character()
		}
		c.world.Tick(in, dt.Seconds())
	}

	for _, p := range c.net.Players() {
		if p.Ready && p.Slot != types.NoSlot {
			c.ui.Scores.SetScore(p.Slot, p.Score)
		}
	}
}

// EndMatch moves an active match into its ending sequence.
func (c *Controller) EndMatch() {
	if c.phase != PhaseActive {
		return
	}
	c.phase = PhaseEnding
	c.log.Info("match over", zap.Int("score", c.score), zap.Float64("record", c.record))
	c.sched.Go(c.ctx, "ending", c.ending)
}

// dropped tears down a match whose connection went away.
func (c *Controller) dropped() {
	c.phase = PhaseEnding
	c.sched.Go(c.ctx, "dropped", func(y *task.Yielder) error {
		return c.fail(y, OutcomeDisconnected, room.ErrDisconnected)
	})
}

// UpdateScoreAndRecord adds to the local score and raises the record if
// distance beats it. It reports whether a new record was set. Practice
// matches keep no score.
func (c *Controller) UpdateScoreAndRecord(add int, distance float64) bool {
	if c.net.Room().Practice {
		return false
	}
	c.score += add
	score := c.score
	patch := types.PlayerPatch{Score: &score}
	improved := c.record < distance
	if improved {
		c.record = distance
		record := c.record
		patch.Record = &record
	}
	if err := c.net.SetPlayer(patch); err != nil {
		c.log.Warn("score update failed", zap.Error(err))
	}
	return improved
}

// Close cancels whatever sequence is running and leaves the room.
func (c *Controller) Close() {
	c.cancel()
	c.sched.Close()
	if c.net.Connected() {
		_ = c.net.Disconnect()
	}
}

func (c *Controller) opening(y *task.Yielder) error {
	c.ui.Fade.FadeIn(c.cfg.FadeIn, White)
	if err := y.Delay(c.cfg.OpeningDelay); err != nil {
		return err
	}

	if _, err := task.Await(y, c.net.When(c.net.Joined)); err != nil {
		return c.fail(y, OutcomeRejected, fmt.Errorf("join: %w", err))
	}
	c.ensureWorld()

	n, err := slot.Assign(y, c.net, c.cfg.MaxPlayers, c.log)
	if err != nil {
		return c.fail(y, OutcomeRejected, err)
	}
	c.slot = n

	started, err := c.lobby(y)
	if errors.Is(err, room.ErrDisconnected) {
		return c.fail(y, OutcomeDisconnected, err)
	}
	if err != nil {
		return c.fail(y, OutcomeRejected, err)
	}
	if !started {
		return c.teardown(y, OutcomeCancelled)
	}

	pos := c.randomPoint(c.cfg.SpawnMin, c.cfg.SpawnMax)
	if _, err := c.world.SpawnLocal(c.ctx, pos, c.slot); err != nil {
		return c.fail(y, OutcomeRejected, err)
	}
	c.seedItems()

	c.ui.Message.Show("Let's ....", MessageOptions{})
	if err := y.Delay(c.cfg.MessageDelay); err != nil {
		return err
	}
	c.ui.Message.Show("Poi Poi !!!!", MessageOptions{})
	c.ui.Camera.SetDefaultFocus(c.net.Self())
	c.ui.Camera.ChangeInGameCamera()
	if err := y.Delay(c.cfg.MessageDelay); err != nil {
		return err
	}
	c.ui.Message.Hide()

	online := !c.net.Offline()
	taken := make(map[int]bool)
	for _, p := range c.net.Players() {
		if p.Ready {
			taken[p.Slot] = true
		}
	}
	for i := range c.cfg.MaxPlayers {
		if taken[i] {
			c.ui.Scores.Show(i, online)
		} else {
			c.ui.Scores.Hide(i)
		}
	}
	c.ui.Timer.Show()

	c.phase = PhaseActive
	c.log.Info("match started",
		zap.Int("slot", c.slot),
		zap.Bool("practice", c.net.Room().Practice),
		zap.Bool("offline", !online),
	)
	return nil
}

// lobby shows the roster and the control style picker until the match
// starts. It reports false if the participant backed out.
func (c *Controller) lobby(y *task.Yielder) (bool, error) {
	c.phase = PhaseLobby
	online := !c.net.Offline()
	if online {
		c.ui.Lobby.Show()
		defer c.ui.Lobby.Hide()
	}
	c.lastH = 0
	for !c.net.Room().MatchStarted {
		if !c.net.Connected() {
			c.ui.Message.Hide()
			return false, room.ErrDisconnected
		}
		if online {
			c.showRoster()
		}

		style := c.controls.ControlStyle()
		auth, isAuthority := c.net.Authority()
		c.ui.Message.Show(style.Help(), MessageOptions{
			Submit: isAuthority,
			Left:   numControlStyles > 1,
			Right:  numControlStyles > 1,
		})

		// act on edges of the axis, not on the held value
		h := c.controls.Horizontal()
		switch {
		case h < -0.5 && c.lastH >= -0.5:
			c.controls.SetControlStyle(style.Step(-1))
			c.ui.Cues.Pick()
		case h > 0.5 && c.lastH <= 0.5:
			c.controls.SetControlStyle(style.Step(1))
			c.ui.Cues.Pick()
		}
		c.lastH = h

		if c.controls.Cancel() {
			c.ui.Message.Hide()
			return false, nil
		}
		if isAuthority && c.controls.Submit() {
			if c.cfg.Practice {
				if err := auth.SetPractice(true); err != nil {
					return false, err
				}
			}
			if err := auth.StartMatch(); err != nil {
				return false, err
			}
			break
		}
		if err := y.Yield(); err != nil {
			return false, err
		}
	}
	c.ui.Message.Hide()
	return true, nil
}

func (c *Controller) showRoster() {
	bySlot := make(map[int]types.PlayerProps)
	for _, p := range c.net.Players() {
		if p.Ready && p.Slot != types.NoSlot {
			bySlot[p.Slot] = p
		}
	}
	for i := range c.cfg.MaxPlayers {
		if p, ok := bySlot[i]; ok {
			c.ui.Lobby.PlayerOn(i, p.ID == c.net.Self())
		} else {
			c.ui.Lobby.PlayerOff(i)
		}
	}
}

// seedItems has the authority place the match's items. Nobody else spawns.
func (c *Controller) seedItems() {
	auth, ok := c.net.Authority()
	if !ok || len(c.world.Ledger().IDs()) > 0 {
		return
	}
	for id := 1; id <= c.cfg.ItemCount; id++ {
		pos := c.randomPoint(c.cfg.ItemMin, c.cfg.ItemMax)
		mass := c.rng.Float64() * c.cfg.ItemMaxMass
		if err := auth.SpawnItem(id, pos, mass); err != nil {
			c.log.Warn("spawn item failed", zap.Int("item", id), zap.Error(err))
			return
		}
	}
}

func (c *Controller) randomPoint(lo, hi types.Vec2) types.Vec2 {
	return types.Vec2{
		X: lo.X + c.rng.Float64()*(hi.X-lo.X),
		Y: lo.Y + c.rng.Float64()*(hi.Y-lo.Y),
	}
}

func (c *Controller) ending(y *task.Yielder) error {
	for i := range c.cfg.MaxPlayers {
		c.ui.Scores.Hide(i)
	}
	c.ui.Timer.Hide()
	c.ui.Message.Show("Finish !!!!", MessageOptions{})
	c.ui.Camera.SetOutGameFocus(c.net.Self())
	c.ui.Camera.ChangeOutGameCamera()
	if err := y.Delay(c.cfg.FinishDelay); err != nil {
		return err
	}
	c.ui.Message.Hide()

	for _, r := range c.Results() {
		c.ui.Results.ShowPlayer(r)
	}
	c.ui.Results.Show()
	if err := y.Delay(c.cfg.ResultsDelay); err != nil {
		return err
	}
	if err := y.WaitUntil(c.controls.Submit); err != nil {
		return err
	}
	c.ui.Results.Hide()
	if err := y.Delay(c.cfg.HideDelay); err != nil {
		return err
	}
	c.ui.Fade.FadeOut(c.cfg.FadeOut, Black)
	if err := y.Delay(c.cfg.ClosingDelay); err != nil {
		return err
	}
	return c.teardown(y, OutcomeFinished)
}

func (c *Controller) fail(y *task.Yielder, outcome Outcome, err error) error {
	if y.Context().Err() != nil {
		return err
	}
	c.err = err
	c.log.Warn("session aborted", zap.Stringer("outcome", outcome), zap.Error(err))
	if terr := c.teardown(y, outcome); terr != nil {
		return terr
	}
	return err
}

// teardown leaves the room, waits for the disconnect to land and returns
// to the top menu.
func (c *Controller) teardown(y *task.Yielder, outcome Outcome) error {
	c.outcome = outcome
	if c.world != nil && c.world.Local() != nil {
		if err := c.world.DespawnLocal(); err != nil {
			c.log.Debug("despawn failed", zap.Error(err))
		}
	}
	if c.net.Connected() {
		if err := c.net.Disconnect(); err != nil {
			c.log.Debug("disconnect", zap.Error(err))
		}
	}
	if _, err := task.Await(y, c.net.When(func() bool { return !c.net.Connected() })); err != nil && !errors.Is(err, room.ErrDisconnected) {
		return err
	}
	c.phase = PhaseClosed
	c.log.Info("session closed", zap.Stringer("outcome", outcome))
	c.ui.Scenes.ReturnToTopMenu()
	return nil
}
