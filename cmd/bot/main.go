// Command bot runs headless participants against a room server, or alone
// in offline mode. Each bot plays a full session and its result is kept in
// the local records database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/DoyleJ11/poipoi-backend/internal/config"
	"github.com/DoyleJ11/poipoi-backend/internal/logging"
	"github.com/DoyleJ11/poipoi-backend/internal/relay"
	"github.com/DoyleJ11/poipoi-backend/internal/room"
	"github.com/DoyleJ11/poipoi-backend/internal/session"
	"github.com/DoyleJ11/poipoi-backend/internal/store"
	"github.com/DoyleJ11/poipoi-backend/internal/store/sqlite"
	"github.com/DoyleJ11/poipoi-backend/internal/ws"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type options struct {
	bots     int
	code     string
	offline  bool
	practice bool
	watch    bool
	seconds  int
}

func main() {
	var opts options
	flag.IntVar(&opts.bots, "n", 2, "number of bots to run")
	flag.StringVar(&opts.code, "code", "", "room to join; empty creates one")
	flag.BoolVar(&opts.offline, "offline", false, "play a single offline session")
	flag.BoolVar(&opts.practice, "practice", false, "start the match in practice mode")
	flag.BoolVar(&opts.watch, "watch", false, "follow the room's event stream on NATS instead of playing")
	flag.IntVar(&opts.seconds, "seconds", 0, "match length override in seconds")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts options) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.watch {
		return watch(ctx, cfg, opts.code, log)
	}

	records, err := sqlite.Open(cfg.RecordsPath)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, records.Close()) }()

	scfg := session.DefaultConfig()
	scfg.MaxPlayers = cfg.MaxPlayers
	scfg.MatchDuration = cfg.MatchDuration()
	if opts.seconds > 0 {
		scfg.MatchDuration = time.Duration(opts.seconds) * time.Second
	}
	scfg.Practice = opts.practice

	if opts.offline {
		net, err := room.Offline(ctx, "bot", log)
		if err != nil {
			return err
		}
		return play(ctx, scfg, cfg.TickInterval(), "offline", net, 1, records, log.With(zap.String("bot", "offline")))
	}

	code := opts.code
	if code == "" {
		code, err = createRoom(ctx, cfg.ServerURL)
		if err != nil {
			return err
		}
		log.Info("created room", zap.String("room", code))
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range opts.bots {
		name := fmt.Sprintf("bot-%d-%s", i, uuid.NewString()[:4])
		blog := log.With(zap.String("bot", name))
		// stagger joins so the first bot becomes the authority
		time.Sleep(100 * time.Millisecond)
		conn, err := ws.Dial(gctx, cfg.ServerURL, code, name, blog)
		if err != nil {
			return multierr.Append(fmt.Errorf("%s: %w", name, err), g.Wait())
		}
		net := room.NewReplica(conn, blog)
		g.Go(func() error {
			return play(gctx, scfg, cfg.TickInterval(), code, net, opts.bots, records, blog)
		})
	}
	return g.Wait()
}

func play(ctx context.Context, scfg session.Config, tick time.Duration, code string, net *room.Replica, expect int, records store.ResultStore, log *zap.Logger) error {
	controls := &session.ManualControls{}
	c := session.New(ctx, scfg, net, session.LoggingPresentation(log, nil), controls, log)
	defer c.Close()
	if err := c.Start(); err != nil {
		return err
	}
	b := newBrain(uint64(time.Now().UnixNano()), controls, expect)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	last := time.Now()
	var final types.PlayerProps
	for !c.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			b.think(c, net, dt)
			if c.Phase() == session.PhaseEnding {
				if p, ok := net.Local(); ok {
					final = p
				}
			}
			c.Tick(dt)
		}
	}

	log.Info("session over", zap.Stringer("outcome", c.Outcome()), zap.Int("score", c.Score()), zap.Float64("record", c.Record()))
	if c.Outcome() != session.OutcomeFinished || scfg.Practice {
		return c.Err()
	}
	return records.RecordMatch(ctx, store.Match{
		Room:    code,
		EndedAt: time.Now(),
		Results: []store.Result{{
			Participant: final.ID,
			Name:        final.Name,
			Slot:        final.Slot,
			Score:       c.Score(),
			Record:      c.Record(),
		}},
	})
}

// createRoom asks the server behind the websocket URL for a fresh room.
func createRoom(ctx context.Context, serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "ws", "http", 1)
	u.Path = "/rooms"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create room: unexpected status %s", resp.Status)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode room code: %w", err)
	}
	return body.Code, nil
}

func watch(ctx context.Context, cfg config.Config, code string, log *zap.Logger) error {
	if code == "" {
		return errors.New("-watch needs -code")
	}
	if cfg.NATSURL == "" {
		return errors.New("-watch needs POIPOI_NATS_URL")
	}
	nc, err := relay.Connect(cfg.NATSURL, log)
	if err != nil {
		return err
	}
	defer nc.Close()

	sub, err := relay.Follow(nc, code, func(f types.Frame) {
		log.Info("event",
			zap.Uint64("seq", f.Seq),
			zap.String("participant", f.From),
			zap.String("kind", string(f.Event.Kind)),
			zap.Int("item", f.Event.ItemID),
		)
	}, log)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}
