package session

import (
	"time"

	"go.uber.org/zap"
)

type Color struct{ R, G, B float64 }

var (
	White = Color{1, 1, 1}
	Black = Color{0, 0, 0}
)

type Timer interface {
	// SetTime shows seconds left; negative means the clock is frozen.
	SetTime(seconds float64)
	Show()
	Hide()
}

type MessageOptions struct {
	Submit bool // show the start prompt
	Left   bool
	Right  bool
}

type MessageBoard interface {
	Show(text string, opts MessageOptions)
	Hide()
}

type LobbyRoster interface {
	Show()
	Hide()
	PlayerOn(slot int, local bool)
	PlayerOff(slot int)
}

type Fade interface {
	FadeIn(d time.Duration, c Color)
	FadeOut(d time.Duration, c Color)
}

type ResultBoard interface {
	ShowPlayer(r Result)
	Show()
	Hide()
}

type Scoreboard interface {
	Show(slot int, online bool)
	Hide(slot int)
	SetScore(slot, score int)
}

type Camera interface {
	SetDefaultFocus(participant string)
	ChangeInGameCamera()
	SetOutGameFocus(participant string)
	ChangeOutGameCamera()
}

type Cues interface {
	Pick()
}

type Scenes interface {
	ReturnToTopMenu()
}

// Presentation bundles the widgets the controller drives. Each is owned by
// the caller and lives as long as the controller.
type Presentation struct {
	Timer   Timer
	Message MessageBoard
	Lobby   LobbyRoster
	Fade    Fade
	Results ResultBoard
	Scores  Scoreboard
	Camera  Camera
	Cues    Cues
	Scenes  Scenes
}

type nop struct{}

func (nop) SetTime(float64)              {}
func (nop) Show()                        {}
func (nop) Hide()                        {}
func (nop) PlayerOn(int, bool)           {}
func (nop) PlayerOff(int)                {}
func (nop) FadeIn(time.Duration, Color)  {}
func (nop) FadeOut(time.Duration, Color) {}
func (nop) ShowPlayer(Result)            {}
func (nop) SetDefaultFocus(string)       {}
func (nop) ChangeInGameCamera()          {}
func (nop) SetOutGameFocus(string)       {}
func (nop) ChangeOutGameCamera()         {}
func (nop) Pick()                        {}
func (nop) ReturnToTopMenu()             {}

type nopMessages struct{ nop }

func (nopMessages) Show(string, MessageOptions) {}

type nopScores struct{}

func (nopScores) Show(int, bool)    {}
func (nopScores) Hide(int)          {}
func (nopScores) SetScore(int, int) {}

func NopPresentation() Presentation {
	return Presentation{
		Timer:   nop{},
		Message: nopMessages{},
		Lobby:   nop{},
		Fade:    nop{},
		Results: nop{},
		Scores:  nopScores{},
		Camera:  nop{},
		Cues:    nop{},
		Scenes:  nop{},
	}
}

// withDefaults fills unset widgets with no-ops.
func (p Presentation) withDefaults() Presentation {
	d := NopPresentation()
	if p.Timer == nil {
		p.Timer = d.Timer
	}
	if p.Message == nil {
		p.Message = d.Message
	}
	if p.Lobby == nil {
		p.Lobby = d.Lobby
	}
	if p.Fade == nil {
		p.Fade = d.Fade
	}
	if p.Results == nil {
		p.Results = d.Results
	}
	if p.Scores == nil {
		p.Scores = d.Scores
	}
	if p.Camera == nil {
		p.Camera = d.Camera
	}
	if p.Cues == nil {
		p.Cues = d.Cues
	}
	if p.Scenes == nil {
		p.Scenes = d.Scenes
	}
	return p
}

// LoggingPresentation renders every widget call as a log line. Headless
// clients use it in place of a UI.
func LoggingPresentation(log *zap.Logger, onTopMenu func()) Presentation {
	l := &logUI{log: log.Named("ui"), onTopMenu: onTopMenu}
	return Presentation{
		Timer:   logTimer{l},
		Message: logMessages{l},
		Lobby:   logLobby{l},
		Fade:    logFade{l},
		Results: logResults{l},
		Scores:  logScores{l},
		Camera:  logCamera{l},
		Cues:    logCues{l},
		Scenes:  logScenes{l},
	}
}

type logUI struct {
	log       *zap.Logger
	onTopMenu func()
	lastTime  int
}

type logTimer struct{ *logUI }

func (l logTimer) SetTime(seconds float64) {
	// one line per whole second
	if s := int(seconds); s != l.lastTime {
		l.lastTime = s
		l.log.Debug("timer", zap.Float64("seconds", seconds))
	}
}
func (l logTimer) Show() { l.log.Debug("timer shown") }
func (l logTimer) Hide() { l.log.Debug("timer hidden") }

type logMessages struct{ *logUI }

func (l logMessages) Show(text string, opts MessageOptions) {
	l.log.Debug("message", zap.String("text", text), zap.Bool("submit", opts.Submit))
}
func (l logMessages) Hide() {}

type logLobby struct{ *logUI }

func (l logLobby) Show()                         { l.log.Info("lobby shown") }
func (l logLobby) Hide()                         { l.log.Info("lobby hidden") }
func (l logLobby) PlayerOn(slot int, local bool) {}
func (l logLobby) PlayerOff(slot int)            {}

type logFade struct{ *logUI }

func (l logFade) FadeIn(d time.Duration, c Color) {
	l.log.Debug("fade in", zap.Duration("duration", d))
}
func (l logFade) FadeOut(d time.Duration, c Color) {
	l.log.Debug("fade out", zap.Duration("duration", d))
}

type logResults struct{ *logUI }

func (l logResults) ShowPlayer(r Result) {
	l.log.Info("result",
		zap.Int("slot", r.Slot),
		zap.String("participant", r.Participant),
		zap.Int("score", r.Score),
		zap.Float64("record", r.Record),
		zap.Bool("you", r.You),
		zap.Bool("winner", r.Winner),
		zap.Bool("longest", r.Longest),
	)
}
func (l logResults) Show() {}
func (l logResults) Hide() {}

type logScores struct{ *logUI }

func (l logScores) Show(slot int, online bool) { l.log.Debug("scoreboard shown", zap.Int("slot", slot)) }
func (l logScores) Hide(slot int)              {}
func (l logScores) SetScore(slot, score int)   {}

type logCamera struct{ *logUI }

func (l logCamera) SetDefaultFocus(participant string) {}
func (l logCamera) ChangeInGameCamera()                { l.log.Debug("in-game camera") }
func (l logCamera) SetOutGameFocus(participant string) {}
func (l logCamera) ChangeOutGameCamera()               { l.log.Debug("out-game camera") }

type logCues struct{ *logUI }

func (l logCues) Pick() {}

type logScenes struct{ *logUI }

func (l logScenes) ReturnToTopMenu() {
	l.log.Info("return to top menu")
	if l.onTopMenu != nil {
		l.onTopMenu()
	}
}
