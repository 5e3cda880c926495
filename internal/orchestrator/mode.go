package orchestrator

import (
	"github.com/chessmate-desktop/enginecore/internal/domain"
	"github.com/chessmate-desktop/enginecore/internal/style"
	"github.com/chessmate-desktop/enginecore/internal/uci"
)

type ModeKind string

const (
	ModeFree             ModeKind = "free"
	ModeHumanVsEngine    ModeKind = "human-vs-engine"
	ModeHumanVsProfile   ModeKind = "human-vs-profile"
	ModeHumanVsHuman     ModeKind = "human-vs-human"
	ModeEngineVsEngine   ModeKind = "engine-vs-engine"
	ModeProfileVsProfile ModeKind = "profile-vs-profile"
	ModeProfileVsEngine  ModeKind = "profile-vs-engine"
)

type Participant string

const (
	ParticipantHuman     Participant = "human"
	ParticipantPrimary   Participant = "primary"
	ParticipantSecondary Participant = "secondary"
)

// Seat is one side of the board: either a human or a pool role with the
// engine configuration (and optional profile policy) that drives it.
type Seat struct {
	Human   bool
	Role    domain.Role
	Config  uci.EngineConfig
	Profile *style.Profile
}

func humanSeat() Seat { return Seat{Human: true} }

func (s Seat) participant() Participant {
	if s.Human {
		return ParticipantHuman
	}
	if s.Role == domain.RoleSecondary {
		return ParticipantSecondary
	}
	return ParticipantPrimary
}

// PlayMode fixes, for the lifetime of one game, which participant owns
// each color. Built only through the constructors below so that illegal
// mode/participant combinations cannot be represented.
type PlayMode struct {
	Kind  ModeKind
	White Seat
	Black Seat
}

func (m PlayMode) seatFor(c domain.Color) Seat {
	if c == domain.White {
		return m.White
	}
	return m.Black
}

// HasEngines reports whether any seat is backed by a session.
func (m PlayMode) HasEngines() bool {
	return !m.White.Human || !m.Black.Human
}

func FreeMode() PlayMode {
	return PlayMode{Kind: ModeFree, White: humanSeat(), Black: humanSeat()}
}

func HumanVsHuman() PlayMode {
	return PlayMode{Kind: ModeHumanVsHuman, White: humanSeat(), Black: humanSeat()}
}

// HumanVsEngine seats the human on humanColor, the engine opposite.
func HumanVsEngine(cfg uci.EngineConfig, humanColor domain.Color) PlayMode {
	engine := Seat{Role: domain.RolePrimary, Config: cfg}
	return splitSeats(ModeHumanVsEngine, humanColor, humanSeat(), engine)
}

// HumanVsProfile seats the human on humanColor and a profile-driven
// engine opposite.
func HumanVsProfile(binaryPath string, profile style.Profile, humanColor domain.Color) PlayMode {
	avatar := Seat{Role: domain.RolePrimary, Config: profile.EngineOptions(binaryPath), Profile: &profile}
	return splitSeats(ModeHumanVsProfile, humanColor, humanSeat(), avatar)
}

// EngineVsEngine: white is always the primary role, black the secondary.
func EngineVsEngine(whiteCfg, blackCfg uci.EngineConfig) PlayMode {
	return PlayMode{
		Kind:  ModeEngineVsEngine,
		White: Seat{Role: domain.RolePrimary, Config: whiteCfg},
		Black: Seat{Role: domain.RoleSecondary, Config: blackCfg},
	}
}

// ProfileVsProfile: white is always the primary role, black the secondary.
func ProfileVsProfile(binaryPath string, white, black style.Profile) PlayMode {
	return PlayMode{
		Kind:  ModeProfileVsProfile,
		White: Seat{Role: domain.RolePrimary, Config: white.EngineOptions(binaryPath), Profile: &white},
		Black: Seat{Role: domain.RoleSecondary, Config: black.EngineOptions(binaryPath), Profile: &black},
	}
}

// ProfileVsEngine fixes the profile on profileColor for the whole game.
// The white seat holds the primary role regardless of which side the
// profile plays.
func ProfileVsEngine(binaryPath string, profile style.Profile, profileColor domain.Color, engineCfg uci.EngineConfig) PlayMode {
	avatar := Seat{Config: profile.EngineOptions(binaryPath), Profile: &profile}
	engine := Seat{Config: engineCfg}
	mode := splitSeats(ModeProfileVsEngine, profileColor, avatar, engine)
	mode.White.Role = domain.RolePrimary
	mode.Black.Role = domain.RoleSecondary
	return mode
}

// splitSeats places `at` on color c and `other` opposite.
func splitSeats(kind ModeKind, c domain.Color, at, other Seat) PlayMode {
	if c == domain.White {
		return PlayMode{Kind: kind, White: at, Black: other}
	}
	return PlayMode{Kind: kind, White: other, Black: at}
}
