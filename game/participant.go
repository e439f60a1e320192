package game

import (
	"log/slog"
	"sync"
)

// DefaultCommandQueueDepth is used when a caller doesn't specify one.
const DefaultCommandQueueDepth = 8

// Participant is one side of a duel: a human session or a bot. UIDs are the
// sole identity; two participants are equal iff their UIDs match.
type Participant struct {
	UID         string
	Name        string
	Affiliation *Participant // the human a bot was spawned for; nil for humans

	commands chan Command

	mu       sync.RWMutex
	opponent *Participant
	g        *Game
	dropped  bool
}

// NewParticipant creates a participant with a fresh bounded-loss command
// queue of the given depth.
func NewParticipant(uid, name string, affiliation *Participant, queueDepth int) *Participant {
	if queueDepth <= 0 {
		queueDepth = DefaultCommandQueueDepth
	}
	return &Participant{
		UID:         uid,
		Name:        name,
		Affiliation: affiliation,
		commands:    make(chan Command, queueDepth),
	}
}

// Commands returns the participant's command queue for receive-side use.
func (p *Participant) Commands() <-chan Command {
	return p.commands
}

// Post enqueues a command without blocking. If the queue is full the command
// is dropped and logged — the queue is bounded-loss by design (spec §3).
func (p *Participant) Post(cmd Command) {
	select {
	case p.commands <- cmd:
	default:
		slog.Warn("command queue full, dropping command", "tag", "participant", "uid", p.UID, "command", cmd.Type.String())
	}
}

// Equal reports whether two participants share a UID. A nil receiver or
// argument is never equal to anything.
func (p *Participant) Equal(other *Participant) bool {
	if p == nil || other == nil {
		return false
	}
	return p.UID == other.UID
}

// MarkDropped sets the dropped flag. Safe to call more than once; only the
// first call has any effect the judge can observe a race on.
func (p *Participant) MarkDropped() {
	p.mu.Lock()
	p.dropped = true
	p.mu.Unlock()
}

// Dropped reports whether the participant's session has torn down.
func (p *Participant) Dropped() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dropped
}

// Pair records this participant's opponent and shared game. Called only by
// the matchmaker at pairing time.
func (p *Participant) Pair(opponent *Participant, g *Game) {
	p.mu.Lock()
	p.opponent = opponent
	p.g = g
	p.mu.Unlock()
}

// Unpair clears the opponent/game references. Called by the session once it
// observes the game's terminal state.
func (p *Participant) Unpair() {
	p.mu.Lock()
	p.opponent = nil
	p.g = nil
	p.mu.Unlock()
}

// Opponent returns the current opponent, or nil if unpaired.
func (p *Participant) Opponent() *Participant {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.opponent
}

// Game returns the current shared game, or nil if unpaired.
func (p *Participant) Game() *Game {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.g
}
