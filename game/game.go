package game

import "fmt"

// Terminator records how a finished game ended when it wasn't decided purely
// by score.
type Terminator int

const (
	// TerminatorNone means the game ended on score alone.
	TerminatorNone Terminator = iota
	// TerminatorLeave means a participant left the game, by quitting or by
	// losing its connection.
	TerminatorLeave
	// TerminatorSurrender means a participant surrendered.
	TerminatorSurrender
)

// String renders the wire protocol's terminator reason, or "" for a clean
// score win.
func (t Terminator) String() string {
	switch t {
	case TerminatorLeave:
		return "leave"
	case TerminatorSurrender:
		return "surrender"
	default:
		return ""
	}
}

// TurnRecord is the resolved outcome of one turn: the gesture each side
// submitted, the running score after it, and the winner of that single
// turn (nil on a draw) — distinct from Game.Winner, which is only set once
// the match itself is decided.
type TurnRecord struct {
	Move1, Move2   Gesture
	Score1, Score2 int
	Winner         *Participant
}

// Game is a single duel between two participants. Every field after
// creation is written only by the judge goroutine (score, turns, winner and
// terminator), so Game itself holds no lock; callers that share a Game
// across goroutines must serialize through the judge.
type Game struct {
	User1, User2 *Participant

	Score1, Score2 int
	Turns          []TurnRecord

	Winner     *Participant
	Terminator Terminator
}

// NewGame starts a fresh scoreless game between two participants.
func NewGame(user1, user2 *Participant) *Game {
	return &Game{User1: user1, User2: user2}
}

// Other returns the participant on the opposite side of the game from p. It
// panics if p is not one of the game's two participants — a programmer
// error, per the invariant that Other is only ever called with a known side.
func (g *Game) Other(p *Participant) *Participant {
	switch {
	case p.Equal(g.User1):
		return g.User2
	case p.Equal(g.User2):
		return g.User1
	default:
		panic(fmt.Sprintf("game: participant %s is not part of this game", p.UID))
	}
}

// Over reports whether the game has reached a terminal state, either by
// score or by an explicit terminator.
func (g *Game) Over() bool {
	return g.Winner != nil || g.Terminator != TerminatorNone
}

// Turn resolves one turn given both participants' moves, updates the running
// score, appends a TurnRecord, and sets Winner if the win condition is now
// met. The win condition is score >= max(10, otherScore+2); PASS always
// loses to any real gesture and draws against itself, in which case neither
// score advances.
func (g *Game) Turn(move1, move2 Gesture) TurnRecord {
	if move1 < ROCK || move1 > PASS || move2 < ROCK || move2 > PASS {
		panic("game: Turn called with a move outside the known gesture set")
	}

	var turnWinner *Participant
	switch {
	case move1.Beats(move2):
		g.Score1++
		turnWinner = g.User1
	case move2.Beats(move1):
		g.Score2++
		turnWinner = g.User2
	}

	rec := TurnRecord{Move1: move1, Move2: move2, Score1: g.Score1, Score2: g.Score2, Winner: turnWinner}
	g.Turns = append(g.Turns, rec)

	if g.Score1 >= max(10, g.Score2+2) {
		g.Winner = g.User1
	} else if g.Score2 >= max(10, g.Score1+2) {
		g.Winner = g.User2
	}

	return rec
}

// End force-terminates the game for a reason other than score, recording the
// winner (nil for a mutual leave) and the terminator.
func (g *Game) End(winner *Participant, terminator Terminator) {
	g.Winner = winner
	g.Terminator = terminator
}
