// Package judge implements the single serial arbiter that resolves turns
// for every in-progress game. There is exactly one Judge per server; it owns
// all mutation of Game state so callers never need to lock a Game directly.
package judge

import (
	"context"
	"log/slog"

	"rps-duel-server/game"
	"rps-duel-server/queue"
)

// Judge pairs up mutual submissions for each game and resolves turns as
// they complete.
type Judge struct {
	intake *queue.Unbounded[game.Submission]
}

// New returns a Judge with an empty intake.
func New() *Judge {
	return &Judge{intake: queue.New[game.Submission]()}
}

// Submit enqueues one participant's move or special token. It never blocks.
func (j *Judge) Submit(sub game.Submission) {
	j.intake.Push(sub)
}

// Run drains the intake until ctx is done, resolving turns and games as
// mutual submissions complete. It is meant to run in its own goroutine for
// the lifetime of the server.
func (j *Judge) Run(ctx context.Context) {
	outstanding := map[string]game.Submission{}

	for {
		sub, ok := j.intake.Pop(ctx)
		if !ok {
			return
		}
		j.resolve(outstanding, sub)
	}
}

func (j *Judge) resolve(outstanding map[string]game.Submission, sub game.Submission) {
	submitter := sub.Participant

	if submitter.Dropped() {
		slog.Warn("submission from dropped participant", "tag", "judge", "uid", submitter.UID)
		return
	}

	opponent := submitter.Opponent()
	if opponent == nil {
		slog.Warn("submission from unpaired participant", "tag", "judge", "uid", submitter.UID)
		return
	}

	g := submitter.Game()

	if opponent.Dropped() {
		delete(outstanding, opponent.UID)
		g.End(submitter, game.TerminatorLeave)
		submitter.Post(game.Command{Type: game.CmdEndGame})
		return
	}

	other, ok := outstanding[opponent.UID]
	if !ok {
		outstanding[submitter.UID] = sub
		return
	}
	delete(outstanding, opponent.UID)

	sub1, sub2 := sub, other
	if !submitter.Equal(g.User1) {
		sub1, sub2 = sub2, sub1
	}
	u1, u2 := g.User1, g.User2

	switch {
	case sub1.Kind != game.SubmissionMove:
		g.End(u2, sub1.Kind.Terminator())
		u2.Post(game.Command{Type: game.CmdEndGame})
	case sub2.Kind != game.SubmissionMove:
		g.End(u1, sub2.Kind.Terminator())
		u1.Post(game.Command{Type: game.CmdEndGame})
	default:
		// A clean score win is reported through endturn too: the session
		// inspects the shared Game directly and notices Winner is set, the
		// same way the judge's own caller would. endgame is reserved for
		// the special-token paths above and the dropped-opponent path.
		g.Turn(sub1.Move, sub2.Move)
		u1.Post(game.Command{Type: game.CmdEndTurn})
		u2.Post(game.Command{Type: game.CmdEndTurn})
	}
}
