// Package matchmaker implements the singleton coordinator that pairs
// waiting participants against each other, live-checking the incumbent
// before committing a pairing.
package matchmaker

import (
	"context"
	"log/slog"
	"time"

	"rps-duel-server/botsession"
	"rps-duel-server/game"
	"rps-duel-server/judge"
	"rps-duel-server/queue"
)

// Matchmaker holds at most one waiting participant and pairs the next
// arrival against it, live-checking the waiting side first.
type Matchmaker struct {
	intake    *queue.Unbounded[game.PairRequest]
	livecheck *queue.Unbounded[game.LiveCheckResponse]

	judge *judge.Judge

	liveCheckDeadline time.Duration
	commandQueueDepth int
}

// New returns a Matchmaker with an empty intake, ready to pair against j.
func New(j *judge.Judge, liveCheckDeadline time.Duration, commandQueueDepth int) *Matchmaker {
	return &Matchmaker{
		intake:            queue.New[game.PairRequest](),
		livecheck:         queue.New[game.LiveCheckResponse](),
		judge:             j,
		liveCheckDeadline: liveCheckDeadline,
		commandQueueDepth: commandQueueDepth,
	}
}

// Enqueue publishes a pair request. It never blocks.
func (m *Matchmaker) Enqueue(req game.PairRequest) {
	m.intake.Push(req)
}

// ReportLiveCheck publishes a waiting session's answer to a livecheck
// command. It never blocks.
func (m *Matchmaker) ReportLiveCheck(resp game.LiveCheckResponse) {
	m.livecheck.Push(resp)
}

// Run drains the intake until ctx is done, pairing participants as they
// arrive. It is meant to run in its own goroutine for the lifetime of the
// server.
func (m *Matchmaker) Run(ctx context.Context) {
	var waiting *game.Participant
	var onHold *game.Participant
	onHoldSet := false

	for {
		if waiting != nil && waiting.Affiliation != nil {
			waiting.Post(game.Command{Type: game.CmdTerminate})
			waiting = nil
		}

		req, ok := m.intake.Pop(ctx)
		if !ok {
			return
		}
		newUser := req.Participant

		onHold = nil
		onHoldSet = false
		if req.WantBot {
			if waiting != nil {
				onHold = waiting
				onHoldSet = true
			}
			waiting = newUser
			newUser = botsession.Spawn(req.Participant, m.judge, m.commandQueueDepth)
		}

		switch {
		case waiting != nil:
			w := waiting
			w.Post(game.Command{Type: game.CmdLiveCheck})
			if m.awaitLiveCheck(ctx, w) {
				m.commit(w, newUser)
				waiting = nil
			} else if onHoldSet {
				// w was itself a fresh bot-requester just placed into the
				// waiting slot; its liveness check failed, and the bot
				// spawned for it is about to be displaced by the restored
				// on-hold participant below without ever pairing. Without
				// this it never gets posted CmdTerminate and its session
				// goroutine leaks forever blocked on its command queue.
				if newUser.Affiliation != nil {
					newUser.Post(game.Command{Type: game.CmdTerminate})
				}
			} else {
				waiting = newUser
			}
		default:
			waiting = newUser
		}

		if onHoldSet {
			waiting = onHold
		}
	}
}

func (m *Matchmaker) commit(a, b *game.Participant) {
	g := game.NewGame(a, b)
	a.Pair(b, g)
	b.Pair(a, g)
	a.Post(game.Command{Type: game.CmdMatch, Opponent: b, Game: g})
	b.Post(game.Command{Type: game.CmdMatch, Opponent: a, Game: g})
	slog.Info("match made", "tag", "matchmaker", "uid1", a.UID, "uid2", b.UID)
}

// awaitLiveCheck waits up to the configured deadline for a livecheck
// response from w specifically, ignoring (and logging) stray responses for
// any other participant.
func (m *Matchmaker) awaitLiveCheck(ctx context.Context, w *game.Participant) bool {
	cctx, cancel := context.WithTimeout(ctx, m.liveCheckDeadline)
	defer cancel()

	for {
		resp, ok := m.livecheck.Pop(cctx)
		if !ok {
			return false
		}
		if !resp.Participant.Equal(w) {
			slog.Warn("ignoring livecheck response for unexpected participant", "tag", "matchmaker", "uid", resp.Participant.UID, "expected", w.UID)
			continue
		}
		return resp.Live
	}
}
