// Package botsession implements the headless peer spawned on demand when a
// human requests a bot opponent. It speaks the same command-queue protocol
// as a human session but never touches a network transport.
package botsession

import (
	"crypto/rand"
	"log/slog"
	"math/big"

	"rps-duel-server/game"
	"rps-duel-server/judge"
)

const botName = "Bot"

// legalMoves are the gestures a bot is allowed to choose between; PASS is
// never chosen deliberately.
var legalMoves = []game.Gesture{game.ROCK, game.PAPER, game.SCISSORS}

// Spawn creates a bot participant affiliated to the given human and starts
// its session loop in a new goroutine. It returns immediately with the
// bot's Participant so the caller (the matchmaker) can pair it right away.
func Spawn(affiliation *game.Participant, j *judge.Judge, queueDepth int) *game.Participant {
	uid, err := game.GenerateUID()
	if err != nil {
		// UID generation only fails if the system's randomness source is
		// broken, which is unrecoverable for the whole server, not just
		// this bot.
		panic("botsession: failed to generate uid: " + err.Error())
	}
	p := game.NewParticipant(uid, botName, affiliation, queueDepth)
	go run(p, j)
	return p
}

func run(p *game.Participant, j *judge.Judge) {
	defer p.MarkDropped()

	for cmd := range p.Commands() {
		switch cmd.Type {
		case game.CmdTerminate:
			return
		case game.CmdMatch:
			playGame(p, j)
			return
		default:
			slog.Warn("bot received unexpected command while idle", "tag", "bot", "uid", p.UID, "command", cmd.Type.String())
		}
	}
}

func playGame(p *game.Participant, j *judge.Judge) {
	g := p.Game()
	for {
		move, err := randomGesture()
		if err != nil {
			slog.Warn("bot failed to generate a random gesture, passing", "tag", "bot", "uid", p.UID, "err", err)
			move = game.PASS
		}
		j.Submit(game.Submission{Participant: p, Kind: game.SubmissionMove, Move: move})

		cmd, ok := <-p.Commands()
		if !ok {
			return
		}
		switch cmd.Type {
		case game.CmdEndGame:
			return
		case game.CmdEndTurn:
			if g.Over() {
				return
			}
		default:
			slog.Warn("bot received unexpected command mid-game", "tag", "bot", "uid", p.UID, "command", cmd.Type.String())
		}
	}
}

// randomGesture picks uniformly among ROCK, PAPER, and SCISSORS using a
// cryptographically strong source, per the no-predictable-bots requirement.
func randomGesture() (game.Gesture, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(legalMoves))))
	if err != nil {
		return game.PASS, err
	}
	return legalMoves[n.Int64()], nil
}
