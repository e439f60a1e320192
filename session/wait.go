package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"rps-duel-server/game"
	"rps-duel-server/protocol"
	"rps-duel-server/transport"
)

// waitForMessage reads client frames from ch until one with action==expected
// passes validate, one of interrupters arrives, deadline elapses (zero
// means no deadline), or the channel closes. Malformed or mismatched
// frames are logged and skipped, mirroring the original service's
// wait_for_message.
func waitForMessage(ctx context.Context, ch transport.Channel, deadline time.Time, uid, expected string, interrupters map[string]bool, validate func(protocol.Envelope) bool) (protocol.Envelope, outcome) {
	rctx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		rctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	for {
		data, err := ch.Recv(rctx)
		if err != nil {
			if ctx.Err() == nil && rctx.Err() != nil {
				slog.Warn("expected message timed out", "tag", "session", "uid", uid, "action", expected)
				return protocol.Envelope{}, outcomeTimeout
			}
			slog.Warn("connection closed", "tag", "session", "uid", uid)
			return protocol.Envelope{}, outcomeClosed
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("cannot decode message as JSON", "tag", "session", "uid", uid)
			continue
		}

		if interrupters[env.Action] {
			slog.Warn("interrupted while waiting", "tag", "session", "uid", uid, "expected", expected, "got", env.Action)
			return env, outcomeInterrupted
		}

		if env.Action != expected {
			slog.Warn("unexpected action, ignored", "tag", "session", "uid", uid, "expected", expected, "got", env.Action)
			continue
		}

		if validate != nil && !validate(env) {
			slog.Warn("message failed validity check, ignored", "tag", "session", "uid", uid, "action", expected)
			continue
		}

		return env, outcomeOK
	}
}

// waitForCommand reads commands from p's queue until one of type expected
// arrives, one of interrupters arrives, deadline elapses (zero means no
// deadline), or the queue closes.
func waitForCommand(ctx context.Context, p *game.Participant, deadline time.Time, expected game.CommandType, interrupters map[game.CommandType]bool) (game.Command, outcome) {
	var timeoutCh <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for {
		select {
		case cmd, ok := <-p.Commands():
			if !ok {
				return game.Command{}, outcomeClosed
			}
			if interrupters[cmd.Type] {
				return cmd, outcomeInterrupted
			}
			if cmd.Type != expected {
				slog.Warn("unexpected command, ignored", "tag", "session", "uid", p.UID, "expected", expected.String(), "got", cmd.Type.String())
				continue
			}
			return cmd, outcomeOK
		case <-timeoutCh:
			slog.Warn("expected command timed out", "tag", "session", "uid", p.UID, "expected", expected.String())
			return game.Command{}, outcomeTimeout
		case <-ctx.Done():
			return game.Command{}, outcomeClosed
		}
	}
}
