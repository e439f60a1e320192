// Package session drives one human connection through its lifecycle:
// logon, waiting for an opponent, and playing games to completion.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"rps-duel-server/game"
	"rps-duel-server/judge"
	"rps-duel-server/matchmaker"
	"rps-duel-server/protocol"
	"rps-duel-server/transport"
)

// Config holds the timings a session needs; it is a narrow view of the
// server's full configuration.
type Config struct {
	MoveDeadline      time.Duration
	TurnPause         time.Duration
	EndGamePause      time.Duration
	SessionGrace      time.Duration
	MaxNameBytes      int
	CommandQueueDepth int
}

var moveInterrupters = map[string]bool{
	protocol.ActionSurrender: true,
	protocol.ActionQuit:      true,
}

// Session owns one client connection for its entire lifetime.
type Session struct {
	ch  transport.Channel
	mm  *matchmaker.Matchmaker
	j   *judge.Judge
	cfg Config
}

// New returns a Session ready to Run over ch.
func New(ch transport.Channel, mm *matchmaker.Matchmaker, j *judge.Judge, cfg Config) *Session {
	return &Session{ch: ch, mm: mm, j: j, cfg: cfg}
}

// Run drives the session to completion: logon, then WaitOpponent/PlayGame
// cycles until the client leaves or the connection dies. It blocks until
// the session ends and is meant to be called from its own goroutine (one
// per accepted connection).
func (s *Session) Run(ctx context.Context) {
	p, ok := s.logon(ctx)
	if !ok {
		return
	}
	defer s.cleanup(p)

	for {
		them, g, ok := s.waitForOpponent(ctx, p)
		if !ok {
			return
		}
		if !s.playGame(ctx, p, them, g) {
			return
		}
	}
}

func (s *Session) logon(ctx context.Context) (*game.Participant, bool) {
	uid, err := game.GenerateUID()
	if err != nil {
		slog.Error("failed to generate uid", "tag", "session", "err", err)
		return nil, false
	}

	env, res := waitForMessage(ctx, s.ch, time.Time{}, uid, protocol.ActionLogon, nil, func(e protocol.Envelope) bool {
		var msg protocol.Logon
		if err := json.Unmarshal(e.Raw, &msg); err != nil {
			return false
		}
		return msg.Name != ""
	})
	if res != outcomeOK {
		return nil, false
	}

	var msg protocol.Logon
	_ = json.Unmarshal(env.Raw, &msg)
	name := game.TruncateName(msg.Name, s.cfg.MaxNameBytes)

	p := game.NewParticipant(uid, name, nil, s.cfg.CommandQueueDepth)
	slog.Info("user logged on", "tag", "session", "uid", uid, "name", name)
	return p, true
}

// waitForOpponent blocks until the client stands by, is paired, and
// returns the opponent and shared game. It returns ok=false if the
// connection dies or the session should exit instead of playing again.
func (s *Session) waitForOpponent(ctx context.Context, p *game.Participant) (*game.Participant, *game.Game, bool) {
	_, res := waitForMessage(ctx, s.ch, time.Time{}, p.UID, protocol.ActionStandby, nil, nil)
	if res != outcomeOK {
		return nil, nil, false
	}

	s.mm.Enqueue(game.PairRequest{Participant: p})

	botCtx, stopBotListener := context.WithCancel(ctx)
	defer stopBotListener()
	go s.listenForBotRequest(botCtx, p)

	interrupters := map[game.CommandType]bool{game.CmdLiveCheck: true}
	for {
		cmd, res := waitForCommand(ctx, p, time.Time{}, game.CmdMatch, interrupters)
		switch res {
		case outcomeOK:
			return cmd.Opponent, cmd.Game, true
		case outcomeInterrupted:
			if !s.handleLiveCheck(ctx, p) {
				return nil, nil, false
			}
		default:
			return nil, nil, false
		}
	}
}

func (s *Session) handleLiveCheck(ctx context.Context, p *game.Participant) bool {
	if err := s.ch.Ping(ctx); err != nil {
		s.mm.ReportLiveCheck(game.LiveCheckResponse{Participant: p, Live: false})
		return false
	}
	s.mm.ReportLiveCheck(game.LiveCheckResponse{Participant: p, Live: true})
	return true
}

// listenForBotRequest waits, without a deadline, for an optional
// bot_request frame while the session is otherwise blocked on its command
// queue. ctx is canceled by the caller once the participant is matched.
func (s *Session) listenForBotRequest(ctx context.Context, p *game.Participant) {
	_, res := waitForMessage(ctx, s.ch, time.Time{}, p.UID, protocol.ActionBotRequest, nil, nil)
	if res == outcomeOK {
		s.mm.Enqueue(game.PairRequest{Participant: p, WantBot: true})
	}
}

// turnResult classifies how one pass through the per-turn loop ended.
type turnResult int

const (
	// turnContinue means a turn resolved normally: check for a game-over
	// condition, otherwise pause and read the next move.
	turnContinue turnResult = iota
	// turnSurrendered means the sender surrendered and the judge will
	// never reply to them directly; PlayGame exits to WaitOpponent without
	// reporting anything further on this connection.
	turnSurrendered
	// turnSessionOver means the session itself must end (connection
	// dropped or the client quit).
	turnSessionOver
)

// playGame runs one game to completion. It returns true if the session
// should loop back to WaitOpponent, false if it should exit entirely.
func (s *Session) playGame(ctx context.Context, me, them *game.Participant, g *game.Game) bool {
	if err := s.send(ctx, protocol.MatchMsg{Action: protocol.ActionMatch, Opponent: them.Name}); err != nil {
		s.j.Submit(game.Submission{Participant: me, Kind: game.SubmissionLeave})
		return false
	}

	for {
		switch s.playTurn(ctx, me, them, g) {
		case turnSessionOver:
			return false
		case turnSurrendered:
			return true
		case turnContinue:
			if g.Over() {
				return s.endGame(ctx, me, them, g)
			}
			time.Sleep(s.cfg.TurnPause)
		}
	}
}

// playTurn reads one move (or an interrupting surrender/quit), submits it
// to the judge, and, for the normal move/timeout paths, waits for the
// judge's resolution and reports it to the client.
func (s *Session) playTurn(ctx context.Context, me, them *game.Participant, g *game.Game) turnResult {
	turn := len(g.Turns)
	deadline := time.Now().Add(s.cfg.MoveDeadline)
	env, res := waitForMessage(ctx, s.ch, deadline, me.UID, protocol.ActionMove, moveInterrupters, func(e protocol.Envelope) bool {
		var mv protocol.Move
		if err := json.Unmarshal(e.Raw, &mv); err != nil {
			return false
		}
		return mv.Turn == turn
	})

	switch res {
	case outcomeClosed:
		s.j.Submit(game.Submission{Participant: me, Kind: game.SubmissionLeave})
		return turnSessionOver
	case outcomeInterrupted:
		if env.Action == protocol.ActionSurrender {
			slog.Info("user surrendered", "tag", "session", "uid", me.UID, "opponent", them.UID)
			s.j.Submit(game.Submission{Participant: me, Kind: game.SubmissionSurrender})
			return turnSurrendered
		}
		slog.Info("user quit", "tag", "session", "uid", me.UID)
		s.j.Submit(game.Submission{Participant: me, Kind: game.SubmissionLeave})
		s.ch.Close()
		return turnSessionOver
	case outcomeTimeout:
		s.j.Submit(game.Submission{Participant: me, Kind: game.SubmissionMove, Move: game.PASS})
	case outcomeOK:
		var mv protocol.Move
		_ = json.Unmarshal(env.Raw, &mv)
		s.j.Submit(game.Submission{Participant: me, Kind: game.SubmissionMove, Move: game.GestureFromWire(mv.Move)})
	}

	cmd, cres := waitForCommand(ctx, me, time.Time{}, game.CmdEndTurn, map[game.CommandType]bool{game.CmdEndGame: true})
	if cres == outcomeClosed || cres == outcomeTimeout {
		return turnSessionOver
	}
	if cmd.Type == game.CmdEndGame {
		return turnContinue
	}
	return s.reportTurn(ctx, me, them, g)
}

func (s *Session) reportTurn(ctx context.Context, me, them *game.Participant, g *game.Game) turnResult {
	rec := g.Turns[len(g.Turns)-1]
	winnerTag := protocol.WinnerTag(rec.Winner != nil && rec.Winner.Equal(me), rec.Winner != nil)
	oppMove := rec.Move2
	if !me.Equal(g.User1) {
		oppMove = rec.Move1
	}

	if err := s.send(ctx, protocol.EndTurnMsg{Action: protocol.ActionEndTurn, Winner: winnerTag, OpponentMove: int(oppMove)}); err != nil {
		s.j.Submit(game.Submission{Participant: me, Kind: game.SubmissionLeave})
		return turnSessionOver
	}
	return turnContinue
}

func (s *Session) endGame(ctx context.Context, me, them *game.Participant, g *game.Game) bool {
	time.Sleep(s.cfg.EndGamePause)

	winnerTag := protocol.WinnerTag(g.Winner != nil && g.Winner.Equal(me), g.Winner != nil)
	var reason *string
	if r := g.Terminator.String(); r != "" {
		reason = &r
	}

	_ = s.send(ctx, protocol.EndGameMsg{Action: protocol.ActionEndGame, Winner: winnerTag, Reason: reason})
	me.Unpair()
	them.Unpair()
	return true
}

func (s *Session) send(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.ch.Send(ctx, data)
}

func (s *Session) cleanup(p *game.Participant) {
	p.MarkDropped()
	s.ch.Close()
	slog.Info("dropped", "tag", "session", "uid", p.UID)
	time.Sleep(s.cfg.SessionGrace)
}
