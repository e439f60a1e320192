package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"rps-duel-server/game"
	"rps-duel-server/judge"
	"rps-duel-server/matchmaker"
	"rps-duel-server/protocol"
)

// fakeChannel is an in-memory transport.Channel for driving a Session
// without a real network connection.
type fakeChannel struct {
	in  chan []byte
	out chan []byte

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
	pingErr error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		in:      make(chan []byte, 16),
		out:     make(chan []byte, 16),
		closeCh: make(chan struct{}),
	}
}

func (c *fakeChannel) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closeCh:
		return nil, errClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeChannel) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errClosed
	}
	select {
	case c.out <- data:
		return nil
	default:
		return errClosed
	}
}

func (c *fakeChannel) Ping(ctx context.Context) error {
	return c.pingErr
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closeCh)
	}
	return nil
}

func (c *fakeChannel) sendClient(v any) {
	data, _ := json.Marshal(v)
	c.in <- data
}

func (c *fakeChannel) recvServer(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-c.out:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("server sent invalid JSON: %v", err)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a server message")
		return nil
	}
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

const errClosed = simpleErr("fake channel closed")

func testConfig() Config {
	return Config{
		MoveDeadline:      300 * time.Millisecond,
		TurnPause:         0,
		EndGamePause:      0,
		SessionGrace:      0,
		MaxNameBytes:      16,
		CommandQueueDepth: 8,
	}
}

func newTestRig(t *testing.T) (*judge.Judge, *matchmaker.Matchmaker, context.Context, context.CancelFunc) {
	t.Helper()
	j := judge.New()
	mm := matchmaker.New(j, time.Second, 8)
	ctx, cancel := context.WithCancel(context.Background())
	go j.Run(ctx)
	go mm.Run(ctx)
	return j, mm, ctx, cancel
}

func TestSessionLogonSuccess(t *testing.T) {
	j, mm, ctx, cancel := newTestRig(t)
	defer cancel()
	_ = j
	ch := newFakeChannel()
	s := New(ch, mm, j, testConfig())

	ch.sendClient(protocol.Logon{Action: protocol.ActionLogon, Name: "Alice"})
	p, ok := s.logon(ctx)
	if !ok {
		t.Fatal("expected logon to succeed")
	}
	if p.Name != "Alice" {
		t.Errorf("name = %q, want Alice", p.Name)
	}
	if len(p.UID) != 7 {
		t.Errorf("uid %q should be 7 characters", p.UID)
	}
}

func TestSessionLogonIgnoresEmptyNameThenSucceeds(t *testing.T) {
	j, mm, ctx, cancel := newTestRig(t)
	defer cancel()
	ch := newFakeChannel()
	s := New(ch, mm, j, testConfig())

	ch.sendClient(protocol.Logon{Action: protocol.ActionLogon, Name: ""})
	ch.sendClient(protocol.Logon{Action: protocol.ActionLogon, Name: "Bob"})

	p, ok := s.logon(ctx)
	if !ok {
		t.Fatal("expected logon to eventually succeed")
	}
	if p.Name != "Bob" {
		t.Errorf("name = %q, want Bob", p.Name)
	}
}

func TestSessionLogonFailsOnConnectionClose(t *testing.T) {
	j, mm, ctx, cancel := newTestRig(t)
	defer cancel()
	ch := newFakeChannel()
	ch.Close()
	s := New(ch, mm, j, testConfig())

	if _, ok := s.logon(ctx); ok {
		t.Fatal("expected logon to fail once the connection is closed")
	}
}

func TestSessionNameTruncatedToConfiguredLimit(t *testing.T) {
	j, mm, ctx, cancel := newTestRig(t)
	defer cancel()
	ch := newFakeChannel()
	cfg := testConfig()
	cfg.MaxNameBytes = 4
	s := New(ch, mm, j, cfg)

	ch.sendClient(protocol.Logon{Action: protocol.ActionLogon, Name: "Alexandra"})
	p, ok := s.logon(ctx)
	if !ok {
		t.Fatal("expected logon to succeed")
	}
	if len(p.Name) > 4 {
		t.Errorf("name %q exceeds the 4-byte limit", p.Name)
	}
}

// TestSessionTwoClientsCleanWin exercises the full stack end-to-end:
// logon, standby, pairing through the real matchmaker, ten rock-vs-scissors
// turns through the real judge, and the resulting endturn/endgame frames.
func TestSessionTwoClientsCleanWin(t *testing.T) {
	j, mm, ctx, cancel := newTestRig(t)
	defer cancel()
	cfg := testConfig()

	aliceCh := newFakeChannel()
	bobCh := newFakeChannel()
	alice := New(aliceCh, mm, j, cfg)
	bob := New(bobCh, mm, j, cfg)

	aliceCh.sendClient(protocol.Logon{Action: protocol.ActionLogon, Name: "Alice"})
	bobCh.sendClient(protocol.Logon{Action: protocol.ActionLogon, Name: "Bob"})

	go alice.Run(ctx)
	go bob.Run(ctx)

	aliceCh.sendClient(protocol.Standby{Action: protocol.ActionStandby})
	bobCh.sendClient(protocol.Standby{Action: protocol.ActionStandby})

	// Both sides receive a match frame announcing the opponent's name.
	aliceMatch := aliceCh.recvServer(t)
	if aliceMatch["action"] != protocol.ActionMatch || aliceMatch["opponent"] != "Bob" {
		t.Fatalf("alice's match frame = %+v", aliceMatch)
	}
	bobMatch := bobCh.recvServer(t)
	if bobMatch["action"] != protocol.ActionMatch || bobMatch["opponent"] != "Alice" {
		t.Fatalf("bob's match frame = %+v", bobMatch)
	}

	for turn := 0; turn < 9; turn++ {
		aliceCh.sendClient(protocol.Move{Action: protocol.ActionMove, Turn: turn, Move: 0}) // ROCK
		bobCh.sendClient(protocol.Move{Action: protocol.ActionMove, Turn: turn, Move: 2})    // SCISSORS

		aliceEnd := aliceCh.recvServer(t)
		if aliceEnd["action"] != protocol.ActionEndTurn || aliceEnd["winner"] != "me" {
			t.Fatalf("turn %d: alice's endturn = %+v", turn, aliceEnd)
		}
		bobEnd := bobCh.recvServer(t)
		if bobEnd["action"] != protocol.ActionEndTurn || bobEnd["winner"] != "them" {
			t.Fatalf("turn %d: bob's endturn = %+v", turn, bobEnd)
		}
	}

	// Turn 9 (the tenth) brings alice's score to 10 and ends the game: each
	// side first gets that turn's endturn frame, then the endgame frame.
	aliceCh.sendClient(protocol.Move{Action: protocol.ActionMove, Turn: 9, Move: 0})
	bobCh.sendClient(protocol.Move{Action: protocol.ActionMove, Turn: 9, Move: 2})

	aliceLastTurn := aliceCh.recvServer(t)
	if aliceLastTurn["action"] != protocol.ActionEndTurn || aliceLastTurn["winner"] != "me" {
		t.Fatalf("turn 9: alice's endturn = %+v", aliceLastTurn)
	}
	bobLastTurn := bobCh.recvServer(t)
	if bobLastTurn["action"] != protocol.ActionEndTurn || bobLastTurn["winner"] != "them" {
		t.Fatalf("turn 9: bob's endturn = %+v", bobLastTurn)
	}

	aliceFinal := aliceCh.recvServer(t)
	if aliceFinal["action"] != protocol.ActionEndGame || aliceFinal["winner"] != "me" {
		t.Fatalf("alice's endgame = %+v", aliceFinal)
	}
	if aliceFinal["reason"] != nil {
		t.Errorf("expected a nil reason on a clean score win, got %v", aliceFinal["reason"])
	}
	bobFinal := bobCh.recvServer(t)
	if bobFinal["action"] != protocol.ActionEndGame || bobFinal["winner"] != "them" {
		t.Fatalf("bob's endgame = %+v", bobFinal)
	}
}

func TestSessionSurrender(t *testing.T) {
	j, mm, ctx, cancel := newTestRig(t)
	defer cancel()
	cfg := testConfig()

	aliceCh := newFakeChannel()
	bobCh := newFakeChannel()
	alice := New(aliceCh, mm, j, cfg)
	bob := New(bobCh, mm, j, cfg)

	aliceCh.sendClient(protocol.Logon{Action: protocol.ActionLogon, Name: "Alice"})
	bobCh.sendClient(protocol.Logon{Action: protocol.ActionLogon, Name: "Bob"})

	go alice.Run(ctx)
	go bob.Run(ctx)

	aliceCh.sendClient(protocol.Standby{Action: protocol.ActionStandby})
	bobCh.sendClient(protocol.Standby{Action: protocol.ActionStandby})
	aliceCh.recvServer(t)
	bobCh.recvServer(t)

	aliceCh.sendClient(protocol.Surrender{Action: protocol.ActionSurrender})

	bobFinal := bobCh.recvServer(t)
	if bobFinal["action"] != protocol.ActionEndGame || bobFinal["winner"] != "me" {
		t.Fatalf("bob's endgame = %+v", bobFinal)
	}
	if bobFinal["reason"] != protocol.ActionSurrender {
		t.Errorf("reason = %v, want surrender", bobFinal["reason"])
	}
}

func TestSessionMoveTimeoutDegradesToPass(t *testing.T) {
	j, mm, ctx, cancel := newTestRig(t)
	defer cancel()
	cfg := testConfig()
	cfg.MoveDeadline = 100 * time.Millisecond

	aliceCh := newFakeChannel()
	bobCh := newFakeChannel()
	alice := New(aliceCh, mm, j, cfg)
	bob := New(bobCh, mm, j, cfg)

	aliceCh.sendClient(protocol.Logon{Action: protocol.ActionLogon, Name: "Alice"})
	bobCh.sendClient(protocol.Logon{Action: protocol.ActionLogon, Name: "Bob"})

	go alice.Run(ctx)
	go bob.Run(ctx)

	aliceCh.sendClient(protocol.Standby{Action: protocol.ActionStandby})
	bobCh.sendClient(protocol.Standby{Action: protocol.ActionStandby})
	aliceCh.recvServer(t)
	bobCh.recvServer(t)

	// Alice never submits a move; bob plays PAPER and should win the turn.
	bobCh.sendClient(protocol.Move{Action: protocol.ActionMove, Turn: 0, Move: 1})

	bobEnd := bobCh.recvServer(t)
	if bobEnd["action"] != protocol.ActionEndTurn || bobEnd["winner"] != "me" {
		t.Fatalf("bob's endturn = %+v", bobEnd)
	}
	aliceEnd := aliceCh.recvServer(t)
	if aliceEnd["action"] != protocol.ActionEndTurn || aliceEnd["winner"] != "them" {
		t.Fatalf("alice's endturn = %+v", aliceEnd)
	}
	if int(aliceEnd["opponent_move"].(float64)) != 1 {
		t.Errorf("alice's view of bob's move = %v, want 1 (PAPER)", aliceEnd["opponent_move"])
	}
}

func TestSessionQuitSubmitsLeaveAndCloses(t *testing.T) {
	j, mm, ctx, cancel := newTestRig(t)
	defer cancel()
	cfg := testConfig()

	aliceCh := newFakeChannel()
	bobCh := newFakeChannel()
	alice := New(aliceCh, mm, j, cfg)
	bob := New(bobCh, mm, j, cfg)

	aliceCh.sendClient(protocol.Logon{Action: protocol.ActionLogon, Name: "Alice"})
	bobCh.sendClient(protocol.Logon{Action: protocol.ActionLogon, Name: "Bob"})

	go alice.Run(ctx)
	go bob.Run(ctx)

	aliceCh.sendClient(protocol.Standby{Action: protocol.ActionStandby})
	bobCh.sendClient(protocol.Standby{Action: protocol.ActionStandby})
	aliceCh.recvServer(t)
	bobCh.recvServer(t)

	aliceCh.sendClient(protocol.Quit{Action: protocol.ActionQuit})

	bobFinal := bobCh.recvServer(t)
	if bobFinal["action"] != protocol.ActionEndGame || bobFinal["winner"] != "me" {
		t.Fatalf("bob's endgame = %+v", bobFinal)
	}
	if bobFinal["reason"] != game.TerminatorLeave.String() {
		t.Errorf("reason = %v, want leave", bobFinal["reason"])
	}

	select {
	case <-aliceCh.closeCh:
	case <-time.After(time.Second):
		t.Fatal("expected alice's channel to be closed after quitting")
	}
}
