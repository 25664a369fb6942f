package arena

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/playduel/backend/internal/config"
	"github.com/playduel/backend/internal/elo"
	"github.com/playduel/backend/internal/models"
	"github.com/playduel/backend/internal/wire"
)

// fakeConn satisfies wire.Conn without a socket. Frames pushed on the
// channel come out of ReadFrame; writes are recorded.
type fakeConn struct {
	frames chan []byte

	mu     sync.Mutex
	writes [][]byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16)}
}

func (c *fakeConn) ReadFrame() ([]byte, error) {
	frame, ok := <-c.frames
	if !ok {
		return nil, net.ErrClosed
	}
	return frame, nil
}

func (c *fakeConn) WriteFrame(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.frames)
	}
	return nil
}

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

type ratingCall struct {
	matchID int64
	winner  string
	loser   string
	isDraw  bool
}

// fakeStore is an in-memory arena.Store.
type fakeStore struct {
	nextID      int64
	players     map[string]bool
	matches     map[int64]*models.Match
	mastermind  map[int64]*models.MastermindMatch
	turnCount   int
	rankings    map[string]*models.Ranking
	ratingCalls []ratingCall

	failInsertMatch bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players:    make(map[string]bool),
		matches:    make(map[int64]*models.Match),
		mastermind: make(map[int64]*models.MastermindMatch),
		rankings:   make(map[string]*models.Ranking),
	}
}

func (f *fakeStore) UpsertPlayer(pseudo, ip string, port int, joinDate time.Time) error {
	f.players[pseudo] = true
	return nil
}

func (f *fakeStore) InsertMatch(m *models.Match, mm *models.MastermindMatch) (int64, error) {
	if f.failInsertMatch {
		return 0, fmt.Errorf("insert match: boom")
	}
	f.nextID++
	stored := *m
	stored.ID = f.nextID
	f.matches[f.nextID] = &stored
	if mm != nil {
		stored := *mm
		stored.MatchID = f.nextID
		f.mastermind[f.nextID] = &stored
	}
	return f.nextID, nil
}

func (f *fakeStore) UpdateMatch(m *models.Match) error {
	stored := *m
	f.matches[m.ID] = &stored
	return nil
}

func (f *fakeStore) UpdateMastermindMatch(mm *models.MastermindMatch) error {
	stored := *mm
	f.mastermind[mm.MatchID] = &stored
	return nil
}

func (f *fakeStore) InsertTurn(matchID int64, player, move string, feedback sql.NullString) error {
	f.turnCount++
	return nil
}

func (f *fakeStore) GetRanking(pseudo string) (*models.Ranking, error) {
	if r, ok := f.rankings[pseudo]; ok {
		copied := *r
		return &copied, nil
	}
	r := &models.Ranking{Pseudo: pseudo, EloRating: elo.DefaultRating}
	f.rankings[pseudo] = r
	copied := *r
	return &copied, nil
}

func (f *fakeStore) UpdateRankingsAfterMatch(matchID int64, winner, loser string, isDraw bool) (int, int, error) {
	f.ratingCalls = append(f.ratingCalls, ratingCall{matchID, winner, loser, isDraw})
	w, _ := f.GetRanking(winner)
	l, _ := f.GetRanking(loser)
	newWinner, newLoser := elo.RatingChange(w.EloRating, l.EloRating, w.GamesPlayed, l.GamesPlayed, isDraw)
	f.rankings[winner].EloRating = newWinner
	f.rankings[winner].GamesPlayed++
	f.rankings[loser].EloRating = newLoser
	f.rankings[loser].GamesPlayed++
	return newWinner, newLoser, nil
}

func (f *fakeStore) TopPlayers(limit int) ([]models.TopPlayer, error) {
	return []models.TopPlayer{
		{Pseudo: "alice", EloRating: 1250, GamesPlayed: 4, Wins: 3, Losses: 1, WinRate: 75},
	}, nil
}

func (f *fakeStore) RankOf(pseudo string) (int, error) {
	return 3, nil
}

func (f *fakeStore) HistoryOf(pseudo string, limit int) ([]models.HistoryEntry, error) {
	return []models.HistoryEntry{
		{MatchID: 7, OldRating: 1200, NewRating: 1216, RatingChange: 16, Opponent: "bob", Result: "win"},
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		CodeLength:       4,
		MaxAttempts:      10,
		TopPlayersLimit:  10,
		HistoryLimit:     10,
		ActionsPerSecond: 100,
		ActionBurst:      100,
	}
}

func newTestHub(st Store) *Hub {
	return NewHub(st, nil, testConfig())
}

// next pops the next queued frame for the session and decodes it.
func next(t *testing.T, s *Session) map[string]interface{} {
	t.Helper()
	select {
	case data := <-s.send:
		var m map[string]interface{}
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode frame %q: %v", data, err)
		}
		return m
	default:
		t.Fatal("no frame queued")
		return nil
	}
}

func noFrame(t *testing.T, s *Session) {
	t.Helper()
	select {
	case data := <-s.send:
		t.Fatalf("unexpected frame: %s", data)
	default:
	}
}

func drain(s *Session) []map[string]interface{} {
	var out []map[string]interface{}
	for {
		select {
		case data := <-s.send:
			var m map[string]interface{}
			json.Unmarshal(data, &m)
			out = append(out, m)
		default:
			return out
		}
	}
}

func connect(t *testing.T, h *Hub, pseudo string) *Session {
	t.Helper()
	s := NewSession(h, newFakeConn())
	h.Dispatch(s, &wire.ClientMessage{Action: wire.ActionConnect, Pseudo: pseudo})
	msg := next(t, s)
	if msg["status"] != "OK" {
		t.Fatalf("connect %s: got %v", pseudo, msg)
	}
	return s
}

func intPtr(v int) *int { return &v }

func TestConnectRegistersPlayer(t *testing.T) {
	st := newFakeStore()
	h := newTestHub(st)

	connect(t, h, "alice")

	if !st.players["alice"] {
		t.Error("player not persisted on connect")
	}
	if _, ok := h.sessions["alice"]; !ok {
		t.Error("session not registered under pseudo")
	}
}

func TestConnectRejectsTakenPseudo(t *testing.T) {
	h := newTestHub(newFakeStore())
	connect(t, h, "alice")

	s2 := NewSession(h, newFakeConn())
	h.Dispatch(s2, &wire.ClientMessage{Action: wire.ActionConnect, Pseudo: "alice"})

	msg := next(t, s2)
	if msg["status"] != "ERROR" || msg["message"] != "Pseudo déjà pris." {
		t.Errorf("got %v", msg)
	}
	if s2.pseudo != "" {
		t.Error("rejected session should stay unauthenticated")
	}
}

func TestConnectRejectsEmptyPseudo(t *testing.T) {
	h := newTestHub(newFakeStore())

	s := NewSession(h, newFakeConn())
	h.Dispatch(s, &wire.ClientMessage{Action: wire.ActionConnect})

	msg := next(t, s)
	if msg["status"] != "ERROR" || msg["message"] != "Pseudo invalide." {
		t.Errorf("got %v", msg)
	}
}

func TestUnauthenticatedActionsIgnored(t *testing.T) {
	h := newTestHub(newFakeStore())

	s := NewSession(h, newFakeConn())
	h.Dispatch(s, &wire.ClientMessage{Action: wire.ActionJoin})

	noFrame(t, s)
	if h.queues[models.GameMorpion].len() != 0 {
		t.Error("unauthenticated session entered the queue")
	}
}

func TestSpoofedPseudoDropped(t *testing.T) {
	h := newTestHub(newFakeStore())
	alice := connect(t, h, "alice")
	connect(t, h, "bob")

	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionJoin, Pseudo: "bob"})

	noFrame(t, alice)
	if h.queues[models.GameMorpion].len() != 0 {
		t.Error("spoofed join entered the queue")
	}
}

func TestMorpionPairing(t *testing.T) {
	st := newFakeStore()
	h := newTestHub(st)
	alice := connect(t, h, "alice")
	bob := connect(t, h, "bob")

	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionJoin})
	noFrame(t, alice)

	h.Dispatch(bob, &wire.ClientMessage{Action: wire.ActionJoin})

	startA := next(t, alice)
	startB := next(t, bob)

	if startA["action"] != wire.ActionStart || startA["opponent"] != "bob" || startA["symbol"] != "X" {
		t.Errorf("alice start frame: %v", startA)
	}
	if startB["action"] != wire.ActionStart || startB["opponent"] != "alice" || startB["symbol"] != "O" {
		t.Errorf("bob start frame: %v", startB)
	}
	if startA["match_id"] != startB["match_id"] {
		t.Errorf("match ids differ: %v vs %v", startA["match_id"], startB["match_id"])
	}
	if m := st.matches[1]; m == nil || m.GameType != models.GameMorpion {
		t.Errorf("match record: %+v", st.matches[1])
	}
}

func TestFailedMatchCreationRestoresQueue(t *testing.T) {
	st := newFakeStore()
	st.failInsertMatch = true
	h := newTestHub(st)
	alice := connect(t, h, "alice")
	bob := connect(t, h, "bob")

	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionJoin})
	h.Dispatch(bob, &wire.ClientMessage{Action: wire.ActionJoin})

	noFrame(t, alice)
	noFrame(t, bob)
	if h.queues[models.GameMorpion].len() != 2 {
		t.Errorf("queue length = %d, want 2", h.queues[models.GameMorpion].len())
	}

	// The next pairing attempt keeps the original join order.
	st.failInsertMatch = false
	h.mu.Lock()
	h.tryPair(models.GameMorpion)
	h.mu.Unlock()
	if start := next(t, alice); start["symbol"] != "X" {
		t.Errorf("alice should be player1 after restore, got %v", start)
	}
}

// pairMorpion connects two players and runs them into a match.
func pairMorpion(t *testing.T, h *Hub) (alice, bob *Session, matchID int64) {
	t.Helper()
	alice = connect(t, h, "alice")
	bob = connect(t, h, "bob")
	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionJoin})
	h.Dispatch(bob, &wire.ClientMessage{Action: wire.ActionJoin})
	start := next(t, alice)
	next(t, bob)
	return alice, bob, int64(start["match_id"].(float64))
}

func TestMorpionWin(t *testing.T) {
	st := newFakeStore()
	h := newTestHub(st)
	alice, bob, id := pairMorpion(t, h)

	move := func(s *Session, pos int) {
		h.Dispatch(s, &wire.ClientMessage{Action: wire.ActionMove, MatchID: id, Position: intPtr(pos)})
	}

	move(alice, 0)
	relay := next(t, bob)
	if relay["action"] != wire.ActionMove || relay["position"] != float64(0) || relay["symbol"] != "X" {
		t.Errorf("relay frame: %v", relay)
	}
	noFrame(t, alice) // mover gets no echo

	move(bob, 1)
	next(t, alice)
	move(alice, 4)
	next(t, bob)
	move(bob, 2)
	next(t, alice)
	move(alice, 8) // completes the 0-4-8 diagonal

	relay = next(t, bob)
	endB := next(t, bob)
	endA := next(t, alice)
	if relay["action"] != wire.ActionMove {
		t.Errorf("expected relay before end, got %v", relay)
	}
	if endA["action"] != wire.ActionEnd || endA["result"] != "alice" {
		t.Errorf("alice end frame: %v", endA)
	}
	if endB["result"] != "alice" {
		t.Errorf("bob end frame: %v", endB)
	}

	if m := st.matches[id]; !m.IsFinished || m.Result.String != "alice" {
		t.Errorf("final match record: %+v", m)
	}
	if _, live := h.matches[id]; live {
		t.Error("finished match still registered")
	}
	if len(st.ratingCalls) != 0 {
		t.Error("morpion matches must not touch rankings")
	}
}

func TestMorpionDraw(t *testing.T) {
	st := newFakeStore()
	h := newTestHub(st)
	alice, bob, id := pairMorpion(t, h)

	moves := []struct {
		s   *Session
		pos int
	}{
		{alice, 0}, {bob, 1}, {alice, 2}, {bob, 4}, {alice, 3},
		{bob, 5}, {alice, 7}, {bob, 6}, {alice, 8},
	}
	for _, mv := range moves {
		h.Dispatch(mv.s, &wire.ClientMessage{Action: wire.ActionMove, MatchID: id, Position: intPtr(mv.pos)})
	}

	framesA := drain(alice)
	endA := framesA[len(framesA)-1]
	if endA["action"] != wire.ActionEnd || endA["result"] != models.ResultDraw {
		t.Errorf("alice end frame: %v", endA)
	}
	framesB := drain(bob)
	endB := framesB[len(framesB)-1]
	if endB["result"] != models.ResultDraw {
		t.Errorf("bob end frame: %v", endB)
	}
	if m := st.matches[id]; m.Result.String != models.ResultDraw {
		t.Errorf("final match record: %+v", m)
	}
}

func TestMorpionOutOfTurnIgnored(t *testing.T) {
	h := newTestHub(newFakeStore())
	alice, bob, id := pairMorpion(t, h)

	// O may not open.
	h.Dispatch(bob, &wire.ClientMessage{Action: wire.ActionMove, MatchID: id, Position: intPtr(0)})
	noFrame(t, alice)
	noFrame(t, bob)

	// X moving twice in a row is dropped too.
	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionMove, MatchID: id, Position: intPtr(0)})
	next(t, bob)
	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionMove, MatchID: id, Position: intPtr(1)})
	noFrame(t, bob)
}

func TestMorpionOccupiedCellIgnored(t *testing.T) {
	h := newTestHub(newFakeStore())
	alice, bob, id := pairMorpion(t, h)

	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionMove, MatchID: id, Position: intPtr(4)})
	next(t, bob)
	h.Dispatch(bob, &wire.ClientMessage{Action: wire.ActionMove, MatchID: id, Position: intPtr(4)})
	noFrame(t, alice)

	// Turn was not consumed by the rejected move.
	h.Dispatch(bob, &wire.ClientMessage{Action: wire.ActionMove, MatchID: id, Position: intPtr(5)})
	if relay := next(t, alice); relay["symbol"] != "O" {
		t.Errorf("relay frame: %v", relay)
	}
}

func TestLeaveQueue(t *testing.T) {
	h := newTestHub(newFakeStore())
	alice := connect(t, h, "alice")

	// Not queued: no confirmation.
	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionLeave})
	noFrame(t, alice)

	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionJoin})
	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionLeave})
	if msg := next(t, alice); msg["action"] != wire.ActionLeftQueue {
		t.Errorf("got %v", msg)
	}
	if h.queues[models.GameMorpion].len() != 0 {
		t.Error("queue not emptied")
	}
}

func TestJoinWhileQueuedOrPlayingIgnored(t *testing.T) {
	h := newTestHub(newFakeStore())
	alice := connect(t, h, "alice")

	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionJoin})
	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionJoin})
	if h.queues[models.GameMorpion].len() != 1 {
		t.Errorf("queue length = %d, want 1", h.queues[models.GameMorpion].len())
	}

	// Queued for one game means barred from the other.
	h.Dispatch(alice, &wire.ClientMessage{
		Action: wire.ActionJoinMastermind,
		Code:   []string{"red", "green", "blue", "yellow"},
	})
	if h.queues[models.GameMastermind].len() != 0 {
		t.Error("queued player joined the other queue")
	}
}

var (
	codeAlice = []string{"red", "green", "blue", "yellow"}
	codeBob   = []string{"yellow", "yellow", "red", "green"}
)

func pairMastermind(t *testing.T, h *Hub) (alice, bob *Session, matchID int64) {
	t.Helper()
	alice = connect(t, h, "alice")
	bob = connect(t, h, "bob")
	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionJoinMastermind, Code: codeAlice})
	h.Dispatch(bob, &wire.ClientMessage{Action: wire.ActionJoinMastermind, Code: codeBob})
	start := next(t, alice)
	if start["action"] != wire.ActionMastermindStart {
		t.Fatalf("alice start frame: %v", start)
	}
	next(t, bob)
	return alice, bob, int64(start["match_id"].(float64))
}

func TestMastermindInvalidCodeNotQueued(t *testing.T) {
	h := newTestHub(newFakeStore())
	alice := connect(t, h, "alice")

	h.Dispatch(alice, &wire.ClientMessage{
		Action: wire.ActionJoinMastermind,
		Code:   []string{"red", "mauve", "blue", "yellow"},
	})
	noFrame(t, alice)
	if h.queues[models.GameMastermind].len() != 0 {
		t.Error("invalid code accepted into the queue")
	}
}

func TestMastermindWinAndRatings(t *testing.T) {
	st := newFakeStore()
	h := newTestHub(st)
	alice, bob, id := pairMastermind(t, h)

	guess := func(s *Session, g []string) {
		h.Dispatch(s, &wire.ClientMessage{Action: wire.ActionMastermindGuess, MatchID: id, Guess: g})
	}

	// Two misses before the solve.
	guess(alice, []string{"red", "red", "red", "red"})
	fb := next(t, alice)
	if fb["action"] != wire.ActionMastermindFeedback || fb["black_pins"] != float64(1) ||
		fb["white_pins"] != float64(0) || fb["guess_number"] != float64(1) {
		t.Errorf("first feedback: %v", fb)
	}
	opp := next(t, bob)
	if opp["action"] != wire.ActionMastermindOpponentMove || opp["black_pins"] != float64(1) {
		t.Errorf("opponent frame: %v", opp)
	}

	guess(alice, []string{"green", "green", "green", "green"})
	next(t, alice)
	next(t, bob)

	guess(alice, codeBob)
	fb = next(t, alice)
	if fb["black_pins"] != float64(4) || fb["guess_number"] != float64(3) {
		t.Errorf("solving feedback: %v", fb)
	}
	next(t, bob) // opponent relay

	endA := next(t, alice)
	if endA["action"] != wire.ActionMastermindEnd || endA["result"] != "alice" {
		t.Errorf("alice end frame: %v", endA)
	}
	endB := next(t, bob)
	if endB["result"] != "alice" {
		t.Errorf("bob end frame: %v", endB)
	}

	ratingA := next(t, alice)
	if ratingA["action"] != wire.ActionRatingUpdate ||
		ratingA["old_rating"] != float64(1200) || ratingA["new_rating"] != float64(1220) {
		t.Errorf("alice rating frame: %v", ratingA)
	}
	ratingB := next(t, bob)
	if ratingB["new_rating"] != float64(1180) {
		t.Errorf("bob rating frame: %v", ratingB)
	}

	if len(st.ratingCalls) != 1 {
		t.Fatalf("rating calls = %d, want 1", len(st.ratingCalls))
	}
	call := st.ratingCalls[0]
	if call.winner != "alice" || call.loser != "bob" || call.isDraw {
		t.Errorf("rating call: %+v", call)
	}

	// A guess after the end is silently dropped.
	guess(bob, codeAlice)
	noFrame(t, alice)
	noFrame(t, bob)
}

func TestMastermindExhaustedDraw(t *testing.T) {
	st := newFakeStore()
	cfg := testConfig()
	cfg.MaxAttempts = 2
	h := NewHub(st, nil, cfg)
	alice, bob, id := pairMastermind(t, h)

	miss := []string{"purple", "purple", "purple", "purple"}
	for i := 0; i < 2; i++ {
		h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionMastermindGuess, MatchID: id, Guess: miss})
		h.Dispatch(bob, &wire.ClientMessage{Action: wire.ActionMastermindGuess, MatchID: id, Guess: miss})
	}

	var endA map[string]interface{}
	for _, frame := range drain(alice) {
		if frame["action"] == wire.ActionMastermindEnd {
			endA = frame
		}
	}
	if endA == nil || endA["result"] != models.ResultDraw {
		t.Fatalf("alice end frame: %v", endA)
	}
	if endA["player1_code"] == nil || endA["player2_code"] == nil {
		t.Error("codes not revealed at the end")
	}

	if len(st.ratingCalls) != 1 || !st.ratingCalls[0].isDraw {
		t.Errorf("rating calls: %+v", st.ratingCalls)
	}

	// A third guess would have been dropped even before the draw.
	if mm := st.mastermind[id]; mm.Player1Guesses == "[]" {
		t.Errorf("guesses not persisted: %+v", mm)
	}
}

func TestDisconnectInterruptsMatch(t *testing.T) {
	st := newFakeStore()
	h := newTestHub(st)
	alice, bob, id := pairMastermind(t, h)

	h.Disconnect(alice)

	msg := next(t, bob)
	if msg["action"] != wire.ActionMatchInterrupted || msg["message"] != "Votre adversaire s'est déconnecté." {
		t.Errorf("got %v", msg)
	}
	if m := st.matches[id]; !m.IsFinished || m.Result.String != models.ResultInterrupted {
		t.Errorf("match record: %+v", m)
	}
	if len(st.ratingCalls) != 0 {
		t.Error("interrupted match touched rankings")
	}
	if _, ok := h.sessions["alice"]; ok {
		t.Error("disconnected session still registered")
	}
	// Pseudo is free again.
	connect(t, h, "alice")
}

func TestDisconnectClearsQueueAndCode(t *testing.T) {
	h := newTestHub(newFakeStore())
	alice := connect(t, h, "alice")
	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionJoinMastermind, Code: codeAlice})

	h.Disconnect(alice)
	h.Disconnect(alice) // idempotent

	if h.queues[models.GameMastermind].len() != 0 {
		t.Error("queue entry survived the disconnect")
	}
	if _, ok := h.codes["alice"]; ok {
		t.Error("stashed code survived the disconnect")
	}
}

func TestRankingQueries(t *testing.T) {
	h := newTestHub(newFakeStore())
	alice := connect(t, h, "alice")

	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionPlayerRanking})
	msg := next(t, alice)
	if msg["action"] != wire.ActionPlayerRankingReply || msg["ranking_data"] == nil {
		t.Errorf("ranking reply: %v", msg)
	}

	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionPlayerRank})
	msg = next(t, alice)
	if msg["action"] != wire.ActionPlayerRankReply || msg["rank"] != float64(3) {
		t.Errorf("rank reply: %v", msg)
	}

	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionTopPlayers})
	msg = next(t, alice)
	if msg["action"] != wire.ActionTopPlayersReply || msg["players"] == nil {
		t.Errorf("top players reply: %v", msg)
	}

	h.Dispatch(alice, &wire.ClientMessage{Action: wire.ActionPlayerHistory})
	msg = next(t, alice)
	if msg["action"] != wire.ActionPlayerHistoryReply || msg["history"] == nil {
		t.Errorf("history reply: %v", msg)
	}
}

func TestSnapshot(t *testing.T) {
	h := newTestHub(newFakeStore())
	connect(t, h, "alice")
	bob := connect(t, h, "bob")
	h.Dispatch(bob, &wire.ClientMessage{Action: wire.ActionJoin})

	stats := h.Snapshot()
	if stats.Online != 2 || stats.MorpionQueue != 1 || stats.LiveMatches != 0 {
		t.Errorf("snapshot: %+v", stats)
	}
}

func TestShutdownRecordsInterruptionsBeforeReturning(t *testing.T) {
	st := newFakeStore()
	h := newTestHub(st)
	_, _, id := pairMastermind(t, h)

	h.Shutdown()

	// The interrupted result must be durable by the time Shutdown returns,
	// not pending on the session goroutines noticing their closed sockets.
	m := st.matches[id]
	if !m.IsFinished || m.Result.String != models.ResultInterrupted {
		t.Errorf("match record after shutdown: %+v", m)
	}
	if len(st.ratingCalls) != 0 {
		t.Error("shutdown touched rankings")
	}

	h.mu.Lock()
	remaining := len(h.sessions)
	live := len(h.matches)
	h.mu.Unlock()
	if remaining != 0 || live != 0 {
		t.Errorf("after shutdown: %d sessions, %d live matches", remaining, live)
	}
}

func TestSessionRunTerminatesOnMalformedFrame(t *testing.T) {
	h := newTestHub(newFakeStore())
	conn := newFakeConn()
	s := NewSession(h, conn)

	conn.frames <- []byte(`{"action":"CONNECT","pseudo":"alice"}`)
	conn.frames <- []byte(`not json`)

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate on malformed frame")
	}

	h.mu.Lock()
	_, registered := h.sessions["alice"]
	h.mu.Unlock()
	if registered {
		t.Error("session not cleaned up after termination")
	}
}
