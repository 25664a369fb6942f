// Package arena is the live side of the server: connected sessions, the
// two matchmaking queues, the match registry and the rule arbitration.
// One mutex (the core lock) protects all shared state and the store calls
// made while holding it; outbound sends are non-blocking mailbox pushes,
// so holding the lock across them is safe.
package arena

import (
	"database/sql"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/playduel/backend/internal/config"
	"github.com/playduel/backend/internal/game"
	"github.com/playduel/backend/internal/models"
	"github.com/playduel/backend/internal/store"
	"github.com/playduel/backend/internal/wire"
)

// Store is the slice of the persistence layer the arena drives.
type Store interface {
	UpsertPlayer(pseudo, ip string, port int, joinDate time.Time) error
	InsertMatch(m *models.Match, mm *models.MastermindMatch) (int64, error)
	UpdateMatch(m *models.Match) error
	UpdateMastermindMatch(mm *models.MastermindMatch) error
	InsertTurn(matchID int64, player, move string, feedback sql.NullString) error
	GetRanking(pseudo string) (*models.Ranking, error)
	UpdateRankingsAfterMatch(matchID int64, winner, loser string, isDraw bool) (int, int, error)
	TopPlayers(limit int) ([]models.TopPlayer, error)
	RankOf(pseudo string) (int, error)
	HistoryOf(pseudo string, limit int) ([]models.HistoryEntry, error)
}

// Presence mirrors connection and rating events into the optional
// leaderboard cache. Implementations must not block.
type Presence interface {
	PlayerOnline(pseudo string)
	PlayerOffline(pseudo string)
	RatingChanged(pseudo string, rating int)
}

// Hub owns every piece of shared state behind the core lock.
type Hub struct {
	mu sync.Mutex

	cfg   *config.Config
	store Store
	cache Presence // nil when Redis is not configured

	sessions map[string]*Session   // pseudo -> session
	queues   map[string]*waitQueue // game type -> FIFO
	codes    map[string][]string   // stashed Mastermind secret codes
	matches  map[int64]*liveMatch
	inMatch  map[string]int64 // pseudo -> live match id
}

func NewHub(st Store, cache Presence, cfg *config.Config) *Hub {
	return &Hub{
		cfg:   cfg,
		store: st,
		cache: cache,
		sessions: make(map[string]*Session),
		queues: map[string]*waitQueue{
			models.GameMorpion:    newWaitQueue(),
			models.GameMastermind: newWaitQueue(),
		},
		codes:   make(map[string][]string),
		matches: make(map[int64]*liveMatch),
		inMatch: make(map[string]int64),
	}
}

// Dispatch routes one decoded client frame. Everything below runs under
// the core lock; unknown actions and precondition failures are dropped
// silently per the protocol.
func (h *Hub) Dispatch(s *Session, msg *wire.ClientMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.closed {
		return
	}

	if s.pseudo == "" {
		if msg.Action == wire.ActionConnect {
			h.handleConnect(s, msg)
		}
		return
	}

	// A client cannot act on behalf of another pseudo.
	if msg.Pseudo != "" && msg.Pseudo != s.pseudo {
		return
	}

	switch msg.Action {
	case wire.ActionJoin:
		h.handleJoin(s, models.GameMorpion, nil)
	case wire.ActionJoinMastermind:
		h.handleJoin(s, models.GameMastermind, msg.Code)
	case wire.ActionLeave:
		h.handleLeaveQueue(s, models.GameMorpion)
	case wire.ActionLeaveMastermind:
		h.handleLeaveQueue(s, models.GameMastermind)
	case wire.ActionMove:
		h.handleMove(s, msg)
	case wire.ActionMastermindGuess:
		h.handleGuess(s, msg)
	case wire.ActionPlayerRanking:
		h.handleGetRanking(s)
	case wire.ActionPlayerRank:
		h.handleGetRank(s)
	case wire.ActionTopPlayers:
		h.handleGetTopPlayers(s)
	case wire.ActionPlayerHistory:
		h.handleGetHistory(s)
	}
}

func (h *Hub) handleConnect(s *Session, msg *wire.ClientMessage) {
	pseudo := msg.Pseudo
	if pseudo == "" {
		s.Send(map[string]interface{}{
			"action":  wire.ActionConnect,
			"status":  "ERROR",
			"message": "Pseudo invalide.",
		})
		return
	}
	if _, taken := h.sessions[pseudo]; taken {
		s.Send(map[string]interface{}{
			"action":  wire.ActionConnect,
			"status":  "ERROR",
			"message": "Pseudo déjà pris.",
		})
		return
	}

	ip, port := s.remoteHostPort()
	if err := h.store.UpsertPlayer(pseudo, ip, port, time.Now()); err != nil {
		log.Printf("[ARENA] Upsert player %s failed: %v", pseudo, err)
		s.Send(map[string]interface{}{
			"action":  wire.ActionConnect,
			"status":  "ERROR",
			"message": "Erreur serveur.",
		})
		return
	}

	s.pseudo = pseudo
	h.sessions[pseudo] = s
	if h.cache != nil {
		h.cache.PlayerOnline(pseudo)
	}

	log.Printf("[ARENA] Player %s authenticated (session %s)", pseudo, s.ID)
	s.Send(map[string]interface{}{
		"action": wire.ActionConnect,
		"status": "OK",
	})
}

func (h *Hub) handleJoin(s *Session, kind string, code []string) {
	if h.isQueued(s.pseudo) {
		return
	}
	if _, playing := h.inMatch[s.pseudo]; playing {
		return
	}

	if kind == models.GameMastermind {
		if !game.ValidCode(code, h.cfg.CodeLength) {
			return
		}
		h.codes[s.pseudo] = code
	}

	h.queues[kind].push(s)
	log.Printf("[ARENA] Player %s joined %s queue (%d waiting)", s.pseudo, kind, h.queues[kind].len())
	h.tryPair(kind)
}

func (h *Hub) isQueued(pseudo string) bool {
	for _, q := range h.queues {
		if q.contains(pseudo) {
			return true
		}
	}
	return false
}

func (h *Hub) handleLeaveQueue(s *Session, kind string) {
	if !h.queues[kind].remove(s.pseudo) {
		return
	}
	if kind == models.GameMastermind {
		delete(h.codes, s.pseudo)
	}
	log.Printf("[ARENA] Player %s left %s queue", s.pseudo, kind)
	s.Send(map[string]interface{}{"action": wire.ActionLeftQueue})
}

// tryPair pops the two longest-waiting players and creates their match.
func (h *Hub) tryPair(kind string) {
	s1, s2 := h.queues[kind].popPair()
	if s1 == nil {
		return
	}

	switch kind {
	case models.GameMorpion:
		h.createMorpionMatch(s1, s2)
	case models.GameMastermind:
		h.createMastermindMatch(s1, s2)
	}
}

func (h *Hub) createMorpionMatch(s1, s2 *Session) {
	board := game.NewBoard()
	record := &models.Match{
		Player1:  s1.pseudo,
		Player2:  s2.pseudo,
		Board:    store.EncodeJSON(board.Cells()),
		GameType: models.GameMorpion,
	}

	id, err := h.store.InsertMatch(record, nil)
	if err != nil {
		log.Printf("[ARENA] Create morpion match failed: %v", err)
		h.queues[models.GameMorpion].pushFront(s2)
		h.queues[models.GameMorpion].pushFront(s1)
		return
	}
	record.ID = id

	lm := &liveMatch{
		id:     id,
		record: record,
		p1:     s1,
		p2:     s2,
		board:  board,
		next:   game.SymbolX,
	}
	h.register(lm)

	log.Printf("[ARENA] Morpion match %d: %s (X) vs %s (O)", id, s1.pseudo, s2.pseudo)
	s1.Send(map[string]interface{}{
		"action":   wire.ActionStart,
		"opponent": s2.pseudo,
		"match_id": id,
		"symbol":   game.SymbolX,
	})
	s2.Send(map[string]interface{}{
		"action":   wire.ActionStart,
		"opponent": s1.pseudo,
		"match_id": id,
		"symbol":   game.SymbolO,
	})
}

func (h *Hub) createMastermindMatch(s1, s2 *Session) {
	code1, code2 := h.codes[s1.pseudo], h.codes[s2.pseudo]
	delete(h.codes, s1.pseudo)
	delete(h.codes, s2.pseudo)

	record := &models.Match{
		Player1:  s1.pseudo,
		Player2:  s2.pseudo,
		GameType: models.GameMastermind,
	}
	mm := &models.MastermindMatch{
		Player1Code:     store.EncodeJSON(code1),
		Player2Code:     store.EncodeJSON(code2),
		Player1Guesses:  "[]",
		Player2Guesses:  "[]",
		Player1Feedback: "[]",
		Player2Feedback: "[]",
		MaxAttempts:     h.cfg.MaxAttempts,
	}

	id, err := h.store.InsertMatch(record, mm)
	if err != nil {
		log.Printf("[ARENA] Create mastermind match failed: %v", err)
		h.codes[s1.pseudo] = code1
		h.codes[s2.pseudo] = code2
		h.queues[models.GameMastermind].pushFront(s2)
		h.queues[models.GameMastermind].pushFront(s1)
		return
	}
	record.ID = id

	lm := &liveMatch{
		id:          id,
		record:      record,
		p1:          s1,
		p2:          s2,
		codes:       [2][]string{code1, code2},
		codeLength:  h.cfg.CodeLength,
		maxAttempts: h.cfg.MaxAttempts,
	}
	h.register(lm)

	log.Printf("[ARENA] Mastermind match %d: %s vs %s", id, s1.pseudo, s2.pseudo)
	s1.Send(map[string]interface{}{
		"action":   wire.ActionMastermindStart,
		"opponent": s2.pseudo,
		"match_id": id,
	})
	s2.Send(map[string]interface{}{
		"action":   wire.ActionMastermindStart,
		"opponent": s1.pseudo,
		"match_id": id,
	})
}

func (h *Hub) register(lm *liveMatch) {
	h.matches[lm.id] = lm
	h.inMatch[lm.p1.pseudo] = lm.id
	h.inMatch[lm.p2.pseudo] = lm.id
}

func (h *Hub) evict(lm *liveMatch) {
	delete(h.matches, lm.id)
	delete(h.inMatch, lm.p1.pseudo)
	delete(h.inMatch, lm.p2.pseudo)
}

func (h *Hub) handleMove(s *Session, msg *wire.ClientMessage) {
	if msg.Position == nil {
		return
	}
	lm, ok := h.matches[msg.MatchID]
	if !ok || lm.record.GameType != models.GameMorpion {
		return
	}
	side := lm.sideOf(s.pseudo)
	if side < 0 {
		return
	}

	symbol := symbolOf(side)
	if symbol != lm.next {
		return // out of turn
	}
	if !lm.board.PlayMove(*msg.Position, symbol) {
		return
	}
	lm.next = game.SymbolO
	if symbol == game.SymbolO {
		lm.next = game.SymbolX
	}

	if err := h.store.InsertTurn(lm.id, s.pseudo, strconv.Itoa(*msg.Position), sql.NullString{}); err != nil {
		log.Printf("[ARENA] Journal turn for match %d failed: %v", lm.id, err)
	}
	lm.record.Board = store.EncodeJSON(lm.board.Cells())
	if err := h.store.UpdateMatch(lm.record); err != nil {
		log.Printf("[ARENA] Update match %d failed: %v", lm.id, err)
	}

	lm.opponentOf(side).Send(map[string]interface{}{
		"action":   wire.ActionMove,
		"position": *msg.Position,
		"symbol":   symbol,
	})

	winner := lm.board.Winner()
	if winner == "" {
		return
	}

	switch winner {
	case game.SymbolX:
		lm.record.Result = sql.NullString{String: lm.p1.pseudo, Valid: true}
	case game.SymbolO:
		lm.record.Result = sql.NullString{String: lm.p2.pseudo, Valid: true}
	default:
		lm.record.Result = sql.NullString{String: models.ResultDraw, Valid: true}
	}
	lm.record.IsFinished = true
	if err := h.store.UpdateMatch(lm.record); err != nil {
		log.Printf("[ARENA] Finalize match %d failed: %v", lm.id, err)
	}

	end := map[string]interface{}{
		"action": wire.ActionEnd,
		"result": lm.record.Result.String,
	}
	lm.p1.Send(end)
	lm.p2.Send(end)
	h.evict(lm)
	log.Printf("[ARENA] Morpion match %d finished: %s", lm.id, lm.record.Result.String)
}

func (h *Hub) handleGuess(s *Session, msg *wire.ClientMessage) {
	lm, ok := h.matches[msg.MatchID]
	if !ok || lm.record.GameType != models.GameMastermind {
		return
	}
	side := lm.sideOf(s.pseudo)
	if side < 0 {
		return
	}
	if !game.ValidCode(msg.Guess, lm.codeLength) {
		return
	}
	if len(lm.guesses[side]) >= lm.maxAttempts {
		return
	}

	opp := 1 - side
	fb := game.Score(msg.Guess, lm.codes[opp])
	lm.guesses[side] = append(lm.guesses[side], msg.Guess)
	lm.feedback[side] = append(lm.feedback[side], fb)
	guessNumber := len(lm.guesses[side])

	feedbackJSON := store.EncodeJSON(fb)
	if err := h.store.InsertTurn(lm.id, s.pseudo, store.EncodeJSON(msg.Guess),
		sql.NullString{String: feedbackJSON, Valid: true}); err != nil {
		log.Printf("[ARENA] Journal guess for match %d failed: %v", lm.id, err)
	}
	if err := h.store.UpdateMastermindMatch(lm.mastermindRecord()); err != nil {
		log.Printf("[ARENA] Update mastermind match %d failed: %v", lm.id, err)
	}

	s.Send(map[string]interface{}{
		"action":       wire.ActionMastermindFeedback,
		"black_pins":   fb.Exact,
		"white_pins":   fb.Misplaced,
		"guess_number": guessNumber,
	})
	lm.opponentOf(side).Send(map[string]interface{}{
		"action":     wire.ActionMastermindOpponentMove,
		"guess":      msg.Guess,
		"black_pins": fb.Exact,
		"white_pins": fb.Misplaced,
	})

	// Actions serialize under the core lock, so the first solve seen here
	// wins outright; a draw only remains possible when both sides run out
	// of attempts.
	if fb.Solved(lm.codeLength) {
		h.finalizeMastermind(lm, s.pseudo)
		return
	}
	if len(lm.guesses[0]) >= lm.maxAttempts && len(lm.guesses[1]) >= lm.maxAttempts {
		h.finalizeMastermind(lm, models.ResultDraw)
	}
}

// mastermindRecord rebuilds the persisted row from the in-memory state.
func (lm *liveMatch) mastermindRecord() *models.MastermindMatch {
	return &models.MastermindMatch{
		MatchID:         lm.id,
		Player1Code:     store.EncodeJSON(lm.codes[0]),
		Player2Code:     store.EncodeJSON(lm.codes[1]),
		Player1Guesses:  store.EncodeJSON(lm.guesses[0]),
		Player2Guesses:  store.EncodeJSON(lm.guesses[1]),
		Player1Feedback: store.EncodeJSON(lm.feedback[0]),
		Player2Feedback: store.EncodeJSON(lm.feedback[1]),
		MaxAttempts:     lm.maxAttempts,
	}
}

// finalizeMastermind flushes the result, reveals the codes, applies the
// ELO update (never for interruptions) and evicts the match.
func (h *Hub) finalizeMastermind(lm *liveMatch, result string) {
	lm.record.IsFinished = true
	lm.record.Result = sql.NullString{String: result, Valid: true}
	if err := h.store.UpdateMatch(lm.record); err != nil {
		log.Printf("[ARENA] Finalize match %d failed: %v", lm.id, err)
	}

	end := map[string]interface{}{
		"action":       wire.ActionMastermindEnd,
		"result":       result,
		"player1_code": lm.codes[0],
		"player2_code": lm.codes[1],
	}
	lm.p1.Send(end)
	lm.p2.Send(end)

	if result != models.ResultInterrupted {
		h.applyRatings(lm, result)
	}

	h.evict(lm)
	log.Printf("[ARENA] Mastermind match %d finished: %s", lm.id, result)
}

func (h *Hub) applyRatings(lm *liveMatch, result string) {
	winner, loser := lm.p1, lm.p2
	isDraw := result == models.ResultDraw
	if !isDraw && result == lm.p2.pseudo {
		winner, loser = lm.p2, lm.p1
	}

	winnerBefore, err := h.store.GetRanking(winner.pseudo)
	if err != nil {
		log.Printf("[ARENA] Ranking lookup for %s failed: %v", winner.pseudo, err)
		return
	}
	loserBefore, err := h.store.GetRanking(loser.pseudo)
	if err != nil {
		log.Printf("[ARENA] Ranking lookup for %s failed: %v", loser.pseudo, err)
		return
	}

	newWinner, newLoser, err := h.store.UpdateRankingsAfterMatch(lm.id, winner.pseudo, loser.pseudo, isDraw)
	if err != nil {
		log.Printf("[ARENA] Ranking update for match %d failed: %v", lm.id, err)
		return
	}

	winner.Send(map[string]interface{}{
		"action":     wire.ActionRatingUpdate,
		"old_rating": winnerBefore.EloRating,
		"new_rating": newWinner,
	})
	loser.Send(map[string]interface{}{
		"action":     wire.ActionRatingUpdate,
		"old_rating": loserBefore.EloRating,
		"new_rating": newLoser,
	})

	if h.cache != nil {
		h.cache.RatingChanged(winner.pseudo, newWinner)
		h.cache.RatingChanged(loser.pseudo, newLoser)
	}
}

func (h *Hub) handleGetRanking(s *Session) {
	ranking, err := h.store.GetRanking(s.pseudo)
	if err != nil {
		log.Printf("[ARENA] Get ranking for %s failed: %v", s.pseudo, err)
		return
	}
	s.Send(map[string]interface{}{
		"action":       wire.ActionPlayerRankingReply,
		"ranking_data": ranking,
	})
}

func (h *Hub) handleGetRank(s *Session) {
	rank, err := h.store.RankOf(s.pseudo)
	if err != nil {
		log.Printf("[ARENA] Get rank for %s failed: %v", s.pseudo, err)
		return
	}
	s.Send(map[string]interface{}{
		"action": wire.ActionPlayerRankReply,
		"rank":   rank,
	})
}

func (h *Hub) handleGetTopPlayers(s *Session) {
	players, err := h.store.TopPlayers(h.cfg.TopPlayersLimit)
	if err != nil {
		log.Printf("[ARENA] Get top players failed: %v", err)
		return
	}
	s.Send(map[string]interface{}{
		"action":  wire.ActionTopPlayersReply,
		"players": players,
	})
}

func (h *Hub) handleGetHistory(s *Session) {
	history, err := h.store.HistoryOf(s.pseudo, h.cfg.HistoryLimit)
	if err != nil {
		log.Printf("[ARENA] Get history for %s failed: %v", s.pseudo, err)
		return
	}
	s.Send(map[string]interface{}{
		"action":  wire.ActionPlayerHistoryReply,
		"history": history,
	})
}

// Disconnect runs the eviction protocol for a lost session: live-clients
// table, both queues, stashed code, and every match the player was in.
// Safe to call more than once.
func (h *Hub) Disconnect(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.pseudo != "" {
		if current, ok := h.sessions[s.pseudo]; ok && current == s {
			delete(h.sessions, s.pseudo)
		}
		for _, q := range h.queues {
			q.remove(s.pseudo)
		}
		delete(h.codes, s.pseudo)

		if id, ok := h.inMatch[s.pseudo]; ok {
			if lm, live := h.matches[id]; live {
				h.interruptMatch(lm, s.pseudo)
			}
		}

		if h.cache != nil {
			h.cache.PlayerOffline(s.pseudo)
		}
		log.Printf("[ARENA] Player %s disconnected", s.pseudo)
	}

	close(s.send)
	s.conn.Close()
}

// interruptMatch marks a live match interrupted because leaver dropped,
// and tells the surviving opponent. Interrupted matches never touch
// rankings.
func (h *Hub) interruptMatch(lm *liveMatch, leaver string) {
	lm.record.IsFinished = true
	lm.record.Result = sql.NullString{String: models.ResultInterrupted, Valid: true}
	if err := h.store.UpdateMatch(lm.record); err != nil {
		log.Printf("[ARENA] Interrupt match %d failed: %v", lm.id, err)
	}

	side := lm.sideOf(leaver)
	opponent := lm.opponentOf(side)
	if !opponent.closed {
		opponent.Send(map[string]interface{}{
			"action":  wire.ActionMatchInterrupted,
			"message": "Votre adversaire s'est déconnecté.",
		})
	}

	h.evict(lm)
	log.Printf("[ARENA] Match %d interrupted (%s left)", lm.id, leaver)
}

// Stats is a consistent snapshot for the HTTP status endpoint.
type Stats struct {
	Online          int `json:"online"`
	MorpionQueue    int `json:"morpion_queue"`
	MastermindQueue int `json:"mastermind_queue"`
	LiveMatches     int `json:"live_matches"`
}

func (h *Hub) Snapshot() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Online:          len(h.sessions),
		MorpionQueue:    h.queues[models.GameMorpion].len(),
		MastermindQueue: h.queues[models.GameMastermind].len(),
		LiveMatches:     len(h.matches),
	}
}

// Shutdown disconnects every open session before returning, so in-progress
// matches are already recorded as interrupted when the caller proceeds to
// exit. The sessions' read loops observe the closed connections afterwards
// and their own cleanup is a no-op.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	open := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		open = append(open, s)
	}
	h.mu.Unlock()

	for _, s := range open {
		h.Disconnect(s)
	}
}
