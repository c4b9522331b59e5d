// Package challenge owns the liveness challenge lifecycle: issuing signed
// challenge records, TTL expiry and the at-most-once consume protocol.
package challenge

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verid-io/verid/internal/domain"
)

// evictScanLimit bounds the opportunistic expiry scan performed on every
// mutation; the background sweeper handles the rest.
const evictScanLimit = 16

var allPredicates = []domain.ChallengeType{
	domain.ChallengeBlink,
	domain.ChallengeTurnLeft,
	domain.ChallengeTurnRight,
}

// Record is an immutable snapshot of an issued challenge.
type Record struct {
	ID         string
	Predicates []domain.ChallengeType
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Nonce      string
	Signature  string
}

// ConsumeResult is the outcome of a Consume call.
type ConsumeResult int

const (
	ConsumeOK ConsumeResult = iota
	ConsumeExpired
	ConsumeInvalidSignature
	ConsumeNotFound
	ConsumeAlreadyConsumed
)

func (r ConsumeResult) String() string {
	switch r {
	case ConsumeOK:
		return "OK"
	case ConsumeExpired:
		return "EXPIRED"
	case ConsumeInvalidSignature:
		return "INVALID_SIGNATURE"
	case ConsumeNotFound:
		return "NOT_FOUND"
	case ConsumeAlreadyConsumed:
		return "ALREADY_CONSUMED"
	default:
		return "UNKNOWN"
	}
}

// StoreConfig holds configuration for the challenge store.
type StoreConfig struct {
	// Secret keys the HMAC; the caller validates its length.
	Secret []byte
	// TTL is the challenge lifetime.
	TTL time.Duration
	// PredicateCount is how many predicates each challenge carries.
	PredicateCount int
	// SweepInterval is the background eviction period.
	SweepInterval time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// DefaultStoreConfig returns default configuration.
func DefaultStoreConfig(secret []byte) StoreConfig {
	return StoreConfig{
		Secret:         secret,
		TTL:            120 * time.Second,
		PredicateCount: 2,
		SweepInterval:  30 * time.Second,
	}
}

type entry struct {
	rec      Record
	consumed bool
}

// Store is the process-wide challenge map. A single mutex serializes
// mutations, which makes consume linearizable per id.
type Store struct {
	cfg     StoreConfig
	now     func() time.Time
	mu      sync.Mutex
	records map[string]*entry
	done    chan struct{}
}

// NewStore creates a store and starts its background sweeper.
func NewStore(cfg StoreConfig) *Store {
	if cfg.PredicateCount < 1 {
		cfg.PredicateCount = 1
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		cfg:     cfg,
		now:     now,
		records: make(map[string]*entry),
		done:    make(chan struct{}),
	}

	go s.sweep()

	return s
}

// Stop shuts down the background sweeper.
func (s *Store) Stop() {
	close(s.done)
}

// Issue creates, signs and stores a fresh challenge. Predicates are chosen
// independently and uniformly with replacement.
func (s *Store) Issue() (*Record, error) {
	predicates := make([]domain.ChallengeType, s.cfg.PredicateCount)
	for i := range predicates {
		n, err := randomIndex(len(allPredicates))
		if err != nil {
			return nil, fmt.Errorf("pick predicate: %w", err)
		}
		predicates[i] = allPredicates[n]
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	issuedAt := s.now()
	rec := Record{
		ID:         uuid.New().String(),
		Predicates: predicates,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(s.cfg.TTL),
		Nonce:      hex.EncodeToString(nonce),
	}
	rec.Signature = s.sign(rec)

	s.mu.Lock()
	s.evictExpiredLocked(evictScanLimit)
	s.records[rec.ID] = &entry{rec: rec}
	s.mu.Unlock()

	return &rec, nil
}

// Lookup returns a snapshot of the record. Expired records are treated as
// absent and dropped on access; consumed records are terminal and absent.
func (s *Store) Lookup(id string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.records[id]
	if !ok || e.consumed {
		return nil, false
	}
	if s.now().After(e.rec.ExpiresAt) {
		delete(s.records, id)
		return nil, false
	}

	rec := e.rec
	rec.Predicates = append([]domain.ChallengeType(nil), e.rec.Predicates...)
	return &rec, true
}

// Consume atomically verifies the claimed signature and marks the challenge
// consumed. At most one call per id ever returns ConsumeOK.
func (s *Store) Consume(id, claimedSignature string) ConsumeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked(evictScanLimit)

	e, ok := s.records[id]
	if !ok {
		return ConsumeNotFound
	}
	if e.consumed {
		return ConsumeAlreadyConsumed
	}
	if s.now().After(e.rec.ExpiresAt) {
		delete(s.records, id)
		return ConsumeExpired
	}
	if !hmac.Equal([]byte(claimedSignature), []byte(e.rec.Signature)) {
		return ConsumeInvalidSignature
	}

	e.consumed = true
	return ConsumeOK
}

// Len reports the number of live entries, consumed tombstones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// sign computes the hex HMAC-SHA256 over the canonical record encoding
// id:predicates:expiresAt:nonce.
func (s *Store) sign(rec Record) string {
	preds := make([]string, len(rec.Predicates))
	for i, p := range rec.Predicates {
		preds[i] = string(p)
	}
	msg := fmt.Sprintf("%s:%s:%d:%s", rec.ID, strings.Join(preds, ","), rec.ExpiresAt.Unix(), rec.Nonce)

	mac := hmac.New(sha256.New, s.cfg.Secret)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// evictExpiredLocked drops up to limit expired entries. Caller holds the
// mutex.
func (s *Store) evictExpiredLocked(limit int) {
	now := s.now()
	scanned := 0
	for id, e := range s.records {
		if scanned >= limit {
			return
		}
		scanned++
		if now.After(e.rec.ExpiresAt) {
			delete(s.records, id)
		}
	}
}

// sweep periodically drops every expired entry to bound memory.
func (s *Store) sweep() {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for id, e := range s.records {
				if now.After(e.rec.ExpiresAt) {
					delete(s.records, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// randomIndex draws a uniform index in [0, n) from crypto/rand.
func randomIndex(n int) (int, error) {
	var b [1]byte
	max := 256 - (256 % n)
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, err
		}
		if int(b[0]) < max {
			return int(b[0]) % n, nil
		}
	}
}

// Question returns the user-facing prompt for a predicate.
func Question(t domain.ChallengeType) string {
	switch t {
	case domain.ChallengeBlink:
		return "Please blink your eyes"
	case domain.ChallengeTurnLeft:
		return "Please turn your head to the left"
	case domain.ChallengeTurnRight:
		return "Please turn your head to the right"
	default:
		return ""
	}
}

// Instruction returns the on-screen hint for a predicate.
func Instruction(t domain.ChallengeType) string {
	switch t {
	case domain.ChallengeBlink:
		return "Blink naturally while looking at the camera"
	case domain.ChallengeTurnLeft:
		return "Slowly turn your head to your left, then back to center"
	case domain.ChallengeTurnRight:
		return "Slowly turn your head to your right, then back to center"
	default:
		return ""
	}
}
