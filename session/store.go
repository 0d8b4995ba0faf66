// Package session implements the session store and rate limiter: durable
// challenge artifacts, single-use semantics, per-user failed-attempt
// budgets, and session lifetimes. The concurrency shape — a map guarded by
// a single mutex plus a background goroutine that lazily reaps stale
// entries — is adapted from the teacher repo's session manager; the
// content underneath is rewritten entirely for challenge packages,
// sessions, and verification attempts instead of notary protocol steps.
package session

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/summitto/mystery-protocol/alphabet"
	"github.com/summitto/mystery-protocol/hectx"
	"github.com/summitto/mystery-protocol/internal/cryptoutil"
	"github.com/summitto/mystery-protocol/internal/wire"
	"github.com/summitto/mystery-protocol/protocol"
)

// Params bundles the tunable parameters named in the external-interfaces
// section: segment count lives per-submission, everything else here is a
// store-wide constant.
type Params struct {
	ExtendedMappingLength        int
	MaxAttemptsPerSession        int
	FailedAttemptsPerHourPerUser int
	MonitorInterval              time.Duration
	SessionMaxAge                time.Duration
}

// DefaultParams matches the spec's tunable-parameter table.
func DefaultParams() Params {
	return Params{
		ExtendedMappingLength:        64,
		MaxAttemptsPerSession:        3,
		FailedAttemptsPerHourPerUser: 20,
		MonitorInterval:              time.Minute,
		SessionMaxAge:                24 * time.Hour,
	}
}

// ChallengeDataFile is the immutable artifact produced once per
// registration.
type ChallengeDataFile struct {
	ID                string
	UserID            string
	KeyName           string
	KeyIndex          int
	FileHash          [32]byte
	MappingHash       [32]byte
	CompressedPackage []byte
	ExtendedMapping   []alphabet.Mapping
	OriginalLength    int // L: the un-extended secret length, for the L-disclosure decision below
	IsUsed            bool
}

// AuthenticationSession binds one Verifier interaction to one challenge
// package.
type AuthenticationSession struct {
	Token               string
	DataFileID          string
	UserID              string
	MappingSequenceHash [32]byte
	CreatedAt           time.Time
	ExpiresAt           time.Time
	IsVerified          bool
	Attempts            int
	MaxAttempts         int
}

// Attempt is an immutable, append-only verification record.
type Attempt struct {
	SessionToken  string
	UserID        string
	WasSuccessful bool
	AttemptedAt   time.Time
}

// IssuedChallenge is what IssueChallenge hands back to a Verifier.
//
// SecretLength resolves the spec's open "L disclosure" question via option
// (a): the session carries the original secret length alongside the
// extended mapping, instead of requiring L == len(ExtendedMapping).
type IssuedChallenge struct {
	SessionToken    string
	ExtendedMapping []alphabet.Mapping
	ExpiresAt       time.Time
	SecretLength    int
}

// VerifyOutcome is Verify's result.
type VerifyOutcome struct {
	IsMatch bool
	Prize   *big.Int
}

// Store is the in-memory reference implementation of the session store.
// The relational persistence layer named as out-of-core in the spec can
// implement the same operations against a real database; only this
// in-memory version ships here.
type Store struct {
	mu sync.Mutex

	params Params

	files            map[string]*ChallengeDataFile
	fileHashIndex    map[[32]byte]string
	mappingHashIndex map[[32]byte]string

	sessions map[string]*AuthenticationSession
	attempts []*Attempt

	// unlockedMappingHash enforces I3: at most one successful attempt per
	// mapping_sequence_hash, across every session that ever referenced it.
	unlockedMappingHash map[[32]byte]bool

	stopMonitor chan struct{}
}

// NewStore constructs a store and starts its background stale-session
// reaper.
func NewStore(params Params) *Store {
	s := &Store{
		params:              params,
		files:               make(map[string]*ChallengeDataFile),
		fileHashIndex:       make(map[[32]byte]string),
		mappingHashIndex:    make(map[[32]byte]string),
		sessions:            make(map[string]*AuthenticationSession),
		unlockedMappingHash: make(map[[32]byte]bool),
		stopMonitor:         make(chan struct{}),
	}
	go s.monitorSessions()
	return s
}

// Close stops the background reaper.
func (s *Store) Close() { close(s.stopMonitor) }

// monitorSessions lazily purges sessions long past both their expiry and a
// generous grace period, bounding the store's memory footprint. This is
// pure garbage collection: Verify always re-checks expires_at itself, so
// correctness never depends on the reaper's timing.
func (s *Store) monitorSessions() {
	ticker := time.NewTicker(s.params.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopMonitor:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for token, sess := range s.sessions {
				if now.Sub(sess.ExpiresAt) > s.params.SessionMaxAge {
					log.Printf("session: reaping stale session %s", token)
					delete(s.sessions, token)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Submit validates, dedups, and persists a challenge package.
func (s *Store) Submit(compressedPackage []byte, mappings []alphabet.Mapping, userID, keyName string, keyIndex, segments int) (string, error) {
	decompressed, err := wire.Decompress(compressedPackage)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	if _, err := protocol.UnmarshalFinalPackage(decompressed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}

	fileHash := sha256.Sum256(compressedPackage)
	canon, err := wire.CanonicalJSON(mappings)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	mappingHash := sha256.Sum256(canon)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.fileHashIndex[fileHash]; ok {
		return "", fmt.Errorf("%w: existing id %s", ErrDuplicateFile, existing)
	}
	if existing, ok := s.mappingHashIndex[mappingHash]; ok {
		return "", fmt.Errorf("%w: existing id %s", ErrDuplicateMapping, existing)
	}

	extended, err := alphabet.Extend(mappings, s.params.ExtendedMappingLength, segments)
	if err != nil {
		return "", err
	}

	id := hex.EncodeToString(fileHash[:])
	record := &ChallengeDataFile{
		ID:                id,
		UserID:            userID,
		KeyName:           keyName,
		KeyIndex:          keyIndex,
		FileHash:          fileHash,
		MappingHash:       mappingHash,
		CompressedPackage: compressedPackage,
		ExtendedMapping:   extended,
		OriginalLength:    len(mappings),
		IsUsed:            false,
	}
	s.files[id] = record
	s.fileHashIndex[fileHash] = id
	s.mappingHashIndex[mappingHash] = id
	return id, nil
}

// IssueChallenge selects the lowest-key_index unused package for
// (userID, keyName), opens a fresh session over it, and returns the
// extended mapping the Verifier should use to build target sequences.
func (s *Store) IssueChallenge(userID, keyName string, timeout time.Duration) (*IssuedChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*ChallengeDataFile
	for _, f := range s.files {
		if f.UserID == userID && f.KeyName == keyName && !f.IsUsed {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoPackage
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].KeyIndex < candidates[j].KeyIndex })
	chosen := candidates[0]

	token := base64.RawURLEncoding.EncodeToString(cryptoutil.GetRandom(32))
	now := time.Now()
	sess := &AuthenticationSession{
		Token:               token,
		DataFileID:          chosen.ID,
		UserID:              userID,
		MappingSequenceHash: chosen.MappingHash,
		CreatedAt:           now,
		ExpiresAt:           now.Add(timeout),
		MaxAttempts:         s.params.MaxAttemptsPerSession,
	}
	s.sessions[token] = sess

	return &IssuedChallenge{
		SessionToken:    token,
		ExtendedMapping: chosen.ExtendedMapping,
		ExpiresAt:       sess.ExpiresAt,
		SecretLength:    chosen.OriginalLength,
	}, nil
}

// rateLimited reports whether userID has >= FailedAttemptsPerHourPerUser
// failed attempts within the trailing hour. Must be called with s.mu held.
func (s *Store) rateLimited(userID string, now time.Time) bool {
	cutoff := now.Add(-time.Hour)
	count := 0
	for _, a := range s.attempts {
		if a.UserID == userID && !a.WasSuccessful && a.AttemptedAt.After(cutoff) {
			count++
		}
	}
	return count >= s.params.FailedAttemptsPerHourPerUser
}

// Verify runs the six-step verification precondition chain and, if they
// all pass, calls into the protocol engine.
func (s *Store) Verify(token string, target []uint64, verifierPrivBlob []byte) (VerifyOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return VerifyOutcome{}, ErrUnknownSession
	}

	now := time.Now()
	if !(sess.ExpiresAt.After(now) && sess.Attempts < sess.MaxAttempts && !sess.IsVerified) {
		return VerifyOutcome{}, ErrSessionClosed
	}

	if s.rateLimited(sess.UserID, now) {
		return VerifyOutcome{}, ErrRateLimited
	}

	if s.unlockedMappingHash[sess.MappingSequenceHash] {
		return VerifyOutcome{}, ErrAlreadyUnlocked
	}

	dataFile, ok := s.files[sess.DataFileID]
	if !ok {
		return VerifyOutcome{}, fmt.Errorf("%w: data file missing", ErrProtocolError)
	}
	compressedPackage := dataFile.CompressedPackage

	verifierPriv, err := hectx.LoadPrivate(verifierPrivBlob)
	if err != nil {
		return VerifyOutcome{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	decompressed, err := wire.Decompress(compressedPackage)
	if err != nil {
		return VerifyOutcome{}, fmt.Errorf("%w: %v", ErrProtocolError, err)
	}
	final, err := protocol.UnmarshalFinalPackage(decompressed)
	if err != nil {
		return VerifyOutcome{}, fmt.Errorf("%w: %v", ErrProtocolError, err)
	}

	result := protocol.VerifierVerify(verifierPriv, final, target)
	if result.PrizeErr != nil {
		log.Printf("session: prize unrecoverable for session %s: %v", token, result.PrizeErr)
	}

	s.attempts = append(s.attempts, &Attempt{
		SessionToken:  token,
		UserID:        sess.UserID,
		WasSuccessful: result.IsMatch,
		AttemptedAt:   now,
	})
	sess.Attempts++
	if result.IsMatch {
		sess.IsVerified = true
		s.unlockedMappingHash[sess.MappingSequenceHash] = true
		if f, ok := s.files[sess.DataFileID]; ok {
			f.IsUsed = true
		}
	}

	return VerifyOutcome{IsMatch: result.IsMatch, Prize: result.Prize}, nil
}

// Stats is a read-only observability projection, carried over from
// original_source's /stats endpoint as a pure store query rather than a
// new transport surface.
type Stats struct {
	TotalFiles    int
	UsedFiles     int
	TotalSessions int
	TotalAttempts int
}

func (s *Store) StatsSnapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := Stats{TotalFiles: len(s.files), TotalSessions: len(s.sessions), TotalAttempts: len(s.attempts)}
	for _, f := range s.files {
		if f.IsUsed {
			stats.UsedFiles++
		}
	}
	return stats
}

// RateLimitStatus reports the trailing-hour failed-attempt count for a
// session's user, carried over from original_source's
// /rate_limit_status/{token} endpoint.
func (s *Store) RateLimitStatus(token string) (failedLastHour int, budget int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return 0, 0, ErrUnknownSession
	}
	cutoff := time.Now().Add(-time.Hour)
	for _, a := range s.attempts {
		if a.UserID == sess.UserID && !a.WasSuccessful && a.AttemptedAt.After(cutoff) {
			failedLastHour++
		}
	}
	return failedLastHour, s.params.FailedAttemptsPerHourPerUser, nil
}
