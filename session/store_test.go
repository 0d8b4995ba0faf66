package session

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/summitto/mystery-protocol/alphabet"
	"github.com/summitto/mystery-protocol/hectx"
	"github.com/summitto/mystery-protocol/internal/wire"
	"github.com/summitto/mystery-protocol/protocol"
)

// buildPackage runs the full protocol end-to-end and returns the
// compressed wire-format bytes plus the correct target sequence, so store
// tests can exercise Submit/IssueChallenge/Verify without re-deriving the
// crypto plumbing in every test.
func buildPackage(t *testing.T, secret string, segments int) (compressed []byte, mappings []alphabet.Mapping, target []uint64, verifierPrivBlob []byte) {
	t.Helper()

	ownerPriv, _, err := hectx.Provision()
	if err != nil {
		t.Fatal(err)
	}
	verifierPriv, verifierPub, err := hectx.Provision()
	if err != nil {
		t.Fatal(err)
	}
	verifierPrivBlob, err = verifierPriv.Serialize()
	if err != nil {
		t.Fatal(err)
	}

	mappings, err = alphabet.Generate(len(secret), segments)
	if err != nil {
		t.Fatal(err)
	}
	registered, err := protocol.OwnerRegister(ownerPriv, secret)
	if err != nil {
		t.Fatal(err)
	}
	commitPkg, err := protocol.VerifierCommit(mappings)
	if err != nil {
		t.Fatal(err)
	}
	transformed, err := protocol.VerifierTransform(ownerPriv.PublicContext, registered, commitPkg.Mappings)
	if err != nil {
		t.Fatal(err)
	}
	prizeCiphertext, err := protocol.GeneratePrize(ownerPriv.PublicContext, big.NewInt(42))
	if err != nil {
		t.Fatal(err)
	}
	final, err := protocol.OwnerFinalize(ownerPriv, verifierPub, transformed, commitPkg.Salt, commitPkg.Mappings, commitPkg.PwSalt, commitPkg.Commitment, prizeCiphertext)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := protocol.MarshalFinalPackage(final)
	if err != nil {
		t.Fatal(err)
	}
	compressed, err = wire.Compress(raw)
	if err != nil {
		t.Fatal(err)
	}

	target = protocol.CorrectSequence(mappings, secret)
	return
}

func TestSubmitIssueVerifyHappyPath(t *testing.T) {
	compressed, mappings, target, verifierPrivBlob := buildPackage(t, "hi", 4)

	store := NewStore(DefaultParams())
	defer store.Close()

	id, err := store.Submit(compressed, mappings, "user-1", "key-1", 1, 4)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected non-empty data file id")
	}

	challenge, err := store.IssueChallenge("user-1", "key-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if challenge.SecretLength != 2 {
		t.Fatalf("expected secret length 2, got %d", challenge.SecretLength)
	}

	outcome, err := store.Verify(challenge.SessionToken, target, verifierPrivBlob)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.IsMatch {
		t.Fatal("expected match")
	}
	if outcome.Prize == nil || outcome.Prize.Int64() != 42 {
		t.Fatalf("expected prize 42, got %v", outcome.Prize)
	}
}

func TestDuplicateFileRejected(t *testing.T) {
	compressed, mappings, _, _ := buildPackage(t, "ab", 4)
	store := NewStore(DefaultParams())
	defer store.Close()

	if _, err := store.Submit(compressed, mappings, "u", "k", 1, 4); err != nil {
		t.Fatal(err)
	}
	_, err := store.Submit(compressed, mappings, "u", "k", 2, 4)
	if err == nil {
		t.Fatal("expected duplicate file error")
	}
}

// buildPackageWithMappings is like buildPackage but takes a caller-supplied
// mapping list instead of generating a fresh one, so two packages can be
// built that collide on mapping_sequence_hash while differing in file_hash.
func buildPackageWithMappings(t *testing.T, secret string, mappings []alphabet.Mapping) (compressed []byte) {
	t.Helper()

	ownerPriv, _, err := hectx.Provision()
	if err != nil {
		t.Fatal(err)
	}
	_, verifierPub, err := hectx.Provision()
	if err != nil {
		t.Fatal(err)
	}

	registered, err := protocol.OwnerRegister(ownerPriv, secret)
	if err != nil {
		t.Fatal(err)
	}
	commitPkg, err := protocol.VerifierCommit(mappings)
	if err != nil {
		t.Fatal(err)
	}
	transformed, err := protocol.VerifierTransform(ownerPriv.PublicContext, registered, commitPkg.Mappings)
	if err != nil {
		t.Fatal(err)
	}
	prizeCiphertext, err := protocol.GeneratePrize(ownerPriv.PublicContext, big.NewInt(7))
	if err != nil {
		t.Fatal(err)
	}
	final, err := protocol.OwnerFinalize(ownerPriv, verifierPub, transformed, commitPkg.Salt, commitPkg.Mappings, commitPkg.PwSalt, commitPkg.Commitment, prizeCiphertext)
	if err != nil {
		t.Fatal(err)
	}

	raw, err := protocol.MarshalFinalPackage(final)
	if err != nil {
		t.Fatal(err)
	}
	compressed, err = wire.Compress(raw)
	if err != nil {
		t.Fatal(err)
	}
	return
}

func TestDuplicateMappingDifferentFileRejected(t *testing.T) {
	mappings, err := alphabet.Generate(2, 4)
	if err != nil {
		t.Fatal(err)
	}

	store := NewStore(DefaultParams())
	defer store.Close()

	first := buildPackageWithMappings(t, "ab", mappings)
	if _, err := store.Submit(first, mappings, "u", "k", 1, 4); err != nil {
		t.Fatal(err)
	}

	// Same mapping, fresh keys and ciphertext randomness: a distinct file
	// that still collides on mapping_sequence_hash.
	second := buildPackageWithMappings(t, "ab", mappings)
	_, err = store.Submit(second, mappings, "u", "k", 2, 4)
	if !errors.Is(err, ErrDuplicateMapping) {
		t.Fatalf("expected ErrDuplicateMapping, got %v", err)
	}
}

func TestRateLimitAfter20FailedAttempts(t *testing.T) {
	compressed, mappings, target, verifierPrivBlob := buildPackage(t, "zz", 4)

	params := DefaultParams()
	params.MaxAttemptsPerSession = 1000 // isolate the rate limiter from the per-session attempt cap
	store := NewStore(params)
	defer store.Close()

	if _, err := store.Submit(compressed, mappings, "u", "k", 1, 4); err != nil {
		t.Fatal(err)
	}
	challenge, err := store.IssueChallenge("u", "k", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	wrong := make([]uint64, len(target))
	copy(wrong, target)
	wrong[0]++

	for i := 0; i < 20; i++ {
		if _, err := store.Verify(challenge.SessionToken, wrong, verifierPrivBlob); err != nil {
			t.Fatalf("attempt %d: unexpected error %v", i, err)
		}
	}
	if _, err := store.Verify(challenge.SessionToken, wrong, verifierPrivBlob); err != ErrRateLimited {
		t.Fatalf("expected ErrRateLimited after 20 failed attempts, got %v", err)
	}
}

func TestNoPackageForUnknownUser(t *testing.T) {
	store := NewStore(DefaultParams())
	defer store.Close()
	if _, err := store.IssueChallenge("ghost", "key", time.Hour); err != ErrNoPackage {
		t.Fatalf("expected ErrNoPackage, got %v", err)
	}
}

func TestAscendingKeyIndexOrdering(t *testing.T) {
	store := NewStore(DefaultParams())
	defer store.Close()

	compressedA, mappingsA, _, _ := buildPackage(t, "aa", 4)
	compressedB, mappingsB, _, _ := buildPackage(t, "bb", 4)

	idA, err := store.Submit(compressedA, mappingsA, "u", "k", 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	idB, err := store.Submit(compressedB, mappingsB, "u", "k", 1, 4)
	if err != nil {
		t.Fatal(err)
	}

	first, err := store.IssueChallenge("u", "k", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if first.SessionToken == "" {
		t.Fatal("expected a session token")
	}
	store.mu.Lock()
	gotFirstID := store.sessions[first.SessionToken].DataFileID
	store.mu.Unlock()
	if gotFirstID != idB {
		t.Fatalf("expected first challenge to use lower key_index file %s, got %s", idB, gotFirstID)
	}
	_ = idA
}

func TestSessionClosedAfterMaxAttempts(t *testing.T) {
	compressed, mappings, target, verifierPrivBlob := buildPackage(t, "zz", 4)
	store := NewStore(DefaultParams())
	defer store.Close()

	if _, err := store.Submit(compressed, mappings, "u", "k", 1, 4); err != nil {
		t.Fatal(err)
	}
	challenge, err := store.IssueChallenge("u", "k", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	wrong := make([]uint64, len(target))
	copy(wrong, target)
	wrong[0]++

	for i := 0; i < 3; i++ {
		if _, err := store.Verify(challenge.SessionToken, wrong, verifierPrivBlob); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.Verify(challenge.SessionToken, wrong, verifierPrivBlob); err != ErrSessionClosed {
		t.Fatalf("expected ErrSessionClosed after exhausting attempts, got %v", err)
	}
}

func TestAlreadyUnlockedAfterSuccess(t *testing.T) {
	compressed, mappings, target, verifierPrivBlob := buildPackage(t, "qz", 4)
	store := NewStore(DefaultParams())
	defer store.Close()

	if _, err := store.Submit(compressed, mappings, "u", "k", 1, 4); err != nil {
		t.Fatal(err)
	}
	c1, err := store.IssueChallenge("u", "k", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	// A second session over the same package, opened before the first one
	// succeeds, shares its mapping_sequence_hash.
	c2, err := store.IssueChallenge("u", "k", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Verify(c1.SessionToken, target, verifierPrivBlob); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Verify(c2.SessionToken, target, verifierPrivBlob); err != ErrAlreadyUnlocked {
		t.Fatalf("expected ErrAlreadyUnlocked on a second session after success, got %v", err)
	}

	if _, err := store.IssueChallenge("u", "k", time.Hour); err != ErrNoPackage {
		t.Fatalf("expected no more unused packages, got %v", err)
	}
}
