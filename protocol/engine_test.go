package protocol

import (
	"math/big"
	"testing"

	"github.com/summitto/mystery-protocol/alphabet"
	"github.com/summitto/mystery-protocol/hectx"
)

func setupRound(t *testing.T, secret string, segments int) (
	ownerPriv *hectx.PrivateContext,
	verifierPriv *hectx.PrivateContext,
	final *FinalPackage,
	mappings []alphabet.Mapping,
	prize *big.Int,
) {
	t.Helper()

	var err error
	ownerPriv, _, err = hectx.Provision()
	if err != nil {
		t.Fatal(err)
	}
	var verifierPub *hectx.PublicContext
	verifierPriv, verifierPub, err = hectx.Provision()
	if err != nil {
		t.Fatal(err)
	}

	mappings, err = alphabet.Generate(len(secret), segments)
	if err != nil {
		t.Fatal(err)
	}

	registered, err := OwnerRegister(ownerPriv, secret)
	if err != nil {
		t.Fatal(err)
	}

	commitPkg, err := VerifierCommit(mappings)
	if err != nil {
		t.Fatal(err)
	}

	transformed, err := VerifierTransform(ownerPriv.PublicContext, registered, commitPkg.Mappings)
	if err != nil {
		t.Fatal(err)
	}

	prize = big.NewInt(987654321)
	prizeCiphertext, err := GeneratePrize(ownerPriv.PublicContext, prize)
	if err != nil {
		t.Fatal(err)
	}

	final, err = OwnerFinalize(ownerPriv, verifierPub, transformed, commitPkg.Salt, commitPkg.Mappings, commitPkg.PwSalt, commitPkg.Commitment, prizeCiphertext)
	if err != nil {
		t.Fatal(err)
	}
	return
}

func TestRoundTripCorrectSequenceUnlocksPrize(t *testing.T) {
	secret := "Demo123!"
	_, verifierPriv, final, mappings, prize := setupRound(t, secret, 4)

	target := CorrectSequence(mappings, secret)
	result := VerifierVerify(verifierPriv, final, target)
	if !result.IsMatch {
		t.Fatal("expected match on correct sequence")
	}
	if result.PrizeErr != nil {
		t.Fatalf("unexpected prize error: %v", result.PrizeErr)
	}
	if result.Prize.Cmp(prize) != 0 {
		t.Fatalf("expected prize %v, got %v", prize, result.Prize)
	}
}

func TestMismatchYieldsNoPrize(t *testing.T) {
	secret := "Demo123!"
	_, verifierPriv, final, mappings, _ := setupRound(t, secret, 4)

	target := CorrectSequence(mappings, secret)
	target[0] = (target[0] % 4) + 5 // guaranteed-wrong: 5..8 lies outside the 1..4 segment range

	result := VerifierVerify(verifierPriv, final, target)
	if result.IsMatch {
		t.Fatal("expected mismatch on altered sequence")
	}
	if result.Prize != nil {
		t.Fatal("expected no prize on mismatch")
	}
}

func TestCommitmentMismatchOnTamperedSalt(t *testing.T) {
	ownerPriv, _, err := hectx.Provision()
	if err != nil {
		t.Fatal(err)
	}
	_, verifierPub, err := hectx.Provision()
	if err != nil {
		t.Fatal(err)
	}

	secret := "ab"
	mappings, err := alphabet.Generate(len(secret), 4)
	if err != nil {
		t.Fatal(err)
	}
	registered, err := OwnerRegister(ownerPriv, secret)
	if err != nil {
		t.Fatal(err)
	}
	commitPkg, err := VerifierCommit(mappings)
	if err != nil {
		t.Fatal(err)
	}
	transformed, err := VerifierTransform(ownerPriv.PublicContext, registered, commitPkg.Mappings)
	if err != nil {
		t.Fatal(err)
	}

	tamperedSalt := append([]byte(nil), commitPkg.Salt...)
	tamperedSalt[0] ^= 0xFF

	prizeCiphertext, err := GeneratePrize(ownerPriv.PublicContext, big.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}

	_, err = OwnerFinalize(ownerPriv, verifierPub, transformed, tamperedSalt, commitPkg.Mappings, commitPkg.PwSalt, commitPkg.Commitment, prizeCiphertext)
	if err != ErrCommitmentMismatch {
		t.Fatalf("expected ErrCommitmentMismatch, got %v", err)
	}
}

func TestVerifierTransformLengthMismatch(t *testing.T) {
	ownerPriv, _, err := hectx.Provision()
	if err != nil {
		t.Fatal(err)
	}
	registered, err := OwnerRegister(ownerPriv, "abc")
	if err != nil {
		t.Fatal(err)
	}
	mappings, err := alphabet.Generate(2, 4)
	if err != nil {
		t.Fatal(err)
	}
	_, err = VerifierTransform(ownerPriv.PublicContext, registered, mappings)
	if err != ErrLengthMismatch {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestCorrectSequenceUtility(t *testing.T) {
	mappings, err := alphabet.Generate(3, 4)
	if err != nil {
		t.Fatal(err)
	}
	seq := CorrectSequence(mappings, "xy")
	if len(seq) != 2 {
		t.Fatalf("expected sequence truncated to min(len(mappings),len(s))=2, got %d", len(seq))
	}
}
