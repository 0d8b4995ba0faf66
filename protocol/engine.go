// Package protocol implements the six operations of the Mystery
// Protocol: register, commit, transform, prize generation, finalize and
// verify, plus the correct_sequence test/UI utility. It is the component everything else in
// this module feeds: C1 mappings, C2 contexts, and C3 prize chunks all
// converge here.
package protocol

import (
	"math/big"

	"github.com/summitto/mystery-protocol/alphabet"
	"github.com/summitto/mystery-protocol/hectx"
	"github.com/summitto/mystery-protocol/internal/cryptoutil"
	"github.com/summitto/mystery-protocol/internal/randfield"
	"github.com/summitto/mystery-protocol/internal/wire"
	"github.com/summitto/mystery-protocol/prizecodec"
)

// CommitPackage is what verifierCommit produces: only Commitment is meant
// to cross to the Owner first; the rest is revealed in the transform round.
type CommitPackage struct {
	Commitment []byte
	Salt       []byte
	PwSalt     []byte
	Mappings   []alphabet.Mapping
}

// FinalPackage is owner_finalize's output: the sequence ciphertexts and
// prize chunks, both re-encrypted under the Verifier's public key.
type FinalPackage struct {
	SequenceData  []*hectx.Ciphertext
	PrizeChunks   [prizecodec.CodeBytes]*hectx.Ciphertext
	PwSalt        []byte
	ChunkBits     int
	NumChunks     int
	RSParityBytes int
}

// OwnerRegister one-hot-encrypts each character of the Owner's secret under
// the Owner's own context.
func OwnerRegister(ownerPriv *hectx.PrivateContext, secret string) ([]*hectx.Ciphertext, error) {
	runes := []rune(secret)
	out := make([]*hectx.Ciphertext, len(runes))
	for i, r := range runes {
		v := make([]uint64, len(alphabet.Alphabet))
		if idx := alphabet.Index(r); idx >= 0 {
			v[idx] = 1
		}
		ct, err := ownerPriv.EncryptVec(v)
		if err != nil {
			return nil, err
		}
		out[i] = ct
	}
	return out, nil
}

// VerifierCommit draws fresh salts and commits to mappings, returning the
// full package; callers transmit only Commitment until the transform round.
func VerifierCommit(mappings []alphabet.Mapping) (*CommitPackage, error) {
	salt := randfield.Bytes(32)
	pwSalt := randfield.Bytes(32)
	canon, err := wire.CanonicalJSON(mappings)
	if err != nil {
		return nil, err
	}
	commitment := cryptoutil.Sha256(cryptoutil.Concat(salt, canon))
	return &CommitPackage{
		Commitment: commitment,
		Salt:       salt,
		PwSalt:     pwSalt,
		Mappings:   mappings,
	}, nil
}

// VerifierTransform applies each mapping's segment image to the
// corresponding one-hot ciphertext via a ciphertext-plaintext dot product,
// under the Owner's public key so only the Owner can decrypt the result.
func VerifierTransform(ownerPub *hectx.PublicContext, registered []*hectx.Ciphertext, mappings []alphabet.Mapping) ([]*hectx.Ciphertext, error) {
	if len(registered) != len(mappings) {
		return nil, ErrLengthMismatch
	}
	out := make([]*hectx.Ciphertext, len(registered))
	for i, r := range registered {
		w := make([]uint64, len(alphabet.Alphabet))
		for j, c := range alphabet.Alphabet {
			w[j] = uint64(mappings[i][string(c)])
		}
		out[i] = ownerPub.Dot(r, w)
	}
	return out, nil
}

// GeneratePrize RS-encodes the prize and encrypts each codeword byte under
// the Owner's own public key, per spec.md's generate_prize(owner_public_context).
// The plaintext prize never needs to leave the Owner's process: OwnerFinalize
// is the only place it is ever decrypted again.
func GeneratePrize(ownerPub *hectx.PublicContext, prize *big.Int) ([prizecodec.CodeBytes]*hectx.Ciphertext, error) {
	var out [prizecodec.CodeBytes]*hectx.Ciphertext
	block, err := prizecodec.EncodePrize(prize)
	if err != nil {
		return out, err
	}
	for i, b := range block {
		out[i] = ownerPub.EncryptScalar(uint64(b))
	}
	return out, nil
}

// OwnerFinalize recomputes and checks the commitment, decrypts the
// transformed sequence to recover the password sequence, decrypts the
// RS-encoded prize chunks generated by GeneratePrize, derives the prize
// keystream from the recovered sequence, and bridges both the sequence and
// the protected prize chunks into ciphertexts under the Verifier's key. The
// decrypted password sequence and prize bytes never leave this function.
func OwnerFinalize(
	ownerPriv *hectx.PrivateContext,
	verifierPub *hectx.PublicContext,
	transformed []*hectx.Ciphertext,
	salt []byte,
	mappings []alphabet.Mapping,
	pwSalt []byte,
	expectedCommitment []byte,
	prizeCiphertext [prizecodec.CodeBytes]*hectx.Ciphertext,
) (*FinalPackage, error) {
	canon, err := wire.CanonicalJSON(mappings)
	if err != nil {
		return nil, err
	}
	recomputed := cryptoutil.Sha256(cryptoutil.Concat(salt, canon))
	if !bytesEqual(recomputed, expectedCommitment) {
		return nil, ErrCommitmentMismatch
	}

	sequence := make([]uint64, len(transformed))
	for i, t := range transformed {
		sequence[i] = ownerPriv.DecryptScalar(t)
	}

	var prizeBlock [prizecodec.CodeBytes]byte
	for i, ct := range prizeCiphertext {
		prizeBlock[i] = byte(ownerPriv.DecryptScalar(ct))
	}

	protected := prizecodec.Protect(prizeBlock, pwSalt, sequence)

	var prizeCiphertexts [prizecodec.CodeBytes]*hectx.Ciphertext
	for i, b := range protected {
		prizeCiphertexts[i] = verifierPub.EncryptScalar(uint64(b))
	}

	sequenceData := make([]*hectx.Ciphertext, len(sequence))
	for i, m := range sequence {
		sequenceData[i] = verifierPub.EncryptScalar(m)
	}

	return &FinalPackage{
		SequenceData:  sequenceData,
		PrizeChunks:   prizeCiphertexts,
		PwSalt:        pwSalt,
		ChunkBits:     8,
		NumChunks:     prizecodec.CodeBytes,
		RSParityBytes: prizecodec.ParityBytes,
	}, nil
}

// VerifyResult is verifier_verify's outcome.
type VerifyResult struct {
	IsMatch bool
	Prize   *big.Int
	// PrizeErr records a genuine match whose prize bytes could not be
	// reconstructed (an internal packaging defect, not an authentication
	// failure). Never set when IsMatch is false.
	PrizeErr error
}

// VerifierVerify computes the blinded squared-distance between final's
// sequence and target entirely under ciphertext, decrypts only the
// blinded residue, and — on a match — unwinds the prize keystream and
// RS-decodes the prize.
func VerifierVerify(verifierPriv *hectx.PrivateContext, final *FinalPackage, target []uint64) VerifyResult {
	var sum *hectx.Ciphertext
	for i, f := range final.SequenceData {
		var t uint64
		if i < len(target) {
			t = target[i]
		}
		diff := verifierPriv.SubPlainScalar(f, t)
		sq := verifierPriv.Square(diff)
		if sum == nil {
			sum = sq
		} else {
			sum = verifierPriv.Add(sum, sq)
		}
	}
	if sum == nil {
		// No sequence positions at all: vacuously equal.
		return VerifyResult{IsMatch: true, Prize: recoverPrize(verifierPriv, final, target)}
	}

	blinder := randfield.Nonzero(hectx.PlainModulus)
	blinded := verifierPriv.MulPlainScalar(sum, blinder)
	sigma := verifierPriv.DecryptScalar(blinded)

	if sigma != 0 {
		return VerifyResult{IsMatch: false}
	}

	prize := recoverPrize(verifierPriv, final, target)
	if prize == nil {
		return VerifyResult{IsMatch: true, PrizeErr: prizecodec.ErrPrizeUnrecoverable}
	}
	return VerifyResult{IsMatch: true, Prize: prize}
}

func recoverPrize(verifierPriv *hectx.PrivateContext, final *FinalPackage, target []uint64) *big.Int {
	n := len(final.SequenceData)
	if n > len(target) {
		n = len(target)
	}
	var protected [prizecodec.CodeBytes]byte
	for i, ct := range final.PrizeChunks {
		protected[i] = byte(verifierPriv.DecryptScalar(ct))
	}
	rsBlock := prizecodec.Unprotect(protected, final.PwSalt, target[:n])
	prize, err := prizecodec.DecodePrize(rsBlock)
	if err != nil {
		return nil
	}
	return prize
}

// CorrectSequence is the test/UI helper out[i] = mappings[i][s[i]] for
// i < min(len(mappings), len(s)).
func CorrectSequence(mappings []alphabet.Mapping, s string) []uint64 {
	runes := []rune(s)
	n := len(mappings)
	if len(runes) < n {
		n = len(runes)
	}
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = uint64(mappings[i][string(runes[i])])
	}
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
