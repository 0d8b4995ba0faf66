// Package hectx manages BFV homomorphic-encryption contexts: keypair
// provisioning, serialization, and the vector/scalar encrypt-decrypt-dot
// operations the protocol engine builds on. It wraps
// github.com/ldsec/lattigo/v2/bfv so the rest of the module never imports
// lattigo types directly, mirroring the way the teacher repo hides its
// Paillier circuit evaluator behind a narrow session-facing API.
package hectx

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/ldsec/lattigo/v2/bfv"
	"github.com/ldsec/lattigo/v2/rlwe"
)

// Slots is the number of plaintext slots BFV packs per ciphertext at these
// parameters (poly-mod-degree 8192).
const Slots = 1 << 13

// PlainModulus is the BFV plaintext modulus shared by every context. It is
// prime, which is what makes the blinded-equality zero-check in the
// protocol engine exact.
const PlainModulus = 65537

func paramsLiteral() bfv.ParametersLiteral {
	lit := bfv.PN13QP218
	lit.T = PlainModulus
	return lit
}

func buildParams() bfv.Parameters {
	params, err := bfv.NewParametersFromLiteral(paramsLiteral())
	if err != nil {
		panic("hectx: bad parameter literal: " + err.Error())
	}
	return params
}

// Ciphertext is a serializable handle to a *bfv.Ciphertext, opaque to
// callers outside this package.
type Ciphertext struct{ ct *bfv.Ciphertext }

// MarshalBinary implements encoding.BinaryMarshaler.
func (c *Ciphertext) MarshalBinary() ([]byte, error) { return c.ct.MarshalBinary() }

// UnmarshalCiphertext decodes bytes produced by MarshalBinary.
func UnmarshalCiphertext(data []byte) (*Ciphertext, error) {
	ct := new(bfv.Ciphertext)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("hectx: unmarshal ciphertext: %w", err)
	}
	return &Ciphertext{ct: ct}, nil
}

// PublicContext holds everything a party needs to encrypt for, and compute
// homomorphically against, a given key owner, without their secret key.
type PublicContext struct {
	params    bfv.Parameters
	pk        *rlwe.PublicKey
	rlk       *rlwe.RelinearizationKey
	rtks      *rlwe.RotationKeySet
	encoder   bfv.Encoder
	encryptor bfv.Encryptor
	evaluator bfv.Evaluator
}

// PrivateContext additionally holds the secret key and can decrypt.
type PrivateContext struct {
	*PublicContext
	sk        *rlwe.SecretKey
	decryptor bfv.Decryptor
}

// Provision generates a fresh keypair, a relinearization key (for the one
// ciphertext-ciphertext multiplication the equality check performs), and
// the Galois/rotation keys InnerSum needs to fold a one-hot dot product
// down to a single slot — then wraps both the private and the public-only
// view of that material.
func Provision() (*PrivateContext, *PublicContext, error) {
	params := buildParams()
	kgen := bfv.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPair()
	rlk := kgen.GenRelinearizationKey(sk, 1)
	rtks := kgen.GenRotationKeysForInnerSum(sk)

	encoder := bfv.NewEncoder(params)
	evalKey := rlwe.EvaluationKey{Rlk: rlk, Rtks: rtks}

	pub := &PublicContext{
		params:    params,
		pk:        pk,
		rlk:       rlk,
		rtks:      rtks,
		encoder:   encoder,
		encryptor: bfv.NewEncryptor(params, pk),
		evaluator: bfv.NewEvaluator(params, evalKey),
	}
	priv := &PrivateContext{
		PublicContext: pub,
		sk:            sk,
		decryptor:     bfv.NewDecryptor(params, sk),
	}
	return priv, pub, nil
}

// wireContext is the gob-serializable form of a context's key material.
type wireContext struct {
	ParamsLiteral bfv.ParametersLiteral
	PK            []byte
	RLK           []byte
	RTKS          []byte
	SK            []byte // empty for a public-only context
}

// Serialize exports ctx's key material (public parts only; SK is empty).
func (pub *PublicContext) Serialize() ([]byte, error) {
	return serializeContext(pub, nil)
}

// Serialize exports the full private context, including the secret key.
// Callers must keep this blob exactly as confidential as the key itself.
func (priv *PrivateContext) Serialize() ([]byte, error) {
	return serializeContext(priv.PublicContext, priv.sk)
}

func serializeContext(pub *PublicContext, sk *rlwe.SecretKey) ([]byte, error) {
	pkBytes, err := pub.pk.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("hectx: marshal pk: %w", err)
	}
	rlkBytes, err := pub.rlk.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("hectx: marshal rlk: %w", err)
	}
	rtksBytes, err := pub.rtks.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("hectx: marshal rtks: %w", err)
	}
	w := wireContext{
		ParamsLiteral: paramsLiteral(),
		PK:            pkBytes,
		RLK:           rlkBytes,
		RTKS:          rtksBytes,
	}
	if sk != nil {
		skBytes, err := sk.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("hectx: marshal sk: %w", err)
		}
		w.SK = skBytes
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, fmt.Errorf("hectx: gob encode: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadPublic reconstructs a public-only context from Serialize output
// (either a PublicContext or PrivateContext blob; the secret key, if
// present, is ignored).
func LoadPublic(data []byte) (*PublicContext, error) {
	w, params, err := decodeWireContext(data)
	if err != nil {
		return nil, err
	}
	pk := new(rlwe.PublicKey)
	if err := pk.UnmarshalBinary(w.PK); err != nil {
		return nil, fmt.Errorf("hectx: unmarshal pk: %w", err)
	}
	rlk := new(rlwe.RelinearizationKey)
	if err := rlk.UnmarshalBinary(w.RLK); err != nil {
		return nil, fmt.Errorf("hectx: unmarshal rlk: %w", err)
	}
	rtks := new(rlwe.RotationKeySet)
	if err := rtks.UnmarshalBinary(w.RTKS); err != nil {
		return nil, fmt.Errorf("hectx: unmarshal rtks: %w", err)
	}
	return &PublicContext{
		params:    params,
		pk:        pk,
		rlk:       rlk,
		rtks:      rtks,
		encoder:   bfv.NewEncoder(params),
		encryptor: bfv.NewEncryptor(params, pk),
		evaluator: bfv.NewEvaluator(params, rlwe.EvaluationKey{Rlk: rlk, Rtks: rtks}),
	}, nil
}

// LoadPrivate reconstructs a private context; fails if data carries no
// secret key.
func LoadPrivate(data []byte) (*PrivateContext, error) {
	w, params, err := decodeWireContext(data)
	if err != nil {
		return nil, err
	}
	if len(w.SK) == 0 {
		return nil, fmt.Errorf("hectx: blob carries no secret key")
	}
	pub, err := LoadPublic(data)
	if err != nil {
		return nil, err
	}
	sk := new(rlwe.SecretKey)
	if err := sk.UnmarshalBinary(w.SK); err != nil {
		return nil, fmt.Errorf("hectx: unmarshal sk: %w", err)
	}
	return &PrivateContext{
		PublicContext: pub,
		sk:            sk,
		decryptor:     bfv.NewDecryptor(params, sk),
	}, nil
}

func decodeWireContext(data []byte) (wireContext, bfv.Parameters, error) {
	var w wireContext
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return wireContext{}, bfv.Parameters{}, fmt.Errorf("hectx: gob decode: %w", err)
	}
	params, err := bfv.NewParametersFromLiteral(w.ParamsLiteral)
	if err != nil {
		return wireContext{}, bfv.Parameters{}, fmt.Errorf("hectx: rebuild params: %w", err)
	}
	return w, params, nil
}

// EncryptVec one-hot/vector-encrypts v (padded with zeros to Slots) under
// pub.
func (pub *PublicContext) EncryptVec(v []uint64) (*Ciphertext, error) {
	if len(v) > Slots {
		return nil, fmt.Errorf("hectx: vector longer than %d slots", Slots)
	}
	padded := make([]uint64, Slots)
	copy(padded, v)
	pt := bfv.NewPlaintext(pub.params)
	pub.encoder.EncodeUint(padded, pt)
	return &Ciphertext{ct: pub.encryptor.EncryptNew(pt)}, nil
}

// EncryptScalar encrypts x into slot 0 (all other slots zero).
func (pub *PublicContext) EncryptScalar(x uint64) *Ciphertext {
	v := make([]uint64, Slots)
	v[0] = x
	pt := bfv.NewPlaintext(pub.params)
	pub.encoder.EncodeUint(v, pt)
	return &Ciphertext{ct: pub.encryptor.EncryptNew(pt)}
}

func (pub *PublicContext) encodePlain(v []uint64) *bfv.Plaintext {
	padded := make([]uint64, Slots)
	copy(padded, v)
	pt := bfv.NewPlaintext(pub.params)
	pub.encoder.EncodeUint(padded, pt)
	return pt
}

// DecryptScalar decrypts c and returns slot 0.
func (priv *PrivateContext) DecryptScalar(c *Ciphertext) uint64 {
	pt := priv.decryptor.DecryptNew(c.ct)
	return priv.encoder.DecodeUintNew(pt)[0]
}

// Dot computes the ciphertext-plaintext inner product <v, w>: pointwise
// multiply by the plaintext weight vector w (no relinearization needed,
// since a plaintext multiplication does not raise ciphertext degree), then
// fold every slot into slot 0 via InnerSum using the provisioned rotation
// keys.
func (pub *PublicContext) Dot(v *Ciphertext, w []uint64) *Ciphertext {
	wPt := pub.encodePlain(w)
	prod := bfv.NewCiphertext(pub.params, 1)
	pub.evaluator.Mul(v.ct, wPt, prod)
	summed := bfv.NewCiphertext(pub.params, 1)
	pub.evaluator.InnerSum(prod, summed)
	return &Ciphertext{ct: summed}
}

// SubPlainScalar returns c - y (y placed at slot 0, all other slots 0, so
// only slot 0 of the result is affected).
func (pub *PublicContext) SubPlainScalar(c *Ciphertext, y uint64) *Ciphertext {
	v := make([]uint64, Slots)
	v[0] = y
	pt := pub.encodePlain(v)
	out := bfv.NewCiphertext(pub.params, c.ct.Degree())
	pub.evaluator.Sub(c.ct, pt, out)
	return &Ciphertext{ct: out}
}

// Square computes c*c and relinearizes, the only ciphertext-ciphertext
// multiplication the protocol ever performs (depth 1).
func (pub *PublicContext) Square(c *Ciphertext) *Ciphertext {
	prod := bfv.NewCiphertext(pub.params, 2)
	pub.evaluator.Mul(c.ct, c.ct, prod)
	out := bfv.NewCiphertext(pub.params, 1)
	pub.evaluator.Relinearize(prod, out)
	return &Ciphertext{ct: out}
}

// Add returns a + b.
func (pub *PublicContext) Add(a, b *Ciphertext) *Ciphertext {
	out := bfv.NewCiphertext(pub.params, a.ct.Degree())
	pub.evaluator.Add(a.ct, b.ct, out)
	return &Ciphertext{ct: out}
}

// MulPlainScalar returns c * b (pointwise scalar multiplication, no
// relinearization needed).
func (pub *PublicContext) MulPlainScalar(c *Ciphertext, b uint64) *Ciphertext {
	v := make([]uint64, Slots)
	for i := range v {
		v[i] = b
	}
	pt := pub.encodePlain(v)
	out := bfv.NewCiphertext(pub.params, c.ct.Degree())
	pub.evaluator.Mul(c.ct, pt, out)
	return &Ciphertext{ct: out}
}

// ReencryptVector decrypts each ciphertext under priv and re-encrypts it as
// a fresh single-slot ciphertext under target's public key. The bridge
// never lets the decrypted integers cross any boundary other than this
// in-process loop.
func (priv *PrivateContext) ReencryptVector(cs []*Ciphertext, target *PublicContext) []*Ciphertext {
	out := make([]*Ciphertext, len(cs))
	for i, c := range cs {
		x := priv.DecryptScalar(c)
		out[i] = target.EncryptScalar(x)
	}
	return out
}
