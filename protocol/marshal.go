package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/summitto/mystery-protocol/hectx"
	"github.com/summitto/mystery-protocol/prizecodec"
)

// wireFinalPackage is the canonical-JSON challenge blob: field names are
// normative (see the external-interfaces wire format), base64-encoded BFV
// ciphertext bytes under base64(bfv_ciphertext_bytes).
type wireFinalPackage struct {
	SequenceData []string      `json:"sequence_data"`
	PrizeData    wirePrizeData `json:"prize_data"`
}

type wirePrizeData struct {
	PrizeChunks      []string `json:"prize_chunks"`
	PasswordHashSalt string   `json:"password_hash_salt"`
	ChunkBits        int      `json:"chunk_bits"`
	NumChunks        int      `json:"num_chunks"`
	RSParityBytes    int      `json:"rs_parity_bytes"`
}

// MarshalFinalPackage renders a FinalPackage as the wire-format JSON
// document. Compression (bz2) is a separate, outer step applied by the
// caller storing or transmitting the result.
func MarshalFinalPackage(f *FinalPackage) ([]byte, error) {
	w := wireFinalPackage{
		SequenceData: make([]string, len(f.SequenceData)),
		PrizeData: wirePrizeData{
			PrizeChunks:      make([]string, len(f.PrizeChunks)),
			PasswordHashSalt: base64.StdEncoding.EncodeToString(f.PwSalt),
			ChunkBits:        f.ChunkBits,
			NumChunks:        f.NumChunks,
			RSParityBytes:    f.RSParityBytes,
		},
	}
	for i, ct := range f.SequenceData {
		b, err := ct.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal sequence_data[%d]: %w", i, err)
		}
		w.SequenceData[i] = base64.StdEncoding.EncodeToString(b)
	}
	for i, ct := range f.PrizeChunks {
		b, err := ct.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal prize_chunks[%d]: %w", i, err)
		}
		w.PrizeData.PrizeChunks[i] = base64.StdEncoding.EncodeToString(b)
	}
	return json.Marshal(w)
}

// UnmarshalFinalPackage parses wire-format JSON back into a FinalPackage.
func UnmarshalFinalPackage(data []byte) (*FinalPackage, error) {
	var w wireFinalPackage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("protocol: unmarshal challenge blob: %w", err)
	}
	if len(w.PrizeData.PrizeChunks) != prizecodec.CodeBytes {
		return nil, fmt.Errorf("protocol: expected %d prize chunks, got %d", prizecodec.CodeBytes, len(w.PrizeData.PrizeChunks))
	}

	f := &FinalPackage{
		SequenceData:  make([]*hectx.Ciphertext, len(w.SequenceData)),
		ChunkBits:     w.PrizeData.ChunkBits,
		NumChunks:     w.PrizeData.NumChunks,
		RSParityBytes: w.PrizeData.RSParityBytes,
	}
	pwSalt, err := base64.StdEncoding.DecodeString(w.PrizeData.PasswordHashSalt)
	if err != nil {
		return nil, fmt.Errorf("protocol: decode password_hash_salt: %w", err)
	}
	f.PwSalt = pwSalt

	for i, s := range w.SequenceData {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode sequence_data[%d]: %w", i, err)
		}
		ct, err := hectx.UnmarshalCiphertext(raw)
		if err != nil {
			return nil, fmt.Errorf("protocol: sequence_data[%d]: %w", i, err)
		}
		f.SequenceData[i] = ct
	}
	for i, s := range w.PrizeData.PrizeChunks {
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode prize_chunks[%d]: %w", i, err)
		}
		ct, err := hectx.UnmarshalCiphertext(raw)
		if err != nil {
			return nil, fmt.Errorf("protocol: prize_chunks[%d]: %w", i, err)
		}
		f.PrizeChunks[i] = ct
	}
	return f, nil
}
