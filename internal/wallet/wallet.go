package wallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
	bip39 "github.com/tyler-smith/go-bip39"
)

// ErrImport is returned when no supported key form parses. The import flow
// aborts on it rather than re-prompting so secret material does not linger in
// an open prompt.
var ErrImport = errors.New("could not import wallet: invalid key or mnemonic")

// Wallet holds an imported ed25519 keypair.
type Wallet struct {
	priv ed25519.PrivateKey
}

// PublicKey returns the base58 public key for display.
func (w *Wallet) PublicKey() string {
	return base58.Encode(w.priv.Public().(ed25519.PublicKey))
}

// Import parses key material in one of three forms, tried in order: a
// bracketed list of 32 or 64 integers, a base58-encoded 32- or 64-byte
// secret, or a 12/24-word mnemonic with a valid checksum (derived at
// m/44'/501'/0'/0'). The first form that parses wins.
func Import(input string) (*Wallet, error) {
	input = strings.TrimSpace(input)

	if strings.HasPrefix(input, "[") && strings.HasSuffix(input, "]") {
		if w := fromIntList(input); w != nil {
			return w, nil
		}
	}

	if decoded, err := base58.Decode(input); err == nil {
		if w := fromSecretBytes(decoded); w != nil {
			return w, nil
		}
	}

	words := strings.Fields(input)
	if len(words) == 12 || len(words) == 24 {
		mnemonic := strings.Join(words, " ")
		if !bip39.IsMnemonicValid(mnemonic) {
			return nil, ErrImport
		}
		seed := bip39.NewSeed(mnemonic, "")
		return &Wallet{priv: deriveSolanaKey(seed)}, nil
	}

	return nil, ErrImport
}

func fromIntList(input string) *Wallet {
	var raw []int
	if err := json.Unmarshal([]byte(input), &raw); err != nil {
		return nil
	}
	if len(raw) != 32 && len(raw) != 64 {
		return nil
	}
	buf := make([]byte, len(raw))
	for i, v := range raw {
		if v < 0 || v > 255 {
			return nil
		}
		buf[i] = byte(v)
	}
	return fromSecretBytes(buf)
}

func fromSecretBytes(secret []byte) *Wallet {
	switch len(secret) {
	case ed25519.SeedSize:
		return &Wallet{priv: ed25519.NewKeyFromSeed(secret)}
	case ed25519.PrivateKeySize:
		return &Wallet{priv: ed25519.PrivateKey(secret)}
	default:
		return nil
	}
}

// deriveSolanaKey walks the SLIP-0010 ed25519 path m/44'/501'/0'/0' from a
// bip39 seed. All segments are hardened; ed25519 allows nothing else.
func deriveSolanaKey(seed []byte) ed25519.PrivateKey {
	mac := hmac.New(sha512.New, []byte("ed25519 seed"))
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chain := sum[:32], sum[32:]

	for _, segment := range []uint32{44, 501, 0, 0} {
		data := make([]byte, 0, 37)
		data = append(data, 0x00)
		data = append(data, key...)
		var idx [4]byte
		binary.BigEndian.PutUint32(idx[:], segment|0x80000000)
		data = append(data, idx[:]...)

		mac = hmac.New(sha512.New, chain)
		mac.Write(data)
		sum = mac.Sum(nil)
		key, chain = sum[:32], sum[32:]
	}

	return ed25519.NewKeyFromSeed(key)
}
