package economy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// WalletSigner signs transactions on behalf of a player. In production this
// is the player's wallet adapter; tools and tests use a local Keypair.
type WalletSigner interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// Keypair is an in-process ed25519 signer.
type Keypair struct {
	key solana.PrivateKey
}

var _ WalletSigner = (*Keypair)(nil)

func NewKeypair(key solana.PrivateKey) (*Keypair, error) {
	if len(key) != solana.PrivateKeyLength {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidPrivateKeyLength, solana.PrivateKeyLength, len(key))
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Keypair{key: key}, nil
}

// ParseKeypair accepts base58 or a solana-keygen JSON byte array.
func ParseKeypair(material string) (*Keypair, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, fmt.Errorf("%w: empty key material", ErrInvalidPrivateKeyLength)
	}

	var raw []byte
	if strings.HasPrefix(material, "[") {
		if err := json.Unmarshal([]byte(material), &raw); err != nil {
			return nil, fmt.Errorf("failed to decode key array: %w", err)
		}
	} else {
		decoded, err := base58.Decode(material)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base58 key: %w", err)
		}
		raw = decoded
	}
	return NewKeypair(solana.PrivateKey(raw))
}

func LoadKeypairFile(path string) (*Keypair, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}
	return ParseKeypair(string(content))
}

func (k *Keypair) PublicKey() solana.PublicKey {
	return k.key.PublicKey()
}

func (k *Keypair) SignTransaction(_ context.Context, tx *solana.Transaction) error {
	pub := k.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &k.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// SignMessage is used for wallet sign-in challenges.
func (k *Keypair) SignMessage(msg []byte) (solana.Signature, error) {
	return k.key.Sign(msg)
}
