package economy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestParseKeypair(t *testing.T) {
	t.Parallel()

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	t.Run("base58", func(t *testing.T) {
		t.Parallel()
		kp, err := ParseKeypair(key.String())
		require.NoError(t, err)
		require.Equal(t, key.PublicKey(), kp.PublicKey())
	})

	t.Run("json array", func(t *testing.T) {
		t.Parallel()
		ints := make([]int, len(key))
		for i, b := range key {
			ints[i] = int(b)
		}
		raw, err := json.Marshal(ints)
		require.NoError(t, err)

		kp, err := ParseKeypair(" " + string(raw) + "\n")
		require.NoError(t, err)
		require.Equal(t, key.PublicKey(), kp.PublicKey())
	})

	t.Run("wrong length", func(t *testing.T) {
		t.Parallel()
		_, err := ParseKeypair("[1,2,3]")
		require.ErrorIs(t, err, ErrInvalidPrivateKeyLength)

		_, err = ParseKeypair(solana.NewWallet().PublicKey().String())
		require.ErrorIs(t, err, ErrInvalidPrivateKeyLength)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		_, err := ParseKeypair("   ")
		require.ErrorIs(t, err, ErrInvalidPrivateKeyLength)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		_, err := ParseKeypair("not-base58-0OIl")
		require.Error(t, err)
	})
}

func TestLoadKeypairFile(t *testing.T) {
	t.Parallel()

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, []byte(key.String()), 0o600))

	kp, err := LoadKeypairFile(path)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), kp.PublicKey())

	_, err = LoadKeypairFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestKeypair_SignMessage(t *testing.T) {
	t.Parallel()

	kp := newKeypair(t)
	msg := []byte("vault crack sign-in")
	sig, err := kp.SignMessage(msg)
	require.NoError(t, err)
	require.True(t, sig.Verify(kp.PublicKey(), msg))
	require.False(t, sig.Verify(kp.PublicKey(), []byte("other")))
}

func TestKeypair_SignTransactionRequiresOwnKey(t *testing.T) {
	t.Parallel()

	a, b := newKeypair(t), newKeypair(t)
	tx, err := solana.NewTransaction(
		[]solana.Instruction{solana.NewInstruction(testProgram, solana.AccountMetaSlice{
			solana.NewAccountMeta(b.PublicKey(), true, true),
		}, []byte{1})},
		solana.Hash{1},
		solana.TransactionPayer(a.PublicKey()),
	)
	require.NoError(t, err)

	require.Error(t, a.SignTransaction(context.Background(), tx))
}
