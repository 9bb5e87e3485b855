package codec

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	NamespaceGlobal  = "global"
	NamespaceAccount = "account"
	NamespaceEvent   = "event"
)

// Discriminator is the 8-byte tag the ledger program prefixes to instruction
// data, account buffers and emitted events.
type Discriminator [8]byte

// NewDiscriminator returns sha256("<namespace>:<name>")[:8].
func NewDiscriminator(namespace, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], sum[:8])
	return d
}

func InstructionDiscriminator(name string) Discriminator {
	return NewDiscriminator(NamespaceGlobal, name)
}

func AccountDiscriminator(name string) Discriminator {
	return NewDiscriminator(NamespaceAccount, name)
}

func EventDiscriminator(name string) Discriminator {
	return NewDiscriminator(NamespaceEvent, name)
}

func (d Discriminator) String() string {
	return hex.EncodeToString(d[:])
}
