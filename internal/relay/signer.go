package relay

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SigningContext is the capability handed to the relay adapter: it can
// produce the one signature a deployment submission needs. It is built
// directly from exported key material and must not outlive the deployment
// attempt it was created for. It carries no way to read the key back out.
type SigningContext struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigningContext parses raw hex key material into a signing capability.
// The caller should drop its reference to the raw material right after.
func NewSigningContext(privateKeyHex string) (*SigningContext, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, err
	}

	return &SigningContext{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

func (s *SigningContext) Address() common.Address {
	return s.address
}

// SignMessage signs message with the EIP-191 personal-message prefix.
func (s *SigningContext) SignMessage(message []byte) ([]byte, error) {
	return crypto.Sign(accounts.TextHash(message), s.key)
}
