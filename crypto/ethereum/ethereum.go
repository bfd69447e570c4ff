// Package ethereum provides secp256k1 signing keys and EIP-191 signatures
// compatible with Ethereum accounts.
package ethereum

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/silentvote/types"
	"github.com/vocdoni/silentvote/util"
)

const (
	// SignatureLength is the size of an ECDSA signature in hexString format
	SignatureLength = ethcrypto.SignatureLength
	// PubKeyLengthBytes is the size of a Public Key
	PubKeyLengthBytes = 33
	// PubKeyLengthBytesUncompressed is the size of a uncompressed Public Key
	PubKeyLengthBytesUncompressed = 65
	// SigningPrefix is the prefix added when hashing
	SigningPrefix = "\u0019Ethereum Signed Message:\n"
)

// SignKeys represents an ECDSA pair of keys for signing.
type SignKeys struct {
	Public  ecdsa.PublicKey
	Private ecdsa.PrivateKey
	lock    sync.RWMutex
}

// NewSignKeys creates an ECDSA pair of keys for signing
func NewSignKeys() *SignKeys {
	return &SignKeys{}
}

// Generate generates new keys
func (k *SignKeys) Generate() error {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return err
	}
	k.lock.Lock()
	defer k.lock.Unlock()
	k.Private = *key
	k.Public = key.PublicKey
	return nil
}

// AddHexKey imports a private hex key
func (k *SignKeys) AddHexKey(privHex string) error {
	key, err := ethcrypto.HexToECDSA(util.TrimHex(privHex))
	if err != nil {
		return err
	}
	k.lock.Lock()
	defer k.lock.Unlock()
	k.Private = *key
	k.Public = key.PublicKey
	return nil
}

// HexString returns the public compressed and private keys as hex strings
func (k *SignKeys) HexString() (string, string) {
	k.lock.RLock()
	defer k.lock.RUnlock()
	pubHexComp := fmt.Sprintf("%x", ethcrypto.CompressPubkey(&k.Public))
	privHex := fmt.Sprintf("%x", ethcrypto.FromECDSA(&k.Private))
	return pubHexComp, privHex
}

// PublicKey returns the compressed public key
func (k *SignKeys) PublicKey() types.HexBytes {
	k.lock.RLock()
	defer k.lock.RUnlock()
	return ethcrypto.CompressPubkey(&k.Public)
}

// Address returns the SignKeys ethereum address
func (k *SignKeys) Address() common.Address {
	k.lock.RLock()
	defer k.lock.RUnlock()
	return ethcrypto.PubkeyToAddress(k.Public)
}

// AddressString returns the ethereum Address as string
func (k *SignKeys) AddressString() string {
	return k.Address().String()
}

// SignEthereum signs a message. Message is a normal string (no HexString nor
// a Hash). The signature covers the EIP-191 hash of the message.
func (k *SignKeys) SignEthereum(message []byte) ([]byte, error) {
	k.lock.RLock()
	defer k.lock.RUnlock()
	if k.Private.D == nil {
		return nil, errors.New("no private key available")
	}
	signature, err := ethcrypto.Sign(Hash(message), &k.Private)
	if err != nil {
		return nil, err
	}
	return signature, nil
}

// AddrFromPublicKey standarizes a public key and returns the Ethereum address.
func AddrFromPublicKey(pub []byte) (common.Address, error) {
	var pubk *ecdsa.PublicKey
	var err error
	switch len(pub) {
	case PubKeyLengthBytes:
		pubk, err = ethcrypto.DecompressPubkey(pub)
	case PubKeyLengthBytesUncompressed:
		pubk, err = ethcrypto.UnmarshalPubkey(pub)
	default:
		return common.Address{}, fmt.Errorf("invalid public key length: %d", len(pub))
	}
	if err != nil {
		return common.Address{}, err
	}
	return ethcrypto.PubkeyToAddress(*pubk), nil
}

// AddrFromSignature recovers the Ethereum address that created the signature
// of a message.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pubKey, err := ethcrypto.SigToPub(Hash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot recover public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}

// Hash returns the EIP-191 hash of a message: the keccak256 of the signing
// prefix, the message length and the message.
func Hash(data []byte) []byte {
	payloadToSign := fmt.Sprintf("%s%d%s", SigningPrefix, len(data), data)
	return HashRaw([]byte(payloadToSign))
}

// HashRaw hashes data with no prefix
func HashRaw(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}
