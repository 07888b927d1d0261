package wallet

import (
	"bytes"
	"crypto/ecdsa"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	addr "github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/minio/blake2b-simd"
	"golang.org/x/xerrors"
)

// Key is a secp256k1 signing key and the address derived from its public key.
type Key struct {
	priv    *ecdsa.PrivateKey
	Address addr.Address
}

func GenerateKey() (*Key, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, xerrors.Errorf("generating secp256k1 key: %w", err)
	}
	return newKey(priv)
}

// KeyFromBytes loads a key from its 32 byte private scalar.
func KeyFromBytes(b []byte) (*Key, error) {
	priv, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, xerrors.Errorf("loading secp256k1 key: %w", err)
	}
	return newKey(priv)
}

func newKey(priv *ecdsa.PrivateKey) (*Key, error) {
	a, err := addr.NewSecp256k1Address(ethcrypto.FromECDSAPub(&priv.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Key{priv: priv, Address: a}, nil
}

// Bytes returns the private scalar.
func (k *Key) Bytes() []byte {
	return ethcrypto.FromECDSA(k.priv)
}

// Sign signs the blake2b-256 digest of msg.
func (k *Key) Sign(msg []byte) (*crypto.Signature, error) {
	digest := blake2b.Sum256(msg)
	sig, err := ethcrypto.Sign(digest[:], k.priv)
	if err != nil {
		return nil, err
	}
	return &crypto.Signature{Type: crypto.SigTypeSecp256k1, Data: sig}, nil
}

// Verify checks that sig over msg was produced by the key behind signer.
func Verify(sig *crypto.Signature, signer addr.Address, msg []byte) error {
	if sig == nil {
		return xerrors.New("missing signature")
	}
	if sig.Type != crypto.SigTypeSecp256k1 {
		return xerrors.Errorf("unsupported signature type %d", sig.Type)
	}
	if signer.Protocol() != addr.SECP256K1 {
		return xerrors.Errorf("signer %v is not a secp256k1 address", signer)
	}
	digest := blake2b.Sum256(msg)
	pub, err := ethcrypto.Ecrecover(digest[:], sig.Data)
	if err != nil {
		return xerrors.Errorf("recovering signer: %w", err)
	}
	recovered, err := addr.NewSecp256k1Address(pub)
	if err != nil {
		return err
	}
	if !bytes.Equal(recovered.Bytes(), signer.Bytes()) {
		return xerrors.Errorf("signature from %v, expected %v", recovered, signer)
	}
	return nil
}
