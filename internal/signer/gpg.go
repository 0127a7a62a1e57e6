package signer

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// ErrLockedKey is returned when a protected key is loaded without passphrase
var ErrLockedKey = errors.New("private key is protected by a passphrase")

// GPGSigner signs with the first entity of an OpenPGP key file
type GPGSigner struct {
	entity *openpgp.Entity
	config *packet.Config
}

// NewGPGSigner loads an armored or binary private key. Protected keys are
// unlocked with passphrase.
func NewGPGSigner(keyPath, passphrase string) (*GPGSigner, error) {
	if keyPath == "" {
		return nil, fmt.Errorf("key path is empty")
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	entity, err := readEntity(data)
	if err != nil {
		return nil, err
	}
	if err := unlock(entity, []byte(passphrase)); err != nil {
		return nil, err
	}

	return &GPGSigner{
		entity: entity,
		config: &packet.Config{DefaultHash: crypto.SHA512},
	}, nil
}

func readEntity(data []byte) (*openpgp.Entity, error) {
	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to read key: %w", err)
		}
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("no keys found in key file")
	}
	if entities[0].PrivateKey == nil {
		return nil, fmt.Errorf("key file holds no private key")
	}
	return entities[0], nil
}

// unlock decrypts the primary key and every subkey that is encrypted
func unlock(entity *openpgp.Entity, passphrase []byte) error {
	keys := []*packet.PrivateKey{entity.PrivateKey}
	for _, subkey := range entity.Subkeys {
		keys = append(keys, subkey.PrivateKey)
	}

	for _, key := range keys {
		if key == nil || !key.Encrypted {
			continue
		}
		if len(passphrase) == 0 {
			return ErrLockedKey
		}
		if err := key.Decrypt(passphrase); err != nil {
			return fmt.Errorf("failed to decrypt private key: %w", err)
		}
	}
	return nil
}

// SignDetached implements Signer
func (s *GPGSigner) SignDetached(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, s.entity, bytes.NewReader(data), s.config); err != nil {
		return nil, fmt.Errorf("failed to create detached signature: %w", err)
	}
	return buf.Bytes(), nil
}

// GetPublicKey implements Signer
func (s *GPGSigner) GetPublicKey() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.writePublicKey(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *GPGSigner) writePublicKey(out io.Writer) error {
	w, err := armor.Encode(out, openpgp.PublicKeyType, nil)
	if err != nil {
		return err
	}
	if err := s.entity.Serialize(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
