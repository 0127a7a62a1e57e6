// Package signer signs merged repository metadata.
package signer

import (
	"fmt"
	"os"
	"path/filepath"
)

// Names of the files written next to repomd.xml
const (
	RepomdFile    = "repomd.xml"
	SignatureFile = "repomd.xml.asc"
	PublicKeyFile = "repomd.xml.key"
)

// Signer signs repository metadata
type Signer interface {
	// SignDetached returns an armored detached signature of data
	SignDetached(data []byte) ([]byte, error)

	// GetPublicKey returns the armored public key clients verify with
	GetPublicKey() ([]byte, error)
}

// SignRepodata signs repodataDir/repomd.xml, writing the signature and the
// public key next to it
func SignRepodata(s Signer, repodataDir string) error {
	repomd, err := os.ReadFile(filepath.Join(repodataDir, RepomdFile))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", RepomdFile, err)
	}

	signature, err := s.SignDetached(repomd)
	if err != nil {
		return fmt.Errorf("failed to sign %s: %w", RepomdFile, err)
	}
	if err := os.WriteFile(filepath.Join(repodataDir, SignatureFile), signature, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", SignatureFile, err)
	}

	key, err := s.GetPublicKey()
	if err != nil {
		return fmt.Errorf("failed to export public key: %w", err)
	}
	if err := os.WriteFile(filepath.Join(repodataDir, PublicKeyFile), key, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", PublicKeyFile, err)
	}
	return nil
}
