//go:generate mockgen -destination=./mocks/tool.go . Tool

// Package fragment produces and combines repository index metadata. A
// fragment is the index of a single package; merging fragments gives the
// index of a whole directory.
package fragment

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ralt/rpmsync/internal/layout"
	"github.com/ralt/rpmsync/internal/signer"
	"github.com/ralt/rpmsync/internal/utils"
)

// Tool types
const (
	TypeCreaterepo = "createrepo"
	TypeNative     = "native"
)

// Tool generates and merges index metadata on the local filesystem
type Tool interface {
	// Generate indexes the packages found under root into root/repodata
	Generate(ctx context.Context, root string) error

	// Merge combines the repodata of every repo directory into out/repodata
	Merge(ctx context.Context, repos []string, out string) error
}

// Options selects and configures a Tool
type Options struct {
	Type        string
	Createrepo  string
	Mergerepo   string
	Timeout     time.Duration
	Compression string
	Signer      signer.Signer
	Parser      Parser
}

// New returns the tool described by opts
func New(opts Options) (Tool, error) {
	compression := opts.Compression
	if compression == "" {
		compression = utils.CompressionGzip
	}

	switch opts.Type {
	case "", TypeCreaterepo:
		return NewCreaterepo(opts.Createrepo, opts.Mergerepo, opts.Timeout, compression), nil
	case TypeNative:
		nativeOpts := []NativeOption{WithCompression(compression), WithSigner(opts.Signer)}
		if opts.Parser != nil {
			nativeOpts = append(nativeOpts, WithParser(opts.Parser))
		}
		return NewNative(nativeOpts...), nil
	default:
		return nil, fmt.Errorf("unknown tool type %q", opts.Type)
	}
}

// RepodataDir returns the index directory of a repository root
func RepodataDir(root string) string {
	return filepath.Join(root, layout.RepodataDir)
}
