package trainer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/opsforge/relearn/pkg/xerrors"
)

// ArtifactStore persists serialized model artifacts.
//
// The returned ref is a content digest: storing the same bytes twice
// yields the same ref, which keeps retrained-but-identical models cheap.
type ArtifactStore interface {
	Put(ctx context.Context, content []byte) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

type fsArtifacts struct {
	dir string
}

// NewFSArtifacts stores artifacts as files under dir, named by digest.
func NewFSArtifacts(dir string) (ArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.Wrap(err)
	}
	return &fsArtifacts{dir: dir}, nil
}

func digestOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func (s *fsArtifacts) Put(ctx context.Context, content []byte) (string, error) {
	ref := digestOf(content)
	path := filepath.Join(s.dir, ref+".model")
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", xerrors.Wrap(err)
	}
	return ref, nil
}

func (s *fsArtifacts) Get(ctx context.Context, ref string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(s.dir, ref+".model"))
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	return content, nil
}

type memArtifacts struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemArtifacts keeps artifacts in memory. For standalone mode and tests.
func NewMemArtifacts() ArtifactStore {
	return &memArtifacts{blobs: map[string][]byte{}}
}

func (s *memArtifacts) Put(ctx context.Context, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := digestOf(content)
	s.blobs[ref] = content
	return ref, nil
}

func (s *memArtifacts) Get(ctx context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.blobs[ref]
	if !ok {
		return nil, xerrors.New("no such artifact: " + ref)
	}
	return content, nil
}
