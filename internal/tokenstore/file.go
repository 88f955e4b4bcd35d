package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/wrale/oauth2-device-client/internal/token"
)

const tokenFileName = "token.json"

var timeNow = time.Now

// ComputeStoragePath returns the per-user data file for a host and client id,
// creating its parent directories.
func ComputeStoragePath(host, clientID string) (string, error) {
	key := Key{Host: host, ClientID: clientID}
	if err := key.Validate(); err != nil {
		return "", err
	}
	rel := filepath.Join(AppName, pathSegment(host), pathSegment(clientID), tokenFileName)
	path, err := xdg.DataFile(rel)
	if err != nil {
		return "", fmt.Errorf("resolving token path: %w", err)
	}
	return path, nil
}

// pathSegment keeps a key part to a single portable path element
func pathSegment(s string) string {
	return strings.NewReplacer("/", "_", `\`, "_", ":", "_").Replace(s)
}

// FileStore keeps the token as a JSON file, replaced atomically on save
type FileStore struct {
	path string
}

// NewFileStore creates a store at the given file path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// NewDefaultFileStore creates a store at ComputeStoragePath(key)
func NewDefaultFileStore(key Key) (*FileStore, error) {
	path, err := ComputeStoragePath(key.Host, key.ClientID)
	if err != nil {
		return nil, err
	}
	return NewFileStore(path), nil
}

// Path returns the token file location
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store
func (s *FileStore) Load(_ context.Context) (*token.AccessToken, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	return decodeRecord(s.path, data)
}

// Save implements Store. The file is written to a temporary sibling and
// renamed into place so a crash never leaves a partial record.
func (s *FileStore) Save(_ context.Context, tok *token.AccessToken) error {
	data, err := token.Encode(tok)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+tokenFileName+".*")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting token file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// Delete implements Store
func (s *FileStore) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
