package identity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// profile - содержимое YAML файла профиля CLI
type profile struct {
	Identities map[string]Identity `yaml:"identities"`
}

// FileStore хранит личности в YAML файле (профиль triagectl)
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore создает хранилище. Файл создается при первой записи.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("profile path is empty")
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) read() (*profile, error) {
	p := &profile{Identities: make(map[string]Identity)}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", f.path, err)
	}
	if p.Identities == nil {
		p.Identities = make(map[string]Identity)
	}
	return p, nil
}

func (f *FileStore) write(p *profile) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create profile dir: %w", err)
	}

	// токен доступа лежит в файле, поэтому только владелец
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Save(ctx context.Context, sessionID string, id *Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.read()
	if err != nil {
		return err
	}
	p.Identities[sessionID] = *id
	return f.write(p)
}

func (f *FileStore) Load(ctx context.Context, sessionID string) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.read()
	if err != nil {
		return nil, err
	}
	id, ok := p.Identities[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &id, nil
}

func (f *FileStore) Delete(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := p.Identities[sessionID]; !ok {
		return ErrNotFound
	}
	delete(p.Identities, sessionID)
	return f.write(p)
}

func (f *FileStore) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.read()
	return err
}

func (f *FileStore) Close() error { return nil }
