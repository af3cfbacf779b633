package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// fileDocument is the on-disk layout of a FileStore.
type fileDocument struct {
	Credentials map[Role]Credential `json:"credentials"`
	RoleHint    Role                `json:"role_hint,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// FileStore keeps credentials in a JSON file (0600). Writes are atomic
// (tmp file, fsync, rename). Watch turns edits made by other processes into
// EventExternal notifications.
type FileStore struct {
	Broadcaster

	path   string
	logger *zap.Logger

	mu          sync.Mutex
	lastWritten []byte
}

// NewFileStore creates a store backed by path. The file is created lazily.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(_ context.Context, role Role) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	cred, ok := doc.Credentials[role]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return &cred, nil
}

func (s *FileStore) Put(ctx context.Context, cred *Credential) error {
	if cred == nil || !cred.Role.Valid() {
		return fmt.Errorf("put credential: invalid role")
	}
	if err := s.update(func(doc *fileDocument) bool {
		doc.Credentials[cred.Role] = *cred
		return true
	}); err != nil {
		return err
	}
	s.Publish(Event{Kind: EventPut, Role: cred.Role, Reason: ReasonFrom(ctx)})
	return nil
}

func (s *FileStore) Delete(_ context.Context, role Role) error {
	changed := false
	if err := s.update(func(doc *fileDocument) bool {
		_, changed = doc.Credentials[role]
		delete(doc.Credentials, role)
		return changed
	}); err != nil {
		return err
	}
	if changed {
		s.Publish(Event{Kind: EventDelete, Role: role})
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	if err := s.update(func(doc *fileDocument) bool {
		doc.Credentials = make(map[Role]Credential)
		doc.RoleHint = RoleNone
		return true
	}); err != nil {
		return err
	}
	s.Publish(Event{Kind: EventClear, Role: RoleNone})
	return nil
}

func (s *FileStore) RoleHint(_ context.Context) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return RoleNone, err
	}
	if doc.RoleHint == "" {
		return RoleNone, nil
	}
	return doc.RoleHint, nil
}

func (s *FileStore) SetRoleHint(_ context.Context, role Role) error {
	return s.update(func(doc *fileDocument) bool {
		doc.RoleHint = role
		return true
	})
}

// Watch starts watching the store's directory. External writes to the file
// are published as EventExternal. The returned stop func blocks until the
// watcher goroutine has exited.
func (s *FileStore) Watch(ctx context.Context) (stop func(), err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if s.isOwnWrite() {
					continue
				}
				s.logger.Debug("session file changed externally", zap.String("path", s.path))
				s.Publish(Event{Kind: EventExternal, Role: RoleNone})
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("session file watcher error", zap.Error(werr))
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

// isOwnWrite reports whether the file still holds exactly what this store
// last wrote.
func (s *FileStore) isOwnWrite() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		// this store never removes its file
		return false
	}
	return s.lastWritten != nil && bytes.Equal(data, s.lastWritten)
}

func (s *FileStore) update(mutate func(doc *fileDocument) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if !mutate(doc) {
		return nil
	}
	doc.UpdatedAt = time.Now().UTC()
	return s.save(doc)
}

// load must be called with s.mu held.
func (s *FileStore) load() (*fileDocument, error) {
	doc := &fileDocument{Credentials: make(map[Role]Credential)}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	if doc.Credentials == nil {
		doc.Credentials = make(map[Role]Credential)
	}
	return doc, nil
}

// save must be called with s.mu held.
func (s *FileStore) save(doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session file: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open temp session file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync temp session file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp session file: %w", err)
	}

	s.lastWritten = data
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
