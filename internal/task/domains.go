package task

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Domains holds the fixed value sets synthetic records are drawn from.
type Domains struct {
	Users        []string `yaml:"users"`
	Categories   []string `yaml:"categories"`
	AssigneePool int      `yaml:"assignee_pool"`
}

func DefaultDomains() Domains {
	return Domains{
		Users:        []string{"user1", "user2", "user3", "user4", "user5"},
		Categories:   []string{"Development", "Testing", "Design", "Documentation", "Review"},
		AssigneePool: 10,
	}
}

func LoadDomains(path string) (Domains, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Domains{}, fmt.Errorf("read domains file: %w", err)
	}
	d := DefaultDomains()
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Domains{}, fmt.Errorf("parse domains file %s: %w", path, err)
	}
	if err := d.validate(); err != nil {
		return Domains{}, fmt.Errorf("invalid domains file %s: %w", path, err)
	}
	return d, nil
}

func (d Domains) validate() error {
	if len(d.Users) == 0 {
		return fmt.Errorf("users must not be empty")
	}
	if len(d.Categories) == 0 {
		return fmt.Errorf("categories must not be empty")
	}
	if d.AssigneePool <= 0 {
		return fmt.Errorf("assignee_pool must be positive")
	}
	return nil
}

// DomainStore serves a consistent snapshot of the generation domains and
// hot-reloads them when the backing YAML file changes. A snapshot taken for
// one generation run is never torn by a concurrent reload.
type DomainStore struct {
	mu      sync.RWMutex
	domains Domains
	path    string
}

// NewDomainStore returns a store seeded from path, or from the built-in
// defaults when path is empty.
func NewDomainStore(path string) (*DomainStore, error) {
	s := &DomainStore{domains: DefaultDomains(), path: path}
	if path != "" {
		d, err := LoadDomains(path)
		if err != nil {
			return nil, err
		}
		s.domains = d
	}
	return s, nil
}

func (s *DomainStore) Snapshot() Domains {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.domains
}

func (s *DomainStore) reload() {
	d, err := LoadDomains(s.path)
	if err != nil {
		slog.Warn("domains reload failed, keeping previous domains", "path", s.path, "error", err)
		return
	}
	s.mu.Lock()
	s.domains = d
	s.mu.Unlock()
	slog.Info("domains reloaded", "path", s.path, "users", len(d.Users), "categories", len(d.Categories))
}

// Watch blocks until ctx is cancelled, reloading the domains file whenever
// it changes on disk. It watches the parent directory so atomic replaces
// (write temp file, rename) are caught. No-op when the store has no file.
func (s *DomainStore) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create domains watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	name := filepath.Base(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	slog.Info("watching domains file", "path", s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			s.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("domains watcher error", "error", err)
		}
	}
}
