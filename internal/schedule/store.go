package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Store persists pending jobs so a restart can re-arm them. Durability
// is a deliberate choice: the default Memory store keeps the original
// process-lifetime-only behavior.
type Store interface {
	Put(job Job) error
	Delete(id string) error
	List() ([]Job, error)
}

// Memory keeps jobs in-process only.
type Memory struct {
	mu sync.Mutex
	m  map[string]Job
}

func NewMemory() *Memory { return &Memory{m: make(map[string]Job)} }

func (s *Memory) Put(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[job.ID] = job
	return nil
}

func (s *Memory) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}

func (s *Memory) List() ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]Job, 0, len(s.m))
	for _, j := range s.m {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].FireAt.Before(jobs[j].FireAt) })
	return jobs, nil
}

// File is a JSON-file-backed Store, safe for single-process use.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File { return &File{path: path} }

func (s *File) Put(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.load()
	if err != nil {
		return err
	}
	for i := range jobs {
		if jobs[i].ID == job.ID {
			jobs[i] = job
			return s.persist(jobs)
		}
	}
	return s.persist(append(jobs, job))
}

func (s *File) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.load()
	if err != nil {
		return err
	}
	for i := range jobs {
		if jobs[i].ID == id {
			return s.persist(append(jobs[:i], jobs[i+1:]...))
		}
	}
	return nil
}

func (s *File) List() ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].FireAt.Before(jobs[j].FireAt) })
	return jobs, nil
}

func (s *File) load() ([]Job, error) {
	buf, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}
	var jobs []Job
	if err := json.Unmarshal(buf, &jobs); err != nil {
		return nil, fmt.Errorf("decode jobs file: %w", err)
	}
	return jobs, nil
}

func (s *File) persist(jobs []Job) error {
	buf, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode jobs: %w", err)
	}
	if err := os.WriteFile(s.path, buf, 0o600); err != nil {
		return fmt.Errorf("write jobs file: %w", err)
	}
	return nil
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*File)(nil)
)
