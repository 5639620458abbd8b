package store

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Leejhua/concert-calendar/internal/model"
)

// StatusPatch is a partial status update; nil fields keep the stored value.
type StatusPatch struct {
	State       *string
	Progress    *int
	Message     *string
	RunID       *string
	Result      *model.SyncResult
	ClearResult bool
}

func String(s string) *string { return &s }
func Int(i int) *int          { return &i }

// StatusStore keeps the externally polled sync status in a small JSON file.
// Writes are last-write-wins and stamp LastUpdated themselves.
type StatusStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewStatusStore(path string) *StatusStore {
	return &StatusStore{path: path, now: time.Now}
}

func (s *StatusStore) Get() model.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *StatusStore) read() model.SyncStatus {
	b, err := os.ReadFile(s.path)
	if err == nil {
		var st model.SyncStatus
		if json.Unmarshal(b, &st) == nil {
			return st
		}
		log.Printf("status: unreadable %s, resetting", s.path)
	}
	return model.SyncStatus{State: model.StateIdle, LastUpdated: s.now().UnixMilli()}
}

// Set merges the patch over the persisted record and writes it back.
func (s *StatusStore) Set(p StatusPatch) model.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.read()
	if p.State != nil {
		st.State = *p.State
	}
	if p.Progress != nil {
		st.Progress = *p.Progress
	}
	if p.Message != nil {
		st.Message = *p.Message
	}
	if p.RunID != nil {
		st.RunID = *p.RunID
	}
	if p.Result != nil {
		st.Result = p.Result
	}
	if p.ClearResult {
		st.Result = nil
	}
	st.LastUpdated = s.now().UnixMilli()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		log.Printf("status: mkdir: %v", err)
		return st
	}
	b, err := json.MarshalIndent(st, "", " ")
	if err != nil {
		log.Printf("status: marshal: %v", err)
		return st
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		log.Printf("status: write: %v", err)
	}
	return st
}
