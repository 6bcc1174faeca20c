package tool

import (
	"sync"

	"github.com/mgreenly/nuagent/internal/store"
)

// State is the context passed to Execute (§4.4, §6.3): the store
// handle plus the per-turn application values tools need
// (conversation_id, model, application). Grounded on the teacher's
// pkg/tools/state.go BasicState, trimmed to what SPEC_FULL.md's tool
// contract actually specifies, plus the per-file locking the teacher
// uses to keep concurrent file_edit calls from racing (§4.4: "tools
// must be re-entrant").
type State interface {
	Store() *store.Gateway
	ConversationID() int64
	Model() string
	WorkingDir() string
	Tools() []Tool
	LockFile(path string)
	UnlockFile(path string)
}

// BasicState is the default State implementation.
type BasicState struct {
	store          *store.Gateway
	conversationID int64
	model          string
	workingDir     string
	tools          []Tool

	fileLocksMu sync.Mutex
	fileLocks   map[string]*sync.Mutex
}

// NewBasicState constructs a State for one exchange's tool execution.
func NewBasicState(st *store.Gateway, conversationID int64, model, workingDir string, tools []Tool) *BasicState {
	return &BasicState{
		store:          st,
		conversationID: conversationID,
		model:          model,
		workingDir:     workingDir,
		tools:          tools,
		fileLocks:      make(map[string]*sync.Mutex),
	}
}

func (s *BasicState) Store() *store.Gateway   { return s.store }
func (s *BasicState) ConversationID() int64   { return s.conversationID }
func (s *BasicState) Model() string           { return s.model }
func (s *BasicState) WorkingDir() string      { return s.workingDir }
func (s *BasicState) Tools() []Tool           { return s.tools }

// LockFile acquires an exclusive, process-local lock for path so two
// concurrently-scheduled confined-write calls on files the scheduler
// judged non-conflicting (different paths) never corrupt state if a
// caller's path normalization missed an alias.
func (s *BasicState) LockFile(path string) {
	s.fileLocksMu.Lock()
	lock, ok := s.fileLocks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.fileLocks[path] = lock
	}
	s.fileLocksMu.Unlock()
	lock.Lock()
}

// UnlockFile releases the lock acquired by LockFile.
func (s *BasicState) UnlockFile(path string) {
	s.fileLocksMu.Lock()
	lock, ok := s.fileLocks[path]
	s.fileLocksMu.Unlock()
	if ok {
		lock.Unlock()
	}
}
