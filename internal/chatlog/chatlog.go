// Package chatlog keeps the ordered conversation turns of a generation
// session, persisted as JSON so the UI can re-hydrate after a reload.
package chatlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one conversation entry. Model turns carry the rendered prose and
// the keys of the files that turn produced.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	FileKeys  []string  `json:"fileKeys,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Log is one subject's conversation history.
type Log struct {
	SubjectID string `json:"subjectId"`
	Turns     []Turn `json:"turns"`
}

// Store persists chat logs under a root directory, one JSON file per
// subject. Writes go through a temp file and rename.
type Store struct {
	mu   sync.Mutex
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

// Append adds a turn to the subject's log and persists it.
func (s *Store) Append(subjectID string, role Role, text string, fileKeys []string) (Turn, error) {
	if s == nil {
		return Turn{}, fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lg, err := s.loadLocked(subjectID)
	if err != nil {
		return Turn{}, err
	}
	turn := Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		FileKeys:  fileKeys,
		CreatedAt: time.Now().UTC(),
	}
	lg.Turns = append(lg.Turns, turn)
	if err := s.saveLocked(lg); err != nil {
		return Turn{}, err
	}
	return turn, nil
}

// Load returns the subject's turns in order.
func (s *Store) Load(subjectID string) ([]Turn, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lg, err := s.loadLocked(subjectID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(lg.Turns, func(i, j int) bool {
		return lg.Turns[i].CreatedAt.Before(lg.Turns[j].CreatedAt)
	})
	return lg.Turns, nil
}

// Delete removes the subject's log.
func (s *Store) Delete(subjectID string) error {
	if s == nil {
		return fmt.Errorf("store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(subjectID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Store) loadLocked(subjectID string) (*Log, error) {
	raw, err := os.ReadFile(s.path(subjectID))
	if os.IsNotExist(err) {
		return &Log{SubjectID: subjectID}, nil
	}
	if err != nil {
		return nil, err
	}
	var lg Log
	if err := json.Unmarshal(raw, &lg); err != nil {
		// A corrupt log is a cache of conversation, not source of truth;
		// start fresh rather than wedging the session.
		return &Log{SubjectID: subjectID}, nil
	}
	return &lg, nil
}

func (s *Store) saveLocked(lg *Log) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(lg, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.root, ".chat-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, s.path(lg.SubjectID))
}

func (s *Store) path(subjectID string) string {
	return filepath.Join(s.root, subjectID+".json")
}
