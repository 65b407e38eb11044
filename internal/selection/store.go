package selection

import (
	"sort"
	"sync"

	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	pkgerrors "github.com/vidrelay/vidrelay-backend/pkg/errors"
)

// Store tracks per-media destination selections. Sessions live in memory and
// are keyed by media ID; the store is shared across requests, so every method
// holds the lock for the full read-modify-write.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	state     enums.SelectionState
	platforms map[enums.Platform]bool
}

// NewStore creates an empty selection store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*session)}
}

// Begin opens a selection session for the media item. Reopening a session
// that is mid-upload is a conflict; reopening one that is already selecting
// keeps the accumulated picks.
func (s *Store) Begin(mediaID string) error {
	if mediaID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "media id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[mediaID]
	if !ok {
		s.sessions[mediaID] = &session{
			state:     enums.SelectionStateSelecting,
			platforms: make(map[enums.Platform]bool),
		}
		return nil
	}

	if sess.state == enums.SelectionStateUploading {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "upload already in progress for this media")
	}

	sess.state = enums.SelectionStateSelecting
	return nil
}

// Toggle flips one platform in the selection set and returns the resulting
// set. The first toggle for a media item opens its session; toggling the same
// platform twice restores the previous set. Toggling mid-upload is a conflict.
func (s *Store) Toggle(mediaID string, platform enums.Platform) ([]enums.Platform, error) {
	if mediaID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "media id is required")
	}
	if !platform.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid platform")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[mediaID]
	if !ok {
		sess = &session{
			state:     enums.SelectionStateSelecting,
			platforms: make(map[enums.Platform]bool),
		}
		s.sessions[mediaID] = sess
	}
	if sess.state == enums.SelectionStateUploading {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "upload already in progress for this media")
	}

	if sess.platforms[platform] {
		delete(sess.platforms, platform)
	} else {
		sess.platforms[platform] = true
	}

	return sess.selected(), nil
}

// Selected returns the current selection set without changing state.
func (s *Store) Selected(mediaID string) []enums.Platform {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[mediaID]
	if !ok {
		return nil
	}
	return sess.selected()
}

// BeginUpload transitions the session to uploading and returns the frozen
// selection set. An empty set is rejected so the orchestrator never starts
// with nothing to do.
func (s *Store) BeginUpload(mediaID string) ([]enums.Platform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[mediaID]
	if !ok || sess.state == enums.SelectionStateNone {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no active selection for this media")
	}
	if sess.state == enums.SelectionStateUploading {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "upload already in progress for this media")
	}
	if len(sess.platforms) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no platforms selected")
	}

	sess.state = enums.SelectionStateUploading
	return sess.selected(), nil
}

// Close removes the session once the upload round completes, regardless of
// per-platform outcomes.
func (s *Store) Close(mediaID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, mediaID)
}

// State reports where the media sits in the selection flow.
func (s *Store) State(mediaID string) enums.SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[mediaID]
	if !ok {
		return enums.SelectionStateNone
	}
	return sess.state
}

func (sess *session) selected() []enums.Platform {
	out := make([]enums.Platform, 0, len(sess.platforms))
	for platform := range sess.platforms {
		out = append(out, platform)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
