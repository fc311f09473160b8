package storage

import (
	"sync"

	"chatview/config"
	"chatview/model"
)

// Recorder keeps the active session of a running chat in the store. Record
// saves the conversation after a turn; Restart begins a new session so the
// previous transcript is left untouched.
type Recorder struct {
	mu        sync.Mutex
	store     *SessionStore
	session   *Session
	modelName func() string
}

// NewRecorder records into session, or into a new one when session is nil.
// modelName reports the model to store with each save.
func NewRecorder(store *SessionStore, session *Session, modelName func() string) *Recorder {
	if session == nil {
		session = &Session{}
	}
	return &Recorder{store: store, session: session, modelName: modelName}
}

// Record saves msgs as the active session and remembers it for resuming.
func (r *Recorder) Record(msgs []model.Message, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.session.Messages = msgs
	if r.modelName != nil {
		r.session.Model = r.modelName()
	}
	if err := r.store.Save(r.session); err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Storage] Saving session failed: %v", err)
		}
		return
	}
	if err := r.store.SaveCurrentSessionID(r.session.ID); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[Storage] Saving current session id failed: %v", err)
	}
}

// Restart starts a new, unsaved session holding msgs. It is written on the
// next Record.
func (r *Recorder) Restart(msgs []model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Storage] Leaving session %s for a new one", r.session.ID)
	}
	r.session = &Session{Messages: msgs}
}

// SessionID returns the ID of the active session, "" until it is first saved.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.ID
}
