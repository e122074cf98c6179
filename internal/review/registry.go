package review

import (
	"sync"

	"blockforge/internal/filekey"
)

// Editor is whatever renders one file's content. The registry only needs to
// push text at it.
type Editor interface {
	SetContent(text string)
}

// WidgetState tracks whether a file's editor widget is ready to receive
// content. Content written while Uninitialized is queued and flushed on the
// transition to Ready, replacing ad hoc polling.
type WidgetState int

const (
	WidgetUninitialized WidgetState = iota
	WidgetReady
)

type widget struct {
	state   WidgetState
	editor  Editor
	pending string
	queued  bool
}

// EditorRegistry is the explicit mapping from file key to editor widget,
// passed by reference into the review session instead of living as ambient
// global state.
type EditorRegistry struct {
	mu      sync.Mutex
	widgets map[filekey.Key]*widget
}

func NewEditorRegistry() *EditorRegistry {
	return &EditorRegistry{widgets: make(map[filekey.Key]*widget)}
}

// SetContent routes text to key's editor, queuing it if the widget has not
// been attached yet. The most recent write wins the queue.
func (r *EditorRegistry) SetContent(key filekey.Key, text string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	w := r.widget(key)
	if w.state != WidgetReady {
		w.pending = text
		w.queued = true
		r.mu.Unlock()
		return
	}
	ed := w.editor
	r.mu.Unlock()
	ed.SetContent(text)
}

// Attach transitions key's widget to Ready and flushes any queued content.
func (r *EditorRegistry) Attach(key filekey.Key, ed Editor) {
	if r == nil || ed == nil {
		return
	}
	r.mu.Lock()
	w := r.widget(key)
	w.state = WidgetReady
	w.editor = ed
	flush := w.queued
	text := w.pending
	w.queued = false
	w.pending = ""
	r.mu.Unlock()
	if flush {
		ed.SetContent(text)
	}
}

// State returns the widget state for key.
func (r *EditorRegistry) State(key filekey.Key) WidgetState {
	if r == nil {
		return WidgetUninitialized
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.widgets[key]
	if !ok {
		return WidgetUninitialized
	}
	return w.state
}

// Reset detaches every widget, used when a review is discarded.
func (r *EditorRegistry) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widgets = make(map[filekey.Key]*widget)
}

func (r *EditorRegistry) widget(key filekey.Key) *widget {
	w, ok := r.widgets[key]
	if !ok {
		w = &widget{}
		r.widgets[key] = w
	}
	return w
}
