package stream

import (
	"strings"

	"blockforge/internal/filekey"
)

// PatchSet is the complete set of file contents decoded from one generation
// stream, frozen prior to review. Reserved keys (plan, summary) never appear.
type PatchSet struct {
	files map[filekey.Key]string
	order []filekey.Key
}

// NewPatchSet builds a patch set from already-materialized contents, for
// callers that hold the files without running the decode pipeline. Reserved
// keys and keys absent from files are skipped; order fixes iteration order.
func NewPatchSet(files map[filekey.Key]string, order []filekey.Key) *PatchSet {
	ps := &PatchSet{files: make(map[filekey.Key]string, len(files))}
	for _, key := range order {
		if key.IsReserved() {
			continue
		}
		v, ok := files[key]
		if !ok {
			continue
		}
		if _, seen := ps.files[key]; seen {
			continue
		}
		ps.files[key] = v
		ps.order = append(ps.order, key)
	}
	return ps
}

// Get returns the content for key.
func (p *PatchSet) Get(key filekey.Key) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.files[key]
	return v, ok
}

// Keys returns the patched keys in first-seen stream order.
func (p *PatchSet) Keys() []filekey.Key {
	if p == nil {
		return nil
	}
	out := make([]filekey.Key, len(p.order))
	copy(out, p.order)
	return out
}

// Len returns the number of patched files.
func (p *PatchSet) Len() int {
	if p == nil {
		return 0
	}
	return len(p.files)
}

// Accumulator collects file-mode text into per-key buffers. Pure
// accumulation: no trimming or validation happens during streaming.
type Accumulator struct {
	bufs   map[filekey.Key]*strings.Builder
	order  []filekey.Key
	frozen *PatchSet
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{bufs: make(map[filekey.Key]*strings.Builder)}
}

// Append concatenates text onto key's buffer. Appending after Freeze is
// ignored; the frozen value is final.
func (a *Accumulator) Append(key filekey.Key, text string) {
	if a == nil || a.frozen != nil || key == "" || text == "" {
		return
	}
	b, ok := a.bufs[key]
	if !ok {
		b = &strings.Builder{}
		a.bufs[key] = b
		a.order = append(a.order, key)
	}
	b.WriteString(text)
}

// Plan returns the accumulated plan text, if the stream produced one.
func (a *Accumulator) Plan() string {
	return a.raw(filekey.Plan)
}

// Summary returns the accumulated summary text, if any.
func (a *Accumulator) Summary() string {
	return a.raw(filekey.Summary)
}

func (a *Accumulator) raw(key filekey.Key) string {
	if a == nil {
		return ""
	}
	if b, ok := a.bufs[key]; ok {
		return trimBlankEdges(b.String())
	}
	return ""
}

// Freeze produces the PatchSet: each committable file gets a single
// leading/trailing blank-line trim, applied exactly once. Idempotent; repeat
// calls return the same frozen value. Cancellation freezes early, keeping
// whatever partial content arrived.
func (a *Accumulator) Freeze() *PatchSet {
	if a == nil {
		return nil
	}
	if a.frozen != nil {
		return a.frozen
	}
	ps := &PatchSet{files: make(map[filekey.Key]string)}
	for _, key := range a.order {
		if key.IsReserved() {
			continue
		}
		ps.files[key] = trimBlankEdges(a.bufs[key].String())
		ps.order = append(ps.order, key)
	}
	a.frozen = ps
	return ps
}

// trimBlankEdges removes one leading and one trailing newline. The model
// emits the file body on its own lines between the sentinels; the newlines
// belong to the protocol, not the file.
func trimBlankEdges(s string) string {
	s = trimOneNewline(s)
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	if strings.HasSuffix(s, "\n") {
		return s[:len(s)-1]
	}
	return s
}
