package stream

import (
	"strings"

	"blockforge/internal/filekey"
)

// SegmentKind discriminates the Segment union.
type SegmentKind string

const (
	SegmentProse SegmentKind = "prose"
	SegmentFile  SegmentKind = "file"
)

// Segment is one typed piece of the classified stream: a run of prose, or
// entry into a named file block. Immutable once emitted; adjacent prose is
// coalesced so the segment sequence is independent of chunk boundaries.
type Segment struct {
	Kind SegmentKind
	Text string      // prose only
	Key  filekey.Key // file only
}

// Hooks receives live classifier output. All callbacks are optional and are
// invoked on the caller's goroutine, in stream order.
type Hooks struct {
	OnProse     func(text string)
	OnFileOpen  func(key filekey.Key)
	OnFileText  func(key filekey.Key, text string)
	OnFileClose func(key filekey.Key)
	OnSummary   func(text string)
}

type mode int

const (
	modeProse mode = iota
	modeFile
)

// Classifier is the mode state machine: it consumes tokenized text and
// splits it into prose and per-file content, owning duplicate-summary
// suppression. It never hard-errors; undelimited text degrades to prose.
type Classifier struct {
	buf        string
	mode       mode
	current    filekey.Key
	lastClosed filekey.Key

	acc   *Accumulator
	reg   *filekey.Registry
	hooks Hooks

	segments []Segment

	// pendingProse holds whitespace-only prose that is only emitted if
	// non-whitespace prose follows before the next file block.
	pendingProse string
	// eatNewline strips the single newline the model emits right after an
	// end sentinel so it does not surface as stray prose.
	eatNewline bool

	// Suppression: once a summary block closes, prose lines that look like
	// the model restating the summary are dropped until genuine prose
	// appears. The predicate is deliberately isolated and replaceable.
	suppressArmed bool
	suppressLine  string
	restated      func(string) bool
}

// NewClassifier wires a classifier to its patch accumulator.
func NewClassifier(acc *Accumulator, hooks Hooks) *Classifier {
	return &Classifier{
		acc:      acc,
		reg:      filekey.NewRegistry(),
		hooks:    hooks,
		restated: LooksLikeRestatedSummary,
	}
}

// SetRestatedPredicate swaps the duplicate-summary heuristic. Passing nil
// disables suppression entirely.
func (c *Classifier) SetRestatedPredicate(p func(string) bool) {
	c.restated = p
}

// Segments returns the segments emitted so far, prose coalesced.
func (c *Classifier) Segments() []Segment {
	out := make([]Segment, len(c.segments))
	copy(out, c.segments)
	return out
}

// CurrentKey returns the open file key while in file mode.
func (c *Classifier) CurrentKey() (filekey.Key, bool) {
	return c.current, c.mode == modeFile
}

// LastClosed returns the most recently closed file key.
func (c *Classifier) LastClosed() filekey.Key {
	return c.lastClosed
}

// Write feeds decoded text into the state machine. Arbitrary split points are
// fine; partial sentinels are held back, never rendered.
func (c *Classifier) Write(text string) {
	if text == "" {
		return
	}
	c.buf += text
	for {
		switch c.mode {
		case modeProse:
			if !c.scanProse() {
				return
			}
		case modeFile:
			if !c.scanFile() {
				return
			}
		}
	}
}

// Finish drains the working buffer at end-of-stream. A dangling partial
// sentinel is prose after all; a file left open keeps what arrived.
func (c *Classifier) Finish() {
	switch c.mode {
	case modeProse:
		c.emitProse(c.buf)
		c.flushSuppressLine()
	case modeFile:
		c.fileText(c.buf)
	}
	c.buf = ""
}

// scanProse handles one step in prose mode. Returns false when no more
// progress can be made without new input.
func (c *Classifier) scanProse() bool {
	m, found := findBegin(c.buf)
	if !found {
		h := holdbackIndex(c.buf, beginTag)
		c.emitProse(c.buf[:h])
		c.buf = c.buf[h:]
		return false
	}
	c.emitProse(c.buf[:m.start])
	c.buf = c.buf[m.end:]
	c.openFile(m.key)
	return true
}

// scanFile handles one step in file mode.
func (c *Classifier) scanFile() bool {
	m, found := findEnd(c.buf)
	if !found {
		h := holdbackIndex(c.buf, endTag)
		c.fileText(c.buf[:h])
		c.buf = c.buf[h:]
		return false
	}
	c.fileText(c.buf[:m.start])
	c.buf = c.buf[m.end:]
	c.closeFile()
	return true
}

func (c *Classifier) openFile(rawKey string) {
	key := filekey.Normalize(rawKey)
	if !key.IsReserved() {
		if k, err := c.reg.Allocate(rawKey); err == nil {
			key = k
		}
	}
	c.mode = modeFile
	c.current = key
	c.pendingProse = ""
	c.eatNewline = false
	c.flushSuppressLine()
	if key == filekey.Summary {
		// Summary renders as a side channel only; it never gets a segment.
		return
	}
	// Plan appears in the segment record so surrounding prose stays split,
	// but its content is reachable only through the accumulator.
	c.segments = append(c.segments, Segment{Kind: SegmentFile, Key: key})
	if key == filekey.Plan {
		return
	}
	if c.hooks.OnFileOpen != nil {
		c.hooks.OnFileOpen(key)
	}
}

func (c *Classifier) closeFile() {
	key := c.current
	c.mode = modeProse
	c.current = ""
	c.lastClosed = key
	c.eatNewline = true
	if key.IsReserved() {
		if key == filekey.Summary {
			c.suppressArmed = c.restated != nil
		}
		return
	}
	if c.hooks.OnFileClose != nil {
		c.hooks.OnFileClose(key)
	}
}

func (c *Classifier) fileText(text string) {
	if text == "" {
		return
	}
	c.acc.Append(c.current, text)
	if c.current.IsReserved() {
		if c.current == filekey.Summary && c.hooks.OnSummary != nil {
			c.hooks.OnSummary(text)
		}
		return
	}
	if c.hooks.OnFileText != nil {
		c.hooks.OnFileText(c.current, text)
	}
}

// emitProse routes flushed prose through newline trimming, whitespace
// pending, and summary suppression before it reaches segments and hooks.
func (c *Classifier) emitProse(text string) {
	if text == "" {
		return
	}
	if c.eatNewline {
		c.eatNewline = false
		text = trimOneNewline(text)
		if text == "" {
			return
		}
	}
	if c.suppressArmed {
		c.suppressProse(text)
		return
	}
	c.forwardProse(text)
}

// forwardProse applies the whitespace-only pending rule: whitespace between
// file blocks is dropped unless real prose follows it.
func (c *Classifier) forwardProse(text string) {
	if strings.TrimSpace(text) == "" && c.lastProseSegment() == nil {
		c.pendingProse += text
		return
	}
	if c.pendingProse != "" {
		text = c.pendingProse + text
		c.pendingProse = ""
	}
	if seg := c.lastProseSegment(); seg != nil {
		seg.Text += text
	} else {
		c.segments = append(c.segments, Segment{Kind: SegmentProse, Text: text})
	}
	if c.hooks.OnProse != nil {
		c.hooks.OnProse(text)
	}
}

func (c *Classifier) lastProseSegment() *Segment {
	if len(c.segments) == 0 {
		return nil
	}
	seg := &c.segments[len(c.segments)-1]
	if seg.Kind != SegmentProse {
		return nil
	}
	return seg
}

// suppressProse buffers armed prose line by line so the restated-summary
// decision does not depend on chunk boundaries. Matching lines and blanks
// are dropped; the first genuine line disarms suppression.
func (c *Classifier) suppressProse(text string) {
	c.suppressLine += text
	for {
		i := strings.IndexByte(c.suppressLine, '\n')
		if i < 0 {
			return
		}
		line := c.suppressLine[:i+1]
		c.suppressLine = c.suppressLine[i+1:]
		if strings.TrimSpace(line) == "" || c.restated(line) {
			continue
		}
		c.suppressArmed = false
		c.forwardProse(line + c.suppressLine)
		c.suppressLine = ""
		return
	}
}

// flushSuppressLine resolves a partial suppression line at a boundary (file
// open or stream end) using the same predicate.
func (c *Classifier) flushSuppressLine() {
	if c.suppressLine == "" {
		c.suppressArmed = false
		return
	}
	line := c.suppressLine
	c.suppressLine = ""
	armed := c.suppressArmed
	c.suppressArmed = false
	if armed && (strings.TrimSpace(line) == "" || c.restated(line)) {
		return
	}
	c.forwardProse(line)
}

// trimOneNewline strips a single leading newline.
func trimOneNewline(s string) string {
	if strings.HasPrefix(s, "\r\n") {
		return s[2:]
	}
	if strings.HasPrefix(s, "\n") {
		return s[1:]
	}
	return s
}

// LooksLikeRestatedSummary guesses whether a prose line is the model
// restating the delimited summary as plain markdown. It matches a bullet
// marker immediately followed by emphasis, e.g. "- **Added X**". Known to be
// narrow; kept isolated so it can be tuned or disabled.
func LooksLikeRestatedSummary(line string) bool {
	s := strings.TrimLeft(line, " \t")
	if s == "" {
		return false
	}
	if s[0] != '-' && s[0] != '*' {
		return false
	}
	s = strings.TrimLeft(s[1:], " \t")
	return strings.HasPrefix(s, "**")
}
