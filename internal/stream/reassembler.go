package stream

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"strings"
)

// Terminal is the frame payload that signals end-of-stream on the wire.
const Terminal = "[DONE]"

// framePrefix marks a data frame on the relay wire.
const framePrefix = "data:"

// Envelope is the optional one-time header object identifying which backend
// produced the stream.
type Envelope struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Mode     string `json:"mode"`
}

// chunkPayload mirrors the provider's incremental response shape.
type chunkPayload struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Reassembler reconstructs complete provider JSON objects from transport
// frames whose boundaries are unrelated to object boundaries. Each frame
// carries a base64 payload that is itself a slice of a streamed JSON array;
// the reassembler accumulates decoded text and extracts balanced top-level
// objects as they complete.
type Reassembler struct {
	buf      strings.Builder
	tail     string
	envelope *Envelope
	dropped  int
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Envelope returns the provider header if one was seen.
func (r *Reassembler) Envelope() *Envelope {
	if r == nil {
		return nil
	}
	return r.envelope
}

// Dropped returns how many unparseable fragments were discarded.
func (r *Reassembler) Dropped() int {
	if r == nil {
		return 0
	}
	return r.dropped
}

// PushLine consumes one transport line. It returns the incremental text
// extracted from any provider objects completed by this line, and whether the
// line was the terminal frame.
func (r *Reassembler) PushLine(line string) (texts []string, done bool) {
	if r == nil {
		return nil, false
	}
	payload := strings.TrimSpace(line)
	if payload == "" {
		return nil, false
	}
	if strings.HasPrefix(payload, framePrefix) {
		payload = strings.TrimSpace(strings.TrimPrefix(payload, framePrefix))
	}
	if payload == Terminal {
		return nil, true
	}
	decoded, err := decodeFrame(payload)
	if err != nil {
		// A frame that is neither base64 nor raw JSON text is dropped;
		// one bad frame must not abort the stream.
		r.dropped++
		log.Printf("stream: dropping undecodable frame (%d bytes): %v", len(payload), err)
		return nil, false
	}
	r.tail += decoded
	return r.extract(), false
}

// Flush reports the abandoned unparsed tail at end-of-stream. A non-empty
// return means the provider cut an object short; the caller decides whether
// to surface it.
func (r *Reassembler) Flush() (abandoned string) {
	if r == nil {
		return ""
	}
	tail := strings.TrimLeft(r.tail, " \t\r\n[,]")
	r.tail = ""
	if tail != "" {
		log.Printf("stream: abandoning incomplete provider object (%d bytes)", len(tail))
	}
	return tail
}

// decodeFrame decodes the frame payload. Frames are normally standard base64;
// raw-encoded payloads from older relays are accepted too.
func decodeFrame(payload string) (string, error) {
	if b, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return string(b), nil
	}
	b, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// extract scans the accumulated tail for balanced top-level objects and pulls
// the incremental text out of each complete one. Array punctuation from the
// streamed-array envelope is skipped; an incomplete object stays in the tail.
func (r *Reassembler) extract() []string {
	var texts []string
	for {
		obj, rest, ok := nextObject(r.tail)
		if !ok {
			r.tail = rest
			return texts
		}
		r.tail = rest
		if text, ok := r.parseObject(obj); ok {
			texts = append(texts, text)
		}
	}
}

// parseObject interprets one complete top-level object. The first object may
// be the provider envelope; every other object is an incremental chunk.
// Unparseable objects are dropped and counted, never fatal.
func (r *Reassembler) parseObject(obj string) (string, bool) {
	var chunk chunkPayload
	if err := json.Unmarshal([]byte(obj), &chunk); err == nil && len(chunk.Candidates) > 0 {
		var b strings.Builder
		for _, part := range chunk.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
		return b.String(), true
	}
	if r.envelope == nil {
		var env Envelope
		if err := json.Unmarshal([]byte(obj), &env); err == nil && (env.Provider != "" || env.Model != "") {
			r.envelope = &env
			return "", false
		}
	}
	r.dropped++
	log.Printf("stream: dropping malformed provider object (%d bytes)", len(obj))
	return "", false
}

// nextObject finds the first balanced top-level {...} in s. It returns the
// object, the remaining input, and whether a complete object was found.
// Braces inside quoted strings are ignored, including escaped quotes. Leading
// array punctuation and whitespace are consumed either way.
func nextObject(s string) (obj, rest string, ok bool) {
	i := 0
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\r', '\n', '[', ']', ',':
			i++
			continue
		}
		break
	}
	s = s[i:]
	if s == "" || s[0] != '{' {
		// Not object-shaped; retain as-is so a later frame can complete it
		// or Flush can report it.
		return "", s, false
	}
	depth := 0
	inString := false
	escaped := false
	for j := 0; j < len(s); j++ {
		c := s[j]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:j+1], s[j+1:], true
			}
		}
	}
	return "", s, false
}
