// Package filekey defines the stable identifiers for the files a generation
// stream can produce: the fixed core plugin files plus an open-ended set of
// custom files derived from filenames.
package filekey

import (
	"fmt"
	"path"
	"strings"
)

// Key identifies one generated/edited file for the lifetime of a session.
type Key string

// Core file keys, in declaration order. The order is load-bearing: review
// navigation lists core files first, in this order.
const (
	BlockJSON  Key = "block_json"
	RenderPHP  Key = "render_php"
	StyleCSS   Key = "style_css"
	ViewJS     Key = "view_js"
	SchemaJSON Key = "schema_json"
	ReadmeTXT  Key = "readme_txt"
)

// Reserved keys carry stream-control content and are never committed to the
// content store.
const (
	Plan    Key = "plan"
	Summary Key = "summary"
)

// CoreKeys returns the fixed core keys in declaration order.
func CoreKeys() []Key {
	return []Key{BlockJSON, RenderPHP, StyleCSS, ViewJS, SchemaJSON, ReadmeTXT}
}

// aliases maps the friendly filenames the model tends to emit onto internal
// keys. Lookup is case-insensitive.
var aliases = map[string]Key{
	"block.json":  BlockJSON,
	"block_json":  BlockJSON,
	"render.php":  RenderPHP,
	"render_php":  RenderPHP,
	"style.css":   StyleCSS,
	"style_css":   StyleCSS,
	"view.js":     ViewJS,
	"view_js":     ViewJS,
	"schema.json": SchemaJSON,
	"schema_json": SchemaJSON,
	"readme.txt":  ReadmeTXT,
	"readme_txt":  ReadmeTXT,
	"plan":        Plan,
	"summary":     Summary,
}

// filenames maps core keys back to their display filenames.
var filenames = map[Key]string{
	BlockJSON:  "block.json",
	RenderPHP:  "render.php",
	StyleCSS:   "style.css",
	ViewJS:     "view.js",
	SchemaJSON: "schema.json",
	ReadmeTXT:  "readme.txt",
}

// Normalize resolves a raw sentinel key or friendly filename to its internal
// key. Unknown keys are accepted verbatim as custom keys; the mini-protocol
// intentionally allows novel filenames, so this never fails.
func Normalize(raw string) Key {
	raw = strings.TrimSpace(raw)
	if k, ok := aliases[strings.ToLower(raw)]; ok {
		return k
	}
	return Derive(raw)
}

// Derive builds a custom key from a filename: the extension dot becomes an
// underscore and remaining non-identifier characters are folded to
// underscores. "admin.css" -> "admin_css".
func Derive(filename string) Key {
	name := strings.TrimSpace(filename)
	if name == "" {
		return ""
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	ext = strings.TrimPrefix(ext, ".")
	var b strings.Builder
	for _, r := range base {
		if isIdent(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if ext != "" {
		b.WriteByte('_')
		for _, r := range ext {
			if isIdent(r) {
				b.WriteRune(r)
			} else {
				b.WriteByte('_')
			}
		}
	}
	return Key(strings.ToLower(b.String()))
}

func isIdent(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		return true
	}
	return false
}

// IsCore reports whether k is one of the fixed core keys.
func (k Key) IsCore() bool {
	_, ok := filenames[k]
	return ok
}

// IsReserved reports whether k is a stream-control key (plan/summary) that
// must never reach the committable patch set.
func (k Key) IsReserved() bool {
	return k == Plan || k == Summary
}

// Filename returns the display filename for k. Core keys use their canonical
// filenames; custom keys reverse the derivation best-effort (last underscore
// becomes the extension dot).
func (k Key) Filename() string {
	if name, ok := filenames[k]; ok {
		return name
	}
	s := string(k)
	if i := strings.LastIndexByte(s, '_'); i > 0 && i < len(s)-1 {
		return s[:i] + "." + s[i+1:]
	}
	return s
}

// Language returns an editor language hint from the key's extension.
func (k Key) Language() string {
	switch ext := path.Ext(k.Filename()); ext {
	case ".json":
		return "json"
	case ".php":
		return "php"
	case ".css":
		return "css"
	case ".js":
		return "javascript"
	case ".txt", "":
		return "plaintext"
	default:
		return strings.TrimPrefix(ext, ".")
	}
}

// Registry allocates custom keys with collision checking. Deriving a key from
// a filename is not injective ("a.b.css" and "a_b.css" collide), so the first
// filename wins the bare key and later colliding filenames get a numeric
// suffix. Allocation is deterministic for a fixed insertion order.
type Registry struct {
	byKey  map[Key]string // key -> owning filename
	byName map[string]Key // filename -> allocated key
	order  []Key
}

// NewRegistry returns a Registry pre-seeded with the core keys.
func NewRegistry() *Registry {
	r := &Registry{
		byKey:  make(map[Key]string),
		byName: make(map[string]Key),
	}
	for _, k := range CoreKeys() {
		r.byKey[k] = k.Filename()
		r.byName[k.Filename()] = k
	}
	return r
}

// Allocate returns the key for filename, minting a collision-free custom key
// on first sight.
func (r *Registry) Allocate(filename string) (Key, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", fmt.Errorf("filekey: empty filename")
	}
	if k, ok := r.byName[filename]; ok {
		return k, nil
	}
	base := Normalize(filename)
	if base == "" {
		return "", fmt.Errorf("filekey: filename %q derives an empty key", filename)
	}
	// Any spelling that normalizes to a core key is that core key; alias
	// spellings must never collide into a suffixed custom key.
	if base.IsCore() {
		r.byName[filename] = base
		return base, nil
	}
	k := base
	for i := 2; ; i++ {
		owner, taken := r.byKey[k]
		if !taken {
			break
		}
		if owner == filename {
			break
		}
		k = Key(fmt.Sprintf("%s-%d", base, i))
	}
	r.byKey[k] = filename
	r.byName[filename] = k
	r.order = append(r.order, k)
	return k, nil
}

// Custom returns the custom keys allocated so far, in first-seen order.
func (r *Registry) Custom() []Key {
	out := make([]Key, len(r.order))
	copy(out, r.order)
	return out
}
