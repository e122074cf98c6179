package stream

import (
	"reflect"
	"testing"

	"blockforge/internal/filekey"
)

func runClassifier(t *testing.T, text string, chunk int) (*Classifier, *Accumulator) {
	t.Helper()
	acc := NewAccumulator()
	cls := NewClassifier(acc, Hooks{})
	if chunk <= 0 {
		cls.Write(text)
	} else {
		for len(text) > 0 {
			n := chunk
			if n > len(text) {
				n = len(text)
			}
			cls.Write(text[:n])
			text = text[n:]
		}
	}
	cls.Finish()
	return cls, acc
}

func TestClassifierProseOnly(t *testing.T) {
	cls, acc := runClassifier(t, "Just thinking out loud here.", 0)
	segs := cls.Segments()
	if len(segs) != 1 || segs[0].Kind != SegmentProse {
		t.Fatalf("unexpected segments: %+v", segs)
	}
	if segs[0].Text != "Just thinking out loud here." {
		t.Fatalf("unexpected prose: %q", segs[0].Text)
	}
	if acc.Freeze().Len() != 0 {
		t.Fatalf("prose-only stream produced files")
	}
}

func TestClassifierFileBlock(t *testing.T) {
	text := "Here goes:\n@@@FILE:render_php@@@\n<?php echo 1;\n@@@END_FILE@@@\nDone."
	cls, acc := runClassifier(t, text, 0)

	segs := cls.Segments()
	want := []Segment{
		{Kind: SegmentProse, Text: "Here goes:\n"},
		{Kind: SegmentFile, Key: filekey.RenderPHP},
		{Kind: SegmentProse, Text: "Done."},
	}
	if !reflect.DeepEqual(segs, want) {
		t.Fatalf("segments mismatch:\n got %+v\nwant %+v", segs, want)
	}

	patch := acc.Freeze()
	got, ok := patch.Get(filekey.RenderPHP)
	if !ok {
		t.Fatalf("render_php missing from patch set")
	}
	if got != "<?php echo 1;" {
		t.Fatalf("unexpected file content: %q", got)
	}
}

func TestClassifierKeyAliasesAndWhitespace(t *testing.T) {
	text := "@@@FILE: block.json @@@\n{}\n@@@END_FILE@@@"
	cls, acc := runClassifier(t, text, 0)
	segs := cls.Segments()
	if len(segs) != 1 || segs[0].Key != filekey.BlockJSON {
		t.Fatalf("alias did not resolve: %+v", segs)
	}
	if got, _ := acc.Freeze().Get(filekey.BlockJSON); got != "{}" {
		t.Fatalf("unexpected content: %q", got)
	}
}

// Whitespace between adjacent file blocks must not surface as prose, while
// whitespace followed by real prose must be kept verbatim.
func TestClassifierInterBlockWhitespace(t *testing.T) {
	text := "@@@FILE:style_css@@@\nbody{}\n@@@END_FILE@@@\n\n@@@FILE:view_js@@@\nlet x;\n@@@END_FILE@@@"
	cls, _ := runClassifier(t, text, 0)
	for _, seg := range cls.Segments() {
		if seg.Kind == SegmentProse {
			t.Fatalf("whitespace leaked as prose: %q", seg.Text)
		}
	}

	text2 := "@@@FILE:style_css@@@\nbody{}\n@@@END_FILE@@@\n\n  and now prose"
	cls2, _ := runClassifier(t, text2, 0)
	segs := cls2.Segments()
	last := segs[len(segs)-1]
	if last.Kind != SegmentProse || last.Text != "\n  and now prose" {
		t.Fatalf("unexpected trailing prose: %+v", last)
	}
}

// The single newline right after an end sentinel belongs to the protocol,
// not the prose.
func TestClassifierEatsNewlineAfterClose(t *testing.T) {
	text := "@@@FILE:view_js@@@\nlet x;\n@@@END_FILE@@@\nafter"
	cls, _ := runClassifier(t, text, 0)
	segs := cls.Segments()
	last := segs[len(segs)-1]
	if last.Kind != SegmentProse || last.Text != "after" {
		t.Fatalf("newline not eaten: %+v", last)
	}
}

func TestClassifierSummaryEmitsNoSegment(t *testing.T) {
	var summary string
	acc := NewAccumulator()
	cls := NewClassifier(acc, Hooks{OnSummary: func(s string) { summary += s }})
	cls.Write("@@@FILE:summary@@@\n- **Added** a block\n@@@END_FILE@@@")
	cls.Finish()

	if len(cls.Segments()) != 0 {
		t.Fatalf("summary produced segments: %+v", cls.Segments())
	}
	if acc.Summary() != "- **Added** a block" {
		t.Fatalf("unexpected summary: %q", acc.Summary())
	}
	if summary == "" {
		t.Fatalf("summary hook not invoked")
	}
	if acc.Freeze().Len() != 0 {
		t.Fatalf("summary leaked into patch set")
	}
}

// Plan blocks keep their place in the segment sequence so prose before and
// after the plan stays split, while the plan body itself stays out of the
// patch set and off the file hooks.
func TestClassifierPlanSegmentSequence(t *testing.T) {
	text := "Plan:\n@@@FILE:plan@@@\n1. add block\n@@@END_FILE@@@\nNow code:\n" +
		"@@@FILE:block_json@@@\n{\"a\":1}\n@@@END_FILE@@@"
	var opened []filekey.Key
	acc := NewAccumulator()
	cls := NewClassifier(acc, Hooks{OnFileOpen: func(k filekey.Key) { opened = append(opened, k) }})
	cls.Write(text)
	cls.Finish()

	want := []Segment{
		{Kind: SegmentProse, Text: "Plan:\n"},
		{Kind: SegmentFile, Key: filekey.Plan},
		{Kind: SegmentProse, Text: "Now code:\n"},
		{Kind: SegmentFile, Key: filekey.BlockJSON},
	}
	if !reflect.DeepEqual(cls.Segments(), want) {
		t.Fatalf("segments mismatch:\n got %+v\nwant %+v", cls.Segments(), want)
	}
	if !reflect.DeepEqual(opened, []filekey.Key{filekey.BlockJSON}) {
		t.Fatalf("file hooks saw reserved key: %v", opened)
	}
	if acc.Plan() != "1. add block" {
		t.Fatalf("plan text: %q", acc.Plan())
	}
	patch := acc.Freeze()
	if patch.Len() != 1 {
		t.Fatalf("patch set keys: %v", patch.Keys())
	}
	if got, _ := patch.Get(filekey.BlockJSON); got != "{\"a\":1}" {
		t.Fatalf("block_json content: %q", got)
	}
}

func TestClassifierSuppressesRestatedSummary(t *testing.T) {
	text := "@@@FILE:summary@@@\n- **Added** view.js\n@@@END_FILE@@@\n- **Added** view.js\n- **Fixed** style\nReal closing words."
	cls, _ := runClassifier(t, text, 0)
	segs := cls.Segments()
	if len(segs) != 1 || segs[0].Kind != SegmentProse {
		t.Fatalf("unexpected segments: %+v", segs)
	}
	if segs[0].Text != "Real closing words." {
		t.Fatalf("suppression failed: %q", segs[0].Text)
	}
}

func TestClassifierSuppressionDisabled(t *testing.T) {
	acc := NewAccumulator()
	cls := NewClassifier(acc, Hooks{})
	cls.SetRestatedPredicate(nil)
	cls.Write("@@@FILE:summary@@@\ns\n@@@END_FILE@@@\n- **Added** thing\n")
	cls.Finish()
	segs := cls.Segments()
	if len(segs) != 1 || segs[0].Text != "- **Added** thing\n" {
		t.Fatalf("disabled suppression still dropped prose: %+v", segs)
	}
}

// A dangling partial sentinel at end of stream is prose after all.
func TestClassifierDanglingPartialSentinel(t *testing.T) {
	cls, _ := runClassifier(t, "trailing @@@FI", 0)
	segs := cls.Segments()
	if len(segs) != 1 || segs[0].Text != "trailing @@@FI" {
		t.Fatalf("partial sentinel mishandled: %+v", segs)
	}
}

// A file left open at end of stream keeps what arrived.
func TestClassifierUnclosedFile(t *testing.T) {
	cls, acc := runClassifier(t, "@@@FILE:readme_txt@@@\npartial body", 0)
	if key, open := cls.CurrentKey(); !open || key != filekey.ReadmeTXT {
		t.Fatalf("expected open readme_txt, got %q open=%v", key, open)
	}
	if got, _ := acc.Freeze().Get(filekey.ReadmeTXT); got != "partial body" {
		t.Fatalf("unexpected partial content: %q", got)
	}
}

func TestClassifierCustomKeyAllocation(t *testing.T) {
	text := "@@@FILE:admin.css@@@\n.a{}\n@@@END_FILE@@@"
	cls, acc := runClassifier(t, text, 0)
	segs := cls.Segments()
	if len(segs) != 1 || segs[0].Key != filekey.Key("admin_css") {
		t.Fatalf("custom key not derived: %+v", segs)
	}
	if got, _ := acc.Freeze().Get(filekey.Key("admin_css")); got != ".a{}" {
		t.Fatalf("unexpected custom content: %q", got)
	}
}

// Output must be identical no matter where the transport splits the text,
// including splits inside sentinels.
func TestClassifierChunkBoundaryIndependence(t *testing.T) {
	text := "Plan first.\n@@@FILE:block_json@@@\n{\"name\":\"x\"}\n@@@END_FILE@@@\n" +
		"@@@FILE:summary@@@\n- **Added** block.json\n@@@END_FILE@@@\n- **Added** block.json\nAll done."

	refCls, refAcc := runClassifier(t, text, 0)
	refSegs := refCls.Segments()
	refPatch := refAcc.Freeze()

	for chunk := 1; chunk <= len(text); chunk++ {
		cls, acc := runClassifier(t, text, chunk)
		if !reflect.DeepEqual(cls.Segments(), refSegs) {
			t.Fatalf("chunk=%d segments diverge:\n got %+v\nwant %+v", chunk, cls.Segments(), refSegs)
		}
		patch := acc.Freeze()
		if !reflect.DeepEqual(patch.Keys(), refPatch.Keys()) {
			t.Fatalf("chunk=%d keys diverge", chunk)
		}
		for _, k := range refPatch.Keys() {
			want, _ := refPatch.Get(k)
			got, _ := patch.Get(k)
			if got != want {
				t.Fatalf("chunk=%d content diverges for %s: %q != %q", chunk, k, got, want)
			}
		}
	}
}

func TestLooksLikeRestatedSummary(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"- **Added** a block", true},
		{"  * **Fixed** style", true},
		{"- plain bullet", false},
		{"regular prose", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := LooksLikeRestatedSummary(tc.line); got != tc.want {
			t.Fatalf("LooksLikeRestatedSummary(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}
