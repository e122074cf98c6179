package review

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"blockforge/internal/filekey"
)

type fakeEditor struct {
	contents []string
}

func (f *fakeEditor) SetContent(text string) {
	f.contents = append(f.contents, text)
}

func TestRegistryQueuesUntilAttach(t *testing.T) {
	r := NewEditorRegistry()
	r.SetContent(filekey.ViewJS, "v1")
	r.SetContent(filekey.ViewJS, "v2")
	assert.Equal(t, WidgetUninitialized, r.State(filekey.ViewJS))

	ed := &fakeEditor{}
	r.Attach(filekey.ViewJS, ed)
	assert.Equal(t, WidgetReady, r.State(filekey.ViewJS))
	// Last write wins the queue.
	assert.Equal(t, []string{"v2"}, ed.contents)
}

func TestRegistryDirectDeliveryWhenReady(t *testing.T) {
	r := NewEditorRegistry()
	ed := &fakeEditor{}
	r.Attach(filekey.StyleCSS, ed)
	r.SetContent(filekey.StyleCSS, "a{}")
	r.SetContent(filekey.StyleCSS, "b{}")
	assert.Equal(t, []string{"a{}", "b{}"}, ed.contents)
}

func TestRegistryAttachWithoutQueue(t *testing.T) {
	r := NewEditorRegistry()
	ed := &fakeEditor{}
	r.Attach(filekey.BlockJSON, ed)
	assert.Empty(t, ed.contents)
}

func TestRegistryReset(t *testing.T) {
	r := NewEditorRegistry()
	r.Attach(filekey.BlockJSON, &fakeEditor{})
	r.Reset()
	assert.Equal(t, WidgetUninitialized, r.State(filekey.BlockJSON))
}
