package xmltemplate

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/cptkit/cptconv/internal/errors"
)

// FlagsTag is the element whose children flatten into Flags.
const FlagsTag = "parameters"

// Flat is a flattened element: *Tree, Text or Flags.
type Flat interface {
	isFlat()
}

// Text is an element without children.
type Text struct {
	Value string
	Attrs map[string]string
}

// Flag is one entry of a Flags list.
type Flag struct {
	Name string
	On   bool
}

// Flags is the ordered on/off list held by a parameters element.
type Flags []Flag

// Tree is an element with children, keyed by child local name in document
// order. A repeated sibling name keeps its first position and its last value.
type Tree struct {
	Name  string
	Attrs map[string]string
	keys  []string
	items map[string]Flat
}

func (*Tree) isFlat() {}
func (Text) isFlat()  {}
func (Flags) isFlat() {}

// Flatten parses an arbitrary well-formed document into a Tree rooted at the
// document element. Malformed input is XML_STRUCTURE.
func Flatten(src []byte) (*Tree, error) {
	doc, err := readDocument(src)
	if err != nil {
		return nil, errors.NewXMLStructure("/", err.Error())
	}
	return flattenTree(doc.Root()), nil
}

func flattenTree(el *etree.Element) *Tree {
	t := &Tree{
		Name:  el.Tag,
		Attrs: flatAttrs(el),
		items: make(map[string]Flat),
	}
	for _, k := range el.ChildElements() {
		t.set(k.Tag, flattenElement(k))
	}
	return t
}

func flattenElement(el *etree.Element) Flat {
	if el.Tag == FlagsTag {
		kids := el.ChildElements()
		flags := make(Flags, 0, len(kids))
		for _, k := range kids {
			v := strings.TrimSpace(k.Text())
			flags = append(flags, Flag{Name: k.Tag, On: v == "ja" || v == "1"})
		}
		return flags
	}
	if len(el.ChildElements()) == 0 {
		return Text{Value: el.Text(), Attrs: flatAttrs(el)}
	}
	return flattenTree(el)
}

// flatAttrs keys attributes by local name, dropping namespace declarations.
func flatAttrs(el *etree.Element) map[string]string {
	var out map[string]string
	for _, a := range el.Attr {
		if isNamespaceDecl(a) {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[a.Key] = a.Value
	}
	return out
}

func (t *Tree) set(key string, v Flat) {
	if _, ok := t.items[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.items[key] = v
}

// Keys returns child names in document order.
func (t *Tree) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Get returns the child named key.
func (t *Tree) Get(key string) (Flat, bool) {
	v, ok := t.items[key]
	return v, ok
}

// Lookup follows path through nested trees.
func (t *Tree) Lookup(path ...string) (Flat, bool) {
	var cur Flat = t
	for _, key := range path {
		tree, ok := cur.(*Tree)
		if !ok {
			return nil, false
		}
		if cur, ok = tree.items[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// TreeAt returns the subtree at path. A missing element or a leaf where a
// subtree is expected is XML_STRUCTURE.
func (t *Tree) TreeAt(path ...string) (*Tree, error) {
	v, ok := t.Lookup(path...)
	if !ok {
		return nil, errors.NewXMLStructure(t.pathString(path), "element not found")
	}
	tree, ok := v.(*Tree)
	if !ok {
		return nil, errors.NewXMLStructure(t.pathString(path), "expected element with children")
	}
	return tree, nil
}

// TextAt returns the trimmed text at path. Missing, empty and non-leaf
// elements report false.
func (t *Tree) TextAt(path ...string) (string, bool) {
	v, ok := t.Lookup(path...)
	if !ok {
		return "", false
	}
	txt, ok := v.(Text)
	if !ok {
		return "", false
	}
	s := strings.TrimSpace(txt.Value)
	return s, s != ""
}

// FloatAt parses the text at path as a number.
func (t *Tree) FloatAt(path ...string) (float64, bool) {
	s, ok := t.TextAt(path...)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FlagsAt returns the Flags list at path.
func (t *Tree) FlagsAt(path ...string) (Flags, bool) {
	v, ok := t.Lookup(path...)
	if !ok {
		return nil, false
	}
	f, ok := v.(Flags)
	return f, ok
}

// Find returns the first subtree, breadth first and including t itself, that
// has a child named key.
func (t *Tree) Find(key string) (*Tree, bool) {
	queue := []*Tree{t}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := cur.items[key]; ok {
			return cur, true
		}
		for _, k := range cur.keys {
			if sub, ok := cur.items[k].(*Tree); ok {
				queue = append(queue, sub)
			}
		}
	}
	return nil, false
}

func (t *Tree) pathString(path []string) string {
	return t.Name + "/" + strings.Join(path, "/")
}
