package dom

import (
	"errors"
	"sort"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Package dom holds the small slice of document handling an upload needs:
// building elements, cloning them, and moving a node out of its slot and back.
// Nodes are golang.org/x/net/html nodes so pages parsed from HTML can be used directly.

// ErrDetached is returned when a node has no parent to hold its slot.
var ErrDetached = errors.New("element is not attached to a document")

// Create returns a new element with the given attributes applied.
// Attributes are set in key order so serialized output is stable.
func Create(tag string, attrs map[string]string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Lookup([]byte(tag)),
		Data:     tag,
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		SetAttr(n, k, attrs[k])
	}
	return n
}

// CloneShallow copies an element's tag and attributes without its children.
// The value attribute is not carried over.
func CloneShallow(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == "value" {
			continue
		}
		c.Attr = append(c.Attr, a)
	}
	return c
}

// Attr returns the value of the named attribute and whether it is present.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces the named attribute.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes the named attribute if present.
func RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// Relocate moves n to the end of dst under a new name attribute. A shallow
// clone of n holds its old position meanwhile so surrounding layout is kept.
//
// The returned release func puts n back before the clone, restores its name
// (or its lack of one) and removes the clone. Callers defer it right away.
// Relocate does not lock: one input element must not be relocated by two
// sessions at once.
func Relocate(n, dst *html.Node, name string) (release func(), err error) {
	if n.Parent == nil {
		return nil, ErrDetached
	}
	oldName, hadName := Attr(n, "name")

	clone := CloneShallow(n)
	n.Parent.InsertBefore(clone, n)

	SetAttr(n, "name", name)
	n.Parent.RemoveChild(n)
	dst.AppendChild(n)

	return func() {
		if hadName {
			SetAttr(n, "name", oldName)
		} else {
			RemoveAttr(n, "name")
		}
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		if clone.Parent == nil {
			return
		}
		clone.Parent.InsertBefore(n, clone)
		clone.Parent.RemoveChild(clone)
	}, nil
}

// Walk visits n and its descendants in document order.
func Walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}
