package plist

import "fmt"

// Entry is one property-list value: a tagged variant of string, integer,
// data (leaf types with a raw Value string), or array/dict (with ordered
// Children). A dict child's Key is borrowed from the enclosing <key> node.
// Grounded on original_source/src/WarpedDrive/plist.h's PlistEntry.
type Entry struct {
	Key      string
	Type     string
	Value    string
	Children []Entry
}

// Root parses data (starting at its first "<plist ...>" or "<dict ...>"
// element) into an Entry tree. If the outermost element is the
// conventional "<plist>" wrapper around a single value, Root returns that
// inner value directly so callers can Get() straight into the document's
// top-level dict without special-casing the wrapper.
func Root(data string) (Entry, error) {
	n, err := Parse(data)
	if err != nil {
		return Entry{}, err
	}
	e, err := entryFromValue("", n)
	if err != nil {
		return Entry{}, err
	}
	if e.Type == "plist" && len(e.Children) == 1 {
		return e.Children[0], nil
	}
	return e, nil
}

func entryFromValue(key string, n Node) (Entry, error) {
	e := Entry{Key: key, Type: n.Tag}

	switch n.Tag {
	case "string", "integer", "data":
		if len(n.Children) > 0 {
			return Entry{}, fmt.Errorf("plist: <%s> leaf must not have children", n.Tag)
		}
		e.Value = n.Text

	case "array":
		for _, c := range n.Children {
			child, err := entryFromValue("", c)
			if err != nil {
				return Entry{}, err
			}
			e.Children = append(e.Children, child)
		}

	case "dict":
		if len(n.Children)%2 != 0 {
			return Entry{}, fmt.Errorf("plist: dict has a trailing unmatched <key>")
		}
		for i := 0; i < len(n.Children); i += 2 {
			keyNode, valNode := n.Children[i], n.Children[i+1]
			if keyNode.Tag != "key" {
				return Entry{}, fmt.Errorf("plist: expected <key>, got <%s>", keyNode.Tag)
			}
			child, err := entryFromValue(keyNode.Text, valNode)
			if err != nil {
				return Entry{}, err
			}
			e.Children = append(e.Children, child)
		}

	default:
		// Other tag names (plist, true, false, real, ...) propagate as-is:
		// keep the raw text and recurse into any children unpaired.
		e.Value = n.Text
		for _, c := range n.Children {
			child, err := entryFromValue("", c)
			if err != nil {
				return Entry{}, err
			}
			e.Children = append(e.Children, child)
		}
	}
	return e, nil
}

// Get performs a linear search across e's dict children for one whose Key
// matches name. Only dict children ever carry a Key.
func (e Entry) Get(name string) *Entry {
	for i := range e.Children {
		if e.Children[i].Key == name {
			return &e.Children[i]
		}
	}
	return nil
}
