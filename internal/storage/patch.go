package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Patch is an explicit multi-path write: path -> new value. A nil value
// removes the path. Values are encoded with encoding/json, so a value that
// encodes to null also removes.
type Patch map[string]any

// Set records a new value for path.
func (p Patch) Set(path string, value any) Patch {
	p[path] = value
	return p
}

// Delete records the removal of path.
func (p Patch) Delete(path string) Patch {
	p[path] = nil
	return p
}

// loader reads a document inside the ongoing write. ok is false when the
// document does not exist.
type loader func(docPath string) (raw json.RawMessage, ok bool, err error)

// resolve computes the content of every document touched by the patch. A
// nil entry in the result means the document must be removed.
func (p Patch) resolve(load loader) (map[string]json.RawMessage, error) {
	paths := make([]string, 0, len(p))
	for k := range p {
		paths = append(paths, k)
	}
	// A document path sorts before the paths of its fields.
	sort.Strings(paths)

	docs := make(map[string]map[string]any)
	for _, path := range paths {
		docPath, field, err := splitPath(path)
		if err != nil {
			return nil, err
		}
		value, err := normalize(p[path])
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", path, err)
		}

		if len(field) == 0 {
			if value == nil {
				docs[docPath] = nil
				continue
			}
			obj, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %q must hold an object", ErrInvalidPath, path)
			}
			docs[docPath] = obj
			continue
		}

		doc, seen := docs[docPath]
		if !seen {
			raw, ok, err := load(docPath)
			if err != nil {
				return nil, err
			}
			if ok {
				if doc, err = decodeObject(raw); err != nil {
					return nil, fmt.Errorf("decode %s: %w", docPath, err)
				}
			}
		}
		if doc == nil {
			doc = make(map[string]any)
		}
		setField(doc, field, value)
		docs[docPath] = doc
	}

	out := make(map[string]json.RawMessage, len(docs))
	for docPath, doc := range docs {
		if doc == nil {
			out[docPath] = nil
			continue
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", docPath, err)
		}
		out[docPath] = b
	}
	return out, nil
}

func setField(doc map[string]any, field []string, value any) {
	cur := doc
	for _, seg := range field[:len(field)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			if value == nil {
				return
			}
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	last := field[len(field)-1]
	if value == nil {
		delete(cur, last)
		return
	}
	cur[last] = value
}

// normalize turns any value into its generic JSON form.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
