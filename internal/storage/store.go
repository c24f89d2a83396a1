// Package storage persists per-user documents.
//
// Documents live under paths of the form users/{uid}/{collection}/{id}.
// Deeper path segments address fields inside a document, so
// users/u1/invoices/i1/isPaid points at the isPaid field of invoice i1.
// Every document is a JSON object.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"financas/internal/core"
)

// Collection names are part of the stored format.
const (
	Transactions = "transactions"
	Accounts     = "accounts"
	Categories   = "categories"
	CreditCards  = "creditCards"
	Invoices     = "invoices"
	Goals        = "goals"
	Family       = "family"
)

const usersRoot = "users"

// docDepth is the number of path segments addressing a whole document.
const docDepth = 4

var ErrInvalidPath = errors.New("invalid document path")

// Store is a document store offering point reads, atomic multi-path writes
// and delete-by-path.
type Store interface {
	// Get returns the document at docPath, or an error wrapping
	// core.ErrNotFound.
	Get(ctx context.Context, docPath string) (json.RawMessage, error)
	// List returns every document of a collection keyed by id. A missing
	// collection yields an empty map.
	List(ctx context.Context, collectionPath string) (map[string]json.RawMessage, error)
	// Put replaces the document at docPath.
	Put(ctx context.Context, docPath string, value any) error
	// Update applies every entry of the patch or none of them.
	Update(ctx context.Context, p Patch) error
	// Remove deletes a document or a field.
	Remove(ctx context.Context, path string) error
	// UserIDs lists the user namespaces holding at least one document.
	UserIDs(ctx context.Context) ([]string, error)
	Close() error
}

// UserPath returns the namespace root of a user.
func UserPath(uid string) string {
	return usersRoot + "/" + uid
}

// CollectionPath returns users/{uid}/{collection}.
func CollectionPath(uid, collection string) string {
	return UserPath(uid) + "/" + collection
}

// DocPath returns users/{uid}/{collection}/{id}.
func DocPath(uid, collection, id string) string {
	return CollectionPath(uid, collection) + "/" + id
}

// FieldPath addresses a (possibly nested) field of a document.
func FieldPath(uid, collection, id string, field ...string) string {
	return DocPath(uid, collection, id) + "/" + strings.Join(field, "/")
}

// splitPath separates a path into its document path and field segments.
func splitPath(path string) (string, []string, error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) < docDepth || segs[0] != usersRoot {
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, s := range segs {
		if s == "" {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return strings.Join(segs[:docDepth], "/"), segs[docDepth:], nil
}

// collectionOf returns the collection path and user id of a document path.
func collectionOf(docPath string) (collection, uid string) {
	segs := strings.Split(docPath, "/")
	return strings.Join(segs[:docDepth-1], "/"), segs[1]
}

func validCollection(collectionPath string) error {
	segs := strings.Split(strings.Trim(collectionPath, "/"), "/")
	if len(segs) != docDepth-1 || segs[0] != usersRoot || segs[1] == "" || segs[2] == "" {
		return fmt.Errorf("%w: %q", ErrInvalidPath, collectionPath)
	}
	return nil
}

func notFound(path string) error {
	return fmt.Errorf("document %q: %w", path, core.ErrNotFound)
}

func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrTransientIO, err)
}
