// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pdsdk/pagedesigner/internal/pagestore"
	"github.com/pdsdk/pagedesigner/internal/protocol"
)

// OpenPageStore creates a page store in a temporary directory that is
// closed when the test ends.
func OpenPageStore(t *testing.T) *pagestore.Store {
	t.Helper()
	store, err := pagestore.Open(pagestore.Options{Path: filepath.Join(t.TempDir(), "pages.db")})
	if err != nil {
		t.Fatalf("open page store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// SeedPage stores a page with a root "layout" component whose "main"
// region holds children, each a component of the given type keyed by
// its id.
func SeedPage(t *testing.T, store *pagestore.Store, pageID string, children map[string]string, order ...string) pagestore.Page {
	t.Helper()
	page := pagestore.Page{
		ID:     pageID,
		RootID: "root",
		Components: map[string]protocol.Component{
			"root": {ID: "root", TypeID: "layout", Regions: []protocol.Region{
				{ID: "main", ComponentIDs: append([]string{}, order...)},
			}},
		},
	}
	for id, typeID := range children {
		page.Components[id] = protocol.Component{ID: id, TypeID: typeID}
	}
	if err := store.PutPage(context.Background(), page); err != nil {
		t.Fatalf("seed page %s: %v", pageID, err)
	}
	return page
}
