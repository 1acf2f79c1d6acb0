// Package testutil provides shared test helpers for databases and documents.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/learnlog/internal/doctree"
	"github.com/starford/learnlog/internal/store"
)

// TestDB creates a temporary SQLite record store that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "learnlog-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Doc builds a document with one paragraph per argument.
func Doc(paragraphs ...string) doctree.Node {
	doc := doctree.Empty()
	for _, p := range paragraphs {
		doc.Children = append(doc.Children, doctree.Paragraph(p))
	}
	return doc
}
