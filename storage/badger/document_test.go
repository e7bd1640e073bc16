package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/kaiteki-lab/kotae/core"
	"github.com/kaiteki-lab/kotae/storage"
)

func TestDocumentBasics(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	doc := &core.Document{
		ID:       "doc-1",
		Title:    "Billing FAQ",
		Content:  "How billing works.",
		Category: "faq",
		Language: core.LanguageEnglish,
	}
	if err := repos.Documents.PutDocument(ctx, doc); err != nil {
		t.Fatalf("Failed to put document: %v", err)
	}
	if doc.CreatedAt.IsZero() || doc.LastUpdated.IsZero() {
		t.Fatal("Expected timestamps to be set")
	}

	retrieved, err := repos.Documents.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if retrieved.Title != "Billing FAQ" {
		t.Fatalf("Expected 'Billing FAQ', got %q", retrieved.Title)
	}

	_, err = repos.Documents.GetDocument(ctx, "doc-missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestDocumentUpsert(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	doc := &core.Document{ID: "doc-1", Title: "v1", Content: "first", Category: "faq", Language: core.LanguageEnglish}
	if err := repos.Documents.PutDocument(ctx, doc); err != nil {
		t.Fatalf("Failed to put document: %v", err)
	}
	created := doc.CreatedAt

	doc.Title = "v2"
	if err := repos.Documents.PutDocument(ctx, doc); err != nil {
		t.Fatalf("Failed to re-put document: %v", err)
	}

	retrieved, err := repos.Documents.GetDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if retrieved.Title != "v2" {
		t.Fatalf("Expected replaced title, got %q", retrieved.Title)
	}
	if !retrieved.CreatedAt.Equal(created) {
		t.Fatal("Expected CreatedAt to be preserved on upsert")
	}

	count, err := repos.Documents.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("Failed to count documents: %v", err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 document, got %d", count)
	}
}

func TestListCategories(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	docs := []*core.Document{
		{ID: "doc-1", Title: "a", Content: "x", Category: "faq", Language: core.LanguageEnglish},
		{ID: "doc-2", Title: "b", Content: "y", Category: "guide", Language: core.LanguageEnglish},
		{ID: "doc-3", Title: "c", Content: "z", Category: "faq", Language: core.LanguageJapanese},
	}
	for _, d := range docs {
		if err := repos.Documents.PutDocument(ctx, d); err != nil {
			t.Fatalf("Failed to put document: %v", err)
		}
	}

	categories, err := repos.Documents.ListCategories(ctx)
	if err != nil {
		t.Fatalf("Failed to list categories: %v", err)
	}
	if len(categories) != 2 || categories[0] != "faq" || categories[1] != "guide" {
		t.Fatalf("Unexpected categories: %v", categories)
	}
}

func TestDeleteDocument(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	doc := &core.Document{ID: "doc-1", Title: "a", Content: "x", Category: "faq", Language: core.LanguageEnglish}
	if err := repos.Documents.PutDocument(ctx, doc); err != nil {
		t.Fatalf("Failed to put document: %v", err)
	}

	if err := repos.Documents.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("Failed to delete document: %v", err)
	}
	if err := repos.Documents.DeleteDocument(ctx, "doc-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on double delete, got %v", err)
	}
}

func TestTemplateRepository(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	templates := []*core.Template{
		{ID: "tpl-email-ja", Name: "Email (ja)", Type: core.ResponseEmail, Content: "{query}", Language: core.LanguageJapanese},
		{ID: "tpl-standard-en", Name: "Standard (en)", Type: core.ResponseStandard, Content: "{query}", Language: core.LanguageEnglish},
	}
	for _, tpl := range templates {
		if err := repos.Templates.PutTemplate(ctx, tpl); err != nil {
			t.Fatalf("Failed to put template: %v", err)
		}
	}

	retrieved, err := repos.Templates.GetTemplate(ctx, "tpl-email-ja")
	if err != nil {
		t.Fatalf("Failed to get template: %v", err)
	}
	if retrieved.Type != core.ResponseEmail {
		t.Fatalf("Expected email type, got %v", retrieved.Type)
	}

	all, err := repos.Templates.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("Failed to list templates: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 templates, got %d", len(all))
	}
	if all[0].ID != "tpl-email-ja" {
		t.Fatalf("Expected ID ordering, got %s first", all[0].ID)
	}

	_, err = repos.Templates.GetTemplate(ctx, "tpl-missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
