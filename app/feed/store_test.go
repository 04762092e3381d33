package feed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

type extractorStub struct {
	results map[string]string
	calls   []string
	err     error
}

func (e *extractorStub) Get(ctx context.Context, url string) (string, error) {
	e.calls = append(e.calls, url)
	if e.err != nil {
		return "", e.err
	}
	return e.results[url], nil
}

func testEntries() []Entry {
	return []Entry{
		{Title: "First", ArticleURL: "https://blog.example.com/a#frag", DiscussionURL: "https://news.ycombinator.com/item?id=111"},
		{Title: "Second", ArticleURL: "https://www.example.co.uk/b", DiscussionURL: "https://news.ycombinator.com/item?id=222"},
	}
}

func TestStore_Load_MissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "item_cache.yml"), testLogger())

	if err := store.Load(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(store.Items()) != 0 {
		t.Errorf("Expected empty store, got %d items", len(store.Items()))
	}
	if store.Changed() {
		t.Error("Expected store to be unchanged after load")
	}
}

func TestStore_Load_MalformedIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item_cache.yml")
	if err := os.WriteFile(path, []byte("- id: [unterminated\n  title: :"), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path, testLogger())
	if err := store.Load(); err == nil {
		t.Error("Expected error for malformed item store")
	}
}

func TestStore_Load_DropsExpiredItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item_cache.yml")
	now := time.Now().UTC().Truncate(time.Second)

	items := []Item{
		{ID: "1", Title: "Old", URL: "https://a.example.com/", CommentsURL: "https://news.ycombinator.com/item?id=1", UpdatedAt: now.Add(-25 * time.Hour)},
		{ID: "2", Title: "Recent", URL: "https://b.example.com/", CommentsURL: "https://news.ycombinator.com/item?id=2", UpdatedAt: now.Add(-1 * time.Hour)},
	}
	data, err := yaml.Marshal(items)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path, testLogger())
	if err := store.Load(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	loaded := store.Items()
	if len(loaded) != 1 {
		t.Fatalf("Expected 1 item after GC, got %d", len(loaded))
	}
	if loaded[0].ID != "2" {
		t.Errorf("Expected recent item to survive, got '%s'", loaded[0].ID)
	}
	if store.Changed() {
		t.Error("Expected GC at load not to mark the store changed")
	}
}

func TestStore_Merge_AddsNewEntries(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "item_cache.yml"), testLogger())
	extractor := &extractorStub{results: map[string]string{
		"https://blog.example.com/a": "<p>A</p>",
	}}

	if err := store.Merge(context.Background(), testEntries(), extractor); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	items := store.Items()
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if !store.Changed() {
		t.Error("Expected store to be changed after merge")
	}

	first := items[0]
	if first.ID != "111" {
		t.Errorf("Expected ID '111', got '%s'", first.ID)
	}
	if first.URL != "https://blog.example.com/a" {
		t.Errorf("Expected fragment to be stripped, got '%s'", first.URL)
	}
	if first.Title != "First [example.com]" {
		t.Errorf("Expected title with domain, got '%s'", first.Title)
	}
	if first.Content != "<p>A</p>" {
		t.Errorf("Expected extracted content, got '%s'", first.Content)
	}
	if first.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be set")
	}

	second := items[1]
	if second.Title != "Second [example.co.uk]" {
		t.Errorf("Expected registrable domain for multi-label suffix, got '%s'", second.Title)
	}
	if second.Content != "" {
		t.Errorf("Expected empty content for failed extraction, got '%s'", second.Content)
	}
}

func TestStore_Merge_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item_cache.yml")
	store := NewStore(path, testLogger())
	extractor := &extractorStub{}

	if err := store.Merge(context.Background(), testEntries(), extractor); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if store.Changed() {
		t.Error("Expected store to be unchanged after save")
	}

	before := store.Items()

	if err := store.Merge(context.Background(), testEntries(), extractor); err != nil {
		t.Fatal(err)
	}
	if store.Changed() {
		t.Error("Expected second merge of same entries to leave store unchanged")
	}
	if len(extractor.calls) != 2 {
		t.Errorf("Expected extraction only for new entries, got %d calls", len(extractor.calls))
	}

	after := store.Items()
	if len(after) != len(before) {
		t.Fatalf("Expected %d items, got %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("Expected item %d to be unchanged", i)
		}
	}
}

func TestStore_Merge_ExistingItemsImmutable(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "item_cache.yml"), testLogger())
	extractor := &extractorStub{}

	store.Merge(context.Background(), testEntries()[:1], extractor)

	renamed := []Entry{{
		Title:         "First (edited)",
		ArticleURL:    "https://other.example.net/",
		DiscussionURL: "https://news.ycombinator.com/item?id=111",
	}}
	store.Merge(context.Background(), renamed, extractor)

	items := store.Items()
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0].Title != "First [example.com]" {
		t.Errorf("Expected original title to be kept, got '%s'", items[0].Title)
	}
}

func TestStore_Merge_SkipsEntryWithoutDiscussion(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "item_cache.yml"), testLogger())

	err := store.Merge(context.Background(), []Entry{{Title: "X", ArticleURL: "https://example.com/"}}, &extractorStub{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(store.Items()) != 0 {
		t.Errorf("Expected entry without discussion URL to be skipped")
	}
}

func TestStore_Merge_Cancelled(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "item_cache.yml"), testLogger())
	extractor := &extractorStub{err: context.Canceled}

	if err := store.Merge(context.Background(), testEntries(), extractor); err == nil {
		t.Error("Expected cancellation to abort merge")
	}
	if len(store.Items()) != 0 {
		t.Errorf("Expected no items after aborted merge, got %d", len(store.Items()))
	}
}

func TestStore_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item_cache.yml")
	store := NewStore(path, testLogger())
	extractor := &extractorStub{results: map[string]string{
		"https://blog.example.com/a": "<p>A & B</p>",
	}}

	store.Merge(context.Background(), testEntries(), extractor)
	if err := store.Save(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"id:", "title:", "url:", "comments_url:", "content:", "updated_at:"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Expected key '%s' in stored document", key)
		}
	}

	reloaded := NewStore(path, testLogger())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	original := store.Items()
	loaded := reloaded.Items()
	if len(loaded) != len(original) {
		t.Fatalf("Expected %d items, got %d", len(original), len(loaded))
	}
	for i := range original {
		if !original[i].UpdatedAt.Equal(loaded[i].UpdatedAt) || original[i].Content != loaded[i].Content {
			t.Errorf("Expected item %d to survive reload", i)
		}
	}
}

func TestStore_Save_CrashKeepsPreviousState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "item_cache.yml")

	store := NewStore(path, testLogger())
	store.Merge(context.Background(), testEntries()[:1], &extractorStub{})
	if err := store.Save(); err != nil {
		t.Fatal(err)
	}

	// Writing into a missing directory fails before anything is renamed.
	store.path = filepath.Join(dir, "missing", "item_cache.yml")
	store.Merge(context.Background(), testEntries()[1:], &extractorStub{})
	if err := store.Save(); err == nil {
		t.Fatal("Expected save to fail")
	}
	if !store.Changed() {
		t.Error("Expected failed save to keep the store marked changed")
	}

	reloaded := NewStore(path, testLogger())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Expected previous document to stay readable, got: %v", err)
	}
	if len(reloaded.Items()) != 1 {
		t.Errorf("Expected previously committed item, got %d", len(reloaded.Items()))
	}
}

func TestItemID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://news.ycombinator.com/item?id=12345", "12345"},
		{"https://example.com/post", "https://example.com/post"},
	}

	for _, tt := range tests {
		if got := ItemID(tt.input); got != tt.expected {
			t.Errorf("Expected '%s', got '%s'", tt.expected, got)
		}
	}
}

func TestTitleWithDomain(t *testing.T) {
	tests := []struct {
		title    string
		url      string
		expected string
	}{
		{"Story", "https://blog.example.com/x", "Story [example.com]"},
		{"Story", "https://example.co.uk/x", "Story [example.co.uk]"},
		{"Story [example.com]", "https://example.com/x", "Story [example.com]"},
		{"Story", "http://192.168.1.1/x", "Story [192.168.1.1]"},
		{"Story", "http://localhost:8080/x", "Story [localhost]"},
		{"Story", "", "Story"},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			if got := TitleWithDomain(tt.title, tt.url); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}
