package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseItemIDs(t *testing.T) {
	ids, err := parseItemIDs([]string{"1", " 42 ", "7"})
	if err != nil {
		t.Fatalf("parseItemIDs: %v", err)
	}
	if len(ids) != 3 || ids[1] != 42 {
		t.Fatalf("ids = %v", ids)
	}

	for _, bad := range []string{"0", "-3", "abc", ""} {
		if _, err := parseItemIDs([]string{bad}); err == nil {
			t.Errorf("parseItemIDs(%q) accepted", bad)
		}
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	content := `[
		{"source_path":"/staging/a.mkv","title":"A","media_type":"movie","year":2020},
		{"source_path":"/staging/b.mkv","title":"B","media_type":"episode","season":1,"episode":2}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	items, err := loadManifest(path)
	if err != nil {
		t.Fatalf("loadManifest: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	if items[0].Title != "A" || items[0].Year != 2020 {
		t.Fatalf("first item = %+v", items[0])
	}
	if items[1].Season != 1 || items[1].Episode != 2 {
		t.Fatalf("second item = %+v", items[1])
	}
}

func TestLoadManifestRejectsBadMediaType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, []byte(`[{"source_path":"/x","title":"X","media_type":"song"}]`), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	if _, err := loadManifest(path); err == nil {
		t.Fatal("expected error for invalid media type")
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.toml")

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"config", "init", "--output", target})

	if err := root.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatalf("sample missing paths section:\n%s", data)
	}

	// A second run without --overwrite refuses to clobber.
	root = newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"config", "init", "--output", target})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error without --overwrite")
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	rendered := renderTable([]string{"A", "B"}, [][]string{{"only"}}, nil)
	if !strings.Contains(rendered, "only") {
		t.Fatalf("rendered table missing cell:\n%s", rendered)
	}
}
