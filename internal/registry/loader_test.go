package registry

import (
	"os"
	"path/filepath"
	"testing"

	"storyd/pkg/types"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, f := range names {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(""), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
}

func TestLoadDir_FiltersGGUF(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.gguf", "b.GGUF", "not-model.txt", "model.bin")
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	models, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(models) != 2 || models[0].ID != "a" || models[1].ID != "b" {
		t.Fatalf("unexpected models: %+v", models)
	}
	if !filepath.IsAbs(models[0].Path) {
		t.Fatalf("path not absolute: %s", models[0].Path)
	}
}

func TestLoadDir_ExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.Mkdir(filepath.Join(home, "models"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFiles(t, filepath.Join(home, "models"), "x.gguf")
	models, err := LoadDir("~/models")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(models) != 1 || models[0].ID != "x" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestLoadDir_Missing(t *testing.T) {
	if _, err := LoadDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
	if _, err := LoadDir(""); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestDescribe_ParsesQuantAndFamily(t *testing.T) {
	m := describe("gemma-3-270m-it-Q4_K_M", "/m.gguf")
	if m.Quant != "Q4_K_M" || m.Family != "gemma" || m.Name != "gemma 3 270m it (Q4_K_M)" {
		t.Fatalf("unexpected: %+v", m)
	}
	m = describe("tiny", "/t.gguf")
	if m.Quant != "" || m.Family != "" || m.Name != "tiny" {
		t.Fatalf("unexpected: %+v", m)
	}
}

func TestFind(t *testing.T) {
	models := []types.Model{
		{ID: "gemma-3-270m-it-Q8_0", Path: "/a"},
		{ID: "gemma-3-270m-it-Q4_K_M", Path: "/b"},
		{ID: "llama-3.2-1b", Path: "/c"},
	}
	m, err := Find(models, "google/gemma-3-270m-it")
	if err != nil || m.Path != "/a" {
		t.Fatalf("got %+v err=%v", m, err)
	}
	m, err = Find(models, "llama-3.2-1b")
	if err != nil || m.Path != "/c" {
		t.Fatalf("got %+v err=%v", m, err)
	}
	if _, err := Find(models, "mistral/mistral-7b"); err == nil {
		t.Fatalf("expected error for unknown model")
	}
	if _, err := Find(models, " "); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestResolver(t *testing.T) {
	dir := t.TempDir()
	resolve := Resolver(dir)
	if _, err := resolve("google/gemma-3-270m-it"); err == nil {
		t.Fatalf("expected error before file exists")
	}
	writeFiles(t, dir, "gemma-3-270m-it-Q4_K_M.gguf")
	p, err := resolve("google/gemma-3-270m-it")
	if err != nil || filepath.Base(p) != "gemma-3-270m-it-Q4_K_M.gguf" {
		t.Fatalf("got %q err=%v", p, err)
	}
}
