package registry

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"storyd/internal/common/fsutil"
	"storyd/pkg/types"
)

var quantRe = regexp.MustCompile(`(?i)[-._](q\d+(_[a-z0-9]+)*|f16|f32|bf16)$`)

// LoadDir scans a directory for *.gguf files and builds a registry from
// filenames. ID is the filename without extension; Path is absolute.
func LoadDir(dir string) ([]types.Model, error) {
	abs, err := fsutil.ResolvePath(dir)
	if err != nil {
		return nil, err
	}
	if abs == "" {
		return nil, fmt.Errorf("models dir is empty")
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if !strings.EqualFold(ext, ".gguf") {
			continue
		}
		models = append(models, describe(strings.TrimSuffix(name, ext), filepath.Join(abs, name)))
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

func describe(id, p string) types.Model {
	m := types.Model{ID: id, Path: p}
	base := id
	if loc := quantRe.FindStringSubmatchIndex(id); loc != nil {
		m.Quant = strings.ToUpper(id[loc[2]:loc[3]])
		base = id[:loc[0]]
	}
	if i := strings.IndexAny(base, "-_."); i > 0 {
		m.Family = strings.ToLower(base[:i])
	}
	m.Name = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	if m.Quant != "" {
		m.Name += " (" + m.Quant + ")"
	}
	return m
}

// Find picks the model matching a hub-style id such as
// "google/gemma-3-270m-it": an exact file id wins, then the shortest id
// starting with the id's last path segment.
func Find(models []types.Model, modelID string) (types.Model, error) {
	want := strings.ToLower(path.Base(strings.TrimSpace(modelID)))
	if want == "" || want == "." || want == "/" {
		return types.Model{}, fmt.Errorf("model id is empty")
	}
	var best *types.Model
	for i := range models {
		id := strings.ToLower(models[i].ID)
		if id == want {
			return models[i], nil
		}
		if strings.HasPrefix(id, want) && (best == nil || len(models[i].ID) < len(best.ID)) {
			best = &models[i]
		}
	}
	if best == nil {
		return types.Model{}, fmt.Errorf("no gguf file for model %q", modelID)
	}
	return *best, nil
}

// Resolver returns a func mapping model ids to GGUF paths under dir. The
// directory is rescanned on every call so newly downloaded files are seen
// on reload.
func Resolver(dir string) func(modelID string) (string, error) {
	return func(modelID string) (string, error) {
		models, err := LoadDir(dir)
		if err != nil {
			return "", err
		}
		m, err := Find(models, modelID)
		if err != nil {
			return "", err
		}
		return m.Path, nil
	}
}
