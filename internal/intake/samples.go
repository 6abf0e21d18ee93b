package intake

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/claims-cli/internal/model"
)

var sampleExts = []string{".json", ".yaml", ".yml"}

// Samples resolves named sample claims inside a directory.
type Samples struct {
	Dir string
}

// Resolve returns the path of the sample called name. The name may omit its
// extension and is matched case-insensitively.
func (s Samples) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", model.NewError(model.KindClaimNotFound, "",
			eris.Errorf("intake: invalid sample name %q", name))
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return "", notFoundOr(err, s.Dir)
	}

	want := strings.ToLower(name)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		file := e.Name()
		ext := strings.ToLower(filepath.Ext(file))
		if !isSampleExt(ext) {
			continue
		}
		base := strings.ToLower(strings.TrimSuffix(file, filepath.Ext(file)))
		if base == want || strings.ToLower(file) == want {
			return filepath.Join(s.Dir, file), nil
		}
	}
	return "", model.NewError(model.KindClaimNotFound, "",
		eris.Errorf("intake: sample %q not found in %s", name, s.Dir))
}

// Load resolves and reads a named sample.
func (s Samples) Load(name string) (map[string]any, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	return LoadClaimFile(path)
}

// List returns the sample names in the directory, sorted.
func (s Samples) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, notFoundOr(err, s.Dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !isSampleExt(strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(names)
	return names, nil
}

func isSampleExt(ext string) bool {
	for _, x := range sampleExts {
		if ext == x {
			return true
		}
	}
	return false
}
