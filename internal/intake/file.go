// Package intake loads raw claim records from JSON, YAML, XLSX and CSV sources.
// Records are returned untyped; model.ParseClaim validates them.
package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/claims-cli/internal/model"
)

// LoadClaimFile reads a single claim from a .json, .yaml or .yml file. A
// missing file is model.KindClaimNotFound; undecodable content is
// model.KindMalformedClaim.
func LoadClaimFile(path string) (map[string]any, error) {
	data, err := readSource(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".json", "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&raw)
	default:
		return nil, model.NewError(model.KindMalformedClaim, "",
			eris.Errorf("intake: unsupported claim file type %q", ext))
	}
	if err != nil {
		return nil, model.NewError(model.KindMalformedClaim, "",
			eris.Wrapf(err, "intake: decode %s", path))
	}
	if raw == nil {
		return nil, model.NewError(model.KindMalformedClaim, "",
			eris.Errorf("intake: %s holds no claim object", path))
	}
	return raw, nil
}

// LoadBatchFile reads many claims from one file: a JSON array, a YAML
// sequence, an XLSX sheet or a CSV table with a header row.
func LoadBatchFile(path string) ([]map[string]any, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		if _, err := os.Stat(path); err != nil {
			return nil, notFoundOr(err, path)
		}
		return ReadClaimSheet(path, SheetOptions{})
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, notFoundOr(err, path)
		}
		defer f.Close() //nolint:errcheck
		return ReadClaimCSV(f)
	case ".yaml", ".yml":
		data, err := readSource(path)
		if err != nil {
			return nil, err
		}
		var raws []map[string]any
		if err := yaml.Unmarshal(data, &raws); err != nil {
			return nil, model.NewError(model.KindMalformedClaim, "",
				eris.Wrapf(err, "intake: decode %s", path))
		}
		return raws, nil
	case ".json":
		data, err := readSource(path)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var raws []map[string]any
		if err := dec.Decode(&raws); err != nil {
			return nil, model.NewError(model.KindMalformedClaim, "",
				eris.Wrapf(err, "intake: decode %s", path))
		}
		return raws, nil
	default:
		return nil, model.NewError(model.KindMalformedClaim, "",
			eris.Errorf("intake: unsupported batch file type %q", ext))
	}
}

func readSource(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, notFoundOr(err, path)
	}
	return data, nil
}

func notFoundOr(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return model.NewError(model.KindClaimNotFound, "",
			eris.Wrapf(err, "intake: claim file not found: %s", path))
	}
	return eris.Wrapf(err, "intake: read %s", path)
}
