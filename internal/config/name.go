package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DetectProjectName reads the project name from the first manifest found
// under root: go.mod, Cargo.toml, pyproject.toml, package.json. It falls back
// to the directory name.
func DetectProjectName(root string) string {
	detectors := []struct {
		file   string
		detect func([]byte) string
	}{
		{"go.mod", goModuleName},
		{"Cargo.toml", cargoName},
		{"pyproject.toml", pyprojectName},
		{"package.json", packageJSONName},
	}

	for _, d := range detectors {
		data, err := os.ReadFile(filepath.Join(root, d.file))
		if err != nil {
			continue
		}
		if name := strings.TrimSpace(d.detect(data)); name != "" {
			return name
		}
	}
	return filepath.Base(root)
}

func goModuleName(data []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "module"); ok {
			return strings.Trim(strings.TrimSpace(rest), `"`)
		}
	}
	return ""
}

func cargoName(data []byte) string {
	var manifest struct {
		Package struct {
			Name string `toml:"name"`
		} `toml:"package"`
	}
	if toml.Unmarshal(data, &manifest) != nil {
		return ""
	}
	return manifest.Package.Name
}

func pyprojectName(data []byte) string {
	var manifest struct {
		Project struct {
			Name string `toml:"name"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Name string `toml:"name"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if toml.Unmarshal(data, &manifest) != nil {
		return ""
	}
	if manifest.Project.Name != "" {
		return manifest.Project.Name
	}
	return manifest.Tool.Poetry.Name
}

func packageJSONName(data []byte) string {
	var manifest struct {
		Name string `json:"name"`
	}
	if json.Unmarshal(data, &manifest) != nil {
		return ""
	}
	return manifest.Name
}
