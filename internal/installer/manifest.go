package installer

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest is the workload.yaml shape read from an installed tree.
type Manifest struct {
	Metadata struct {
		Name string `yaml:"name"`
	} `yaml:"metadata"`
	Execution struct {
		Command string `yaml:"command"`
	} `yaml:"execution"`
}

const manifestFilename = "workload.yaml"

// LoadManifest reads workload.yaml from installDir. If it is absent, a
// minimal manifest is synthesized from name rather than failing the
// install: {metadata:{name}, execution:{command: "./bin/<name>"}}.
func LoadManifest(installDir, name string) (Manifest, error) {
	path := filepath.Join(installDir, manifestFilename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			var m Manifest
			m.Metadata.Name = name
			m.Execution.Command = "./bin/" + name
			return m, nil
		}
		return Manifest{}, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Metadata.Name == "" {
		m.Metadata.Name = name
	}
	if m.Execution.Command == "" {
		m.Execution.Command = "./bin/" + name
	}
	return m, nil
}
