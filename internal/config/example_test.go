package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
	adaptermiddleware "smart-factory/internal/adapters/http/middleware"
)

const exampleFile = "config.example.yaml"

func projectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

func examplePath(t *testing.T) string {
	t.Helper()
	root, err := projectRoot()
	if err != nil {
		t.Fatalf("locate project root failed: %v", err)
	}
	return filepath.Join(root, exampleFile)
}

func parseYAML(t *testing.T, path string) *yaml.Node {
	t.Helper()
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s failed: %v", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(contents, &doc); err != nil {
		t.Fatalf("unmarshal %s failed: %v", path, err)
	}
	if len(doc.Content) == 0 {
		t.Fatalf("%s has empty yaml document", path)
	}
	return doc.Content[0]
}

func yamlKeys(t *testing.T) map[string]bool {
	t.Helper()
	keys := map[string]bool{}
	typ := reflect.TypeOf(Config{})
	for i := 0; i < typ.NumField(); i++ {
		tag := strings.Split(typ.Field(i).Tag.Get("yaml"), ",")[0]
		if tag != "" {
			keys[tag] = true
		}
	}
	return keys
}

func TestExampleConfig_UsesKnownKeys(t *testing.T) {
	root := parseYAML(t, examplePath(t))
	if root.Kind != yaml.MappingNode {
		t.Fatalf("expected a mapping at the top of %s", exampleFile)
	}
	known := yamlKeys(t)
	seen := map[string]bool{}
	for i := 0; i < len(root.Content)-1; i += 2 {
		key := root.Content[i].Value
		if !known[key] {
			t.Fatalf("%s has unknown key %q", exampleFile, key)
		}
		seen[key] = true
	}
	for key := range known {
		if key == "jwt_secret" {
			continue
		}
		if !seen[key] {
			t.Fatalf("%s is missing key %q", exampleFile, key)
		}
	}
}

func TestExampleConfig_IsValid(t *testing.T) {
	cfg, err := FromEnv(func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("defaults failed: %v", err)
	}
	if err := cfg.applyFile(examplePath(t)); err != nil {
		t.Fatalf("apply %s failed: %v", exampleFile, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("%s does not validate: %v", exampleFile, err)
	}
	if cfg.Store != StoreDynamoDB || cfg.AuthMode != adaptermiddleware.ModeCognito {
		t.Fatalf("unexpected store/auth mode: %s/%s", cfg.Store, cfg.AuthMode)
	}
}
