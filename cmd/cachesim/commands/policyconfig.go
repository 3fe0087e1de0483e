package commands

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// mergePolicyConfig loads policy arguments from a flat YAML mapping and
// renders them as a key=value argument string. Keys also present in
// explicitArgs are dropped, so command line arguments win.
func mergePolicyConfig(path, explicitArgs string) (string, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read policy config: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(doc, &values); err != nil {
		return "", fmt.Errorf("parse policy config: %w", err)
	}

	explicit := explicitKeys(explicitArgs)

	keys := make([]string, 0, len(values))

	for key := range values {
		if _, ok := explicit[key]; !ok {
			keys = append(keys, key)
		}
	}

	slices.Sort(keys)

	segments := make([]string, 0, len(keys)+1)

	for _, key := range keys {
		segments = append(segments, fmt.Sprintf("%s=%v", key, values[key]))
	}

	if explicitArgs != "" {
		segments = append(segments, explicitArgs)
	}

	return strings.Join(segments, ","), nil
}

// explicitKeys extracts the field names of a key=value argument string
// without fully parsing the values.
func explicitKeys(args string) map[string]struct{} {
	keys := make(map[string]struct{})

	for _, segment := range strings.Split(args, ",") {
		name, _, ok := strings.Cut(segment, "=")
		if ok {
			keys[strings.TrimSpace(name)] = struct{}{}
		}
	}

	return keys
}
