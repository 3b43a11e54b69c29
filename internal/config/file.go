package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadOptionsFile reads connector options from a YAML document of top-level
// keys. Scalars are kept as written, lists are joined with commas, and maps
// become sorted key=value pairs, so
//
//	cors_allowed_origins: [https://a, https://b]
//	iceberg_rest_headers: {X-Tenant: t1}
//
// yield the same strings the environment form expects.
func ReadOptionsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	opts := make(map[string]string, len(doc))
	for key, node := range doc {
		v, err := flattenNode(&node)
		if err != nil {
			return nil, fmt.Errorf("%s: option %q: %w", path, key, err)
		}
		opts[strings.ToLower(key)] = v
	}
	return opts, nil
}

func flattenNode(n *yaml.Node) (string, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return "", nil
		}
		return n.Value, nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return "", fmt.Errorf("list items must be scalars")
			}
			items = append(items, c.Value)
		}
		return strings.Join(items, ","), nil
	case yaml.MappingNode:
		pairs := make([]string, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return "", fmt.Errorf("map values must be scalars")
			}
			pairs = append(pairs, k.Value+"="+v.Value)
		}
		sort.Strings(pairs)
		return strings.Join(pairs, ","), nil
	default:
		return "", fmt.Errorf("unsupported YAML node kind %d", n.Kind)
	}
}
