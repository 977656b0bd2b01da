package security

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// secretNamePattern matches environment variable names and configuration
// keys that hold credentials.
var secretNamePattern = regexp.MustCompile(`(?i)(secret|token|password|passwd|api_?key|credential)`)

// IsSecretName reports whether name looks like it holds a credential.
func IsSecretName(name string) bool {
	return secretNamePattern.MatchString(name)
}

// SecretsFromEnv returns the values of the KEY=VALUE entries whose key
// names a credential.
func SecretsFromEnv(environ []string) []string {
	var out []string
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || value == "" || !IsSecretName(key) {
			continue
		}
		out = append(out, value)
	}
	return out
}

// SecretsFromYAML walks a configuration node and returns the scalar
// values stored under credential-named keys, at any depth.
func SecretsFromYAML(node *yaml.Node) []string {
	if node == nil {
		return nil
	}
	var out []string
	switch node.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, child := range node.Content {
			out = append(out, SecretsFromYAML(child)...)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if value.Kind == yaml.ScalarNode && IsSecretName(key.Value) {
				if value.Value != "" {
					out = append(out, value.Value)
				}
				continue
			}
			out = append(out, SecretsFromYAML(value)...)
		}
	}
	return out
}
