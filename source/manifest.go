package source

import (
	"gopkg.in/yaml.v3"
)

// Manifest describes a bundle: who signed it and which namespaces it seals.
//
//	name: core
//	version: 1.2.0
//	signers: [release-key]
//	sealed: true
//	namespaces:
//	  com.example.api:
//	    sealed: false
type Manifest struct {
	Namespaces map[string]NamespaceAttributes `yaml:"namespaces"`
	Name       string                         `yaml:"name"`
	Version    string                         `yaml:"version"`
	Signers    []string                       `yaml:"signers"`
	Sealed     bool                           `yaml:"sealed"`
}

// NamespaceAttributes override manifest-wide attributes for one namespace.
type NamespaceAttributes struct {
	Sealed *bool `yaml:"sealed"`
}

// ParseManifest decodes a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// IsSealed reports whether namespace is sealed. A namespace entry takes
// precedence over the manifest-wide flag.
func (m *Manifest) IsSealed(namespace string) bool {
	if m == nil {
		return false
	}
	if attrs, ok := m.Namespaces[namespace]; ok && attrs.Sealed != nil {
		return *attrs.Sealed
	}
	return m.Sealed
}
