// Package manifest describes an uploaded service package and serializes it
// deterministically so identical uploads produce identical bytes.
package manifest

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SchemaVersion is the manifest format written by this module.
const SchemaVersion = 1

// Manifest is written next to every uploaded package as manifest.json.
type Manifest struct {
	SchemaVersion     int               `json:"schema_version"`
	ToolVersion       string            `json:"tool_version"`
	ServiceName       string            `json:"service_name"`
	Slot              string            `json:"slot"`
	PackageID         string            `json:"package_id"`
	CreatedAt         string            `json:"created_at"`
	PackageHash       string            `json:"package_hash"`
	ConfigurationHash string            `json:"configuration_hash"`
	Store             string            `json:"store"`
	Roles             []Role            `json:"roles"`
	Files             map[string]string `json:"files"`
}

// Role summarises one role of the packaged service.
type Role struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Instances int    `json:"instances"`
	Runtime   string `json:"runtime,omitempty"`
}

// sortedFiles serializes its map with keys in lexical order.
type sortedFiles map[string]string

func (d sortedFiles) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(d[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	return append(buf, '}'), nil
}

// wire mirrors Manifest with the files map swapped for sortedFiles. Struct
// fields keep declaration order in encoding/json.
type wire struct {
	SchemaVersion     int         `json:"schema_version"`
	ToolVersion       string      `json:"tool_version"`
	ServiceName       string      `json:"service_name"`
	Slot              string      `json:"slot"`
	PackageID         string      `json:"package_id"`
	CreatedAt         string      `json:"created_at"`
	PackageHash       string      `json:"package_hash"`
	ConfigurationHash string      `json:"configuration_hash"`
	Store             string      `json:"store"`
	Roles             []Role      `json:"roles"`
	Files             sortedFiles `json:"files"`
}

// Marshal serializes m to indented JSON with sorted file keys. Roles keep
// the order given.
func Marshal(m *Manifest) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("manifest: cannot marshal nil manifest")
	}
	roles := m.Roles
	if roles == nil {
		roles = []Role{}
	}
	files := m.Files
	if files == nil {
		files = map[string]string{}
	}
	return json.MarshalIndent(wire{
		SchemaVersion:     m.SchemaVersion,
		ToolVersion:       m.ToolVersion,
		ServiceName:       m.ServiceName,
		Slot:              m.Slot,
		PackageID:         m.PackageID,
		CreatedAt:         m.CreatedAt,
		PackageHash:       m.PackageHash,
		ConfigurationHash: m.ConfigurationHash,
		Store:             m.Store,
		Roles:             roles,
		Files:             sortedFiles(files),
	}, "", "  ")
}

// Unmarshal parses manifest JSON.
func Unmarshal(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: unmarshal failed: %w", err)
	}
	if m.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("manifest: unsupported schema version %d", m.SchemaVersion)
	}
	return &m, nil
}
