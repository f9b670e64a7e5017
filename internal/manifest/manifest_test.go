package manifest

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func sampleManifest() *Manifest {
	return &Manifest{
		SchemaVersion:     SchemaVersion,
		ToolVersion:       "0.3.0",
		ServiceName:       "shop",
		Slot:              "Production",
		PackageID:         "pkg_20260213T200102Z_6f2c9a1b",
		CreatedAt:         "2026-02-13T20:01:02Z",
		PackageHash:       "sha256:9876543210fedcba",
		ConfigurationHash: "sha256:aabbccdd",
		Store:             "azure://shopstore/packages/",
		Roles: []Role{
			{Name: "Web", Kind: "web", Instances: 2, Runtime: "node 20"},
			{Name: "Jobs", Kind: "worker", Instances: 1},
		},
		Files: map[string]string{
			"Web/server.js":             "sha256:1111",
			"Web/public/index.html":     "sha256:2222",
			"Jobs/worker.py":            "sha256:3333",
			"ServiceConfiguration.yaml": "sha256:4444",
		},
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	original := sampleManifest()

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal() returned error: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() returned error: %v", err)
	}

	if got.ServiceName != "shop" || got.Slot != "Production" || got.PackageID != original.PackageID {
		t.Errorf("identity fields = %q/%q/%q", got.ServiceName, got.Slot, got.PackageID)
	}
	if got.PackageHash != original.PackageHash || got.ConfigurationHash != original.ConfigurationHash {
		t.Errorf("hashes = %q/%q", got.PackageHash, got.ConfigurationHash)
	}
	if len(got.Roles) != 2 || got.Roles[0].Name != "Web" || got.Roles[0].Instances != 2 {
		t.Errorf("roles = %+v", got.Roles)
	}
	if len(got.Files) != len(original.Files) {
		t.Fatalf("Files length = %d, want %d", len(got.Files), len(original.Files))
	}
	for k, v := range original.Files {
		if got.Files[k] != v {
			t.Errorf("Files[%q] = %q, want %q", k, got.Files[k], v)
		}
	}
}

func TestMarshalDeterministic(t *testing.T) {
	m := sampleManifest()

	data1, err := Marshal(m)
	if err != nil {
		t.Fatalf("first Marshal() returned error: %v", err)
	}
	data2, err := Marshal(m)
	if err != nil {
		t.Fatalf("second Marshal() returned error: %v", err)
	}
	if !bytes.Equal(data1, data2) {
		t.Errorf("Marshal() produced different output on two calls:\n--- first ---\n%s\n--- second ---\n%s", data1, data2)
	}
}

func TestMarshalSortedFiles(t *testing.T) {
	m := &Manifest{
		SchemaVersion: SchemaVersion,
		Files: map[string]string{
			"Web/zebra.js":  "sha256:zzzz",
			"Jobs/alpha.py": "sha256:aaaa",
			"Web/middle.js": "sha256:mmmm",
		},
	}

	data, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() returned error: %v", err)
	}
	output := string(data)

	alpha := strings.Index(output, "Jobs/alpha.py")
	middle := strings.Index(output, "Web/middle.js")
	zebra := strings.Index(output, "Web/zebra.js")
	if alpha == -1 || middle == -1 || zebra == -1 {
		t.Fatalf("one or more file keys not found in output:\n%s", output)
	}
	if !(alpha < middle && middle < zebra) {
		t.Errorf("file keys are not in sorted order: alpha@%d, middle@%d, zebra@%d\noutput:\n%s",
			alpha, middle, zebra, output)
	}
	if !json.Valid(data) {
		t.Errorf("Marshal() output is not valid JSON:\n%s", data)
	}
}

func TestMarshalEmptyCollections(t *testing.T) {
	data, err := Marshal(&Manifest{SchemaVersion: SchemaVersion, ServiceName: "empty"})
	if err != nil {
		t.Fatalf("Marshal() returned error: %v", err)
	}
	if !strings.Contains(string(data), `"roles": []`) || !strings.Contains(string(data), `"files": {}`) {
		t.Errorf("nil collections should serialize empty:\n%s", data)
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty string", input: ""},
		{name: "not JSON", input: "this is not json"},
		{name: "truncated JSON", input: `{"schema_version": 1, "files":`},
		{name: "JSON array instead of object", input: `[1, 2, 3]`},
		{name: "future schema", input: `{"schema_version": 99}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tt.input)); err == nil {
				t.Errorf("Unmarshal(%q) expected error, got nil", tt.input)
			}
		})
	}
}

func TestMarshalNil(t *testing.T) {
	if _, err := Marshal(nil); err == nil {
		t.Fatal("Marshal(nil) expected error, got nil")
	}
}
