// Package project loads and saves the role-based service project that gets
// packaged and published.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the project definition file at the project root.
const FileName = "service.yaml"

// Role kinds.
const (
	KindWeb    = "web"
	KindWorker = "worker"
)

// Setting is a single name/value configuration entry of a role.
type Setting struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// CertificateRef names a certificate a role needs, by thumbprint.
type CertificateRef struct {
	Name       string `yaml:"name"`
	Thumbprint string `yaml:"thumbprint"`
}

// Runtime is the language runtime a role declares.
type Runtime struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Role is one deployable unit of the service.
type Role struct {
	Name         string           `yaml:"name"`
	Kind         string           `yaml:"kind"`
	Instances    int              `yaml:"instances"`
	Runtime      *Runtime         `yaml:"runtime,omitempty"`
	Settings     []Setting        `yaml:"settings,omitempty"`
	Certificates []CertificateRef `yaml:"certificates,omitempty"`
}

// Project is the in-memory form of service.yaml.
type Project struct {
	Name  string `yaml:"name"`
	Roles []Role `yaml:"roles"`

	dir string
}

// Load reads and validates <dir>/service.yaml.
func Load(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("project: resolve path %q: %w", dir, err)
	}
	data, err := os.ReadFile(filepath.Join(abs, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("project: %s not found in %s", FileName, abs)
		}
		return nil, fmt.Errorf("project: read %s: %w", FileName, err)
	}

	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("project: parse %s: %w", FileName, err)
	}
	p.dir = abs
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Dir returns the absolute project root.
func (p *Project) Dir() string { return p.dir }

// RoleDir returns the directory holding the role's files.
func (p *Project) RoleDir(r Role) string { return filepath.Join(p.dir, r.Name) }

// Validate checks names, kinds and instance counts.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project: name is required")
	}
	if len(p.Roles) == 0 {
		return fmt.Errorf("project: at least one role is required")
	}
	seen := make(map[string]bool, len(p.Roles))
	for i := range p.Roles {
		r := &p.Roles[i]
		if r.Name == "" {
			return fmt.Errorf("project: role %d has no name", i)
		}
		key := strings.ToLower(r.Name)
		if seen[key] {
			return fmt.Errorf("project: duplicate role %q", r.Name)
		}
		seen[key] = true
		switch r.Kind {
		case "":
			r.Kind = KindWeb
		case KindWeb, KindWorker:
		default:
			return fmt.Errorf("project: role %q has unknown kind %q (must be web or worker)", r.Name, r.Kind)
		}
		if r.Instances == 0 {
			r.Instances = 1
		}
		if r.Instances < 0 {
			return fmt.Errorf("project: role %q has negative instance count", r.Name)
		}
		for _, c := range r.Certificates {
			if strings.TrimSpace(c.Thumbprint) == "" {
				return fmt.Errorf("project: role %q certificate %q has no thumbprint", r.Name, c.Name)
			}
		}
	}
	return nil
}

// Save writes the project back to service.yaml.
func (p *Project) Save() error {
	if p.dir == "" {
		return fmt.Errorf("project: save: project has no directory")
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("project: marshal: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.dir, FileName), data, 0o644); err != nil {
		return fmt.Errorf("project: write %s: %w", FileName, err)
	}
	return nil
}

// ChangeServiceName renames the project, which is also the default hosted
// service name.
func (p *Project) ChangeServiceName(name string) {
	p.Name = name
}

// ForEachRoleSetting calls fn with a pointer to every setting for which match
// returns true, so fn may rewrite the value in place. It returns the number
// of settings visited.
func (p *Project) ForEachRoleSetting(match func(Role, Setting) bool, fn func(*Role, *Setting)) int {
	n := 0
	for i := range p.Roles {
		r := &p.Roles[i]
		for j := range r.Settings {
			if match(*r, r.Settings[j]) {
				fn(r, &r.Settings[j])
				n++
			}
		}
	}
	return n
}

// Certificates returns every certificate referenced by any role, distinct by
// case-insensitive thumbprint, in first-seen order.
func (p *Project) Certificates() []CertificateRef {
	seen := make(map[string]bool)
	var out []CertificateRef
	for _, r := range p.Roles {
		for _, c := range r.Certificates {
			key := strings.ToUpper(strings.TrimSpace(c.Thumbprint))
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}
	return out
}
