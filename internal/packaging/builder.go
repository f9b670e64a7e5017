// Package packaging turns a service project into an uploadable package
// archive and its service configuration text.
package packaging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/project"
)

// ConfigurationFileName is the name of the configuration entry in the archive.
const ConfigurationFileName = "ServiceConfiguration.yaml"

// Package is the result of building a project.
type Package struct {
	ServiceName   string
	ArchivePath   string
	Configuration string
	Files         []FileEntry
	FileHashes    map[string]string // archive path -> "sha256:<hex>"
	Hash          string
	Warnings      []string
}

// Builder builds packages. Runtimes, when non-nil, lists the runtime versions
// the remote service offers keyed by lowercase runtime name; roles asking for
// anything else produce a warning.
type Builder struct {
	Excludes []string
	Runtimes map[string][]string
}

// Build packages every role of p into outDir. An empty outDir means
// <project>/.cloudsvc/packages.
//
// Steps:
//  1. Enumerate each role directory and validate symlinks.
//  2. Hash every file and compute the package hash.
//  3. Render the service configuration.
//  4. Check declared runtimes.
//  5. Write the archive.
func (b *Builder) Build(p *project.Project, outDir string) (*Package, error) {
	if outDir == "" {
		outDir = filepath.Join(p.Dir(), ".cloudsvc", "packages")
	}

	files, hashes, cfg, err := b.collect(p)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("packaging: create output dir: %w", err)
	}
	archivePath := filepath.Join(outDir, p.Name+".zip")
	extra := map[string][]byte{ConfigurationFileName: []byte(cfg)}
	if err := writeArchive(archivePath, files, extra, []string{ConfigurationFileName}); err != nil {
		return nil, err
	}

	return &Package{
		ServiceName:   p.Name,
		ArchivePath:   archivePath,
		Configuration: cfg,
		Files:         files,
		FileHashes:    hashes,
		Hash:          PackageHash(hashes),
		Warnings:      b.RuntimeWarnings(p),
	}, nil
}

// Hash returns the package hash Build would produce for p without writing
// an archive.
func (b *Builder) Hash(p *project.Project) (string, error) {
	_, hashes, _, err := b.collect(p)
	if err != nil {
		return "", err
	}
	return PackageHash(hashes), nil
}

func (b *Builder) collect(p *project.Project) ([]FileEntry, map[string]string, string, error) {
	var files []FileEntry
	for _, r := range p.Roles {
		entries, err := EnumerateRole(r.Name, p.RoleDir(r), b.Excludes)
		if err != nil {
			return nil, nil, "", err
		}
		files = append(files, entries...)
	}
	if err := ValidateSymlinks(p.Dir(), files); err != nil {
		return nil, nil, "", err
	}

	hashes := make(map[string]string, len(files)+1)
	for _, f := range files {
		h, err := FileHash(f.AbsPath)
		if err != nil {
			return nil, nil, "", fmt.Errorf("packaging: hash %q: %w", f.ArchivePath(), err)
		}
		hashes[f.ArchivePath()] = h
	}

	cfg, err := RenderConfiguration(p)
	if err != nil {
		return nil, nil, "", err
	}
	hashes[ConfigurationFileName] = BytesHash([]byte(cfg))
	return files, hashes, cfg, nil
}

// RuntimeWarnings lists the roles whose declared runtime the service does not
// offer. It is nil when the builder has no runtime table.
func (b *Builder) RuntimeWarnings(p *project.Project) []string {
	if b.Runtimes == nil {
		return nil
	}
	var warnings []string
	for _, r := range p.Roles {
		if r.Runtime == nil || r.Runtime.Name == "" {
			continue
		}
		versions, ok := b.Runtimes[strings.ToLower(r.Runtime.Name)]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("role %q requests runtime %q which the service does not offer", r.Name, r.Runtime.Name))
			continue
		}
		if r.Runtime.Version == "" || contains(versions, r.Runtime.Version) {
			continue
		}
		sorted := append([]string(nil), versions...)
		sort.Strings(sorted)
		warnings = append(warnings, fmt.Sprintf("role %q requests %s %s but the service offers %s",
			r.Name, r.Runtime.Name, r.Runtime.Version, strings.Join(sorted, ", ")))
	}
	return warnings
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

type configurationDoc struct {
	Service string              `yaml:"service"`
	Roles   []configurationRole `yaml:"roles"`
}

type configurationRole struct {
	Name         string                   `yaml:"name"`
	Instances    int                      `yaml:"instances"`
	Settings     []project.Setting        `yaml:"settings,omitempty"`
	Certificates []project.CertificateRef `yaml:"certificates,omitempty"`
}

// RenderConfiguration produces the service configuration text sent with a
// deployment: instance counts, settings and certificate bindings per role.
func RenderConfiguration(p *project.Project) (string, error) {
	doc := configurationDoc{Service: p.Name}
	for _, r := range p.Roles {
		certs := make([]project.CertificateRef, len(r.Certificates))
		for i, c := range r.Certificates {
			certs[i] = project.CertificateRef{Name: c.Name, Thumbprint: strings.ToUpper(c.Thumbprint)}
		}
		doc.Roles = append(doc.Roles, configurationRole{
			Name:         r.Name,
			Instances:    r.Instances,
			Settings:     r.Settings,
			Certificates: certs,
		})
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("packaging: render configuration: %w", err)
	}
	return string(out), nil
}
