package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleProject = `name: storefront
roles:
  - name: WebRole
    kind: web
    instances: 2
    runtime:
      name: node
      version: "20"
    settings:
      - name: Microsoft.WindowsAzure.Plugins.Caching.ConfigStoreConnectionString
        value: UseDevelopmentStorage=true
      - name: Greeting
        value: hello
    certificates:
      - name: ssl
        thumbprint: abcdef0123
  - name: Worker
    kind: worker
    certificates:
      - name: ssl-again
        thumbprint: ABCDEF0123
      - name: signing
        thumbprint: 99887766
`

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatalf("write project: %v", err)
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeProject(t, sampleProject)
	p, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Name != "storefront" || len(p.Roles) != 2 {
		t.Fatalf("unexpected project: %+v", p)
	}
	if p.Roles[1].Instances != 1 {
		t.Errorf("worker instances defaulted to %d, want 1", p.Roles[1].Instances)
	}
	if p.RoleDir(p.Roles[0]) != filepath.Join(p.Dir(), "WebRole") {
		t.Errorf("RoleDir = %q", p.RoleDir(p.Roles[0]))
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no name", "roles: [{name: a}]", "name is required"},
		{"no roles", "name: x", "at least one role"},
		{"duplicate role", "name: x\nroles: [{name: a}, {name: A}]", "duplicate role"},
		{"bad kind", "name: x\nroles: [{name: a, kind: cron}]", "unknown kind"},
		{"empty thumbprint", "name: x\nroles: [{name: a, certificates: [{name: c}]}]", "no thumbprint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeProject(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCertificates_DistinctCaseInsensitive(t *testing.T) {
	p, err := Load(writeProject(t, sampleProject))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	certs := p.Certificates()
	if len(certs) != 2 {
		t.Fatalf("certificates = %+v, want 2 distinct", certs)
	}
	if certs[0].Name != "ssl" || certs[1].Thumbprint != "99887766" {
		t.Errorf("certificates = %+v", certs)
	}
}

func TestForEachRoleSettingAndSave(t *testing.T) {
	dir := writeProject(t, sampleProject)
	p, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	n := p.ForEachRoleSetting(
		func(_ Role, s Setting) bool { return s.Name == "Greeting" },
		func(_ *Role, s *Setting) { s.Value = "bonjour" },
	)
	if n != 1 {
		t.Fatalf("visited %d settings, want 1", n)
	}
	p.ChangeServiceName("storefront-eu")
	if err := p.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Name != "storefront-eu" {
		t.Errorf("name = %q", reloaded.Name)
	}
	if reloaded.Roles[0].Settings[1].Value != "bonjour" {
		t.Errorf("setting = %+v", reloaded.Roles[0].Settings[1])
	}
}
