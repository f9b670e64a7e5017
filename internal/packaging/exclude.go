package packaging

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// securityExcludes cannot be overridden. Certificates reach the service
// through certificate upload, never inside a package.
var securityExcludes = []excludeRule{
	{prefix: ".git/", exact: ".git"},
	{prefix: ".ssh/", exact: ".ssh"},
	{matchFunc: matchDotEnv},
	{glob: "**/*.pem"},
	{glob: "**/*.key"},
	{glob: "**/*.p12"},
	{glob: "**/*.pfx"},
	{matchFunc: matchBasename("id_rsa")},
	{matchFunc: matchBasename("id_ed25519")},
}

// buildExcludes drop local build and emulator output.
var buildExcludes = []excludeRule{
	{prefix: "obj/", exact: "obj"},
	{prefix: ".cloudsvc/", exact: ".cloudsvc"},
	{prefix: "emulator/", exact: "emulator"},
	{prefix: "node_modules/.cache/", exact: "node_modules/.cache"},
	{prefix: "__pycache__/", exact: "__pycache__"},
	{matchFunc: matchBasename(".DS_Store")},
	{matchFunc: matchBasename("Thumbs.db")},
	{glob: "**/*.cspkg"},
	{glob: "**/*.log"},
}

// excludeRule is one exclusion condition, checked in order: matchFunc,
// prefix+exact, glob.
type excludeRule struct {
	prefix    string
	exact     string
	glob      string
	matchFunc func(relPath string) bool
}

// matchDotEnv matches .env and .env.* except .env.example and .env.template.
func matchDotEnv(relPath string) bool {
	base := filepath.Base(relPath)
	if base == ".env" {
		return true
	}
	if strings.HasPrefix(base, ".env.") {
		suffix := base[len(".env."):]
		return suffix != "example" && suffix != "template"
	}
	return false
}

func matchBasename(name string) func(string) bool {
	return func(relPath string) bool {
		return filepath.Base(relPath) == name
	}
}

func ruleMatches(r excludeRule, rel string) bool {
	if r.matchFunc != nil {
		return r.matchFunc(rel)
	}
	if r.prefix != "" && strings.HasPrefix(rel, r.prefix) {
		return true
	}
	if r.exact != "" && rel == r.exact {
		return true
	}
	if r.glob != "" {
		matched, _ := doublestar.Match(r.glob, rel)
		return matched
	}
	return false
}

// ShouldExclude reports whether relPath, relative to a role directory with
// forward slashes, is left out of the package. User patterns are additive
// gitignore-style globs.
func ShouldExclude(relPath string, userExcludes []string) bool {
	rel := filepath.ToSlash(relPath)

	for _, r := range securityExcludes {
		if ruleMatches(r, rel) {
			return true
		}
	}
	for _, r := range buildExcludes {
		if ruleMatches(r, rel) {
			return true
		}
	}

	for _, pattern := range userExcludes {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		p := filepath.ToSlash(pattern)

		// "foo/" matches "foo" and everything below it.
		if strings.HasSuffix(p, "/") {
			dir := strings.TrimSuffix(p, "/")
			if rel == dir || strings.HasPrefix(rel, dir+"/") {
				return true
			}
			continue
		}

		if matched, _ := doublestar.Match(p, rel); matched {
			return true
		}
		if !strings.Contains(p, "/") {
			if matched, _ := doublestar.Match(p, filepath.Base(rel)); matched {
				return true
			}
		}
	}
	return false
}
