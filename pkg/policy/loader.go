package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Site policy file extensions.
const (
	extRego = ".rego"
	extJSON = ".json"
)

// Loader reads site policies from the paths listed in teardown.policy_paths.
// A path is a policy file or a directory searched recursively for them.
type Loader struct {
	logger zerolog.Logger
}

// NewLoader creates a loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{logger: logger.With().Str("component", "policy-loader").Logger()}
}

// LoadFromPaths returns the policies found under paths, in path order.
// Any unreadable or malformed policy file fails the whole load: the guard
// must not run with a site policy silently missing.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var policies []Policy
	for _, root := range paths {
		files, err := policyFiles(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("failed to load from path %s: %w", root, err)
		}
		for _, file := range files {
			p, err := readPolicy(file)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			l.logger.Debug().Str("path", file).Str("policy", p.Name).Msg("Policy loaded from file")
			policies = append(policies, *p)
		}
	}
	return policies, nil
}

// policyFiles expands root into policy files. A file named explicitly is
// always returned; inside directories only .rego and .json files count.
func policyFiles(ctx context.Context, root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case extRego, extJSON:
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// readPolicy builds a Policy from a .rego module or a .json definition.
func readPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p *Policy
	switch filepath.Ext(path) {
	case extRego:
		p = &Policy{
			Name:        strings.TrimSuffix(filepath.Base(path), extRego),
			Description: leadingComment(string(data)),
			Rego:        string(data),
			Enabled:     true,
		}
	case extJSON:
		p = &Policy{}
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("invalid policy definition: %w", err)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("policy definition has no name")
		}
	default:
		return nil, fmt.Errorf("unsupported policy file type %q", filepath.Ext(path))
	}

	// Site policies block unless they declare a lower severity.
	if p.Severity == "" {
		p.Severity = SeverityError
	}
	p.Source = path
	return p, nil
}

// leadingComment joins the comment lines above the first statement of a
// Rego module.
func leadingComment(module string) string {
	var words []string
	for _, line := range strings.Split(module, "\n") {
		line = strings.TrimSpace(line)
		text, isComment := strings.CutPrefix(line, "#")
		if !isComment {
			if line != "" && len(words) > 0 {
				break
			}
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			words = append(words, text)
		}
	}
	return strings.Join(words, " ")
}
