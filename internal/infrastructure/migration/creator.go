package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"
	"time"
)

var migrationTemplate = template.Must(template.New("migration").Parse(`-- Migration: {{.Name}}{{if .Rollback}} (Rollback){{end}}
-- Description: {{.Description}}

`))

// File is a created migration pair
type File struct {
	Version  string
	Name     string
	UpPath   string
	DownPath string
}

// Create writes an empty up/down pair named after now, so versions sort in
// creation order.
func Create(dir, name, description string, now time.Time) (*File, error) {
	base := sanitizeName(name)
	if base == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version := now.UTC().Format("20060102150405")
	f := &File{
		Version:  version,
		Name:     base,
		UpPath:   filepath.Join(dir, version+"_"+base+".up.sql"),
		DownPath: filepath.Join(dir, version+"_"+base+".down.sql"),
	}
	if err := writeTemplate(f.UpPath, base, description, false); err != nil {
		return nil, err
	}
	if err := writeTemplate(f.DownPath, base, description, true); err != nil {
		_ = os.Remove(f.UpPath)
		return nil, err
	}
	return f, nil
}

func writeTemplate(path, name, description string, rollback bool) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()
	return migrationTemplate.Execute(out, map[string]any{
		"Name":        name,
		"Description": description,
		"Rollback":    rollback,
	})
}

var nonNameChars = regexp.MustCompile(`[^a-z0-9]+`)

// sanitizeName lowercases name and collapses every other run of characters
// into one underscore.
func sanitizeName(name string) string {
	return strings.Trim(nonNameChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// List returns the base names of the migrations in dir, sorted by version.
// A migration missing its down file is an error.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	ups := make(map[string]bool)
	downs := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if base, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok {
			ups[base] = true
		} else if base, ok := strings.CutSuffix(e.Name(), ".down.sql"); ok {
			downs[base] = true
		}
	}

	names := make([]string, 0, len(ups))
	for base := range ups {
		if !downs[base] {
			return nil, fmt.Errorf("migration %s has no down file", base)
		}
		names = append(names, base)
	}
	sort.Strings(names)
	return names, nil
}
