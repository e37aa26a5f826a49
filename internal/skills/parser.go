package skills

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Filename is the expected filename for a skill definition within its
// directory.
const Filename = "SKILL.md"

// frontmatter mirrors the YAML block at the top of a SKILL.md file.
type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Hidden      bool   `yaml:"hidden"`
}

// parseFile reads and parses a single SKILL.md file into an Entry.
func parseFile(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, fmt.Errorf("skills: read %s: %w", path, err)
	}
	return parse(data)
}

// parse splits YAML frontmatter from a Markdown body and builds an Entry.
// The body becomes the skill's instructions, injected only on activation.
func parse(data []byte) (Entry, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return Entry{}, err
	}

	var meta frontmatter
	if err := yaml.Unmarshal(fm, &meta); err != nil {
		return Entry{}, fmt.Errorf("skills: parse frontmatter: %w", err)
	}
	if meta.Name == "" {
		return Entry{}, fmt.Errorf("skills: skill name is required")
	}
	if meta.Description == "" {
		return Entry{}, fmt.Errorf("skills: skill description is required")
	}

	visibility := VisibilityAdvertised
	if meta.Hidden {
		visibility = VisibilityHidden
	}

	return Entry{
		Name:         meta.Name,
		Description:  meta.Description,
		Instructions: strings.TrimSpace(string(body)),
		Visibility:   visibility,
		State:        StateInactive,
	}, nil
}

func splitFrontmatter(data []byte) (fm, body []byte, err error) {
	const delimiter = "---"

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("skills: empty skill file")
	}
	if strings.TrimSpace(scanner.Text()) != delimiter {
		return nil, nil, fmt.Errorf("skills: missing opening frontmatter delimiter")
	}

	var fmLines []string
	closed := false
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == delimiter {
			closed = true
			break
		}
		fmLines = append(fmLines, scanner.Text())
	}
	if !closed {
		return nil, nil, fmt.Errorf("skills: missing closing frontmatter delimiter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("skills: scanning file: %w", err)
	}

	return []byte(strings.Join(fmLines, "\n")), []byte(strings.Join(bodyLines, "\n")), nil
}

// loadDir loads every <dir>/*/SKILL.md skill definition, one per immediate
// subdirectory, skipping subdirectories that don't carry a SKILL.md.
func loadDir(dir string) ([]Entry, error) {
	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("skills: reading %s: %w", dir, err)
	}

	var entries []Entry
	for _, child := range children {
		if !child.IsDir() {
			continue
		}
		path := filepath.Join(dir, child.Name(), Filename)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		entry, err := parseFile(path)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
