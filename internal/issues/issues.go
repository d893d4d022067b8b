// Package issues reads the list of issue identifiers to process.
package issues

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type listFile struct {
	ActiveIssues []any `toml:"active_issues"`
}

// Load returns the identifiers in file order; duplicates are kept. A .toml
// file lists them under active_issues as strings or integers; any other file
// holds one identifier per line with "#" comments.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issue list: %w", err)
	}

	var ids []string
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		ids, err = parseTOML(data)
	} else {
		ids, err = parseLines(data)
	}
	if err != nil {
		return nil, fmt.Errorf("issue list %s: %w", path, err)
	}
	return ids, nil
}

func parseTOML(data []byte) ([]string, error) {
	var f listFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(f.ActiveIssues))
	for i, v := range f.ActiveIssues {
		switch v := v.(type) {
		case string, int64:
			id := strings.TrimSpace(fmt.Sprint(v))
			if id == "" {
				return nil, fmt.Errorf("active_issues[%d]: empty identifier", i)
			}
			ids = append(ids, id)
		default:
			return nil, fmt.Errorf("active_issues[%d]: unsupported value %v (%T)", i, v, v)
		}
	}
	return ids, nil
}

func parseLines(data []byte) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, sc.Err()
}
