// Package services contains core mock-server logic
// Following Hexagonal Architecture: Services orchestrate domain logic using ports
package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"folder-mock/internal/core/domain"
)

// Map file delimiters
// Single entry:   /path = path/to/file.txt
// Weighted entry: /path = path/to/file1.txt'10, path/to/file2.txt'20
const (
	keyValueDelim = "="
	targetDelim   = ","
	weightDelim   = "'"
)

// ParseMapping builds a mapping table from map file contents.
// It never fails: malformed lines and invalid candidates are dropped and
// reported as issues while well-formed entries are kept.
func ParseMapping(contents string) (*domain.MappingTable, []domain.LineIssue) {
	var entries []domain.MappingEntry
	var issues []domain.LineIssue

	for i, raw := range strings.Split(contents, "\n") {
		lineNum := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		key, rhs, ok := strings.Cut(line, keyValueDelim)
		if !ok {
			issues = append(issues, domain.LineIssue{Line: lineNum, Text: line, Reason: "missing '='"})
			continue
		}

		key = strings.TrimSpace(key)
		if key == "" {
			issues = append(issues, domain.LineIssue{Line: lineNum, Text: line, Reason: "empty request path"})
			continue
		}

		targets, dropped := parseTargets(rhs)
		for _, reason := range dropped {
			issues = append(issues, domain.LineIssue{Line: lineNum, Text: line, Reason: reason})
		}
		if len(targets) == 0 {
			issues = append(issues, domain.LineIssue{Line: lineNum, Text: line, Reason: "no valid targets"})
			continue
		}

		entries = append(entries, domain.MappingEntry{RequestPath: key, Targets: targets})
	}

	return domain.NewMappingTable(entries, xxhash.Sum64String(contents)), issues
}

// parseTargets splits the right-hand side of a map line into targets.
// It returns the surviving targets and one reason per dropped candidate.
func parseTargets(rhs string) ([]domain.Target, []string) {
	tokens := strings.Split(rhs, targetDelim)

	// A lone token without a weight is a plain one-to-one mapping
	if len(tokens) == 1 && !strings.Contains(tokens[0], weightDelim) {
		path := strings.TrimSpace(tokens[0])
		if path == "" {
			return nil, []string{"empty file path"}
		}
		return []domain.Target{{Path: path, Weight: 1}}, nil
	}

	targets := make([]domain.Target, 0, len(tokens))
	var dropped []string
	for _, token := range tokens {
		target, err := parseWeightedTarget(token)
		if err != nil {
			dropped = append(dropped, fmt.Sprintf("candidate %q dropped: %v", strings.TrimSpace(token), err))
			continue
		}
		targets = append(targets, target)
	}
	return targets, dropped
}

func parseWeightedTarget(token string) (domain.Target, error) {
	path, weightStr, ok := strings.Cut(token, weightDelim)
	if !ok {
		return domain.Target{}, errors.New("missing weight")
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return domain.Target{}, errors.New("empty file path")
	}

	weight, err := strconv.ParseUint(strings.TrimSpace(weightStr), 10, 32)
	if err != nil {
		return domain.Target{}, fmt.Errorf("invalid weight: %w", err)
	}
	if weight == 0 {
		return domain.Target{}, errors.New("zero weight")
	}

	return domain.Target{Path: path, Weight: uint32(weight)}, nil
}

// LoadMappingFile reads and parses the map file at path.
// A missing file yields an empty table and no error.
func LoadMappingFile(path string) (*domain.MappingTable, []domain.LineIssue, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.EmptyMappingTable(), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read map file: %w", err)
	}

	table, issues := ParseMapping(string(data))
	return table, issues, nil
}
