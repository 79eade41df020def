package services

import (
	"log/slog"
	"path/filepath"
	"strings"

	"folder-mock/internal/core/domain"
	"folder-mock/internal/core/ports"
)

const (
	// ResFolder holds every servable file under the root folder
	ResFolder = "res"

	// MapFile is the override table file under the root folder
	MapFile = "map.txt"

	// IndexFile is served when a resolved path is a directory
	IndexFile = "index"
)

// Resolver decides which file answers a request path.
// It holds only read-only state and is safe for concurrent use.
type Resolver struct {
	table    *domain.MappingTable
	resRoot  string
	selector *WeightedSelector
	fs       ports.FileSystem
}

// NewResolver creates a resolver serving files from rootFolder/res
func NewResolver(table *domain.MappingTable, rootFolder string, selector *WeightedSelector, fs ports.FileSystem) *Resolver {
	if table == nil {
		table = domain.EmptyMappingTable()
	}
	return &Resolver{
		table:    table,
		resRoot:  filepath.Join(filepath.Clean(rootFolder), ResFolder),
		selector: selector,
		fs:       fs,
	}
}

// Table returns the mapping table the resolver consults
func (r *Resolver) Table() *domain.MappingTable {
	return r.table
}

// ResRoot returns the absolute or root-relative res folder
func (r *Resolver) ResRoot() string {
	return r.resRoot
}

// Resolve returns the file to attempt for requestPath, or NotFound
func (r *Resolver) Resolve(requestPath string) domain.ResolvedTarget {
	relPath, rule, ok := r.lookup(requestPath)
	if !ok {
		return domain.ResolvedTarget{Kind: domain.NotFound, Rule: rule}
	}

	candidate, ok := r.underRes(relPath)
	if !ok {
		slog.Warn("Rejected path escaping res folder",
			"request_path", requestPath,
			"rule", rule,
		)
		return domain.ResolvedTarget{Kind: domain.NotFound, Rule: rule}
	}

	target := domain.ResolvedTarget{Kind: domain.FileCandidate, Path: candidate, Rule: rule}
	if r.fs.IsDir(candidate) {
		target.Path = filepath.Join(candidate, IndexFile)
		target.Index = true
	}
	return target
}

// lookup maps the request path to a path relative to the res folder
func (r *Resolver) lookup(requestPath string) (string, domain.Rule, bool) {
	entry, ok := r.table.Lookup(requestPath)
	if !ok {
		return strings.TrimPrefix(requestPath, "/"), domain.RuleDefault, true
	}

	if !entry.IsWeighted() {
		return entry.Targets[0].Path, domain.RuleOverride, true
	}

	picked, err := r.selector.Select(entry.Targets)
	if err != nil {
		slog.Error("Weighted selection failed",
			"error", err,
			"request_path", requestPath,
		)
		return "", domain.RuleWeighted, false
	}
	return picked.Path, domain.RuleWeighted, true
}

// underRes joins relPath onto the res folder and reports whether the
// cleaned result stays inside it
func (r *Resolver) underRes(relPath string) (string, bool) {
	candidate := filepath.Join(r.resRoot, filepath.FromSlash(relPath))
	rel, err := filepath.Rel(r.resRoot, candidate)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return candidate, true
}
