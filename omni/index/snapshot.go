package index

import "github.com/ZanzyTHEbar/omnisearch/omni/volume"

// PathMatcher reports whether an absolute path is excluded from the indexed
// view. gitignore-style matchers satisfy this.
type PathMatcher interface {
	MatchesPath(path string) bool
}

// Snapshot is the consistent result of one full-volume enumeration,
// published wholesale into the store. The journal identifier and next-USN
// watermark captured at scan end let the live watcher resume without gaps.
type Snapshot struct {
	Files    []IndexedFile
	Nodes    NodeTable
	RootFRN  volume.FRN
	RootPath string

	JournalID   uint64
	NextUSN     volume.USN
	LiveUpdates bool
}

// Project derives the indexed-file sequence from a node table: every node
// except the anonymous root, minus directories when includeDirs is false,
// minus nodes whose path cannot be resolved, minus ignore matches. It
// reports false when cancelled mid-projection.
func Project(nodes NodeTable, rootFRN volume.FRN, rootPath string, includeDirs bool, ignore PathMatcher, cancelled func() bool) ([]IndexedFile, bool) {
	resolver := NewResolver(nodes, rootFRN, rootPath)
	files := make([]IndexedFile, 0, len(nodes)/2+1)

	for frn, node := range nodes {
		if cancelled != nil && cancelled() {
			return nil, false
		}
		if node.Name == "" || (node.IsDirectory && !includeDirs) {
			continue
		}
		path, ok := resolver.Resolve(frn)
		if !ok || path == "" {
			continue
		}
		if ignore != nil && ignore.MatchesPath(path) {
			continue
		}
		files = append(files, IndexedFile{
			FRN:         frn,
			Name:        node.Name,
			Path:        path,
			Extension:   fileExtension(node),
			IsDirectory: node.IsDirectory,
		})
	}
	return files, true
}

func fileExtension(node Node) string {
	if node.IsDirectory {
		return ""
	}
	return ExtractExtension(node.Name)
}
