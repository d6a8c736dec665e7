package index

import "github.com/ZanzyTHEbar/omnisearch/omni/volume"

// Resolver memoises absolute paths for FRNs over one node table. The memo
// is seeded with the root so every walk terminates there; the resolving set
// breaks parent-chain cycles, which occur transiently during renames and
// after journal corruption.
type Resolver struct {
	rootFRN   volume.FRN
	nodes     NodeTable
	memo      map[volume.FRN]string
	resolving map[volume.FRN]struct{}
}

// NewResolver builds a resolver for one resolution batch. The memo persists
// for the resolver's lifetime; callers create a fresh resolver per scan
// projection or per watcher batch.
func NewResolver(nodes NodeTable, rootFRN volume.FRN, rootPath string) *Resolver {
	memo := make(map[volume.FRN]string, len(nodes)/2+1)
	memo[rootFRN] = rootPath
	return &Resolver{
		rootFRN:   rootFRN,
		nodes:     nodes,
		memo:      memo,
		resolving: make(map[volume.FRN]struct{}),
	}
}

// Resolve walks the parent chain of frn up to the root and returns the
// absolute path. It reports false for unknown FRNs, broken parent chains,
// and cycles; callers skip such entries.
func (r *Resolver) Resolve(frn volume.FRN) (string, bool) {
	clear(r.resolving)
	return r.resolve(frn)
}

func (r *Resolver) resolve(frn volume.FRN) (string, bool) {
	if path, ok := r.memo[frn]; ok {
		return path, true
	}
	if frn == r.rootFRN {
		return r.memo[r.rootFRN], true
	}

	node, ok := r.nodes[frn]
	if !ok {
		return "", false
	}

	if _, busy := r.resolving[frn]; busy {
		return "", false
	}
	r.resolving[frn] = struct{}{}
	parentPath, ok := r.resolve(node.ParentFRN)
	delete(r.resolving, frn)
	if !ok {
		return "", false
	}

	// The trailing separator is part of the root path by convention, so the
	// join only inserts one deeper in the tree.
	path := parentPath
	if len(path) > 0 && path[len(path)-1] != Separator {
		path += string(Separator)
	}
	path += node.Name
	r.memo[frn] = path
	return path, true
}
