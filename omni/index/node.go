// Package index holds the in-memory filesystem index: the node table built
// from journal records, the path resolver, the derived indexed-file view,
// and the process-wide store that guards them.
package index

import (
	"strings"

	"github.com/ZanzyTHEbar/omnisearch/omni/volume"
)

// Separator is the path separator of the indexed filesystem. Volume root
// paths carry a trailing separator by convention ("C:\").
const Separator = '\\'

// Node is one entry of the node table: the parent link and leaf name of a
// file or directory, keyed by its FRN. The volume root is a synthetic node
// whose name is empty and whose parent is itself.
type Node struct {
	ParentFRN   volume.FRN
	Name        string
	IsDirectory bool
}

// NodeTable maps every known FRN to its node.
type NodeTable map[volume.FRN]Node

// IndexedFile is one row of the derived indexed-file view.
type IndexedFile struct {
	FRN         volume.FRN
	Name        string
	Path        string
	Extension   string // lowercased, empty for directories and dotless names
	IsDirectory bool
}

// ExtractExtension returns the lowercased suffix after the last interior
// dot of a name, or "" when the name has no usable extension.
func ExtractExtension(name string) string {
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot+1 >= len(name) {
		return ""
	}
	return strings.ToLower(name[dot+1:])
}
