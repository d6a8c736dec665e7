// Package search evaluates ad-hoc queries against the indexed-file view
// under the shared lock, applying composite substring, extension, size, and
// date filters.
package search

import (
	"math"
	"strings"

	roaring "github.com/RoaringBitmap/roaring"

	"github.com/ZanzyTHEbar/omnisearch/omni/index"
	"github.com/ZanzyTHEbar/omnisearch/omni/winfs"
)

const (
	// DefaultLimit is used when the caller passes zero.
	DefaultLimit = 200
	// MaxLimit caps the result count.
	MaxLimit = 5000
)

// Query is one search request. Zero MinSize, MaxUint64 MaxSize, MinInt64
// MinCreated, and MaxInt64 MaxCreated mean "no bound".
type Query struct {
	Text       string
	Extension  string
	MinSize    uint64
	MaxSize    uint64
	MinCreated int64
	MaxCreated int64
	Limit      int
}

// Row is one search hit.
type Row struct {
	Name         string
	Path         string
	Extension    string
	Size         uint64
	CreatedUnix  int64
	ModifiedUnix int64
	IsDirectory  bool
}

// Evaluator scans the store's indexed view. The metadata loader is
// injectable; the default stats through the OS.
type Evaluator struct {
	store *index.Store
	stat  winfs.StatFn
}

// NewEvaluator builds an evaluator over the store. A nil stat selects
// winfs.Stat.
func NewEvaluator(store *index.Store, stat winfs.StatFn) *Evaluator {
	if stat == nil {
		stat = winfs.Stat
	}
	return &Evaluator{store: store, stat: stat}
}

// NormalizeExtensionFilter lowercases an extension filter and strips any
// leading dots.
func NormalizeExtensionFilter(extension string) string {
	return strings.TrimLeft(strings.ToLower(extension), ".")
}

func targetsDirectories(extension string) bool {
	switch extension {
	case "folder", "folders", "dir", "directory":
		return true
	}
	return false
}

// Run evaluates the query and returns up to the effective limit of rows.
func (e *Evaluator) Run(q Query) []Row {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	query := strings.ToLower(q.Text)
	extFilter := NormalizeExtensionFilter(q.Extension)
	hasExtFilter := extFilter != ""
	dirTarget := targetsDirectories(extFilter)
	hasSizeFilter := q.MinSize > 0 || q.MaxSize < math.MaxUint64
	hasDateFilter := q.MinCreated > math.MinInt64 || q.MaxCreated < math.MaxInt64
	requiresMetadata := hasSizeFilter || hasDateFilter

	// Round-robin distribution across source drives applies only to
	// filter-driven browses of an all-drives index.
	distribute := e.store.AllDrivesMode() && limit > 1 && query == "" &&
		(hasExtFilter || hasSizeFilter || hasDateFilter)

	rows := make([]Row, 0, limit)
	var buckets map[byte][]Row
	var bucketOrder []byte
	if distribute {
		buckets = make(map[byte][]Row, 16)
	}

	e.store.ReadView(func(view *index.FileList) {
		visit := func(i int) bool {
			file := view.At(i)
			if query != "" && !strings.Contains(strings.ToLower(file.Path), query) {
				return true
			}

			md, err := e.stat(file.Path)
			loaded := err == nil
			if !loaded && winfs.IsPathMissing(err) {
				// Stale entry for a file that was deleted or moved.
				return true
			}
			if requiresMetadata {
				if !loaded {
					return true
				}
				if md.Size < q.MinSize || md.Size > q.MaxSize {
					return true
				}
				if md.CreatedUnix < q.MinCreated || md.CreatedUnix > q.MaxCreated {
					return true
				}
			}
			if !loaded {
				md = winfs.Metadata{}
			}

			row := Row{
				Name:         file.Name,
				Path:         file.Path,
				Extension:    file.Extension,
				Size:         md.Size,
				CreatedUnix:  md.CreatedUnix,
				ModifiedUnix: md.ModifiedUnix,
				IsDirectory:  file.IsDirectory,
			}

			if distribute {
				key := driveBucketKey(file.Path)
				if _, seen := buckets[key]; !seen {
					bucketOrder = append(bucketOrder, key)
				}
				buckets[key] = append(buckets[key], row)
				return true
			}
			rows = append(rows, row)
			return len(rows) < limit
		}

		if hasExtFilter {
			// The attribute bitmaps iterate ascending positions, so the
			// filtered walk visits entries in stored order.
			var bm *roaring.Bitmap
			if dirTarget {
				bm = view.DirectoryPositions()
			} else {
				bm = view.ExtensionPositions(extFilter)
			}
			if bm == nil {
				return
			}
			it := bm.Iterator()
			for it.HasNext() {
				if !visit(int(it.Next())) {
					break
				}
			}
			return
		}

		for i := 0; i < view.Len(); i++ {
			if !visit(i) {
				break
			}
		}
	})

	if distribute {
		rows = roundRobin(buckets, bucketOrder, limit)
	}
	return rows
}

// roundRobin assembles the result by cycling over the drive buckets in
// first-encounter order until the limit or exhaustion.
func roundRobin(buckets map[byte][]Row, order []byte, limit int) []Row {
	rows := make([]Row, 0, limit)
	offsets := make([]int, len(order))
	appended := true
	for len(rows) < limit && appended {
		appended = false
		for i, key := range order {
			bucket := buckets[key]
			if offsets[i] >= len(bucket) {
				continue
			}
			rows = append(rows, bucket[offsets[i]])
			offsets[i]++
			appended = true
			if len(rows) >= limit {
				break
			}
		}
	}
	return rows
}

// driveBucketKey buckets a hit by source drive: the uppercased drive letter
// for drive-rooted paths, '#' for UNC paths, '?' otherwise.
func driveBucketKey(path string) byte {
	if len(path) >= 2 && path[1] == ':' {
		c := path[0]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c >= 'A' && c <= 'Z' {
			return c
		}
	}
	if strings.HasPrefix(path, `\\`) {
		return '#'
	}
	return '?'
}
