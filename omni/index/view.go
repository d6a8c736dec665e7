package index

import (
	roaring "github.com/RoaringBitmap/roaring"

	"github.com/ZanzyTHEbar/omnisearch/omni/volume"
)

// FileList is the indexed-file view: a flat sequence of IndexedFile plus an
// FRN→position map for O(1) upsert and remove. Removal swaps with the last
// element and re-registers the moved tail under its new index, so the map
// stays exact and dense.
//
// Attribute bitmaps over positions accelerate extension-filtered scans:
// one roaring bitmap per non-empty extension (files only) and one for
// directories. Iterating a bitmap ascending visits entries in stored order,
// so filtered output matches what a full scan would produce.
type FileList struct {
	files     []IndexedFile
	positions map[volume.FRN]int
	exts      map[string]*roaring.Bitmap
	dirs      *roaring.Bitmap
}

// NewFileList builds a view over files, taking ownership of the slice.
func NewFileList(files []IndexedFile) *FileList {
	fl := &FileList{}
	fl.Reset(files)
	return fl
}

// Reset replaces the whole view, rebuilding the position map and bitmaps.
func (fl *FileList) Reset(files []IndexedFile) {
	fl.files = files
	fl.positions = make(map[volume.FRN]int, len(files)*2+1)
	fl.exts = make(map[string]*roaring.Bitmap)
	fl.dirs = roaring.New()
	for i := range files {
		fl.positions[files[i].FRN] = i
		fl.mark(i)
	}
}

// Len returns the number of indexed entries.
func (fl *FileList) Len() int { return len(fl.files) }

// At returns the entry at position i.
func (fl *FileList) At(i int) *IndexedFile { return &fl.files[i] }

// Position returns the position of an FRN in the sequence.
func (fl *FileList) Position(frn volume.FRN) (int, bool) {
	i, ok := fl.positions[frn]
	return i, ok
}

// Copy returns a snapshot of the file sequence.
func (fl *FileList) Copy() []IndexedFile {
	out := make([]IndexedFile, len(fl.files))
	copy(out, fl.files)
	return out
}

// Upsert inserts file, or replaces the existing entry with the same FRN in
// place so iteration order is preserved.
func (fl *FileList) Upsert(file IndexedFile) {
	if i, ok := fl.positions[file.FRN]; ok {
		fl.unmark(i)
		fl.files[i] = file
		fl.mark(i)
		return
	}
	fl.positions[file.FRN] = len(fl.files)
	fl.files = append(fl.files, file)
	fl.mark(len(fl.files) - 1)
}

// Remove deletes the entry for frn, if present, by swapping with the last
// element.
func (fl *FileList) Remove(frn volume.FRN) {
	i, ok := fl.positions[frn]
	if !ok {
		return
	}
	last := len(fl.files) - 1
	fl.unmark(i)
	if i != last {
		fl.unmark(last)
		fl.files[i] = fl.files[last]
		fl.positions[fl.files[i].FRN] = i
		fl.mark(i)
	}
	fl.files = fl.files[:last]
	delete(fl.positions, frn)
}

// ExtensionPositions returns the bitmap of positions holding files with the
// given lowercased extension, or nil when none do. The caller must not
// mutate the bitmap.
func (fl *FileList) ExtensionPositions(ext string) *roaring.Bitmap {
	return fl.exts[ext]
}

// DirectoryPositions returns the bitmap of positions holding directories.
func (fl *FileList) DirectoryPositions() *roaring.Bitmap {
	return fl.dirs
}

func (fl *FileList) mark(i int) {
	f := &fl.files[i]
	if f.IsDirectory {
		fl.dirs.Add(uint32(i))
		return
	}
	if f.Extension == "" {
		return
	}
	bm, ok := fl.exts[f.Extension]
	if !ok {
		bm = roaring.New()
		fl.exts[f.Extension] = bm
	}
	bm.Add(uint32(i))
}

func (fl *FileList) unmark(i int) {
	f := &fl.files[i]
	if f.IsDirectory {
		fl.dirs.Remove(uint32(i))
		return
	}
	if f.Extension == "" {
		return
	}
	if bm, ok := fl.exts[f.Extension]; ok {
		bm.Remove(uint32(i))
		if bm.IsEmpty() {
			delete(fl.exts, f.Extension)
		}
	}
}
