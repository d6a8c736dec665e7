//go:build !windows

package winfs

import (
	"errors"
	"io/fs"
	"os"

	"github.com/djherbis/times"

	"github.com/ZanzyTHEbar/omnisearch/omni/volume"
)

const codeFileNotFound = 2

// Stat loads file metadata through the portable filesystem API. Creation
// time comes from the platform birth time when the filesystem records one.
func Stat(path string) (Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		code := uint32(0)
		if errors.Is(err, fs.ErrNotExist) {
			code = codeFileNotFound
		}
		return Metadata{}, volume.NewDeviceError("Failed to read file metadata.", code, err.Error())
	}

	md := Metadata{
		Size:         uint64(info.Size()),
		ModifiedUnix: clampEpoch(info.ModTime().Unix()),
	}
	ts := times.Get(info)
	if ts.HasBirthTime() {
		md.CreatedUnix = clampEpoch(ts.BirthTime().Unix())
	}
	return md, nil
}

func clampEpoch(sec int64) int64 {
	if sec < 0 {
		return 0
	}
	return sec
}
