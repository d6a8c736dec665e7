package winfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/omnisearch/omni/volume"
)

func TestStat_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, make([]byte, 123), 0o644))

	md, err := Stat(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(123), md.Size)
	assert.GreaterOrEqual(t, md.ModifiedUnix, int64(0))
}

func TestStat_MissingFileClassifies(t *testing.T) {
	_, err := Stat(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.True(t, IsPathMissing(err))
}

func TestIsPathMissing_OtherErrors(t *testing.T) {
	assert.False(t, IsPathMissing(nil))
	err := volume.NewDeviceError("Failed to read file metadata.", 5, "access denied")
	assert.False(t, IsPathMissing(err))
}

func TestDriveTypeText(t *testing.T) {
	cases := map[uint32]string{
		3:  DriveTypeFixed,
		2:  DriveTypeRemovable,
		4:  DriveTypeNetwork,
		5:  DriveTypeCdrom,
		6:  DriveTypeRamdisk,
		1:  DriveTypeNoRoot,
		0:  DriveTypeUnknown,
		99: DriveTypeUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, driveTypeText(in), "type %d", in)
	}
}
