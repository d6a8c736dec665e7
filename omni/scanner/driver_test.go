package scanner

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/omnisearch/omni/index"
	"github.com/ZanzyTHEbar/omnisearch/omni/volume"
	"github.com/ZanzyTHEbar/omnisearch/omni/volume/volumetest"
	"github.com/ZanzyTHEbar/omnisearch/omni/winfs"
)

const fakeRoot = 5

// smallVolume scripts a device holding a.txt, b.txt, and sub\c.txt split
// across two enumeration replies.
func smallVolume() *volumetest.FakeDevice {
	return &volumetest.FakeDevice{
		Root:    fakeRoot,
		Journal: volume.JournalInfo{ID: 77, NextUSN: 1000},
		EnumBatches: [][]byte{
			volumetest.BuildBatch(200,
				volumetest.Record{FRN: 100, ParentFRN: fakeRoot, Name: "sub", IsDirectory: true},
				volumetest.Record{FRN: 101, ParentFRN: fakeRoot, Name: "a.txt"},
			),
			volumetest.BuildBatch(400,
				volumetest.Record{FRN: 102, ParentFRN: fakeRoot, Name: "b.txt"},
				volumetest.Record{FRN: 103, ParentFRN: 100, Name: "c.txt"},
			),
		},
	}
}

func openerFor(devices map[string]*volumetest.FakeDevice) DeviceOpener {
	return func(letter string) (volume.Device, error) {
		dev, ok := devices[letter]
		if !ok {
			return nil, volume.NewDeviceError(
				"Unable to open volume. Run as administrator and ensure the target drive is NTFS.", 5, "access denied")
		}
		return dev, nil
	}
}

func snapshotPaths(snap *index.Snapshot) []string {
	paths := make([]string, 0, len(snap.Files))
	for _, f := range snap.Files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	return paths
}

func TestScanVolume_FilesOnly(t *testing.T) {
	dev := smallVolume()
	store := index.NewStore()
	driver := NewDriver(store, openerFor(map[string]*volumetest.FakeDevice{"C": dev}), emptyDrives, Options{})

	snap, err := driver.ScanVolume("C", false, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{`C:\a.txt`, `C:\b.txt`, `C:\sub\c.txt`}, snapshotPaths(snap))
	assert.Equal(t, volume.FRN(fakeRoot), snap.RootFRN)
	assert.Equal(t, `C:\`, snap.RootPath)
	assert.True(t, snap.LiveUpdates)
	assert.Equal(t, uint64(77), snap.JournalID)
	assert.Equal(t, volume.USN(1000), snap.NextUSN)
	assert.True(t, dev.Closed, "device must be released")
}

func TestScanVolume_IncludeDirectories(t *testing.T) {
	store := index.NewStore()
	driver := NewDriver(store, openerFor(map[string]*volumetest.FakeDevice{"C": smallVolume()}), emptyDrives, Options{})

	snap, err := driver.ScanVolume("C", true, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{`C:\a.txt`, `C:\b.txt`, `C:\sub`, `C:\sub\c.txt`}, snapshotPaths(snap))
}

func TestScanVolume_JournalCreatedWhenMissing(t *testing.T) {
	dev := smallVolume()
	dev.QueryErrCodes = []uint32{1179} // not active on first query
	store := index.NewStore()
	driver := NewDriver(store, openerFor(map[string]*volumetest.FakeDevice{"C": dev}), emptyDrives, Options{})

	snap, err := driver.ScanVolume("C", false, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, dev.CreateCalls)
	assert.True(t, snap.LiveUpdates)
}

func TestScanVolume_ContinuesWithoutJournal(t *testing.T) {
	dev := smallVolume()
	dev.QueryErrCodes = []uint32{1179, 1179} // create does not help
	store := index.NewStore()
	driver := NewDriver(store, openerFor(map[string]*volumetest.FakeDevice{"C": dev}), emptyDrives, Options{})

	snap, err := driver.ScanVolume("C", false, 0)
	require.NoError(t, err)

	assert.False(t, snap.LiveUpdates)
	assert.Len(t, snap.Files, 3)
}

func TestScanVolume_UnexpectedJournalErrorIsFatal(t *testing.T) {
	dev := smallVolume()
	dev.QueryErrCodes = []uint32{5} // access denied
	store := index.NewStore()
	driver := NewDriver(store, openerFor(map[string]*volumetest.FakeDevice{"C": dev}), emptyDrives, Options{})

	_, err := driver.ScanVolume("C", false, 0)
	require.Error(t, err)
	assert.Equal(t, uint32(5), volume.ErrorCode(err))
}

func TestScanVolume_CancelledBySupersedingRequest(t *testing.T) {
	store := index.NewStore()
	driver := NewDriver(store, openerFor(map[string]*volumetest.FakeDevice{"C": smallVolume()}), emptyDrives, Options{})

	token := store.BeginIndexing(false, false)
	store.BeginIndexing(false, false) // supersede

	_, err := driver.ScanVolume("C", false, token)
	assert.True(t, errors.Is(err, volume.ErrCancelled))
}

func TestRun_SingleVolumePublishes(t *testing.T) {
	store := index.NewStore()
	driver := NewDriver(store, openerFor(map[string]*volumetest.FakeDevice{"C": smallVolume()}), emptyDrives, Options{})

	token := store.BeginIndexing(false, false)
	driver.Run(token, "C", false, false)

	assert.True(t, store.IsReady())
	assert.False(t, store.IsIndexing())
	assert.Equal(t, uint64(3), store.IndexedCount())
	assert.Empty(t, store.LastError())
}

func TestRun_FailurePublishesError(t *testing.T) {
	store := index.NewStore()
	driver := NewDriver(store, openerFor(map[string]*volumetest.FakeDevice{}), emptyDrives, Options{})

	token := store.BeginIndexing(false, false)
	driver.Run(token, "C", false, false)

	assert.False(t, store.IsReady())
	assert.False(t, store.IsIndexing())
	assert.Contains(t, store.LastError(), "Unable to open volume")
}

func TestRun_AllDrivesMergesAndToleratesPartialFailure(t *testing.T) {
	devices := map[string]*volumetest.FakeDevice{
		"C": smallVolume(),
		"D": {
			Root:    9,
			Journal: volume.JournalInfo{ID: 1, NextUSN: 10},
			EnumBatches: [][]byte{volumetest.BuildBatch(50,
				volumetest.Record{FRN: 500, ParentFRN: 9, Name: "x.log"},
			)},
		},
	}
	drives := func() ([]winfs.Drive, error) {
		return []winfs.Drive{
			{Letter: "C", IsNtfs: true, CanOpenVolume: true},
			{Letter: "D", IsNtfs: true, CanOpenVolume: true},
			{Letter: "E", IsNtfs: true, CanOpenVolume: true}, // opener fails
			{Letter: "F", IsNtfs: false, CanOpenVolume: false},
		}, nil
	}
	store := index.NewStore()
	driver := NewDriver(store, openerFor(devices), drives, Options{})

	token := store.BeginIndexing(false, true)
	driver.Run(token, "C", false, true)

	assert.True(t, store.IsReady())
	assert.True(t, store.AllDrivesMode())
	assert.Equal(t, uint64(4), store.IndexedCount())

	paths := map[string]bool{}
	store.ReadView(func(view *index.FileList) {
		for i := 0; i < view.Len(); i++ {
			paths[view.At(i).Path] = true
		}
	})
	assert.True(t, paths[`D:\x.log`])
}

func TestRun_AllDrivesAllFailConcatenatesErrors(t *testing.T) {
	drives := func() ([]winfs.Drive, error) {
		return []winfs.Drive{
			{Letter: "C", IsNtfs: true, CanOpenVolume: true},
			{Letter: "D", IsNtfs: true, CanOpenVolume: true},
		}, nil
	}
	store := index.NewStore()
	driver := NewDriver(store, openerFor(map[string]*volumetest.FakeDevice{}), drives, Options{})

	token := store.BeginIndexing(false, true)
	driver.Run(token, "C", false, true)

	assert.False(t, store.IsReady())
	lastError := store.LastError()
	assert.Contains(t, lastError, "C: ")
	assert.Contains(t, lastError, " | ")
	assert.Contains(t, lastError, "D: ")
}

func TestNormalizeDriveLetter(t *testing.T) {
	assert.Equal(t, "C", NormalizeDriveLetter(""))
	assert.Equal(t, "D", NormalizeDriveLetter("d"))
	assert.Equal(t, "E", NormalizeDriveLetter("E:"))
	assert.Equal(t, "C", NormalizeDriveLetter("9"))
}

func emptyDrives() ([]winfs.Drive, error) { return nil, nil }
