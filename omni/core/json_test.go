package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/omnisearch/omni/duplicate"
	"github.com/ZanzyTHEbar/omnisearch/omni/index"
	"github.com/ZanzyTHEbar/omnisearch/omni/search"
	"github.com/ZanzyTHEbar/omnisearch/omni/winfs"
)

func TestSearchRowsJSON_ExactLayout(t *testing.T) {
	rows := []search.Row{{
		Name:         "a.txt",
		Path:         `C:\a.txt`,
		Extension:    "txt",
		Size:         42,
		CreatedUnix:  100,
		ModifiedUnix: -1,
		IsDirectory:  false,
	}}

	want := `[{"name":"a.txt","path":"C:\\a.txt","extension":"txt","size":42,"createdUnix":100,"modifiedUnix":-1,"isDirectory":false}]`
	assert.Equal(t, want, searchRowsJSON(rows))
}

func TestSearchRowsJSON_Empty(t *testing.T) {
	assert.Equal(t, "[]", searchRowsJSON(nil))
}

func TestStringEscaping(t *testing.T) {
	rows := []search.Row{{
		Name: "we\"ird\\na\bme\f\n\r\t\x01.txt",
		Path: `C:\x`,
	}}
	out := searchRowsJSON(rows)

	assert.Contains(t, out, `"name":"we\"ird\\na\bme\f\n\r\t\u0001.txt"`)

	// The payload still parses as standard JSON.
	var parsed []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "we\"ird\\na\bme\f\n\r\t\x01.txt", parsed[0]["name"])
}

func TestDuplicateGroupsJSON_ExactLayout(t *testing.T) {
	groups := []duplicate.Group{{
		ID:         "0000000000001000-00000000deadbeef-00000000",
		Size:       4096,
		TotalBytes: 8192,
		FileCount:  2,
		Files: []duplicate.FileRow{
			{Name: "a.bin", Path: `C:\a.bin`, Size: 4096, CreatedUnix: 1, ModifiedUnix: 2},
			{Name: "b.bin", Path: `C:\b.bin`, Size: 4096, CreatedUnix: 3, ModifiedUnix: 4},
		},
	}}

	want := `[{"groupId":"0000000000001000-00000000deadbeef-00000000","size":4096,"totalBytes":8192,"fileCount":2,` +
		`"files":[{"name":"a.bin","path":"C:\\a.bin","size":4096,"createdUnix":1,"modifiedUnix":2},` +
		`{"name":"b.bin","path":"C:\\b.bin","size":4096,"createdUnix":3,"modifiedUnix":4}]}]`
	assert.Equal(t, want, duplicateGroupsJSON(groups))
}

func TestDrivesJSON(t *testing.T) {
	rows := []winfs.Drive{{
		Letter:        "C",
		Path:          `C:\`,
		Filesystem:    "NTFS",
		DriveType:     winfs.DriveTypeFixed,
		IsNtfs:        true,
		CanOpenVolume: true,
	}}

	want := `[{"letter":"C","path":"C:\\","filesystem":"NTFS","driveType":"fixed","isNtfs":true,"canOpenVolume":true}]`
	assert.Equal(t, want, drivesJSON(rows))
}

func TestBasicFilesJSON(t *testing.T) {
	files := []index.IndexedFile{
		{Name: "a.txt", Path: `C:\a.txt`},
		{Name: "sub", Path: `C:\sub`, IsDirectory: true},
	}

	want := `[{"name":"a.txt","path":"C:\\a.txt","isDirectory":false},{"name":"sub","path":"C:\\sub","isDirectory":true}]`
	assert.Equal(t, want, basicFilesJSON(files))
}

func TestDuplicateStatusJSON_TwoDecimals(t *testing.T) {
	v := duplicate.StatusView{
		Running:         true,
		ScannedFiles:    1,
		TotalFiles:      3,
		GroupsFound:     0,
		ProgressPercent: 100.0 / 3.0,
	}
	want := `{"running":true,"cancelRequested":false,"scannedFiles":1,"totalFiles":3,"groupsFound":0,"progressPercent":33.33}`
	assert.Equal(t, want, duplicateStatusJSON(v))

	zero := duplicate.StatusView{}
	assert.Contains(t, duplicateStatusJSON(zero), `"progressPercent":0.00`)
}
