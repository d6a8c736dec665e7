package core

import (
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/omnisearch/omni/duplicate"
	"github.com/ZanzyTHEbar/omnisearch/omni/index"
	"github.com/ZanzyTHEbar/omnisearch/omni/search"
	"github.com/ZanzyTHEbar/omnisearch/omni/winfs"
)

// The host UI depends on these payloads byte for byte: fixed field order,
// "true"/"false" booleans, decimal integers, and the minimal escape set
// below. That rules out encoding/json, which HTML-escapes and renders the
// backspace and form-feed controls as six-character escapes, so the
// writers are explicit.

func appendJSONString(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if ch < 0x20 {
				const hex = "0123456789abcdef"
				b.WriteString(`\u00`)
				b.WriteByte(hex[ch>>4])
				b.WriteByte(hex[ch&0xF])
			} else {
				b.WriteByte(ch)
			}
		}
	}
}

func appendQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	appendJSONString(b, s)
	b.WriteByte('"')
}

func appendBool(b *strings.Builder, v bool) {
	if v {
		b.WriteString("true")
	} else {
		b.WriteString("false")
	}
}

func searchRowsJSON(rows []search.Row) string {
	var b strings.Builder
	b.Grow(len(rows)*176 + 2)
	b.WriteByte('[')
	for i := range rows {
		if i > 0 {
			b.WriteByte(',')
		}
		row := &rows[i]
		b.WriteString(`{"name":`)
		appendQuoted(&b, row.Name)
		b.WriteString(`,"path":`)
		appendQuoted(&b, row.Path)
		b.WriteString(`,"extension":`)
		appendQuoted(&b, row.Extension)
		b.WriteString(`,"size":`)
		b.WriteString(strconv.FormatUint(row.Size, 10))
		b.WriteString(`,"createdUnix":`)
		b.WriteString(strconv.FormatInt(row.CreatedUnix, 10))
		b.WriteString(`,"modifiedUnix":`)
		b.WriteString(strconv.FormatInt(row.ModifiedUnix, 10))
		b.WriteString(`,"isDirectory":`)
		appendBool(&b, row.IsDirectory)
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return b.String()
}

func duplicateGroupsJSON(groups []duplicate.Group) string {
	var b strings.Builder
	b.Grow(len(groups)*320 + 2)
	b.WriteByte('[')
	for i := range groups {
		if i > 0 {
			b.WriteByte(',')
		}
		group := &groups[i]
		b.WriteString(`{"groupId":`)
		appendQuoted(&b, group.ID)
		b.WriteString(`,"size":`)
		b.WriteString(strconv.FormatUint(group.Size, 10))
		b.WriteString(`,"totalBytes":`)
		b.WriteString(strconv.FormatUint(group.TotalBytes, 10))
		b.WriteString(`,"fileCount":`)
		b.WriteString(strconv.Itoa(group.FileCount))
		b.WriteString(`,"files":[`)
		for j := range group.Files {
			if j > 0 {
				b.WriteByte(',')
			}
			file := &group.Files[j]
			b.WriteString(`{"name":`)
			appendQuoted(&b, file.Name)
			b.WriteString(`,"path":`)
			appendQuoted(&b, file.Path)
			b.WriteString(`,"size":`)
			b.WriteString(strconv.FormatUint(file.Size, 10))
			b.WriteString(`,"createdUnix":`)
			b.WriteString(strconv.FormatInt(file.CreatedUnix, 10))
			b.WriteString(`,"modifiedUnix":`)
			b.WriteString(strconv.FormatInt(file.ModifiedUnix, 10))
			b.WriteByte('}')
		}
		b.WriteString(`]}`)
	}
	b.WriteByte(']')
	return b.String()
}

func drivesJSON(rows []winfs.Drive) string {
	var b strings.Builder
	b.Grow(len(rows)*120 + 2)
	b.WriteByte('[')
	for i := range rows {
		if i > 0 {
			b.WriteByte(',')
		}
		row := &rows[i]
		b.WriteString(`{"letter":`)
		appendQuoted(&b, row.Letter)
		b.WriteString(`,"path":`)
		appendQuoted(&b, row.Path)
		b.WriteString(`,"filesystem":`)
		appendQuoted(&b, row.Filesystem)
		b.WriteString(`,"driveType":`)
		appendQuoted(&b, row.DriveType)
		b.WriteString(`,"isNtfs":`)
		appendBool(&b, row.IsNtfs)
		b.WriteString(`,"canOpenVolume":`)
		appendBool(&b, row.CanOpenVolume)
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return b.String()
}

func basicFilesJSON(files []index.IndexedFile) string {
	var b strings.Builder
	b.Grow(len(files)*112 + 2)
	b.WriteByte('[')
	for i := range files {
		if i > 0 {
			b.WriteByte(',')
		}
		file := &files[i]
		b.WriteString(`{"name":`)
		appendQuoted(&b, file.Name)
		b.WriteString(`,"path":`)
		appendQuoted(&b, file.Path)
		b.WriteString(`,"isDirectory":`)
		appendBool(&b, file.IsDirectory)
		b.WriteByte('}')
	}
	b.WriteByte(']')
	return b.String()
}

func duplicateStatusJSON(v duplicate.StatusView) string {
	var b strings.Builder
	b.Grow(196)
	b.WriteString(`{"running":`)
	appendBool(&b, v.Running)
	b.WriteString(`,"cancelRequested":`)
	appendBool(&b, v.CancelRequested)
	b.WriteString(`,"scannedFiles":`)
	b.WriteString(strconv.FormatUint(v.ScannedFiles, 10))
	b.WriteString(`,"totalFiles":`)
	b.WriteString(strconv.FormatUint(v.TotalFiles, 10))
	b.WriteString(`,"groupsFound":`)
	b.WriteString(strconv.FormatUint(v.GroupsFound, 10))
	b.WriteString(`,"progressPercent":`)
	b.WriteString(strconv.FormatFloat(v.ProgressPercent, 'f', 2, 64))
	b.WriteByte('}')
	return b.String()
}
