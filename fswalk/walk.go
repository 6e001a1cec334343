// Package fswalk builds the flattened, destination-relative file list a
// sender summarizes in TransferMetadata and then streams entry by
// entry: walking each top-level input path, resolving it to an absolute
// source path, rooting its destinations at that path's own base name,
// and recording a directory/file entry for everything found.
package fswalk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pchan37/iris/protocol"
)

// Type distinguishes a directory entry (created empty on the receiver
// side, with no bytes transferred) from a file entry.
type Type int

const (
	File Type = iota
	Directory
)

// Entry pairs a source path on the sending machine with the metadata
// the receiver needs: the destination-relative path, its type, and (for
// files) its size. Source is never sent over the wire; Metadata
// strips it down to the fields the receiver needs.
type Entry struct {
	Source   string
	DestPath string
	Type     Type
	Size     uint64
}

// Metadata is the wire shape of an Entry: the JSON object a sender
// writes as a standalone encrypted frame ahead of each entry's
// directory-creation or chunk stream, not wrapped in a
// protocol.Message tag.
type Metadata struct {
	DestFilename string `json:"dest_filename"`
	FileType     Type   `json:"file_type"`
	Size         uint64 `json:"size"`
}

// Metadata projects an Entry down to its wire representation.
func (e Entry) Metadata() Metadata {
	return Metadata{DestFilename: e.DestPath, FileType: e.Type, Size: e.Size}
}

// MarshalJSON renders Type the way serde renders a unit enum variant:
// a bare JSON string ("Directory" or "File").
func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the bare string form back into a Type.
func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "Directory":
		*t = Directory
	case "File":
		*t = File
	default:
		return fmt.Errorf("fswalk: unknown file type %q", s)
	}
	return nil
}

// Walk canonicalizes each of roots and walks it depth-first, returning
// one Entry per directory and file found plus the sum of all file
// sizes. Each directory's own entry comes before everything beneath
// it; within a directory, its files (by name) are listed before its
// subdirectories (by name, each walked in turn).
//
// A root's own destination path is its base name: walking "/a/b/proj"
// produces destinations rooted at "proj/...", not "/a/b/proj/...".
func Walk(roots []string) ([]Entry, uint64, error) {
	var entries []Entry
	var totalBytes uint64

	for _, root := range roots {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, 0, protocol.NewPathError(protocol.KindPermissionsUserIO, root, err)
		}
		absRoot, err = filepath.EvalSymlinks(absRoot)
		if err != nil {
			return nil, 0, protocol.NewPathError(protocol.KindPermissionsUserIO, root, err)
		}
		base := filepath.Base(absRoot)

		rootInfo, err := os.Lstat(absRoot)
		if err != nil {
			return nil, 0, protocol.NewPathError(protocol.KindPermissionsUserIO, root, err)
		}

		if !rootInfo.IsDir() {
			entries = append(entries, Entry{
				Source:   absRoot,
				DestPath: base,
				Type:     File,
				Size:     uint64(rootInfo.Size()),
			})
			totalBytes += uint64(rootInfo.Size())
			continue
		}

		walked, size, err := walkDir(absRoot, base)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, walked...)
		totalBytes += size
	}

	return entries, totalBytes, nil
}

// walkDir recursively lists dir, whose contents map to destPrefix on
// the receiving side. It lists its own directory entry first, then the
// files directly inside it, then recurses into each subdirectory, so a
// receiver can mkdir before any file beneath it arrives.
func walkDir(dir, destPrefix string) ([]Entry, uint64, error) {
	entries := []Entry{{Source: dir, DestPath: destPrefix, Type: Directory}}
	var totalBytes uint64

	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, protocol.NewPathError(protocol.KindPermissionsUserIO, dir, err)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })

	var subdirs, files []os.DirEntry
	for _, child := range children {
		if child.IsDir() {
			subdirs = append(subdirs, child)
		} else {
			files = append(files, child)
		}
	}

	for _, f := range files {
		info, err := f.Info()
		if err != nil {
			return nil, 0, protocol.NewPathError(protocol.KindPermissionsUserIO, filepath.Join(dir, f.Name()), err)
		}
		childDest := filepath.Join(destPrefix, f.Name())
		entries = append(entries, Entry{
			Source:   filepath.Join(dir, f.Name()),
			DestPath: childDest,
			Type:     File,
			Size:     uint64(info.Size()),
		})
		totalBytes += uint64(info.Size())
	}

	for _, d := range subdirs {
		childDir := filepath.Join(dir, d.Name())
		childDest := filepath.Join(destPrefix, d.Name())
		sub, size, err := walkDir(childDir, childDest)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, sub...)
		totalBytes += size
	}

	return entries, totalBytes, nil
}

func (t Type) String() string {
	switch t {
	case Directory:
		return "Directory"
	case File:
		return "File"
	default:
		return fmt.Sprintf("fswalk.Type(%d)", int(t))
	}
}
