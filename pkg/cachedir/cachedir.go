// Copyright (C) 2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package cachedir deals with persisting cache directories between runs of
// the same lane, as tarball layers.
//
// Persistence is advisory: a missing or unreadable snapshot is a cache miss,
// not an error.
package cachedir

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/datawire/dlib/dlog"
	ociv1 "github.com/google/go-containerregistry/pkg/v1"
	ociv1tarball "github.com/google/go-containerregistry/pkg/v1/tarball"
)

// Snapshot builds a layer holding the contents of the listed directories.
// Entry names are the directories' absolute paths without the leading "/",
// so that Restore against root "/" puts everything back where it came from.
// Directories that don't exist are skipped; caches are best-effort.
//
// Timestamps newer than clampTime are clamped, so that a snapshot of
// unchanged contents is byte-identical regardless of when it is taken.
func Snapshot(
	ctx context.Context,
	dirs []string,
	clampTime time.Time,
	opts ...ociv1tarball.LayerOption,
) (ociv1.Layer, error) {
	type logEntry struct {
		Name string
		Info fs.FileInfo
	}

	var byteWriter bytes.Buffer
	tarWriter := tar.NewWriter(&byteWriter)

	var log []logEntry

	for _, dirname := range dirs {
		dirname, err := filepath.Abs(dirname)
		if err != nil {
			return nil, err
		}
		if _, err := os.Lstat(dirname); err != nil {
			dlog.Infof(ctx, "cache: skipping %q: %v", dirname, err)
			continue
		}
		err = filepath.Walk(dirname, func(filename string, info fs.FileInfo, e error) error {
			if e != nil {
				return e
			}
			name := strings.TrimPrefix(filepath.ToSlash(filename), "/")
			defer func() {
				log = append(log, logEntry{
					Name: name,
					Info: info,
				})
			}()

			header, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			header.Name = name
			for _, entry := range log {
				if os.SameFile(entry.Info, info) {
					header.Typeflag = tar.TypeLink
					header.Linkname = entry.Name
					break
				}
			}
			if header.Typeflag == tar.TypeSymlink {
				header.Linkname, err = os.Readlink(filename)
				if err != nil {
					return err
				}
			}
			if header.ModTime.After(clampTime) {
				header.ModTime = clampTime
			}
			if header.AccessTime.After(clampTime) {
				header.AccessTime = clampTime
			}
			if header.ChangeTime.After(clampTime) {
				header.ChangeTime = clampTime
			}
			if err := tarWriter.WriteHeader(header); err != nil {
				return err
			}
			if header.Typeflag == tar.TypeReg {
				reader, err := os.Open(filename)
				if err != nil {
					return err
				}
				if _, err := io.Copy(tarWriter, reader); err != nil {
					_ = reader.Close()
					return err
				}
				if err := reader.Close(); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tarWriter.Close(); err != nil {
		return nil, err
	}

	byteSlice := byteWriter.Bytes()
	return ociv1tarball.LayerFromOpener(func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(byteSlice)), nil
	}, opts...)
}

// insideRoot reports whether a slash path, interpreted relative to the
// snapshot root, stays inside it.
func insideRoot(name string) bool {
	clean := path.Clean(name)
	return !strings.HasPrefix(clean, "/") && !strings.HasPrefix(clean, "../") && clean != ".."
}

// Restore unpacks a snapshot under root (normally "/").  Entries that try to
// escape root are rejected; that covers hardlink targets and relative
// symlink targets too, not just entry names.
func Restore(ctx context.Context, layer ociv1.Layer, root string) (err error) {
	maybeSetErr := func(_err error) {
		if _err != nil && err == nil {
			err = _err
		}
	}

	layerReader, err := layer.Uncompressed()
	if err != nil {
		return err
	}
	defer func() {
		maybeSetErr(layerReader.Close())
	}()

	tarReader := tar.NewReader(layerReader)
	for {
		header, err := tarReader.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}

		cleanName := path.Clean(header.Name)
		if !insideRoot(cleanName) {
			return &fs.PathError{
				Op:   "restore cache",
				Path: header.Name,
				Err:  fs.ErrInvalid,
			}
		}
		target := filepath.Join(root, filepath.FromSlash(cleanName))

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
				header.FileInfo().Mode().Perm())
			if err != nil {
				return err
			}
			if _, err := io.Copy(file, tarReader); err != nil {
				_ = file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
		case tar.TypeSymlink:
			// Absolute targets are kept verbatim; creating the link
			// doesn't touch the target, and snapshots restored to "/"
			// legitimately contain them.  Relative targets must not
			// climb out of root.
			if !path.IsAbs(header.Linkname) &&
				!insideRoot(path.Join(path.Dir(cleanName), header.Linkname)) {
				return &fs.PathError{
					Op:   "restore cache",
					Path: header.Name,
					Err:  fs.ErrInvalid,
				}
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.RemoveAll(target); err != nil {
				return err
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			if !insideRoot(header.Linkname) {
				return &fs.PathError{
					Op:   "restore cache",
					Path: header.Name,
					Err:  fs.ErrInvalid,
				}
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.RemoveAll(target); err != nil {
				return err
			}
			linkTarget := filepath.Join(root, filepath.FromSlash(path.Clean(header.Linkname)))
			if err := os.Link(linkTarget, target); err != nil {
				return err
			}
		default:
			dlog.Warnf(ctx, "cache: skipping entry %q with unsupported type %q",
				header.Name, header.Typeflag)
		}
	}
	return nil
}
