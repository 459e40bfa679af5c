// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package fsutil

import (
	"io"
	"os"
	"path/filepath"

	ociv1 "github.com/google/go-containerregistry/pkg/v1"
)

// WriteSnapshot streams the snapshot's uncompressed tar to dst.
func WriteSnapshot(layer ociv1.Layer, dst io.Writer) (err error) {
	layerReader, err := layer.Uncompressed()
	if err != nil {
		return err
	}
	defer func() {
		if _err := layerReader.Close(); _err != nil && err == nil {
			err = _err
		}
	}()
	if _, err := io.Copy(dst, layerReader); err != nil {
		return err
	}
	return nil
}

// WriteSnapshotFile writes the snapshot to the named file, replacing it
// atomically (write-to-temp then rename), so that an interrupted save never
// leaves a truncated snapshot for the next run to trip over.
func WriteSnapshotFile(layer ociv1.Layer, filename string) (err error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o777); err != nil {
		return err
	}
	tmpfile, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".tmp.")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmpfile.Name())
		}
	}()
	if err := WriteSnapshot(layer, tmpfile); err != nil {
		_ = tmpfile.Close()
		return err
	}
	if err := tmpfile.Close(); err != nil {
		return err
	}
	return os.Rename(tmpfile.Name(), filename)
}
