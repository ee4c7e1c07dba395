package services

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// ProjectMerger combines a BLOCK-event project document, the resource blobs
// visible at the cutoff, and the experiment's initial project bytes into one
// loadable archive. The exact layering rules live behind this interface so
// they can change without touching session or log invariants.
type ProjectMerger interface {
	Merge(w io.Writer, snapshot json.RawMessage, resources map[string][]byte, initial []byte) error
}

// zip entry timestamps are pinned so identical inputs produce identical bytes.
var archiveEpoch = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

const projectEntryName = "project.json"

// ZipProjectMerger treats the initial project as a zip archive: its entries
// are carried over, project.json is replaced by the snapshot document, and
// resource files are overlaid by name (a resource blob wins over an initial
// entry of the same name).
type ZipProjectMerger struct{}

func NewZipProjectMerger() *ZipProjectMerger {
	return &ZipProjectMerger{}
}

func (m *ZipProjectMerger) Merge(w io.Writer, snapshot json.RawMessage, resources map[string][]byte, initial []byte) error {
	zw := zip.NewWriter(w)

	written := make(map[string]bool)

	writeEntry := func(name string, data []byte) error {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: archiveEpoch,
		})
		if err != nil {
			return err
		}
		_, err = fw.Write(data)
		return err
	}

	if len(snapshot) > 0 {
		if err := writeEntry(projectEntryName, snapshot); err != nil {
			return fmt.Errorf("write %s: %w", projectEntryName, err)
		}
		written[projectEntryName] = true
	}

	// Deterministic resource order.
	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if written[name] {
			continue
		}
		if err := writeEntry(name, resources[name]); err != nil {
			return fmt.Errorf("write resource %s: %w", name, err)
		}
		written[name] = true
	}

	// Remaining entries come from the initial project. A corrupt or empty
	// initial archive is tolerated: resources are best-effort and only total
	// absence of project bytes aborts assembly, which the caller checks.
	if len(initial) > 0 {
		zr, err := zip.NewReader(bytes.NewReader(initial), int64(len(initial)))
		if err == nil {
			for _, f := range zr.File {
				if written[f.Name] {
					continue
				}
				rc, err := f.Open()
				if err != nil {
					continue
				}
				data, err := io.ReadAll(rc)
				rc.Close()
				if err != nil {
					continue
				}
				if err := writeEntry(f.Name, data); err != nil {
					return fmt.Errorf("carry over %s: %w", f.Name, err)
				}
				written[f.Name] = true
			}
		}
	}

	if len(written) == 0 {
		zw.Close()
		return &NotFoundError{Message: "no project data"}
	}
	return zw.Close()
}
