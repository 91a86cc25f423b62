package isoxml

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load parses a TASKDATA.XML file and merges the fragment files referenced
// by its XFR entries, which live in the same directory. The result is one
// in-memory task data set; the fragments' top level elements are appended to
// the root document's lists.
func Load(path string) (*TaskData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task data: %w", err)
	}

	var doc TaskData
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	for _, ref := range doc.External {
		frag, err := loadFragment(filepath.Join(dir, ref.Filename+".XML"))
		if err != nil {
			return nil, err
		}
		doc.Tasks = append(doc.Tasks, frag.Tasks...)
		doc.Devices = append(doc.Devices, frag.Devices...)
		doc.Farms = append(doc.Farms, frag.Farms...)
		doc.Partfields = append(doc.Partfields, frag.Partfields...)
	}

	return &doc, nil
}

func loadFragment(path string) (*externalFileContents, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fragment: %w", err)
	}

	var frag externalFileContents
	if err := xml.Unmarshal(data, &frag); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &frag, nil
}

// LoadTimeLogHeader parses the header document of one time log. The binary
// file shares the header's base name with a .BIN extension.
func LoadTimeLogHeader(path string) (*TimeLogHeader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading time log header: %w", err)
	}

	var hdr TimeLogHeader
	if err := xml.Unmarshal(data, &hdr); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return &hdr, nil
}

// BinaryPath returns the path of the binary file belonging to a time log
// header document.
func BinaryPath(headerPath string) string {
	return strings.TrimSuffix(headerPath, filepath.Ext(headerPath)) + ".BIN"
}
