// Package archive packs a staging directory into a single flat archive.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format is the container written by Flatten.
type Format int

const (
	FormatZip Format = iota
	FormatTarGz
)

func (f Format) String() string {
	if f == FormatTarGz {
		return "tar.gz"
	}
	return "zip"
}

// FormatFor picks the container from the destination file name.
// ".tar.gz" and ".tgz" produce a gzip tarball; anything else is zip.
func FormatFor(outputPath string) Format {
	lower := strings.ToLower(outputPath)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return FormatTarGz
	}
	return FormatZip
}

// Result lists what went into the archive.
type Result struct {
	// Entries are the archived entry names, in walk order.
	Entries []string

	// Duplicates are source paths left out because an earlier file already
	// used the same base name.
	Duplicates []string
}

// entryWriter abstracts the zip and tar writers.
type entryWriter interface {
	add(name string, info os.FileInfo, r io.Reader) error
	close() error
}

// Flatten walks sourceDir recursively and writes every regular file into a
// new archive at outputPath, named by its base name only. Directories are not
// recorded. When two files share a base name the first one in lexical walk
// order wins and the rest are reported in Result.Duplicates.
//
// An empty sourceDir produces a valid empty archive. On error the partial
// output file is removed.
func Flatten(sourceDir, outputPath string) (*Result, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("source directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s", sourceDir)
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	var w entryWriter
	if FormatFor(outputPath) == FormatTarGz {
		w = newTarWriter(outFile)
	} else {
		w = newZipWriter(outFile)
	}

	res := &Result{}
	seen := make(map[string]string) // entry name -> source path

	walkErr := filepath.Walk(sourceDir, func(filePath string, fileInfo os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fileInfo.Mode().IsRegular() {
			return nil
		}

		name := filepath.Base(filePath)
		if _, exists := seen[name]; exists {
			res.Duplicates = append(res.Duplicates, filePath)
			return nil
		}
		seen[name] = filePath

		file, err := os.Open(filePath)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer file.Close()

		if err := w.add(name, fileInfo, file); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		res.Entries = append(res.Entries, name)
		return nil
	})

	closeErr := w.close()
	fileErr := outFile.Close()

	for _, err := range []error{walkErr, closeErr, fileErr} {
		if err != nil {
			os.Remove(outputPath) // Clean up partial file
			return nil, fmt.Errorf("failed to create archive: %w", err)
		}
	}
	return res, nil
}

type zipWriter struct {
	zw *zip.Writer
}

func newZipWriter(w io.Writer) *zipWriter {
	return &zipWriter{zw: zip.NewWriter(w)}
}

func (z *zipWriter) add(name string, info os.FileInfo, r io.Reader) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	dst, err := z.zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, r)
	return err
}

func (z *zipWriter) close() error {
	return z.zw.Close()
}

type tarWriter struct {
	gz *gzip.Writer
	tw *tar.Writer
}

func newTarWriter(w io.Writer) *tarWriter {
	gz := gzip.NewWriter(w)
	return &tarWriter{gz: gz, tw: tar.NewWriter(gz)}
}

func (t *tarWriter) add(name string, info os.FileInfo, r io.Reader) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name

	if err := t.tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(t.tw, r)
	return err
}

func (t *tarWriter) close() error {
	if err := t.tw.Close(); err != nil {
		t.gz.Close()
		return err
	}
	return t.gz.Close()
}
