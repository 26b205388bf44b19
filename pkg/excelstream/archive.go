package excelstream

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"
)

// archiveChunks writes paths into a new zip file as "<name> (<n>)<ext>".
func archiveChunks(dir, name, ext string, paths []string) (path string, err error) {
	pattern := strings.NewReplacer("/", "_", string(os.PathSeparator), "_", "*", "_").Replace(name) + "-*.zip"
	out, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}
	path = out.Name()
	defer func() {
		if err != nil {
			os.Remove(path)
		}
	}()

	zw := zip.NewWriter(out)
	for i, p := range paths {
		if err := addEntry(zw, fmt.Sprintf("%s (%d)%s", name, i+1, ext), p); err != nil {
			zw.Close()
			out.Close()
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return "", fmt.Errorf("finishing archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func addEntry(zw *zip.Writer, entry, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(entry)
	if err != nil {
		return fmt.Errorf("adding %s: %w", entry, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("writing %s: %w", entry, err)
	}
	return nil
}
