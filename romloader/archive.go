package romloader

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/zip"
)

// extractFromZIP extracts the selected file from a ZIP archive
func extractFromZIP(data []byte, member string, kind fileKind) ([]byte, string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to open zip: %w", err)
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !memberMatches(f.Name, member, kind) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		out, err := limitedRead(rc)
		rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		return out, path.Base(f.Name), nil
	}

	return nil, "", memberError(member, kind)
}

// extractFrom7z extracts the selected file from a 7z archive
func extractFrom7z(data []byte, member string, kind fileKind) ([]byte, string, error) {
	r, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, "", fmt.Errorf("failed to open 7z: %w", err)
	}

	for _, f := range r.File {
		if !memberMatches(f.Name, member, kind) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		out, err := limitedRead(rc)
		rc.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		return out, path.Base(f.Name), nil
	}

	return nil, "", memberError(member, kind)
}

// extractFromTar extracts the selected file from a tar archive
func extractFromTar(data []byte, member string, kind fileKind) ([]byte, string, error) {
	tr := tar.NewReader(bytes.NewReader(data))

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to read tar entry: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}
		if !memberMatches(header.Name, member, kind) {
			continue
		}

		out, err := limitedRead(tr)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		return out, path.Base(header.Name), nil
	}

	return nil, "", memberError(member, kind)
}
