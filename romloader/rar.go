package romloader

import (
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/nwaples/rardecode/v2"
)

// extractFromRAR extracts the selected file from a RAR archive
func extractFromRAR(data []byte, member string, kind fileKind) ([]byte, string, error) {
	r, err := rardecode.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to open rar: %w", err)
	}

	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to read rar entry: %w", err)
		}

		if header.IsDir {
			continue
		}
		if !memberMatches(header.Name, member, kind) {
			continue
		}

		out, err := limitedRead(r)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		return out, path.Base(header.Name), nil
	}

	return nil, "", memberError(member, kind)
}
