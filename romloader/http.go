package romloader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// peekSize covers the tar magic at offset 257.
const peekSize = 512

func isURL(locator string) bool {
	lower := strings.ToLower(locator)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// urlParts returns the request URL without its fragment, the file name
// of its path and the fragment, which names an archive member.
func urlParts(locator string) (string, string, string, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid URL: %w", err)
	}
	member := u.Fragment
	u.Fragment = ""
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = u.Host
	}
	return u.String(), name, member, nil
}

func (l *Loader) get(rawURL string) (*http.Response, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s from %s", ErrHTTPStatus, resp.Status, rawURL)
	}
	return resp, nil
}

func (l *Loader) loadURL(locator string, kind fileKind) ([]byte, string, error) {
	rawURL, name, member, err := urlParts(locator)
	if err != nil {
		return nil, "", err
	}
	resp, err := l.get(rawURL)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := limitedRead(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return extract(data, name, member, kind, 0)
}

func (l *Loader) resolveURL(locator string) (string, io.ReadCloser, int, error) {
	rawURL, name, member, err := urlParts(locator)
	if err != nil {
		return "", nil, 0, err
	}
	resp, err := l.get(rawURL)
	if err != nil {
		return "", nil, 0, err
	}

	if resp.ContentLength > maxFileSize {
		resp.Body.Close()
		return "", nil, 0, fmt.Errorf("%w: %s", ErrFileTooLarge, name)
	}

	br := bufio.NewReaderSize(resp.Body, peekSize)
	header, _ := br.Peek(peekSize)
	if member == "" && detectFormat(header, name) == formatRaw {
		size := int(resp.ContentLength)
		if size < 0 {
			size = -1
		}
		body := &cappedReader{r: io.LimitReader(br, maxFileSize+1)}
		return name, &bodyReader{Reader: body, body: resp.Body}, size, nil
	}

	defer resp.Body.Close()
	data, err := limitedRead(br)
	if err != nil {
		return "", nil, 0, fmt.Errorf("failed to read %s: %w", name, err)
	}
	out, outName, err := extract(data, name, member, kindSnapshot, 0)
	if err != nil {
		return "", nil, 0, err
	}
	return outName, io.NopCloser(bytes.NewReader(out)), len(out), nil
}

// bodyReader reads through the peek buffer and closes the response body.
type bodyReader struct {
	io.Reader
	body io.Closer
}

// cappedReader fails with ErrFileTooLarge once more than maxFileSize
// bytes have been read.
type cappedReader struct {
	r    io.Reader
	read int
}

func (c *cappedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += n
	if c.read > maxFileSize {
		return n, ErrFileTooLarge
	}
	return n, err
}

func (b *bodyReader) Close() error {
	return b.body.Close()
}
