package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/blake3"
)

// httpDoer is the part of *http.Client the fetcher needs.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// fetcher downloads the upstream schema files and data dumps.
type fetcher struct {
	client httpDoer
	cfg    *Config
}

func newFetcher(client httpDoer, cfg *Config) *fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &fetcher{client: client, cfg: cfg}
}

// download is a completed (or already present) file download.
type download struct {
	Path   string
	URL    string
	Size   int64
	BLAKE3 string
	SHA256 string
	Cached bool
}

func (f *fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &NetworkError{URL: url, Status: resp.StatusCode}
	}
	return resp, nil
}

// FetchSchema downloads every configured schema path into the schema directory.
func (f *fetcher) FetchSchema(ctx context.Context) ([]string, error) {
	dir := f.cfg.resolvePath(f.cfg.SchemaDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create schema dir: %w", err)
	}

	var paths []string
	for _, p := range f.cfg.Fetch.SchemaPaths {
		url := f.cfg.Fetch.SchemaBaseURL + p
		dest := filepath.Join(dir, path.Base(p))
		log.Printf("downloading: %s", url)
		d, err := f.download(ctx, url, dest, false)
		if err != nil {
			return paths, err
		}
		log.Printf("  %s (%s)", d.Path, humanize.Bytes(uint64(d.Size)))
		paths = append(paths, d.Path)
	}
	return paths, nil
}

// latestDump returns the directory name published in the LATEST file.
func (f *fetcher) latestDump(ctx context.Context) (string, error) {
	url := f.cfg.Fetch.DumpBaseURL + f.cfg.Fetch.LatestFile
	resp, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", &NetworkError{URL: url, Err: err}
	}
	name := strings.TrimSpace(string(body))
	if name == "" || strings.ContainsAny(name, "/\\ \n") {
		return "", fmt.Errorf("%s: unexpected content %q", url, name)
	}
	return name, nil
}

// FetchData downloads the latest data dump archive, verifies it and extracts
// it into the data directory. It returns the extraction directory.
func (f *fetcher) FetchData(ctx context.Context) (string, error) {
	latest, err := f.latestDump(ctx)
	if err != nil {
		return "", err
	}
	base := f.cfg.Fetch.DumpBaseURL + latest + "/"
	url := base + f.cfg.Fetch.DumpFile

	dataDir := f.cfg.resolvePath(f.cfg.Fetch.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	dest := filepath.Join(dataDir, f.cfg.Fetch.DumpFile)

	log.Printf("downloading: %s", url)
	d, err := f.download(ctx, url, dest, true)
	if err != nil {
		return "", err
	}
	if d.Cached {
		log.Printf("  %s is up to date (%s)", d.Path, humanize.Bytes(uint64(d.Size)))
	} else {
		log.Printf("  %s (%s)", d.Path, humanize.Bytes(uint64(d.Size)))
	}

	if f.cfg.Fetch.VerifyChecksums {
		if err := f.verifyChecksum(ctx, base+"SHA256SUMS", f.cfg.Fetch.DumpFile, d.SHA256); err != nil {
			return "", err
		}
	}

	log.Printf("extracting archive")
	if _, err := extractArchive(d.Path, dataDir); err != nil {
		return "", err
	}
	return dataDir, nil
}

// download streams url to dest through a .part file, hashing as it goes.
// With cached set, an existing dest whose .blake3 sidecar records the same
// URL and content hash is reused without a request.
func (f *fetcher) download(ctx context.Context, url, dest string, cached bool) (*download, error) {
	if cached {
		if d, ok := cachedDownload(url, dest); ok {
			return d, nil
		}
	}

	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", part, err)
	}
	b3 := blake3.New()
	sum := sha256.New()
	n, err := io.Copy(io.MultiWriter(out, b3, sum), resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(part)
		return nil, &NetworkError{URL: url, Err: err}
	}
	if err := os.Rename(part, dest); err != nil {
		return nil, fmt.Errorf("rename %s: %w", part, err)
	}

	d := &download{Path: dest, URL: url, Size: n, BLAKE3: hexSum(b3), SHA256: hexSum(sum)}
	if cached {
		if err := writeSidecar(d); err != nil {
			log.Printf("  WARN: %v", err)
		}
	}
	return d, nil
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

func sidecarPath(dest string) string { return dest + ".blake3" }

// writeSidecar records url, blake3 and sha256 of a finished download.
func writeSidecar(d *download) error {
	content := fmt.Sprintf("url %s\nblake3 %s\nsha256 %s\n", d.URL, d.BLAKE3, d.SHA256)
	if err := os.WriteFile(sidecarPath(d.Path), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// readSidecar parses a sidecar written by writeSidecar.
func readSidecar(dest string) (map[string]string, error) {
	f, err := os.Open(sidecarPath(dest))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fields := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), " ")
		if ok {
			fields[k] = v
		}
	}
	return fields, sc.Err()
}

// cachedDownload reports whether dest already holds the content of url.
func cachedDownload(url, dest string) (*download, bool) {
	meta, err := readSidecar(dest)
	if err != nil || meta["url"] != url || meta["blake3"] == "" {
		return nil, false
	}
	fh, err := os.Open(dest)
	if err != nil {
		return nil, false
	}
	defer fh.Close()

	b3 := blake3.New()
	n, err := io.Copy(b3, fh)
	if err != nil || hexSum(b3) != meta["blake3"] {
		return nil, false
	}
	return &download{Path: dest, URL: url, Size: n, BLAKE3: meta["blake3"], SHA256: meta["sha256"], Cached: true}, true
}

// verifyChecksum compares sum with the entry for file in a SHA256SUMS listing.
// A missing listing is only a warning.
func (f *fetcher) verifyChecksum(ctx context.Context, url, file, sum string) error {
	resp, err := f.get(ctx, url)
	if err != nil {
		var netErr *NetworkError
		if errors.As(err, &netErr) && netErr.Status == http.StatusNotFound {
			log.Printf("  WARN: no checksum listing at %s; skipping verification", url)
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	want, err := findChecksum(resp.Body, file)
	if err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}
	if want == "" {
		log.Printf("  WARN: %s has no entry for %s; skipping verification", url, file)
		return nil
	}
	if !strings.EqualFold(want, sum) {
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", file, sum, want)
	}
	log.Printf("  sha256 ok")
	return nil
}

// findChecksum returns the hex digest listed for file in sha256sum output
// ("<hex>  <name>" or "<hex> *<name>"), or "" when absent.
func findChecksum(r io.Reader, file string) (string, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			continue
		}
		if strings.TrimPrefix(fields[1], "*") == file {
			return fields[0], nil
		}
	}
	return "", sc.Err()
}
