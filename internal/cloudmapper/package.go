package cloudmapper

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
)

// ZipName returns the archive name for account.
func ZipName(account string) string {
	return "cloudmapper_" + account + ".zip"
}

// Package zips the web UI and the account's prepared data into outDir as an
// offline site. The archive holds web/... and account-data/<account>/...
func (j *Job) Package(account, outDir string) (string, error) {
	webSrc := filepath.Join(j.dir, "web")
	dataSrc := filepath.Join(j.dir, "account-data", account)

	for _, dir := range []string{webSrc, dataSrc} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return "", fmt.Errorf("cloudmapper directory not found: %s", dir)
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", outDir, err)
	}

	out := filepath.Join(outDir, ZipName(account))
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", out, err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	if err := addTree(zw, webSrc, "web"); err != nil {
		_ = zw.Close()
		return "", err
	}
	if err := addTree(zw, dataSrc, path.Join("account-data", account)); err != nil {
		_ = zw.Close()
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finish %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", out, err)
	}

	log.Info().Str("path", out).Msg("cloudmapper site packaged")
	return out, nil
}

// addTree writes every regular file under root into zw below prefix.
func addTree(zw *zip.Writer, root, prefix string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		return addFile(zw, p, path.Join(prefix, filepath.ToSlash(rel)))
	})
}

func addFile(zw *zip.Writer, src, name string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
