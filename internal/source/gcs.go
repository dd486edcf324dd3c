// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package source feeds files into the pipeline: a Cloud Storage folder
// downloaded to local disk, or a watched local directory.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/the-hive/segmenter/internal/classify"
	"github.com/the-hive/segmenter/internal/parser"
)

// DownloadedFile is a Cloud Storage object copied to local disk.
type DownloadedFile struct {
	Name        string // object name
	LocalPath   string
	ContentType string
	Size        int64
}

// GCSSource reads input folders from, and writes results to, Cloud Storage.
type GCSSource struct {
	client *storage.Client
	dir    string
}

// NewGCSSource creates a client. Downloads land under dir, which is created
// if needed; an empty dir selects a fresh temp directory.
func NewGCSSource(ctx context.Context, dir string, opts ...option.ClientOption) (*GCSSource, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	if dir == "" {
		dir, err = os.MkdirTemp("", "segmenter-gcs-")
	} else {
		err = os.MkdirAll(dir, 0755)
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to prepare download directory: %w", err)
	}

	return &GCSSource{client: client, dir: dir}, nil
}

// Dir returns the local download directory.
func (g *GCSSource) Dir() string {
	return g.dir
}

// DownloadFolder copies every object under prefix in bucket to local disk.
// Folder placeholders and temporary files are skipped. A failed object is
// logged and left out; the call fails only if listing fails.
func (g *GCSSource) DownloadFolder(ctx context.Context, bucket, prefix string) ([]DownloadedFile, error) {
	log.Printf("DownloadFolder: bucket=%s prefix=%s dir=%s", bucket, prefix, g.dir)

	it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var files []DownloadedFile
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return files, fmt.Errorf("failed to list gs://%s/%s: %w", bucket, prefix, err)
		}
		if strings.HasSuffix(attrs.Name, "/") || parser.IsTemporaryFile(path.Base(attrs.Name)) {
			continue
		}

		f, err := g.download(ctx, bucket, attrs)
		if err != nil {
			log.Printf("DownloadFolder: skipping object=%s: %v", attrs.Name, err)
			continue
		}
		files = append(files, f)
	}

	log.Printf("DownloadFolder: downloaded=%d", len(files))
	return files, nil
}

func (g *GCSSource) download(ctx context.Context, bucket string, attrs *storage.ObjectAttrs) (DownloadedFile, error) {
	rel := filepath.FromSlash(attrs.Name)
	local := filepath.Join(g.dir, rel)
	if !strings.HasPrefix(local, filepath.Clean(g.dir)+string(os.PathSeparator)) {
		return DownloadedFile{}, fmt.Errorf("object name escapes download directory")
	}
	if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return DownloadedFile{}, err
	}

	r, err := g.client.Bucket(bucket).Object(attrs.Name).NewReader(ctx)
	if err != nil {
		return DownloadedFile{}, fmt.Errorf("failed to open object: %w", err)
	}
	defer r.Close()

	out, err := os.Create(local)
	if err != nil {
		return DownloadedFile{}, err
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(local)
		return DownloadedFile{}, fmt.Errorf("failed to download object: %w", err)
	}

	contentType := attrs.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = classify.DetectMIME(local)
	}

	return DownloadedFile{Name: attrs.Name, LocalPath: local, ContentType: contentType, Size: n}, nil
}

// WriteObject stores data at object unless it already exists, so
// re-running a batch never clobbers earlier output.
func (g *GCSSource) WriteObject(ctx context.Context, bucket, object string, data []byte) error {
	w := g.client.Bucket(bucket).Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			log.Printf("WriteObject: object=%s already exists, skipping", object)
			return nil
		}
		return fmt.Errorf("failed to finalize gs://%s/%s: %w", bucket, object, err)
	}
	return nil
}

// Close releases the storage client. Downloaded files are left in place.
func (g *GCSSource) Close() error {
	return g.client.Close()
}
