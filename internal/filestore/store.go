// Package filestore manages per-job uploaded files on the local filesystem.
// Files live under <root>/<job_id>/<file_key><ext>, outside any public web
// root; the client-declared name is kept only as display metadata.
package filestore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sensei-lms/dataport/internal/models"
)

// ErrUnexpectedFileType is returned when an upload fails the allow-list
// for its file key (extension, declared type, or sniffed content).
var ErrUnexpectedFileType = errors.New("unexpected file type")

// Rule is the upload allow-list for one file key.
type Rule struct {
	Extensions   []string
	ContentTypes []string
}

func (r Rule) allowsExtension(ext string) bool {
	for _, allowed := range r.Extensions {
		if strings.EqualFold(allowed, ext) {
			return true
		}
	}
	return false
}

func (r Rule) allowsContentType(mediaType string) bool {
	for _, allowed := range r.ContentTypes {
		if strings.EqualFold(allowed, mediaType) {
			return true
		}
	}
	return false
}

// Store persists job files on the local filesystem.
type Store struct {
	root string
}

// New creates a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Save stores the uploaded stream for a job's file key, overwriting any
// previous file for that key. The upload is validated against the rule
// three ways: the declared filename's extension, the client-declared
// content type when present, and the sniffed leading bytes. The declared
// type alone is never trusted.
func (s *Store) Save(jobID, fileKey, declaredName, declaredType string, r io.Reader, rule Rule) (*models.FileMetadata, error) {
	ext := strings.ToLower(filepath.Ext(declaredName))
	if !rule.allowsExtension(ext) {
		return nil, fmt.Errorf("%w: extension %q is not accepted for %s", ErrUnexpectedFileType, ext, fileKey)
	}

	if declaredType != "" {
		mediaType, _, err := mime.ParseMediaType(declaredType)
		if err != nil || !rule.allowsContentType(mediaType) {
			return nil, fmt.Errorf("%w: content type %q is not accepted for %s", ErrUnexpectedFileType, declaredType, fileKey)
		}
	}

	// Sniff the leading bytes so a binary payload with an allowed
	// extension is still rejected.
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	head = head[:n]
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	if !rule.allowsContentType(sniffed) {
		return nil, fmt.Errorf("%w: file content looks like %s", ErrUnexpectedFileType, sniffed)
	}

	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating job directory: %w", err)
	}

	// Release any previously stored file for this key, whatever its
	// extension was.
	if _, err := s.removeKey(jobID, fileKey); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, fileKey+ext)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return &models.FileMetadata{
		Name: filepath.Base(declaredName),
		Path: path,
		Size: size,
	}, nil
}

// Remove deletes the stored file for a job's file key, reporting whether
// one existed. Removing a missing key is a no-op, never an error.
func (s *Store) Remove(jobID, fileKey string) (bool, error) {
	return s.removeKey(jobID, fileKey)
}

func (s *Store) removeKey(jobID, fileKey string) (bool, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, jobID, fileKey+".*"))
	if err != nil {
		return false, fmt.Errorf("locating stored file: %w", err)
	}

	removed := false
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("deleting stored file: %w", err)
		}
		removed = true
	}
	return removed, nil
}

// RemoveJob deletes every file stored for the job.
func (s *Store) RemoveJob(jobID string) error {
	if err := os.RemoveAll(filepath.Join(s.root, jobID)); err != nil {
		return fmt.Errorf("deleting job files: %w", err)
	}
	return nil
}
