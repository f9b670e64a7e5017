// Package certstore reads the local certificate store and exports entries in
// the PFX form the remote service accepts.
package certstore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"software.sslmate.com/src/go-pkcs12"
)

// ErrNotFound is returned when no certificate matches a thumbprint.
var ErrNotFound = errors.New("certificate not found in local store")

// ExportError is returned when a certificate cannot be exported, typically
// because the store has no private key for it.
type ExportError struct {
	Thumbprint string
	Reason     string
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("cannot export certificate %s: %s", e.Thumbprint, e.Reason)
}

// Entry is one certificate in the store, with its private key when present.
type Entry struct {
	Thumbprint  string
	Subject     string
	Certificate *x509.Certificate
	PrivateKey  crypto.PrivateKey
	Path        string
}

// Store looks certificates up by thumbprint and exports them.
type Store interface {
	Find(thumbprint string) (*Entry, error)
	Export(thumbprint string) ([]byte, error)
}

// DirStore is a directory of PEM files, each holding one certificate and
// optionally its private key.
type DirStore struct {
	Dir string
}

var _ Store = (*DirStore)(nil)

// Thumbprint returns the uppercase hex SHA-1 of the certificate's DER bytes.
func Thumbprint(cert *x509.Certificate) string {
	sum := sha1.Sum(cert.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// NormalizeThumbprint uppercases a thumbprint and strips separators.
func NormalizeThumbprint(tp string) string {
	r := strings.NewReplacer(" ", "", ":", "", "-", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(tp)))
}

// Entries loads every certificate in the directory, sorted by thumbprint.
func (s *DirStore) Entries() ([]*Entry, error) {
	files, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("certstore: read %s: %w", s.Dir, err)
	}
	var out []*Entry
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(f.Name())) {
		case ".pem", ".crt", ".cer":
		default:
			continue
		}
		path := filepath.Join(s.Dir, f.Name())
		e, err := loadPEM(path)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Thumbprint < out[j].Thumbprint })
	return out, nil
}

// Find returns the entry with the given thumbprint, compared case-insensitively.
func (s *DirStore) Find(thumbprint string) (*Entry, error) {
	want := NormalizeThumbprint(thumbprint)
	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Thumbprint == want {
			return e, nil
		}
	}
	return nil, fmt.Errorf("certstore: %s: %w", want, ErrNotFound)
}

// Export encodes the certificate and its private key as a PFX with an empty
// password.
func (s *DirStore) Export(thumbprint string) ([]byte, error) {
	e, err := s.Find(thumbprint)
	if err != nil {
		return nil, err
	}
	return ExportEntry(e)
}

// ExportEntry encodes e as a PFX with an empty password.
func ExportEntry(e *Entry) ([]byte, error) {
	if e.PrivateKey == nil {
		return nil, &ExportError{Thumbprint: e.Thumbprint, Reason: "no private key available"}
	}
	pfx, err := pkcs12.Modern.Encode(e.PrivateKey, e.Certificate, nil, "")
	if err != nil {
		return nil, &ExportError{Thumbprint: e.Thumbprint, Reason: err.Error()}
	}
	return pfx, nil
}

// loadPEM parses the first certificate and any private key in path. Files
// without a certificate are skipped.
func loadPEM(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("certstore: read %s: %w", path, err)
	}

	var (
		cert *x509.Certificate
		key  crypto.PrivateKey
	)
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			if cert != nil {
				continue
			}
			cert, err = x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("certstore: parse certificate in %s: %w", path, err)
			}
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			key, err = parsePrivateKey(block)
			if err != nil {
				return nil, fmt.Errorf("certstore: parse private key in %s: %w", path, err)
			}
		}
	}
	if cert == nil {
		return nil, nil
	}
	return &Entry{
		Thumbprint:  Thumbprint(cert),
		Subject:     cert.Subject.String(),
		Certificate: cert,
		PrivateKey:  key,
		Path:        path,
	}, nil
}

func parsePrivateKey(block *pem.Block) (crypto.PrivateKey, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	switch key.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey:
		return key, nil
	}
	return nil, fmt.Errorf("unsupported private key type %T", key)
}

// MemoryStore holds entries in memory, intended for testing.
type MemoryStore struct {
	entries map[string]*Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store holding entries.
func NewMemoryStore(entries ...*Entry) *MemoryStore {
	m := &MemoryStore{entries: make(map[string]*Entry, len(entries))}
	for _, e := range entries {
		m.entries[NormalizeThumbprint(e.Thumbprint)] = e
	}
	return m
}

func (m *MemoryStore) Find(thumbprint string) (*Entry, error) {
	e, ok := m.entries[NormalizeThumbprint(thumbprint)]
	if !ok {
		return nil, fmt.Errorf("certstore: %s: %w", NormalizeThumbprint(thumbprint), ErrNotFound)
	}
	return e, nil
}

func (m *MemoryStore) Export(thumbprint string) ([]byte, error) {
	e, err := m.Find(thumbprint)
	if err != nil {
		return nil, err
	}
	return ExportEntry(e)
}

// PFXThumbprint decodes a PFX and returns the thumbprint of its certificate.
func PFXThumbprint(pfx []byte, password string) (string, error) {
	_, cert, err := pkcs12.Decode(pfx, password)
	if err != nil {
		return "", fmt.Errorf("certstore: decode pfx: %w", err)
	}
	return Thumbprint(cert), nil
}
