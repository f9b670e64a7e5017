package certstore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"software.sslmate.com/src/go-pkcs12"
)

// selfSigned creates a throwaway certificate and key.
func selfSigned(t *testing.T, cn string) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert, key
}

func writePEM(t *testing.T, dir, name string, cert *x509.Certificate, key *ecdsa.PrivateKey) {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	if key != nil {
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			t.Fatalf("marshal key: %v", err)
		}
		data = append(data, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})...)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirStore_FindCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	cert, key := selfSigned(t, "web")
	writePEM(t, dir, "web.pem", cert, key)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := &DirStore{Dir: dir}
	tp := Thumbprint(cert)
	e, err := s.Find(strings.ToLower(tp))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if e.Thumbprint != tp || e.PrivateKey == nil {
		t.Errorf("entry = %+v", e)
	}
}

func TestDirStore_FindMissing(t *testing.T) {
	s := &DirStore{Dir: t.TempDir()}
	if _, err := s.Find("ABCDEF"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDirStore_ExportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cert, key := selfSigned(t, "api")
	writePEM(t, dir, "api.crt", cert, key)

	s := &DirStore{Dir: dir}
	pfx, err := s.Export(Thumbprint(cert))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	gotKey, gotCert, err := pkcs12.Decode(pfx, "")
	if err != nil {
		t.Fatalf("pkcs12.Decode: %v", err)
	}
	if Thumbprint(gotCert) != Thumbprint(cert) {
		t.Error("exported certificate does not match")
	}
	if _, ok := gotKey.(*ecdsa.PrivateKey); !ok {
		t.Errorf("exported key type = %T", gotKey)
	}
}

func TestDirStore_ExportWithoutKey(t *testing.T) {
	dir := t.TempDir()
	cert, _ := selfSigned(t, "public-only")
	writePEM(t, dir, "public.pem", cert, nil)

	s := &DirStore{Dir: dir}
	_, err := s.Export(Thumbprint(cert))
	var exportErr *ExportError
	if !errors.As(err, &exportErr) {
		t.Fatalf("err = %v, want *ExportError", err)
	}
	if exportErr.Thumbprint != Thumbprint(cert) {
		t.Errorf("thumbprint = %q", exportErr.Thumbprint)
	}
}

func TestNormalizeThumbprint(t *testing.T) {
	if got := NormalizeThumbprint(" ab:cd-ef 01 "); got != "ABCDEF01" {
		t.Errorf("NormalizeThumbprint = %q", got)
	}
}

func TestMemoryStore(t *testing.T) {
	cert, key := selfSigned(t, "mem")
	withKey := &Entry{Thumbprint: Thumbprint(cert), Certificate: cert, PrivateKey: key}
	s := NewMemoryStore(withKey)

	if _, err := s.Export(strings.ToLower(withKey.Thumbprint)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := s.Find("0000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
