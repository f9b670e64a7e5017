package publish

import (
	"context"
	"fmt"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/certstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/poller"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/progress"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/project"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
)

// CertificateSync makes sure every certificate a project references is
// uploaded to its hosted service before a deployment uses it.
type CertificateSync struct {
	Client   servicemgmt.Client
	Store    certstore.Store
	Poller   *poller.Poller
	Reporter progress.Reporter
}

// Missing returns the distinct certificates in required that the hosted
// service does not list yet, compared by case-insensitive thumbprint.
func (s *CertificateSync) Missing(ctx context.Context, service string, required []project.CertificateRef) ([]project.CertificateRef, error) {
	remote, err := s.Client.ListCertificates(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("list certificates of %q: %w", service, err)
	}
	have := make(map[string]bool, len(remote))
	for _, c := range remote {
		have[certstore.NormalizeThumbprint(c.Thumbprint)] = true
	}

	var missing []project.CertificateRef
	for _, c := range required {
		tp := certstore.NormalizeThumbprint(c.Thumbprint)
		if have[tp] {
			continue
		}
		have[tp] = true
		missing = append(missing, project.CertificateRef{Name: c.Name, Thumbprint: tp})
	}
	return missing, nil
}

// Sync uploads each missing certificate and waits until the service lists
// it, one certificate at a time. It returns the uploaded thumbprints; when
// everything is already present nothing is uploaded.
func (s *CertificateSync) Sync(ctx context.Context, service string, required []project.CertificateRef) ([]string, error) {
	missing, err := s.Missing(ctx, service, required)
	if err != nil {
		return nil, err
	}

	var uploaded []string
	for _, c := range missing {
		pfx, err := s.Store.Export(c.Thumbprint)
		if err != nil {
			return uploaded, fmt.Errorf("certificate %q: %w", c.Name, err)
		}
		progress.Info(ctx, s.Reporter, fmt.Sprintf("uploading certificate %s (%s)", c.Name, c.Thumbprint))
		if err := s.Client.AddCertificate(ctx, service, servicemgmt.CertificateFile{Data: pfx, Password: "", Format: "pfx"}); err != nil {
			return uploaded, fmt.Errorf("upload certificate %q: %w", c.Name, err)
		}
		if err := s.waitVisible(ctx, service, c.Thumbprint); err != nil {
			return uploaded, err
		}
		uploaded = append(uploaded, c.Thumbprint)
	}
	return uploaded, nil
}

func (s *CertificateSync) waitVisible(ctx context.Context, service, thumbprint string) error {
	p := s.Poller
	if p == nil {
		p = &poller.Poller{Interval: poller.CertificateInterval}
	}
	_, err := poller.Until(ctx, p, "certificate "+thumbprint, func(ctx context.Context) (bool, error) {
		certs, err := s.Client.ListCertificates(ctx, service)
		if err != nil {
			return false, fmt.Errorf("list certificates of %q: %w", service, err)
		}
		for _, c := range certs {
			if certstore.NormalizeThumbprint(c.Thumbprint) == thumbprint {
				return true, nil
			}
		}
		return false, nil
	}, func(listed bool) bool { return listed })
	return err
}
