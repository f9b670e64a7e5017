package servicemgmt

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type slotKey struct {
	service string
	slot    string
}

type pendingCertificate struct {
	cert      Certificate
	remaining int
}

type memoryStorage struct {
	account   StorageAccount
	remaining int
}

// MemoryClient is an in-memory Client intended for tests. It records every
// call, can script the snapshots a rollout goes through, and can delay the
// visibility of uploaded certificates and new storage accounts.
type MemoryClient struct {
	mu sync.Mutex

	services     map[string]*HostedService
	deployments  map[slotKey]*Deployment
	rollouts     map[slotKey][]Deployment
	active       map[slotKey][]Deployment
	certificates map[string][]Certificate
	pending      map[string][]pendingCertificate
	storage      map[string]*memoryStorage
	keys         map[string]StorageKeys
	locations    []Location
	faults       map[string][]error
	calls        []string

	// CertificateDelay is the number of ListCertificates calls after an
	// upload during which the new certificate is not yet listed.
	CertificateDelay int
	// StorageDelay is the number of GetStorageAccount calls after creation
	// that still report the account as provisioning.
	StorageDelay int
	// Thumbprint extracts the thumbprint of an uploaded certificate. When
	// nil, uploads are recorded under a placeholder thumbprint.
	Thumbprint func(CertificateFile) (string, error)
}

var _ Client = (*MemoryClient)(nil)

// NewMemoryClient returns an empty client offering a single location.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		services:     make(map[string]*HostedService),
		deployments:  make(map[slotKey]*Deployment),
		rollouts:     make(map[slotKey][]Deployment),
		active:       make(map[slotKey][]Deployment),
		certificates: make(map[string][]Certificate),
		pending:      make(map[string][]pendingCertificate),
		storage:      make(map[string]*memoryStorage),
		keys:         make(map[string]StorageKeys),
		locations:    []Location{{Name: "North Europe", DisplayName: "North Europe"}},
		faults:       make(map[string][]error),
	}
}

// ---------------------------------------------------------------------------
// Test setup helpers
// ---------------------------------------------------------------------------

// SeedService registers an existing hosted service.
func (m *MemoryClient) SeedService(hs HostedService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[hs.Name] = &hs
}

// SeedDeployment registers an existing deployment.
func (m *MemoryClient) SeedDeployment(d Deployment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployments[slotKey{d.ServiceName, d.Slot}] = &d
}

// SeedCertificate registers a certificate as already uploaded.
func (m *MemoryClient) SeedCertificate(service, thumbprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.certificates[service] = append(m.certificates[service], Certificate{Thumbprint: thumbprint, ThumbprintAlgorithm: "sha1"})
}

// SeedStorageAccount registers an existing, fully provisioned storage account.
func (m *MemoryClient) SeedStorageAccount(sa StorageAccount, keys StorageKeys) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sa.Status == "" {
		sa.Status = StorageCreated
	}
	m.storage[sa.Name] = &memoryStorage{account: sa}
	m.keys[sa.Name] = keys
}

// SetLocations replaces the location list.
func (m *MemoryClient) SetLocations(locs ...Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = locs
}

// ScriptRollout queues the snapshots GetDeploymentBySlot reports after the
// next create or upgrade in the slot. The final snapshot repeats.
func (m *MemoryClient) ScriptRollout(service, slot string, snapshots ...Deployment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollouts[slotKey{service, slot}] = snapshots
}

// FailNext makes the next len(errs) calls to method fail with errs in order.
func (m *MemoryClient) FailNext(method string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[method] = append(m.faults[method], errs...)
}

// Calls returns every recorded call as "Method arg..." in call order.
func (m *MemoryClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times method was called.
func (m *MemoryClient) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == method || strings.HasPrefix(c, method+" ") {
			n++
		}
	}
	return n
}

// Deployment returns the stored deployment in a slot, if any.
func (m *MemoryClient) Deployment(service, slot string) (Deployment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deployments[slotKey{service, slot}]
	if !ok {
		return Deployment{}, false
	}
	return cloneDeployment(d), true
}

// record logs the call and returns any injected fault. Callers hold m.mu.
func (m *MemoryClient) record(method string, args ...string) error {
	m.calls = append(m.calls, strings.TrimSpace(method+" "+strings.Join(args, " ")))
	if q := m.faults[method]; len(q) > 0 {
		m.faults[method] = q[1:]
		return q[0]
	}
	return nil
}

func cloneDeployment(d *Deployment) Deployment {
	out := *d
	out.RoleInstances = append([]RoleInstance(nil), d.RoleInstances...)
	return out
}

// ---------------------------------------------------------------------------
// Client implementation
// ---------------------------------------------------------------------------

func (m *MemoryClient) GetHostedService(_ context.Context, name string) (*HostedService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetHostedService", name); err != nil {
		return nil, err
	}
	hs, ok := m.services[name]
	if !ok {
		return nil, fmt.Errorf("hosted service %q: %w", name, ErrNotFound)
	}
	out := *hs
	return &out, nil
}

func (m *MemoryClient) CreateHostedService(_ context.Context, in HostedServiceInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateHostedService", in.Name); err != nil {
		return err
	}
	if _, ok := m.services[in.Name]; ok {
		return &APIError{StatusCode: 409, Code: "ConflictError", Message: fmt.Sprintf("hosted service %q already exists", in.Name)}
	}
	m.services[in.Name] = &HostedService{
		Name:          in.Name,
		Label:         in.Label,
		Description:   in.Description,
		Location:      in.Location,
		AffinityGroup: in.AffinityGroup,
		Status:        "Created",
		URL:           fmt.Sprintf("https://%s.cloudapp.net/", in.Name),
	}
	return nil
}

func (m *MemoryClient) GetDeploymentBySlot(_ context.Context, service, slot string) (*Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetDeploymentBySlot", service, slot); err != nil {
		return nil, err
	}
	key := slotKey{service, slot}
	d, ok := m.deployments[key]
	if !ok {
		return nil, fmt.Errorf("deployment in %s/%s: %w", service, slot, ErrNotFound)
	}
	if snaps := m.active[key]; len(snaps) > 0 {
		snap := snaps[0]
		if len(snaps) > 1 {
			m.active[key] = snaps[1:]
		}
		d.Status = snap.Status
		d.RoleInstances = append([]RoleInstance(nil), snap.RoleInstances...)
	}
	out := cloneDeployment(d)
	return &out, nil
}

// arm starts the scripted rollout for key, if one is queued. Callers hold m.mu.
func (m *MemoryClient) arm(key slotKey) {
	if snaps, ok := m.rollouts[key]; ok {
		m.active[key] = snaps
		delete(m.rollouts, key)
	} else {
		delete(m.active, key)
	}
}

func (m *MemoryClient) CreateDeployment(_ context.Context, service, slot string, in CreateDeploymentInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateDeployment", service, slot); err != nil {
		return err
	}
	if _, ok := m.services[service]; !ok {
		return fmt.Errorf("hosted service %q: %w", service, ErrNotFound)
	}
	key := slotKey{service, slot}
	if _, ok := m.deployments[key]; ok {
		return &APIError{StatusCode: 409, Code: "ConflictError", Message: fmt.Sprintf("slot %s of %q is occupied", slot, service)}
	}
	status := DeploymentSuspended
	if in.StartDeployment {
		status = DeploymentRunning
	}
	m.deployments[key] = &Deployment{
		ServiceName:   service,
		Name:          in.Name,
		Slot:          slot,
		Label:         in.Label,
		Status:        status,
		PackageURL:    in.PackageURL,
		Configuration: in.Configuration,
		URL:           fmt.Sprintf("https://%s.cloudapp.net/", service),
	}
	m.arm(key)
	return nil
}

func (m *MemoryClient) UpgradeDeployment(_ context.Context, service, deploymentName string, in UpgradeDeploymentInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpgradeDeployment", service, deploymentName, string(in.Mode)); err != nil {
		return err
	}
	for key, d := range m.deployments {
		if key.service == service && d.Name == deploymentName {
			d.Label = in.Label
			d.PackageURL = in.PackageURL
			d.Configuration = in.Configuration
			m.arm(key)
			return nil
		}
	}
	return fmt.Errorf("deployment %q of %q: %w", deploymentName, service, ErrNotFound)
}

func (m *MemoryClient) UpdateDeploymentStatus(_ context.Context, service, slot, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdateDeploymentStatus", service, slot, status); err != nil {
		return err
	}
	d, ok := m.deployments[slotKey{service, slot}]
	if !ok {
		return fmt.Errorf("deployment in %s/%s: %w", service, slot, ErrNotFound)
	}
	d.Status = status
	return nil
}

func (m *MemoryClient) DeleteDeployment(_ context.Context, service, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteDeployment", service, slot); err != nil {
		return err
	}
	key := slotKey{service, slot}
	if _, ok := m.deployments[key]; !ok {
		return fmt.Errorf("deployment in %s/%s: %w", service, slot, ErrNotFound)
	}
	delete(m.deployments, key)
	delete(m.active, key)
	return nil
}

func (m *MemoryClient) ListCertificates(_ context.Context, service string) ([]Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListCertificates", service); err != nil {
		return nil, err
	}
	var still []pendingCertificate
	for _, p := range m.pending[service] {
		if p.remaining <= 0 {
			m.certificates[service] = append(m.certificates[service], p.cert)
			continue
		}
		p.remaining--
		still = append(still, p)
	}
	m.pending[service] = still

	out := append([]Certificate(nil), m.certificates[service]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Thumbprint < out[j].Thumbprint })
	return out, nil
}

func (m *MemoryClient) AddCertificate(_ context.Context, service string, cert CertificateFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	thumbprint := fmt.Sprintf("UPLOAD%d", len(m.calls))
	if m.Thumbprint != nil {
		tp, err := m.Thumbprint(cert)
		if err != nil {
			_ = m.record("AddCertificate", service)
			return &APIError{StatusCode: 400, Code: "BadRequest", Message: err.Error()}
		}
		thumbprint = tp
	}
	if err := m.record("AddCertificate", service, thumbprint); err != nil {
		return err
	}
	if _, ok := m.services[service]; !ok {
		return fmt.Errorf("hosted service %q: %w", service, ErrNotFound)
	}
	m.pending[service] = append(m.pending[service], pendingCertificate{
		cert:      Certificate{Thumbprint: thumbprint, ThumbprintAlgorithm: "sha1"},
		remaining: m.CertificateDelay,
	})
	return nil
}

func (m *MemoryClient) GetStorageAccount(_ context.Context, name string) (*StorageAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetStorageAccount", name); err != nil {
		return nil, err
	}
	s, ok := m.storage[name]
	if !ok {
		return nil, fmt.Errorf("storage account %q: %w", name, ErrNotFound)
	}
	if s.remaining > 0 {
		s.remaining--
	} else {
		s.account.Status = StorageCreated
	}
	out := s.account
	return &out, nil
}

func (m *MemoryClient) CreateStorageAccount(_ context.Context, in StorageAccountInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateStorageAccount", in.Name); err != nil {
		return err
	}
	if _, ok := m.storage[in.Name]; ok {
		return &APIError{StatusCode: 409, Code: "ConflictError", Message: fmt.Sprintf("storage account %q already exists", in.Name)}
	}
	m.storage[in.Name] = &memoryStorage{
		account: StorageAccount{
			Name:          in.Name,
			Label:         in.Label,
			Location:      in.Location,
			AffinityGroup: in.AffinityGroup,
			Status:        "Creating",
			Endpoints:     []string{fmt.Sprintf("https://%s.blob.core.windows.net/", in.Name)},
		},
		remaining: m.StorageDelay,
	}
	m.keys[in.Name] = StorageKeys{Primary: "primary-" + in.Name, Secondary: "secondary-" + in.Name}
	return nil
}

func (m *MemoryClient) GetStorageKeys(_ context.Context, name string) (*StorageKeys, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetStorageKeys", name); err != nil {
		return nil, err
	}
	k, ok := m.keys[name]
	if !ok {
		return nil, fmt.Errorf("storage account %q: %w", name, ErrNotFound)
	}
	return &k, nil
}

func (m *MemoryClient) ListLocations(_ context.Context) ([]Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListLocations"); err != nil {
		return nil, err
	}
	return append([]Location(nil), m.locations...), nil
}
