package servicemgmt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/retry"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func testHTTPClient(t *testing.T, server *httptest.Server, cred azcore.TokenCredential) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(HTTPConfig{
		Endpoint:       server.URL,
		SubscriptionID: "sub-1",
		TimeoutSeconds: 5,
		Credential:     cred,
	})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return c
}

type staticCredential struct{ token string }

func (s staticCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: s.token, ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, Delay: time.Millisecond}
}

// ---------------------------------------------------------------------------
// HTTPClient
// ---------------------------------------------------------------------------

func TestNewHTTPClient_RequiresEndpointAndSubscription(t *testing.T) {
	if _, err := NewHTTPClient(HTTPConfig{SubscriptionID: "s"}); err == nil {
		t.Error("expected error for missing endpoint")
	}
	if _, err := NewHTTPClient(HTTPConfig{Endpoint: "http://x"}); err == nil {
		t.Error("expected error for missing subscription")
	}
}

func TestHTTPClient_GetDeploymentBySlot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		want := "/subscriptions/sub-1/services/hostedservices/web/deploymentslots/Production"
		if r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
		if r.Header.Get(requestIDHeader) == "" {
			t.Error("missing request ID header")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(Deployment{
			ServiceName: "web",
			Name:        "web-production",
			Slot:        "Production",
			Status:      DeploymentRunning,
			RoleInstances: []RoleInstance{
				{RoleName: "WebRole", InstanceName: "WebRole_IN_0", InstanceStatus: InstanceReady},
			},
		})
	}))
	defer server.Close()

	c := testHTTPClient(t, server, staticCredential{token: "tok-123"})
	d, err := c.GetDeploymentBySlot(context.Background(), "web", "Production")
	if err != nil {
		t.Fatalf("GetDeploymentBySlot: %v", err)
	}
	if d.Status != DeploymentRunning || len(d.RoleInstances) != 1 {
		t.Errorf("unexpected deployment: %+v", d)
	}
	if !d.AllInstancesReady() {
		t.Error("AllInstancesReady() = false")
	}
}

func TestHTTPClient_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"ResourceNotFound","message":"no such service"}}`))
	}))
	defer server.Close()

	c := testHTTPClient(t, server, nil)
	_, err := c.GetHostedService(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.Code != "ResourceNotFound" || apiErr.Message != "no such service" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestHTTPClient_PlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad label"))
	}))
	defer server.Close()

	c := testHTTPClient(t, server, nil)
	err := c.CreateHostedService(context.Background(), HostedServiceInput{Name: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 400 || apiErr.Message != "bad label" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if Classify(err) != retry.Fatal {
		t.Error("400 should be fatal")
	}
}

func TestHTTPClient_UpgradeSendsMode(t *testing.T) {
	var got UpgradeDeploymentInput
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/deployments/web-prod/upgrade") {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	c := testHTTPClient(t, server, nil)
	err := c.UpgradeDeployment(context.Background(), "web", "web-prod", UpgradeDeploymentInput{
		Mode:       UpgradeModeAuto,
		PackageURL: "https://pkg",
	})
	if err != nil {
		t.Fatalf("UpgradeDeployment: %v", err)
	}
	if got.Mode != UpgradeModeAuto || got.PackageURL != "https://pkg" {
		t.Errorf("request body = %+v", got)
	}
}

func TestHTTPClient_ListLocations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/subscriptions/sub-1/locations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"locations":[{"name":"West US"},{"name":"East Asia"}]}`))
	}))
	defer server.Close()

	c := testHTTPClient(t, server, nil)
	locs, err := c.ListLocations(context.Background())
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(locs) != 2 || locs[0].Name != "West US" {
		t.Errorf("locations = %+v", locs)
	}
}

// ---------------------------------------------------------------------------
// RetryClient
// ---------------------------------------------------------------------------

func TestRetryClient_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"name":"web","status":"Created"}`))
	}))
	defer server.Close()

	c := NewRetryClient(testHTTPClient(t, server, nil), fastPolicy(3))
	hs, err := c.GetHostedService(context.Background(), "web")
	if err != nil {
		t.Fatalf("GetHostedService: %v", err)
	}
	if hs.Name != "web" {
		t.Errorf("name = %q", hs.Name)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestRetryClient_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewRetryClient(testHTTPClient(t, server, nil), fastPolicy(5))
	_, err := c.GetDeploymentBySlot(context.Background(), "web", "Staging")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestRetryClient_Exhausted(t *testing.T) {
	m := NewMemoryClient()
	transient := &APIError{StatusCode: 503, Message: "busy"}
	m.FailNext("ListLocations", transient, transient, transient)

	c := NewRetryClient(m, fastPolicy(3))
	_, err := c.ListLocations(context.Background())
	var exhausted *retry.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *retry.ExhaustedError", err)
	}
	if m.CallCount("ListLocations") != 3 {
		t.Errorf("calls = %d, want 3", m.CallCount("ListLocations"))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Class
	}{
		{"not found sentinel", ErrNotFound, retry.Fatal},
		{"404", &APIError{StatusCode: 404}, retry.Fatal},
		{"409", &APIError{StatusCode: 409}, retry.Fatal},
		{"429", &APIError{StatusCode: 429}, retry.Transient},
		{"500", &APIError{StatusCode: 500}, retry.Transient},
		{"503", &APIError{StatusCode: 503}, retry.Transient},
		{"cancelled", context.Canceled, retry.Fatal},
		{"plain", errors.New("boom"), retry.Fatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// MemoryClient
// ---------------------------------------------------------------------------

func TestMemoryClient_ScriptedRollout(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClient()
	m.SeedService(HostedService{Name: "web"})
	m.ScriptRollout("web", SlotProduction,
		Deployment{Status: DeploymentDeploying},
		Deployment{Status: DeploymentRunning, RoleInstances: []RoleInstance{{InstanceName: "a", InstanceStatus: InstanceReady}}},
	)

	if _, err := m.GetDeploymentBySlot(ctx, "web", SlotProduction); !IsNotFound(err) {
		t.Fatalf("before create: err = %v, want not found", err)
	}
	if err := m.CreateDeployment(ctx, "web", SlotProduction, CreateDeploymentInput{Name: "d1", StartDeployment: true}); err != nil {
		t.Fatalf("CreateDeployment: %v", err)
	}

	want := []string{DeploymentDeploying, DeploymentRunning, DeploymentRunning}
	for i, status := range want {
		d, err := m.GetDeploymentBySlot(ctx, "web", SlotProduction)
		if err != nil {
			t.Fatalf("poll %d: %v", i, err)
		}
		if d.Status != status {
			t.Errorf("poll %d: status = %q, want %q", i, d.Status, status)
		}
		if d.Name != "d1" {
			t.Errorf("poll %d: name = %q, want d1", i, d.Name)
		}
	}
}

func TestMemoryClient_CertificateDelay(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClient()
	m.CertificateDelay = 2
	m.Thumbprint = func(CertificateFile) (string, error) { return "ABC", nil }
	m.SeedService(HostedService{Name: "web"})

	if err := m.AddCertificate(ctx, "web", CertificateFile{Data: []byte("pfx")}); err != nil {
		t.Fatalf("AddCertificate: %v", err)
	}
	for i := 0; i < 2; i++ {
		certs, _ := m.ListCertificates(ctx, "web")
		if len(certs) != 0 {
			t.Fatalf("list %d: certificate visible too early", i)
		}
	}
	certs, _ := m.ListCertificates(ctx, "web")
	if len(certs) != 1 || certs[0].Thumbprint != "ABC" {
		t.Errorf("certificates = %+v", certs)
	}
}

func TestMemoryClient_StorageDelay(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryClient()
	m.StorageDelay = 1
	if err := m.CreateStorageAccount(ctx, StorageAccountInput{Name: "acct"}); err != nil {
		t.Fatalf("CreateStorageAccount: %v", err)
	}
	sa, _ := m.GetStorageAccount(ctx, "acct")
	if sa.Status == StorageCreated {
		t.Error("first poll should still be provisioning")
	}
	sa, _ = m.GetStorageAccount(ctx, "acct")
	if sa.Status != StorageCreated {
		t.Errorf("status = %q, want %q", sa.Status, StorageCreated)
	}
}
