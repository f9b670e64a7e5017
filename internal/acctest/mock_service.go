package acctest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
)

// MockServiceServer serves the service-management REST API over an
// in-memory client per subscription.
type MockServiceServer struct {
	mu      sync.Mutex
	clients map[string]*servicemgmt.MemoryClient
	Server  *httptest.Server
}

// NewMockServiceServer creates a new mock service-management server and
// returns it. The server is closed when the test finishes.
func NewMockServiceServer(t *testing.T) *MockServiceServer {
	t.Helper()

	m := &MockServiceServer{
		clients: make(map[string]*servicemgmt.MemoryClient),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/subscriptions/", m.handleSubscription)

	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Server.Close)

	return m
}

// URL returns the base URL of the mock server.
func (m *MockServiceServer) URL() string {
	return m.Server.URL
}

// Client returns the in-memory client backing subscriptionID, creating it
// on first use. Tests use it to seed state and inspect calls.
func (m *MockServiceServer) Client(subscriptionID string) *servicemgmt.MemoryClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[subscriptionID]
	if !ok {
		c = servicemgmt.NewMemoryClient()
		m.clients[subscriptionID] = c
	}
	return c
}

func (m *MockServiceServer) handleSubscription(w http.ResponseWriter, r *http.Request) {
	// Parse: /subscriptions/{sub}/locations
	//        /subscriptions/{sub}/services/{kind}[/...]
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/subscriptions/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		writeAPIError(w, http.StatusNotFound, "ResourceNotFound", "unknown route")
		return
	}

	c := m.Client(parts[0])
	ctx := r.Context()

	if parts[1] == "locations" && len(parts) == 2 {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		locs, err := c.ListLocations(ctx)
		respond(w, map[string]interface{}{"locations": locs}, err)
		return
	}

	if parts[1] != "services" || len(parts) < 3 {
		writeAPIError(w, http.StatusNotFound, "ResourceNotFound", "unknown route")
		return
	}

	switch parts[2] {
	case "hostedservices":
		m.handleHostedServices(ctx, w, r, c, parts[3:])
	case "storageservices":
		m.handleStorageServices(ctx, w, r, c, parts[3:])
	default:
		writeAPIError(w, http.StatusNotFound, "ResourceNotFound", "unknown route")
	}
}

func (m *MockServiceServer) handleHostedServices(ctx context.Context, w http.ResponseWriter, r *http.Request, c *servicemgmt.MemoryClient, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		// /hostedservices
		var in servicemgmt.HostedServiceInput
		if !decode(w, r, &in) {
			return
		}
		respond(w, nil, c.CreateHostedService(ctx, in))

	case len(parts) == 1 && r.Method == http.MethodGet:
		// /hostedservices/{name}
		hs, err := c.GetHostedService(ctx, parts[0])
		respond(w, hs, err)

	case len(parts) == 2 && parts[1] == "certificates":
		// /hostedservices/{name}/certificates
		switch r.Method {
		case http.MethodGet:
			certs, err := c.ListCertificates(ctx, parts[0])
			if certs == nil {
				certs = []servicemgmt.Certificate{}
			}
			respond(w, map[string]interface{}{"certificates": certs}, err)
		case http.MethodPost:
			var in servicemgmt.CertificateFile
			if !decode(w, r, &in) {
				return
			}
			respond(w, nil, c.AddCertificate(ctx, parts[0], in))
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}

	case len(parts) == 3 && parts[1] == "deploymentslots":
		// /hostedservices/{name}/deploymentslots/{slot}
		service, slot := parts[0], parts[2]
		switch r.Method {
		case http.MethodGet:
			d, err := c.GetDeploymentBySlot(ctx, service, slot)
			respond(w, d, err)
		case http.MethodPost:
			var in servicemgmt.CreateDeploymentInput
			if !decode(w, r, &in) {
				return
			}
			respond(w, nil, c.CreateDeployment(ctx, service, slot, in))
		case http.MethodDelete:
			respond(w, nil, c.DeleteDeployment(ctx, service, slot))
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}

	case len(parts) == 4 && parts[1] == "deploymentslots" && parts[3] == "status" && r.Method == http.MethodPut:
		// /hostedservices/{name}/deploymentslots/{slot}/status
		var in struct {
			Status string `json:"status"`
		}
		if !decode(w, r, &in) {
			return
		}
		respond(w, nil, c.UpdateDeploymentStatus(ctx, parts[0], parts[2], in.Status))

	case len(parts) == 4 && parts[1] == "deployments" && parts[3] == "upgrade" && r.Method == http.MethodPost:
		// /hostedservices/{name}/deployments/{deployment}/upgrade
		var in servicemgmt.UpgradeDeploymentInput
		if !decode(w, r, &in) {
			return
		}
		respond(w, nil, c.UpgradeDeployment(ctx, parts[0], parts[2], in))

	default:
		writeAPIError(w, http.StatusNotFound, "ResourceNotFound", "unknown route")
	}
}

func (m *MockServiceServer) handleStorageServices(ctx context.Context, w http.ResponseWriter, r *http.Request, c *servicemgmt.MemoryClient, parts []string) {
	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		var in servicemgmt.StorageAccountInput
		if !decode(w, r, &in) {
			return
		}
		respond(w, nil, c.CreateStorageAccount(ctx, in))

	case len(parts) == 1 && r.Method == http.MethodGet:
		sa, err := c.GetStorageAccount(ctx, parts[0])
		respond(w, sa, err)

	case len(parts) == 2 && parts[1] == "keys" && r.Method == http.MethodGet:
		keys, err := c.GetStorageKeys(ctx, parts[0])
		respond(w, keys, err)

	default:
		writeAPIError(w, http.StatusNotFound, "ResourceNotFound", "unknown route")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIError(w, http.StatusBadRequest, "BadRequest", "Invalid JSON body")
		return false
	}
	return true
}

// respond writes body as JSON, or maps err onto the status code a real
// endpoint would return.
func respond(w http.ResponseWriter, body interface{}, err error) {
	if err != nil {
		var apiErr *servicemgmt.APIError
		switch {
		case errors.As(err, &apiErr):
			writeAPIError(w, apiErr.StatusCode, apiErr.Code, apiErr.Message)
		case errors.Is(err, servicemgmt.ErrNotFound):
			writeAPIError(w, http.StatusNotFound, "ResourceNotFound", err.Error())
		default:
			writeAPIError(w, http.StatusInternalServerError, "InternalError", err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if body == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	json.NewEncoder(w).Encode(body)
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
