package servicemgmt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/google/uuid"
)

const (
	defaultTimeoutSeconds = 60
	defaultTokenScope     = "https://management.core.windows.net/.default"
	apiVersion            = "2024-11-01"
	requestIDHeader       = "x-ms-client-request-id"
)

// HTTPConfig holds configuration for constructing an HTTPClient.
type HTTPConfig struct {
	Endpoint       string
	SubscriptionID string
	TimeoutSeconds int
	// Credential, when set, authenticates every request with a bearer token.
	Credential azcore.TokenCredential
	TokenScope string
}

// HTTPClient is a JSON client for the service-management REST endpoint.
// It makes exactly one attempt per call; wrap it with NewRetryClient for
// retries.
type HTTPClient struct {
	httpClient   *http.Client
	baseURL      string
	subscription string
	credential   azcore.TokenCredential
	scope        string
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client for one subscription.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("servicemgmt: endpoint is required")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("servicemgmt: subscription ID is required")
	}
	timeoutSec := cfg.TimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = defaultTimeoutSeconds
	}
	scope := cfg.TokenScope
	if scope == "" {
		scope = defaultTokenScope
	}
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
		baseURL:      strings.TrimRight(cfg.Endpoint, "/"),
		subscription: cfg.SubscriptionID,
		credential:   cfg.Credential,
		scope:        scope,
	}, nil
}

func (c *HTTPClient) servicesPath(parts ...string) string {
	p := "/subscriptions/" + url.PathEscape(c.subscription) + "/services"
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// do performs a single JSON request. body is encoded as the request body
// (nil for none) and result is decoded from a 2xx response (nil to discard).
func (c *HTTPClient) do(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("servicemgmt: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?api-version="+apiVersion, bodyReader)
	if err != nil {
		return fmt.Errorf("servicemgmt: create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.credential != nil {
		tok, err := c.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{c.scope}})
		if err != nil {
			return fmt.Errorf("servicemgmt: acquire token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("servicemgmt: %s %s: %w", method, path, err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("servicemgmt: read response body: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("servicemgmt: decode response: %w", err)
			}
		}
		return nil
	}
	return parseAPIError(resp.StatusCode, requestID, respBody)
}

// parseAPIError accepts both {"code":..,"message":..} and the wrapped
// {"error":{"code":..,"message":..}} shapes.
func parseAPIError(statusCode int, requestID string, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, RequestID: requestID}

	var nested struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		apiErr.Code = nested.Error.Code
		apiErr.Message = nested.Error.Message
		return apiErr
	}
	if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(statusCode)
		}
	}
	return apiErr
}

func (c *HTTPClient) GetHostedService(ctx context.Context, name string) (*HostedService, error) {
	var hs HostedService
	if err := c.do(ctx, http.MethodGet, c.servicesPath("hostedservices", name), nil, &hs); err != nil {
		return nil, err
	}
	return &hs, nil
}

func (c *HTTPClient) CreateHostedService(ctx context.Context, in HostedServiceInput) error {
	return c.do(ctx, http.MethodPost, c.servicesPath("hostedservices"), in, nil)
}

func (c *HTTPClient) GetDeploymentBySlot(ctx context.Context, service, slot string) (*Deployment, error) {
	var d Deployment
	if err := c.do(ctx, http.MethodGet, c.servicesPath("hostedservices", service, "deploymentslots", slot), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *HTTPClient) CreateDeployment(ctx context.Context, service, slot string, in CreateDeploymentInput) error {
	return c.do(ctx, http.MethodPost, c.servicesPath("hostedservices", service, "deploymentslots", slot), in, nil)
}

func (c *HTTPClient) UpgradeDeployment(ctx context.Context, service, deploymentName string, in UpgradeDeploymentInput) error {
	return c.do(ctx, http.MethodPost, c.servicesPath("hostedservices", service, "deployments", deploymentName, "upgrade"), in, nil)
}

func (c *HTTPClient) UpdateDeploymentStatus(ctx context.Context, service, slot, status string) error {
	body := map[string]string{"status": status}
	return c.do(ctx, http.MethodPut, c.servicesPath("hostedservices", service, "deploymentslots", slot, "status"), body, nil)
}

func (c *HTTPClient) DeleteDeployment(ctx context.Context, service, slot string) error {
	return c.do(ctx, http.MethodDelete, c.servicesPath("hostedservices", service, "deploymentslots", slot), nil, nil)
}

func (c *HTTPClient) ListCertificates(ctx context.Context, service string) ([]Certificate, error) {
	var resp struct {
		Certificates []Certificate `json:"certificates"`
	}
	if err := c.do(ctx, http.MethodGet, c.servicesPath("hostedservices", service, "certificates"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Certificates, nil
}

func (c *HTTPClient) AddCertificate(ctx context.Context, service string, cert CertificateFile) error {
	return c.do(ctx, http.MethodPost, c.servicesPath("hostedservices", service, "certificates"), cert, nil)
}

func (c *HTTPClient) GetStorageAccount(ctx context.Context, name string) (*StorageAccount, error) {
	var sa StorageAccount
	if err := c.do(ctx, http.MethodGet, c.servicesPath("storageservices", name), nil, &sa); err != nil {
		return nil, err
	}
	return &sa, nil
}

func (c *HTTPClient) CreateStorageAccount(ctx context.Context, in StorageAccountInput) error {
	return c.do(ctx, http.MethodPost, c.servicesPath("storageservices"), in, nil)
}

func (c *HTTPClient) GetStorageKeys(ctx context.Context, name string) (*StorageKeys, error) {
	var keys StorageKeys
	if err := c.do(ctx, http.MethodGet, c.servicesPath("storageservices", name, "keys"), nil, &keys); err != nil {
		return nil, err
	}
	return &keys, nil
}

func (c *HTTPClient) ListLocations(ctx context.Context) ([]Location, error) {
	var resp struct {
		Locations []Location `json:"locations"`
	}
	path := "/subscriptions/" + url.PathEscape(c.subscription) + "/locations"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Locations, nil
}
