package servicemgmt

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/retry"
)

// HTTPConnector builds retrying HTTP clients per subscription.
type HTTPConnector struct {
	// Endpoint is used when the subscription does not carry its own.
	Endpoint       string
	Credential     azcore.TokenCredential
	TimeoutSeconds int
	Policy         retry.Policy
}

func (h HTTPConnector) Connect(_ context.Context, sub Subscription) (Client, error) {
	endpoint := sub.Endpoint
	if endpoint == "" {
		endpoint = h.Endpoint
	}
	c, err := NewHTTPClient(HTTPConfig{
		Endpoint:       endpoint,
		SubscriptionID: sub.ID,
		TimeoutSeconds: h.TimeoutSeconds,
		Credential:     h.Credential,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to subscription %q: %w", sub.Name, err)
	}
	if h.Policy.MaxAttempts > 1 {
		return NewRetryClient(c, h.Policy), nil
	}
	return c, nil
}
