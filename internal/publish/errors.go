package publish

import (
	"errors"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/poller"
)

var (
	// ErrDeploymentNotFound is returned when a status or readiness query
	// targets a slot with no deployment.
	ErrDeploymentNotFound = poller.ErrDeploymentNotFound
	// ErrServiceNotFound is returned when the hosted service does not exist.
	ErrServiceNotFound = errors.New("hosted service not found")
	// ErrTimeout matches every wait or publish whose deadline expired.
	ErrTimeout = poller.ErrTimeout
)
