package servicemgmt

// Deployment slots.
const (
	SlotProduction = "Production"
	SlotStaging    = "Staging"
)

// Deployment statuses reported by the remote service.
const (
	DeploymentRunning          = "Running"
	DeploymentSuspended        = "Suspended"
	DeploymentRunningToSuspend = "RunningTransitioning"
	DeploymentSuspendToRunning = "SuspendedTransitioning"
	DeploymentStarting         = "Starting"
	DeploymentSuspending       = "Suspending"
	DeploymentDeploying        = "Deploying"
	DeploymentDeleting         = "Deleting"
)

// Role instance statuses. Only Creating, Busy and Ready are reported as
// progress while waiting for a rollout.
const (
	InstanceCreating = "Creating"
	InstanceBusy     = "Busy"
	InstanceReady    = "Ready"
	InstanceStopped  = "Stopped"
	InstanceUnknown  = "Unknown"
)

// StorageCreated is the storage account status once provisioning finishes.
const StorageCreated = "Created"

// UpgradeMode selects how an in-place upgrade walks upgrade domains.
type UpgradeMode string

const (
	UpgradeModeAuto   UpgradeMode = "Auto"
	UpgradeModeManual UpgradeMode = "Manual"
)

// HostedService is the named container that deployments live in.
type HostedService struct {
	Name          string `json:"name"`
	Label         string `json:"label,omitempty"`
	Description   string `json:"description,omitempty"`
	Location      string `json:"location,omitempty"`
	AffinityGroup string `json:"affinity_group,omitempty"`
	Status        string `json:"status,omitempty"`
	URL           string `json:"url,omitempty"`
}

// HostedServiceInput is the request body for creating a hosted service.
// Exactly one of Location and AffinityGroup is set.
type HostedServiceInput struct {
	Name          string `json:"name"`
	Label         string `json:"label"`
	Description   string `json:"description,omitempty"`
	Location      string `json:"location,omitempty"`
	AffinityGroup string `json:"affinity_group,omitempty"`
}

// RoleInstance is one running instance of a role within a deployment.
type RoleInstance struct {
	RoleName       string `json:"role_name"`
	InstanceName   string `json:"instance_name"`
	InstanceStatus string `json:"instance_status"`
}

// Deployment is a point-in-time snapshot of the deployment in a slot.
// Every fetch returns a fresh value.
type Deployment struct {
	ServiceName   string         `json:"service_name"`
	Name          string         `json:"name"`
	Slot          string         `json:"slot"`
	Label         string         `json:"label,omitempty"`
	Status        string         `json:"status"`
	PackageURL    string         `json:"package_url,omitempty"`
	Configuration string         `json:"configuration,omitempty"`
	URL           string         `json:"url,omitempty"`
	RoleInstances []RoleInstance `json:"role_instances"`
}

// AllInstancesReady reports whether every role instance is Ready. A
// deployment without instances is trivially ready.
func (d *Deployment) AllInstancesReady() bool {
	for _, ri := range d.RoleInstances {
		if ri.InstanceStatus != InstanceReady {
			return false
		}
	}
	return true
}

// CreateDeploymentInput is the request body for creating a deployment in a slot.
type CreateDeploymentInput struct {
	Name                 string `json:"name"`
	Label                string `json:"label"`
	PackageURL           string `json:"package_url"`
	Configuration        string `json:"configuration"`
	StartDeployment      bool   `json:"start_deployment"`
	TreatWarningsAsError bool   `json:"treat_warnings_as_error"`
}

// UpgradeDeploymentInput is the request body for an in-place upgrade.
type UpgradeDeploymentInput struct {
	Mode          UpgradeMode `json:"mode"`
	Label         string      `json:"label"`
	PackageURL    string      `json:"package_url"`
	Configuration string      `json:"configuration"`
	RoleToUpgrade string      `json:"role_to_upgrade,omitempty"`
	Force         bool        `json:"force"`
}

// Certificate is a certificate already uploaded to a hosted service.
type Certificate struct {
	Thumbprint          string `json:"thumbprint"`
	ThumbprintAlgorithm string `json:"thumbprint_algorithm,omitempty"`
	URL                 string `json:"url,omitempty"`
}

// CertificateFile is an exported certificate ready for upload.
type CertificateFile struct {
	Data     []byte `json:"data"`
	Password string `json:"password"`
	Format   string `json:"format"`
}

// StorageAccount describes a storage account in the subscription.
type StorageAccount struct {
	Name          string   `json:"name"`
	Label         string   `json:"label,omitempty"`
	Location      string   `json:"location,omitempty"`
	AffinityGroup string   `json:"affinity_group,omitempty"`
	Status        string   `json:"status"`
	Endpoints     []string `json:"endpoints,omitempty"`
}

// StorageAccountInput is the request body for creating a storage account.
type StorageAccountInput struct {
	Name          string `json:"name"`
	Label         string `json:"label"`
	Description   string `json:"description,omitempty"`
	Location      string `json:"location,omitempty"`
	AffinityGroup string `json:"affinity_group,omitempty"`
}

// StorageKeys holds the access keys of a storage account.
type StorageKeys struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// Location is a region hosted services can be placed in.
type Location struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
}

// Subscription identifies the account a client operates on.
type Subscription struct {
	ID       string
	Name     string
	Endpoint string
}
