package servicedeployment

import "github.com/hashicorp/terraform-plugin-framework/types"

// ServiceDeploymentResourceModel maps the cloudsvc_service_deployment schema.
type ServiceDeploymentResourceModel struct {
	ID                 types.String `tfsdk:"id"`
	ProjectPath        types.String `tfsdk:"project_path"`
	ServiceName        types.String `tfsdk:"service_name"`
	Subscription       types.String `tfsdk:"subscription"`
	Slot               types.String `tfsdk:"slot"`
	Location           types.String `tfsdk:"location"`
	AffinityGroup      types.String `tfsdk:"affinity_group"`
	StorageAccountName types.String `tfsdk:"storage_account_name"`
	Label              types.String `tfsdk:"label"`
	Force              types.Bool   `tfsdk:"force"`
	TimeoutSeconds     types.Int64  `tfsdk:"timeout_seconds"`
	RetainPackages     types.Int64  `tfsdk:"retain_packages"`

	// Computed
	SourceHash     types.String `tfsdk:"source_hash"`
	DeploymentName types.String `tfsdk:"deployment_name"`
	Status         types.String `tfsdk:"status"`
	URL            types.String `tfsdk:"url"`
	PackageID      types.String `tfsdk:"package_id"`
	PackageURL     types.String `tfsdk:"package_url"`
	Instances      types.List   `tfsdk:"instances"` // List of InstanceValue
}

// InstanceValue is one element of the instances list.
type InstanceValue struct {
	Role   types.String `tfsdk:"role"`
	Name   types.String `tfsdk:"name"`
	Status types.String `tfsdk:"status"`
}
