package servicedeployment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/booldefault"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/int64default"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/listplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/planmodifier"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringdefault"
	"github.com/hashicorp/terraform-plugin-framework/resource/schema/stringplanmodifier"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/certstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/providerdata"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/publish"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/settings"
)

// Compile-time interface checks.
var (
	_ resource.Resource               = &ServiceDeploymentResource{}
	_ resource.ResourceWithConfigure  = &ServiceDeploymentResource{}
	_ resource.ResourceWithModifyPlan = &ServiceDeploymentResource{}
)

// NewServiceDeploymentResource returns a new resource.Resource for the
// cloudsvc_service_deployment type.
func NewServiceDeploymentResource() resource.Resource {
	return &ServiceDeploymentResource{}
}

// ServiceDeploymentResource implements the cloudsvc_service_deployment
// Terraform resource.
type ServiceDeploymentResource struct {
	providerData *providerdata.ProviderData
}

// instanceAttrTypes returns the attribute type map for each entry in the
// instances list.
func instanceAttrTypes() map[string]attr.Type {
	return map[string]attr.Type{
		"role":   types.StringType,
		"name":   types.StringType,
		"status": types.StringType,
	}
}

// --------------------------------------------------------------------------
// Metadata
// --------------------------------------------------------------------------

func (r *ServiceDeploymentResource) Metadata(_ context.Context, req resource.MetadataRequest, resp *resource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_service_deployment"
}

// --------------------------------------------------------------------------
// Schema
// --------------------------------------------------------------------------

func (r *ServiceDeploymentResource) Schema(_ context.Context, _ resource.SchemaRequest, resp *resource.SchemaResponse) {
	keep := []planmodifier.String{stringplanmodifier.UseStateForUnknown()}

	resp.Schema = schema.Schema{
		MarkdownDescription: "Packages a service project and publishes it to a deployment slot of a hosted service, creating the service, its storage account and missing certificates as needed.",

		Attributes: map[string]schema.Attribute{
			// ---- Required ----
			"project_path": schema.StringAttribute{
				MarkdownDescription: "Path to the service project directory containing `service.yaml`.",
				Required:            true,
			},

			// ---- Optional ----
			"service_name": schema.StringAttribute{
				MarkdownDescription: "Hosted service name. Defaults to the project name.",
				Optional:            true,
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
					stringplanmodifier.RequiresReplaceIfConfigured(),
				},
			},
			"subscription": schema.StringAttribute{
				MarkdownDescription: "Subscription name or id. Defaults to the project default, then the default subscription.",
				Optional:            true,
				Computed:            true,
				PlanModifiers: []planmodifier.String{
					stringplanmodifier.UseStateForUnknown(),
					stringplanmodifier.RequiresReplaceIfConfigured(),
				},
			},
			"slot": schema.StringAttribute{
				MarkdownDescription: "Deployment slot, `\"Production\"` or `\"Staging\"`. Defaults to `\"Production\"`.",
				Optional:            true,
				Computed:            true,
				Default:             stringdefault.StaticString(servicemgmt.SlotProduction),
				Validators: []validator.String{
					stringvalidator.OneOfCaseInsensitive(servicemgmt.SlotProduction, servicemgmt.SlotStaging),
				},
				PlanModifiers: []planmodifier.String{stringplanmodifier.RequiresReplace()},
			},
			"location": schema.StringAttribute{
				MarkdownDescription: "Location of a newly created service and storage account. Defaults to the first location the subscription offers.",
				Optional:            true,
				Computed:            true,
				PlanModifiers:       keep,
				Validators: []validator.String{
					stringvalidator.ConflictsWith(path.MatchRoot("affinity_group")),
				},
			},
			"affinity_group": schema.StringAttribute{
				MarkdownDescription: "Affinity group of a newly created service and storage account. Conflicts with `location`.",
				Optional:            true,
			},
			"storage_account_name": schema.StringAttribute{
				MarkdownDescription: "Storage account used for publishing. Created when absent. Defaults to a name derived from the service name.",
				Optional:            true,
				Computed:            true,
				PlanModifiers:       keep,
			},
			"label": schema.StringAttribute{
				MarkdownDescription: "Deployment label. Defaults to the service name.",
				Optional:            true,
				Computed:            true,
				PlanModifiers:       keep,
			},
			"force": schema.BoolAttribute{
				MarkdownDescription: "Publish even when the package has warnings. Defaults to `false`.",
				Optional:            true,
				Computed:            true,
				Default:             booldefault.StaticBool(false),
			},
			"timeout_seconds": schema.Int64Attribute{
				MarkdownDescription: "Upper bound on a whole publish in seconds. Defaults to `1800`.",
				Optional:            true,
				Computed:            true,
				Default:             int64default.StaticInt64(1800),
				Validators:          []validator.Int64{int64validator.AtLeast(1)},
			},
			"retain_packages": schema.Int64Attribute{
				MarkdownDescription: "Number of older packages to keep in the package store after a publish. `0` keeps all. Defaults to `5`.",
				Optional:            true,
				Computed:            true,
				Default:             int64default.StaticInt64(5),
				Validators:          []validator.Int64{int64validator.AtLeast(0)},
			},

			// ---- Computed ----
			"id": schema.StringAttribute{
				MarkdownDescription: "`<service_name>/<slot>`.",
				Computed:            true,
				PlanModifiers:       keep,
			},
			"source_hash": schema.StringAttribute{
				MarkdownDescription: "Hash over every packaged file and the rendered service configuration.",
				Computed:            true,
				PlanModifiers:       keep,
			},
			"deployment_name": schema.StringAttribute{
				MarkdownDescription: "Name of the deployment occupying the slot.",
				Computed:            true,
				PlanModifiers:       keep,
			},
			"status": schema.StringAttribute{
				MarkdownDescription: "Deployment status as last observed.",
				Computed:            true,
				PlanModifiers:       keep,
			},
			"url": schema.StringAttribute{
				MarkdownDescription: "Public URL of the deployment.",
				Computed:            true,
				PlanModifiers:       keep,
			},
			"package_id": schema.StringAttribute{
				MarkdownDescription: "Identifier of the uploaded package.",
				Computed:            true,
				PlanModifiers:       keep,
			},
			"package_url": schema.StringAttribute{
				MarkdownDescription: "URL of the uploaded package archive.",
				Computed:            true,
				PlanModifiers:       keep,
			},
			"instances": schema.ListNestedAttribute{
				MarkdownDescription: "Role instances as last observed.",
				Computed:            true,
				PlanModifiers:       []planmodifier.List{listplanmodifier.UseStateForUnknown()},
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"role": schema.StringAttribute{
							MarkdownDescription: "Role name.",
							Computed:            true,
						},
						"name": schema.StringAttribute{
							MarkdownDescription: "Instance name.",
							Computed:            true,
						},
						"status": schema.StringAttribute{
							MarkdownDescription: "Instance status.",
							Computed:            true,
						},
					},
				},
			},
		},
	}
}

// --------------------------------------------------------------------------
// Configure
// --------------------------------------------------------------------------

func (r *ServiceDeploymentResource) Configure(_ context.Context, req resource.ConfigureRequest, resp *resource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}

	pd, ok := req.ProviderData.(*providerdata.ProviderData)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Resource Configure Type",
			fmt.Sprintf("Expected *providerdata.ProviderData, got: %T. Please report this issue to the provider developers.", req.ProviderData),
		)
		return
	}

	r.providerData = pd
}

// --------------------------------------------------------------------------
// Create
// --------------------------------------------------------------------------

func (r *ServiceDeploymentResource) Create(ctx context.Context, req resource.CreateRequest, resp *resource.CreateResponse) {
	var plan, config ServiceDeploymentResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	out, diags := r.publish(ctx, plan, config)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(applyOutcome(ctx, &plan, out)...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Info(ctx, "Created service deployment", map[string]interface{}{
		"id":         plan.ID.ValueString(),
		"package_id": out.PackageID,
		"action":     string(out.Action),
	})
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

// --------------------------------------------------------------------------
// Read
// --------------------------------------------------------------------------

func (r *ServiceDeploymentResource) Read(ctx context.Context, req resource.ReadRequest, resp *resource.ReadResponse) {
	var state ServiceDeploymentResourceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}
	if r.providerData == nil {
		return
	}

	service := state.ServiceName.ValueString()
	slot, err := settings.NormalizeSlot(state.Slot.ValueString())
	if err != nil {
		resp.Diagnostics.AddError("Invalid Slot", err.Error())
		return
	}

	client, _, err := r.providerData.Client(ctx, state.Subscription.ValueString())
	if err != nil {
		resp.Diagnostics.AddError(
			"Refresh Failed",
			fmt.Sprintf("Failed to connect to subscription %q: %s", state.Subscription.ValueString(), err),
		)
		return
	}

	mgr := &publish.StatusManager{Client: client}
	d, err := mgr.Status(ctx, service, slot)
	if errors.Is(err, publish.ErrDeploymentNotFound) {
		tflog.Info(ctx, "deployment slot is empty, resource may have been deleted externally", map[string]interface{}{
			"service": service,
			"slot":    slot,
		})
		resp.State.RemoveResource(ctx)
		return
	}
	if err != nil {
		resp.Diagnostics.AddError(
			"Refresh Failed",
			fmt.Sprintf("Failed to read deployment %s/%s: %s", service, slot, err),
		)
		return
	}

	// A package swapped outside Terraform forces the next plan to republish.
	if d.PackageURL != state.PackageURL.ValueString() {
		tflog.Warn(ctx, "drift detected: deployment runs a different package", map[string]interface{}{
			"deployed": d.PackageURL,
			"expected": state.PackageURL.ValueString(),
		})
		state.SourceHash = types.StringValue("")
	}

	resp.Diagnostics.Append(applyDeployment(ctx, &state, d, deploymentURL(service, slot, d))...)
	if resp.Diagnostics.HasError() {
		return
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &state)...)
}

// --------------------------------------------------------------------------
// Update
// --------------------------------------------------------------------------

func (r *ServiceDeploymentResource) Update(ctx context.Context, req resource.UpdateRequest, resp *resource.UpdateResponse) {
	var plan, state, config ServiceDeploymentResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}

	// Only publish-neutral arguments changed: keep the observed state.
	if !plan.SourceHash.IsUnknown() {
		resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
		return
	}

	out, diags := r.publish(ctx, plan, config)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	resp.Diagnostics.Append(applyOutcome(ctx, &plan, out)...)
	if resp.Diagnostics.HasError() {
		return
	}

	tflog.Info(ctx, "Updated service deployment", map[string]interface{}{
		"id":         plan.ID.ValueString(),
		"package_id": out.PackageID,
		"action":     string(out.Action),
	})
	resp.Diagnostics.Append(resp.State.Set(ctx, &plan)...)
}

// --------------------------------------------------------------------------
// Delete
// --------------------------------------------------------------------------

func (r *ServiceDeploymentResource) Delete(ctx context.Context, req resource.DeleteRequest, resp *resource.DeleteResponse) {
	var state ServiceDeploymentResourceModel
	resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
	if resp.Diagnostics.HasError() {
		return
	}
	if r.providerData == nil {
		return
	}

	service := state.ServiceName.ValueString()
	slot, err := settings.NormalizeSlot(state.Slot.ValueString())
	if err != nil {
		resp.Diagnostics.AddError("Invalid Slot", err.Error())
		return
	}

	o := r.providerData.Orchestrator(0)
	if err := o.Remove(ctx, state.Subscription.ValueString(), service, slot); err != nil {
		resp.Diagnostics.AddError(
			"Delete Failed",
			fmt.Sprintf("Failed to delete deployment %s/%s: %s", service, slot, err),
		)
		return
	}

	tflog.Info(ctx, "Deleted service deployment", map[string]interface{}{
		"service": service,
		"slot":    slot,
	})
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// publish runs a publish for plan. Overrides come from config so that values
// Terraform computed earlier are not mistaken for explicit settings.
func (r *ServiceDeploymentResource) publish(ctx context.Context, plan, config ServiceDeploymentResourceModel) (*publish.Outcome, diag.Diagnostics) {
	var diags diag.Diagnostics
	if r.providerData == nil {
		diags.AddError(
			"Provider Not Configured",
			"The cloudsvc provider was not configured before the resource was used.",
		)
		return nil, diags
	}

	projectPath := plan.ProjectPath.ValueString()
	o := r.providerData.Orchestrator(int(plan.RetainPackages.ValueInt64()))
	out, err := o.PublishWith(ctx, projectPath, overridesFrom(config), publish.Options{
		Force:   plan.Force.ValueBool(),
		Timeout: time.Duration(plan.TimeoutSeconds.ValueInt64()) * time.Second,
	})
	if err != nil {
		diags.AddError(publishErrorSummary(err), fmt.Sprintf("Failed to publish %q: %s", projectPath, err))
		return nil, diags
	}
	if out.Aborted {
		diags.AddError(
			"Publish Aborted",
			fmt.Sprintf("The package built from %q has warnings:\n  %s\nSet force = true to publish anyway.", projectPath, strings.Join(out.Warnings, "\n  ")),
		)
		return nil, diags
	}
	for _, w := range out.Warnings {
		diags.AddWarning("Package Warning", w)
	}
	return out, diags
}

func publishErrorSummary(err error) string {
	var (
		cfgErr    *settings.ConfigurationError
		exportErr *certstore.ExportError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "Invalid Publish Settings"
	case errors.Is(err, publish.ErrTimeout):
		return "Publish Timed Out"
	case errors.As(err, &exportErr):
		return "Certificate Export Failed"
	default:
		return "Publish Failed"
	}
}

func overridesFrom(config ServiceDeploymentResourceModel) settings.Overrides {
	return settings.Overrides{
		ServiceName:    optionalString(config.ServiceName),
		Subscription:   optionalString(config.Subscription),
		StorageAccount: optionalString(config.StorageAccountName),
		Location:       optionalString(config.Location),
		AffinityGroup:  optionalString(config.AffinityGroup),
		Slot:           optionalString(config.Slot),
		Label:          optionalString(config.Label),
	}
}

func optionalString(v types.String) *string {
	if v.IsNull() || v.IsUnknown() {
		return nil
	}
	s := v.ValueString()
	return &s
}

// keepOrSet returns the planned value when it is known, else v. Values the
// user configured must come back unchanged.
func keepOrSet(planned types.String, v string) types.String {
	if !planned.IsNull() && !planned.IsUnknown() {
		return planned
	}
	return types.StringValue(v)
}

func applyOutcome(ctx context.Context, m *ServiceDeploymentResourceModel, out *publish.Outcome) diag.Diagnostics {
	ps := out.Settings
	m.ID = types.StringValue(ps.ServiceName + "/" + ps.Slot)
	m.ServiceName = keepOrSet(m.ServiceName, ps.ServiceName)
	m.Subscription = keepOrSet(m.Subscription, ps.Subscription.Name)
	m.Location = keepOrSet(m.Location, ps.Location)
	m.StorageAccountName = keepOrSet(m.StorageAccountName, ps.StorageAccount)
	m.Label = keepOrSet(m.Label, ps.Label)
	m.SourceHash = types.StringValue(out.PackageHash)
	m.PackageID = types.StringValue(out.PackageID)
	m.PackageURL = types.StringValue(out.PackageURL)
	return applyDeployment(ctx, m, out.Deployment, out.URL)
}

func applyDeployment(ctx context.Context, m *ServiceDeploymentResourceModel, d *servicemgmt.Deployment, url string) diag.Diagnostics {
	m.DeploymentName = types.StringValue(d.Name)
	m.Status = types.StringValue(d.Status)
	m.URL = types.StringValue(url)

	instances := make([]InstanceValue, 0, len(d.RoleInstances))
	for _, ri := range d.RoleInstances {
		instances = append(instances, InstanceValue{
			Role:   types.StringValue(ri.RoleName),
			Name:   types.StringValue(ri.InstanceName),
			Status: types.StringValue(ri.InstanceStatus),
		})
	}
	list, diags := types.ListValueFrom(ctx, types.ObjectType{AttrTypes: instanceAttrTypes()}, instances)
	if diags.HasError() {
		return diags
	}
	m.Instances = list
	return diags
}

func deploymentURL(service, slot string, d *servicemgmt.Deployment) string {
	if slot == servicemgmt.SlotProduction {
		return publish.ServiceURL(service)
	}
	return d.URL
}
