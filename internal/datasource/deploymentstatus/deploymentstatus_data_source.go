// Package deploymentstatus implements the cloudsvc_deployment_status data
// source.
package deploymentstatus

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/providerdata"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/publish"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/settings"
)

var (
	_ datasource.DataSource              = &DeploymentStatusDataSource{}
	_ datasource.DataSourceWithConfigure = &DeploymentStatusDataSource{}
)

// NewDeploymentStatusDataSource returns a new datasource.DataSource for the
// cloudsvc_deployment_status type.
func NewDeploymentStatusDataSource() datasource.DataSource {
	return &DeploymentStatusDataSource{}
}

// DeploymentStatusDataSource reads the deployment occupying a slot.
type DeploymentStatusDataSource struct {
	providerData *providerdata.ProviderData
}

// DeploymentStatusModel maps the cloudsvc_deployment_status schema.
type DeploymentStatusModel struct {
	Subscription types.String `tfsdk:"subscription"`
	ServiceName  types.String `tfsdk:"service_name"`
	Slot         types.String `tfsdk:"slot"`

	// Computed
	Exists         types.Bool   `tfsdk:"exists"`
	DeploymentName types.String `tfsdk:"deployment_name"`
	Status         types.String `tfsdk:"status"`
	Label          types.String `tfsdk:"label"`
	URL            types.String `tfsdk:"url"`
	PackageURL     types.String `tfsdk:"package_url"`
	Instances      types.List   `tfsdk:"instances"`
}

type instanceModel struct {
	Role   types.String `tfsdk:"role"`
	Name   types.String `tfsdk:"name"`
	Status types.String `tfsdk:"status"`
}

func instanceAttrTypes() map[string]attr.Type {
	return map[string]attr.Type{
		"role":   types.StringType,
		"name":   types.StringType,
		"status": types.StringType,
	}
}

func (d *DeploymentStatusDataSource) Metadata(_ context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_deployment_status"
}

func (d *DeploymentStatusDataSource) Schema(_ context.Context, _ datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Reads the deployment in a slot of a hosted service. `exists` is false when the slot is empty.",
		Attributes: map[string]schema.Attribute{
			"subscription": schema.StringAttribute{
				MarkdownDescription: "Subscription name or id. Defaults to the default subscription.",
				Optional:            true,
			},
			"service_name": schema.StringAttribute{
				MarkdownDescription: "Hosted service name.",
				Required:            true,
			},
			"slot": schema.StringAttribute{
				MarkdownDescription: "Deployment slot. Defaults to `\"Production\"`.",
				Optional:            true,
				Validators: []validator.String{
					stringvalidator.OneOfCaseInsensitive(servicemgmt.SlotProduction, servicemgmt.SlotStaging),
				},
			},
			"exists": schema.BoolAttribute{
				MarkdownDescription: "Whether the slot holds a deployment.",
				Computed:            true,
			},
			"deployment_name": schema.StringAttribute{Computed: true},
			"status": schema.StringAttribute{
				MarkdownDescription: "Deployment status, for example `Running` or `Suspended`.",
				Computed:            true,
			},
			"label":       schema.StringAttribute{Computed: true},
			"url":         schema.StringAttribute{Computed: true},
			"package_url": schema.StringAttribute{Computed: true},
			"instances": schema.ListNestedAttribute{
				MarkdownDescription: "Role instances of the deployment.",
				Computed:            true,
				NestedObject: schema.NestedAttributeObject{
					Attributes: map[string]schema.Attribute{
						"role":   schema.StringAttribute{Computed: true},
						"name":   schema.StringAttribute{Computed: true},
						"status": schema.StringAttribute{Computed: true},
					},
				},
			},
		},
	}
}

func (d *DeploymentStatusDataSource) Configure(_ context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
	if req.ProviderData == nil {
		return
	}
	pd, ok := req.ProviderData.(*providerdata.ProviderData)
	if !ok {
		resp.Diagnostics.AddError(
			"Unexpected Data Source Configure Type",
			fmt.Sprintf("Expected *providerdata.ProviderData, got: %T. Please report this issue to the provider developers.", req.ProviderData),
		)
		return
	}
	d.providerData = pd
}

func (d *DeploymentStatusDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data DeploymentStatusModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}
	if d.providerData == nil {
		resp.Diagnostics.AddError("Provider Not Configured", "The cloudsvc provider was not configured before the data source was read.")
		return
	}

	service := data.ServiceName.ValueString()
	slot := servicemgmt.SlotProduction
	if !data.Slot.IsNull() && data.Slot.ValueString() != "" {
		normalized, err := settings.NormalizeSlot(data.Slot.ValueString())
		if err != nil {
			resp.Diagnostics.AddError("Invalid Slot", err.Error())
			return
		}
		slot = normalized
	}

	client, _, err := d.providerData.Client(ctx, data.Subscription.ValueString())
	if err != nil {
		resp.Diagnostics.AddError("Subscription Unavailable", err.Error())
		return
	}

	mgr := &publish.StatusManager{Client: client}
	dep, err := mgr.Status(ctx, service, slot)
	switch {
	case errors.Is(err, publish.ErrDeploymentNotFound):
		tflog.Debug(ctx, "deployment slot is empty", map[string]interface{}{"service": service, "slot": slot})
		data.Exists = types.BoolValue(false)
		data.DeploymentName = types.StringNull()
		data.Status = types.StringNull()
		data.Label = types.StringNull()
		data.URL = types.StringNull()
		data.PackageURL = types.StringNull()
		data.Instances = types.ListNull(types.ObjectType{AttrTypes: instanceAttrTypes()})
		resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
		return
	case err != nil:
		resp.Diagnostics.AddError(
			"Status Read Failed",
			fmt.Sprintf("Failed to read deployment %s/%s: %s", service, slot, err),
		)
		return
	}

	url := dep.URL
	if slot == servicemgmt.SlotProduction {
		url = publish.ServiceURL(service)
	}

	instances := make([]instanceModel, 0, len(dep.RoleInstances))
	for _, ri := range dep.RoleInstances {
		instances = append(instances, instanceModel{
			Role:   types.StringValue(ri.RoleName),
			Name:   types.StringValue(ri.InstanceName),
			Status: types.StringValue(ri.InstanceStatus),
		})
	}
	list, diags := types.ListValueFrom(ctx, types.ObjectType{AttrTypes: instanceAttrTypes()}, instances)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.Exists = types.BoolValue(true)
	data.DeploymentName = types.StringValue(dep.Name)
	data.Status = types.StringValue(dep.Status)
	data.Label = types.StringValue(dep.Label)
	data.URL = types.StringValue(url)
	data.PackageURL = types.StringValue(dep.PackageURL)
	data.Instances = list
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
