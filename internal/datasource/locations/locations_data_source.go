// Package locations implements the cloudsvc_locations data source.
package locations

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/datasource"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/providerdata"
)

var (
	_ datasource.DataSource              = &LocationsDataSource{}
	_ datasource.DataSourceWithConfigure = &LocationsDataSource{}
)

// NewLocationsDataSource returns a new datasource.DataSource for the
// cloudsvc_locations type.
func NewLocationsDataSource() datasource.DataSource {
	return &LocationsDataSource{}
}

// LocationsDataSource lists the locations a subscription can place
// services in, in the order the service returns them.
type LocationsDataSource struct {
	providerData *providerdata.ProviderData
}

// LocationsModel maps the cloudsvc_locations schema.
type LocationsModel struct {
	Subscription types.String `tfsdk:"subscription"`
	Names        types.List   `tfsdk:"names"`
	Default      types.String `tfsdk:"default"`
}

func (d *LocationsDataSource) Metadata(_ context.Context, req datasource.MetadataRequest, resp *datasource.MetadataResponse) {
	resp.TypeName = req.ProviderTypeName + "_locations"
}

func (d *LocationsDataSource) Schema(_ context.Context, _ datasource.SchemaRequest, resp *datasource.SchemaResponse) {
	resp.Schema = schema.Schema{
		MarkdownDescription: "Lists the locations available to a subscription.",
		Attributes: map[string]schema.Attribute{
			"subscription": schema.StringAttribute{
				MarkdownDescription: "Subscription name or id. Defaults to the default subscription.",
				Optional:            true,
			},
			"names": schema.ListAttribute{
				MarkdownDescription: "Location names.",
				ElementType:         types.StringType,
				Computed:            true,
			},
			"default": schema.StringAttribute{
				MarkdownDescription: "The location a publish uses when none is configured.",
				Computed:            true,
			},
		},
	}
}

func (d *LocationsDataSource) Configure(_ context.Context, req datasource.ConfigureRequest, resp *datasource.ConfigureResponse) {
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

func (d *LocationsDataSource) Read(ctx context.Context, req datasource.ReadRequest, resp *datasource.ReadResponse) {
	var data LocationsModel
	resp.Diagnostics.Append(req.Config.Get(ctx, &data)...)
	if resp.Diagnostics.HasError() {
		return
	}
	if d.providerData == nil {
		resp.Diagnostics.AddError("Provider Not Configured", "The cloudsvc provider was not configured before the data source was read.")
		return
	}

	client, sub, err := d.providerData.Client(ctx, data.Subscription.ValueString())
	if err != nil {
		resp.Diagnostics.AddError("Subscription Unavailable", err.Error())
		return
	}
	locs, err := client.ListLocations(ctx)
	if err != nil {
		resp.Diagnostics.AddError(
			"Location Listing Failed",
			fmt.Sprintf("Failed to list locations for subscription %q: %s", sub.Name, err),
		)
		return
	}

	names := make([]string, 0, len(locs))
	for _, l := range locs {
		names = append(names, l.Name)
	}
	list, diags := types.ListValueFrom(ctx, types.StringType, names)
	resp.Diagnostics.Append(diags...)
	if resp.Diagnostics.HasError() {
		return
	}

	data.Names = list
	data.Default = types.StringNull()
	if len(names) > 0 {
		data.Default = types.StringValue(names[0])
	}
	resp.Diagnostics.Append(resp.State.Set(ctx, &data)...)
}
