package servicedeployment

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/certstore"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/publish"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/settings"
)

func TestOverridesFrom(t *testing.T) {
	config := ServiceDeploymentResourceModel{
		ServiceName:        stringValue("shop"),
		Subscription:       types.StringNull(),
		Slot:               stringValue("staging"),
		Location:           types.StringUnknown(),
		AffinityGroup:      types.StringNull(),
		StorageAccountName: stringValue(""),
		Label:              types.StringNull(),
	}

	ov := overridesFrom(config)
	if ov.ServiceName == nil || *ov.ServiceName != "shop" {
		t.Errorf("ServiceName = %v, want shop", ov.ServiceName)
	}
	if ov.Slot == nil || *ov.Slot != "staging" {
		t.Errorf("Slot = %v, want staging", ov.Slot)
	}
	if ov.Subscription != nil || ov.Location != nil || ov.AffinityGroup != nil || ov.Label != nil {
		t.Errorf("null and unknown values must not become overrides: %+v", ov)
	}
	// An explicit empty string is passed through so validation can reject it.
	if ov.StorageAccount == nil || *ov.StorageAccount != "" {
		t.Errorf("StorageAccount = %v, want explicit empty", ov.StorageAccount)
	}
}

func TestKeepOrSet(t *testing.T) {
	if got := keepOrSet(stringValue("sub-1"), "dev"); got.ValueString() != "sub-1" {
		t.Errorf("configured value replaced: %q", got.ValueString())
	}
	if got := keepOrSet(types.StringUnknown(), "dev"); got.ValueString() != "dev" {
		t.Errorf("unknown value = %q, want dev", got.ValueString())
	}
	if got := keepOrSet(types.StringNull(), "dev"); got.ValueString() != "dev" {
		t.Errorf("null value = %q, want dev", got.ValueString())
	}
}

func TestPublishErrorSummary(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&settings.ConfigurationError{Field: "location", Reason: "must not be empty"}, "Invalid Publish Settings"},
		{fmt.Errorf("wait: %w", publish.ErrTimeout), "Publish Timed Out"},
		{fmt.Errorf("upload: %w", &certstore.ExportError{Thumbprint: "AB", Reason: "no private key"}), "Certificate Export Failed"},
		{errors.New("boom"), "Publish Failed"},
	}
	for _, tt := range tests {
		if got := publishErrorSummary(tt.err); got != tt.want {
			t.Errorf("publishErrorSummary(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestPublishInputsChanged(t *testing.T) {
	base := ServiceDeploymentResourceModel{
		ProjectPath:        stringValue("./svc"),
		Location:           stringValue("West US"),
		AffinityGroup:      types.StringNull(),
		StorageAccountName: stringValue("shopstore"),
		Label:              stringValue("shop"),
		RetainPackages:     types.Int64Value(5),
	}

	same := base
	same.RetainPackages = types.Int64Value(2)
	if publishInputsChanged(same, base) {
		t.Error("retain_packages alone must not trigger a publish")
	}

	moved := base
	moved.Location = stringValue("East US")
	if !publishInputsChanged(moved, base) {
		t.Error("location change not detected")
	}

	relabeled := base
	relabeled.Label = stringValue("v2")
	if !publishInputsChanged(relabeled, base) {
		t.Error("label change not detected")
	}
}

func TestHasUnknownOverrides(t *testing.T) {
	m := ServiceDeploymentResourceModel{
		ServiceName:        stringValue("shop"),
		Subscription:       types.StringNull(),
		Slot:               stringValue("Production"),
		Location:           types.StringNull(),
		AffinityGroup:      types.StringNull(),
		StorageAccountName: types.StringNull(),
		Label:              types.StringNull(),
	}
	if m.hasUnknownOverrides() {
		t.Error("no unknown values expected")
	}
	m.Label = types.StringUnknown()
	if !m.hasUnknownOverrides() {
		t.Error("unknown label not detected")
	}
}

func TestApplyOutcome(t *testing.T) {
	m := ServiceDeploymentResourceModel{
		ServiceName:        types.StringUnknown(),
		Subscription:       stringValue("sub-1"),
		Location:           types.StringUnknown(),
		StorageAccountName: types.StringUnknown(),
		Label:              types.StringUnknown(),
	}
	out := &publish.Outcome{
		Settings: &settings.PublishSettings{
			Subscription:   servicemgmt.Subscription{ID: "sub-1", Name: "dev"},
			ServiceName:    "shop",
			StorageAccount: "shopstore",
			Location:       "West US",
			Slot:           servicemgmt.SlotProduction,
			Label:          "shop",
		},
		PackageID:   "pkg_20260101T000000Z_00c0ffee",
		PackageURL:  "memory://acc/shop/pkg_20260101T000000Z_00c0ffee/package.zip",
		PackageHash: "sha256:abc",
		URL:         "https://shop.cloudapp.net/",
		Deployment: &servicemgmt.Deployment{
			Name:   "shop-production",
			Status: servicemgmt.DeploymentRunning,
			RoleInstances: []servicemgmt.RoleInstance{
				{RoleName: "Web", InstanceName: "Web_IN_0", InstanceStatus: servicemgmt.InstanceReady},
				{RoleName: "Web", InstanceName: "Web_IN_1", InstanceStatus: servicemgmt.InstanceReady},
			},
		},
	}

	diags := applyOutcome(context.Background(), &m, out)
	if diags.HasError() {
		t.Fatalf("applyOutcome: %v", diags)
	}

	if m.ID.ValueString() != "shop/Production" {
		t.Errorf("ID = %q", m.ID.ValueString())
	}
	// Configured by id, so it must not be rewritten to the name.
	if m.Subscription.ValueString() != "sub-1" {
		t.Errorf("Subscription = %q, want sub-1", m.Subscription.ValueString())
	}
	if m.ServiceName.ValueString() != "shop" || m.Location.ValueString() != "West US" || m.StorageAccountName.ValueString() != "shopstore" {
		t.Errorf("resolved settings not applied: %+v", m)
	}
	if m.SourceHash.ValueString() != "sha256:abc" || m.PackageID.ValueString() != out.PackageID {
		t.Errorf("package fields = %q, %q", m.SourceHash.ValueString(), m.PackageID.ValueString())
	}
	if m.DeploymentName.ValueString() != "shop-production" || m.Status.ValueString() != "Running" {
		t.Errorf("deployment fields = %q, %q", m.DeploymentName.ValueString(), m.Status.ValueString())
	}

	var instances []InstanceValue
	if d := m.Instances.ElementsAs(context.Background(), &instances, false); d.HasError() {
		t.Fatalf("ElementsAs: %v", d)
	}
	if len(instances) != 2 || instances[1].Name.ValueString() != "Web_IN_1" {
		t.Errorf("instances = %+v", instances)
	}
}

func TestDeploymentURL(t *testing.T) {
	d := &servicemgmt.Deployment{URL: "https://abc123.cloudapp.net/"}
	if got := deploymentURL("shop", servicemgmt.SlotProduction, d); got != "https://shop.cloudapp.net/" {
		t.Errorf("production url = %q", got)
	}
	if got := deploymentURL("shop", servicemgmt.SlotStaging, d); got != d.URL {
		t.Errorf("staging url = %q", got)
	}
}

func stringValue(s string) types.String {
	return types.StringValue(s)
}
