package servicedeployment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/resource"
	"github.com/hashicorp/terraform-plugin-framework/types"
	"github.com/hashicorp/terraform-plugin-log/tflog"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/packaging"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/planformat"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/project"
)

// ModifyPlan implements resource.ResourceWithModifyPlan. It hashes the
// project at plan time, decides whether apply has to publish, and logs
// the remote steps a publish would take.
func (r *ServiceDeploymentResource) ModifyPlan(ctx context.Context, req resource.ModifyPlanRequest, resp *resource.ModifyPlanResponse) {
	// If the entire resource is being destroyed there is nothing to plan.
	if req.Plan.Raw.IsNull() {
		return
	}

	var plan, config ServiceDeploymentResourceModel
	resp.Diagnostics.Append(req.Plan.Get(ctx, &plan)...)
	resp.Diagnostics.Append(req.Config.Get(ctx, &config)...)
	if resp.Diagnostics.HasError() {
		return
	}
	if r.providerData == nil || plan.ProjectPath.IsUnknown() {
		return
	}

	// ---------------------------------------------------------------
	// 1. Compute plan-time source hash if the project is on disk.
	// ---------------------------------------------------------------
	hash := r.planHash(ctx, plan)

	// ---------------------------------------------------------------
	// 2. On update, republish only when the package or its placement
	//    changed. Otherwise the computed outputs stay as they are.
	// ---------------------------------------------------------------
	if !req.State.Raw.IsNull() {
		var state ServiceDeploymentResourceModel
		resp.Diagnostics.Append(req.State.Get(ctx, &state)...)
		if resp.Diagnostics.HasError() {
			return
		}

		sourceChanged := hash != "" && hash != state.SourceHash.ValueString()
		if !sourceChanged && !publishInputsChanged(plan, state) {
			return
		}

		plan.SourceHash = types.StringUnknown()
		plan.DeploymentName = types.StringUnknown()
		plan.Status = types.StringUnknown()
		plan.URL = types.StringUnknown()
		plan.PackageID = types.StringUnknown()
		plan.PackageURL = types.StringUnknown()
		plan.Instances = types.ListUnknown(types.ObjectType{AttrTypes: instanceAttrTypes()})
		resp.Diagnostics.Append(resp.Plan.Set(ctx, &plan)...)
		if resp.Diagnostics.HasError() {
			return
		}
	}

	// ---------------------------------------------------------------
	// 3. Describe the publish and surface package warnings early.
	// ---------------------------------------------------------------
	if !config.hasUnknownOverrides() {
		r.describePublish(ctx, plan, config, resp)
	}
}

// planHash returns the package hash for the planned project, or "" when it
// cannot be computed yet.
func (r *ServiceDeploymentResource) planHash(ctx context.Context, plan ServiceDeploymentResourceModel) string {
	projectPath := plan.ProjectPath.ValueString()

	// It may not exist in CI plan-only runs.
	absDir, err := filepath.Abs(projectPath)
	if err != nil {
		return ""
	}
	if info, err := os.Stat(absDir); err != nil || !info.IsDir() {
		return ""
	}

	p, err := project.Load(absDir)
	if err != nil {
		tflog.Warn(ctx, "plan-time project load failed, hash will be computed at apply", map[string]interface{}{
			"project_path": projectPath,
			"error":        err.Error(),
		})
		return ""
	}
	if !plan.ServiceName.IsNull() && !plan.ServiceName.IsUnknown() {
		if name := strings.TrimSpace(plan.ServiceName.ValueString()); name != "" && name != p.Name {
			p.ChangeServiceName(name)
		}
	}

	builder := r.providerData.Publish.Builder
	if builder == nil {
		builder = &packaging.Builder{}
	}
	hash, err := builder.Hash(p)
	if err != nil {
		tflog.Warn(ctx, "plan-time package hash failed, hash will be computed at apply", map[string]interface{}{
			"project_path": projectPath,
			"error":        err.Error(),
		})
		return ""
	}
	return hash
}

func (r *ServiceDeploymentResource) describePublish(ctx context.Context, plan, config ServiceDeploymentResourceModel, resp *resource.ModifyPlanResponse) {
	o := r.providerData.Orchestrator(int(plan.RetainPackages.ValueInt64()))
	p, err := o.Plan(ctx, plan.ProjectPath.ValueString(), overridesFrom(config))
	if err != nil {
		tflog.Warn(ctx, "could not describe publish at plan time", map[string]interface{}{
			"project_path": plan.ProjectPath.ValueString(),
			"error":        err.Error(),
		})
		return
	}

	tflog.Info(ctx, "publish plan\n"+planformat.Format(p), map[string]interface{}{
		"summary": planformat.FormatSummary(p),
	})

	if len(p.Warnings) > 0 && !plan.Force.ValueBool() {
		resp.Diagnostics.AddWarning(
			"Package Has Warnings",
			fmt.Sprintf("Apply will abort unless force = true:\n  %s", strings.Join(p.Warnings, "\n  ")),
		)
	}
}

// publishInputsChanged reports whether an argument that shapes the publish
// differs between plan and state.
func publishInputsChanged(plan, state ServiceDeploymentResourceModel) bool {
	return !plan.ProjectPath.Equal(state.ProjectPath) ||
		!plan.Location.Equal(state.Location) ||
		!plan.AffinityGroup.Equal(state.AffinityGroup) ||
		!plan.StorageAccountName.Equal(state.StorageAccountName) ||
		!plan.Label.Equal(state.Label)
}

func (m ServiceDeploymentResourceModel) hasUnknownOverrides() bool {
	for _, v := range []types.String{m.ServiceName, m.Subscription, m.Slot, m.Location, m.AffinityGroup, m.StorageAccountName, m.Label} {
		if v.IsUnknown() {
			return true
		}
	}
	return false
}
