package planformat

import (
	"strings"
	"testing"
)

func samplePlan() *Plan {
	return &Plan{
		ServiceName:    "shop",
		Slot:           "Production",
		Subscription:   "dev",
		Location:       "North Europe",
		StorageAccount: "shop",
		DeploymentName: "shop-production",
		Label:          "shop",
		Roles:          2,
		Steps: []Step{
			{Action: ActionNoop, Kind: KindStorageAccount, Name: "shop"},
			{Action: ActionCreate, Kind: KindHostedService, Name: "shop", Detail: "North Europe"},
			{Action: ActionCreate, Kind: KindCertificate, Name: "ABC123"},
			{Action: ActionCreate, Kind: KindDeployment, Name: "shop-production"},
		},
		Warnings: []string{`role "Web" requests node 18 but the service offers 20`},
	}
}

func TestFormat(t *testing.T) {
	output := Format(samplePlan())

	for _, want := range []string{
		"# service shop (Production) will be published",
		"# location:        North Europe",
		"# storage_account: shop",
		`# deployment:      shop-production (label "shop", 2 role(s))`,
		"      storage account shop\n",
		"    + hosted service shop  (North Europe)",
		"    + certificate ABC123",
		"    + deployment shop-production",
		"3 to create, 0 to update.",
		"    ! role \"Web\" requests node 18",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q\n%s", want, output)
		}
	}
	if strings.Contains(output, "affinity_group") {
		t.Error("affinity group shown although a location is set")
	}
}

func TestFormat_AffinityGroupUpgrade(t *testing.T) {
	p := &Plan{
		ServiceName:   "shop",
		Slot:          "Staging",
		AffinityGroup: "ag1",
		Steps:         []Step{{Action: ActionUpdate, Kind: KindDeployment, Name: "shop-staging", Detail: "upgrade mode Auto"}},
	}
	output := Format(p)
	if !strings.Contains(output, "# affinity_group:  ag1") {
		t.Errorf("missing affinity group:\n%s", output)
	}
	if !strings.Contains(output, "    ~ deployment shop-staging  (upgrade mode Auto)") {
		t.Errorf("missing upgrade step:\n%s", output)
	}
	if !strings.Contains(output, "0 to create, 1 to update.") {
		t.Errorf("wrong counts:\n%s", output)
	}
	if strings.Contains(output, "Warnings:") {
		t.Error("warnings section rendered with no warnings")
	}
}

func TestFormatSummary(t *testing.T) {
	got := FormatSummary(samplePlan())
	want := "shop/Production: 3 to create, 0 to update, 1 certificate(s) to upload, 1 warning(s)"
	if got != want {
		t.Errorf("FormatSummary() = %q, want %q", got, want)
	}
}

func TestDeploymentAction(t *testing.T) {
	if a := DeploymentAction(samplePlan()); a != ActionCreate {
		t.Errorf("DeploymentAction() = %q, want create", a)
	}
	if a := DeploymentAction(&Plan{}); a != ActionNoop {
		t.Errorf("DeploymentAction(empty) = %q, want no-op", a)
	}
}

func TestActionSymbol(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{ActionCreate, "+"},
		{ActionUpdate, "~"},
		{ActionNoop, " "},
		{Action("unknown"), "?"},
	}
	for _, tt := range tests {
		if got := actionSymbol(tt.action); got != tt.want {
			t.Errorf("actionSymbol(%q) = %q, want %q", tt.action, got, tt.want)
		}
	}
}
