package systemdtmpl

import (
	"strings"
	"testing"

	"github.com/philcali/pandemic/internal/workload"
)

func TestServiceName(t *testing.T) {
	if got := ServiceName("demo"); got != "workload@demo.service" {
		t.Fatalf("unexpected service name: %s", got)
	}
}

func TestRenderOverrideIncludesSupervisorSocket(t *testing.T) {
	out := RenderOverride(map[string]string{"FOO": "bar"}, workload.Resources{MemoryLimit: "256M"}, "/var/run/pandemic.sock")
	if !strings.Contains(out, "Environment=PANDEMIC_SOCKET=/var/run/pandemic.sock") {
		t.Fatalf("expected PANDEMIC_SOCKET env line, got:\n%s", out)
	}
	if !strings.Contains(out, "Environment=FOO=bar") {
		t.Fatalf("expected FOO env line, got:\n%s", out)
	}
	if !strings.Contains(out, "MemoryLimit=256M") {
		t.Fatalf("expected memory limit line, got:\n%s", out)
	}
}

func TestUnitTemplateContainsInstancePlaceholder(t *testing.T) {
	out := UnitTemplate("/opt/workloads/demo", "/opt/workloads/demo/bin/demo")
	if !strings.Contains(out, "%i") {
		t.Fatal("expected unit template to reference %i instance placeholder")
	}
	if !strings.Contains(out, "ExecStart=/opt/workloads/demo/bin/demo") {
		t.Fatal("expected ExecStart line")
	}
}
