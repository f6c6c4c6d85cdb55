package helper

import "testing"

func TestValidateCommand(t *testing.T) {
	v := NewValidator()
	if err := v.ValidateCommand("createService"); err != nil {
		t.Fatalf("expected createService to be allowed: %v", err)
	}
	if err := v.ValidateCommand("rebootHost"); err == nil {
		t.Fatal("expected unknown command to be rejected")
	}
}

func TestValidateServiceName(t *testing.T) {
	v := NewValidator()
	cases := map[string]bool{
		"workload@demo.service":       true,
		"workload@my-app_1.service":   true,
		"workload@../etc.service":     false,
		"other@demo.service":          false,
		"workload@demo.service extra": false,
	}
	for name, want := range cases {
		err := v.ValidateServiceName(name)
		got := err == nil
		if got != want {
			t.Errorf("ValidateServiceName(%q) valid=%v, want %v", name, got, want)
		}
	}
}

func TestValidateContentRejectsDangerousSubstrings(t *testing.T) {
	v := NewValidator()
	cases := []string{
		"ExecStart=/bin/rm -rf /",
		"path traversal ../../etc/shadow",
		"cat /etc/passwd",
		"sudo rm -rf /",
		"su root",
	}
	for _, content := range cases {
		if err := v.ValidateContent("templateContent", content); err == nil {
			t.Errorf("expected content %q to be rejected", content)
		}
	}
}

func TestValidateContentRejectsDangerousSubstringsCaseInsensitive(t *testing.T) {
	v := NewValidator()
	cases := []string{
		"SUDO rm -rf /",
		"ExecStart=/bin/RM -rf /",
		"Su root",
	}
	for _, content := range cases {
		if err := v.ValidateContent("templateContent", content); err == nil {
			t.Errorf("expected content %q to be rejected regardless of case", content)
		}
	}
}

func TestValidateContentAllowsNormalUnit(t *testing.T) {
	v := NewValidator()
	content := "[Service]\nExecStart=/opt/workloads/demo/bin/demo\n"
	if err := v.ValidateContent("templateContent", content); err != nil {
		t.Fatalf("expected normal unit content to pass: %v", err)
	}
}

func TestValidateContentRejectsOversize(t *testing.T) {
	v := NewValidator()
	big := make([]byte, MaxContentSize+1)
	if err := v.ValidateContent("overrideConfig", string(big)); err == nil {
		t.Fatal("expected oversize content to be rejected")
	}
}
