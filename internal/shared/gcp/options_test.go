package gcp

import "testing"

func TestClientOptionsFromEnv(t *testing.T) {
	t.Setenv("GCP_CREDENTIALS_JSON", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if opts := ClientOptions(); len(opts) != 0 {
		t.Fatalf("expected no options, got %d", len(opts))
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/etc/creds.json")
	if opts := ClientOptions(); len(opts) != 1 {
		t.Fatalf("expected file option, got %d", len(opts))
	}

	t.Setenv("GCP_CREDENTIALS_JSON", `{"type":"service_account"}`)
	if opts := ClientOptions(); len(opts) != 1 {
		t.Fatalf("expected json option, got %d", len(opts))
	}
}
