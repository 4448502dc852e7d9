package gcp

import (
	"os"
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions builds credentials from GCP_CREDENTIALS_JSON or
// GOOGLE_APPLICATION_CREDENTIALS, which may hold inline JSON or a file path.
// No options means application default credentials.
func ClientOptions() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GCP_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
