package mainconfig

import (
	"context"
	"testing"

	appconfig "github.com/wolfman30/coach-ai-platform/internal/config"
)

func TestLoadAWSConfigStaticCredentialsAndEndpoint(t *testing.T) {
	cfg := &appconfig.Config{
		AWSRegion:           "us-west-2",
		AWSAccessKeyID:      "AKIDEXAMPLE",
		AWSSecretAccessKey:  "secret",
		AWSEndpointOverride: "http://localhost:4566",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("LoadAWSConfig: %v", err)
	}
	if awsCfg.Region != "us-west-2" {
		t.Fatalf("expected region us-west-2, got %q", awsCfg.Region)
	}
	if awsCfg.BaseEndpoint == nil || *awsCfg.BaseEndpoint != "http://localhost:4566" {
		t.Fatalf("expected endpoint override, got %v", awsCfg.BaseEndpoint)
	}
	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieve credentials: %v", err)
	}
	if creds.AccessKeyID != "AKIDEXAMPLE" {
		t.Fatalf("expected static access key, got %q", creds.AccessKeyID)
	}
}
