package http_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
)

// findOpenAPISpec locates api/openapi.yaml by walking up from the test directory.
func findOpenAPISpec(t *testing.T) string {
	dir, _ := os.Getwd()

	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

func loadSpec(t *testing.T) *openapi3.T {
	t.Helper()
	data, err := os.ReadFile(findOpenAPISpec(t))
	if err != nil {
		t.Fatalf("failed to read openapi.yaml: %v", err)
	}

	loader := &openapi3.Loader{IsExternalRefsAllowed: false}
	spec, err := loader.LoadFromData(data)
	if err != nil {
		t.Fatalf("failed to parse OpenAPI document: %v", err)
	}
	return spec
}

// TestOpenAPISpec validates the OpenAPI document and checks it covers every route.
func TestOpenAPISpec(t *testing.T) {
	spec := loadSpec(t)

	if err := spec.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI validation failed: %v", err)
	}

	expectedPaths := []string{
		"/api/mintNFT",
		"/v1/claims",
		"/v1/policy",
		"/v1/assets/nearby",
		"/v1/assets/{id}",
		"/v1/assets/{id}/eligibility",
		"/v1/health",
		"/v1/ready",
		"/graphql",
	}
	for _, path := range expectedPaths {
		if item := spec.Paths.Find(path); item == nil {
			t.Errorf("expected path %s not found", path)
		}
	}

	expectedSchemas := []string{
		"Coordinate",
		"RadiusPolicy",
		"ClaimRequest",
		"ClaimResult",
		"ClaimError",
		"Asset",
		"Eligibility",
		"ClaimEvent",
		"APIError",
	}
	for _, schema := range expectedSchemas {
		if spec.Components.Schemas[schema] == nil {
			t.Errorf("expected schema %s not found", schema)
		}
	}

	t.Logf("OpenAPI document valid: %d paths, %d schemas", len(spec.Paths.Map()), len(spec.Components.Schemas))
}

// TestOpenAPIClaimErrors checks the documented claim error bodies match the handler's.
func TestOpenAPIClaimErrors(t *testing.T) {
	spec := loadSpec(t)

	ref := spec.Components.Schemas["ClaimError"]
	if ref == nil || ref.Value == nil {
		t.Fatal("ClaimError schema missing")
	}
	prop := ref.Value.Properties["error"]
	if prop == nil || prop.Value == nil {
		t.Fatal("ClaimError.error missing")
	}

	documented := map[string]bool{}
	for _, v := range prop.Value.Enum {
		if s, ok := v.(string); ok {
			documented[s] = true
		}
	}
	for _, msg := range []string{
		"Method not allowed",
		"You are not within range of the NFT",
		"Unexpected error.",
	} {
		if !documented[msg] {
			t.Errorf("claim error %q not documented", msg)
		}
	}
}

// TestOpenAPIInfo verifies document metadata.
func TestOpenAPIInfo(t *testing.T) {
	spec := loadSpec(t)

	if spec.Info.Title != "GeoDrop API" {
		t.Errorf("expected title 'GeoDrop API', got %q", spec.Info.Title)
	}
	if spec.Info.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %q", spec.Info.Version)
	}
	if spec.Info.Description == "" {
		t.Error("expected non-empty description")
	}
	if len(spec.Servers) == 0 {
		t.Error("expected at least one server")
	}
}
