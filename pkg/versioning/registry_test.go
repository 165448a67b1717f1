package versioning

import "testing"

func TestGenesisRegistryResolvesKnownFeature(t *testing.T) {
	reg := Genesis()
	bundle, err := reg.Bundle(1)
	if err != nil {
		t.Fatal(err)
	}
	v, err := bundle.Get(FeatureDocumentTypeParsing)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0 {
		t.Fatalf("expected v0, got %d", v)
	}
}

func TestUnknownProtocolVersionFails(t *testing.T) {
	reg := Genesis()
	if _, err := reg.Bundle(999); err == nil {
		t.Fatal("expected unknown-version-mismatch")
	}
}

func TestUnknownFeatureFails(t *testing.T) {
	reg := Genesis()
	bundle, err := reg.Bundle(1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bundle.Get(Feature("does-not-exist")); err == nil {
		t.Fatal("expected unknown-version-mismatch")
	}
}
