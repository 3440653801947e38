package thunderstore

import (
	"testing"

	"github.com/LulfLoot/ThunderDockerman/internal/semver"
)

func TestDecodePackages(t *testing.T) {
	packages, err := decodePackages([]byte(listingJSON), decodeOptions{community: "valheim"})
	if err != nil {
		t.Fatalf("decodePackages() error = %v", err)
	}

	if len(packages) != 3 {
		t.Fatalf("decodePackages() returned %d packages, want 3 (broken entry dropped)", len(packages))
	}

	bep := packages[0]
	if bep.FullName != "denikson-BepInExPack_Valheim" || bep.Community != "valheim" {
		t.Errorf("first package = %+v", bep)
	}
	if bep.Latest().Number != semver.MustParse("5.4.2202") {
		t.Errorf("versions not sorted newest first: %v", bep.VersionNumbers())
	}
	if bep.TotalDownloads() != 600 {
		t.Errorf("TotalDownloads() = %d, want 600", bep.TotalDownloads())
	}
	if bep.LastUpdated.IsZero() {
		t.Error("LastUpdated should be parsed")
	}

	plant := packages[2]
	deps := plant.Latest().Dependencies
	if len(deps) != 2 {
		t.Fatalf("PlantEverything deps = %v", deps)
	}
	if deps[0].FullName != "denikson-BepInExPack_Valheim" || deps[0].Constraint != semver.Exact(semver.MustParse("5.4.2200")) {
		t.Errorf("deps[0] = %+v", deps[0])
	}
}

func TestDecodePackages_LatestDependencies(t *testing.T) {
	packages, err := decodePackages([]byte(listingJSON), decodeOptions{community: "valheim", latestDependencies: true})
	if err != nil {
		t.Fatalf("decodePackages() error = %v", err)
	}
	dep := packages[1].Latest().Dependencies[0]
	if dep.Constraint.Op != semver.OpAtLeast {
		t.Errorf("dependency constraint = %v, want minimum", dep.Constraint)
	}
}

func TestDecodePackages_DropsBadVersionsOnly(t *testing.T) {
	data := `[{"name":"X","full_name":"a-X","versions":[
		{"version_number":"1.0.0","download_url":"u","dependencies":["bad"]},
		{"version_number":"0.9.0","download_url":"u","dependencies":[]}
	]}]`
	packages, err := decodePackages([]byte(data), decodeOptions{community: "valheim"})
	if err != nil {
		t.Fatalf("decodePackages() error = %v", err)
	}
	if len(packages) != 1 || len(packages[0].Versions) != 1 {
		t.Fatalf("packages = %+v", packages)
	}
	if packages[0].Latest().Number != semver.MustParse("0.9.0") {
		t.Errorf("kept version = %v, want 0.9.0", packages[0].Latest().Number)
	}
}

func TestDecodePackages_DuplicateFullName(t *testing.T) {
	data := `[
		{"name":"X","full_name":"a-X","versions":[{"version_number":"1.0.0","download_url":"u"}]},
		{"name":"X","full_name":"a-X","versions":[{"version_number":"2.0.0","download_url":"u"}]}
	]`
	packages, err := decodePackages([]byte(data), decodeOptions{})
	if err != nil {
		t.Fatalf("decodePackages() error = %v", err)
	}
	if len(packages) != 1 {
		t.Errorf("duplicate full names should collapse, got %d packages", len(packages))
	}
}

func TestDecodePackages_InvalidJSON(t *testing.T) {
	if _, err := decodePackages([]byte(`{"not":"a list"}`), decodeOptions{}); err == nil {
		t.Error("decodePackages() should fail on non-list JSON")
	}
}
