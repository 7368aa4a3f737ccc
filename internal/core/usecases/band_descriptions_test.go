package usecases

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteBandDescriptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.tif")
	if err := writeBandDescriptions(path, []string{"G1__red_var", "G1__blue_var"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path + ".aux.xml")
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	doc := string(data)
	for _, want := range []string{
		"<PAMDataset>",
		`<PAMRasterBand band="1">`,
		"<Description>G1__red_var</Description>",
		`<PAMRasterBand band="2">`,
		"<Description>G1__blue_var</Description>",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("expected %q in %s", want, doc)
		}
	}
}

func TestFailureMessage(t *testing.T) {
	if got := FailureMessage(os.ErrNotExist); got != genericFailure {
		t.Errorf("expected generic message, got %q", got)
	}
}
