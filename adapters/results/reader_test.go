package results

import (
	"os"
	"path/filepath"
	"testing"

	"expstat/domain/experiment"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	return path
}

func TestDataReader_ProportionCSV(t *testing.T) {
	path := writeTempCSV(t, "variant,users,conversions\ncontrol,10000,1200\ntreatment,10050,1350\n")

	table, err := NewDataReader(path, "conversion").ReadResults()
	if err != nil {
		t.Fatalf("ReadResults failed: %v", err)
	}

	if table.Kind != experiment.MetricProportion {
		t.Errorf("Expected proportion metric, got %s", table.Kind)
	}
	if table.Metric != "conversion" {
		t.Errorf("Expected metric name carried through, got %q", table.Metric)
	}
	if len(table.Samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(table.Samples))
	}

	control, ok := table.Variant("control")
	if !ok {
		t.Fatal("Missing control variant")
	}
	if control.Units != 10000 || control.Successes != 1200 {
		t.Errorf("Control parsed wrong: %+v", control)
	}
}

func TestDataReader_ContinuousCSV(t *testing.T) {
	path := writeTempCSV(t, "variant,users,mean,variance\ncontrol,500,41.2,88.4\ntreatment,510,43.9,91.0\n")

	table, err := NewDataReader(path, "session_minutes").ReadResults()
	if err != nil {
		t.Fatalf("ReadResults failed: %v", err)
	}

	if table.Kind != experiment.MetricContinuous {
		t.Errorf("Expected continuous metric, got %s", table.Kind)
	}
	treatment, ok := table.Variant("treatment")
	if !ok {
		t.Fatal("Missing treatment variant")
	}
	if treatment.Mean != 43.9 || treatment.Variance != 91.0 {
		t.Errorf("Treatment parsed wrong: %+v", treatment)
	}
}

func TestDataReader_HeaderCaseAndBlankRows(t *testing.T) {
	path := writeTempCSV(t, "Variant,Users,Conversions\ncontrol,100,10\n,,\ntreatment,100,12\n")

	table, err := NewDataReader(path, "conversion").ReadResults()
	if err != nil {
		t.Fatalf("ReadResults failed: %v", err)
	}
	if len(table.Samples) != 2 {
		t.Errorf("Expected blank row skipped, got %d samples", len(table.Samples))
	}
}

func TestDataReader_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewDataReader(filepath.Join(t.TempDir(), "missing.csv"), "m").ReadResults()
		if err == nil {
			t.Error("Expected error for missing file")
		}
	})

	t.Run("missing variant column", func(t *testing.T) {
		path := writeTempCSV(t, "users,conversions\n100,10\n")
		_, err := NewDataReader(path, "m").ReadResults()
		if err == nil {
			t.Error("Expected error for missing variant column")
		}
	})

	t.Run("no metric columns", func(t *testing.T) {
		path := writeTempCSV(t, "variant,users\ncontrol,100\n")
		_, err := NewDataReader(path, "m").ReadResults()
		if err == nil {
			t.Error("Expected error when neither conversions nor mean present")
		}
	})

	t.Run("bad number", func(t *testing.T) {
		path := writeTempCSV(t, "variant,users,conversions\ncontrol,abc,10\n")
		_, err := NewDataReader(path, "m").ReadResults()
		if err == nil {
			t.Error("Expected error for non-numeric users")
		}
	})

	t.Run("header only", func(t *testing.T) {
		path := writeTempCSV(t, "variant,users,conversions\n")
		_, err := NewDataReader(path, "m").ReadResults()
		if err == nil {
			t.Error("Expected error for file without data rows")
		}
	})
}
