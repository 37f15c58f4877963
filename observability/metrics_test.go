package observability

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, pair := range m.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

func TestLedgerMetricsRecordOutcomes(t *testing.T) {
	metrics := Ledger()
	metrics.ObserveOperation("claims", "claim", 5*time.Millisecond, nil)
	metrics.ObserveOperation("claims", "claim", time.Millisecond, errors.New("boom"))
	metrics.RecordClaimed("0xAB", big.NewInt(42))

	ops := gatherFamily(t, "ledger_engine_operations_total")
	if ops == nil {
		t.Fatalf("operations family not registered")
	}
	outcomes := map[string]float64{}
	for _, m := range ops.GetMetric() {
		if labelValue(m, "module") == "claims" && labelValue(m, "operation") == "claim" {
			outcomes[labelValue(m, "outcome")] = m.GetCounter().GetValue()
		}
	}
	if outcomes["success"] < 1 || outcomes["error"] < 1 {
		t.Fatalf("expected success and error outcomes, got %v", outcomes)
	}

	claimed := gatherFamily(t, "ledger_vault_claimed_units_total")
	if claimed == nil {
		t.Fatalf("claimed family not registered")
	}
	var found bool
	for _, m := range claimed.GetMetric() {
		if labelValue(m, "currency") == "0xab" {
			found = m.GetCounter().GetValue() >= 42
		}
	}
	if !found {
		t.Fatalf("expected claimed units for lower-cased currency label")
	}
}

func TestPauseGauge(t *testing.T) {
	Ledger().SetPause(" Vault ", true)
	family := gatherFamily(t, "ledger_system_pause_engaged")
	if family == nil {
		t.Fatalf("pause family not registered")
	}
	for _, m := range family.GetMetric() {
		if labelValue(m, "module") == "vault" {
			if m.GetGauge().GetValue() != 1 {
				t.Fatalf("expected engaged gauge")
			}
			return
		}
	}
	t.Fatalf("vault pause gauge missing")
}

func TestBigToFloatClampsOverflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 2000)
	if got := bigToFloat(huge); got <= 0 {
		t.Fatalf("expected clamped positive value, got %v", got)
	}
	if got := bigToFloat(big.NewInt(-5)); got != 0 {
		t.Fatalf("expected negative values to record zero, got %v", got)
	}
}
