package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTransactions(t *testing.T) {
	before := testutil.ToFloat64(Transactions.WithLabelValues("document", "committed"))

	Transactions.WithLabelValues("document", "committed").Inc()

	after := testutil.ToFloat64(Transactions.WithLabelValues("document", "committed"))
	if after != before+1 {
		t.Fatalf("counter should be %v, not %v", before+1, after)
	}
}

func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("0.1.0-test")

	if v := testutil.ToFloat64(buildInfo.WithLabelValues("0.1.0-test")); v != 1 {
		t.Fatalf("build info should be 1, not %v", v)
	}

	if n, err := testutil.GatherAndCount(Registry, "murmur_build_info"); err != nil || n < 1 {
		t.Fatalf("build info should be registered: %d %v", n, err)
	}
}
