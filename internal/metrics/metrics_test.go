package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCollector_RecordAndExpose(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDelivery("CT1-ICT1")
	c.RecordDelivery("CT1-ICT1")
	c.RecordRelayFailure("CT1-ICT2")
	c.RecordExpiryFired()
	c.RecordIndexBuild("CT1-ICT1")
	c.RecordApproval()
	c.RecordRejection()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("メトリクスの取得に失敗: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("レスポンスの読み取りに失敗: %v", err)
	}

	output := string(body)
	expected := []string{
		`mediagate_deliveries_total{bucket="CT1-ICT1"} 2`,
		`mediagate_relay_failures_total{bucket="CT1-ICT2"} 1`,
		`mediagate_expiries_fired_total 1`,
		`mediagate_index_builds_total{bucket="CT1-ICT1"} 1`,
		`mediagate_purchase_approvals_total 1`,
		`mediagate_purchase_rejections_total 1`,
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("メトリクス出力に %q が含まれていない", want)
		}
	}
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if r := recover(); r == nil {
			t.Error("二重登録でpanicが発生するはず")
		}
	}()
	NewCollector(reg)
}
