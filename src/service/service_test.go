package service

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/telemetry"
)

type fixedStats map[string]string

func (f fixedStats) GetStats() map[string]string {
	return f
}

func TestService(t *testing.T) {
	stats := fixedStats{"id": "n1", "state": "Serving"}
	s := NewService("127.0.0.1:0", stats, common.NewTestEntry(t, common.TestLogLevel))

	server := httptest.NewServer(s.handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/stats")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("CORS header missing")
	}

	var res map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("err: %v", err)
	}
	if !reflect.DeepEqual(res, map[string]string(stats)) {
		t.Fatalf("stats should be %v, not %v", stats, res)
	}

	telemetry.GossipResends.Inc()

	resp, err = http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "murmur_gossip_resends_total") {
		t.Fatalf("metrics should include the gossip resends counter:\n%s", body)
	}
}
