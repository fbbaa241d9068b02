package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assembler-0/cpudetect/internal/config"
	"github.com/assembler-0/cpudetect/internal/cpu"
	"github.com/assembler-0/cpudetect/internal/cpuid"
	"github.com/assembler-0/cpudetect/internal/metrics"
)

func testLeaves() cpuid.Leaves {
	return cpuid.Leaves{}.
		Set(0, 0, cpuid.Result{EAX: 7, EBX: 0x756e6547, EDX: 0x49656e69, ECX: 0x6c65746e}).
		Set(1, 0, cpuid.Result{
			EAX: 0x906EA,
			EBX: 8 << 16,
			ECX: 1<<20 | 1<<23 | 1<<27 | 1<<28,
			EDX: 1<<26 | 1<<28,
		}).
		Set(4, 0, cpuid.Result{EAX: 3<<26 | 1<<14 | 1<<5 | 1, EBX: 7<<22 | 63, ECX: 63}).
		Set(7, 0, cpuid.Result{EBX: 1 << 5})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	l := testLeaves()
	mc := metrics.NewCollector(func() *cpu.Info { return cpu.DetectWith(l) })
	s := NewServer(&config.Config{Port: config.DefaultPort}, l, mc)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, ts *httptest.Server, path string, want int) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, want, resp.StatusCode, path)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	body := getJSON(t, newTestServer(t), "/health", http.StatusOK)
	assert.Equal(t, "ok", body["status"])
}

func TestInfo(t *testing.T) {
	body := getJSON(t, newTestServer(t), "/api/info", http.StatusOK)
	vendor := body["vendor"].(map[string]interface{})
	assert.Equal(t, "Intel", vendor["vendor"])
	assert.Equal(t, "GenuineIntel", vendor["vendor_string"])
	assert.Contains(t, body["features"], "AVX2")
}

func TestFeatures(t *testing.T) {
	body := getJSON(t, newTestServer(t), "/api/features", http.StatusOK)
	assert.Equal(t, "SSE4.2 AVX AVX2", body["summary"])
	groups := body["by_category"].(map[string]interface{})
	assert.Contains(t, groups["SIMD"], "AVX2")
	assert.NotContains(t, groups, "Virtualization")
}

func TestFeature(t *testing.T) {
	ts := newTestServer(t)

	body := getJSON(t, ts, "/api/features/AVX2", http.StatusOK)
	assert.Equal(t, true, body["present"])
	f := body["feature"].(map[string]interface{})
	assert.Equal(t, "AVX2", f["name"])

	body = getJSON(t, ts, "/api/features/AVX512F", http.StatusOK)
	assert.Equal(t, false, body["present"])

	body = getJSON(t, ts, "/api/features/avx2", http.StatusNotFound)
	assert.Contains(t, body["error"], "unknown feature")
}

func TestTopology(t *testing.T) {
	body := getJSON(t, newTestServer(t), "/api/topology", http.StatusOK)
	topo := body["topology"].(map[string]interface{})
	assert.Equal(t, 8.0, topo["logical_processors"])
	assert.Equal(t, 4.0, topo["physical_cores"])
	assert.Equal(t, "leaf 4", topo["source"])
	assert.GreaterOrEqual(t, body["optimal_thread_count"], 1.0)
}

func TestCache(t *testing.T) {
	body := getJSON(t, newTestServer(t), "/api/cache", http.StatusOK)
	caches := body["caches"].([]interface{})
	require.Len(t, caches, 1)
	c := caches[0].(map[string]interface{})
	assert.Equal(t, 32768.0, c["size_bytes"])
	assert.Equal(t, "Data", c["type"])
}

func TestLeaf(t *testing.T) {
	ts := newTestServer(t)

	body := getJSON(t, ts, "/api/leaf?leaf=0", http.StatusOK)
	assert.Equal(t, true, body["supported"])
	regs := body["registers"].(map[string]interface{})
	assert.Equal(t, float64(0x756e6547), regs["ebx"])

	body = getJSON(t, ts, "/api/leaf?leaf=0x4&subleaf=0", http.StatusOK)
	assert.Equal(t, 4.0, body["leaf"])
	assert.Equal(t, true, body["supported"])

	body = getJSON(t, ts, "/api/leaf?leaf=0x16", http.StatusOK)
	assert.Equal(t, false, body["supported"], "beyond the maximum leaf")
	assert.Equal(t, 0.0, body["registers"].(map[string]interface{})["eax"])
}

func TestLeafBadRequest(t *testing.T) {
	ts := newTestServer(t)
	for _, q := range []string{"", "?leaf=", "?leaf=banana", "?leaf=0x100000000", "?leaf=1&subleaf=-1"} {
		body := getJSON(t, ts, "/api/leaf"+q, http.StatusBadRequest)
		assert.Contains(t, body["error"], "invalid", q)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	resp, err := http.Post(newTestServer(t).URL+"/api/info", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	resp, err := http.Get(newTestServer(t).URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "cpudetect_logical_processors 8")
	assert.Contains(t, out, `cpudetect_feature{category="SIMD",name="AVX2"} 1`)
	assert.Contains(t, out, "cpudetect_detections_total")
}

func TestParseUint32(t *testing.T) {
	tests := map[string]uint32{"0": 0, "7": 7, "0x80000008": 0x80000008, "0X1f": 0x1F}
	for in, want := range tests {
		got, err := parseUint32(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "-1", "0x1_0000_0000", "leaf"} {
		_, err := parseUint32(in)
		assert.Error(t, err, in)
	}
}
