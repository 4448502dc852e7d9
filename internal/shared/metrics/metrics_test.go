package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHistogramBucketsAreCumulativeOnce(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	var buf bytes.Buffer
	writeHistogram(&buf, "x", "help", h.Snapshot())
	out := buf.String()

	for _, want := range []string{
		`x_bucket{le="10"} 1`,
		`x_bucket{le="100"} 2`,
		`x_bucket{le="+Inf"} 3`,
		`x_sum 555`,
		`x_count 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestHandlerRendersQuotaRejections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncQuotaRejection("summary")
	IncQuotaRejection("summary")
	IncQuotaRejection("question")

	router := gin.New()
	router.GET("/metrics", Handler())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	if !strings.Contains(body, `quota_rejections_total{kind="summary"} `) {
		t.Fatalf("missing summary rejections:\n%s", body)
	}
	if !strings.Contains(body, "# TYPE llm_calls_total counter") {
		t.Fatalf("missing llm counter:\n%s", body)
	}
	if strings.Index(body, `kind="question"`) > strings.Index(body, `kind="summary"`) {
		t.Fatalf("labels should be sorted:\n%s", body)
	}
}
