package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGinMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/jobs/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET(MetricsPath, Handler())

	before := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/api/jobs/:id", "200"))
	for _, id := range []string{"1", "2", "3"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
	}
	after := testutil.ToFloat64(requestTotal.WithLabelValues(http.MethodGet, "/api/jobs/:id", "200"))
	if after-before != 3 {
		t.Fatalf("expected 3 requests recorded under the route template, got %v", after-before)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, MetricsPath, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "jobboard_http_requests_total") {
		t.Fatalf("metrics output misses http counter")
	}
}

func TestWorkflowCounters(t *testing.T) {
	before := testutil.ToFloat64(notificationEmails.WithLabelValues(EmailConfirmation, EmailFailed))
	ObserveEmail(EmailConfirmation, EmailFailed)
	if got := testutil.ToFloat64(notificationEmails.WithLabelValues(EmailConfirmation, EmailFailed)); got-before != 1 {
		t.Fatalf("email counter delta = %v", got-before)
	}

	before = testutil.ToFloat64(applicationsSubmitted.WithLabelValues(SubmissionDuplicate))
	ObserveSubmission(SubmissionDuplicate)
	if got := testutil.ToFloat64(applicationsSubmitted.WithLabelValues(SubmissionDuplicate)); got-before != 1 {
		t.Fatalf("submission counter delta = %v", got-before)
	}
}
