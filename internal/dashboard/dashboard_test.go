package dashboard

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outcomeeval/internal/aggregate"
	"outcomeeval/internal/evaluate"
	"outcomeeval/internal/metrics"
	"outcomeeval/internal/report"
)

func init() { gin.SetMode(gin.TestMode) }

// seedRun writes a minimal finished run named "run1" under a temp dir.
func seedRun(t *testing.T) string {
	root := t.TempDir()
	runDir := filepath.Join(root, "run1")
	store, err := report.NewStore(runDir, nil)
	require.NoError(t, err)

	r := &evaluate.TrialResult{Model: "knn", Label: "anastomotic leak", Val: evaluate.ValMetrics{Scalars: map[string][]float64{}}}
	r.Test, err = metrics.Compute([]int{0, 1, 1, 0}, []float64{0.2, 0.7, 0.4, 0.1}, 0.5)
	require.NoError(t, err)
	for _, m := range metrics.ScalarNames() { r.Val.Scalars[m] = []float64{r.Test.Scalars[m]} }
	r.Val.Confusion = []metrics.Confusion{r.Test.Confusion}

	agg := aggregate.New(store, nil, nil)
	l := aggregate.NewLabelResults("anastomotic leak")
	require.NoError(t, l.Add(r))
	require.NoError(t, agg.Finalize(l))
	require.NoError(t, store.WriteSummary(report.Summary{RunID: "id-1", Dataset: "cohort", Started: time.Now(), Labels: []string{"anastomotic leak"}}))

	require.NoError(t, os.MkdirAll(filepath.Join(runDir, "anastomotic leak", "boxplots"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "anastomotic leak", "boxplots", "f1.png"), []byte("png"), 0o644))
	return root
}

func get(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(header) == 2 { req.Header.Set(header[0], header[1]) }
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestListAndGetRun(t *testing.T) {
	h := New(seedRun(t), "", nil).Router()

	w := get(t, h, "/runs")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runs []struct {
			Name  string `json:"name"`
			RunID string `json:"run_id"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "run1", list.Runs[0].Name)
	assert.Equal(t, "id-1", list.Runs[0].RunID)

	w = get(t, h, "/runs/run1")
	require.Equal(t, http.StatusOK, w.Code)
	var sum report.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.Equal(t, "cohort", sum.Dataset)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/missing").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/runs/..").Code)
}

func TestGetTable(t *testing.T) {
	h := New(seedRun(t), "", nil).Router()
	w := get(t, h, "/runs/run1/tables/accuracy")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Labels []string                       `json:"labels"`
		Values map[string]map[string]*float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"anastomotic_leak"}, body.Labels)
	require.NotNil(t, body.Values["knn"]["anastomotic_leak"])
	assert.Equal(t, 0.75, *body.Values["knn"]["anastomotic_leak"])

	w = get(t, h, "/runs/run1/tables/accuracy?format=csv")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "knn,0.75")

	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/run1/tables/unknown").Code)
}

func TestGetRecord(t *testing.T) {
	h := New(seedRun(t), "", nil).Router()
	w := get(t, h, "/runs/run1/labels/anastomotic%20leak/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	var rec aggregate.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, metrics.Confusion{{2, 0}, {1, 1}}, rec.Confusion["knn"].Test)

	w = get(t, h, "/runs/run1/labels/anastomotic%20leak/metrics?metric=confusion_matrix")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"knn":[[[[2,0],[1,1]]],[[2,0],[1,1]]]`)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/run1/labels/anastomotic%20leak/metrics?metric=nope").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/run1/labels/pneumonia/metrics").Code)
}

func TestGetFigure(t *testing.T) {
	h := New(seedRun(t), "", nil).Router()
	w := get(t, h, "/runs/run1/labels/anastomotic%20leak/figures/boxplots/f1.png")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "png", w.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/runs/run1/labels/anastomotic%20leak/figures/../../run.json").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/run1/labels/anastomotic%20leak/figures/val_roc.png").Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	h := New(seedRun(t), "secret", nil).Router()
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/runs").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/runs", "X-API-Key", "secret").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
}
