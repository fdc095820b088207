package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/akozadaev/go_vio_recommender/internal/encoder"
	"github.com/akozadaev/go_vio_recommender/internal/forest"
	"github.com/akozadaev/go_vio_recommender/internal/models"
	"github.com/akozadaev/go_vio_recommender/internal/normalize"
	"github.com/akozadaev/go_vio_recommender/internal/recommend"
	"github.com/akozadaev/go_vio_recommender/internal/storage"
)

// testRanker возвращает ранжировщик, где прогноз равен коду продукта плюс 0.5.
func testRanker(t *testing.T, products []models.Product, classes []string) *recommend.Ranker {
	t.Helper()

	nodes := []forest.Node{}
	// Лестница разбиений по признаку продукта: код i попадает в лист со значением i+0.5.
	var build func(lo, hi int) int32
	build = func(lo, hi int) int32 {
		id := int32(len(nodes))
		if lo == hi {
			nodes = append(nodes, forest.Node{Left: -1, Right: -1, Value: float64(lo) + 0.5})
			return id
		}
		nodes = append(nodes, forest.Node{Feature: 1, Threshold: float64(lo) + 0.5})
		left := build(lo, lo)
		right := build(lo+1, hi)
		nodes[id].Left = left
		nodes[id].Right = right
		return id
	}
	build(0, len(classes)-1)

	b := &recommend.Bundle{
		ID:        "artifact-1",
		TrainedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Encoder:   encoder.Fit(classes),
		Forest:    &forest.Forest{NFeatures: 2, Trees: []forest.Tree{{Nodes: nodes}}},
		Products:  products,
	}
	r, err := recommend.NewRanker(b, 2)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func defaultHandlers(t *testing.T) *Handlers {
	products := []models.Product{{Name: "A", ID: "1"}, {Name: "B", ID: "2"}, {Name: "C", ID: "3"}}
	return NewHandlers(testRanker(t, products, []string{"A", "B", "C"}), nil, nil, nil)
}

func TestRecommendProducts(t *testing.T) {
	h := defaultHandlers(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantIDs    []string
	}{
		{"default limit", `{"zip_code":"3435"}`, http.StatusOK, []string{"3", "2"}},
		{"explicit limit", `{"zip_code":"33435","limit":3}`, http.StatusOK, []string{"3", "2", "1"}},
		{"missing zip", `{}`, http.StatusBadRequest, nil},
		{"bad json", `{`, http.StatusBadRequest, nil},
		{"limit too large", `{"zip_code":"33435","limit":500}`, http.StatusBadRequest, nil},
		{"non numeric zip", `{"zip_code":"ABCDE"}`, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/products/recommend", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.RecommendProducts(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantIDs == nil {
				return
			}

			var resp models.RecommendResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.ArtifactID != "artifact-1" || resp.Total != len(tt.wantIDs) || len(resp.ZipCode) != 5 {
				t.Fatalf("response = %+v", resp)
			}
			for i, id := range tt.wantIDs {
				if resp.Products[i].ProductID != id {
					t.Errorf("product %d = %s, want %s", i, resp.Products[i].ProductID, id)
				}
			}
		})
	}
}

func TestRecommendProducts_UnknownProduct(t *testing.T) {
	products := []models.Product{{Name: "A", ID: "1"}, {Name: "Z", ID: "9"}}
	h := NewHandlers(testRanker(t, products, []string{"A", "B"}), nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/products/recommend", strings.NewReader(`{"zip_code":"33435"}`))
	rec := httptest.NewRecorder()
	h.RecommendProducts(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestForm(t *testing.T) {
	h := defaultHandlers(t)

	rec := httptest.NewRecorder()
	h.Form(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `name="zip_code"`) {
		t.Fatalf("GET / = %d: %s", rec.Code, rec.Body.String())
	}

	form := url.Values{"zip_code": {"33435"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.SubmitForm(rec, req)

	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("POST / = %d: %s", rec.Code, body)
	}
	for _, want := range []string{"Top 2 Recommended Products:", "2024 Compatible VIOs", "<td>C</td>", ">3<"} {
		if !strings.Contains(body, want) {
			t.Errorf("form result does not contain %q", want)
		}
	}
}

func TestForm_InvalidZip(t *testing.T) {
	h := defaultHandlers(t)

	form := url.Values{"zip_code": {"<script>"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.SubmitForm(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "valid numeric zip code") {
		t.Fatalf("missing user message: %s", body)
	}
	if strings.Contains(body, "<script>") {
		t.Fatal("user input is not escaped")
	}
}

type stubFamilies struct {
	families []models.EngineFamily
	err      error
}

func (s stubFamilies) GetEngineFamilies(context.Context) ([]models.EngineFamily, error) {
	return s.families, s.err
}

func TestGetFamilies(t *testing.T) {
	products := []models.Product{{Name: "A", ID: "1"}}
	ranker := testRanker(t, products, []string{"A"})

	t.Run("canonical", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandlers(ranker, nil, nil, nil).GetFamilies(rec, httptest.NewRequest(http.MethodGet, "/families", nil))

		var got []models.EngineFamily
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != len(normalize.Families) || got[0].Name != normalize.FamilyMP8 {
			t.Fatalf("families = %+v", got)
		}
	})

	t.Run("postgres", func(t *testing.T) {
		store := stubFamilies{families: []models.EngineFamily{{Name: "MP8", ProductCount: 4, ZipCount: 2}}}
		rec := httptest.NewRecorder()
		NewHandlers(ranker, nil, store, nil).GetFamilies(rec, httptest.NewRequest(http.MethodGet, "/families", nil))

		var got []models.EngineFamily
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0] != store.families[0] {
			t.Fatalf("families = %+v", got)
		}
	})

	t.Run("postgres error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandlers(ranker, nil, stubFamilies{err: errors.New("down")}, nil).GetFamilies(rec, httptest.NewRequest(http.MethodGet, "/families", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

type stubIndex struct {
	rows    []models.CompatibilityRow
	err     error
	lastZip string
}

func (s *stubIndex) GetCompatibilityByZip(_ context.Context, zip string, _ int) ([]models.CompatibilityRow, error) {
	s.lastZip = zip
	return s.rows, s.err
}

func TestGetZipCompatibility(t *testing.T) {
	ranker := testRanker(t, []models.Product{{Name: "A", ID: "1"}}, []string{"A"})

	call := func(h *Handlers, zip, query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/zips/"+zip+"/compatibility"+query, nil)
		req = mux.SetURLVars(req, map[string]string{"zip": zip})
		rec := httptest.NewRecorder()
		h.GetZipCompatibility(rec, req)
		return rec
	}

	if rec := call(NewHandlers(ranker, nil, nil, nil), "33435", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("disabled index: status = %d", rec.Code)
	}

	idx := &stubIndex{rows: []models.CompatibilityRow{{ProductID: "1", ZipCode: "03435", FleetSize: 6}}}
	h := NewHandlers(ranker, idx, nil, nil)

	if rec := call(h, "3435", ""); rec.Code != http.StatusOK || idx.lastZip != "03435" {
		t.Fatalf("status = %d, zip = %q", rec.Code, idx.lastZip)
	}
	if rec := call(h, "abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad zip: status = %d", rec.Code)
	}
	if rec := call(h, "33435", "?limit=0"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: status = %d", rec.Code)
	}

	idx.err = storage.ErrNotFound
	if rec := call(h, "33435", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("not found: status = %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	defaultHandlers(t).HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["status"] != "ok" || got["artifact_id"] != "artifact-1" || got["products"] != "3" {
		t.Fatalf("health = %v", got)
	}
}

type pingingFamilies struct {
	stubFamilies
	pingErr error
}

func (s pingingFamilies) Ping(context.Context) error { return s.pingErr }

func TestHealthCheck_Stores(t *testing.T) {
	products := []models.Product{{Name: "A", ID: "1"}}
	ranker := testRanker(t, products, []string{"A"})

	tests := []struct {
		name       string
		families   FamilyStore
		wantStatus string
		wantPG     string
	}{
		{"store without ping", stubFamilies{}, "ok", ""},
		{"reachable", pingingFamilies{}, "ok", "ok"},
		{"unreachable", pingingFamilies{pingErr: errors.New("connection refused")}, "degraded", "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHandlers(ranker, nil, tt.families, nil).HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status code = %d", rec.Code)
			}
			var got map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got["status"] != tt.wantStatus || got["postgres"] != tt.wantPG {
				t.Fatalf("health = %v", got)
			}
			if _, ok := got["elasticsearch"]; ok {
				t.Fatalf("disabled index reported: %v", got)
			}
		})
	}
}
