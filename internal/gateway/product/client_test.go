package product

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

type catalogServer struct {
	mu       sync.Mutex
	requests []string
	bodies   []availabilityRequest
	status   map[string]int
}

func newCatalogServer(t *testing.T) (*catalogServer, *httptest.Server) {
	t.Helper()
	cs := &catalogServer{status: map[string]int{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		cs.record(r, nil)
		id := r.PathValue("id")
		if code, ok := cs.status[id]; ok {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "` + id + `",
			"name": "Blue Harbour",
			"price": 50.00,
			"artistId": "artist-7",
			"imageUrl": "https://img.example/blue.png",
			"stockQuantity": 10,
			"available": true,
			"medium": "oil",
			"style": "impressionism",
			"dimensions": {"length": 40.5, "width": 30, "unit": "cm"}
		}`))
	})
	mux.HandleFunc("PUT /api/products/{id}/{action}", func(w http.ResponseWriter, r *http.Request) {
		var body availabilityRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		cs.record(r, &body)
		if code, ok := cs.status[r.PathValue("id")+"/"+r.PathValue("action")]; ok {
			w.WriteHeader(code)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return cs, srv
}

func (cs *catalogServer) record(r *http.Request, body *availabilityRequest) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.requests = append(cs.requests, r.Method+" "+r.URL.Path)
	if body != nil {
		cs.bodies = append(cs.bodies, *body)
	}
}

func TestClient_GetProduct(t *testing.T) {
	_, srv := newCatalogServer(t)
	client := NewClient(srv.URL+"/", time.Second)

	p, err := client.GetProduct(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "Blue Harbour", p.Name)
	assert.Equal(t, "50", p.Price.String())
	assert.Equal(t, "artist-7", p.ArtistID)
	assert.True(t, p.Available)
	assert.Equal(t, 10, p.StockQuantity)
	require.NotNil(t, p.Dimensions)
	assert.Equal(t, "cm", p.Dimensions.Unit)
	require.NotNil(t, p.Dimensions.Length)
	assert.InDelta(t, 40.5, *p.Dimensions.Length, 0.0001)
}

func TestClient_GetProduct_IsAvailableField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "Sold", "price": "12.5", "isAvailable": false, "stockQuantity": 0}`))
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL, time.Second).GetProduct(context.Background(), "p9")
	require.NoError(t, err)
	assert.Equal(t, "p9", p.ID)
	assert.False(t, p.Available)
	assert.Nil(t, p.Dimensions)
}

func TestClient_GetProduct_Errors(t *testing.T) {
	cs, srv := newCatalogServer(t)
	cs.status["missing"] = http.StatusNotFound
	cs.status["broken"] = http.StatusInternalServerError
	client := NewClient(srv.URL, time.Second)

	_, err := client.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = client.GetProduct(context.Background(), "broken")
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestClient_ReserveRelease(t *testing.T) {
	cs, srv := newCatalogServer(t)
	client := NewClient(srv.URL, time.Second)

	require.NoError(t, client.Reserve(context.Background(), "p1"))
	require.NoError(t, client.Release(context.Background(), "p1"))

	assert.Equal(t, []string{
		"PUT /api/products/p1/reserve",
		"PUT /api/products/p1/release",
	}, cs.requests)
	assert.Equal(t, []availabilityRequest{{Available: false}, {Available: true}}, cs.bodies)
}

func TestClient_ReleaseAlreadyReleased(t *testing.T) {
	cs, srv := newCatalogServer(t)
	cs.status["p1/release"] = http.StatusConflict
	cs.status["p1/reserve"] = http.StatusConflict
	client := NewClient(srv.URL, time.Second)

	assert.NoError(t, client.Release(context.Background(), "p1"))
	assert.ErrorIs(t, client.Reserve(context.Background(), "p1"), domain.ErrGatewayUnavailable)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 20*time.Millisecond)
	err := client.Reserve(context.Background(), "p1")
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}
