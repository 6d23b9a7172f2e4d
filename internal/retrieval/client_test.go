package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pipwine/pip/internal/models"
)

func TestSearchKnowledge(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"chunks": []KnowledgeChunk{
				{Heading: "TANNIN", Text: "Tannin adds structure.", Score: 0.9},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())
	chunks, err := client.SearchKnowledge(context.Background(), "what is tannin", 3)
	require.NoError(t, err)

	assert.Equal(t, "/v1/knowledge/search", gotPath)
	assert.Equal(t, "what is tannin", gotBody["query"])
	assert.Equal(t, float64(3), gotBody["top_k"])
	require.Len(t, chunks, 1)
	assert.Equal(t, "TANNIN", chunks[0].Heading)
}

func TestSearchKnowledgeDefaultsTopK(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"chunks": []}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())
	_, err := client.SearchKnowledge(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, float64(3), gotBody["top_k"])
}

func TestRecommend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/recommendations", r.URL.Path)
		var body struct {
			Preferences Preferences `json:"preferences"`
			TopN        int         `json:"top_n"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "red", body.Preferences.WineType)
		assert.Equal(t, 30.0, body.Preferences.BudgetMax)
		assert.Equal(t, 3, body.TopN)

		json.NewEncoder(w).Encode(map[string]any{
			"recommendations": []Recommendation{
				{Wine: models.Wine{ID: "w1", Name: "Opus One"}, RelevanceScore: 0.88, Explanation: "Bold."},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())
	recs, err := client.Recommend(context.Background(), Preferences{WineType: "red", BudgetMax: 30}, 3)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Opus One", recs[0].Wine.Name)
	assert.Equal(t, 0.88, recs[0].RelevanceScore)
}

func TestRecommendServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())
	_, err := client.Recommend(context.Background(), Preferences{}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
