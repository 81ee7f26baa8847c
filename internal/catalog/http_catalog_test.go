package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPCatalog_ModelsAsSuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/equipment/models", r.URL.Path)
		assert.Equal(t, "AC Disconnect", r.URL.Query().Get("type"))
		assert.Equal(t, "EATON", r.URL.Query().Get("manufacturer"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{"id": 1, "model_number": "DG221URB", "amp_rating": 30},
			{"id": 2, "model_number": "DG222URB", "amp_rating": 60},
		}})
	}))
	defer srv.Close()

	c := NewHTTPCatalog(Options{BaseURL: srv.URL}, zap.NewNop())
	m, err := c.FindEquipment(context.Background(), "AC Disconnect", "EATON", "")
	require.NoError(t, err)
	assert.False(t, m.Matched())
	require.Len(t, m.Suggestions, 2)
	assert.Equal(t, "EATON", m.Suggestions[0].Manufacturer)
	assert.Equal(t, 60.0, m.Suggestions[1].AmpRating)
}

func TestHTTPCatalog_Validate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body validateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "IQ8PLUS-72-2-US", body.Model)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "matched",
			"match":  map[string]any{"manufacturer": "Enphase", "model_number": "IQ8PLUS-72-2-US"},
		})
	}))
	defer srv.Close()

	c := NewHTTPCatalog(Options{BaseURL: srv.URL, RatePerSec: 100}, nil)
	m, err := c.FindEquipment(context.Background(), "inverter", "Enphase", "IQ8PLUS-72-2-US")
	require.NoError(t, err)
	require.True(t, m.Matched())
	assert.Equal(t, "Enphase", m.Match.Manufacturer)
}

func TestHTTPCatalog_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPCatalog(Options{BaseURL: srv.URL}, zap.NewNop())
	_, err := c.FindEquipment(context.Background(), "PV Meter", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = c.FindEquipment(context.Background(), " ", "", "")
	assert.Error(t, err)
}

func TestHTTPUtilityRequirements_RetriesWithOriginalName(t *testing.T) {
	var queried []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		abbrev := r.URL.Query().Get("abbrev")
		queried = append(queried, abbrev)
		rows := []map[string]any{}
		if abbrev == "PSCo (Xcel Energy)" {
			rows = append(rows, map[string]any{
				"abbrev": "PSCo (Xcel Energy)", "utility": "Public Service Co of Colorado",
				"bos_1": "Production Meter", "bos_2": "Utility PV AC Disconnect", "bos_3": nil,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": rows})
	}))
	defer srv.Close()

	c := NewHTTPUtilityRequirements(Options{BaseURL: srv.URL}, zap.NewNop())
	reqs, err := c.Get(context.Background(), "PSCo (Xcel Energy)")
	require.NoError(t, err)
	assert.Equal(t, []string{"Xcel Energy", "PSCo (Xcel Energy)"}, queried)
	require.Len(t, reqs, 2)
	assert.Equal(t, "PV Meter", reqs[0].StandardType)
	assert.True(t, reqs[1].RequiresPOICheck)
}

func TestHTTPUtilityRequirements_NoRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewHTTPUtilityRequirements(Options{BaseURL: srv.URL}, zap.NewNop())
	reqs, err := c.Get(context.Background(), "APS")
	require.NoError(t, err)
	assert.Nil(t, reqs)
}
