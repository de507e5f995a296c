package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryParams(t *testing.T) {
	q := From("PHQ").
		Eq("group_identifier", "P1").
		Gte("assessment_date", "2024-01-01").
		Lte("assessment_date", "2024-06-30").
		OrderBy("assessment_date", true).
		Range(0, 49)

	v, err := QueryParams(q)
	require.NoError(t, err)
	assert.Equal(t, "*", v.Get("select"))
	assert.Equal(t, "eq.P1", v.Get("group_identifier"))
	assert.Equal(t, []string{"gte.2024-01-01", "lte.2024-06-30"}, v["assessment_date"])
	assert.Equal(t, "assessment_date.desc.nullslast", v.Get("order"))
	assert.Equal(t, "50", v.Get("limit"))
	assert.Empty(t, v.Get("offset"))
}

func TestPostgRESTStore_Execute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/Patient Substance History", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "eq.P1", r.URL.Query().Get("group_identifier"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"group_identifier":"P1","substance":"Heroin","use_flag":1}]`))
	}))
	defer srv.Close()

	s := NewPostgREST(RESTOptions{BaseURL: srv.URL + "/", APIKey: "secret"})
	rows, err := s.Execute(context.Background(), From("Patient Substance History").Eq("group_identifier", "P1"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Heroin", rows[0]["substance"])
	assert.Equal(t, json.Number("1"), rows[0]["use_flag"])
}

func TestPostgRESTStore_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"relation \"public.NOPE\" does not exist"}`))
	}))
	defer srv.Close()

	s := NewPostgREST(RESTOptions{BaseURL: srv.URL, APIKey: "k"})
	_, err := s.Execute(context.Background(), From("NOPE"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "does not exist")
}

func TestPostgRESTStore_Ping(t *testing.T) {
	var gotLimit, gotSelect string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		gotSelect = r.URL.Query().Get("select")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	s := NewPostgREST(RESTOptions{BaseURL: srv.URL, PingTable: "PTSD", PingColumn: "group_identifier"})
	require.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, "1", gotLimit)
	assert.Equal(t, "group_identifier", gotSelect)
}
