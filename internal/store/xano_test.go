package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/Rocksteady808/roolify-sub002/internal/models"
)

func newXanoServer(t *testing.T, handler http.HandlerFunc) *XanoStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewXanoStore(srv.URL+"/", "xano-key", time.Second)
}

func TestXanoStore_ResolveForm(t *testing.T) {
	s := newXanoServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/form/resolve", r.URL.Path)
		assert.Equal(t, "Bearer xano-key", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "site-abc", body["webflow_site_id"])
		assert.Equal(t, "wf-form-contact", body["form_id"])
		assert.Equal(t, "Contact", body["form_name"])

		w.Write([]byte(`{"id":10,"site_id":20,"html_form_id":"wf-form-contact","name":"Contact","created_at":1760000000000}`))
	})

	form, err := s.ResolveForm(context.Background(), models.FormRef{SiteID: "site-abc", FormID: " wf-form-contact ", FormName: "Contact"})
	require.NoError(t, err)
	assert.Equal(t, 10, form.ID)
	assert.Equal(t, 20, form.SiteID)
	assert.Equal(t, time.UnixMilli(1760000000000).UTC(), form.CreatedAt)
}

func TestXanoStore_CreateSubmission(t *testing.T) {
	s := newXanoServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/form_submission", r.URL.Path)

		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `{"Name":"Ada"}`, string(body["data"]))
		assert.JSONEq(t, `10`, string(body["form_id"]))

		w.Write([]byte(`{"id":99,"created_at":"2026-10-14T10:00:00Z"}`))
	})

	sub := &models.Submission{FormID: 10, SiteID: 20, Data: datatypes.JSON(`{"Name":"Ada"}`)}
	require.NoError(t, s.CreateSubmission(context.Background(), sub))
	assert.Equal(t, 99, sub.ID)
	assert.NotEqual(t, uuid.Nil, sub.PublicID)
	assert.Equal(t, time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC), sub.CreatedAt)
}

func TestXanoStore_ListSubmissions(t *testing.T) {
	publicID := uuid.New()
	s := newXanoServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("form_id"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "50", r.URL.Query().Get("offset"))
		w.Write([]byte(`{"items":[{"id":1,"public_id":"` + publicID.String() + `","form_id":10,"site_id":20,"data":{"a":"b"},"created_at":1760000000000}],"itemsTotal":51}`))
	})

	subs, total, err := s.ListSubmissions(context.Background(), 10, 25, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(51), total)
	require.Len(t, subs, 1)
	assert.Equal(t, publicID, subs[0].PublicID)
	assert.JSONEq(t, `{"a":"b"}`, string(subs[0].Data))
}

func TestXanoStore_GetSettings(t *testing.T) {
	s := newXanoServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notification_setting", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("form_id"))
		assert.Equal(t, "20", r.URL.Query().Get("site_id"))
		// Xano stores the route list double encoded
		w.Write([]byte(`{"id":5,"form_id":10,"site_id":20,"user_id":3,
			"admin_routes":"[{\"field\":\"Rep\",\"operator\":\"equals\",\"value\":\"Aaron\",\"recipients\":\"a@x.com\"}]",
			"admin_fallback_email":"b@y.com","updated_at":1760000000000}`))
	})

	settings, err := s.GetSettings(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 5, settings.ID)
	routes, err := settings.ParsedAdminRoutes()
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "a@x.com", routes[0].Recipients)
}

func TestXanoStore_GetSettings_NotFound(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"404": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		},
		"null body": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`null`))
		},
	} {
		t.Run(name, func(t *testing.T) {
			s := newXanoServer(t, handler)
			_, err := s.GetSettings(context.Background(), 10, 20)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestXanoStore_APIError(t *testing.T) {
	s := newXanoServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		http.Error(w, "boom", http.StatusBadGateway)
	})

	err := s.UpsertSettings(context.Background(), &models.NotificationSettings{FormID: 1, SiteID: 2, UserID: 3})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "/notification_setting/upsert", apiErr.Path)
	assert.Equal(t, "boom", apiErr.Body)
}

func TestXanoStore_DeleteSubmissionsBeforeUnsupported(t *testing.T) {
	s := NewXanoStore("https://example.xano.io/api:x", "", 0)
	_, err := s.DeleteSubmissionsBefore(context.Background(), time.Now())
	assert.ErrorIs(t, err, errors.ErrUnsupported)
}

func TestXanoStore_FindForm(t *testing.T) {
	s := newXanoServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/form/lookup", r.URL.Path)
		assert.Equal(t, "site-abc", r.URL.Query().Get("webflow_site_id"))

		switch r.URL.Query().Get("form_id") {
		case "contact":
			w.Write([]byte(`{"id":10,"site_id":20,"webflow_site_id":"site-abc","site_user_id":7,"html_form_id":"contact"}`))
		case "gone":
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
		default:
			w.Write([]byte(`null`))
		}
	})

	form, err := s.FindForm(context.Background(), models.FormRef{SiteID: "site-abc", FormID: "contact"})
	require.NoError(t, err)
	assert.Equal(t, 10, form.ID)
	assert.Equal(t, 20, form.Site.ID)
	assert.True(t, form.Site.OwnedBy(7))

	_, err = s.FindForm(context.Background(), models.FormRef{SiteID: "site-abc", FormID: "gone"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindForm(context.Background(), models.FormRef{SiteID: "site-abc", FormID: "other"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindForm(context.Background(), models.FormRef{SiteID: "site-abc"})
	assert.ErrorIs(t, err, ErrInvalidRef)
}

func TestXanoStore_ClaimSite(t *testing.T) {
	s := newXanoServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/site/claim", r.URL.Path)

		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]int{"site_id": 20, "user_id": 8}, body)

		w.Write([]byte(`{"id":20,"webflow_site_id":"site-abc","user_id":7}`))
	})

	site, err := s.ClaimSite(context.Background(), 20, 8)
	require.NoError(t, err)
	assert.Equal(t, "site-abc", site.WebflowSiteID)
	assert.True(t, site.OwnedBy(7))
}
