package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/prospect/backend/internal/records"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type stubRecord struct {
	ID       string `json:"_id"`
	CreateBy string `json:"createBy"`
	Name     string `json:"name"`
}

func (r stubRecord) RecordID() string      { return r.ID }
func (r stubRecord) RecordOwnerID() string { return r.CreateBy }

type stubPayload struct {
	Name string `json:"name"`
}

func (stubPayload) Validate() error { return nil }

func (p stubPayload) Build(meta records.Meta) stubRecord {
	return stubRecord{ID: meta.ID, CreateBy: meta.OwnerID, Name: p.Name}
}

type stubEntityService struct {
	err          error
	views        []records.View[stubRecord]
	outcome      records.Outcome
	lastFilter   records.Filter
	lastCallerID string
	lastIDs      []string
	lastPayload  stubPayload
}

func (s *stubEntityService) List(_ context.Context, filter records.Filter, callerID string) ([]records.View[stubRecord], error) {
	s.lastFilter, s.lastCallerID = filter, callerID
	return s.views, s.err
}

func (s *stubEntityService) Get(_ context.Context, id, callerID string) (records.View[stubRecord], error) {
	s.lastIDs, s.lastCallerID = []string{id}, callerID
	if s.err != nil {
		return records.View[stubRecord]{}, s.err
	}
	return records.View[stubRecord]{Record: stubRecord{ID: id, CreateBy: callerID}}, nil
}

func (s *stubEntityService) Create(_ context.Context, payload stubPayload, callerID string) (stubRecord, error) {
	s.lastPayload, s.lastCallerID = payload, callerID
	if s.err != nil {
		return stubRecord{}, s.err
	}
	return payload.Build(records.Meta{ID: "new-id", OwnerID: callerID}), nil
}

func (s *stubEntityService) Delete(_ context.Context, id, callerID string) (records.Outcome, error) {
	s.lastIDs, s.lastCallerID = []string{id}, callerID
	return s.outcome, s.err
}

func (s *stubEntityService) DeleteMany(_ context.Context, ids []string, callerID string) (records.Outcome, error) {
	s.lastIDs, s.lastCallerID = ids, callerID
	return s.outcome, s.err
}

func serveEntity(t *testing.T, service *stubEntityService, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api")
	api.Use(func(c *gin.Context) {
		c.Set(userIDContextKey, "caller-1")
		c.Next()
	})
	mountEntity[stubRecord, stubPayload](api, "widgets", service, zap.NewNop())

	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestEntityListPassesQueryFilter(t *testing.T) {
	service := &stubEntityService{views: []records.View[stubRecord]{}}
	recorder := serveEntity(t, service, http.MethodGet, "/api/widgets?location=Berlin&createBy=other", "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	if recorder.Body.String() != "[]" {
		t.Fatalf("expected empty array, got %s", recorder.Body.String())
	}
	if service.lastCallerID != "caller-1" {
		t.Fatalf("unexpected caller %q", service.lastCallerID)
	}
	if service.lastFilter["location"] != "Berlin" || service.lastFilter["createBy"] != "other" {
		t.Fatalf("unexpected filter %v", service.lastFilter)
	}
}

func TestEntityViewNotFound(t *testing.T) {
	service := &stubEntityService{err: fmt.Errorf("%w: missing", records.ErrRecordNotFound)}
	recorder := serveEntity(t, service, http.MethodGet, "/api/widgets/w-1", "")

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	if recorder.Body.String() != `{"message":"No Data Found."}` {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestEntityViewReturnsRecord(t *testing.T) {
	service := &stubEntityService{}
	recorder := serveEntity(t, service, http.MethodGet, "/api/widgets/w-1", "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"_id":"w-1"`) {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestEntityCreateRejectsMalformedBody(t *testing.T) {
	service := &stubEntityService{}
	recorder := serveEntity(t, service, http.MethodPost, "/api/widgets", "{not json")

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"code":"request.invalid_body"`) {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
	if service.lastCallerID != "" {
		t.Fatalf("service should not be called")
	}
}

func TestEntityCreateReturnsRecord(t *testing.T) {
	service := &stubEntityService{}
	recorder := serveEntity(t, service, http.MethodPost, "/api/widgets", `{"name":"gear","createBy":"someone-else"}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	if service.lastPayload.Name != "gear" {
		t.Fatalf("unexpected payload %+v", service.lastPayload)
	}
	if !strings.Contains(recorder.Body.String(), `"createBy":"caller-1"`) {
		t.Fatalf("expected caller to own the record, got %s", recorder.Body.String())
	}
}

func TestEntityErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		kind     string
		leakText string
	}{
		{"validation", fmt.Errorf("%w: name: cannot be blank", records.ErrValidation), http.StatusBadRequest, errorKindValidation, ""},
		{"unauthorized", fmt.Errorf("%w: ghost", records.ErrUnauthorizedIdentity), http.StatusUnauthorized, errorKindUnauthorized, ""},
		{"persistence", errors.New("disk I/O error at /var/lib/prospect.db"), http.StatusBadRequest, errorKindPersistence, "disk I/O"},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			service := &stubEntityService{err: testCase.err}
			recorder := serveEntity(t, service, http.MethodPost, "/api/widgets", `{"name":"gear"}`)

			if recorder.Code != testCase.status {
				t.Fatalf("unexpected status %d", recorder.Code)
			}
			if !strings.Contains(recorder.Body.String(), `"err":"`+testCase.kind+`"`) {
				t.Fatalf("unexpected body %s", recorder.Body.String())
			}
			if testCase.leakText != "" && strings.Contains(recorder.Body.String(), testCase.leakText) {
				t.Fatalf("store error leaked into body %s", recorder.Body.String())
			}
		})
	}
}

func TestEntityDeleteReportsOutcome(t *testing.T) {
	service := &stubEntityService{outcome: records.Outcome{Requested: 1, Matched: 1, Modified: 0}}
	recorder := serveEntity(t, service, http.MethodDelete, "/api/widgets/w-1", "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	expected := `{"message":"done","result":{"requested":1,"matched":1,"modified":0}}`
	if recorder.Body.String() != expected {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}

func TestEntityDeleteManyBindsIDArray(t *testing.T) {
	service := &stubEntityService{outcome: records.Outcome{Requested: 2, Matched: 1, Modified: 1}}
	recorder := serveEntity(t, service, http.MethodPost, "/api/widgets/delete-many", `["a","b"]`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	if len(service.lastIDs) != 2 || service.lastIDs[1] != "b" {
		t.Fatalf("unexpected ids %v", service.lastIDs)
	}

	invalid := serveEntity(t, service, http.MethodPost, "/api/widgets/delete-many", `{"ids":"a"}`)
	if invalid.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request for non-array body, got %d", invalid.Code)
	}
}
