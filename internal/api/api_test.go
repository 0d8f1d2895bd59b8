package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoblinVrc/service-request-backend/internal/apperr"
	"github.com/GoblinVrc/service-request-backend/internal/identity"
	"github.com/GoblinVrc/service-request-backend/internal/models"
	"github.com/GoblinVrc/service-request-backend/internal/service"
)

// setGinTestMode ensures Gin does not write noisy logs during tests
func setGinTestMode() { gin.SetMode(gin.TestMode) }

type stubRequests struct {
	lastPrincipal models.Principal
	lastFilter    models.RequestListFilter
	lastStatus    models.UpdateStatusRequest
	err           error
}

func (s *stubRequests) Create(_ context.Context, p models.Principal, d models.ServiceRequestDraft) (*models.CreateRequestResponse, error) {
	s.lastPrincipal = p
	if s.err != nil {
		return nil, s.err
	}
	return &models.CreateRequestResponse{Success: true, RequestID: 7, RequestCode: "SR-" + d.CountryCode + "-1"}, nil
}

func (s *stubRequests) List(_ context.Context, p models.Principal, f models.RequestListFilter) ([]models.ServiceRequest, error) {
	s.lastPrincipal = p
	s.lastFilter = f
	if s.err != nil {
		return nil, s.err
	}
	return []models.ServiceRequest{}, nil
}

func (s *stubRequests) Get(_ context.Context, _ models.Principal, id int64) (*models.ServiceRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.ServiceRequest{ID: id, RequestCode: "SR-US-1"}, nil
}

func (s *stubRequests) UpdateStatus(_ context.Context, _ models.Principal, _ int64, body models.UpdateStatusRequest) (*models.UpdateStatusResponse, error) {
	s.lastStatus = body
	if s.err != nil {
		return nil, s.err
	}
	return &models.UpdateStatusResponse{Message: "Status updated successfully", NewStatus: models.RequestStatus(body.Status)}, nil
}

func (s *stubRequests) Activity(context.Context, models.Principal, int64) ([]models.ActivityLogEntry, error) {
	return []models.ActivityLogEntry{{ActivityType: models.ActivityCreated}}, s.err
}

type stubAttachments struct {
	requestID int64
	names     []string
	contents  []string
	file      string
}

func (s *stubAttachments) Upload(_ context.Context, _ models.Principal, requestID int64, files []service.FileUpload) (*models.UploadResponse, error) {
	s.requestID = requestID
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		s.names = append(s.names, f.Name)
		s.contents = append(s.contents, string(b))
	}
	return &models.UploadResponse{Message: "ok"}, nil
}

func (s *stubAttachments) DownloadURL(_ context.Context, _ models.Principal, requestID int64, file string) (*models.DownloadResponse, error) {
	s.requestID = requestID
	s.file = file
	return &models.DownloadResponse{DownloadURL: "https://blob.example/" + file}, nil
}

type stubAuth struct{}

func (stubAuth) Login(_ context.Context, email, password string) (*models.LoginResponse, error) {
	if password != "pw" {
		return nil, apperr.Unauthenticated("Invalid email or password")
	}
	return &models.LoginResponse{Email: email, Role: models.RoleCustomer, Token: "t"}, nil
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type testServer struct {
	router      *gin.Engine
	requests    *stubRequests
	attachments *stubAttachments
}

func newTestServer(t *testing.T, pinger Pinger) *testServer {
	t.Helper()
	setGinTestMode()
	ts := &testServer{requests: &stubRequests{}, attachments: &stubAttachments{}}
	h := NewHandler(Deps{
		Requests:    ts.requests,
		Attachments: ts.attachments,
		Auth:        stubAuth{},
		DB:          pinger,
	})
	r := gin.New()
	RegisterRoutes(r, h, &identity.TokenResolver{AllowDemo: true})
	ts.router = r
	return ts
}

var customer = models.Principal{Email: "buyer@clinic.example", Role: models.RoleCustomer, CustomerNumber: "C-1"}

func (ts *testServer) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+identity.EncodeDemoToken(customer))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLiveEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyReportsDatabaseFailure(t *testing.T) {
	ts := newTestServer(t, stubPinger{err: errors.New("connection refused")})
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, header := range []string{"", "Token abc", "Bearer"} {
		req := httptest.NewRequest(http.MethodGet, "/api/requests", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Equal(t, "Authentication required", decodeError(t, w).Error)
	}
}

func TestAuthMiddleware_SetsPrincipal(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(http.MethodGet, "/api/auth/me", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var p models.Principal
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "C-1", p.CustomerNumber)
}

func TestListPassesFiltersAndPrincipal(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(http.MethodGet, "/api/requests?status=Closed&from_date=2026-01-01&serial_number=SN", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
	assert.Equal(t, "Closed", ts.requests.lastFilter.Status)
	assert.Equal(t, "2026-01-01", ts.requests.lastFilter.FromDate)
	assert.Equal(t, "SN", ts.requests.lastFilter.SerialNumber)
	assert.Equal(t, "buyer@clinic.example", ts.requests.lastPrincipal.Email)
}

func TestErrorRendering(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		title   string
		message string
	}{
		{apperr.BadRequest("invalid status %q", "Lost").WithDetail("allowed", models.StatusStrings()), http.StatusBadRequest, "Invalid request", `invalid status "Lost"`},
		{apperr.Forbidden("request is outside your access scope"), http.StatusForbidden, "Access denied", "request is outside your access scope"},
		{apperr.Unauthorized("not registered"), http.StatusForbidden, "Not authorized", "not registered"},
		{apperr.NotFound("request 9 not found"), http.StatusNotFound, "Not found", "request 9 not found"},
		{apperr.Internal(errors.New("pq: deadlock"), "failed to list service requests"), http.StatusInternalServerError, "Internal error", "failed to list service requests"},
		{errors.New("boom"), http.StatusInternalServerError, "Internal error", "An unexpected error occurred"},
	}
	for _, tc := range cases {
		ts := newTestServer(t, nil)
		ts.requests.err = tc.err
		w := ts.do(http.MethodGet, "/api/requests", nil, "")
		assert.Equal(t, tc.status, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, tc.title, resp.Error)
		assert.Equal(t, tc.message, resp.Message)
	}
}

func TestErrorDetailsAreRendered(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.requests.err = apperr.BadRequest("invalid status").WithDetail("allowed", []string{"Open", "Closed"})
	w := ts.do(http.MethodPatch, "/api/requests/3/status", strings.NewReader(`{"status":"Bogus"}`), "application/json")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []interface{}{"Open", "Closed"}, decodeError(t, w).Details["allowed"])
}

func TestCreateRequest(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(http.MethodPost, "/api/requests", strings.NewReader(`{"request_type":"Serial","country_code":"US"}`), "application/json")
	require.Equal(t, http.StatusCreated, w.Code)

	var res models.CreateRequestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "SR-US-1", res.RequestCode)

	w = ts.do(http.MethodPost, "/api/intake/submit", strings.NewReader(`{not json`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatusBodyAndQuery(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(http.MethodPatch, "/api/requests/3/status", strings.NewReader(`{"status":"Received","note":"arrived"}`), "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.UpdateStatusRequest{Status: "Received", Note: "arrived"}, ts.requests.lastStatus)

	w = ts.do(http.MethodPatch, "/api/requests/3/status?new_status=In%20Progress", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "In Progress", ts.requests.lastStatus.Status)

	w = ts.do(http.MethodPatch, "/api/requests/abc/status?new_status=Closed", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadMultipart(t *testing.T) {
	ts := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("request_id", "12"))
	for _, name := range []string{"a.pdf", "b.png"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("content of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	w := ts.do(http.MethodPost, "/api/upload", &body, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, int64(12), ts.attachments.requestID)
	assert.Equal(t, []string{"a.pdf", "b.png"}, ts.attachments.names)
	assert.Equal(t, "content of b.png", ts.attachments.contents[1])
}

func TestUploadRequiresRequestID(t *testing.T) {
	ts := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files", "a.pdf")
	require.NoError(t, err)
	fw.Write([]byte("x"))
	require.NoError(t, mw.Close())

	w := ts.do(http.MethodPost, "/api/upload", &body, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownload(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(http.MethodGet, "/api/download/5/abc_report.pdf", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(5), ts.attachments.requestID)
	assert.Equal(t, "abc_report.pdf", ts.attachments.file)
	assert.Contains(t, w.Body.String(), "download_url")
}

func TestLoginIsPublic(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"buyer@clinic.example","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"buyer@clinic.example","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", decodeError(t, w).Message)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"not-an-email","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
