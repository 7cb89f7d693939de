package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/tests"
)

var (
	ctxBg = context.Background()

	courses = []testutil.Course{
		{Code: "CS-101", Name: "Data Structures"},
		{Code: "CS-102", Name: "Algorithms"},
	}
	students = []testutil.Student{
		{RegNo: "REG001", Name: "Alice", Periods: map[string][2]int{"CS-101": {45, 60}, "CS-102": {30, 60}}},
		{RegNo: "REG002", Name: "Bob", Periods: map[string][2]int{"CS-101": {30, 60}, "CS-102": {40, 60}}},
		{RegNo: "REG003", Name: "Carol", Periods: map[string][2]int{"CS-101": {60, 60}}},
	}
)

func setup(t *testing.T, conf ...*core.Config) (*echoapi.Server, *attendance.Service) {
	t.Helper()
	return setupWithDB(t, nil, conf...)
}

func setupWithDB(t *testing.T, db core.DB, conf ...*core.Config) (*echoapi.Server, *attendance.Service) {
	t.Helper()

	cfg := core.NewTestConfig()
	if len(conf) > 0 {
		cfg = conf[0]
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	svc, _ := testutil.NewAttendanceService(t, cfg)
	server := echoapi.NewServer(echoapi.Deps{
		Conf:          cfg,
		Logger:        testutil.NewLogger(cfg),
		DB:            db,
		Validate:      validate,
		Translator:    translator,
		AttendanceSvc: svc,
	})
	return server, svc
}

type pinger struct {
	err error
}

func (p pinger) PingContext(context.Context) error { return p.err }

// seed stores the sample sheet through the service.
func seed(t *testing.T, svc attendance.ServiceInterface) {
	t.Helper()
	results := svc.Ingest(ctxBg, testutil.Upload("week1.csv", testutil.CSV(t, testutil.Sheet(courses, students))))
	if len(results) != 1 || !results[0].Success {
		t.Fatalf("seed() failed: %+v", results)
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

type uploadFile struct {
	name    string
	content []byte
}

func newUploadRequest(t *testing.T, files ...uploadFile) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		part, err := w.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatalf("newUploadRequest() failed: %v", err)
		}
		if _, err = part.Write(f.content); err != nil {
			t.Fatalf("newUploadRequest() failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("newUploadRequest() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, httptest.NewRecorder()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
