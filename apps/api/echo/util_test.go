package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// setup builds a server on top of a fresh in-memory DB; `opts` may tweak the config first.
func setup(t *testing.T, opts ...func(conf *core.Config)) (*Server, *testutil.Env) {
	t.Helper()
	env := testutil.NewEnv(t)
	for _, opt := range opts {
		opt(env.Conf)
	}
	srv := NewServer(ServerDeps{
		Conf:          env.Conf,
		Logger:        env.Logger,
		Validate:      env.Validate,
		Translator:    env.Translator,
		UserSvc:       env.UserSvc,
		AcademicSvc:   env.AcademicSvc,
		PeopleSvc:     env.PeopleSvc,
		AttendanceSvc: env.AttendanceSvc,
		ExamSvc:       env.ExamSvc,
		PaymentSvc:    env.PaymentSvc,
	})
	return srv, env
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, srv *Server, usr user.User) string {
	t.Helper()
	token, err := srv.auth.token(usr)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

// errResponse is the body sent for an error without per-field details.
func errResponse(t *testing.T, code int, msg string) []byte {
	return marchallObj(t, Response{Message: msg, Error: http.StatusText(code)})
}

func okResponse(t *testing.T, msg string, data interface{}, p ...core.Pagination) []byte {
	res := Response{Success: true, Message: msg, Data: data}
	if len(p) > 0 {
		res.Pagination = &p[0]
	}
	return marchallObj(t, res)
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
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, srv *Server, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

// do sends one request and decodes the envelope, `data` included when `data` is not nil.
func do(t *testing.T, srv *Server, method, path, token string, body interface{}, data interface{}) (int, Response) {
	t.Helper()
	var payload []byte
	if body != nil {
		payload = marchallObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, payload)
	srv.ServeHTTP(rec, req)

	var res struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	if data != nil && len(res.Data) > 0 {
		require.NoError(t, json.Unmarshal(res.Data, data), string(res.Data))
	}
	return rec.Code, res.Response
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func adminToken(t *testing.T, srv *Server, env *testutil.Env) string {
	t.Helper()
	return getToken(t, srv, env.CreateAdmin(t, "admin@shule.test"))
}
