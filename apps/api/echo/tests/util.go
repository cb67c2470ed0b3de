package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/assets"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/otp"
	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/settings"
	"github.com/trezcool/ratiba/core/user"
	emailsvc "github.com/trezcool/ratiba/services/email"
	logsvc "github.com/trezcool/ratiba/services/logger"
	"github.com/trezcool/ratiba/storage/cache/memcache"
	dummydb "github.com/trezcool/ratiba/storage/database/dummy"
	testutil "github.com/trezcool/ratiba/tests"
)

const pwd = "Kx9#mPq2!z"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	app      *Server
	usrRepo  user.Repository
	profRepo profile.Repository
	setRepo  settings.Repository
	classes  schedule.Store
	mail     *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(assets.FS, assets.CommonPasswordsFile, logger)

	// set up DB & repos
	db := dummydb.Open()
	f := fixture{
		usrRepo:  dummydb.NewUserRepository(db),
		profRepo: dummydb.NewProfileRepository(db),
		setRepo:  dummydb.NewSettingsRepository(db),
		classes:  dummydb.NewClassRepository(db),
		mail:     testutil.NewEmailMock(conf),
	}

	// set up services
	cache := memcache.New(time.Hour)
	tokens := user.NewTokenIssuer(conf)
	profSvc := profile.NewService(f.profRepo)

	// set up server
	f.app = NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Tokens:         tokens,
		UserSvc:        user.NewService(f.usrRepo, profSvc, tokens, f.mail, logger),
		ProfileSvc:     profSvc,
		SettingsSvc:    settings.NewService(f.setRepo),
		OTPSvc:         otp.NewMailService(cache, f.mail, logger, otp.OptionsFromConfig(conf)),
		Swapper:        schedule.NewSwapper(f.classes, logger),
		Cache:          cache,
		DisableReqLogs: true,
	})
	return f
}

// createAccount adds an active user with a profile of role, and two-factor on when asked.
func (f fixture) createAccount(t *testing.T, email string, role profile.Role, twoFactor bool) user.User {
	t.Helper()
	usr := testutil.CreateUser(t, f.usrRepo, email, pwd, true)
	prof := testutil.CreateProfile(t, f.profRepo, usr.ID, role)
	if twoFactor {
		testutil.EnableTwoFactor(t, f.setRepo, prof.ID)
	}
	return usr
}

type httpErr struct {
	Error string `json:"error"`
}

type gateResp struct {
	State   string `json:"state"`
	Landing string `json:"landing"`
	Token   string `json:"token"`
	Warning string `json:"warning"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// client is one browser: it keeps its device cookie and its session token.
type client struct {
	t      *testing.T
	app    http.Handler
	device *http.Cookie
	token  string
}

func newClient(t *testing.T, app http.Handler) *client {
	return &client{t: t, app: app}
}

func (c *client) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()
	var data []byte
	if body != nil {
		data = marchallObj(c.t, body)
	}
	req, rec := newAuthRequest(method, path, c.token, data)
	if c.device != nil {
		req.AddCookie(c.device)
	}
	c.app.ServeHTTP(rec, req)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "device_id" {
			c.device = cookie
		}
	}
	return rec
}

func (c *client) signIn(email, password string, next ...string) (gateResp, int) {
	c.t.Helper()
	body := map[string]string{"email": email, "password": password}
	if len(next) > 0 {
		body["next"] = next[0]
	}
	rec := c.do(http.MethodPost, "/v1/auth/signin", body)
	var resp gateResp
	if rec.Code == http.StatusOK {
		unmarshall(c.t, rec, &resp)
		c.token = resp.Token
	}
	return resp, rec.Code
}

func (c *client) gate(method, path string, body interface{}) (gateResp, int) {
	c.t.Helper()
	rec := c.do(method, path, body)
	var resp gateResp
	if rec.Code == http.StatusOK {
		unmarshall(c.t, rec, &resp)
	}
	return resp, rec.Code
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

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshall() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
