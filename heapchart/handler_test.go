package heapchart_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/crypto/bcrypt"

	"github.com/heapchart/heapchart/heapchart"
	"github.com/heapchart/heapchart/heapchart/memorystorage"
	"github.com/heapchart/heapchart/heapchart/session"
)

const testReferer = "http://example.com/floors"

// testSite is a handler over fresh in-memory storage.
type testSite struct {
	t        *testing.T
	store    *memorystorage.Storage
	sessions *session.Store
	handler  *heapchart.Handler
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	store := memorystorage.New()
	sessions := session.New(session.Options{CleanupInterval: -1})
	t.Cleanup(func() { sessions.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testSite{
		t:        t,
		store:    store,
		sessions: sessions,
		handler:  heapchart.NewHandler(store, sessions, &heapchart.HandlerConfig{Logger: logger}),
	}
}

// request is one call against the site.
type request struct {
	method  string
	target  string
	form    url.Values
	cookie  *http.Cookie
	referer string
}

func (s *testSite) do(req request) *httptest.ResponseRecorder {
	s.t.Helper()
	var body io.Reader
	if req.form != nil {
		body = strings.NewReader(req.form.Encode())
	}
	r := httptest.NewRequest(req.method, req.target, body)
	if req.form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.cookie != nil {
		r.AddCookie(req.cookie)
	}
	if req.referer != "" {
		r.Header.Set("Referer", req.referer)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

// login creates a user directly in storage and signs in through the site.
func (s *testSite) login(name string) *http.Cookie {
	s.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		s.t.Fatal(err)
	}
	if _, err := s.store.CreateUser(context.Background(), name, string(hash)); err != nil {
		s.t.Fatal(err)
	}

	w := s.do(request{method: http.MethodPost, target: "/login", form: url.Values{
		"username": {name},
		"password": {"password123"},
	}})
	if w.Code != http.StatusSeeOther {
		s.t.Fatalf("login status = %d, body %s", w.Code, w.Body)
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	s.t.Fatal("login set no session cookie")
	return nil
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, status int, location string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body)
	}
	if got := w.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body)
	}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Code != code {
		t.Errorf("error code = %q, want %q", body.Code, code)
	}
	if body.Message == "" {
		t.Error("error message is empty")
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body, err)
	}
	return v
}

func floorNames(floors []heapchart.Floor) []string {
	names := make([]string, len(floors))
	for i, f := range floors {
		names[i] = f.Name
	}
	return names
}

func ptrTo[T any](v T) *T { return &v }

func TestHandler_RequiresLogin(t *testing.T) {
	site := newTestSite(t)

	for _, target := range []string{"/", "/libraries", "/floors", "/library/1", "/floor/new/edit", "/logout"} {
		t.Run(target, func(t *testing.T) {
			assertRedirect(t, site.do(request{method: http.MethodGet, target: target}), http.StatusSeeOther, "/login")
		})
	}

	for _, target := range []string{"/login", "/signup"} {
		t.Run(target, func(t *testing.T) {
			w := site.do(request{method: http.MethodGet, target: target})
			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", w.Code)
			}
		})
	}
}

func TestHandler_Signup(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantCode   string
	}{
		{
			name:       "success",
			form:       url.Values{"username": {"alice"}, "password": {"correct horse"}, "redundant_password": {"correct horse"}},
			wantStatus: http.StatusSeeOther,
		},
		{
			name:       "missing username",
			form:       url.Values{"password": {"correct horse"}, "redundant_password": {"correct horse"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
		},
		{
			name:       "short username",
			form:       url.Values{"username": {"al"}, "password": {"correct horse"}, "redundant_password": {"correct horse"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
		},
		{
			name:       "mismatched passwords",
			form:       url.Values{"username": {"alice"}, "password": {"correct horse"}, "redundant_password": {"battery staple"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
		},
		{
			name:       "short password",
			form:       url.Values{"username": {"alice"}, "password": {"short"}, "redundant_password": {"short"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := newTestSite(t)
			w := site.do(request{method: http.MethodPost, target: "/signup", form: tt.form})
			if tt.wantCode != "" {
				assertErrorCode(t, w, tt.wantStatus, tt.wantCode)
				return
			}
			assertRedirect(t, w, tt.wantStatus, "/login")
		})
	}
}

func TestHandler_SignupThenLogin(t *testing.T) {
	site := newTestSite(t)
	signup := url.Values{"username": {"alice"}, "password": {"correct horse"}, "redundant_password": {"correct horse"}}

	assertRedirect(t, site.do(request{method: http.MethodPost, target: "/signup", form: signup}), http.StatusSeeOther, "/login")
	assertErrorCode(t, site.do(request{method: http.MethodPost, target: "/signup", form: signup}), http.StatusConflict, "conflict")

	w := site.do(request{method: http.MethodPost, target: "/login", form: url.Values{
		"username": {"alice"}, "password": {"wrong password"},
	}})
	assertErrorCode(t, w, http.StatusUnauthorized, "unauthorized")

	w = site.do(request{method: http.MethodPost, target: "/login", form: url.Values{
		"username": {"nobody"}, "password": {"correct horse"},
	}})
	assertErrorCode(t, w, http.StatusUnauthorized, "unauthorized")

	w = site.do(request{method: http.MethodPost, target: "/login", form: url.Values{
		"username": {" alice "}, "password": {"correct horse"},
	}})
	assertRedirect(t, w, http.StatusSeeOther, "/")
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != session.DefaultCookieName || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}

	w = site.do(request{method: http.MethodGet, target: "/", cookie: cookies[0]})
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", w.Code)
	}
	dash := decode[struct {
		User *heapchart.User `json:"user"`
	}](t, w)
	if dash.User == nil || dash.User.Name != "alice" {
		t.Errorf("dashboard user = %+v", dash.User)
	}
	if strings.Contains(w.Body.String(), "$2a$") {
		t.Error("dashboard leaks the password hash")
	}

	// Signed-in users are sent away from the account forms.
	assertRedirect(t, site.do(request{method: http.MethodGet, target: "/login", cookie: cookies[0]}), http.StatusSeeOther, "/")
	assertRedirect(t, site.do(request{method: http.MethodGet, target: "/signup", cookie: cookies[0]}), http.StatusSeeOther, "/")
}

func TestHandler_Logout(t *testing.T) {
	site := newTestSite(t)
	cookie := site.login("alice")

	w := site.do(request{method: http.MethodGet, target: "/logout", cookie: cookie})
	assertErrorCode(t, w, http.StatusForbidden, "forbidden")

	w = site.do(request{method: http.MethodGet, target: "/logout", cookie: cookie, referer: "http://evil.example/"})
	assertErrorCode(t, w, http.StatusForbidden, "forbidden")

	w = site.do(request{method: http.MethodGet, target: "/logout", cookie: cookie, referer: testReferer})
	assertRedirect(t, w, http.StatusSeeOther, "/login")
	if site.sessions.Len() != 0 {
		t.Errorf("session survived logout")
	}

	assertRedirect(t, site.do(request{method: http.MethodGet, target: "/", cookie: cookie}), http.StatusSeeOther, "/login")
}

func TestHandler_SessionOfDeletedUser(t *testing.T) {
	site := newTestSite(t)
	token := site.sessions.Create(12345)
	cookie := &http.Cookie{Name: session.DefaultCookieName, Value: token}

	assertRedirect(t, site.do(request{method: http.MethodGet, target: "/", cookie: cookie}), http.StatusSeeOther, "/login")
	if _, ok := site.sessions.Lookup(token); ok {
		t.Error("session of missing user was not destroyed")
	}
}

func TestHandler_Libraries(t *testing.T) {
	site := newTestSite(t)
	cookie := site.login("alice")

	for _, name := range []string{"Branch 10", "Branch 9", "annex"} {
		w := site.do(request{method: http.MethodPost, target: "/library/new/edit", cookie: cookie, form: url.Values{"name": {name}}})
		assertRedirect(t, w, http.StatusSeeOther, "/libraries")
	}

	w := site.do(request{method: http.MethodPost, target: "/library/new/edit", cookie: cookie, form: url.Values{"name": {"  "}}})
	assertErrorCode(t, w, http.StatusBadRequest, "bad_request")
	w = site.do(request{method: http.MethodPost, target: "/library/NEW/edit", cookie: cookie, form: url.Values{"name": {"annex"}}})
	assertErrorCode(t, w, http.StatusConflict, "conflict")

	w = site.do(request{method: http.MethodGet, target: "/libraries", cookie: cookie})
	list := decode[struct {
		Libraries []heapchart.Library `json:"libraries"`
	}](t, w)
	var names []string
	for _, l := range list.Libraries {
		names = append(names, l.Name)
	}
	if diff := cmp.Diff([]string{"annex", "Branch 9", "Branch 10"}, names); diff != "" {
		t.Errorf("library order mismatch (-want +got):\n%s", diff)
	}

	first := list.Libraries[0]
	w = site.do(request{method: http.MethodPost, target: heapchart.LibraryPath(first.ID, "edit"), cookie: cookie, form: url.Values{"name": {"Annex"}}})
	assertRedirect(t, w, http.StatusSeeOther, "/libraries")
	got, err := site.store.Library(context.Background(), first.ID)
	if err != nil || got.Name != "Annex" {
		t.Errorf("after rename: %+v, %v", got, err)
	}
}

func TestHandler_LibraryPaths(t *testing.T) {
	site := newTestSite(t)
	cookie := site.login("alice")

	assertRedirect(t, site.do(request{method: http.MethodGet, target: "/library/new", cookie: cookie}),
		http.StatusMovedPermanently, "/library/new/edit")
	assertErrorCode(t, site.do(request{method: http.MethodGet, target: "/library/abc", cookie: cookie}),
		http.StatusBadRequest, "bad_request")
	assertErrorCode(t, site.do(request{method: http.MethodGet, target: "/library/-1", cookie: cookie}),
		http.StatusBadRequest, "bad_request")
	assertErrorCode(t, site.do(request{method: http.MethodGet, target: "/library/999", cookie: cookie}),
		http.StatusNotFound, "not_found")

	w := site.do(request{method: http.MethodGet, target: "/library/new/edit", cookie: cookie})
	form := decode[struct {
		Action string   `json:"action"`
		Fields []string `json:"fields"`
	}](t, w)
	if form.Action != "/library/new/edit" || !cmp.Equal(form.Fields, []string{"name"}) {
		t.Errorf("new library form = %+v", form)
	}

	w = site.do(request{method: http.MethodGet, target: "/library/new/delete", cookie: cookie})
	if w.Code != http.StatusOK || w.Body.String() != "Yes." {
		t.Errorf("delete form for new library = %d %q", w.Code, w.Body)
	}
}

func TestHandler_LibraryFloorsSorted(t *testing.T) {
	site := newTestSite(t)
	cookie := site.login("alice")
	ctx := context.Background()

	lib, _ := site.store.CreateLibrary(ctx, "Main")
	other, _ := site.store.CreateLibrary(ctx, "Other")
	add := func(libID heapchart.ID, name string, order *int64) {
		f, err := site.store.CreateFloor(ctx, heapchart.FloorAttrs{Name: name, Order: order})
		if err != nil {
			t.Fatal(err)
		}
		if err := site.store.AssignFloor(ctx, f.ID, &libID); err != nil {
			t.Fatal(err)
		}
	}
	add(lib.ID, "Annex", nil)
	add(lib.ID, "Floor 10", ptrTo[int64](1))
	add(lib.ID, "Floor 2", ptrTo[int64](1))
	add(lib.ID, "basement", ptrTo[int64](0))
	add(other.ID, "Elsewhere", nil)

	w := site.do(request{method: http.MethodGet, target: heapchart.LibraryPath(lib.ID, ""), cookie: cookie})
	page := decode[struct {
		Library heapchart.Library `json:"library"`
		Floors  []heapchart.Floor `json:"floors"`
	}](t, w)
	if page.Library.Name != "Main" {
		t.Errorf("library = %+v", page.Library)
	}
	want := []string{"basement", "Floor 2", "Floor 10", "Annex"}
	if diff := cmp.Diff(want, floorNames(page.Floors)); diff != "" {
		t.Errorf("floor order mismatch (-want +got):\n%s", diff)
	}

	w = site.do(request{method: http.MethodGet, target: heapchart.LibraryPath(lib.ID, "reorganize"), cookie: cookie})
	page = decode[struct {
		Library heapchart.Library `json:"library"`
		Floors  []heapchart.Floor `json:"floors"`
	}](t, w)
	if diff := cmp.Diff(want, floorNames(page.Floors)); diff != "" {
		t.Errorf("reorganize form order mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler_FloorsSort(t *testing.T) {
	site := newTestSite(t)
	cookie := site.login("alice")
	ctx := context.Background()

	zed, _ := site.store.CreateLibrary(ctx, "Zed")
	abc, _ := site.store.CreateLibrary(ctx, "abc")
	for _, f := range []struct {
		name  string
		lib   *heapchart.ID
		order *int64
	}{
		{"Floor 2", &zed.ID, nil},
		{"Floor 10", &abc.ID, ptrTo[int64](2)},
		{"Floor 1", &abc.ID, ptrTo[int64](3)},
		{"Loose", nil, nil},
	} {
		created, err := site.store.CreateFloor(ctx, heapchart.FloorAttrs{Name: f.name, Order: f.order})
		if err != nil {
			t.Fatal(err)
		}
		if f.lib != nil {
			if err := site.store.AssignFloor(ctx, created.ID, f.lib); err != nil {
				t.Fatal(err)
			}
		}
	}

	tests := []struct {
		target string
		want   []string
	}{
		{"/floors", []string{"Floor 10", "Floor 1", "Floor 2", "Loose"}},
		{"/floors?sort=floors", []string{"Floor 10", "Floor 1", "Floor 2", "Loose"}},
		{"/floors?sort=names", []string{"Floor 1", "Floor 2", "Floor 10", "Loose"}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := site.do(request{method: http.MethodGet, target: tt.target, cookie: cookie})
			got := decode[struct {
				Floors []heapchart.Floor `json:"floors"`
			}](t, w)
			if diff := cmp.Diff(tt.want, floorNames(got.Floors)); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}

	assertErrorCode(t, site.do(request{method: http.MethodGet, target: "/floors?sort=bogus", cookie: cookie}),
		http.StatusBadRequest, "bad_request")
}

func TestHandler_FloorEdit(t *testing.T) {
	site := newTestSite(t)
	cookie := site.login("alice")

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantCode   string
	}{
		{"create", url.Values{"name": {"Floor 1"}, "directions": {"left of the desk"}, "order": {"3"}}, http.StatusSeeOther, ""},
		{"create without order", url.Values{"name": {"Floor 2"}}, http.StatusSeeOther, ""},
		{"missing name", url.Values{"order": {"1"}}, http.StatusBadRequest, "bad_request"},
		{"negative order", url.Values{"name": {"Floor 3"}, "order": {"-1"}}, http.StatusBadRequest, "bad_request"},
		{"text order", url.Values{"name": {"Floor 3"}, "order": {"first"}}, http.StatusBadRequest, "bad_request"},
		{"duplicate name", url.Values{"name": {"Floor 1"}}, http.StatusConflict, "conflict"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := site.do(request{method: http.MethodPost, target: "/floor/new/edit", cookie: cookie, form: tt.form})
			if tt.wantCode != "" {
				assertErrorCode(t, w, tt.wantStatus, tt.wantCode)
				return
			}
			assertRedirect(t, w, tt.wantStatus, "/floors")
		})
	}

	floors, _ := site.store.Floors(context.Background())
	var floor heapchart.Floor
	for _, f := range floors {
		if f.Name == "Floor 1" {
			floor = f
		}
	}
	if floor.Order == nil || *floor.Order != 3 || floor.Directions != "left of the desk" {
		t.Fatalf("created floor = %+v", floor)
	}

	w := site.do(request{method: http.MethodPost, target: heapchart.FloorPath(floor.ID, "edit"), cookie: cookie,
		form: url.Values{"name": {"Ground"}, "order": {""}}})
	assertRedirect(t, w, http.StatusSeeOther, "/floors")

	w = site.do(request{method: http.MethodGet, target: heapchart.FloorPath(floor.ID, ""), cookie: cookie})
	got := decode[struct {
		Floor heapchart.Floor `json:"floor"`
	}](t, w)
	if got.Floor.Name != "Ground" || got.Floor.Order != nil || got.Floor.Directions != "" {
		t.Errorf("updated floor = %+v", got.Floor)
	}

	assertRedirect(t, site.do(request{method: http.MethodGet, target: "/floor/new", cookie: cookie}),
		http.StatusMovedPermanently, "/floor/new/edit")
}

func TestHandler_DeleteLibrary(t *testing.T) {
	for _, cascade := range []bool{false, true} {
		name := "unassign"
		if cascade {
			name = "cascade"
		}
		t.Run(name, func(t *testing.T) {
			site := newTestSite(t)
			cookie := site.login("alice")
			ctx := context.Background()

			lib, _ := site.store.CreateLibrary(ctx, "Main")
			floor, _ := site.store.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Stacks"})
			if err := site.store.AssignFloor(ctx, floor.ID, &lib.ID); err != nil {
				t.Fatal(err)
			}

			target := heapchart.LibraryPath(lib.ID, "delete")
			w := site.do(request{method: http.MethodPost, target: target, cookie: cookie, form: url.Values{"confirmation": {"yes"}}})
			assertRedirect(t, w, http.StatusSeeOther, target)
			if _, err := site.store.Library(ctx, lib.ID); err != nil {
				t.Fatalf("library deleted without confirmation: %v", err)
			}

			form := url.Values{"confirmation": {"confirmed!"}}
			if cascade {
				form.Set("cascade", "on")
			}
			w = site.do(request{method: http.MethodPost, target: target, cookie: cookie, form: form})
			assertRedirect(t, w, http.StatusSeeOther, "/libraries")

			got, err := site.store.Floor(ctx, floor.ID)
			if cascade {
				if err == nil {
					t.Errorf("floor survived cascade: %+v", got)
				}
				return
			}
			if err != nil || got.LibraryID != nil {
				t.Errorf("floor after delete = %+v, %v", got, err)
			}
		})
	}
}

func TestHandler_DeleteFloor(t *testing.T) {
	site := newTestSite(t)
	cookie := site.login("alice")
	ctx := context.Background()
	floor, _ := site.store.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Stacks"})

	w := site.do(request{method: http.MethodGet, target: "/floor/new/delete", cookie: cookie})
	if w.Body.String() != "Yes." {
		t.Errorf("delete form for new floor = %q", w.Body)
	}
	assertErrorCode(t, site.do(request{method: http.MethodPost, target: "/floor/new/delete", cookie: cookie, form: url.Values{}}),
		http.StatusBadRequest, "bad_request")

	target := heapchart.FloorPath(floor.ID, "delete")
	assertRedirect(t, site.do(request{method: http.MethodPost, target: target, cookie: cookie, form: url.Values{}}),
		http.StatusSeeOther, target)
	assertRedirect(t, site.do(request{method: http.MethodPost, target: target, cookie: cookie, form: url.Values{"confirmation": {"confirmed!"}}}),
		http.StatusSeeOther, "/floors")
	assertErrorCode(t, site.do(request{method: http.MethodGet, target: heapchart.FloorPath(floor.ID, ""), cookie: cookie}),
		http.StatusNotFound, "not_found")
}

func TestHandler_Reorganize(t *testing.T) {
	site := newTestSite(t)
	cookie := site.login("alice")
	ctx := context.Background()

	lib, _ := site.store.CreateLibrary(ctx, "Main")
	a, _ := site.store.CreateFloor(ctx, heapchart.FloorAttrs{Name: "A", Order: ptrTo[int64](1)})
	b, _ := site.store.CreateFloor(ctx, heapchart.FloorAttrs{Name: "B"})
	target := heapchart.LibraryPath(lib.ID, "reorganize")

	w := site.do(request{method: http.MethodPost, target: target, cookie: cookie, form: url.Values{
		"floor-" + a.ID.String(): {""},
		"floor-" + b.ID.String(): {"4"},
		"note":                   {"ignored"},
	}})
	assertRedirect(t, w, http.StatusSeeOther, heapchart.LibraryPath(lib.ID, ""))

	gotA, _ := site.store.Floor(ctx, a.ID)
	gotB, _ := site.store.Floor(ctx, b.ID)
	if gotA.Order != nil {
		t.Errorf("A order = %d, want none", *gotA.Order)
	}
	if gotB.Order == nil || *gotB.Order != 4 {
		t.Errorf("B order = %v, want 4", gotB.Order)
	}

	w = site.do(request{method: http.MethodPost, target: target, cookie: cookie, form: url.Values{
		"floor-" + a.ID.String(): {"x"},
	}})
	assertErrorCode(t, w, http.StatusBadRequest, "bad_request")

	w = site.do(request{method: http.MethodPost, target: target, cookie: cookie, form: url.Values{
		"floor-" + a.ID.String(): {"2"},
		"floor-99999":            {"1"},
	}})
	assertErrorCode(t, w, http.StatusNotFound, "not_found")
	if gotA, _ := site.store.Floor(ctx, a.ID); gotA.Order != nil {
		t.Errorf("failed reorganize changed A to %d", *gotA.Order)
	}

	assertErrorCode(t, site.do(request{method: http.MethodPost, target: "/library/new/reorganize", cookie: cookie, form: url.Values{}}),
		http.StatusBadRequest, "bad_request")
}

func TestHandler_AssignAndUnassign(t *testing.T) {
	site := newTestSite(t)
	cookie := site.login("alice")
	ctx := context.Background()

	lib, _ := site.store.CreateLibrary(ctx, "Main")
	floor, _ := site.store.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Stacks"})
	assign := heapchart.FloorPath(floor.ID, "assign")

	w := site.do(request{method: http.MethodGet, target: assign, cookie: cookie})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"Main"`) {
		t.Errorf("assign form = %d %s", w.Code, w.Body)
	}

	for _, bad := range []string{"", "new", "x1"} {
		w = site.do(request{method: http.MethodPost, target: assign, cookie: cookie, form: url.Values{"library": {bad}}})
		assertErrorCode(t, w, http.StatusBadRequest, "bad_request")
	}
	w = site.do(request{method: http.MethodPost, target: assign, cookie: cookie, form: url.Values{"library": {"99999"}}})
	assertErrorCode(t, w, http.StatusNotFound, "not_found")

	w = site.do(request{method: http.MethodPost, target: assign, cookie: cookie, form: url.Values{"library": {lib.ID.String()}}})
	assertRedirect(t, w, http.StatusSeeOther, "/floors")
	got, _ := site.store.Floor(ctx, floor.ID)
	if got.LibraryID == nil || *got.LibraryID != lib.ID {
		t.Fatalf("floor not assigned: %+v", got)
	}

	unassign := heapchart.FloorPath(floor.ID, "unassign")
	assertErrorCode(t, site.do(request{method: http.MethodGet, target: unassign, cookie: cookie}),
		http.StatusForbidden, "forbidden")

	back := "http://example.com" + heapchart.LibraryPath(lib.ID, "")
	w = site.do(request{method: http.MethodGet, target: unassign, cookie: cookie, referer: back})
	assertRedirect(t, w, http.StatusSeeOther, back)
	got, _ = site.store.Floor(ctx, floor.ID)
	if got.LibraryID != nil {
		t.Errorf("floor still assigned: %+v", got)
	}
}

func TestHandler_Dashboard(t *testing.T) {
	site := newTestSite(t)
	cookie := site.login("alice")
	ctx := context.Background()
	site.store.CreateLibrary(ctx, "Main")
	site.store.CreateFloor(ctx, heapchart.FloorAttrs{Name: "One"})
	site.store.CreateFloor(ctx, heapchart.FloorAttrs{Name: "Two"})

	w := site.do(request{method: http.MethodGet, target: "/", cookie: cookie})
	got := decode[struct {
		Libraries int `json:"libraries"`
		Floors    int `json:"floors"`
	}](t, w)
	if got.Libraries != 1 || got.Floors != 2 {
		t.Errorf("dashboard counts = %+v", got)
	}
}
