// Package mockcatalog runs an in-process imitation of the catalog service
// for tests: cookie login, logout and basicspacedata queries with injectable
// failures.
package mockcatalog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const sessionCookie = "chocolatechip"

const queryPrefix = "/basicspacedata/query/class/"

// Server simulates the catalog endpoints.
type Server struct {
	server   *httptest.Server
	identity string
	password string

	queryCount  int32
	loginCount  int32
	logoutCount int32

	mu          sync.RWMutex
	sessions    map[string]bool
	requireAuth bool
	records     map[string]string
	failures    []int
	delay       time.Duration
	paths       []string
}

// New starts a server that accepts identity and password. Queries need a
// session unless RequireAuth(false) is called.
func New(identity, password string) *Server {
	m := &Server{
		identity:    identity,
		password:    password,
		sessions:    make(map[string]bool),
		requireAuth: true,
		records:     make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ajaxauth/login", m.handleLogin)
	mux.HandleFunc("/ajaxauth/logout", m.handleLogout)
	mux.HandleFunc(queryPrefix, m.handleQuery)

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the base URL of the mock server
func (m *Server) URL() string {
	return m.server.URL
}

// Close shuts down the mock server
func (m *Server) Close() {
	m.server.Close()
}

// RequireAuth toggles the session check on queries.
func (m *Server) RequireAuth(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requireAuth = on
}

// SetRecords sets the json body returned for entity. The body is served as
// is, so invalid JSON can be injected.
func (m *Server) SetRecords(entity, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[entity] = body
}

// FailNext makes the next queries answer with the given status codes, one
// per request, in order.
func (m *Server) FailNext(codes ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, codes...)
}

// SetDelay holds every query response for d.
func (m *Server) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// ExpireSessions drops every session so the next query gets a 401.
func (m *Server) ExpireSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]bool)
}

// QueryCount returns the number of query requests received
func (m *Server) QueryCount() int { return int(atomic.LoadInt32(&m.queryCount)) }

// LoginCount returns the number of login attempts
func (m *Server) LoginCount() int { return int(atomic.LoadInt32(&m.loginCount)) }

// LogoutCount returns the number of logout requests
func (m *Server) LogoutCount() int { return int(atomic.LoadInt32(&m.logoutCount)) }

// Paths returns the decoded query paths in arrival order.
func (m *Server) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.paths...)
}

func (m *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.loginCount, 1)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if r.PostForm.Get("identity") != m.identity || r.PostForm.Get("password") != m.password {
		// the real service answers 200 with a failure body
		w.Write([]byte(`{"Login":"Failed"}`))
		return
	}

	token := uuid.NewString()
	m.mu.Lock()
	m.sessions[token] = true
	m.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/", HttpOnly: true})
	w.Write([]byte(`""`))
}

func (m *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.logoutCount, 1)

	if c, err := r.Cookie(sessionCookie); err == nil {
		m.mu.Lock()
		delete(m.sessions, c.Value)
		m.mu.Unlock()
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`"Successfully logged out"`))
}

func (m *Server) authorized(r *http.Request) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.requireAuth {
		return true
	}
	c, err := r.Cookie(sessionCookie)
	return err == nil && m.sessions[c.Value]
}

func (m *Server) nextFailure() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.failures) == 0 {
		return 0
	}
	code := m.failures[0]
	m.failures = m.failures[1:]
	return code
}

func (m *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&m.queryCount, 1)

	m.mu.Lock()
	m.paths = append(m.paths, r.URL.Path)
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if code := m.nextFailure(); code > 0 {
		w.WriteHeader(code)
		fmt.Fprintf(w, "Error %d", code)
		return
	}
	if !m.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "You must be logged in to complete this action"})
		return
	}

	entity, format := parsePath(strings.TrimPrefix(r.URL.Path, queryPrefix))

	switch format {
	case "json":
		m.mu.RLock()
		body, ok := m.records[entity]
		m.mu.RUnlock()
		if !ok {
			body = defaultRecords(entity)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	case "tle", "3le":
		w.Header().Set("Content-Type", "text/plain")
		if format == "3le" {
			w.Write([]byte("0 ISS (ZARYA)\r\n"))
		}
		w.Write([]byte(tleLine1 + "\r\n" + tleLine2 + "\r\n"))
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("NORAD_CAT_ID,OBJECT_NAME\r\n25544,ISS (ZARYA)\r\n"))
	case "xml", "html", "kvn":
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "<%s>%s</%s>", entity, format, entity)
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0x00, 0x01, 0x02, 0xff})
	}
}

const (
	tleLine1 = "1 25544U 98067A   24061.50000000  .00016717  00000-0  10270-3 0  9005"
	tleLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.72125391563537"
)

// parsePath pulls the class and format out of a query path.
func parsePath(path string) (entity, format string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) > 0 {
		entity = segments[0]
	}
	format = "json"
	for i := 1; i+1 < len(segments); i += 2 {
		if segments[i] == "format" {
			format = segments[i+1]
		}
	}
	return entity, format
}

func defaultRecords(entity string) string {
	return fmt.Sprintf(`[{"NORAD_CAT_ID":"25544","OBJECT_NAME":"ISS (ZARYA)","CLASS":%q,"TLE_LINE1":%q,"TLE_LINE2":%q}]`,
		entity, tleLine1, tleLine2)
}
