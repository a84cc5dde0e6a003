// Package fleettest runs an in-process fake of the fleet backend for tests.
// It mints real JWTs, enforces bearer auth on every route except the token
// exchange, and lets tests force failures per path.
package fleettest

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User mirrors the backend account shape.
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
}

// Printer is the minimal device shape the fake serves.
type Printer struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Model       string `json:"model"`
	IPAddress   string `json:"ip_address"`
	PrinterType string `json:"printer_type"`
	Status      string `json:"status"`
	IsOnline    bool   `json:"is_online"`
}

// Alert is the minimal alert shape the fake serves.
type Alert struct {
	ID       int    `json:"id"`
	Printer  int    `json:"printer"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Severity string `json:"severity"`
}

// Rule is the minimal alert rule shape the fake serves.
type Rule struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	TriggerType string `json:"trigger_type"`
	Severity    string `json:"severity"`
	IsActive    bool   `json:"is_active"`
}

type account struct {
	user     User
	password string
}

// Server is the fake backend. Create one with [New] and stop it with Close.
type Server struct {
	ts  *httptest.Server
	mux *http.ServeMux
	key []byte

	mu       sync.Mutex
	accounts map[string]*account
	printers map[int]*Printer
	alerts   map[int]*Alert
	rules    map[int]*Rule
	nextID   int
	requests map[string]int
	forced   map[string]int
}

func New() *Server {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("fleettest: generate signing key: %v", err))
	}

	s := &Server{
		mux:      http.NewServeMux(),
		key:      key,
		accounts: make(map[string]*account),
		printers: make(map[int]*Printer),
		alerts:   make(map[int]*Alert),
		rules:    make(map[int]*Rule),
		nextID:   1,
		requests: make(map[string]int),
		forced:   make(map[string]int),
	}
	s.routes()
	s.ts = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// URL is the API root to hand to the client under test.
func (s *Server) URL() string {
	return s.ts.URL + "/api"
}

func (s *Server) Close() {
	s.ts.Close()
}

// AddUser registers an account the token exchange will accept.
func (s *Server) AddUser(u User, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID
		s.nextID++
	}
	s.accounts[u.Username] = &account{user: u, password: password}
}

// SeedPrinters loads devices into the fake fleet.
func (s *Server) SeedPrinters(printers ...Printer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range printers {
		if p.ID == 0 {
			p.ID = s.nextID
			s.nextID++
		}
		cp := p
		s.printers[p.ID] = &cp
	}
}

// SeedAlerts loads alerts into the fake fleet.
func (s *Server) SeedAlerts(alerts ...Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range alerts {
		if a.ID == 0 {
			a.ID = s.nextID
			s.nextID++
		}
		ca := a
		s.alerts[a.ID] = &ca
	}
}

// IssueToken mints a valid access token for username, for seeding a token
// slot before boot. A negative ttl produces an expired token.
func (s *Server) IssueToken(username string, ttl time.Duration) string {
	return s.mint(username, "access", ttl)
}

// ForceStatus makes every request to path (without the /api prefix) answer
// with status until cleared with status 0.
func (s *Server) ForceStatus(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.forced, path)
		return
	}
	s.forced[path] = status
}

// Requests reports how many times path (without the /api prefix) was hit,
// including forced-failure responses.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")

	s.mu.Lock()
	s.requests[path]++
	forced := s.forced[path]
	s.mu.Unlock()

	if forced != 0 {
		writeJSON(w, forced, map[string]string{"detail": "forced failure"})
		return
	}

	if path != "/auth/token/" && path != "/auth/refresh/" {
		if _, ok := s.authenticate(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token invalid or expired"})
			return
		}
	}

	s.mux.ServeHTTP(w, r)
}

func (s *Server) authenticate(r *http.Request) (*User, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return nil, false
	}
	username, ok := s.verify(raw, "access")
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[username]
	if !ok {
		return nil, false
	}
	u := acct.user
	return &u, true
}

func (s *Server) verify(raw, wantType string) (string, bool) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	if typ, _ := claims["typ"].(string); typ != wantType {
		return "", false
	}
	username, _ := claims["sub"].(string)
	return username, username != ""
}

func (s *Server) mint(username, typ string, ttl time.Duration) string {
	// jti keeps tokens minted within the same second distinct.
	claims := jwt.MapClaims{
		"sub": username,
		"typ": typ,
		"exp": time.Now().Add(ttl).Unix(),
		"jti": strconv.FormatInt(time.Now().UnixNano(), 36),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		panic(fmt.Sprintf("fleettest: sign token: %v", err))
	}
	return signed
}

/*
====================================
ROUTES
====================================
*/

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/auth/token/{$}", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/logout/{$}", s.handleLogout)
	s.mux.HandleFunc("POST /api/auth/refresh/{$}", s.handleRefresh)

	s.mux.HandleFunc("GET /api/users/profile/{$}", s.handleProfile)
	s.mux.HandleFunc("PATCH /api/users/profile/{$}", s.handleProfileUpdate)
	s.mux.HandleFunc("POST /api/users/change_password/{$}", s.handleChangePassword)

	s.mux.HandleFunc("GET /api/printers/{$}", s.handlePrinterList)
	s.mux.HandleFunc("POST /api/printers/{$}", s.handlePrinterCreate)
	s.mux.HandleFunc("GET /api/printers/statistics/{$}", s.handlePrinterStats)
	s.mux.HandleFunc("POST /api/printers/discover/{$}", s.handleDiscover)
	s.mux.HandleFunc("GET /api/printers/{id}/{$}", s.handlePrinterGet)
	s.mux.HandleFunc("PATCH /api/printers/{id}/{$}", s.handlePrinterPatch)
	s.mux.HandleFunc("DELETE /api/printers/{id}/{$}", s.handlePrinterDelete)
	s.mux.HandleFunc("POST /api/printers/{id}/test_connection/{$}", s.handleTestConnection)
	s.mux.HandleFunc("POST /api/printers/{id}/refresh_supplies/{$}", s.handleRefreshSupplies)

	s.mux.HandleFunc("GET /api/alerts/{$}", s.handleAlertList)
	s.mux.HandleFunc("GET /api/alerts/statistics/{$}", s.handleAlertStats)
	s.mux.HandleFunc("POST /api/alerts/bulk_acknowledge/{$}", s.handleBulkAcknowledge)
	s.mux.HandleFunc("GET /api/alerts/rules/{$}", s.handleRuleList)
	s.mux.HandleFunc("POST /api/alerts/rules/{$}", s.handleRuleCreate)
	s.mux.HandleFunc("PATCH /api/alerts/rules/{id}/{$}", s.handleRulePatch)
	s.mux.HandleFunc("DELETE /api/alerts/rules/{id}/{$}", s.handleRuleDelete)
	s.mux.HandleFunc("POST /api/alerts/rules/{id}/test/{$}", s.handleRuleTest)
	s.mux.HandleFunc("GET /api/alerts/{id}/{$}", s.handleAlertGet)
	s.mux.HandleFunc("POST /api/alerts/{id}/acknowledge/{$}", s.handleAcknowledge)
	s.mux.HandleFunc("POST /api/alerts/{id}/resolve/{$}", s.handleResolve)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	acct, ok := s.accounts[body.Username]
	s.mu.Unlock()
	if !ok || acct.password != body.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid username or password"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  s.mint(body.Username, "access", time.Hour),
		"refresh_token": s.mint(body.Username, "refresh", 24*time.Hour),
		"user":          acct.user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	username, ok := s.verify(body.RefreshToken, "refresh")
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "refresh token invalid"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  s.mint(username, "access", time.Hour),
		"refresh_token": s.mint(username, "refresh", 24*time.Hour),
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := s.authenticate(r)
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	u, _ := s.authenticate(r)
	var body struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	acct := s.accounts[u.Username]
	if body.Email != "" {
		acct.user.Email = body.Email
	}
	if body.FirstName != "" {
		acct.user.FirstName = body.FirstName
	}
	if body.LastName != "" {
		acct.user.LastName = body.LastName
	}
	updated := acct.user
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	u, _ := s.authenticate(r)
	var body struct {
		OldPassword     string `json:"old_password"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	acct := s.accounts[u.Username]
	if acct.password != body.OldPassword {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "old password is incorrect"})
		return
	}
	if body.NewPassword == "" || body.NewPassword != body.ConfirmPassword {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "passwords do not match"})
		return
	}
	acct.password = body.NewPassword
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}

/*
====================================
PRINTERS
====================================
*/

func (s *Server) handlePrinterList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	s.mu.Lock()
	results := make([]Printer, 0, len(s.printers))
	for _, p := range s.printers {
		if status != "" && p.Status != status {
			continue
		}
		results = append(results, *p)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handlePrinterCreate(w http.ResponseWriter, r *http.Request) {
	var p Printer
	_ = json.NewDecoder(r.Body).Decode(&p)
	if p.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "name is required"})
		return
	}

	s.mu.Lock()
	p.ID = s.nextID
	s.nextID++
	if p.Status == "" {
		p.Status = "active"
	}
	cp := p
	s.printers[p.ID] = &cp
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handlePrinterStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	total, active, offline := 0, 0, 0
	for _, p := range s.printers {
		total++
		switch p.Status {
		case "active":
			active++
		case "offline":
			offline++
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]int{
		"total_printers":   total,
		"active_printers":  active,
		"offline_printers": offline,
	})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"discovered_printers": []Printer{},
		"count":               0,
	})
}

func (s *Server) printerFromPath(w http.ResponseWriter, r *http.Request) (*Printer, bool) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	p, ok := s.printers[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "printer not found"})
		return nil, false
	}
	return p, true
}

func (s *Server) handlePrinterGet(w http.ResponseWriter, r *http.Request) {
	p, ok := s.printerFromPath(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out := *p
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePrinterPatch(w http.ResponseWriter, r *http.Request) {
	p, ok := s.printerFromPath(w, r)
	if !ok {
		return
	}
	var body struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	if body.Name != "" {
		p.Name = body.Name
	}
	if body.Status != "" {
		p.Status = body.Status
	}
	out := *p
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePrinterDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := s.printerFromPath(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	delete(s.printers, p.ID)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	p, ok := s.printerFromPath(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	connected := p.IsOnline
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": connected,
		"message":   "probe complete",
	})
}

func (s *Server) handleRefreshSupplies(w http.ResponseWriter, r *http.Request) {
	p, ok := s.printerFromPath(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out := *p
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

/*
====================================
ALERTS
====================================
*/

func (s *Server) handleAlertList(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	s.mu.Lock()
	results := make([]Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if status != "" && a.Status != status {
			continue
		}
		results = append(results, *a)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleAlertStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	total, fresh, resolved := 0, 0, 0
	for _, a := range s.alerts {
		total++
		switch a.Status {
		case "new":
			fresh++
		case "resolved":
			resolved++
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]int{
		"total_alerts":    total,
		"new_alerts":      fresh,
		"resolved_alerts": resolved,
	})
}

func (s *Server) alertFromPath(w http.ResponseWriter, r *http.Request) (*Alert, bool) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	a, ok := s.alerts[id]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "alert not found"})
		return nil, false
	}
	return a, true
}

func (s *Server) handleAlertGet(w http.ResponseWriter, r *http.Request) {
	a, ok := s.alertFromPath(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out := *a
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	a, ok := s.alertFromPath(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	a.Status = "acknowledged"
	out := *a
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	a, ok := s.alertFromPath(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	a.Status = "resolved"
	out := *a
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBulkAcknowledge(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AlertIDs []int `json:"alert_ids"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	for _, id := range body.AlertIDs {
		if a, ok := s.alerts[id]; ok {
			a.Status = "acknowledged"
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "acknowledged"})
}

func (s *Server) handleRuleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	results := make([]Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		results = append(results, *rule)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleRuleCreate(w http.ResponseWriter, r *http.Request) {
	var rule Rule
	_ = json.NewDecoder(r.Body).Decode(&rule)
	if rule.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "name is required"})
		return
	}

	s.mu.Lock()
	rule.ID = s.nextID
	s.nextID++
	cr := rule
	s.rules[rule.ID] = &cr
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleRulePatch(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	var body struct {
		Name     string `json:"name"`
		IsActive *bool  `json:"is_active"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	rule, ok := s.rules[id]
	if !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "rule not found"})
		return
	}
	if body.Name != "" {
		rule.Name = body.Name
	}
	if body.IsActive != nil {
		rule.IsActive = *body.IsActive
	}
	out := *rule
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRuleDelete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(r.PathValue("id"))
	s.mu.Lock()
	_, ok := s.rules[id]
	delete(s.rules, id)
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "rule not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRuleTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "rule evaluated"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
