package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestServer(t testing.TB) *Server {
	t.Helper()

	server := NewServer(setupTestConnector(t))
	server.port = 0
	return server
}

// post sends one request per connection so the limited listener frees its
// slot as soon as the response is written.
func post(server *Server, path, body string) (*http.Response, error) {
	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	return client.Post("http://"+server.Addr()+path, "application/json", strings.NewReader(body))
}

// waitForActiveRequest waits until a connection has been accepted and is
// being served.
func waitForActiveRequest(t *testing.T, server *Server) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if server.activeConnections() > 0 {
			time.Sleep(50 * time.Millisecond)
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("request never reached the server")
}

func TestServer_StartAndStop(t *testing.T) {
	server := newTestServer(t)

	if server.IsReady() {
		t.Error("Server should not be ready before Start()")
	}

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if !server.IsReady() {
		t.Error("Server should be ready after Start()")
	}

	addr := server.Addr()
	if addr == "" {
		t.Error("Server address should not be empty after Start()")
	}

	resp, err := http.Get("http://" + addr + "/v1/select")
	if err != nil {
		t.Fatalf("Failed to connect to server: %v", err)
	}
	resp.Body.Close()

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}

	if server.IsReady() {
		t.Error("Server should not be ready after Stop()")
	}

	time.Sleep(100 * time.Millisecond)

	_, err = http.Get("http://" + addr + "/v1/select")
	if err == nil {
		t.Error("Should not be able to connect after Stop()")
	}
}

func TestServer_GracefulShutdown(t *testing.T) {
	server := newTestServer(t)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	// Hold the connector so the request is still in flight when Stop begins.
	server.handler.mu.Lock()

	result := make(chan int, 1)
	go func() {
		resp, err := post(server, "/v1/value", `{"sql": "SELECT 1"}`)
		if err != nil {
			t.Errorf("Request failed: %v", err)
			result <- 0
			return
		}
		resp.Body.Close()
		result <- resp.StatusCode
	}()

	waitForActiveRequest(t, server)

	shutdownDone := make(chan struct{})
	go func() {
		server.Stop()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
		t.Fatal("Stop returned while a request was still waiting for the connector")
	case <-time.After(200 * time.Millisecond):
	}

	server.handler.mu.Unlock()

	if status := <-result; status != http.StatusOK {
		t.Errorf("Expected status 200, got %d", status)
	}

	select {
	case <-shutdownDone:
	case <-time.After(ShutdownTimeout + 5*time.Second):
		t.Error("Graceful shutdown took too long")
	}
}

func TestServer_SerializesConnectorAccess(t *testing.T) {
	server := newTestServer(t)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	server.handler.mu.Lock()

	done := make(chan int, 1)
	go func() {
		resp, err := post(server, "/v1/tables/users/rows", `{"values": {"name": "Queued", "email": "queued@example.com"}}`)
		if err != nil {
			t.Errorf("Request failed: %v", err)
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	select {
	case <-done:
		t.Fatal("Request completed while another request held the connector")
	case <-time.After(200 * time.Millisecond):
	}

	server.handler.mu.Unlock()

	select {
	case status := <-done:
		if status != http.StatusOK {
			t.Errorf("Expected status 200, got %d", status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Request did not complete after the connector was released")
	}
}

func TestServer_ConcurrentWritesThroughConnectionLimit(t *testing.T) {
	server := newTestServer(t)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	const writers = 3 * MaxConnections

	var wg sync.WaitGroup
	statuses := make(chan int, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body := fmt.Sprintf(`{"values": {"name": "writer%d", "email": "writer%d@example.com"}}`, i, i)
			resp, err := post(server, "/v1/tables/users/rows", body)
			if err != nil {
				t.Errorf("Request %d failed: %v", i, err)
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}(i)
	}
	wg.Wait()
	close(statuses)

	for status := range statuses {
		if status != http.StatusOK {
			t.Errorf("Expected status 200, got %d", status)
		}
	}

	resp, err := post(server, "/v1/count", `{"sql": "SELECT * FROM users"}`)
	if err != nil {
		t.Fatalf("Count request failed: %v", err)
	}
	defer resp.Body.Close()

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result.RowCount != writers {
		t.Errorf("Expected %d rows, got %d", writers, result.RowCount)
	}

	server.handler.mu.Lock()
	open := server.handler.conn.IsOpen()
	server.handler.mu.Unlock()
	if open {
		t.Error("Expected the connection to be released between requests")
	}
}

func TestServer_QueryExecution(t *testing.T) {
	server := newTestServer(t)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	insert, err := post(server, "/v1/tables/users/rows", `{"values": {"name": "Ada", "email": "ada@example.com", "age": 36}}`)
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	insert.Body.Close()
	if insert.Header.Get(RequestIDHeader) == "" {
		t.Error("Expected a generated request id on the response")
	}

	resp, err := post(server, "/v1/select", `{"sql": "SELECT name, age FROM users WHERE email = :email", "params": {"email": "ada@example.com"}}`)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if !result.Success {
		t.Error("Expected success=true")
	}

	if result.RowCount != 1 {
		t.Errorf("Expected rowCount=1, got %d", result.RowCount)
	}
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := newTestServer(t)

	if err := server.Stop(); err != nil {
		t.Errorf("Stop() on unstarted server should not error, got: %v", err)
	}
}

func TestServer_MultipleStops(t *testing.T) {
	server := newTestServer(t)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := server.Stop(); err != nil {
		t.Errorf("First Stop() failed: %v", err)
	}

	if err := server.Stop(); err != nil {
		t.Errorf("Second Stop() failed: %v", err)
	}
}

func TestServer_HTTPServerSettings(t *testing.T) {
	server := newTestServer(t)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	tests := []struct {
		name     string
		got      time.Duration
		expected time.Duration
	}{
		{"ReadTimeout", server.httpServer.ReadTimeout, ReadTimeout},
		{"WriteTimeout", server.httpServer.WriteTimeout, WriteTimeout},
		{"IdleTimeout", server.httpServer.IdleTimeout, IdleTimeout},
		{"ReadHeaderTimeout", server.httpServer.ReadHeaderTimeout, ReadHeaderTimeout},
	}
	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("%s = %v, expected %v", tt.name, tt.got, tt.expected)
		}
	}

	req, err := http.NewRequest(http.MethodPost, "http://"+server.Addr()+"/v1/value", strings.NewReader(`{"sql": "SELECT 1"}`))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set(RequestIDHeader, "settings-check")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "settings-check" {
		t.Errorf("Expected request id middleware on the live server, got %q", got)
	}
}

func TestServer_ListenAddress(t *testing.T) {
	server := newTestServer(t)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	addr := server.Addr()
	if addr == "" {
		t.Error("Server address should not be empty")
	}

	expectedPrefix := DefaultHost + ":"
	if len(addr) < len(expectedPrefix) || addr[:len(expectedPrefix)] != expectedPrefix {
		t.Errorf("Expected address to start with %s, got %s", expectedPrefix, addr)
	}
}

func TestServer_BindsToLocalhostOnly(t *testing.T) {
	server := newTestServer(t)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	addr := server.Addr()
	if !strings.HasPrefix(addr, "127.0.0.1:") {
		t.Errorf("Expected localhost binding (127.0.0.1:*), got: %s", addr)
	}

	if strings.HasPrefix(addr, "0.0.0.0:") {
		t.Error("Server should NOT bind to all interfaces (0.0.0.0)")
	}

	if strings.HasPrefix(addr, "::") {
		t.Error("Server should NOT bind to IPv6 all interfaces (::)")
	}
}

func TestServer_ReadinessCheck(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name     string
		action   func()
		expected bool
	}{
		{
			name:     "before start",
			action:   func() {},
			expected: false,
		},
		{
			name: "after start",
			action: func() {
				if err := server.Start(); err != nil {
					t.Fatalf("Failed to start: %v", err)
				}
				time.Sleep(100 * time.Millisecond)
			},
			expected: true,
		},
		{
			name: "after stop",
			action: func() {
				if err := server.Stop(); err != nil {
					t.Fatalf("Failed to stop: %v", err)
				}
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.action()
			if ready := server.IsReady(); ready != tt.expected {
				t.Errorf("IsReady() = %v, expected %v", ready, tt.expected)
			}
		})
	}
}

func TestLimitedListener_Functionality(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}
	defer listener.Close()

	limitListener := &limitedListener{
		Listener:       listener,
		maxConnections: 2,
		semaphore:      make(chan struct{}, 2),
	}

	addr := listener.Addr().String()

	conn1, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("First connection failed: %v", err)
	}
	defer conn1.Close()

	acceptedConn1, err := limitListener.Accept()
	if err != nil {
		t.Fatalf("First accept failed: %v", err)
	}
	defer acceptedConn1.Close()

	conn2, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Second connection failed: %v", err)
	}
	defer conn2.Close()

	acceptedConn2, err := limitListener.Accept()
	if err != nil {
		t.Fatalf("Second accept failed: %v", err)
	}
	defer acceptedConn2.Close()

	conn3, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Third connection failed: %v", err)
	}
	defer conn3.Close()

	accept3Done := make(chan bool)
	go func() {
		acceptedConn3, err := limitListener.Accept()
		if err == nil {
			acceptedConn3.Close()
			accept3Done <- true
		} else {
			accept3Done <- false
		}
	}()

	select {
	case <-accept3Done:
		t.Error("Third Accept() should block when limit reached")
	case <-time.After(200 * time.Millisecond):
	}

	if got := limitListener.active.Load(); got != 2 {
		t.Errorf("Expected 2 active connections at the limit, got %d", got)
	}

	if err := acceptedConn1.Close(); err != nil {
		t.Errorf("Failed to close first connection: %v", err)
	}

	select {
	case success := <-accept3Done:
		if !success {
			t.Error("Third Accept() should succeed after slot freed")
		}
	case <-time.After(2 * time.Second):
		t.Error("Third Accept() should complete after slot freed")
	}
}

func TestLimitedConn_Close(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to create listener: %v", err)
	}
	defer listener.Close()

	semaphore := make(chan struct{}, 1)
	semaphore <- struct{}{}

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}

	limitConn := &limitedConn{
		Conn:      conn,
		semaphore: semaphore,
		released:  false,
	}

	if len(semaphore) != 1 {
		t.Errorf("Expected semaphore to have 1 item before close, got %d", len(semaphore))
	}

	if err := limitConn.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if len(semaphore) != 0 {
		t.Errorf("Expected semaphore to be empty after close, got %d", len(semaphore))
	}

	if err := limitConn.Close(); err != nil {
		t.Errorf("Second close should not error: %v", err)
	}
}

func TestServer_Constants(t *testing.T) {
	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"DefaultHost", DefaultHost, "127.0.0.1"},
		{"DefaultPort", DefaultPort, 5174},
		{"MaxConnections", MaxConnections, 2},
		{"ReadTimeout", ReadTimeout, 10 * time.Second},
		{"WriteTimeout", WriteTimeout, 10 * time.Second},
		{"IdleTimeout", IdleTimeout, 30 * time.Second},
		{"ShutdownTimeout", ShutdownTimeout, 30 * time.Second},
		{"ReadHeaderTimeout", ReadHeaderTimeout, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, expected %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func BenchmarkNewServer(b *testing.B) {
	conn := setupTestConnector(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NewServer(conn)
	}
}

func BenchmarkServer_IsReady(b *testing.B) {
	server := newTestServer(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = server.IsReady()
	}
}

func TestGetPort(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{"", DefaultPort},
		{"8080", 8080},
		{"0", 0},
		{"not-a-port", DefaultPort},
		{"70000", DefaultPort},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("CONNECTOR_PORT", tt.env)
			if got := GetPort(); got != tt.want {
				t.Errorf("GetPort() with %q = %d, want %d", tt.env, got, tt.want)
			}
		})
	}
}

func TestGetBindHost(t *testing.T) {
	t.Setenv("CONNECTOR_BIND_HOST", "")
	if got := GetBindHost(); got != DefaultHost {
		t.Errorf("GetBindHost() = %s, want %s", got, DefaultHost)
	}

	t.Setenv("CONNECTOR_BIND_HOST", "0.0.0.0")
	if got := GetBindHost(); got != "0.0.0.0" {
		t.Errorf("GetBindHost() = %s, want 0.0.0.0", got)
	}
}
