package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDaemon_StartStopIntegration(t *testing.T) {
	tmpDir := t.TempDir()

	socketPath := filepath.Join(tmpDir, "pktbridge.sock")
	pidFile := filepath.Join(tmpDir, "pktbridge.pid")

	configPath := filepath.Join(tmpDir, "config.yml")
	configContent := `
pktbridge:
  control:
    socket: ` + socketPath + `
    pid_file: ` + pidFile + `

  dispatcher:
    queue_size: 100
    wait_timeout: 100ms

  metrics:
    enabled: false

  log:
    level: debug
    format: text
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	d, err := New(configPath, "", "")
	if err != nil {
		t.Fatalf("failed to create daemon: %v", err)
	}

	if d.socketPath != socketPath {
		t.Errorf("socket path not taken from config: got %s", d.socketPath)
	}

	if err := d.Start(); err != nil {
		t.Fatalf("failed to start daemon: %v", err)
	}

	// Verify PID file was created
	if _, err := os.Stat(pidFile); os.IsNotExist(err) {
		t.Errorf("PID file was not created: %s", pidFile)
	}

	// Give the UDS server a moment to bind
	time.Sleep(100 * time.Millisecond)
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		t.Errorf("UDS socket was not created: %s", socketPath)
	}

	runDone := make(chan error, 1)
	go func() {
		runDone <- d.Run()
	}()

	time.Sleep(100 * time.Millisecond)

	d.TriggerShutdown()

	select {
	case err := <-runDone:
		if err != nil {
			t.Errorf("daemon.Run() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop within timeout")
	}

	// Verify PID file was removed
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Errorf("PID file was not removed after shutdown: %s", pidFile)
	}

	// Verify socket was cleaned up
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("UDS socket was not removed after shutdown: %s", socketPath)
	}
}

func TestDaemon_Reload(t *testing.T) {
	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "config.yml")
	write := func(level string) {
		content := `
pktbridge:
  control:
    socket: ` + filepath.Join(tmpDir, "pktbridge.sock") + `
  metrics:
    enabled: false
  log:
    level: ` + level + `
    format: text
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}
	}

	write("info")

	d, err := New(configPath, "", "")
	if err != nil {
		t.Fatalf("failed to create daemon: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("failed to start daemon: %v", err)
	}
	defer d.Stop()

	write("debug")

	if err := d.Reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if d.config.Log.Level != "debug" {
		t.Errorf("log level not reloaded: got %s", d.config.Log.Level)
	}
}
