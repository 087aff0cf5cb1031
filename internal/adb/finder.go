package adb

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultPort is MuMu instance 1, used when no device can be detected
const DefaultPort = "16416"

// FindADB attempts to locate the ADB executable
func FindADB(preferredPath string) (string, error) {
	if preferredPath != "" {
		candidates := []string{preferredPath, filepath.Join(preferredPath, "adb", adbBinary())}
		for _, p := range candidates {
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
		}
	}

	commonPaths := []string{
		// MuMu Player
		`C:\Program Files\Netease\MuMuPlayer-12.0\shell\adb.exe`,
		`C:\Program Files (x86)\Netease\MuMuPlayer-12.0\shell\adb.exe`,

		// Android SDK
		`C:\Android\sdk\platform-tools\adb.exe`,
		`${LOCALAPPDATA}\Android\Sdk\platform-tools\adb.exe`,
	}
	if runtime.GOOS != "windows" {
		commonPaths = []string{
			"/usr/bin/adb",
			"/usr/local/bin/adb",
			"${HOME}/Android/Sdk/platform-tools/adb",
		}
	}

	for _, path := range commonPaths {
		expanded := os.ExpandEnv(path)
		if _, err := os.Stat(expanded); err == nil {
			return expanded, nil
		}
	}

	if adbPath, err := exec.LookPath(adbBinary()); err == nil {
		return adbPath, nil
	}

	return "", fmt.Errorf("adb not found, please specify path in config")
}

func adbBinary() string {
	if runtime.GOOS == "windows" {
		return "adb.exe"
	}
	return "adb"
}

// commonPorts are MuMu instances 1-3 followed by the generic emulator port
var commonPorts = []string{"16416", "16448", "16480", "5555"}

// DetectPort finds a connected local emulator port, then falls back to
// trying the common ones.
func DetectPort(ctx context.Context, adbPath string, runner Runner) (string, error) {
	if runner == nil {
		runner = execRunner{}
	}

	output, err := runner.Run(ctx, adbPath, "devices")
	if err != nil {
		return "", err
	}
	if port, ok := parseDevices(string(output)); ok {
		return port, nil
	}

	for _, port := range commonPorts {
		out, err := runner.Run(ctx, adbPath, "connect", "127.0.0.1:"+port)
		if err == nil && strings.Contains(string(out), "connected to") {
			return port, nil
		}
	}

	return "", fmt.Errorf("could not detect emulator port")
}

// parseDevices returns the port of the first local device in `adb devices` output
func parseDevices(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[1] != "device" {
			continue
		}
		if port, ok := strings.CutPrefix(fields[0], "127.0.0.1:"); ok {
			return port, true
		}
	}
	return "", false
}

// ConnectADB finds adb, picks a port when none is given and connects
func ConnectADB(ctx context.Context, folderPath, port string) (*Controller, error) {
	adbPath, err := FindADB(folderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to find ADB: %w", err)
	}

	if port == "" {
		if port, err = DetectPort(ctx, adbPath, nil); err != nil {
			port = DefaultPort
		}
	}

	ctrl := NewController(adbPath, port)
	if err := ctrl.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to device: %w", err)
	}
	return ctrl, nil
}
