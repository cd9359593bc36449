package assess

import (
	"os"
	"path/filepath"
	"testing"
)

func samplePolicy(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "policyxml", "testdata", "sample_policy.xml"))
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	return string(data)
}

func TestCatalog_IsBroadPrincipal(t *testing.T) {
	c := DefaultCatalog()
	tests := []struct {
		principal string
		want      bool
	}{
		{"Everyone", true},
		{"everyone", true},
		{`CONTOSO\Domain Users`, true},
		{"S-1-5-11", true},
		{"S-1-5-32-545", true},
		{"S-1-1-0", true},
		{"PowerUsers", true}, // substring of "Users"
		{"S-1-5-18", false},
		{"Administrators", false},
		{"Unknown", false},
	}
	for _, tt := range tests {
		if got := c.IsBroadPrincipal(tt.principal); got != tt.want {
			t.Errorf("IsBroadPrincipal(%q) = %v, want %v", tt.principal, got, tt.want)
		}
	}
}

func TestCatalog_PathClassification(t *testing.T) {
	c := DefaultCatalog()
	tests := []struct {
		path      string
		writable  bool
		protected bool
		wildcard  bool
		driveRoot bool
	}{
		{path: `C:\Users\bob\AppData\Roaming\x.exe`, writable: true},
		{path: `C:\Users\bob\Downloads\x.exe`, writable: true},
		{path: `C:\Users\bob\Documents\x.exe`, writable: true},
		{path: `C:\Windows\Temp\x.exe`, writable: true},
		{path: `C:\`, writable: true, driveRoot: true},
		{path: `C:`, driveRoot: true},
		{path: `\\fileserver\share\tools\x.exe`, writable: true},
		{path: `C:\Windows\System32\cmd.exe`, protected: true},
		{path: `C:\Windows\SysWOW64\cmd.exe`, protected: true},
		{path: `C:\Windows\notepad.exe`, protected: true},
		{path: `C:\Program Files (x86)\App\a.exe`, protected: true},
		{path: `C:\Program Files\App\*.exe`, protected: true, wildcard: true},
		{path: `D:\Scripts\*.PS1`, wildcard: true},
		{path: `D:\*\tool.exe`, wildcard: true},
		{path: `D:\Tools\tool.exe`},
	}
	for _, tt := range tests {
		if got := c.IsUserWritable(tt.path); got != tt.writable {
			t.Errorf("IsUserWritable(%q) = %v, want %v", tt.path, got, tt.writable)
		}
		if got := c.IsProtected(tt.path); got != tt.protected {
			t.Errorf("IsProtected(%q) = %v, want %v", tt.path, got, tt.protected)
		}
		if got := c.HasDangerousWildcard(tt.path); got != tt.wildcard {
			t.Errorf("HasDangerousWildcard(%q) = %v, want %v", tt.path, got, tt.wildcard)
		}
		if got := c.IsDriveRoot(tt.path); got != tt.driveRoot {
			t.Errorf("IsDriveRoot(%q) = %v, want %v", tt.path, got, tt.driveRoot)
		}
	}
}

func TestUnderWindowsExceptTemp(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{`c:\windows\system32\x.exe`, true},
		{`c:\windows\temp\x.exe`, false},
		{`c:\windows\temporary\x.exe`, false},
		{`c:\windows\temp\windows\x.exe`, true},
		{`c:\program files\x.exe`, false},
	}
	for _, tt := range tests {
		if got := underWindowsExceptTemp(tt.path); got != tt.want {
			t.Errorf("underWindowsExceptTemp(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
