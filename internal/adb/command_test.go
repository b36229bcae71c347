package adb

import (
	"reflect"
	"testing"
)

func TestWithProgressFlag(t *testing.T) {
	tests := []struct {
		name string
		in   Command
		want Command
	}{
		{"pull", Command{"adb", "pull", "/sdcard/a", "."}, Command{"adb", "pull", "-p", "/sdcard/a", "."}},
		{"push", Command{"adb", "push", "a", "/sdcard/"}, Command{"adb", "push", "-p", "a", "/sdcard/"}},
		{"bound pull", Command{"adb", "-s", "emu", "pull", "/x", "."}, Command{"adb", "-s", "emu", "pull", "-p", "/x", "."}},
		{"already present", Command{"adb", "pull", "-p", "/x", "."}, Command{"adb", "pull", "-p", "/x", "."}},
		{"not a transfer", Command{"adb", "shell", "ls"}, Command{"adb", "shell", "ls"}},
		{"not adb", Command{"sh", "pull"}, Command{"sh", "pull"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := tt.in.Clone()
			got := tt.in.WithProgressFlag()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if !reflect.DeepEqual(tt.in, orig) {
				t.Errorf("Input was mutated: %v", tt.in)
			}
		})
	}
}

func TestSubcommand(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{Command{"adb", "devices"}, "devices"},
		{Command{"adb", "-s", "emulator-5554", "shell", "ls"}, "shell"},
		{Command{"adb", "-d", "install", "x.apk"}, "install"},
		{Command{"adb"}, ""},
		{Command{}, ""},
		{Command{"fastboot", "devices"}, ""},
	}
	for _, tt := range tests {
		if got := tt.cmd.Subcommand(); got != tt.want {
			t.Errorf("Subcommand(%v): expected %q, got %q", tt.cmd, tt.want, got)
		}
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name string
		got  Command
		want Command
	}{
		{"list", List("/sdcard"), Command{"adb", "shell", "ls", "-p", "/sdcard"}},
		{"remove quoted", Remove("/sdcard/My Files"), Command{"adb", "shell", "rm", "-rf", "'/sdcard/My Files'"}},
		{"move", Move("/sdcard/a", "/sdcard/b"), Command{"adb", "shell", "mv", "/sdcard/a", "/sdcard/b"}},
		{"mkdir", MakeDir("/sdcard/new"), Command{"adb", "shell", "mkdir", "-p", "/sdcard/new"}},
		{"copy", Copy("/sdcard/a", "/sdcard/b/a"), Command{"adb", "shell", "cp", "-r", "/sdcard/a", "/sdcard/b/a"}},
		{"stat", Stat("/sdcard/a"), Command{"adb", "shell", "ls", "-l", "/sdcard/a"}},
		{"md5", MD5("/sdcard/a.bin"), Command{"adb", "shell", "md5sum", "/sdcard/a.bin"}},
		{"getprop", GetProp(), Command{"adb", "shell", "getprop"}},
		{"install", Install("app.apk"), Command{"adb", "install", "app.apk"}},
		{"connect", Connect("192.168.1.5:5555"), Command{"adb", "connect", "192.168.1.5:5555"}},
		{"pair", Pair("192.168.1.5:37000", "123456"), Command{"adb", "pair", "192.168.1.5:37000", "123456"}},
		{"tcpip", TCPIP(5555), Command{"adb", "tcpip", "5555"}},
		{"pull", Pull("/sdcard/a", "/tmp"), Command{"adb", "pull", "/sdcard/a", "/tmp"}},
		{"push", Push("/tmp/a", "/sdcard/"), Command{"adb", "push", "/tmp/a", "/sdcard/"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"/sdcard/DCIM":      "/sdcard/DCIM",
		"/sdcard/My Photos": "'/sdcard/My Photos'",
		"it's":              `'it'\''s'`,
		"":                  "''",
		"a;rm -rf /":        "'a;rm -rf /'",
		"file$(id)":         "'file$(id)'",
	}
	for in, want := range tests {
		if got := Quote(in); got != want {
			t.Errorf("Quote(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestJoinRemote(t *testing.T) {
	if got := JoinRemote("/sdcard", "DCIM"); got != "/sdcard/DCIM" {
		t.Errorf("Expected /sdcard/DCIM, got %s", got)
	}
	if got := JoinRemote("/sdcard/", "../data"); got != "/data" {
		t.Errorf("Expected /data, got %s", got)
	}
	if got := JoinRemote("/sdcard", "/storage/x"); got != "/storage/x" {
		t.Errorf("Expected absolute name to win, got %s", got)
	}
}
