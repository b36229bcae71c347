// Package adb builds adb invocations and parses the tool's tabular output.
package adb

import (
	"path"
	"strconv"
	"strings"

	"github.com/adbfb/adbfb/internal/constants"
)

// Command is one adb invocation as an argument list, starting with the tool
// name. Commands are values: every method returns a new slice.
type Command []string

// New builds a command for the given adb arguments.
func New(args ...string) Command {
	cmd := make(Command, 0, len(args)+1)
	cmd = append(cmd, constants.ToolName)
	return append(cmd, args...)
}

// Clone returns an independent copy.
func (c Command) Clone() Command {
	if c == nil {
		return nil
	}
	out := make(Command, len(c))
	copy(out, c)
	return out
}

// Args returns the command as a plain argument list.
func (c Command) Args() []string {
	return []string(c)
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.Join(c, " ")
}

// subcommandIndex returns the position of the adb subcommand, skipping global
// options such as "-s <serial>". It returns -1 if there is none.
func (c Command) subcommandIndex() int {
	if len(c) == 0 || c[0] != constants.ToolName {
		return -1
	}
	for i := 1; i < len(c); i++ {
		switch c[i] {
		case "-s", "-t", "-H", "-P", "-L":
			i++ // option takes a value
		case "-a", "-d", "-e":
		default:
			return i
		}
	}
	return -1
}

// Subcommand returns the adb subcommand ("push", "shell", ...), or "".
func (c Command) Subcommand() string {
	if i := c.subcommandIndex(); i >= 0 {
		return c[i]
	}
	return ""
}

// IsTransfer reports whether the command is a push or pull.
func (c Command) IsTransfer() bool {
	sub := c.Subcommand()
	return sub == "push" || sub == "pull"
}

// WithProgressFlag returns a copy with "-p" right after push/pull so adb
// prints machine-readable progress. Other commands and commands that already
// carry the flag are returned as copies unchanged.
func (c Command) WithProgressFlag() Command {
	i := c.subcommandIndex()
	if i < 0 || (c[i] != "push" && c[i] != "pull") {
		return c.Clone()
	}
	for _, a := range c[i+1:] {
		if a == constants.ProgressFlag {
			return c.Clone()
		}
	}

	out := make(Command, 0, len(c)+1)
	out = append(out, c[:i+1]...)
	out = append(out, constants.ProgressFlag)
	return append(out, c[i+1:]...)
}

// Devices lists attached devices.
func Devices() Command { return New("devices") }

// Pull copies a remote path to a local path.
func Pull(remote, local string) Command { return New("pull", remote, local) }

// Push copies a local path to a remote path.
func Push(local, remote string) Command { return New("push", local, remote) }

// Install installs an APK.
func Install(apk string) Command { return New("install", apk) }

// Connect attaches a device over TCP/IP.
func Connect(addr string) Command { return New("connect", addr) }

// Pair pairs with a device using a wireless-debugging code.
func Pair(addr, code string) Command { return New("pair", addr, code) }

// TCPIP restarts adbd on the device listening on port.
func TCPIP(port int) Command { return New("tcpip", strconv.Itoa(port)) }

// Shell runs a raw shell command line on the device. Arguments are passed
// through unquoted, the way a user types them in a terminal.
func Shell(args ...string) Command { return New(append([]string{"shell"}, args...)...) }

// List lists a remote directory, marking directories with a trailing '/'.
func List(dir string) Command { return Shell("ls", "-p", Quote(dir)) }

// Stat shows the long listing for one remote path.
func Stat(p string) Command { return Shell("ls", "-l", Quote(p)) }

// Remove deletes a remote path recursively.
func Remove(p string) Command { return Shell("rm", "-rf", Quote(p)) }

// Move renames a remote path.
func Move(src, dst string) Command { return Shell("mv", Quote(src), Quote(dst)) }

// MakeDir creates a remote directory.
func MakeDir(p string) Command { return Shell("mkdir", "-p", Quote(p)) }

// Copy copies a remote path recursively on the device.
func Copy(src, dst string) Command { return Shell("cp", "-r", Quote(src), Quote(dst)) }

// MD5 computes a remote file's checksum.
func MD5(p string) Command { return Shell("md5sum", Quote(p)) }

// GetProp dumps the device's system properties.
func GetProp() Command { return Shell("getprop") }

// Quote makes s a single word for the device's /system/bin/sh.
func Quote(s string) string {
	if s != "" && strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("/._-+:@%,=", r)
}

// JoinRemote joins device path elements with '/' regardless of the host OS.
func JoinRemote(dir, name string) string {
	if strings.HasPrefix(name, "/") {
		return path.Clean(name)
	}
	return path.Join(dir, name)
}
