package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	if err != nil || got != "hello world" {
		t.Fatalf("got %q, err=%v", got, err)
	}
	if !strings.Contains(out.String(), "Name?") {
		t.Fatalf("prompt missing: %q", out.String())
	}
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	if err != nil || got != "lastline" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetSimpleTextEmptyEOF(t *testing.T) {
	var out bytes.Buffer
	if _, err := GetSimpleText(rdr(""), "Name?", &out); err == nil {
		t.Fatal("expected error")
	}
}

func stubTerminal(t *testing.T, tty bool, pw []byte, err error) {
	t.Helper()
	oldTTY, oldPW := isTerminal, readPassword
	t.Cleanup(func() { isTerminal, readPassword = oldTTY, oldPW })
	isTerminal = func(int) bool { return tty }
	readPassword = func(int) ([]byte, error) { return pw, err }
}

func TestGetCode_Terminal(t *testing.T) {
	stubTerminal(t, true, []byte(" 123456 "), nil)
	var out bytes.Buffer
	got, err := GetCode(rdr(""), &out)
	if err != nil || got != "123456" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}

func TestGetCode_TerminalError(t *testing.T) {
	stubTerminal(t, true, nil, errors.New("boom"))
	var out bytes.Buffer
	if _, err := GetCode(rdr(""), &out); err == nil {
		t.Fatal("expected error")
	}
}

func TestGetCode_Pipe(t *testing.T) {
	stubTerminal(t, false, nil, nil)
	var out bytes.Buffer
	got, err := GetCode(rdr("654321\n"), &out)
	if err != nil || got != "654321" {
		t.Fatalf("got %q, err=%v", got, err)
	}
}
