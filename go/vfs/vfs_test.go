package vfs

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

func TestMemFS(t *testing.T) {
	fs := NewMemFS()
	if err := fs.WriteFile("/bin/init", []byte("KX64"), 0755); err != nil {
		t.Fatal(err)
	}
	info, err := fs.Stat("/bin/init")
	if err != nil {
		t.Fatal(err)
	}
	if !info.Executable() || info.Size != 4 || info.Name != "init" {
		t.Fatalf("bad stat %+v", info)
	}
	if info, _ := fs.Stat("/bin"); !info.IsDir() || info.Executable() {
		t.Fatalf("bad dir stat %+v", info)
	}
	if _, err := fs.Stat("/bin/init/x"); err != ErrNotDir {
		t.Fatalf("path through a file: %v", err)
	}
	if _, err := fs.Stat("/nope"); err != ErrNotExist {
		t.Fatalf("missing file: %v", err)
	}

	f, err := fs.Open("/tmp/log", O_WRONLY|O_CREAT)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("hello "))
	if _, err := f.Read(make([]byte, 1)); err == nil {
		t.Error("read from a write-only file")
	}
	a, _ := fs.Open("/tmp/log", O_WRONLY|O_APPEND)
	a.Write([]byte("world"))
	data, _ := fs.ReadFile("/tmp/log")
	if string(data) != "hello world" {
		t.Fatalf("file holds %q", data)
	}
	if _, err := fs.Open("/tmp/log", O_CREAT|O_EXCL); err != ErrExist {
		t.Fatalf("O_EXCL on an existing file: %v", err)
	}
	r, _ := fs.Open("/tmp/log", O_RDONLY)
	got, _ := ioutil.ReadAll(r)
	if string(got) != "hello world" {
		t.Fatalf("read %q", got)
	}
	names, _ := fs.ReadDir("/")
	if len(names) != 2 || names[0] != "bin" || names[1] != "tmp" {
		t.Fatalf("root holds %v", names)
	}
}

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	fs := NewMemFS()
	fs.AddDevice("/dev/console", &Console{In: bytes.NewBufferString("input"), Out: &out})
	f, err := fs.Open("/dev/console", O_RDWR)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte("out"))
	buf := make([]byte, 10)
	n, _ := f.Read(buf)
	if out.String() != "out" || string(buf[:n]) != "input" {
		t.Fatalf("console wrote %q read %q", out.String(), buf[:n])
	}
}

func TestLoadHostDir(t *testing.T) {
	dir, err := ioutil.TempDir("", "vfs")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	os.Mkdir(filepath.Join(dir, "sub"), 0755)
	ioutil.WriteFile(filepath.Join(dir, "sub", "prog.kx"), []byte("x"), 0755)
	ioutil.WriteFile(filepath.Join(dir, "notes"), []byte("y"), 0644)
	fs := NewMemFS()
	if err := LoadHostDir(fs, dir, "/"); err != nil {
		t.Fatal(err)
	}
	if info, err := fs.Stat("/sub/prog.kx"); err != nil || !info.Executable() {
		t.Fatalf("prog: %+v %v", info, err)
	}
	if info, err := fs.Stat("/notes"); err != nil || info.Executable() {
		t.Fatalf("notes: %+v %v", info, err)
	}
}
