package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompressionRoundTrip(t *testing.T) {
	data := []byte(strings.Repeat("<package type=\"rpm\"/>\n", 50))

	for _, kind := range []string{CompressionGzip, CompressionXz} {
		compressed, err := Compress(kind, data)
		if err != nil {
			t.Fatalf("Compress(%s) failed: %v", kind, err)
		}
		if len(compressed) >= len(data) {
			t.Errorf("%s output is not smaller than input", kind)
		}

		got, err := DecompressFile("primary.xml."+kind, compressed)
		if err != nil {
			t.Fatalf("DecompressFile(%s) failed: %v", kind, err)
		}
		if string(got) != string(data) {
			t.Errorf("%s round trip mismatch", kind)
		}
	}

	if _, err := Compress("zstd", data); err == nil {
		t.Error("Expected error for unsupported compression")
	}

	plain, err := DecompressFile("repomd.xml", data)
	if err != nil || string(plain) != string(data) {
		t.Error("Uncompressed file should be returned as is")
	}
}

func TestChecksums(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	sum, err := CalculateChecksums(path)
	if err != nil {
		t.Fatalf("CalculateChecksums failed: %v", err)
	}

	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if sum.SHA256 != want {
		t.Errorf("Expected %s, got %s", want, sum.SHA256)
	}
	if sum.Size != 5 {
		t.Errorf("Expected size 5, got %d", sum.Size)
	}
	if SHA256([]byte("hello")) != want {
		t.Error("SHA256 mismatch")
	}
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.xml", "a.xml.gz"} {
		if err := WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := EnsureDir(filepath.Join(dir, "sub")); err != nil {
		t.Fatal(err)
	}

	names, err := ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(names) != 2 || names[0] != "a.xml.gz" || names[1] != "b.xml" {
		t.Errorf("Unexpected files: %v", names)
	}

	dst := filepath.Join(dir, "nested", "copy.xml")
	if err := CopyFile(filepath.Join(dir, "b.xml"), dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "x" {
		t.Errorf("Unexpected copy content %q", data)
	}
}
