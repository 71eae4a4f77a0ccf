package checksum_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"hoard-go/internal/checksum"
)

func TestSum(t *testing.T) {
	t.Parallel()

	// Digests verified against coreutils md5sum/sha256sum.
	tests := []struct {
		name string
		data string
		alg  checksum.Algorithm
		want string
	}{
		{"empty md5", "", checksum.MD5, "d41d8cd98f00b204e9800998ecf8427e"},
		{"empty sha256", "", checksum.SHA256, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"text md5", "testing", checksum.MD5, "ae2b1fca515949e5d54fb22b8ed95575"},
		{"text sha256", "testing", checksum.SHA256, "cf80cd8aed482d5d1527d7dc72fceff84e6326592848447d2dc0b0e87dfc9a90"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := checksum.Sum([]byte(tt.data), tt.alg)
			if got.Hex != tt.want {
				t.Errorf("Sum() hex = %q, want %q", got.Hex, tt.want)
			}
			if got.Algorithm != tt.alg {
				t.Errorf("Sum() algorithm = %q, want %q", got.Algorithm, tt.alg)
			}
		})
	}
}

func TestFile(t *testing.T) {
	t.Parallel()

	t.Run("matches Sum for same content", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "file.txt")
		if err := os.WriteFile(path, []byte("testing"), 0o644); err != nil {
			t.Fatal(err)
		}

		got, err := checksum.File(path, checksum.SHA256)
		if err != nil {
			t.Fatalf("File() error = %v", err)
		}
		want := checksum.Sum([]byte("testing"), checksum.SHA256)
		if got != want {
			t.Errorf("File() = %v, want %v", got, want)
		}
	})

	t.Run("missing file surfaces the error", func(t *testing.T) {
		t.Parallel()
		_, err := checksum.File(filepath.Join(t.TempDir(), "nope"), checksum.MD5)
		if err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}

func TestChecksumJSON(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		orig := checksum.Sum([]byte("content"), checksum.MD5)
		data, err := json.Marshal(orig)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		var got checksum.Checksum
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if got != orig {
			t.Errorf("round trip = %v, want %v", got, orig)
		}
	})

	t.Run("tagged form", func(t *testing.T) {
		t.Parallel()
		var got checksum.Checksum
		raw := `{"sha256":"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"}`
		if err := json.Unmarshal([]byte(raw), &got); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if got.Algorithm != checksum.SHA256 {
			t.Errorf("Algorithm = %q, want sha256", got.Algorithm)
		}
	})

	t.Run("rejects wrong digest length", func(t *testing.T) {
		t.Parallel()
		var got checksum.Checksum
		if err := json.Unmarshal([]byte(`{"md5":"abcd"}`), &got); err == nil {
			t.Fatal("expected error for short digest")
		}
	})

	t.Run("rejects unknown algorithm", func(t *testing.T) {
		t.Parallel()
		var got checksum.Checksum
		if err := json.Unmarshal([]byte(`{"crc32":"deadbeef"}`), &got); err == nil {
			t.Fatal("expected error for unknown algorithm")
		}
	})
}

func TestParseAlgorithm(t *testing.T) {
	t.Parallel()

	if alg, err := checksum.ParseAlgorithm(""); err != nil || alg != checksum.SHA256 {
		t.Errorf("ParseAlgorithm(\"\") = %v, %v; want sha256, nil", alg, err)
	}
	if _, err := checksum.ParseAlgorithm("sha512"); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}
