package util

import (
	"testing"
	"time"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "report.pdf", want: "report.pdf"},
		{in: "my report (final).pdf", want: "my_report_final_.pdf"},
		{in: "a/b\\c.txt", want: "a_b_c.txt"},
		{in: "résumé-v2.docx", want: "r_sum_-v2.docx"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SafeName(tt.in); got != tt.want {
				t.Fatalf("SafeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFileNameRejectsTraversal(t *testing.T) {
	if _, err := SanitizeFileName("../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if _, err := SanitizeFileName("   "); err == nil {
		t.Fatalf("expected blank name to be rejected")
	}
	got, err := SanitizeFileName("dir/file.txt")
	if err != nil || got != "dir_file.txt" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Fatalf("expected hé, got %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestSignKeyRoundTrip(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)
	sig := SignKey("secret", "user-1/1-a.pdf", exp)

	if !VerifyKey("secret", "user-1/1-a.pdf", exp, sig, now) {
		t.Fatalf("expected signature to verify")
	}
	if VerifyKey("secret", "user-1/other.pdf", exp, sig, now) {
		t.Fatalf("expected signature for other key to fail")
	}
	if VerifyKey("other", "user-1/1-a.pdf", exp, sig, now) {
		t.Fatalf("expected signature with other secret to fail")
	}
	if VerifyKey("secret", "user-1/1-a.pdf", exp, sig, exp) {
		t.Fatalf("expected expired signature to fail")
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{in: 0, want: "0.0 B"},
		{in: 512, want: "512.0 B"},
		{in: 1536, want: "1.5 KB"},
		{in: 5 << 20, want: "5.0 MB"},
	}
	for _, tt := range tests {
		if got := HumanSize(tt.in); got != tt.want {
			t.Fatalf("HumanSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
