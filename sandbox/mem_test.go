package sandbox

import "testing"

func TestParseMemory(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"512MB", 512 << 20},
		{"512mb", 512 << 20},
		{"2GB", 2 << 30},
		{"1.5GB", 3 << 29},
		{"64KB", 64 << 10},
		{"100B", 100},
		{"1TB", 1 << 40},
		{"256", 256 << 20},         // bare number reads as MB
		{"512XY", 512 << 20},       // unknown unit reads as MB
		{"bogus", 512 << 20},       // unparsable falls back to default
		{"", 512 << 20},            // empty falls back to default
		{"-5GB", 512 << 20},        // negative falls back to default
		{"  1 GB ", 1 << 30},       // whitespace tolerated
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseMemory(tt.in); got != tt.want {
				t.Errorf("ParseMemory(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestNanoCPUs(t *testing.T) {
	if got := NanoCPUs(1.5); got != 1_500_000_000 {
		t.Errorf("NanoCPUs(1.5) = %d", got)
	}
	if got := NanoCPUs(0); got != 1_000_000_000 {
		t.Errorf("NanoCPUs(0) = %d, want one full CPU", got)
	}
}
