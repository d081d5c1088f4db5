package types

import (
	"errors"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{name: "plain bytes", input: "1024", want: 1024},
		{name: "zero bytes", input: "0", want: 0},
		{name: "bytes with B suffix", input: "512B", want: 512},
		{name: "kilobytes", input: "100K", want: 100 * 1024},
		{name: "megabytes with B", input: "30MB", want: 30 * 1024 * 1024},
		{name: "megabytes with iB", input: "50MiB", want: 50 * 1024 * 1024},
		{name: "megabytes lowercase", input: "50m", want: 50 * 1024 * 1024},
		{name: "gigabytes", input: "2G", want: 2 * 1024 * 1024 * 1024},
		{name: "terabytes", input: "1TiB", want: 1024 * 1024 * 1024 * 1024},
		{name: "whitespace", input: "  100M  ", want: 100 * 1024 * 1024},
		{name: "decimal values truncated", input: "1.5G", want: 1610612736},

		{name: "empty string", input: "", wantErr: true},
		{name: "invalid suffix", input: "100X", wantErr: true},
		{name: "negative value", input: "-100M", wantErr: true},
		{name: "letters only", input: "abc", wantErr: true},
		{name: "invalid format", input: "100M100", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSize_ErrorKinds(t *testing.T) {
	if _, err := ParseSize("-1"); !errors.Is(err, ErrNegativeSize) {
		t.Errorf("ParseSize(-1) error = %v, want ErrNegativeSize", err)
	}
	if _, err := ParseSize("zz"); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("ParseSize(zz) error = %v, want ErrInvalidSize", err)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0 B"},
		{1024, "1.0 KiB"},
		{30 * MiB, "30 MiB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProgressFunc_EmitNil(t *testing.T) {
	var fn ProgressFunc
	fn.Emit(Progress{Stage: StageHash})

	var got Progress
	fn = func(p Progress) { got = p }
	fn.Emit(Progress{Stage: StageSplit, Current: 2})
	if got.Stage != StageSplit || got.Current != 2 {
		t.Errorf("Emit delivered %+v", got)
	}
}

func TestShortHash(t *testing.T) {
	if got := ShortHash("0123456789abcdef"); got != "01234567" {
		t.Errorf("ShortHash = %q", got)
	}
	if got := ShortHash("abc"); got != "abc" {
		t.Errorf("ShortHash short = %q", got)
	}
}
