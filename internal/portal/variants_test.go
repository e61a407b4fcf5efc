package portal

import (
	"reflect"
	"testing"
	"time"
)

func TestPhoneVariants(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  []string
	}{
		{"bare ten digits gains country code", "9998887770", []string{"9998887770", "919998887770"}},
		{"already prefixed stays as-is", "919998887770", []string{"919998887770"}},
		{"non-numeric stays as-is", "+91 99988", []string{"+91 99988"}},
		{"empty yields nothing", "  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PhoneVariants(tt.phone, "91")
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("PhoneVariants(%q) = %v, want %v", tt.phone, got, tt.want)
			}
		})
	}
}

func TestBackoffDelayIsLinear(t *testing.T) {
	step := time.Second
	if got := BackoffDelay(1, step); got != time.Second {
		t.Fatalf("delay after attempt 1 = %s, want 1s", got)
	}
	if got := BackoffDelay(2, step); got != 2*time.Second {
		t.Fatalf("delay after attempt 2 = %s, want 2s", got)
	}
	if got := BackoffDelay(0, step); got != time.Second {
		t.Fatalf("delay clamps to one step, got %s", got)
	}
}
