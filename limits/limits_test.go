package limits

import (
	"errors"
	"testing"
)

// TestFifoSizeIsMaskable verifies that the default fifo capacity can be indexed
// with a bitmask.
func TestFifoSizeIsMaskable(t *testing.T) {
	if !IsPowerOfTwo(AoutFifoSize + 1) {
		t.Errorf("AoutFifoSize+1 = %d, want a power of two", AoutFifoSize+1)
	}
	if err := ValidateFifoSize(AoutFifoSize); err != nil {
		t.Errorf("ValidateFifoSize(%d) = %v, want nil", AoutFifoSize, err)
	}
}

// TestTimingsInTicks verifies the tick conversion of the default timings.
func TestTimingsInTicks(t *testing.T) {
	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"VoutIdleSleep", VoutIdleSleep, 20000},
		{"VoutDisplayDelay", VoutDisplayDelay, 500000},
		{"VoutMwaitTolerance", VoutMwaitTolerance, 20000},
		{"DefaultPTSDelay", DefaultPTSDelay, 200000},
		{"InputIdleSleep", InputIdleSleep, 100000},
		{"ThreadSleep", ThreadSleep, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
			}
		})
	}
}

// TestValidateFifoSize tests the ring capacity validation.
func TestValidateFifoSize(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantErr  error
	}{
		{"default", 511, nil},
		{"smallest", 1, nil},
		{"power of two itself", 512, ErrNotPowerOfTwo},
		{"odd", 100, ErrNotPowerOfTwo},
		{"zero", 0, ErrOutOfRange},
		{"negative", -3, ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFifoSize(tt.capacity)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateFifoSize(%d) = %v, want nil", tt.capacity, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateFifoSize(%d) = %v, want %v", tt.capacity, err, tt.wantErr)
			}
		})
	}
}

// TestValidateRange tests the generic range validation.
func TestValidateRange(t *testing.T) {
	if err := ValidateRange("pictures", 8, 1, 64); err != nil {
		t.Errorf("ValidateRange in range = %v, want nil", err)
	}
	if err := ValidateRange("pictures", 0, 1, 64); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("ValidateRange below min = %v, want ErrOutOfRange", err)
	}
	if err := ValidateRange("pictures", 65, 1, 64); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("ValidateRange above max = %v, want ErrOutOfRange", err)
	}
}

// TestValidatePacketSize tests the input packet limit.
func TestValidatePacketSize(t *testing.T) {
	if err := ValidatePacketSize(InputMaxPacketSize); err != nil {
		t.Errorf("ValidatePacketSize(max) = %v, want nil", err)
	}
	if err := ValidatePacketSize(InputMaxPacketSize + 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("ValidatePacketSize(max+1) = %v, want ErrOutOfRange", err)
	}
}
