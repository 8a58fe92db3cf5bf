package accounting

import (
	"math/rand"
	"testing"
	"time"
)

func assertInvariant(t *testing.T, a Account) {
	t.Helper()
	if a.TotalInUse != a.TotalOnBattery+a.TotalPluggedIn {
		t.Fatalf("invariant broken: %+v", a)
	}
}

func TestAccountant_Tick(t *testing.T) {
	a := NewAccountant()
	a.Tick(time.Second, false)
	a.Tick(2*time.Second, false)
	a.Tick(3*time.Second, true)

	got := a.Account()
	want := Account{TotalInUse: 6 * time.Second, TotalOnBattery: 3 * time.Second, TotalPluggedIn: 3 * time.Second}
	if got != want {
		t.Fatalf("Account() = %+v, want %+v", got, want)
	}
}

func TestAccountant_InvariantRandomSequences(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for _, resetOpposite := range []bool{false, true} {
		a := NewAccountant()
		a.SetResetOppositeOnTransition(resetOpposite)
		for i := 0; i < 5000; i++ {
			elapsed := time.Duration(r.Int63n(int64(3*time.Second))) - time.Second/2
			a.Tick(elapsed, r.Intn(3) == 0)
			if r.Intn(200) == 0 {
				_ = a.Reset([]Bucket{BucketTotal, BucketBattery, BucketPluggedIn, BucketAll}[r.Intn(4)])
			}
			assertInvariant(t, a.Account())
		}
	}
}

func TestAccountant_NegativeElapsed(t *testing.T) {
	a := NewAccountant()
	a.Tick(5*time.Second, true)
	a.Tick(-time.Hour, true)

	if got := a.Account().TotalPluggedIn; got != 5*time.Second {
		t.Fatalf("TotalPluggedIn = %v, want 5s", got)
	}
}

func TestAccountant_ResetOppositeOnTransition(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		want    Account
	}{
		{
			name:    "disabled keeps both buckets",
			enabled: false,
			want:    Account{TotalInUse: 13 * time.Second, TotalOnBattery: 10 * time.Second, TotalPluggedIn: 3 * time.Second},
		},
		{
			name:    "enabled clears on-battery time when plugged in",
			enabled: true,
			want:    Account{TotalInUse: 3 * time.Second, TotalOnBattery: 0, TotalPluggedIn: 3 * time.Second},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAccountant()
			a.SetResetOppositeOnTransition(tt.enabled)
			a.Tick(10*time.Second, false)
			a.Tick(time.Second, true)
			a.Tick(2*time.Second, true)

			if got := a.Account(); got != tt.want {
				t.Fatalf("Account() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAccountant_ResetOppositeOnlyOnTransition(t *testing.T) {
	a := NewAccountant()
	a.SetResetOppositeOnTransition(true)

	// First tick is not a transition.
	a.Tick(time.Second, true)
	a.Tick(time.Second, false)
	a.Tick(time.Second, false)
	if got := a.Account(); got.TotalOnBattery != 2*time.Second || got.TotalPluggedIn != 0 {
		t.Fatalf("Account() = %+v", got)
	}

	// Staying unplugged never touches the battery bucket.
	a.Tick(time.Second, false)
	if got := a.Account().TotalOnBattery; got != 3*time.Second {
		t.Fatalf("TotalOnBattery = %v, want 3s", got)
	}
}

func TestAccountant_Reset(t *testing.T) {
	tests := []struct {
		bucket Bucket
		want   Account
	}{
		{BucketBattery, Account{TotalInUse: 2 * time.Second, TotalPluggedIn: 2 * time.Second}},
		{BucketPluggedIn, Account{TotalInUse: 3 * time.Second, TotalOnBattery: 3 * time.Second}},
		{BucketTotal, Account{}},
		{BucketAll, Account{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.bucket), func(t *testing.T) {
			a := NewAccountant()
			a.Tick(3*time.Second, false)
			a.Tick(2*time.Second, true)

			if err := a.Reset(tt.bucket); err != nil {
				t.Fatalf("Reset() error = %v", err)
			}
			if got := a.Account(); got != tt.want {
				t.Fatalf("Account() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if err := NewAccountant().Reset("bogus"); err != ErrInvalidBucket {
		t.Fatalf("Reset(bogus) error = %v, want ErrInvalidBucket", err)
	}
}

func TestAccountant_ResetAllResumesFromZero(t *testing.T) {
	a := NewAccountant()
	a.Tick(time.Minute, false)
	a.Tick(time.Minute, true)
	_ = a.Reset(BucketAll)

	if got := a.Account(); got != (Account{}) {
		t.Fatalf("Account() after reset = %+v, want zero", got)
	}

	a.Tick(time.Second, true)
	want := Account{TotalInUse: time.Second, TotalPluggedIn: time.Second}
	if got := a.Account(); got != want {
		t.Fatalf("Account() = %+v, want %+v", got, want)
	}
}

func TestParseBucket(t *testing.T) {
	for in, want := range map[string]Bucket{
		"total":      BucketTotal,
		"Battery":    BucketBattery,
		"plugged":    BucketPluggedIn,
		"plugged-in": BucketPluggedIn,
		" ALL ":      BucketAll,
	} {
		got, err := ParseBucket(in)
		if err != nil || got != want {
			t.Errorf("ParseBucket(%q) = %q, %v, want %q", in, got, err, want)
		}
	}
	if _, err := ParseBucket("history"); err == nil {
		t.Errorf("ParseBucket(history) should fail")
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(time.Hour + 2*time.Minute + 3*time.Second + 900*time.Millisecond); got != "1:02:03" {
		t.Fatalf("FormatDuration() = %q", got)
	}
	if got := FormatDuration(0); got != "0:00:00" {
		t.Fatalf("FormatDuration(0) = %q", got)
	}
}
