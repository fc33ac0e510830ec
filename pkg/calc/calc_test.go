package calc

import (
	"errors"
	"strings"
	"testing"
)

func TestEval(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"2+2", "4"},
		{"DROP TABLE;1+1", "2"},
		{"2 + 3 * 4", "14"},
		{"(2 + 3) * 4", "20"},
		{"10 / 4", "2.5"},
		{"4/2", "2.0"},
		{"1.5*2", "3.0"},
		{"2.0+2", "4.0"},
		{"1/3", "0.3333333333333333"},
		{"-3 + 5", "2"},
		{"--3", "3"},
		{"2 ** 3 ** 2", "512"},
		{"-2 ** 2", "-4"},
		{"2 ** -1", "0.5"},
		{"(-2) ** -1", "-0.5"},
		{"2 ** 0.5", "1.4142135623730951"},
		{"10**20", "100000000000000000000"},
		{"2**64", "18446744073709551616"},
		{"12345678901234567890 + 1", "12345678901234567891"},
		{"7 // 2", "3"},
		{"-7 // 2", "-4"},
		{"7.5 // 2", "3.0"},
		{"-7.5 // 2", "-4.0"},
		{".5 + 1.", "1.5"},
		{"00", "0"},
		{"007.", "7.0"},
		{"what is 12*12?", "144"},
		{"0.1 + 0.2", "0.30000000000000004"},
		{"10.0 ** 15", "1000000000000000.0"},
		{"10.0 ** 16", "1e+16"},
		{"1 / 100000", "1e-05"},
		{"0.0001 * 1", "0.0001"},
		{"-0.0", "-0.0"},
		{"0 * -1.5", "-0.0"},
		{"()", "()"},
		{"(()) * 3", "()"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := Eval(tt.expr)
			if err != nil {
				t.Fatalf("Eval(%q) failed: %v", tt.expr, err)
			}
			if got := v.String(); got != tt.want {
				t.Errorf("Eval(%q) = %s, want %s", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalKeepsIntegersExact(t *testing.T) {
	v, err := Eval("10 ** 400")
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if !v.IsInteger() {
		t.Fatal("expected an integer result")
	}
	if want := "1" + strings.Repeat("0", 400); v.String() != want {
		t.Errorf("unexpected result %s", v.String())
	}

	v, err = Eval("10 ** 4299")
	if err != nil {
		t.Fatalf("Eval of a %d digit result failed: %v", maxDigits, err)
	}
	if len(v.String()) != maxDigits {
		t.Errorf("expected %d digits, got %d", maxDigits, len(v.String()))
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		expr string
		want error
	}{
		{"2+", ErrSyntax},
		{"", ErrSyntax},
		{"hello", ErrSyntax},
		{"(1+2", ErrSyntax},
		{"1+2)", ErrSyntax},
		{"1..2", ErrSyntax},
		{"2 2", ErrSyntax},
		{"*3", ErrSyntax},
		{"007", ErrSyntax},
		{"1/0", ErrDivisionByZero},
		{"1.0/0", ErrDivisionByZero},
		{"1//(2-2)", ErrDivisionByZero},
		{"0 ** -1", ErrDivisionByZero},
		{"10.0 ** 400", ErrOverflow},
		{"10 ** 4300", ErrOverflow},
		{"2 ** 1000000", ErrOverflow},
		{"(-8) ** 0.5", ErrDomain},
		{"() + 1", ErrType},
		{"-()", ErrType},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Eval(tt.expr)
			if !errors.Is(err, tt.want) {
				t.Errorf("Eval(%q) error = %v, want %v", tt.expr, err, tt.want)
			}
		})
	}
}

func TestFormatFloat(t *testing.T) {
	tests := map[float64]string{
		2:       "2.0",
		2.5:     "2.5",
		1e16:    "1e+16",
		1.5e-7:  "1.5e-07",
		1e300:   "1e+300",
		123.456: "123.456",
	}
	for f, want := range tests {
		if got := formatFloat(f); got != want {
			t.Errorf("formatFloat(%v) = %q, want %q", f, got, want)
		}
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize("rm -rf /; 3*(2)"); got != " - / 3*(2)" {
		t.Errorf("unexpected sanitized text %q", got)
	}
}
