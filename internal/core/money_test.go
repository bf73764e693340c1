package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "12.34", want: 1234},
		{input: "12,34", want: 1234},
		{input: "12", want: 1200},
		{input: "0.05", want: 5},
		{input: "12.345", want: 1234}, // rounds down
		{input: "12.346", want: 1235}, // rounds up
		{input: "", wantErr: true},
		{input: "-5", wantErr: true},
		{input: "+5", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "1.2.3", wantErr: true},
		{input: "0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDecimalToCents(%q) = %d, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDecimalToCents(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMoney_Display(t *testing.T) {
	m := Money{Cents: 123456}
	if got := m.Display(); got != "₹1234.56" {
		t.Errorf("Display() = %q", got)
	}
	if got := m.Rupees(); got != 1234.56 {
		t.Errorf("Rupees() = %v", got)
	}
}
