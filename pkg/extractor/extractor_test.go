package extractor

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ArionMiles/smsledger/pkg/api"
)

func TestExtract_SampleMessages(t *testing.T) {
	tests := []struct {
		name          string
		file          string
		wantAmount    float64
		wantDirection api.Direction
		wantMethod    api.Method
		wantMerchant  string
		wantLast4     string
		wantRef       string
		wantBalance   float64
		wantDay       int
	}{
		{
			name:          "SBI UPI debit",
			file:          "sbi_upi_debit.txt",
			wantAmount:    1500,
			wantDirection: api.DirectionDebit,
			wantMethod:    api.MethodUPI,
			wantMerchant:  "merchant@paytm",
			wantLast4:     "1234",
			wantBalance:   25450,
			wantDay:       7,
		},
		{
			name:          "HDFC IMPS salary credit",
			file:          "hdfc_imps_salary.txt",
			wantAmount:    35000,
			wantDirection: api.DirectionCredit,
			wantMethod:    api.MethodIMPS,
			wantLast4:     "5678",
			wantRef:       "412345678901",
			wantBalance:   125450,
			wantDay:       7,
		},
		{
			name:          "ICICI credit card",
			file:          "icici_credit_card.txt",
			wantAmount:    2499,
			wantDirection: api.DirectionUnknown,
			wantMethod:    api.MethodCreditCard,
			wantMerchant:  "AMAZON",
			wantLast4:     "9012",
			wantDay:       6,
		},
		{
			name:          "Paytm wallet",
			file:          "paytm_wallet.txt",
			wantAmount:    250,
			wantDirection: api.DirectionDebit,
			wantMethod:    api.MethodUPI,
			wantMerchant:  "SWIGGY from Paytm Wallet",
			wantRef:       "TXN123456789",
			wantBalance:   1250,
			wantDay:       7,
		},
		{
			name:          "Axis ATM withdrawal",
			file:          "axis_atm.txt",
			wantAmount:    5000,
			wantDirection: api.DirectionUnknown,
			wantMethod:    api.MethodATM,
			wantLast4:     "3456",
			wantBalance:   45678.90,
			wantDay:       6,
		},
		{
			name:          "Kotak NEFT credit",
			file:          "kotak_neft_credit.txt",
			wantAmount:    15000,
			wantDirection: api.DirectionCredit,
			wantMethod:    api.MethodNEFT,
			wantMerchant:  "ABC COMPANY",
			wantLast4:     "7890",
			wantRef:       "NEFT12345678",
			wantBalance:   75000,
			wantDay:       5,
		},
	}

	receivedAt := time.Date(2024, 12, 7, 18, 30, 0, 0, time.UTC)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			text := loadMessageFixture(t, tc.file)
			got := Extract(text, receivedAt)

			if got.Amount == nil || *got.Amount != tc.wantAmount {
				t.Errorf("amount: got %v, want %v", deref(got.Amount), tc.wantAmount)
			}
			if got.Direction != tc.wantDirection {
				t.Errorf("direction: got %q, want %q", got.Direction, tc.wantDirection)
			}
			if got.Method != tc.wantMethod {
				t.Errorf("method: got %q, want %q", got.Method, tc.wantMethod)
			}
			if got.Merchant != tc.wantMerchant {
				t.Errorf("merchant: got %q, want %q", got.Merchant, tc.wantMerchant)
			}
			if got.Last4 != tc.wantLast4 {
				t.Errorf("last4: got %q, want %q", got.Last4, tc.wantLast4)
			}
			if got.ReferenceID != tc.wantRef {
				t.Errorf("reference: got %q, want %q", got.ReferenceID, tc.wantRef)
			}
			if deref(got.AvailableBalance) != tc.wantBalance {
				t.Errorf("balance: got %v, want %v", deref(got.AvailableBalance), tc.wantBalance)
			}
			if !got.HasDate || got.OccurredAt.Day() != tc.wantDay || got.OccurredAt.Month() != time.December {
				t.Errorf("date: got %v (has date %v), want day %d of December", got.OccurredAt, got.HasDate, tc.wantDay)
			}
			if !IsFinancial(text) {
				t.Errorf("IsFinancial: got false for a bank transaction message")
			}
		})
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		text string
		want *float64
	}{
		{"Rs 1,500.00 debited", ptr(1500)},
		{"INR12,34,567.89 spent", ptr(1234567.89)},
		{"₹ 99.5 paid", ptr(99.5)},
		{"Rs.500 at ZOMATO", ptr(500)},
		{"Amt: 1200 debited", ptr(1200)},
		{"rupees 75 received", ptr(75)},
		{"Transfer done successfully", nil},
		{"Offers up to 50% off", nil},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			got := Amount(tc.text)
			switch {
			case tc.want == nil && got != nil:
				t.Errorf("amount: got %v, want nil", *got)
			case tc.want != nil && got == nil:
				t.Errorf("amount: got nil, want %v", *tc.want)
			case tc.want != nil && *got != *tc.want:
				t.Errorf("amount: got %v, want %v", *got, *tc.want)
			}
		})
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		text string
		want api.Direction
	}{
		{"Rs 500 debited from your account", api.DirectionDebit},
		{"Rs 500 credited to your account", api.DirectionCredit},
		{"Refund of Rs 200 processed, Rs 500 debited earlier", api.DirectionDebit},
		{"Rs 500 received and Rs 20 deducted as fee", api.DirectionDebit},
		{"Your Credit Card statement is ready", api.DirectionUnknown},
		{"Rs 50 cashback added", api.DirectionCredit},
		{"Rs 100 transferred out of A/c", api.DirectionDebit},
		{"Your prepaid plan expires today", api.DirectionUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			if got := Direction(tc.text); got != tc.want {
				t.Errorf("direction: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMethod_Precedence(t *testing.T) {
	tests := []struct {
		text string
		want api.Method
	}{
		{"UPI txn at ATM kiosk", api.MethodUPI},
		{"ATM WDL Rs 500 via IMPS", api.MethodATM},
		{"IMPS/NEFT transfer", api.MethodIMPS},
		{"NEFT then RTGS", api.MethodNEFT},
		{"RTGS of Rs 5,00,000", api.MethodRTGS},
		{"Credit Card used, Debit Card linked", api.MethodCreditCard},
		{"spent on RuPay card", api.MethodDebitCard},
		{"Mobikwik wallet debited", api.MethodWallet},
		{"paid via net banking", api.MethodNetbanking},
		{"Your statement is ready", api.MethodUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			if got := Method(tc.text); got != tc.want {
				t.Errorf("method: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMerchant(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Rs 100 paid to shop.owner@okaxis on 01/01/24", "shop.owner@okaxis"},
		{"Rs 100 spent at DMART on 12/03/2024", "DMART"},
		{"Rs 100 paid to Ramesh Kumar ref 1234", "Ramesh Kumar"},
		{"Debit alert: VPA 9876543210", "9876543210"},
		{"Rs 100 debited", ""},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			if got := Merchant(tc.text); got != tc.want {
				t.Errorf("merchant: got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMerchant_Truncated(t *testing.T) {
	long := strings.Repeat("A", 80)
	got := Merchant("Rs 10 paid to " + long + " on 01/01/24")
	if len(got) != merchantMaxLen {
		t.Errorf("merchant length: got %d, want %d", len(got), merchantMaxLen)
	}
}

func TestDateTime(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	receivedAt := time.Date(2024, 3, 12, 23, 5, 0, 0, ist)

	tests := []struct {
		name     string
		text     string
		want     time.Time
		wantDate bool
	}{
		{
			name:     "numeric date with pm time",
			text:     "spent on 12/03/2024 10:45 pm",
			want:     time.Date(2024, 3, 12, 22, 45, 0, 0, ist),
			wantDate: true,
		},
		{
			name:     "two digit year below 50",
			text:     "debited on 01-02-25 09:15",
			want:     time.Date(2025, 2, 1, 9, 15, 0, 0, ist),
			wantDate: true,
		},
		{
			name:     "two digit year from 50",
			text:     "debited on 01-02-99 09:15",
			want:     time.Date(1999, 2, 1, 9, 15, 0, 0, ist),
			wantDate: true,
		},
		{
			name:     "12 am is midnight",
			text:     "debited on 01/02/2024 12:30 am",
			want:     time.Date(2024, 2, 1, 0, 30, 0, 0, ist),
			wantDate: true,
		},
		{
			name:     "named month takes receive clock on same day",
			text:     "debited on 12-Mar-24",
			want:     time.Date(2024, 3, 12, 23, 5, 0, 0, ist),
			wantDate: true,
		},
		{
			name:     "named month on another day is midnight",
			text:     "debited on 07-Dec-24",
			want:     time.Date(2024, 12, 7, 0, 0, 0, 0, ist),
			wantDate: true,
		},
		{
			name:     "no date falls back to receive time",
			text:     "Rs 500 debited at 10:45",
			want:     receivedAt,
			wantDate: false,
		},
		{
			name:     "day past month end is not a date",
			text:     "debited on 31/02/24 10:00",
			want:     receivedAt,
			wantDate: false,
		},
		{
			name:     "named month day past month end",
			text:     "debited on 30-Feb-24",
			want:     receivedAt,
			wantDate: false,
		},
		{
			name:     "leap day",
			text:     "debited on 29/02/24 10:00",
			want:     time.Date(2024, 2, 29, 10, 0, 0, 0, ist),
			wantDate: true,
		},
		{
			name:     "invalid month is not a date",
			text:     "code 12/13/24",
			want:     receivedAt,
			wantDate: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := DateTime(tc.text, receivedAt)
			if ok != tc.wantDate {
				t.Errorf("has date: got %v, want %v", ok, tc.wantDate)
			}
			if !got.Equal(tc.want) {
				t.Errorf("time: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsFinancial_Threshold(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"promotion", "Get 50% cashback on your next recharge! T&C apply.", 0},
		{"otp", "Your OTP for login is 482913. Do not share it.", 0},
		{"statement only", "Your A/c XX1234 statement has been generated.", 1},
		{"balance only", "Check your balance by giving a missed call.", 1},
		{"currency and verb", "Rs 500 debited", 2},
		{"full transaction", "Rs 500 debited from A/c XX1234 via UPI. Avl Bal Rs 20,000", 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Indicators(tc.text)
			if got != tc.want {
				t.Errorf("indicators: got %d, want %d", got, tc.want)
			}
			if IsFinancial(tc.text) != (tc.want >= MinIndicators) {
				t.Errorf("IsFinancial: got %v with %d indicators", IsFinancial(tc.text), got)
			}
		})
	}
}

func TestParseConfidence_Monotonic(t *testing.T) {
	amount := 100.0
	steps := []Fields{
		{Direction: api.DirectionUnknown, Method: api.MethodUnknown},
		{Amount: &amount, Direction: api.DirectionUnknown, Method: api.MethodUnknown},
		{Amount: &amount, Direction: api.DirectionDebit, Method: api.MethodUnknown},
		{Amount: &amount, Direction: api.DirectionDebit, Method: api.MethodUPI},
		{Amount: &amount, Direction: api.DirectionDebit, Method: api.MethodUPI, Merchant: "SWIGGY"},
		{Amount: &amount, Direction: api.DirectionDebit, Method: api.MethodUPI, Merchant: "SWIGGY", ReferenceID: "TXN1"},
	}
	wants := []float64{0, 0.40, 0.65, 0.80, 0.90, 1.0}

	prev := -1.0
	for i, f := range steps {
		got := ParseConfidence(f)
		if math.Abs(got-wants[i]) > 1e-9 {
			t.Errorf("step %d: got %v, want %v", i, got, wants[i])
		}
		if got <= prev {
			t.Errorf("step %d: confidence %v did not increase from %v", i, got, prev)
		}
		if got < 0 || got > 1 {
			t.Errorf("step %d: confidence %v out of [0,1]", i, got)
		}
		prev = got
	}
}

func TestNeedsReview(t *testing.T) {
	tests := []struct {
		name      string
		direction api.Direction
		parse     float64
		category  float64
		want      bool
	}{
		{"confident", api.DirectionDebit, 0.9, 0.7, false},
		{"unknown direction", api.DirectionUnknown, 0.9, 0.9, true},
		{"weak parse", api.DirectionCredit, 0.45, 0.9, true},
		{"weak category", api.DirectionDebit, 0.9, 0.3, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsReview(tc.direction, tc.parse, tc.category); got != tc.want {
				t.Errorf("NeedsReview: got %v, want %v", got, tc.want)
			}
		})
	}
}

func ptr(v float64) *float64 { return &v }

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// loadMessageFixture loads a message body from the testdata/messages directory.
func loadMessageFixture(t *testing.T, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "messages", filename))
	if err != nil {
		t.Fatalf("failed to load message fixture: %v", err)
	}
	return strings.TrimSpace(string(data))
}
