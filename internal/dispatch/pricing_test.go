package dispatch

import (
	"strings"
	"testing"
)

var testPricing = Pricing{
	SMSCostPerSegment:  0.80,
	VoiceCostPerCall:   2.0,
	USSDCostPerSession: 1.0,
	AirtimeServiceFee:  0.05,
	AirtimeMinAmount:   10,
	AirtimeMaxAmount:   10000,
}

func TestSegments(t *testing.T) {
	cases := []struct {
		length int
		want   int
	}{
		{0, 0},
		{1, 1},
		{150, 1},
		{160, 1},
		{161, 2},
		{320, 2},
		{321, 3},
	}
	for _, tc := range cases {
		if got := Segments(strings.Repeat("a", tc.length)); got != tc.want {
			t.Errorf("Segments(len=%d) = %d, want %d", tc.length, got, tc.want)
		}
	}
}

func TestEstimateSMS(t *testing.T) {
	req := &Request{
		Channel:    ChannelSMS,
		Recipients: []string{"a", "b", "c"},
		Message:    strings.Repeat("x", 150),
	}

	// 3 recipients, 1 segment each, 0.80 per segment
	want := 3 * testPricing.SMSCostPerSegment
	if got := testPricing.Estimate(req); got != want {
		t.Fatalf("estimate = %v, want %v", got, want)
	}
}

func TestEstimateMultiSegmentSMS(t *testing.T) {
	req := &Request{
		Channel:    ChannelSMS,
		Recipients: []string{"a", "b"},
		Message:    strings.Repeat("x", 200),
	}

	// 2 recipients, 2 segments each
	want := 2 * (2 * testPricing.SMSCostPerSegment)
	if got := testPricing.Estimate(req); got != want {
		t.Fatalf("estimate = %v, want %v", got, want)
	}
}

func TestEstimateAirtimeIncludesServiceFee(t *testing.T) {
	req := &Request{
		Channel:    ChannelAirtime,
		Recipients: []string{"+254700000001"},
		Amount:     100,
		Network:    "safaricom",
	}

	want := req.Amount * (1 + testPricing.AirtimeServiceFee)
	if got := testPricing.Estimate(req); got != want {
		t.Fatalf("estimate = %v, want %v", got, want)
	}
}

func TestEstimateVoiceAndUSSDFlatCost(t *testing.T) {
	voice := &Request{Channel: ChannelVoice, Recipients: []string{"a", "b", "c"}, TextToSpeech: "hi"}
	if got := testPricing.Estimate(voice); got != 6.0 {
		t.Fatalf("voice estimate = %v, want 6.0", got)
	}

	ussd := &Request{Channel: ChannelUSSD, Recipients: []string{"a", "b"}, Message: "menu"}
	if got := testPricing.Estimate(ussd); got != 2.0 {
		t.Fatalf("ussd estimate = %v, want 2.0", got)
	}
}
