package dispatch

import "unicode/utf8"

// Pricing fixes the per-unit cost of each channel in KES.
type Pricing struct {
	SMSCostPerSegment  float64
	VoiceCostPerCall   float64
	USSDCostPerSession float64
	AirtimeServiceFee  float64
	AirtimeMinAmount   float64
	AirtimeMaxAmount   float64
}

// Segments counts 160-character SMS segments.
func Segments(message string) int {
	length := utf8.RuneCountInString(message)
	if length == 0 {
		return 0
	}
	return (length-1)/160 + 1
}

// UnitCost is the cost of one successful dispatch to one recipient.
func (p Pricing) UnitCost(r *Request) float64 {
	switch r.Channel {
	case ChannelSMS:
		return float64(Segments(r.Message)) * p.SMSCostPerSegment
	case ChannelUSSD:
		return p.USSDCostPerSession
	case ChannelVoice:
		return p.VoiceCostPerCall
	case ChannelAirtime:
		return r.Amount * (1 + p.AirtimeServiceFee)
	}
	return 0
}

// Estimate is the pre-flight cost of the whole batch, used by the credit
// gate. It assumes every recipient succeeds; settlement later uses the
// realized cost instead.
func (p Pricing) Estimate(r *Request) float64 {
	return float64(len(r.Recipients)) * p.UnitCost(r)
}
