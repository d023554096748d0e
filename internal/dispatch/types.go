package dispatch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelSMS     Channel = "sms"
	ChannelUSSD    Channel = "ussd"
	ChannelVoice   Channel = "voice"
	ChannelAirtime Channel = "airtime"
)

// ErrValidation marks request-shape failures. They abort the whole request
// before any ledger read or provider call.
var ErrValidation = errors.New("validation failed")

var validNetworks = map[string]bool{
	"safaricom": true,
	"airtel":    true,
	"telkom":    true,
}

// Request is one validated dispatch batch for a single channel.
type Request struct {
	Channel    Channel
	AccountID  uuid.UUID
	Recipients []string

	// SMS / USSD
	Message      string
	SenderID     string
	ServiceCode  string
	ScheduleTime string

	// Voice
	VoiceFileURL string
	TextToSpeech string

	// Airtime
	Amount    float64
	Network   string
	Reference string

	CampaignID string

	// unitCost is fixed by Pricing before dispatch. Voice calls may override
	// it per result with the provider-quoted cost.
	unitCost float64
}

// Result is the outcome for one recipient. Immutable once produced.
type Result struct {
	Recipient  string  `json:"recipient"`
	Success    bool    `json:"success"`
	ProviderID string  `json:"provider_id,omitempty"`
	Cost       float64 `json:"cost,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Report aggregates one batch. Terminal: never mutated after Dispatch returns.
type Report struct {
	SentCount   int      `json:"sent_count"`
	FailedCount int      `json:"failed_count"`
	TotalCost   float64  `json:"cost"`
	Results     []Result `json:"results"`
}

// ProviderIDs returns the provider-assigned ids of the successful results,
// in request order.
func (r *Report) ProviderIDs() []string {
	ids := make([]string, 0, r.SentCount)
	for _, res := range r.Results {
		if res.Success && res.ProviderID != "" {
			ids = append(ids, res.ProviderID)
		}
	}
	return ids
}

// Validate checks channel-specific request shape. It must pass before the
// credit gate runs.
func (r *Request) Validate(p Pricing) error {
	if len(r.Recipients) == 0 {
		return fmt.Errorf("%w: recipients list is empty", ErrValidation)
	}

	switch r.Channel {
	case ChannelSMS:
		if r.Message == "" {
			return fmt.Errorf("%w: message is required", ErrValidation)
		}
	case ChannelUSSD:
		if r.Message == "" {
			return fmt.Errorf("%w: message is required", ErrValidation)
		}
	case ChannelVoice:
		hasTTS := r.TextToSpeech != ""
		hasFile := r.VoiceFileURL != ""
		if hasTTS == hasFile {
			return fmt.Errorf("%w: exactly one of text_to_speech or voice_file_url is required", ErrValidation)
		}
	case ChannelAirtime:
		if len(r.Recipients) != 1 {
			return fmt.Errorf("%w: airtime takes exactly one phone_number", ErrValidation)
		}
		if !validNetworks[r.Network] {
			return fmt.Errorf("%w: network must be one of safaricom, airtel, telkom", ErrValidation)
		}
		if r.Amount < p.AirtimeMinAmount || r.Amount > p.AirtimeMaxAmount {
			return fmt.Errorf("%w: amount must be between %.0f and %.0f", ErrValidation, p.AirtimeMinAmount, p.AirtimeMaxAmount)
		}
	default:
		return fmt.Errorf("%w: unknown channel %q", ErrValidation, r.Channel)
	}

	return nil
}

// Content is what gets persisted as the history row's content column.
func (r *Request) Content() string {
	switch r.Channel {
	case ChannelVoice:
		if r.TextToSpeech != "" {
			return r.TextToSpeech
		}
		return r.VoiceFileURL
	case ChannelAirtime:
		return fmt.Sprintf("%s airtime %.2f", r.Network, r.Amount)
	default:
		return r.Message
	}
}
