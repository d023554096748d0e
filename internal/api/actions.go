package api

// Action is the operation selector carried in every request body. Each
// channel accepts a closed set, matched exhaustively in its handler;
// anything else is InvalidAction with no side effects.
type Action string

const (
	ActionSendSMS            Action = "send_sms"
	ActionCheckBalance       Action = "check_balance"
	ActionGetDeliveryReports Action = "get_delivery_reports"

	ActionSendUSSD    Action = "send_ussd"
	ActionGetSessions Action = "get_sessions"

	ActionMakeCall       Action = "make_call"
	ActionGetCallHistory Action = "get_call_history"

	ActionSendAirtime Action = "send_airtime"
	ActionGetHistory  Action = "get_history"
)

const invalidActionError = "Invalid action"

// smsRequest is the union of fields the SMS actions accept.
type smsRequest struct {
	Action        Action   `json:"action"`
	Recipients    []string `json:"recipients"`
	Message       string   `json:"message"`
	SenderID      string   `json:"sender_id"`
	CampaignID    string   `json:"campaign_id"`
	ScheduledTime string   `json:"scheduled_time"`
	MessageIDs    []string `json:"message_ids"`
}

type ussdRequest struct {
	Action      Action   `json:"action"`
	Recipients  []string `json:"recipients"`
	Message     string   `json:"message"`
	ServiceCode string   `json:"service_code"`
}

type voiceRequest struct {
	Action       Action   `json:"action"`
	Recipients   []string `json:"recipients"`
	TextToSpeech string   `json:"text_to_speech"`
	VoiceFileURL string   `json:"voice_file_url"`
}

type airtimeRequest struct {
	Action      Action  `json:"action"`
	PhoneNumber string  `json:"phone_number"`
	Amount      float64 `json:"amount"`
	Network     string  `json:"network"`
	Reference   string  `json:"reference"`
}
