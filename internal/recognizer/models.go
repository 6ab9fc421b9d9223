package recognizer

// Message types exchanged with the streaming recognizer
const (
	MessageTypeStart  = "start"
	MessageTypeResult = "result"
	MessageTypeError  = "error"
)

// StreamingConfig is the one-time configuration payload carried by the first
// message of every connection
type StreamingConfig struct {
	Encoding        string `json:"encoding"`          // Audio encoding, e.g. "pcm_s16le"
	SampleRateHertz int    `json:"sample_rate_hertz"` // Capture sample rate
	LanguageCode    string `json:"language_code"`     // Source language, e.g. "en-US"
	Model           string `json:"model,omitempty"`   // Provider-specific model selector
	MaxAlternatives int    `json:"max_alternatives"`  // Ranked hypotheses per result
	InterimResults  bool   `json:"interim_results"`   // Emit provisional results for in-progress audio
}

// StartMessage opens a connection; all subsequent outbound messages are
// binary audio frames
type StartMessage struct {
	Type   string          `json:"type"`
	Config StreamingConfig `json:"streaming_config"`
}

// Alternative is one ranked transcript hypothesis
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Result carries the hypotheses for one span of audio within a response
type Result struct {
	Alternatives []Alternative `json:"alternatives"`
	IsFinal      bool          `json:"is_final"`
	Stability    float64       `json:"stability"`
	ResultEndMs  int64         `json:"result_end_ms"` // End offset relative to connection start
}

// Response is one inbound message from the recognizer
type Response struct {
	Type    string   `json:"type"`
	Results []Result `json:"results,omitempty"`
	Error   string   `json:"error,omitempty"`
}
