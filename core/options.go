package session

import "github.com/frontdesk-ai/frontdesk-core/core/transport"

// Option configures a Session at construction time.
type Option func(*Session)

// WithCredentialSource sets where the session obtains its time-limited
// credential from. Required.
func WithCredentialSource(source CredentialSource) Option {
	return func(s *Session) {
		s.credentials = source
	}
}

// WithChannel sets the duplex channel to the remote model service. Required.
func WithChannel(channel transport.Channel) Option {
	return func(s *Session) {
		s.channel = channel
	}
}

// WithAudioClient sets a single client as both the capture device and the
// playback sink.
func WithAudioClient(client interface {
	CaptureDevice
	PlaybackSink
}) Option {
	return func(s *Session) {
		s.captureDevice = client
		s.playbackSink = client
	}
}

// WithCaptureDevice sets the microphone source. Required unless
// WithAudioClient is used.
func WithCaptureDevice(device CaptureDevice) Option {
	return func(s *Session) {
		s.captureDevice = device
	}
}

// WithPlaybackSink sets where assistant audio gets played. Required unless
// WithAudioClient is used.
func WithPlaybackSink(sink PlaybackSink) Option {
	return func(s *Session) {
		s.playbackSink = sink
	}
}

// WithInputMode sets the mode the session starts in. Defaults to continuous.
func WithInputMode(mode InputMode) Option {
	return func(s *Session) {
		s.initialMode = mode
	}
}

// WithInstructions overrides the default receptionist instructions.
func WithInstructions(instructions string) Option {
	return func(s *Session) {
		s.instructions = instructions
	}
}

// WithTemperature overrides the default generation temperature.
func WithTemperature(temperature float64) Option {
	return func(s *Session) {
		s.temperature = temperature
	}
}

// WithOpeningPrompt makes the assistant speak first, prompted with the given
// text, as soon as the session is active.
func WithOpeningPrompt(prompt string) Option {
	return func(s *Session) {
		s.openingPrompt = prompt
	}
}

// WithKnowledgeBase wires the company knowledge lookup behind the
// query_company_info tool. Without it the tool is not offered.
func WithKnowledgeBase(knowledge KnowledgeBase) Option {
	return func(s *Session) {
		s.knowledge = knowledge
	}
}

// WithAppointmentBook wires scheduling behind the check_availability and
// schedule_appointment tools. Without it those tools are not offered.
func WithAppointmentBook(appointments AppointmentBook) Option {
	return func(s *Session) {
		s.appointments = appointments
	}
}

// WithTools registers additional tools beyond the built-in receptionist set.
func WithTools(tools ...Tool) Option {
	return func(s *Session) {
		s.extraTools = append(s.extraTools, tools...)
	}
}

// WithCallbacks registers observers for session activity.
func WithCallbacks(callbacks Callbacks) Option {
	return func(s *Session) {
		s.callbacks = callbacks
	}
}
