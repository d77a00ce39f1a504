package main

// Practice configuration constants
const (
	PracticeLanguage = "de"    // Language being practiced
	PracticeLocale   = "de-DE" // Locale passed to speech synthesis
	DefaultLanguage  = "en"    // Default translation target
	DefaultMode      = "text"  // Default difficulty mode
	DefaultQuizLimit = 10      // Questions per quiz round
	MaxQuizOptions   = 4       // Options shown per question
)

// Difficulty modes
const (
	ModeText  = "text"
	ModeAudio = "audio"
)

// Recorder states
const (
	RecorderIdle      = "idle"
	RecorderRecording = "recording"
)

// Recorded clip container format. Single blob per take, not chunked for transport.
const ClipMIMEType = "audio/webm"

// Session and preference cookies
const (
	SessionCookieName    = "session_id"
	LanguageCookieName   = "selected_language"
	DifficultyCookieName = "selected_difficulty"
)

// Route constants
const (
	RouteHome        = "/"
	RouteSettings    = "/settings"
	RouteTopic       = "/topic/:category"
	RouteNav         = "/practice/nav"
	RouteRecordStart = "/practice/record/start"
	RouteRecordChunk = "/practice/record/chunk"
	RouteRecordStop  = "/practice/record/stop"
	RouteRecordRetry = "/practice/record/retry"
	RouteRecordLevel = "/practice/record/level"
	RouteClip        = "/practice/clip"
	RouteEvaluate    = "/practice/evaluate"
	RouteQuizStart   = "/quiz/start"
	RouteQuizAnswer  = "/quiz/answer"
	RouteQuizNext    = "/quiz/next"
	RouteSpeech      = "/speech"
	RouteRefAudio    = "/audio/:wordId"
)

// User-facing messages
const (
	MsgDefaultFeedback    = "Record your voice and tap Evaluate to get a pronunciation score."
	MsgRetryFeedback      = "Try again — tap the mic to record."
	MsgRecordingSaved     = "Recording saved. Play it back, retry, or evaluate."
	MsgRecordingHint      = "Tap the microphone to record"
	MsgRecordingActive    = "Recording… tap again to stop"
	MsgNoSynthesis        = "Text-to-speech is not available on this server."
	MsgNoRecognition      = "Speech recognition not supported — you can still listen and compare."
	MsgEvaluateFailed     = "Could not reach the pronunciation checker. Is the backend running?"
	MsgNoWords            = "No words found for this category."
	MsgQuizAnswersIn      = "Quiz answers are in %s."
	MsgQuizCorrect        = "Correct! Nice job."
	MsgQuizWrong          = "Not quite. Correct answer: %s."
	MsgQuizFinished       = "Finished! Your score: %d/%d."
	MsgEvaluateInProgress = "An evaluation is already running."
)

// Error message constants
const (
	ErrorUnknownCategory  = "unknown category"
	ErrorNoClip           = "no recorded clip to evaluate"
	ErrorNotRecording     = "recorder is not running"
	ErrorAlreadyRecording = "recorder is already running"
	ErrorQuizNotStarted   = "quiz has not been started"
	ErrorQuizFinished     = "quiz round is finished"
	ErrorQuizNotAnswered  = "answer the current question first"
	ErrorEmptyCatalog     = "catalog has no entries"
)

// Context key constants
const (
	requestIDKey contextKey = "request_id"
)

type contextKey string
