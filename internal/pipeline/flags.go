package pipeline

import "github.com/maohuynh-embedded/camnode/internal/eventgroup"

// Readiness and control flags shared by all stages. Ready bits are set once
// by each stage's Init and never cleared; StreamingActive gates the capture
// loop and toggles with the host session; Shutdown asks every run loop to
// wind down cooperatively.
const (
	FlagCaptureReady eventgroup.Bits = 1 << iota
	FlagEncoderReady
	FlagStreamReady
	FlagStreamingActive
	FlagShutdown
)

// FlagsAllReady is the mask a caller waits on before serving hosts.
const FlagsAllReady = FlagCaptureReady | FlagEncoderReady | FlagStreamReady
