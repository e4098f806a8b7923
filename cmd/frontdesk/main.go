//go:build cgo

// Command frontdesk is the terminal front end for a realtime receptionist
// conversation.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/frontdesk-ai/frontdesk-core/clients"
	session "github.com/frontdesk-ai/frontdesk-core/core"
	"github.com/frontdesk-ai/frontdesk-core/core/audio/miniaudio"
	"github.com/frontdesk-ai/frontdesk-core/core/transport/realtime"
)

func main() {
	backendURL := flag.String("backend", "http://localhost:8080", "backend base URL")
	realtimeURL := flag.String("realtime", "", "realtime endpoint base URL (defaults to the provider)")
	manual := flag.Bool("manual", false, "start in push-to-talk mode instead of continuous")
	flag.Parse()

	if err := run(*backendURL, *realtimeURL, *manual); err != nil {
		fmt.Fprintln(os.Stderr, "frontdesk:", err)
		os.Exit(1)
	}
}

func run(backendURL, realtimeURL string, manual bool) error {
	audioClient, err := miniaudio.NewClient()
	if err != nil {
		return fmt.Errorf("failed to initialize audio: %w", err)
	}

	channelOpts := []realtime.Option{}
	if realtimeURL != "" {
		channelOpts = append(channelOpts, realtime.WithBaseURL(realtimeURL))
	}

	mode := session.InputModeContinuous
	if manual {
		mode = session.InputModeManual
	}

	// The callbacks close over the program variable; it is assigned before
	// the session starts, and the session only fires callbacks after Start.
	var program *tea.Program

	sess, err := session.NewSession(
		session.WithCredentialSource(clients.NewCredentialClient(backendURL)),
		session.WithChannel(realtime.NewChannel(channelOpts...)),
		session.WithAudioClient(audioClient),
		session.WithKnowledgeBase(clients.NewKnowledgeClient(backendURL)),
		session.WithAppointmentBook(clients.NewAppointmentsClient(backendURL)),
		session.WithInputMode(mode),
		session.WithOpeningPrompt("Greet the caller and ask how you can help."),
		session.WithCallbacks(session.Callbacks{
			OnTranscriptChanged: func() { program.Send(transcriptChangedMsg{}) },
			OnStateChanged:      func(state session.State) { program.Send(stateChangedMsg{state: state}) },
			OnStopped:           func(reason session.StopReason) { program.Send(stoppedMsg{reason: reason}) },
		}),
	)
	if err != nil {
		return err
	}

	program = tea.NewProgram(newModel(sess), tea.WithAltScreen())
	finalModel, err := program.Run()
	if err != nil {
		return err
	}

	if m, ok := finalModel.(uiModel); ok {
		if m.startErr != nil {
			return m.startErr
		}
		if m.stopReason != "" {
			fmt.Println(exitMessage(m.stopReason))
		}
	}
	return nil
}

func exitMessage(reason session.StopReason) string {
	switch reason {
	case session.StopReasonExpired:
		return "Session expired."
	case session.StopReasonRemoteClosed:
		return "The assistant ended the session."
	case session.StopReasonTransportError:
		return "Session ended after a connection failure."
	}
	return "Session ended."
}
