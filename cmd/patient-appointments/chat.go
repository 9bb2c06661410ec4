package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	patientapp "github.com/vinodyk/patient-appointments"
	"github.com/vinodyk/patient-appointments/pkg/config"
	"github.com/vinodyk/patient-appointments/pkg/logging"
	"github.com/vinodyk/patient-appointments/pkg/security"
	"github.com/vinodyk/patient-appointments/pkg/session"
)

func newChatCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the engine from an interactive terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	return cmd
}

// runChat drives the engine in-process over an in-memory session store.
// Only the reasoner settings from the config matter here.
func runChat(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log := logging.New("error", cfg.Logging.Format, os.Stderr)

	completer, err := buildReasoner(ctx, cfg)
	if err != nil {
		return err
	}

	engine := patientapp.New(patientapp.Options{
		Sessions: session.NewManager(session.NewMemoryBackend(), log),
		Reasoner: completer,
		Screen:   security.NewScreen(cfg.Security.BlockThreshold),
		Log:      log,
	})
	defer engine.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("patient-appointments chat. Describe your symptoms or ask for an appointment.")
	fmt.Println("Commands: /new starts over, /session prints the session id, /quit exits.")
	fmt.Println()

	var sessionID string
	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		switch input {
		case "/quit", "/exit":
			return nil
		case "/new":
			sessionID = ""
			fmt.Println("Started a new conversation.")
			continue
		case "/session":
			if sessionID == "" {
				fmt.Println("No session yet - say something first.")
			} else {
				fmt.Println(sessionID)
			}
			continue
		}

		resp, err := engine.ProcessTurn(ctx, patientapp.TurnRequest{Message: input, SessionID: sessionID})
		if err != nil {
			var verr *patientapp.ValidationError
			if errors.As(err, &verr) {
				fmt.Println(verr.Reason)
				continue
			}
			return err
		}
		sessionID = resp.SessionID

		fmt.Println()
		fmt.Println(resp.Message)
		if len(resp.AvailableSlots) > 0 {
			fmt.Println()
			for i, s := range resp.AvailableSlots {
				fmt.Printf("  %d. %s at %s with %s\n", i+1, s.Date, s.Time, s.Doctor)
			}
		}
		if b := resp.Booking; b != nil {
			fmt.Println()
			fmt.Printf("Booked %s: %s at %s with %s\n", b.AppointmentID, b.Date, b.Time, b.Doctor)
		}
		if len(resp.NextSteps) > 0 {
			fmt.Println()
			fmt.Println("Next steps:")
			for _, step := range resp.NextSteps {
				fmt.Println("  - " + step)
			}
		}
		fmt.Println()
	}
}
