// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rakshak Contributors

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rakshak-dev/rakshak/internal/config"
	"github.com/rakshak-dev/rakshak/internal/engage"
	"github.com/rakshak-dev/rakshak/internal/store"
	rakerr "github.com/rakshak-dev/rakshak/pkg/errors"
)

// demoScript is the built-in adversary script used when no script file is
// given. It walks the classic UPI-fraud arc: urgency, payment demand,
// indicator disclosure.
var demoScript = []string{
	"Sir your electricity bill is pending, connection will be cut tonight. Pay immediately to avoid disconnection.",
	"Pay now on this UPI ID: powerbill.recovery@okaxis. Only 10 minutes left sir.",
	"Fine, transfer to account 50100234567890, IFSC HDFC0001234. Send screenshot after payment.",
	"Why delay sir?? Call me on 9876543210 or pay on http://bill-pay-secure.example.in right now!",
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scripted engagement against the configured gateway",
		Long: "Replay a scripted scammer against the agent persona and print the transcript and " +
			"harvested intelligence. Without provider API keys the agent serves its canned " +
			"fallback replies, which still exercises the full engagement loop.",
		RunE: runSimulate,
	}

	cmd.Flags().String("script", "", "script file: plain text (one message per line) or YAML with scam_type and messages")
	cmd.Flags().Int("turns", 0, "adversary turn budget (0 = length of script)")
	cmd.Flags().String("scam-type", "Bank", "classifier verdict to seed the session with")
	cmd.Flags().Duration("timeout", 2*time.Minute, "abort the run after this long")

	return cmd
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return rakerr.Wrapf(err, rakerr.CodeCLISetupFailure, "loading config")
	}

	scamType, _ := cmd.Flags().GetString("scam-type")

	script := demoScript
	if path, _ := cmd.Flags().GetString("script"); path != "" {
		var scriptType string
		script, scriptType, err = readScript(path)
		if err != nil {
			return err
		}
		// A scam type embedded in the script loses to an explicit flag.
		if scriptType != "" && !cmd.Flags().Changed("scam-type") {
			scamType = scriptType
		}
	}
	if len(script) == 0 {
		return rakerr.New(rakerr.CodeCLIInputInvalid, "script has no messages")
	}

	turns, _ := cmd.Flags().GetInt("turns")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.close()

	sim := engage.NewSimulator(script[1:], turns, nil)

	manager, err := engage.NewManager(engage.ManagerConfig{
		Store:       eng.sessions,
		Gateway:     eng.gateway,
		TypingDelay: 50 * time.Millisecond,
		Observers:   []engage.Observer{sim},
	})
	if err != nil {
		return rakerr.Wrapf(err, rakerr.CodeCLISetupFailure, "building engagement manager")
	}

	session, err := manager.StartSession(cmd.Context(), script[0], scamType)
	if err != nil {
		return rakerr.Wrapf(err, rakerr.CodeCLISetupFailure, "starting session")
	}

	ctrl, err := manager.Controller(session.ID)
	if err != nil {
		return err
	}
	sim.Bind(ctrl)

	// Wait until the script is spent and the last generation settled.
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if sim.Exhausted() && ctrl.State() == engage.StateIdle {
			// One more debounce window so the final adversary line gets
			// its reply before we stop.
			time.Sleep(200 * time.Millisecond)
			if ctrl.State() == engage.StateIdle {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := manager.CloseSession(cmd.Context(), session.ID); err != nil {
		return err
	}

	return printRun(cmd, eng, session.ID)
}

func printRun(cmd *cobra.Command, eng *engine, sessionID string) error {
	out := cmd.OutOrStdout()

	transcript, err := eng.sessions.Transcript(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	record, err := eng.sessions.Intelligence(cmd.Context(), sessionID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Session %s — %d turns\n\n", sessionID, len(transcript))
	for _, turn := range transcript {
		fmt.Fprintf(out, "[%s] %s\n", turn.Role, turn.Content)
	}

	fmt.Fprintf(out, "\nHarvested intelligence (%d indicators):\n", record.Count())
	for _, class := range store.Classes() {
		for _, entry := range record.Entries[class] {
			fmt.Fprintf(out, "  %-13s %s (confidence %d)\n", class, entry.Value, entry.Confidence)
		}
	}
	return nil
}

// scriptFile is the YAML script format: an optional classifier verdict
// plus the adversary messages in order.
type scriptFile struct {
	ScamType string   `yaml:"scam_type"`
	Messages []string `yaml:"messages"`
}

// readScript loads an adversary script. YAML files (.yaml/.yml) may carry
// a scam_type alongside the messages; anything else is read as one
// message per non-empty line.
func readScript(path string) ([]string, string, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, "", rakerr.Wrapf(err, rakerr.CodeCLIInputInvalid, "reading script %s", path)
		}
		var sf scriptFile
		if err := yaml.Unmarshal(raw, &sf); err != nil {
			return nil, "", rakerr.Wrapf(err, rakerr.CodeCLIInputInvalid, "parsing script %s", path)
		}
		return sf.Messages, sf.ScamType, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", rakerr.Wrapf(err, rakerr.CodeCLIInputInvalid, "opening script %s", path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, "", rakerr.Wrapf(err, rakerr.CodeCLIInputInvalid, "reading script %s", path)
	}
	return lines, "", nil
}
