// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.bug.st/serial/enumerator"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial ports available on this machine.

USB adapters are shown with their vendor and product IDs and serial number
when the platform reports them.

Exit codes:
  0 - At least one port found
  1 - No ports found or enumeration failed`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fmt.Errorf("failed to list serial ports: %w", err)
	}

	if printPorts(cmd.OutOrStdout(), ports) == 0 {
		return fmt.Errorf("no serial ports found")
	}
	return nil
}

// printPorts writes one line per port and returns how many were listed
func printPorts(w io.Writer, ports []*enumerator.PortDetails) int {
	for _, port := range ports {
		if !port.IsUSB {
			fmt.Fprintf(w, "%s\n", port.Name)
			continue
		}
		fmt.Fprintf(w, "%s  USB %s:%s", port.Name, port.VID, port.PID)
		if port.SerialNumber != "" {
			fmt.Fprintf(w, "  serial=%s", port.SerialNumber)
		}
		if port.Product != "" {
			fmt.Fprintf(w, "  %s", port.Product)
		}
		fmt.Fprintln(w)
	}
	return len(ports)
}
