// Subcommands for the fleetsync CLI.
package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/fleetsync/internal/remote"
	"github.com/mesh-intelligence/fleetsync/internal/sync"
	"github.com/mesh-intelligence/fleetsync/pkg/types"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize syncing for this instance",
	Long: `Verify the remote account, create the remote zones and change
subscriptions, and enable syncing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.Sync.Initialize(cmd.Context()); err != nil {
			var unavailable *sync.UnavailableError
			if errors.As(err, &unavailable) {
				// The prompt already fired; exit cleanly.
				return nil
			}
			return err
		}
		color.Green("Syncing initialized")
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add <car|truck|bus> <name>",
	Short: "Add a vehicle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := types.Kind(capitalize(args[0]))
		if !kind.IsRoot() {
			return fmt.Errorf("unknown vehicle kind %q", args[0])
		}
		id, err := svc.SaveVehicle(cmd.Context(), &types.Vehicle{Kind: kind, Name: args[1]})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var noteCmd = &cobra.Command{
	Use:   "note <vehicle-id> <text>",
	Short: "Attach a note to a vehicle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := svc.SaveNote(cmd.Context(), &types.Note{OwnerID: args[0], Text: args[1]})
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var listNotes bool

var listCmd = &cobra.Command{
	Use:   "list [car|truck|bus]",
	Short: "List vehicles, optionally with their notes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind types.Kind
		if len(args) == 1 {
			kind = types.Kind(capitalize(args[0]))
			if !kind.IsRoot() {
				return fmt.Errorf("unknown vehicle kind %q", args[0])
			}
		}
		vehicles, err := svc.Store.ListVehicles(kind)
		if err != nil {
			return err
		}
		for _, v := range vehicles {
			fmt.Printf("%s  %-5s  %s\n", v.ID, v.Kind, v.Name)
			if !listNotes {
				continue
			}
			notes, err := svc.Store.ListNotes(v.ID)
			if err != nil {
				return err
			}
			for _, n := range notes {
				fmt.Printf("    %s  %s\n", n.ID, n.Text)
			}
		}
		return nil
	},
}

var deleteNote bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a vehicle (and its notes), or a note with --note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if deleteNote {
			return svc.DeleteNote(cmd.Context(), args[0])
		}
		return svc.DeleteVehicle(cmd.Context(), args[0])
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync [zone]",
	Short: "Run a sync, optionally scoped to one zone",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if len(args) == 1 {
			err = svc.Sync.SyncZone(cmd.Context(), types.Zone(args[0]))
		} else {
			err = svc.Sync.Sync(cmd.Context())
		}
		switch {
		case err == nil:
			color.Green("Sync complete")
			return nil
		case errors.Is(err, types.ErrSyncDisabled):
			color.Yellow("Syncing is disabled; run 'fleetsync init' to enable it")
			return nil
		default:
			return err
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := svc.Sync.Status(cmd.Context())
		if err != nil {
			return err
		}

		enabled := color.GreenString("enabled")
		if !st.Enabled {
			enabled = color.RedString("disabled")
		}
		account := color.GreenString(st.Availability.String())
		if st.Availability != remote.Available {
			account = color.RedString(st.Availability.String())
		}
		lastSync := "never"
		if !st.LastSync.IsZero() {
			lastSync = st.LastSync.Local().Format("2006-01-02 15:04:05")
		}

		fmt.Printf("Sync:            %s\n", enabled)
		fmt.Printf("Account:         %s\n", account)
		fmt.Printf("Last sync:       %s\n", lastSync)
		fmt.Printf("Pending deletes: %d\n", st.PendingDeletes)
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listNotes, "notes", false, "include notes")
	deleteCmd.Flags().BoolVar(&deleteNote, "note", false, "delete a note instead of a vehicle")
}

// capitalize maps CLI-friendly lowercase kind names onto the record kinds.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
