package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage local user profiles",
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name> <email>",
	Short: "Create a profile and make it current",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		profile, err := st.CreateProfile(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if err := st.SetCurrentUser(ctx, profile.ID); err != nil {
			return err
		}
		fmt.Printf("Created profile %s (%s) and set it as current\n", profile.ID, profile.Name)
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		profiles, err := st.ListProfiles(ctx)
		if err != nil {
			return err
		}
		current, err := st.CurrentUser(ctx)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(profiles))
		for _, p := range profiles {
			marker := ""
			if current != nil && current.ID == p.ID {
				marker = "*"
			}
			rows = append(rows, []string{
				marker, p.ID, p.Name, p.Email, p.CreatedAt.Format("2006-01-02"),
			})
		}
		return printRecords([]string{"", "ID", "Name", "Email", "Created"}, rows, profiles)
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <profile-id>",
	Short: "Switch the current profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.SetCurrentUser(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Current profile is now %s\n", args[0])
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <profile-id>",
	Short: "Delete a profile and all its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteProfile(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted profile %s and all its notes, quiz data, and settings\n", args[0])
		return nil
	},
}

func init() {
	profileCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output JSON")
	profileCmd.AddCommand(profileCreateCmd, profileListCmd, profileUseCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
