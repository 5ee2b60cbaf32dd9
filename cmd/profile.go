package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/Rorical/streamchat/internal/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage provider profiles",
	Long:  `Manage the upstream provider credentials the relay streams completions with.`,
}

var listProfilesCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		printProfiles(cmd.OutOrStdout(), cfg)
		return nil
	},
}

var showProfileCmd = &cobra.Command{
	Use:   "show [profile-name]",
	Short: "Show profile details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		profile, exists := cfg.Profiles[args[0]]
		if !exists {
			return fmt.Errorf("%q: %w", args[0], config.ErrProfileNotFound)
		}
		printProfile(cmd.OutOrStdout(), args[0], profile)
		return nil
	},
}

var addProfileCmd = &cobra.Command{
	Use:   "add [profile-name]",
	Short: "Add a new profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		name, err := argOrPrompt(args, "Profile name")
		if err != nil {
			return err
		}
		if _, exists := cfg.Profiles[name]; exists {
			return fmt.Errorf("%q: %w", name, config.ErrProfileExists)
		}

		profile, err := promptProfile(config.Profile{Model: config.DefaultModel})
		if err != nil {
			return err
		}
		if err := cfg.AddProfile(name, profile); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' added\n", name)
		return nil
	},
}

var editProfileCmd = &cobra.Command{
	Use:   "edit [profile-name]",
	Short: "Edit an existing profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		name, err := argOrSelect(args, "Select profile to edit", cfg.ProfileNames())
		if err != nil {
			return err
		}
		current, exists := cfg.Profiles[name]
		if !exists {
			return fmt.Errorf("%q: %w", name, config.ErrProfileNotFound)
		}

		profile, err := promptProfile(current)
		if err != nil {
			return err
		}
		if err := cfg.UpdateProfile(name, profile); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' updated\n", name)
		return nil
	},
}

var deleteProfileCmd = &cobra.Command{
	Use:   "delete [profile-name]",
	Short: "Delete a profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		name, err := argOrSelect(args, "Select profile to delete", cfg.ProfileNames())
		if err != nil {
			return err
		}

		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("Delete profile '%s'", name),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Deletion cancelled")
			return nil
		}

		if err := cfg.DeleteProfile(name); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Profile '%s' deleted, active profile is '%s'\n", name, cfg.ActiveProfile)
		return nil
	},
}

var switchProfileCmd = &cobra.Command{
	Use:   "switch [profile-name]",
	Short: "Switch to a different profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		others := make([]string, 0, len(cfg.Profiles))
		for _, name := range cfg.ProfileNames() {
			if name != cfg.ActiveProfile {
				others = append(others, name)
			}
		}
		if len(args) == 0 && len(others) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No other profiles available to switch to")
			return nil
		}

		name, err := argOrSelect(args, "Select profile to switch to", others)
		if err != nil {
			return err
		}
		if err := cfg.UseProfile(name); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Switched to profile '%s'\n", name)
		return nil
	},
}

func printProfiles(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Active Profile: %s\n\n", cfg.ActiveProfile)
	fmt.Fprintln(w, "Available Profiles:")
	for _, name := range cfg.ProfileNames() {
		marker := ""
		if name == cfg.ActiveProfile {
			marker = " (active)"
		}
		fmt.Fprintf(w, "  %s%s\n", name, marker)
		profile := cfg.Profiles[name]
		fmt.Fprintf(w, "    Model: %s\n", modelOrDefault(profile))
		if profile.BaseURL != "" {
			fmt.Fprintf(w, "    Base URL: %s\n", profile.BaseURL)
		}
		fmt.Fprintf(w, "    API Key: %s\n\n", keyState(profile))
	}
}

func printProfile(w io.Writer, name string, profile config.Profile) {
	fmt.Fprintf(w, "Profile: %s\n", name)
	fmt.Fprintf(w, "Model: %s\n", modelOrDefault(profile))
	fmt.Fprintf(w, "Base URL: %s\n", profile.BaseURL)
	fmt.Fprintf(w, "API Key: %s\n", keyState(profile))
}

func modelOrDefault(p config.Profile) string {
	if p.Model == "" {
		return config.DefaultModel
	}
	return p.Model
}

func keyState(p config.Profile) string {
	if p.APIKey == "" {
		return "not set"
	}
	return "set (hidden)"
}

func argOrPrompt(args []string, label string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if s == "" {
				return errors.New("must not be empty")
			}
			return nil
		},
	}
	return prompt.Run()
}

func argOrSelect(args []string, label string, names []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if len(names) == 0 {
		return "", errors.New("no profiles available")
	}
	prompt := promptui.Select{Label: label, Items: names}
	_, name, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("selection failed: %w", err)
	}
	return name, nil
}

// promptProfile asks for every field, offering the current values as
// defaults.
func promptProfile(current config.Profile) (config.Profile, error) {
	apiKeyPrompt := promptui.Prompt{
		Label:   "API Key",
		Default: current.APIKey,
		Mask:    '*',
	}
	apiKey, err := apiKeyPrompt.Run()
	if err != nil {
		return config.Profile{}, fmt.Errorf("prompt failed: %w", err)
	}

	modelPrompt := promptui.Prompt{
		Label:   "Model",
		Default: current.Model,
	}
	model, err := modelPrompt.Run()
	if err != nil {
		return config.Profile{}, fmt.Errorf("prompt failed: %w", err)
	}

	baseURLPrompt := promptui.Prompt{
		Label:   "Base URL (optional)",
		Default: current.BaseURL,
	}
	baseURL, err := baseURLPrompt.Run()
	if err != nil {
		return config.Profile{}, fmt.Errorf("prompt failed: %w", err)
	}

	return config.Profile{APIKey: apiKey, Model: model, BaseURL: baseURL}, nil
}

func init() {
	profileCmd.AddCommand(listProfilesCmd)
	profileCmd.AddCommand(showProfileCmd)
	profileCmd.AddCommand(addProfileCmd)
	profileCmd.AddCommand(editProfileCmd)
	profileCmd.AddCommand(deleteProfileCmd)
	profileCmd.AddCommand(switchProfileCmd)
}
