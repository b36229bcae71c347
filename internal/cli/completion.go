package cli

import (
	"github.com/spf13/cobra"
)

// newCompletionCmd creates the 'completion' command with one subcommand per shell.
func newCompletionCmd(rootCmd *cobra.Command) *cobra.Command {
	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Enable tab-completion for adbfb commands",
		Long: `Generate shell completion scripts to enable tab-completion for adbfb.

QUICK START:

  zsh:
    mkdir -p ~/.zsh/completions
    adbfb completion zsh > ~/.zsh/completions/_adbfb
    # Then add to ~/.zshrc: fpath=(~/.zsh/completions $fpath)

  bash (Linux):
    adbfb completion bash | sudo tee /etc/bash_completion.d/adbfb

  fish:
    adbfb completion fish > ~/.config/fish/completions/adbfb.fish

  PowerShell:
    adbfb completion powershell >> $PROFILE`,
	}

	completionCmd.AddCommand(&cobra.Command{
		Use:   "bash",
		Short: "Generate bash completion script",
		Long: `Generate the autocompletion script for bash.

QUICK TEST (temporary, current session only):
  source <(adbfb completion bash)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenBashCompletion(cmd.OutOrStdout())
		},
	})

	completionCmd.AddCommand(&cobra.Command{
		Use:   "zsh",
		Short: "Generate zsh completion script",
		Long: `Generate the autocompletion script for zsh.

QUICK TEST (temporary, current session only):
  source <(adbfb completion zsh)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenZshCompletion(cmd.OutOrStdout())
		},
	})

	completionCmd.AddCommand(&cobra.Command{
		Use:   "fish",
		Short: "Generate fish completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
		},
	})

	completionCmd.AddCommand(&cobra.Command{
		Use:   "powershell",
		Short: "Generate PowerShell completion script",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenPowerShellCompletion(cmd.OutOrStdout())
		},
	})

	return completionCmd
}
