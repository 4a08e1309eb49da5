package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eventbus-fabric/eventbus/internal/keys"
)

var keygenOutputFile string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an Ed25519 key pair for an Agent's source identity",
	Long: `keygen generates a new Ed25519 key pair and writes the private key
to disk in PKCS8 PEM form, suitable for agent.ed25519_private_key_path.
The Bus-side trust map entry must be populated with the corresponding
public key separately (see internal/trustmap).`,
	Example: `  # Generate a key and write it to agent.key
  eventbus-agent keygen --output agent.key`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keygenOutputFile, "output", "o", "agent.key", "path to write the PEM-encoded private key")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	kp, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return fmt.Errorf("generate key pair: %w", err)
	}
	if err := keys.SaveEd25519PrivateKeyPEM(kp, keygenOutputFile); err != nil {
		return fmt.Errorf("save key pair: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote Ed25519 private key to %s (id=%s)\n", keygenOutputFile, kp.ID())
	return nil
}
