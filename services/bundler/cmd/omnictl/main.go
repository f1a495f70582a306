package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"

	gos3 "omniversal/pkg/s3"
	"omniversal/services/bundler"
	"omniversal/services/dashboard"
	"omniversal/services/kernel"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "omnictl",
		Short:         "Utility for omniversal kernel bundles and state",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newBundlesCommand())
	cmd.AddCommand(newKeysCommand())
	cmd.AddCommand(newStateCommand())
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func loadSigner(ctx context.Context) (*bundler.Signer, error) {
	var cfg bundler.SignerConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("signer config: %w", err)
	}
	return bundler.NewSigner(cfg)
}

func newBundlesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundles",
		Short: "Bundle build, verify and push operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newBundlesBuildCommand())
	cmd.AddCommand(newBundlesVerifyCommand())
	cmd.AddCommand(newBundlesPushCommand())
	return cmd
}

func newBundlesBuildCommand() *cobra.Command {
	var (
		artifactsDir string
		statePath    string
		runID        string
		output       string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Create a signed bundle from exported artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			signer, err := loadSigner(ctx)
			if err != nil {
				return err
			}
			_, err = bundler.Build(ctx, bundler.BuildConfig{
				ArtifactsDir: artifactsDir,
				StatePath:    statePath,
				RunID:        runID,
				Output:       output,
				Signer:       signer,
				Stdout:       cmd.OutOrStdout(),
			})
			return err
		},
	}

	cmd.Flags().StringVar(&artifactsDir, "artifacts-dir", "", "Directory containing exported artifacts")
	cmd.Flags().StringVar(&statePath, "state", "", "Optional kernel state file to include")
	cmd.Flags().StringVar(&runID, "run-id", "", "Kernel run identifier recorded in the manifest")
	cmd.Flags().StringVar(&output, "output", "", "Destination bundle file (tar.zst)")
	_ = cmd.MarkFlagRequired("artifacts-dir")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newBundlesVerifyCommand() *cobra.Command {
	var bundleFile string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a bundle signature and contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			signer, err := loadSigner(ctx)
			if err != nil {
				return err
			}
			_, err = bundler.Verify(ctx, bundler.VerifyConfig{
				BundlePath: bundleFile,
				Signer:     signer,
				Stdout:     cmd.OutOrStdout(),
			})
			return err
		},
	}

	cmd.Flags().StringVar(&bundleFile, "file", "", "Path to the bundle tar.zst")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newBundlesPushCommand() *cobra.Command {
	var (
		bundleFile string
		prefix     string
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Verify a bundle and upload it to S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			signer, err := loadSigner(ctx)
			if err != nil {
				return err
			}
			var s3cfg gos3.Config
			if err := envconfig.Process(ctx, &s3cfg); err != nil {
				return fmt.Errorf("s3 config: %w", err)
			}
			client, err := gos3.New(ctx, s3cfg)
			if err != nil {
				return fmt.Errorf("s3 client: %w", err)
			}
			_, err = bundler.Push(ctx, bundler.PushConfig{
				BundlePath: bundleFile,
				Prefix:     prefix,
				Uploader:   client,
				Signer:     signer,
				Stdout:     cmd.OutOrStdout(),
			})
			return err
		},
	}

	cmd.Flags().StringVar(&bundleFile, "file", "", "Path to the bundle tar.zst")
	cmd.Flags().StringVar(&prefix, "prefix", "bundles", "Object key prefix")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Signing key helpers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Print a new AGE_SECRET_KEY and its AGE_PUBLIC_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := bundler.GenerateSecretKey()
			if err != nil {
				return err
			}
			signer, err := bundler.NewSigner(bundler.SignerConfig{SecretKey: secret})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "AGE_SECRET_KEY=%s\n", secret)
			fmt.Fprintf(out, "AGE_PUBLIC_KEY=%s\n", signer.PublicKeyBase64())
			return nil
		},
	})
	return cmd
}

func newStateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect exported kernel state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var statePath string
	show := &cobra.Command{
		Use:   "show",
		Short: "Render the dashboard for a state file",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := kernel.LoadState(statePath)
			if err != nil {
				return err
			}
			renderer, err := dashboard.NewRenderer(time.Now)
			if err != nil {
				return err
			}
			out, err := renderer.Render(st)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	show.Flags().StringVar(&statePath, "state", kernel.DefaultStateFile, "Kernel state file")
	cmd.AddCommand(show)
	return cmd
}
